package domain

import "time"

// Item is one named logical category mapped to source filesystem
// locations. Items are owned by configuration and read-only to a run.
type Item struct {
	Name    string   `mapstructure:"name"`
	Type    string   `mapstructure:"type"`
	Sources []string `mapstructure:"sources"`
	Exclude []string `mapstructure:"exclude"`
}

type RetryPolicy struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	Delay             time.Duration `mapstructure:"delay"`
	ContinueOnFailure bool          `mapstructure:"continue_on_failure"`
}

type DedupConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	LookbackRuns int  `mapstructure:"lookback_runs"`
}

const (
	DefaultMaxAttempts  = 3
	DefaultRetryDelay   = 5 * time.Second
	DefaultLookbackRuns = 5
	DefaultWorkers      = 4
)
