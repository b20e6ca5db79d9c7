package domain

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type Strategy int

const (
	// Capture every configured item regardless of change
	StrategyFull Strategy = iota

	// Capture only files changed since the last successful full run
	StrategyDifferential
)

func (s Strategy) String() string {
	switch s {
	case StrategyFull:
		return "full"
	case StrategyDifferential:
		return "differential"
	default:
		return "unknown"
	}
}

// ParseStrategy maps a configured strategy name to its value. An empty
// name defaults to differential, which is what scheduled runs normally want.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(name) {
	case "full":
		return StrategyFull, nil
	case "differential", "":
		return StrategyDifferential, nil
	default:
		return StrategyFull, errors.Errorf("unknown strategy %q", name)
	}
}

type Outcome int

const (
	// Run exists in memory but is not committed to the ledger
	OutcomeRunning Outcome = iota

	// Every processed file was stored or deduplicated
	OutcomeSucceeded

	// Some files failed after exhausting retries, the rest were processed
	OutcomePartiallyFailed

	// Every processed file failed
	OutcomeFailed

	// Run stopped early due to a fatal failure
	OutcomeAborted
)

// BaselineOutcomes are the outcomes a full run must have to serve as a
// differential baseline.
var BaselineOutcomes = []Outcome{OutcomeSucceeded, OutcomePartiallyFailed}

func (o Outcome) String() string {
	switch o {
	case OutcomeRunning:
		return "running"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomePartiallyFailed:
		return "partially_failed"
	case OutcomeFailed:
		return "failed"
	case OutcomeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Run is one backup execution. It is mutated only by the owning run's
// pipeline and sealed once committed to the ledger.
type Run struct {
	Id int64

	BackupType string
	Strategy   Strategy

	// Baseline full run id, set only for differential runs
	ParentRunId int64

	StartedAt  time.Time
	FinishedAt *time.Time

	Outcome Outcome

	TotalBytes      int64
	FileCount       int64
	DurationSeconds float64
}

var (
	runIdMu   sync.Mutex
	lastRunId int64
)

// NewRunId derives a unique run identifier from the given time. Two runs
// started within the same nanosecond get strictly increasing ids.
func NewRunId(now time.Time) int64 {
	runIdMu.Lock()
	defer runIdMu.Unlock()

	id := now.UTC().UnixNano()
	if id <= lastRunId {
		id = lastRunId + 1
	}
	lastRunId = id

	return id
}
