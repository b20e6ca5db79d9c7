package domainfx

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/backsnap/backsnap/pkg/domain"
)

const (
	ConfigDestinationRoot    = "destination.root"
	ConfigDestinationArchive = "destination.archive"

	ConfigWorkers = "workers"

	ConfigRetryMaxAttempts       = "retry.max_attempts"
	ConfigRetryDelay             = "retry.delay"
	ConfigRetryContinueOnFailure = "retry.continue_on_failure"

	ConfigDedupEnabled      = "dedup.enabled"
	ConfigDedupLookbackRuns = "dedup.lookback_runs"
)

func LoadItems(v *viper.Viper) ([]domain.Item, error) {
	var items []domain.Item

	err := v.UnmarshalKey("items", &items)
	if err != nil {
		return nil, errors.Wrap(err, "Unable to unmarshal items")
	}

	// Archive paths are keyed by item name, so names must be unique within
	// a backup type or entries would overwrite each other in the manifest.
	seen := make(map[string]struct{})

	for _, item := range items {
		if item.Name == "" || item.Type == "" {
			return nil, errors.Errorf("backup item must have both name and type: %+v", item)
		}
		if len(item.Sources) == 0 {
			return nil, errors.Errorf("backup item %q has no sources", item.Name)
		}

		key := item.Type + "/" + item.Name
		if _, ok := seen[key]; ok {
			return nil, errors.Errorf("duplicate backup item %q for type %q", item.Name, item.Type)
		}
		seen[key] = struct{}{}
	}

	return items, nil
}

// BackupTypes is the distinct, sorted list of configured backup types.
func BackupTypes(items []domain.Item) []string {
	seen := make(map[string]struct{})

	var types []string
	for _, item := range items {
		if _, ok := seen[item.Type]; ok {
			continue
		}
		seen[item.Type] = struct{}{}
		types = append(types, item.Type)
	}

	sort.Strings(types)

	return types
}

func ServiceConfigProvider(v *viper.Viper) (domain.ServiceConfig, error) {
	v.SetDefault(ConfigWorkers, domain.DefaultWorkers)
	v.SetDefault(ConfigRetryMaxAttempts, domain.DefaultMaxAttempts)
	v.SetDefault(ConfigRetryDelay, domain.DefaultRetryDelay)
	v.SetDefault(ConfigRetryContinueOnFailure, true)
	v.SetDefault(ConfigDedupEnabled, true)
	v.SetDefault(ConfigDedupLookbackRuns, domain.DefaultLookbackRuns)

	config := domain.ServiceConfig{
		Workers: v.GetInt(ConfigWorkers),
		Retry: domain.RetryPolicy{
			MaxAttempts:       v.GetInt(ConfigRetryMaxAttempts),
			Delay:             v.GetDuration(ConfigRetryDelay),
			ContinueOnFailure: v.GetBool(ConfigRetryContinueOnFailure),
		},
		Dedup: domain.DedupConfig{
			Enabled:      v.GetBool(ConfigDedupEnabled),
			LookbackRuns: v.GetInt(ConfigDedupLookbackRuns),
		},
	}

	if config.Retry.Delay <= 0 {
		config.Retry.Delay = time.Duration(v.GetInt(ConfigRetryDelay)) * time.Second
	}

	return config, nil
}
