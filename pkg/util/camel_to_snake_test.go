package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCamelToSnakeCase(t *testing.T) {
	for input, expected := range map[string]string{
		"Id":                  "id",
		"BackupType":          "backup_type",
		"ParentRunId":         "parent_run_id",
		"MeanSizeBytes":       "mean_size_bytes",
		"DurationSeconds":     "duration_seconds",
		"MeanDurationSeconds": "mean_duration_seconds",
	} {
		assert.Equal(t, expected, CamelToSnakeCase(input))
	}
}
