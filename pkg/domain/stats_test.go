package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatistics_IncrementalMeans(t *testing.T) {
	s := Statistics{BackupType: "personal"}

	s.Observe(Run{TotalBytes: 100, DurationSeconds: 10, Outcome: OutcomeSucceeded})
	s.Observe(Run{TotalBytes: 300, DurationSeconds: 20, Outcome: OutcomeSucceeded})
	s.Observe(Run{TotalBytes: 200, DurationSeconds: 30, Outcome: OutcomeFailed})

	assert.Equal(t, int64(3), s.RunCount)
	assert.InDelta(t, 200.0, s.MeanSizeBytes, 1e-9)
	assert.InDelta(t, 20.0, s.MeanDurationSeconds, 1e-9)
}

func TestStatistics_OutcomeCounting(t *testing.T) {
	s := Statistics{}

	s.Observe(Run{Outcome: OutcomeSucceeded})
	s.Observe(Run{Outcome: OutcomePartiallyFailed})
	s.Observe(Run{Outcome: OutcomeFailed})
	s.Observe(Run{Outcome: OutcomeAborted})

	assert.Equal(t, int64(2), s.SuccessCount)
	assert.Equal(t, int64(2), s.FailureCount)
	assert.InDelta(t, 0.5, s.SuccessRate(), 1e-9)
}

func TestStatistics_EmptySuccessRate(t *testing.T) {
	s := Statistics{}

	assert.Equal(t, 0.0, s.SuccessRate())
}
