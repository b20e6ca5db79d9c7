package domain

// Statistics is the running aggregate over committed runs of one backup
// type. Means are maintained incrementally so the full history never needs
// to be loaded.
type Statistics struct {
	BackupType          string  `json:"backup_type"`
	RunCount            int64   `json:"run_count"`
	MeanSizeBytes       float64 `json:"mean_size_bytes"`
	MeanDurationSeconds float64 `json:"mean_duration_seconds"`
	SuccessCount        int64   `json:"success_count"`
	FailureCount        int64   `json:"failure_count"`
}

// Observe folds one sealed run into the aggregate.
func (s *Statistics) Observe(run Run) {
	s.RunCount++
	s.MeanSizeBytes += (float64(run.TotalBytes) - s.MeanSizeBytes) / float64(s.RunCount)
	s.MeanDurationSeconds += (run.DurationSeconds - s.MeanDurationSeconds) / float64(s.RunCount)

	switch run.Outcome {
	case OutcomeSucceeded, OutcomePartiallyFailed:
		s.SuccessCount++
	default:
		s.FailureCount++
	}
}

func (s *Statistics) SuccessRate() float64 {
	if s.RunCount == 0 {
		return 0
	}

	return float64(s.SuccessCount) / float64(s.RunCount)
}
