package domain

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Selection is the filtered candidate set for a run together with the
// effective strategy and resolved baseline.
type Selection struct {
	Strategy    Strategy
	ParentRunId int64
	Baseline    *Run
	Candidates  []Candidate
	Downgraded  bool
}

// DifferentialSelector filters resolver output down to changed files.
// Selection operates at file granularity only: a category containing one
// changed file propagates only that file, never the whole category.
type DifferentialSelector struct {
	logger logrus.FieldLogger
	ledger RunLedger
}

func NewDifferentialSelector(logger logrus.FieldLogger, ledger RunLedger) *DifferentialSelector {
	return &DifferentialSelector{
		logger: logger,
		ledger: ledger,
	}
}

func (s *DifferentialSelector) Select(ctx context.Context, backupType string, strategy Strategy, candidates []Candidate) (Selection, error) {
	if strategy == StrategyFull {
		return Selection{Strategy: StrategyFull, Candidates: candidates}, nil
	}

	baseline, err := s.ledger.FindLastSuccessfulFull(ctx, backupType)
	if err != nil {
		s.logger.WithError(err).WithField("backup_type", backupType).
			Warn("Baseline lookup failed, downgrading differential run to full")

		return Selection{Strategy: StrategyFull, Candidates: candidates, Downgraded: true}, nil
	}

	if baseline == nil || baseline.FinishedAt == nil {
		s.logger.WithField("backup_type", backupType).
			Warn("No successful full run found, downgrading differential run to full")

		return Selection{Strategy: StrategyFull, Candidates: candidates, Downgraded: true}, nil
	}

	cutoff := *baseline.FinishedAt

	var changed []Candidate
	for _, candidate := range candidates {
		// Strictly newer than the baseline's completion
		if candidate.ModTime.After(cutoff) {
			changed = append(changed, candidate)
		}
	}

	return Selection{
		Strategy:    StrategyDifferential,
		ParentRunId: baseline.Id,
		Baseline:    baseline,
		Candidates:  changed,
	}, nil
}
