package domain

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func candidateSet(mods ...time.Time) []Candidate {
	candidates := make([]Candidate, len(mods))
	for i, mod := range mods {
		candidates[i] = Candidate{
			OriginalPath: "/src/file",
			ArchivePath:  "docs/file",
			ModTime:      mod,
		}
	}

	return candidates
}

func TestSelector_FullStrategyIsPassthrough(t *testing.T) {
	ledger := &runLedgerMock{}
	selector := NewDifferentialSelector(discardLogger(), ledger)

	candidates := candidateSet(time.Now(), time.Now().Add(-48*time.Hour))

	selection, err := selector.Select(context.Background(), "personal", StrategyFull, candidates)

	assert.Nil(t, err)
	assert.Equal(t, StrategyFull, selection.Strategy)
	assert.False(t, selection.Downgraded)
	assert.Len(t, selection.Candidates, 2)

	ledger.AssertNotCalled(t, "FindLastSuccessfulFull", mock.Anything, mock.Anything)
}

func TestSelector_KeepsOnlyStrictlyNewerFiles(t *testing.T) {
	cutoff := time.Now().Add(-time.Hour)

	baseline := &Run{Id: 42, Strategy: StrategyFull, Outcome: OutcomeSucceeded, FinishedAt: &cutoff}

	ledger := &runLedgerMock{}
	ledger.On("FindLastSuccessfulFull", mock.Anything, "personal").Return(baseline, nil)

	selector := NewDifferentialSelector(discardLogger(), ledger)

	candidates := candidateSet(
		cutoff.Add(time.Minute),  // changed
		cutoff,                   // exactly at the cutoff, not newer
		cutoff.Add(-time.Minute), // unchanged
	)

	selection, err := selector.Select(context.Background(), "personal", StrategyDifferential, candidates)

	assert.Nil(t, err)
	assert.Equal(t, StrategyDifferential, selection.Strategy)
	assert.Equal(t, int64(42), selection.ParentRunId)
	assert.Len(t, selection.Candidates, 1)
	assert.Equal(t, cutoff.Add(time.Minute), selection.Candidates[0].ModTime)
}

func TestSelector_DowngradesWhenNoBaselineExists(t *testing.T) {
	ledger := &runLedgerMock{}
	ledger.On("FindLastSuccessfulFull", mock.Anything, "personal").Return(nil, nil)

	selector := NewDifferentialSelector(discardLogger(), ledger)

	candidates := candidateSet(time.Now().Add(-48 * time.Hour))

	selection, err := selector.Select(context.Background(), "personal", StrategyDifferential, candidates)

	assert.Nil(t, err)
	assert.Equal(t, StrategyFull, selection.Strategy)
	assert.True(t, selection.Downgraded)
	assert.Len(t, selection.Candidates, 1)
}

func TestSelector_DowngradesWhenBaselineLookupFails(t *testing.T) {
	ledger := &runLedgerMock{}
	ledger.On("FindLastSuccessfulFull", mock.Anything, "personal").Return(nil, errors.New("ledger unavailable"))

	selector := NewDifferentialSelector(discardLogger(), ledger)

	selection, err := selector.Select(context.Background(), "personal", StrategyDifferential, candidateSet(time.Now()))

	assert.Nil(t, err)
	assert.Equal(t, StrategyFull, selection.Strategy)
	assert.True(t, selection.Downgraded)
}
