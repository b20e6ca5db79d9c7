package storage

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"github.com/backsnap/backsnap/pkg/domain"
	"github.com/backsnap/backsnap/pkg/util"
)

const testSchema = `
	CREATE TABLE runs (
		id INTEGER PRIMARY KEY,
		backup_type TEXT NOT NULL,
		strategy INTEGER NOT NULL,
		parent_run_id INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		outcome INTEGER NOT NULL,
		total_bytes INTEGER NOT NULL DEFAULT 0,
		file_count INTEGER NOT NULL DEFAULT 0,
		duration_seconds REAL NOT NULL DEFAULT 0
	);

	CREATE INDEX runs_type_strategy_started_idx ON runs (backup_type, strategy, started_at);

	CREATE TABLE run_stats (
		backup_type TEXT PRIMARY KEY,
		run_count INTEGER NOT NULL DEFAULT 0,
		mean_size_bytes REAL NOT NULL DEFAULT 0,
		mean_duration_seconds REAL NOT NULL DEFAULT 0,
		success_count INTEGER NOT NULL DEFAULT 0,
		failure_count INTEGER NOT NULL DEFAULT 0
	);
`

func newTestLedger(t *testing.T) *RunLedger {
	t.Helper()

	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	db.MapperFunc(util.CamelToSnakeCase)

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatal(err)
	}

	return NewRunLedger(db)
}

func committedRun(id int64, backupType string, strategy domain.Strategy, outcome domain.Outcome, startedAt time.Time) domain.Run {
	finishedAt := startedAt.Add(time.Minute)

	return domain.Run{
		Id:              id,
		BackupType:      backupType,
		Strategy:        strategy,
		StartedAt:       startedAt,
		FinishedAt:      &finishedAt,
		Outcome:         outcome,
		TotalBytes:      1000,
		FileCount:       10,
		DurationSeconds: 60,
	}
}

func TestLedger_CommitMakesRunVisible(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	run := committedRun(1, "personal", domain.StrategyFull, domain.OutcomeSucceeded, time.Now().UTC())

	id, err := ledger.RecordRunStart(ctx, run)
	assert.Nil(t, err)
	assert.Equal(t, run.Id, id)

	// Not visible until committed
	found, err := ledger.FindLastSuccessfulFull(ctx, "personal")
	assert.Nil(t, err)
	assert.Nil(t, found)

	assert.Nil(t, ledger.CommitRun(ctx, run))

	found, err = ledger.FindLastSuccessfulFull(ctx, "personal")
	assert.Nil(t, err)
	assert.NotNil(t, found)
	assert.Equal(t, run.Id, found.Id)
	assert.Equal(t, domain.StrategyFull, found.Strategy)
	assert.Equal(t, int64(1000), found.TotalBytes)
	assert.NotNil(t, found.FinishedAt)
}

func TestLedger_BaselineQueryFiltersStrategyAndOutcome(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)

	assert.Nil(t, ledger.CommitRun(ctx, committedRun(1, "personal", domain.StrategyFull, domain.OutcomeSucceeded, base)))
	assert.Nil(t, ledger.CommitRun(ctx, committedRun(2, "personal", domain.StrategyFull, domain.OutcomePartiallyFailed, base.Add(time.Minute))))

	// Newer runs that cannot serve as a baseline
	assert.Nil(t, ledger.CommitRun(ctx, committedRun(3, "personal", domain.StrategyDifferential, domain.OutcomeSucceeded, base.Add(2*time.Minute))))
	assert.Nil(t, ledger.CommitRun(ctx, committedRun(4, "personal", domain.StrategyFull, domain.OutcomeAborted, base.Add(3*time.Minute))))
	assert.Nil(t, ledger.CommitRun(ctx, committedRun(5, "personal", domain.StrategyFull, domain.OutcomeFailed, base.Add(4*time.Minute))))
	assert.Nil(t, ledger.CommitRun(ctx, committedRun(6, "other", domain.StrategyFull, domain.OutcomeSucceeded, base.Add(5*time.Minute))))

	found, err := ledger.FindLastSuccessfulFull(ctx, "personal")

	assert.Nil(t, err)
	assert.NotNil(t, found)
	assert.Equal(t, int64(2), found.Id)
	assert.Equal(t, domain.OutcomePartiallyFailed, found.Outcome)
}

func TestLedger_RecentRunsNewestFirstWithLimit(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)

	for i := int64(1); i <= 5; i++ {
		run := committedRun(i, "personal", domain.StrategyFull, domain.OutcomeSucceeded, base.Add(time.Duration(i)*time.Minute))
		assert.Nil(t, ledger.CommitRun(ctx, run))
	}

	runs, err := ledger.RecentRuns(ctx, "personal", 3)

	assert.Nil(t, err)
	assert.Len(t, runs, 3)
	assert.Equal(t, int64(5), runs[0].Id)
	assert.Equal(t, int64(4), runs[1].Id)
	assert.Equal(t, int64(3), runs[2].Id)
}

func TestLedger_StatisticsAggregateAcrossCommits(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	base := time.Now().UTC()

	first := committedRun(1, "personal", domain.StrategyFull, domain.OutcomeSucceeded, base)
	first.TotalBytes = 100
	first.DurationSeconds = 10

	second := committedRun(2, "personal", domain.StrategyFull, domain.OutcomeFailed, base.Add(time.Minute))
	second.TotalBytes = 300
	second.DurationSeconds = 30

	assert.Nil(t, ledger.CommitRun(ctx, first))
	assert.Nil(t, ledger.CommitRun(ctx, second))

	stats, err := ledger.AggregateStatistics(ctx, "personal")

	assert.Nil(t, err)
	assert.Equal(t, "personal", stats.BackupType)
	assert.Equal(t, int64(2), stats.RunCount)
	assert.InDelta(t, 200.0, stats.MeanSizeBytes, 1e-9)
	assert.InDelta(t, 20.0, stats.MeanDurationSeconds, 1e-9)
	assert.Equal(t, int64(1), stats.SuccessCount)
	assert.Equal(t, int64(1), stats.FailureCount)
	assert.InDelta(t, 0.5, stats.SuccessRate(), 1e-9)
}

func TestLedger_StatisticsForUnknownTypeAreEmpty(t *testing.T) {
	ledger := newTestLedger(t)

	stats, err := ledger.AggregateStatistics(context.Background(), "unknown")

	assert.Nil(t, err)
	assert.Equal(t, "unknown", stats.BackupType)
	assert.Equal(t, int64(0), stats.RunCount)
}

func TestLedger_RecordRunStartRejectsDuplicateIds(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	run := committedRun(1, "personal", domain.StrategyFull, domain.OutcomeSucceeded, time.Now().UTC())

	_, err := ledger.RecordRunStart(ctx, run)
	assert.Nil(t, err)

	// Reserved but not yet committed
	_, err = ledger.RecordRunStart(ctx, run)
	assert.NotNil(t, err)

	assert.Nil(t, ledger.CommitRun(ctx, run))

	// Committed ids are rejected as well
	_, err = ledger.RecordRunStart(ctx, run)
	assert.NotNil(t, err)
}
