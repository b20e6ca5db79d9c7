package storage

import (
	"context"
	"database/sql"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/backsnap/backsnap/pkg/domain"
)

const (
	runInsertQuery = `
		INSERT INTO runs (
			id, backup_type, strategy, parent_run_id,
			started_at, finished_at, outcome,
			total_bytes, file_count, duration_seconds
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	runExistsQuery = `
		SELECT COUNT(1) FROM runs WHERE id = ?
	`

	runSelectLastSuccessfulFull = `
		SELECT
			id, backup_type, strategy, parent_run_id,
			started_at, finished_at, outcome,
			total_bytes, file_count, duration_seconds
		FROM runs
		WHERE backup_type = ?
			AND strategy = ?
			AND outcome IN (?)
		ORDER BY started_at DESC
		LIMIT 1
	`

	runSelectRecent = `
		SELECT
			id, backup_type, strategy, parent_run_id,
			started_at, finished_at, outcome,
			total_bytes, file_count, duration_seconds
		FROM runs
		WHERE backup_type = ?
		ORDER BY started_at DESC
		LIMIT ?
	`

	statsSelectQuery = `
		SELECT
			backup_type, run_count,
			mean_size_bytes, mean_duration_seconds,
			success_count, failure_count
		FROM run_stats
		WHERE backup_type = ?
	`

	statsUpsertQuery = `
		INSERT INTO run_stats (
			backup_type, run_count,
			mean_size_bytes, mean_duration_seconds,
			success_count, failure_count
		)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (backup_type) DO UPDATE SET
			run_count = excluded.run_count,
			mean_size_bytes = excluded.mean_size_bytes,
			mean_duration_seconds = excluded.mean_duration_seconds,
			success_count = excluded.success_count,
			failure_count = excluded.failure_count
	`
)

// RunLedger is the sqlite-backed history of backup runs. A run becomes
// visible to baseline and lookback queries only at CommitRun; until then
// the ledger holds no row for it.
type RunLedger struct {
	db *sqlx.DB

	mu       sync.Mutex
	reserved map[int64]struct{}
}

func NewRunLedger(db *sqlx.DB) *RunLedger {
	return &RunLedger{
		db:       db,
		reserved: make(map[int64]struct{}),
	}
}

// RecordRunStart reserves the run id. Deliberately no durable write
// happens here: a run that crashes before commit must leave no trace in
// history.
func (l *RunLedger) RecordRunStart(ctx context.Context, run domain.Run) (int64, error) {
	var count int
	if err := l.db.GetContext(ctx, &count, runExistsQuery, run.Id); err != nil {
		return 0, errors.Wrap(err, "unable to check run id")
	}
	if count > 0 {
		return 0, errors.Errorf("run id %d already committed", run.Id)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.reserved[run.Id]; ok {
		return 0, errors.Errorf("run id %d already reserved", run.Id)
	}
	l.reserved[run.Id] = struct{}{}

	return run.Id, nil
}

// CommitRun is the single durable write sealing a run: the run row and the
// per-type statistics are updated in one transaction.
func (l *RunLedger) CommitRun(ctx context.Context, run domain.Run) error {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "unable to begin transaction")
	}

	_, err = tx.ExecContext(
		ctx, runInsertQuery,
		run.Id, run.BackupType, run.Strategy, run.ParentRunId,
		run.StartedAt, run.FinishedAt, run.Outcome,
		run.TotalBytes, run.FileCount, run.DurationSeconds,
	)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "unable to insert run")
	}

	var stats domain.Statistics

	err = tx.GetContext(ctx, &stats, statsSelectQuery, run.BackupType)
	if err == sql.ErrNoRows {
		stats = domain.Statistics{BackupType: run.BackupType}
	} else if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "unable to load run statistics")
	}

	stats.Observe(run)

	_, err = tx.ExecContext(
		ctx, statsUpsertQuery,
		stats.BackupType, stats.RunCount,
		stats.MeanSizeBytes, stats.MeanDurationSeconds,
		stats.SuccessCount, stats.FailureCount,
	)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "unable to update run statistics")
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "unable to commit run")
	}

	l.mu.Lock()
	delete(l.reserved, run.Id)
	l.mu.Unlock()

	return nil
}

func (l *RunLedger) FindLastSuccessfulFull(ctx context.Context, backupType string) (*domain.Run, error) {
	query, args, err := sqlx.In(runSelectLastSuccessfulFull, backupType, domain.StrategyFull, domain.BaselineOutcomes)
	if err != nil {
		return nil, err
	}
	query = l.db.Rebind(query)

	var run domain.Run

	err = l.db.GetContext(ctx, &run, query, args...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "unable to query last successful full run")
	}

	return &run, nil
}

func (l *RunLedger) RecentRuns(ctx context.Context, backupType string, limit int) ([]domain.Run, error) {
	var runs []domain.Run

	err := l.db.SelectContext(ctx, &runs, runSelectRecent, backupType, limit)
	if err != nil {
		return nil, errors.Wrap(err, "unable to query recent runs")
	}

	return runs, nil
}

func (l *RunLedger) AggregateStatistics(ctx context.Context, backupType string) (domain.Statistics, error) {
	var stats domain.Statistics

	err := l.db.GetContext(ctx, &stats, statsSelectQuery, backupType)
	if err == sql.ErrNoRows {
		return domain.Statistics{BackupType: backupType}, nil
	}
	if err != nil {
		return stats, errors.Wrap(err, "unable to query run statistics")
	}

	return stats, nil
}
