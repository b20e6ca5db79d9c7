package domain

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/backsnap/backsnap/pkg/appcontext"
)

// RunLedger is the durable, queryable history of past runs. Commit is the
// single durable write that makes a run visible to baseline and lookback
// queries.
type RunLedger interface {
	RecordRunStart(ctx context.Context, run Run) (int64, error)
	CommitRun(ctx context.Context, run Run) error
	FindLastSuccessfulFull(ctx context.Context, backupType string) (*Run, error)
	RecentRuns(ctx context.Context, backupType string, limit int) ([]Run, error)
	AggregateStatistics(ctx context.Context, backupType string) (Statistics, error)
}

// ManifestStore owns the destination layout and persists one manifest
// document per run, atomically and write-once.
type ManifestStore interface {
	Save(ctx context.Context, manifest Manifest) error
	Load(ctx context.Context, backupType string, runId int64) (*Manifest, error)
	BlobPath(backupType string, runId int64, archivePath string) string
	RunDirectory(backupType string, runId int64) string
	EnsureWritable(backupType string) error
}

// Notifier receives terminal run outcomes. Delivery is fire-and-forget
// from the core's perspective.
type Notifier interface {
	RunFinished(run Run, message string)
}

type ServiceConfig struct {
	Retry   RetryPolicy
	Dedup   DedupConfig
	Workers int
}

// BackupService runs the selection, differencing, deduplication and copy
// pipeline for one backup type at a time and seals the result into the
// ledger.
type BackupService struct {
	logger logrus.FieldLogger

	items     []Item
	ledger    RunLedger
	manifests ManifestStore
	resolver  *PathResolver
	selector  *DifferentialSelector
	executor  *CopyExecutor
	notifier  Notifier
	leases    *LeaseRegistry
	config    ServiceConfig

	mu     sync.Mutex
	active map[string]*RunHandle
}

func NewBackupService(
	logger logrus.FieldLogger,
	items []Item,
	ledger RunLedger,
	manifests ManifestStore,
	transfer FileTransfer,
	notifier Notifier,
	config ServiceConfig,
) *BackupService {
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.Retry.MaxAttempts <= 0 {
		config.Retry.MaxAttempts = DefaultMaxAttempts
	}
	if config.Retry.Delay <= 0 {
		config.Retry.Delay = DefaultRetryDelay
	}

	return &BackupService{
		logger: logger,

		items:     items,
		ledger:    ledger,
		manifests: manifests,
		resolver:  NewPathResolver(logger),
		selector:  NewDifferentialSelector(logger, ledger),
		executor:  NewCopyExecutor(logger, transfer, config.Retry),
		notifier:  notifier,
		leases:    NewLeaseRegistry(),
		config:    config,

		active: make(map[string]*RunHandle),
	}
}

// StartRun begins a run for the given backup type. Selection and baseline
// resolution happen synchronously so configuration and preflight errors
// surface here; the file pipeline then proceeds in the background and is
// observed through the returned handle.
func (s *BackupService) StartRun(ctx context.Context, backupType string, strategy Strategy) (*RunHandle, error) {
	items := s.itemsForType(backupType)
	if len(items) == 0 {
		return nil, errors.Wrapf(ErrNoItemsConfigured, "backup type %q", backupType)
	}

	token, err := s.leases.Acquire(backupType)
	if err != nil {
		return nil, err
	}

	if err := s.manifests.EnsureWritable(backupType); err != nil {
		s.leases.Release(backupType, token)
		return nil, errors.Wrap(ErrDestinationUnwritable, err.Error())
	}

	run := Run{
		Id:         NewRunId(time.Now()),
		BackupType: backupType,
		Strategy:   strategy,
		StartedAt:  time.Now().UTC(),
		Outcome:    OutcomeRunning,
	}

	ctx = appcontext.WithRunId(appcontext.WithBackupType(ctx, backupType), run.Id)
	logger := appcontext.LoggerFromContext(s.logger, ctx)

	if _, err := s.ledger.RecordRunStart(ctx, run); err != nil {
		s.leases.Release(backupType, token)
		return nil, errors.Wrap(err, "unable to record run start")
	}

	resolution, err := s.resolver.Resolve(items)
	if err != nil {
		s.leases.Release(backupType, token)
		return nil, err
	}

	if len(resolution.MissingPaths) > 0 {
		logger.WithField("missing_paths", resolution.MissingPaths).
			Warn("Some configured locations do not exist")
	}

	selection, err := s.selector.Select(ctx, backupType, strategy, resolution.Candidates)
	if err != nil {
		s.leases.Release(backupType, token)
		return nil, err
	}

	run.Strategy = selection.Strategy
	run.ParentRunId = selection.ParentRunId

	dedup := NewDedupEngine(logger, s.manifests, s.config.Dedup)
	if err := dedup.BuildCache(ctx, s.ledger, backupType); err != nil {
		logger.WithError(err).Warn("Unable to build hash cache, run proceeds without deduplication")
	}

	logger.WithFields(logrus.Fields{
		"strategy":   run.Strategy.String(),
		"candidates": len(selection.Candidates),
		"downgraded": selection.Downgraded,
	}).Info("Starting backup run")

	handle := newRunHandle(run, NewProgressTracker(run.Id, backupType, len(selection.Candidates)))

	s.mu.Lock()
	s.active[backupType] = handle
	s.mu.Unlock()

	go s.execute(ctx, logger, handle, run, selection, dedup, token)

	return handle, nil
}

// ActiveRuns returns read-only progress snapshots of currently executing
// runs.
func (s *BackupService) ActiveRuns() []ProgressSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshots := make([]ProgressSnapshot, 0, len(s.active))
	for _, handle := range s.active {
		snapshots = append(snapshots, handle.Progress())
	}

	return snapshots
}

func (s *BackupService) itemsForType(backupType string) []Item {
	var items []Item
	for _, item := range s.items {
		if item.Type == backupType {
			items = append(items, item)
		}
	}

	return items
}

func (s *BackupService) execute(
	ctx context.Context,
	logger logrus.FieldLogger,
	handle *RunHandle,
	run Run,
	selection Selection,
	dedup *DedupEngine,
	token string,
) {
	builder := NewManifestBuilder(run.Id, run.BackupType)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var abortMu sync.Mutex
	var abortErr error

	jobs := make(chan Candidate)

	wg := &sync.WaitGroup{}
	wg.Add(s.config.Workers)

	for i := 0; i < s.config.Workers; i++ {
		go func() {
			defer wg.Done()

			for candidate := range jobs {
				if runCtx.Err() != nil {
					continue
				}

				err := s.processCandidate(runCtx, run, candidate, dedup, builder, handle.progress)
				if err != nil && !s.config.Retry.ContinueOnFailure {
					abortMu.Lock()
					if abortErr == nil {
						abortErr = err
					}
					abortMu.Unlock()

					cancel()
				}
			}
		}()
	}

	for _, candidate := range selection.Candidates {
		jobs <- candidate
	}
	close(jobs)

	wg.Wait()

	finishedAt := time.Now().UTC()
	run.FinishedAt = &finishedAt
	run.DurationSeconds = finishedAt.Sub(run.StartedAt).Seconds()
	run.FileCount, run.TotalBytes = builder.Totals()

	failed := builder.Failed()

	switch {
	case abortErr != nil:
		run.Outcome = OutcomeAborted
	case builder.Len() == 0 || len(failed) == 0:
		run.Outcome = OutcomeSucceeded
	case len(failed) == builder.Len():
		run.Outcome = OutcomeFailed
	default:
		run.Outcome = OutcomePartiallyFailed
	}

	manifest := builder.Build()

	if err := s.manifests.Save(ctx, manifest); err != nil {
		logger.WithError(err).Error("Unable to persist manifest, run cannot be trusted")

		run.Outcome = OutcomeAborted
		s.seal(handle, run, nil, errors.Wrap(err, "unable to persist manifest"), failed, token)
		return
	}

	if err := s.ledger.CommitRun(ctx, run); err != nil {
		logger.WithError(err).Error("Unable to commit run to ledger")

		run.Outcome = OutcomeAborted
		s.seal(handle, run, nil, errors.Wrap(err, "unable to commit run"), failed, token)
		return
	}

	logger.WithFields(logrus.Fields{
		"outcome":      run.Outcome.String(),
		"file_count":   run.FileCount,
		"total_bytes":  run.TotalBytes,
		"failed_files": len(failed),
	}).Info("Run committed")

	s.seal(handle, run, &manifest, abortErr, failed, token)
}

func (s *BackupService) processCandidate(
	ctx context.Context,
	run Run,
	candidate Candidate,
	dedup *DedupEngine,
	builder *ManifestBuilder,
	progress *ProgressTracker,
) error {
	progress.FileStarted(candidate.OriginalPath)

	hash, size, err := HashFile(candidate.OriginalPath)
	if err != nil {
		builder.Add(ManifestEntry{
			OriginalPath:  candidate.OriginalPath,
			ArchivePath:   candidate.ArchivePath,
			SizeBytes:     candidate.Size,
			LastWriteTime: candidate.ModTime,
			StorageMode:   StorageModeFailed,
			Error:         err.Error(),
		})
		progress.FileFinished(0)
		return err
	}
	candidate.Size = size

	entry, c, deduplicated := dedup.Decide(ctx, candidate, hash)
	if deduplicated {
		builder.Add(entry)
		progress.FileFinished(entry.SizeBytes)
		return nil
	}

	dst := s.manifests.BlobPath(run.BackupType, run.Id, entry.ArchivePath)

	if _, err := s.executor.Copy(ctx, candidate.OriginalPath, dst); err != nil {
		dedup.RecordFailed(hash, c)
		entry.StorageMode = StorageModeFailed
		entry.Error = err.Error()
		builder.Add(entry)
		progress.FileFinished(0)
		return err
	}

	entry.StorageMode = StorageModeStored
	builder.Add(entry)
	dedup.RecordStored(run.Id, entry, c)
	progress.FileFinished(entry.SizeBytes)

	return nil
}

// seal frees the backup type for the next run before the handle is
// released: a caller returning from Wait must be able to start a new run
// immediately.
func (s *BackupService) seal(handle *RunHandle, run Run, manifest *Manifest, err error, failed []ManifestEntry, token string) {
	s.mu.Lock()
	delete(s.active, run.BackupType)
	s.mu.Unlock()

	s.leases.Release(run.BackupType, token)

	handle.finish(run, manifest, err)

	if s.notifier != nil {
		s.notifier.RunFinished(run, runSummary(run, failed))
	}
}

// runSummary is the human-readable terminal message. Per-file failures are
// aggregated here rather than surfaced one at a time, and the list is
// never truncated.
func runSummary(run Run, failed []ManifestEntry) string {
	msg := fmt.Sprintf(
		"backup run %d (%s, %s) finished with outcome %s: %d files, %d bytes",
		run.Id, run.BackupType, run.Strategy.String(), run.Outcome.String(), run.FileCount, run.TotalBytes,
	)

	if len(failed) == 0 {
		return msg
	}

	paths := make([]string, len(failed))
	for i, entry := range failed {
		paths[i] = entry.OriginalPath
	}

	return fmt.Sprintf("%s; %d failed: %s", msg, len(failed), strings.Join(paths, ", "))
}
