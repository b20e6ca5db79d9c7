package domain

import (
	"sync"
	"time"
)

// Throughput is recomputed once per this many processed files. It is
// purely observational and never affects control flow.
const speedRecalcInterval = 10

type ProgressSnapshot struct {
	RunId          int64   `json:"run_id"`
	BackupType     string  `json:"backup_type"`
	Percent        float64 `json:"percent"`
	CurrentFile    string  `json:"current_file"`
	SpeedMBps      float64 `json:"speed_mbps"`
	FilesProcessed int     `json:"files_processed"`
	TotalFiles     int     `json:"total_files"`
	BytesProcessed int64   `json:"bytes_processed"`
}

// ProgressTracker is the per-run aggregate counter state, constructed
// fresh for every run and guarded by a single mutex.
type ProgressTracker struct {
	mu sync.Mutex

	runId      int64
	backupType string
	startedAt  time.Time

	totalFiles     int
	filesProcessed int
	bytesProcessed int64
	currentFile    string
	speedMBps      float64
}

func NewProgressTracker(runId int64, backupType string, totalFiles int) *ProgressTracker {
	return &ProgressTracker{
		runId:      runId,
		backupType: backupType,
		startedAt:  time.Now(),
		totalFiles: totalFiles,
	}
}

func (t *ProgressTracker) FileStarted(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.currentFile = path
}

func (t *ProgressTracker) FileFinished(bytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.filesProcessed++
	t.bytesProcessed += bytes

	if t.filesProcessed%speedRecalcInterval == 0 {
		if elapsed := time.Since(t.startedAt).Seconds(); elapsed > 0 {
			t.speedMBps = float64(t.bytesProcessed) / 1e6 / elapsed
		}
	}
}

func (t *ProgressTracker) Snapshot() ProgressSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	percent := float64(100)
	if t.totalFiles > 0 {
		percent = 100 * float64(t.filesProcessed) / float64(t.totalFiles)
	}

	return ProgressSnapshot{
		RunId:          t.runId,
		BackupType:     t.backupType,
		Percent:        percent,
		CurrentFile:    t.currentFile,
		SpeedMBps:      t.speedMBps,
		FilesProcessed: t.filesProcessed,
		TotalFiles:     t.totalFiles,
		BytesProcessed: t.bytesProcessed,
	}
}
