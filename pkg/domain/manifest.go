package domain

import (
	"sync"
	"time"
)

type StorageMode string

const (
	// File bytes were copied into this run's directory
	StorageModeStored StorageMode = "stored"

	// Identical content already exists in a previous run, no bytes copied
	StorageModeDeduplicated StorageMode = "dedup_reference"

	// Transfer failed after exhausting retries
	StorageModeFailed StorageMode = "failed"
)

// ManifestEntry is one file's record within a run.
type ManifestEntry struct {
	OriginalPath  string      `json:"original_path"`
	ArchivePath   string      `json:"archive_path"`
	SizeBytes     int64       `json:"size_bytes"`
	ContentHash   string      `json:"content_hash"`
	LastWriteTime time.Time   `json:"last_write_time"`
	StorageMode   StorageMode `json:"storage_mode"`

	// Location of the referenced blob, set only for dedup_reference entries
	RefRunId       int64  `json:"ref_run_id,omitempty"`
	RefArchivePath string `json:"ref_archive_path,omitempty"`

	Error string `json:"error,omitempty"`
}

// Manifest is the authoritative record of what was actually stored in one
// run, keyed by archive path. It is write-once after commit.
type Manifest struct {
	RunId      int64                    `json:"run_id"`
	BackupType string                   `json:"backup_type"`
	CreatedAt  time.Time                `json:"created_at"`
	Entries    map[string]ManifestEntry `json:"entries"`
}

// ManifestBuilder accumulates entries as the pipeline produces decisions.
// It is the only writer of a run's manifest.
type ManifestBuilder struct {
	mu       sync.Mutex
	manifest Manifest
}

func NewManifestBuilder(runId int64, backupType string) *ManifestBuilder {
	return &ManifestBuilder{
		manifest: Manifest{
			RunId:      runId,
			BackupType: backupType,
			CreatedAt:  time.Now().UTC(),
			Entries:    make(map[string]ManifestEntry),
		},
	}
}

func (b *ManifestBuilder) Add(entry ManifestEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.manifest.Entries[entry.ArchivePath] = entry
}

func (b *ManifestBuilder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.manifest.Entries)
}

// Totals returns file count and byte size summed over entries that did not
// fail, matching what the run row must record.
func (b *ManifestBuilder) Totals() (files int64, bytes int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entry := range b.manifest.Entries {
		if entry.StorageMode == StorageModeFailed {
			continue
		}

		files++
		bytes += entry.SizeBytes
	}

	return files, bytes
}

func (b *ManifestBuilder) Failed() []ManifestEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	var failed []ManifestEntry
	for _, entry := range b.manifest.Entries {
		if entry.StorageMode == StorageModeFailed {
			failed = append(failed, entry)
		}
	}

	return failed
}

func (b *ManifestBuilder) Build() Manifest {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.manifest
}
