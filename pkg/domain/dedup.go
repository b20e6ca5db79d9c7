package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// BlobRef points at a stored copy of some content within a previous run.
type BlobRef struct {
	RunId       int64
	ArchivePath string
}

// HashCache maps content hash to the most recent stored location observed
// within the lookback window. It is rebuilt at the start of every run and
// never persisted: it is a read-time projection over historical manifests.
type HashCache struct {
	mu   sync.RWMutex
	refs map[string]BlobRef
}

func NewHashCache() *HashCache {
	return &HashCache{
		refs: make(map[string]BlobRef),
	}
}

func (c *HashCache) Lookup(hash string) (BlobRef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ref, ok := c.refs[hash]
	return ref, ok
}

func (c *HashCache) Insert(hash string, ref BlobRef) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.refs[hash] = ref
}

func (c *HashCache) Remove(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.refs, hash)
}

func (c *HashCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.refs)
}

// claim is a single-owner reservation of a content hash within a run. The
// first worker to miss the cache copies the bytes; workers holding
// identical content wait for that outcome instead of copying it again.
type claim struct {
	done chan struct{}
	ref  BlobRef
	ok   bool
}

// DedupEngine decides per file whether to store bytes or reference an
// identical blob from a previous run. It is strictly additive to
// correctness: a missing referenced blob falls back to a normal store,
// never to a dangling reference.
type DedupEngine struct {
	logger logrus.FieldLogger
	store  ManifestStore
	config DedupConfig

	backupType string

	// mu makes the cache lookup and the claim reservation one atomic step
	mu      sync.Mutex
	cache   *HashCache
	pending map[string]*claim
}

func NewDedupEngine(logger logrus.FieldLogger, store ManifestStore, config DedupConfig) *DedupEngine {
	if config.LookbackRuns <= 0 {
		config.LookbackRuns = DefaultLookbackRuns
	}

	return &DedupEngine{
		logger:  logger,
		store:   store,
		config:  config,
		cache:   NewHashCache(),
		pending: make(map[string]*claim),
	}
}

// BuildCache indexes every entry of the manifests of the most recent
// committed runs of the given type, newest wins on hash collision. Runs
// whose manifest cannot be read are skipped.
func (e *DedupEngine) BuildCache(ctx context.Context, ledger RunLedger, backupType string) error {
	e.backupType = backupType
	e.cache = NewHashCache()
	e.pending = make(map[string]*claim)

	if !e.config.Enabled {
		return nil
	}

	runs, err := ledger.RecentRuns(ctx, backupType, e.config.LookbackRuns)
	if err != nil {
		return errors.Wrap(err, "unable to query recent runs for hash cache")
	}

	// Oldest first, so later inserts overwrite earlier ones
	for i := len(runs) - 1; i >= 0; i-- {
		manifest, err := e.store.Load(ctx, backupType, runs[i].Id)
		if err != nil {
			e.logger.WithError(err).WithField("run_id", runs[i].Id).
				Debug("Manifest unavailable for hash cache, skipping run")
			continue
		}

		for _, entry := range manifest.Entries {
			switch entry.StorageMode {
			case StorageModeStored:
				e.cache.Insert(entry.ContentHash, BlobRef{RunId: manifest.RunId, ArchivePath: entry.ArchivePath})
			case StorageModeDeduplicated:
				e.cache.Insert(entry.ContentHash, BlobRef{RunId: entry.RefRunId, ArchivePath: entry.RefArchivePath})
			}
		}
	}

	e.logger.WithFields(logrus.Fields{
		"backup_type": backupType,
		"hashes":      e.cache.Len(),
		"lookback":    e.config.LookbackRuns,
	}).Debug("Hash cache built")

	return nil
}

// Decide returns the manifest entry for a candidate whose content hash is
// already known. A true last return value means the entry references an
// existing blob. Otherwise the caller owns storing the file and must
// finish with RecordStored or RecordFailed; while the claim is held,
// workers carrying the same content wait for the outcome rather than
// copying the bytes a second time.
func (e *DedupEngine) Decide(ctx context.Context, candidate Candidate, hash string) (ManifestEntry, *claim, bool) {
	entry := ManifestEntry{
		OriginalPath:  candidate.OriginalPath,
		ArchivePath:   candidate.ArchivePath,
		SizeBytes:     candidate.Size,
		ContentHash:   hash,
		LastWriteTime: candidate.ModTime,
	}

	if !e.config.Enabled {
		return entry, nil, false
	}

	for {
		e.mu.Lock()

		if ref, ok := e.cache.Lookup(hash); ok {
			e.mu.Unlock()

			if e.blobExists(ref) {
				return referenceEntry(entry, ref), nil, true
			}

			// Historical data may have been deleted since the manifest was
			// written, so a cache hit is trusted only while the blob is
			// still present.
			e.logger.WithFields(logrus.Fields{
				"path":     candidate.OriginalPath,
				"ref_run":  ref.RunId,
				"ref_path": ref.ArchivePath,
			}).Warn("Referenced blob is missing, storing file normally")

			e.mu.Lock()
			if current, ok := e.cache.Lookup(hash); ok && current == ref {
				e.cache.Remove(hash)
			}
			e.mu.Unlock()

			continue
		}

		if c, ok := e.pending[hash]; ok {
			e.mu.Unlock()

			select {
			case <-ctx.Done():
				return entry, nil, false
			case <-c.done:
			}

			if c.ok {
				return referenceEntry(entry, c.ref), nil, true
			}

			// The owner's copy failed, one of the waiters takes over
			continue
		}

		c := &claim{done: make(chan struct{})}
		e.pending[hash] = c
		e.mu.Unlock()

		return entry, c, false
	}
}

func (e *DedupEngine) blobExists(ref BlobRef) bool {
	_, err := os.Stat(e.store.BlobPath(e.backupType, ref.RunId, ref.ArchivePath))
	return err == nil
}

func referenceEntry(entry ManifestEntry, ref BlobRef) ManifestEntry {
	entry.StorageMode = StorageModeDeduplicated
	entry.RefRunId = ref.RunId
	entry.RefArchivePath = ref.ArchivePath

	return entry
}

// RecordStored publishes a just-stored blob: it becomes visible to later
// files within the same run and releases workers waiting on the claim.
func (e *DedupEngine) RecordStored(runId int64, entry ManifestEntry, c *claim) {
	if !e.config.Enabled {
		return
	}

	ref := BlobRef{RunId: runId, ArchivePath: entry.ArchivePath}

	e.mu.Lock()
	e.cache.Insert(entry.ContentHash, ref)

	if c != nil {
		delete(e.pending, entry.ContentHash)
		c.ref = ref
		c.ok = true
		close(c.done)
	}
	e.mu.Unlock()
}

// RecordFailed releases a claim whose copy did not complete so that one of
// the waiters can store the content itself.
func (e *DedupEngine) RecordFailed(hash string, c *claim) {
	if c == nil {
		return
	}

	e.mu.Lock()
	delete(e.pending, hash)
	c.ok = false
	close(c.done)
	e.mu.Unlock()
}

// HashFile computes the streamed content digest of a file. The file is
// never held in memory as a whole.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, errors.Wrapf(err, "unable to open %q for hashing", path)
	}
	defer f.Close()

	h := sha256.New()

	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, errors.Wrapf(err, "unable to hash %q", path)
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}
