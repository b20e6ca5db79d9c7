package domain

import "sync"

// RunHandle is the observer side of an executing run. Progress may be
// polled while the run is active; the sealed run and its manifest become
// available once the run finishes.
type RunHandle struct {
	progress *ProgressTracker

	mu       sync.Mutex
	run      Run
	manifest *Manifest
	err      error
	done     chan struct{}
}

func newRunHandle(run Run, progress *ProgressTracker) *RunHandle {
	return &RunHandle{
		progress: progress,
		run:      run,
		done:     make(chan struct{}),
	}
}

func (h *RunHandle) Progress() ProgressSnapshot {
	return h.progress.Snapshot()
}

// Wait blocks until the run is sealed and returns the final run record.
func (h *RunHandle) Wait() (Run, error) {
	<-h.done

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.run, h.err
}

// Manifest is available only after the run has been committed.
func (h *RunHandle) Manifest() (*Manifest, error) {
	select {
	case <-h.done:
	default:
		return nil, ErrRunNotCommitted
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.manifest == nil {
		if h.err != nil {
			return nil, h.err
		}
		return nil, ErrRunNotCommitted
	}

	return h.manifest, nil
}

func (h *RunHandle) finish(run Run, manifest *Manifest, err error) {
	h.mu.Lock()
	h.run = run
	h.manifest = manifest
	h.err = err
	h.mu.Unlock()

	close(h.done)
}
