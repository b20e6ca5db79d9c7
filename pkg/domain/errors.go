package domain

import "github.com/pkg/errors"

var (
	ErrAlreadyRunning        = errors.New("a run for this backup type is already active")
	ErrDestinationUnwritable = errors.New("backup destination is not writable")
	ErrNoItemsConfigured     = errors.New("no backup items configured for this type")
	ErrRunNotCommitted       = errors.New("run is not committed yet")
)
