package domain

import (
	"sync"

	"github.com/google/uuid"
)

// LeaseRegistry enforces at most one active run per backup type. The
// baseline query and the differential selection are not safe under
// concurrent runs of the same type.
type LeaseRegistry struct {
	mu     sync.Mutex
	active map[string]string
}

func NewLeaseRegistry() *LeaseRegistry {
	return &LeaseRegistry{
		active: make(map[string]string),
	}
}

func (r *LeaseRegistry) Acquire(backupType string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[backupType]; ok {
		return "", ErrAlreadyRunning
	}

	token := uuid.New().String()
	r.active[backupType] = token

	return token, nil
}

func (r *LeaseRegistry) Release(backupType, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active[backupType] == token {
		delete(r.active, backupType)
	}
}
