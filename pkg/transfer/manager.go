package transfer

import (
	"errors"

	"github.com/backsnap/backsnap/pkg/domain"
)

var (
	ErrMountDoesNotExist = errors.New("requested storage doesn't exist")
)

// Mount receives a committed run's on-disk directory and exports it to its
// storage. It reports success or failure only.
type Mount interface {
	Transfer(run domain.Run, runDirectory string) (string, error)
	Remove(run domain.Run) error
}

type Manager struct {
	mounts map[string]Mount
}

func NewManager(mounts map[string]Mount) *Manager {
	return &Manager{
		mounts: mounts,
	}
}

func (m *Manager) Transfer(storageName string, run domain.Run, runDirectory string) (string, error) {
	if mount, ok := m.mounts[storageName]; ok {
		return mount.Transfer(run, runDirectory)
	}
	return "", ErrMountDoesNotExist
}

func (m *Manager) Remove(storageName string, run domain.Run) error {
	if mount, ok := m.mounts[storageName]; ok {
		return mount.Remove(run)
	}
	return ErrMountDoesNotExist
}
