package transfer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/backsnap/backsnap/pkg/domain"
	"github.com/backsnap/backsnap/pkg/util"
)

// LocalMount archives a committed run directory into a local directory as
// a single zip file. Compression internals stay behind util.ZipDirectory.
type LocalMount struct {
	root string
}

func NewLocalMount(root string) *LocalMount {
	return &LocalMount{
		root: root,
	}
}

func (m *LocalMount) archiveName(run domain.Run) string {
	return fmt.Sprintf("%s_%d.zip", run.BackupType, run.Id)
}

func (m *LocalMount) Transfer(run domain.Run, runDirectory string) (string, error) {
	if err := os.MkdirAll(m.root, 0755); err != nil {
		return "", err
	}

	target := filepath.Join(m.root, m.archiveName(run))

	if err := util.ZipDirectory(target, runDirectory); err != nil {
		return "", err
	}

	return target, nil
}

func (m *LocalMount) Remove(run domain.Run) error {
	return os.Remove(filepath.Join(m.root, m.archiveName(run)))
}
