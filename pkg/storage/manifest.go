package storage

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/backsnap/backsnap/pkg/domain"
)

const manifestSuffix = ".manifest.json"

// ManifestStore owns the on-disk destination layout:
//
//     <root>/<backup_type>/<run_id>/<archive_path>    stored blobs
//     <root>/<backup_type>/<run_id>.manifest.json     manifest document
//
// Manifests are persisted atomically and are write-once; restore and
// compare tooling reads them without going through the core.
type ManifestStore struct {
	root string
}

func NewManifestStore(root string) *ManifestStore {
	return &ManifestStore{
		root: root,
	}
}

func (s *ManifestStore) RunDirectory(backupType string, runId int64) string {
	return filepath.Join(s.root, backupType, strconv.FormatInt(runId, 10))
}

func (s *ManifestStore) BlobPath(backupType string, runId int64, archivePath string) string {
	return filepath.Join(s.RunDirectory(backupType, runId), filepath.FromSlash(archivePath))
}

func (s *ManifestStore) manifestPath(backupType string, runId int64) string {
	return filepath.Join(s.root, backupType, strconv.FormatInt(runId, 10)+manifestSuffix)
}

// EnsureWritable probes the destination before any selection happens.
func (s *ManifestStore) EnsureWritable(backupType string) error {
	dir := filepath.Join(s.root, backupType)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "unable to create destination directory %q", dir)
	}

	probe := filepath.Join(dir, ".write_probe")

	f, err := os.Create(probe)
	if err != nil {
		return errors.Wrapf(err, "destination directory %q is not writable", dir)
	}
	f.Close()

	return os.Remove(probe)
}

// Save persists the manifest exactly once. The write goes through a
// temporary file and a rename, so readers see either the complete document
// or nothing.
func (s *ManifestStore) Save(ctx context.Context, manifest domain.Manifest) error {
	path := s.manifestPath(manifest.BackupType, manifest.RunId)

	if _, err := os.Stat(path); err == nil {
		return errors.Errorf("manifest for run %d already exists", manifest.RunId)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "unable to create manifest directory")
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to encode manifest")
	}

	tmp := path + ".tmp"

	if err := ioutil.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "unable to write manifest")
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "unable to finalize manifest")
	}

	return nil
}

func (s *ManifestStore) Load(ctx context.Context, backupType string, runId int64) (*domain.Manifest, error) {
	data, err := ioutil.ReadFile(s.manifestPath(backupType, runId))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read manifest for run %d", runId)
	}

	var manifest domain.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Wrapf(err, "unable to decode manifest for run %d", runId)
	}

	return &manifest, nil
}
