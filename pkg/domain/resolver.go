package domain

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// reservedNames are device names that cannot be opened on the host
// platform. Any path with such a segment is recorded as skipped, never
// attempted.
var reservedNames = map[string]struct{}{}

func init() {
	names := []string{"NUL", "CON", "PRN", "AUX"}
	for _, digit := range []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"} {
		names = append(names, "COM"+digit, "LPT"+digit)
	}

	for _, name := range names {
		reservedNames[name] = struct{}{}
	}
}

// Candidate is one resolved file, tagged with its owning item category.
type Candidate struct {
	OriginalPath string

	// Relative location inside the run's storage, slash-separated
	ArchivePath string

	Category string
	Size     int64
	ModTime  time.Time
}

type Resolution struct {
	Candidates []Candidate

	// Configured locations that do not exist, aggregated and never truncated
	MissingPaths []string

	// Paths skipped due to reserved device name segments
	SkippedReserved []string
}

// PathResolver expands configured items into concrete, existing filesystem
// entries. It has no side effects beyond filesystem reads.
type PathResolver struct {
	logger logrus.FieldLogger
}

func NewPathResolver(logger logrus.FieldLogger) *PathResolver {
	return &PathResolver{
		logger: logger,
	}
}

func (r *PathResolver) Resolve(items []Item) (Resolution, error) {
	var res Resolution

	for _, item := range items {
		for _, source := range item.Sources {
			info, err := os.Stat(source)
			if err != nil {
				res.MissingPaths = append(res.MissingPaths, source)
				continue
			}

			if !info.IsDir() {
				r.appendFile(&res, item, source, filepath.Base(source), info)
				continue
			}

			err = filepath.Walk(source, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}

				if path == source {
					return nil
				}

				rel, err := filepath.Rel(source, path)
				if err != nil {
					return err
				}

				if info.IsDir() {
					if r.excluded(item, info.Name()) {
						return filepath.SkipDir
					}
					return nil
				}

				r.appendFile(&res, item, path, rel, info)
				return nil
			})
			if err != nil {
				return res, errors.Wrapf(err, "unable to walk source %q", source)
			}
		}
	}

	return res, nil
}

func (r *PathResolver) appendFile(res *Resolution, item Item, path, rel string, info os.FileInfo) {
	if hasReservedSegment(rel) {
		r.logger.WithField("path", path).Warn("Skipping path with reserved device name")
		res.SkippedReserved = append(res.SkippedReserved, path)
		return
	}

	if r.excluded(item, info.Name()) {
		return
	}

	res.Candidates = append(res.Candidates, Candidate{
		OriginalPath: path,
		ArchivePath:  filepath.ToSlash(filepath.Join(item.Name, rel)),
		Category:     item.Name,
		Size:         info.Size(),
		ModTime:      info.ModTime(),
	})
}

func (r *PathResolver) excluded(item Item, name string) bool {
	for _, pattern := range item.Exclude {
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}

	return false
}

func hasReservedSegment(rel string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		if _, ok := reservedNames[strings.ToUpper(segment)]; ok {
			return true
		}
	}

	return false
}
