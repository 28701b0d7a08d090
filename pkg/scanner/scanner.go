package scanner

import (
	"io/fs"
	"os"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/reapertools/clonereaper/pkg/logger"
)

// File is a single regular file observed during the walk.
type File struct {
	Path         string
	Size         int64
	ModifiedTime time.Time
}

// Result holds the size buckets produced by a scan. Every bucket has at
// least two members; singleton sizes cannot contain duplicates and are
// pruned before return. Paths within a bucket are in discovery order.
type Result struct {
	Buckets map[int64][]string
	Scanned uint64
	Skipped uint64
}

// Candidates returns the total number of paths across all buckets.
func (r *Result) Candidates() uint64 {
	var n uint64
	for _, paths := range r.Buckets {
		n += uint64(len(paths))
	}
	return n
}

type Scanner struct {
	minSize int64
	filter  *Filter
	log     *logrus.Entry
}

func New(minSize int64, filter *Filter) *Scanner {
	return &Scanner{
		minSize: minSize,
		filter:  filter,
		log:     logger.GetLogger("scanner"),
	}
}

// Scan enumerates regular files reachable from root and groups them by exact
// byte size. Per-file failures are skipped (vanished files silently, other
// errors with a warning and a counter); only an unreadable root is fatal.
// Symbolic links are never followed into subtrees; a link to a regular file
// is sized via its target.
func (s *Scanner) Scan(root string) (*Result, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "stat root: %s", root)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("not a directory: %s", root)
	}

	res := &Result{Buckets: make(map[int64][]string)}

	// single walker with sorted entries keeps discovery order stable, which
	// duplicate-set member ordering depends on
	conf := fastwalk.Config{
		Follow:     false,
		NumWorkers: 1,
		Sort:       fastwalk.SortLexical,
	}

	walkErr := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if errors.Is(err, fs.ErrNotExist) {
				s.log.Debugf("Path vanished during scan: %q", path)
				return nil
			}
			s.log.WithError(err).Warnf("Could not access: %q", path)
			res.Skipped++
			return nil
		}

		if d.IsDir() {
			return nil
		}

		fi, ok := s.statEntry(path, d, res)
		if !ok {
			return nil
		}

		if fi.Size() < s.minSize {
			return nil
		}

		file := File{Path: path, Size: fi.Size(), ModifiedTime: fi.ModTime()}
		if s.filter != nil && s.filter.Excluded(file) {
			return nil
		}

		res.Buckets[file.Size] = append(res.Buckets[file.Size], path)
		res.Scanned++
		return nil
	})
	if walkErr != nil {
		return nil, errors.Wrapf(walkErr, "walk root: %s", root)
	}

	// prune singleton sizes, a unique size cannot be a duplicate
	for size, paths := range res.Buckets {
		if len(paths) < 2 {
			delete(res.Buckets, size)
		}
	}

	s.log.Debugf("Scanned %d files (skipped %d), %d sizes with potential duplicates",
		res.Scanned, res.Skipped, len(res.Buckets))

	return res, nil
}

// statEntry resolves the file info for a walk entry. Links to regular files
// are resolved via the target; anything that is not (or does not resolve to)
// a regular file is dropped.
func (s *Scanner) statEntry(path string, d fs.DirEntry, res *Result) (os.FileInfo, bool) {
	if d.Type()&fs.ModeSymlink != 0 {
		fi, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.log.Debugf("Link target vanished during scan: %q", path)
				return nil, false
			}
			s.log.WithError(err).Warnf("Could not resolve link: %q", path)
			res.Skipped++
			return nil, false
		}
		if !fi.Mode().IsRegular() {
			return nil, false
		}
		return fi, true
	}

	if !d.Type().IsRegular() {
		return nil, false
	}

	fi, err := d.Info()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Debugf("File vanished during scan: %q", path)
			return nil, false
		}
		s.log.WithError(err).Warnf("Could not stat: %q", path)
		res.Skipped++
		return nil, false
	}

	return fi, true
}
