package hardlink

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/reapertools/clonereaper/pkg/logger"
)

// FileID is a stable OS-level file identity (device ID + inode number on
// unix, volume serial + file index on windows). Two paths with equal FileIDs
// reference the same underlying stored data.
type FileID struct {
	Device uint64
	Inode  uint64
}

func (f FileID) String() string {
	return fmt.Sprintf("%d:%d", f.Device, f.Inode)
}

func (f FileID) Equal(other FileID) bool {
	return f.Device == other.Device && f.Inode == other.Inode
}

// Resolution is the outcome of collapsing hardlink aliases out of a set of
// size buckets. Links members share storage and are excluded from hashing;
// they are reported, never treated as removable duplicates.
type Resolution struct {
	// Buckets holds the remaining hashing candidates, discovery order
	// preserved, buckets reduced below two members dropped.
	Buckets map[int64][]string
	// Links maps FileID strings to the aliased paths (≥2 each).
	Links map[string][]string
	// LinkSizes maps FileID strings to the byte size of the aliased file.
	LinkSizes map[string]int64
	// SharedBytes is size × (aliases − 1) summed over all link sets.
	SharedBytes uint64
}

// Resolver is the platform capability for hardlink identity. Where the
// platform exposes no stable file identity (or the check is disabled), the
// no-op implementation passes buckets through unchanged.
type Resolver interface {
	Supported() bool
	Resolve(buckets map[int64][]string) *Resolution
}

// NewResolver selects the real or no-op resolver at startup.
func NewResolver(enabled bool) Resolver {
	if !enabled || !capabilityAvailable {
		return noopResolver{}
	}
	return &resolver{log: logger.GetLogger("hardlink")}
}

type noopResolver struct{}

func (noopResolver) Supported() bool { return false }

func (noopResolver) Resolve(buckets map[int64][]string) *Resolution {
	return &Resolution{
		Buckets:   buckets,
		Links:     map[string][]string{},
		LinkSizes: map[string]int64{},
	}
}

type resolver struct {
	log *logrus.Entry
}

func (r *resolver) Supported() bool { return true }

// Resolve partitions each bucket by file identity. Identity sets with more
// than one path are true aliases of one physical file and leave the hashing
// workload; paths whose identity cannot be read are conservatively treated
// as distinct and passed through.
func (r *resolver) Resolve(buckets map[int64][]string) *Resolution {
	out := &Resolution{
		Buckets:   make(map[int64][]string, len(buckets)),
		Links:     make(map[string][]string),
		LinkSizes: make(map[string]int64),
	}

	for size, paths := range buckets {
		ids := make(map[string]FileID, len(paths))
		counts := make(map[FileID]int, len(paths))

		for _, path := range paths {
			id, err := getFileID(path)
			if err != nil {
				r.log.WithError(err).Warnf("Could not get file identity: %q", path)
				continue
			}
			ids[path] = id
			counts[id]++
		}

		remaining := make([]string, 0, len(paths))
		for _, path := range paths {
			id, ok := ids[path]
			if !ok || counts[id] == 1 {
				// unknown identity or identity-singleton, still a candidate
				remaining = append(remaining, path)
				continue
			}

			key := id.String()
			out.Links[key] = append(out.Links[key], path)
			out.LinkSizes[key] = size
			if len(out.Links[key]) > 1 {
				out.SharedBytes += uint64(size)
			}
		}

		if len(remaining) >= 2 {
			out.Buckets[size] = remaining
		}
	}

	return out
}
