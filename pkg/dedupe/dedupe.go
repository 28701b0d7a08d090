package dedupe

import (
	"sort"

	"github.com/scylladb/go-set/strset"
	"github.com/sirupsen/logrus"

	"github.com/reapertools/clonereaper/pkg/hardlink"
	"github.com/reapertools/clonereaper/pkg/hasher"
	"github.com/reapertools/clonereaper/pkg/logger"
	"github.com/reapertools/clonereaper/pkg/scanner"
)

// Results is the terminal output of the pipeline.
type Results struct {
	// Duplicates maps full content digest to ≥2 byte-identical paths, in
	// discovery order.
	Duplicates map[string][]string
	// SetSizes maps full digest to the byte size shared by that set.
	SetSizes map[string]int64
	// Hardlinks maps file identity to aliased paths (empty when the
	// capability is unsupported or disabled).
	Hardlinks map[string][]string
	// HardlinkSizes maps file identity to the byte size of the aliased file.
	HardlinkSizes map[string]int64
	// SharedBytes is the space already shared by hardlink aliasing.
	SharedBytes uint64
	// WastedBytes is size × (members − 1) summed over duplicate sets.
	WastedBytes uint64
	// Skipped counts files dropped due to hash read failures.
	Skipped uint64
}

// DuplicateCount returns the number of redundant copies across all sets.
func (r *Results) DuplicateCount() uint64 {
	var n uint64
	for _, paths := range r.Duplicates {
		n += uint64(len(paths) - 1)
	}
	return n
}

type candidate struct {
	path string
	size int64
}

type partialKey struct {
	size   int64
	digest string
}

// Engine orchestrates hardlink resolution and two-stage content hashing over
// size buckets. Partial hashing is a cheap pre-filter; full hashing is the
// authoritative step.
type Engine struct {
	hasher  *hasher.Hasher
	workers int
	partial bool
	log     *logrus.Entry
}

func NewEngine(h *hasher.Hasher, workers int, partialPrecheck bool) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		hasher:  h,
		workers: workers,
		partial: partialPrecheck,
		log:     logger.GetLogger("dedupe"),
	}
}

// Run executes the pipeline: hardlink resolution, optional partial-digest
// pre-check, full hashing, and grouping by full digest. Per-file hash
// failures drop that file from all duplicate consideration for the run.
func (e *Engine) Run(scan *scanner.Result, resolver hardlink.Resolver) *Results {
	results := &Results{
		Duplicates:    make(map[string][]string),
		SetSizes:      make(map[string]int64),
		Hardlinks:     make(map[string][]string),
		HardlinkSizes: make(map[string]int64),
	}

	resolution := resolver.Resolve(scan.Buckets)
	results.Hardlinks = resolution.Links
	results.HardlinkSizes = resolution.LinkSizes
	results.SharedBytes = resolution.SharedBytes

	if resolver.Supported() {
		e.log.Debugf("Hardlink check complete: %d alias sets", len(resolution.Links))
	}

	candidates := e.orderedCandidates(resolution.Buckets)
	if len(candidates) == 0 {
		return results
	}

	e.log.Debugf("Hashing %d candidates with %d workers (partial pre-check: %t)",
		len(candidates), e.workers, e.partial)

	if e.partial {
		candidates = e.partialStage(candidates, results)
		e.log.Debugf("Partial pre-check complete: %d files need full hashing", len(candidates))
	}

	e.fullStage(candidates, results)

	e.log.Debugf("Found %d duplicate sets (%d files skipped)",
		len(results.Duplicates), results.Skipped)

	return results
}

// orderedCandidates flattens buckets into a deterministic candidate list:
// sizes ascending, bucket members in discovery order.
func (e *Engine) orderedCandidates(buckets map[int64][]string) []candidate {
	sizes := make([]int64, 0, len(buckets))
	for size := range buckets {
		sizes = append(sizes, size)
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })

	var candidates []candidate
	for _, size := range sizes {
		for _, path := range buckets[size] {
			candidates = append(candidates, candidate{path: path, size: size})
		}
	}
	return candidates
}

// partialStage regroups candidates by (size, partial digest) and returns only
// members of groups that still have ≥2 entries. Everything else is proven
// unique without reading full content.
func (e *Engine) partialStage(candidates []candidate, results *Results) []candidate {
	paths := make([]string, len(candidates))
	for i, c := range candidates {
		paths[i] = c.path
	}

	digests := e.hashBatch(paths, hasher.Partial)

	groups := make(map[partialKey][]string)
	for _, c := range candidates {
		r, ok := digests[c.path]
		if !ok || r.Unavailable() {
			results.Skipped++
			continue
		}
		key := partialKey{size: c.size, digest: r.Digest}
		groups[key] = append(groups[key], c.path)
	}

	survivors := strset.New()
	for _, members := range groups {
		if len(members) > 1 {
			survivors.Add(members...)
		}
	}

	remaining := make([]candidate, 0, survivors.Size())
	for _, c := range candidates {
		if survivors.Has(c.path) {
			remaining = append(remaining, c)
		}
	}
	return remaining
}

// fullStage computes authoritative digests and groups candidates by them.
func (e *Engine) fullStage(candidates []candidate, results *Results) {
	paths := make([]string, len(candidates))
	for i, c := range candidates {
		paths[i] = c.path
	}

	digests := e.hashBatch(paths, hasher.Full)

	grouped := make(map[string][]string)
	sizes := make(map[string]int64)
	for _, c := range candidates {
		r, ok := digests[c.path]
		if !ok || r.Unavailable() {
			results.Skipped++
			continue
		}
		grouped[r.Digest] = append(grouped[r.Digest], c.path)
		sizes[r.Digest] = c.size
	}

	for digest, members := range grouped {
		if len(members) < 2 {
			continue
		}
		results.Duplicates[digest] = members
		results.SetSizes[digest] = sizes[digest]
		results.WastedBytes += uint64(sizes[digest]) * uint64(len(members)-1)
	}
}
