package dedupe

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reapertools/clonereaper/pkg/hardlink"
	"github.com/reapertools/clonereaper/pkg/hasher"
	"github.com/reapertools/clonereaper/pkg/scanner"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newEngine(t *testing.T, chunkSize int, workers int, partial bool) *Engine {
	t.Helper()
	h, err := hasher.New("sha256", chunkSize)
	require.NoError(t, err)
	return NewEngine(h, workers, partial)
}

func scan(t *testing.T, dir string, minSize int64) *scanner.Result {
	t.Helper()
	res, err := scanner.New(minSize, nil).Scan(dir)
	require.NoError(t, err)
	return res
}

func singleSet(t *testing.T, results *Results) []string {
	t.Helper()
	require.Len(t, results.Duplicates, 1)
	for _, paths := range results.Duplicates {
		return paths
	}
	return nil
}

func TestRun_IdenticalContentGrouped(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a", strings.Repeat("x", 100))
	b := writeFile(t, dir, "b", strings.Repeat("x", 100))
	writeFile(t, dir, "c", strings.Repeat("y", 100))

	e := newEngine(t, 64, 2, false)
	results := e.Run(scan(t, dir, 0), hardlink.NewResolver(false))

	set := singleSet(t, results)
	assert.ElementsMatch(t, []string{a, b}, set)
	assert.EqualValues(t, 100, results.WastedBytes)
	assert.EqualValues(t, 1, results.DuplicateCount())
}

func TestRun_DifferentSizesNeverHashed(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a", strings.Repeat("x", 50))
	writeFile(t, dir, "b", strings.Repeat("x", 51))

	e := newEngine(t, 64, 2, true)
	results := e.Run(scan(t, dir, 0), hardlink.NewResolver(false))

	assert.Empty(t, results.Duplicates, "size bucketing alone must prune differing sizes")
	assert.Zero(t, results.WastedBytes)
}

func TestRun_EmptyFilesAreDuplicates(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a", "")
	b := writeFile(t, dir, "b", "")

	for _, partial := range []bool{false, true} {
		e := newEngine(t, 64, 2, partial)
		results := e.Run(scan(t, dir, 0), hardlink.NewResolver(false))

		set := singleSet(t, results)
		assert.ElementsMatch(t, []string{a, b}, set)
		assert.Zero(t, results.WastedBytes, "empty duplicates waste no space")
	}
}

func TestRun_PartialCollisionNotADuplicate(t *testing.T) {
	dir := t.TempDir()
	// identical first chunk (8 bytes), divergent tails of equal length
	writeFile(t, dir, "a", "prefix00-tail-one")
	writeFile(t, dir, "b", "prefix00-tail-two")

	e := newEngine(t, 8, 2, true)
	results := e.Run(scan(t, dir, 0), hardlink.NewResolver(false))

	assert.Empty(t, results.Duplicates,
		"a partial-hash match is a filter, never a final verdict")
}

func TestRun_PartialPrecheckIsSemanticallyNeutral(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a", strings.Repeat("q", 40))
	writeFile(t, dir, "b", strings.Repeat("q", 40))
	writeFile(t, dir, "c", strings.Repeat("r", 40))
	writeFile(t, dir, "d", "prefix00-tail-one")
	writeFile(t, dir, "e", "prefix00-tail-two")
	writeFile(t, dir, "f", "")
	writeFile(t, dir, "g", "")

	scanRes := scan(t, dir, 0)

	withPartial := newEngine(t, 8, 2, true).Run(scanRes, hardlink.NewResolver(false))
	without := newEngine(t, 8, 2, false).Run(scanRes, hardlink.NewResolver(false))

	assert.Equal(t, without.Duplicates, withPartial.Duplicates)
	assert.Equal(t, without.WastedBytes, withPartial.WastedBytes)
}

func TestRun_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a", strings.Repeat("x", 100))
	writeFile(t, dir, "b", strings.Repeat("x", 100))
	writeFile(t, dir, "c", strings.Repeat("y", 100))
	writeFile(t, dir, "d", strings.Repeat("y", 100))

	e := newEngine(t, 64, 4, true)

	first := e.Run(scan(t, dir, 0), hardlink.NewResolver(false))
	second := e.Run(scan(t, dir, 0), hardlink.NewResolver(false))

	assert.Equal(t, first.Duplicates, second.Duplicates)
	assert.Equal(t, first.WastedBytes, second.WastedBytes)
}

func TestRun_UnreadableFilesExcluded(t *testing.T) {
	dir := t.TempDir()
	gone1 := filepath.Join(dir, "gone1")
	gone2 := filepath.Join(dir, "gone2")

	// simulate files that vanished between scan and hashing
	scanRes := &scanner.Result{Buckets: map[int64][]string{10: {gone1, gone2}}}

	e := newEngine(t, 64, 2, false)
	results := e.Run(scanRes, hardlink.NewResolver(false))

	assert.Empty(t, results.Duplicates,
		"files sharing a read failure are never duplicates of each other")
	assert.EqualValues(t, 2, results.Skipped)
}

func TestRun_VanishedFileDoesNotCorruptSet(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a", strings.Repeat("x", 30))
	b := writeFile(t, dir, "b", strings.Repeat("x", 30))
	gone := filepath.Join(dir, "gone")

	scanRes := &scanner.Result{Buckets: map[int64][]string{30: {a, b, gone}}}

	e := newEngine(t, 64, 2, false)
	results := e.Run(scanRes, hardlink.NewResolver(false))

	set := singleSet(t, results)
	assert.Equal(t, []string{a, b}, set)
	assert.EqualValues(t, 1, results.Skipped)
}

func TestRun_MemberOrderFollowsDiscovery(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "m", "same-bytes")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a"), 0o755))
	b := writeFile(t, dir, filepath.Join("a", "first"), "same-bytes")
	c := writeFile(t, dir, "z", "same-bytes")

	e := newEngine(t, 64, 2, false)

	first := singleSet(t, e.Run(scan(t, dir, 0), hardlink.NewResolver(false)))
	second := singleSet(t, e.Run(scan(t, dir, 0), hardlink.NewResolver(false)))

	// members come out in walk discovery order, stable across runs
	assert.ElementsMatch(t, []string{a, b, c}, first)
	assert.Equal(t, first, second)
}

func TestRun_WastedSpaceAccounting(t *testing.T) {
	dir := t.TempDir()
	// set of three 20-byte files and a pair of 7-byte files
	writeFile(t, dir, "a", strings.Repeat("x", 20))
	writeFile(t, dir, "b", strings.Repeat("x", 20))
	writeFile(t, dir, "c", strings.Repeat("x", 20))
	writeFile(t, dir, "d", "7bytes!")
	writeFile(t, dir, "e", "7bytes!")

	e := newEngine(t, 64, 2, false)
	results := e.Run(scan(t, dir, 0), hardlink.NewResolver(false))

	require.Len(t, results.Duplicates, 2)
	assert.EqualValues(t, 20*2+7, results.WastedBytes)
	assert.EqualValues(t, 3, results.DuplicateCount())
}

func TestRun_SingleWorkerMatchesParallel(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 6; i++ {
		writeFile(t, dir, string(rune('a'+i)), strings.Repeat("x", 64))
	}

	serial := newEngine(t, 16, 1, true).Run(scan(t, dir, 0), hardlink.NewResolver(false))
	parallel := newEngine(t, 16, 8, true).Run(scan(t, dir, 0), hardlink.NewResolver(false))

	assert.Equal(t, serial.Duplicates, parallel.Duplicates)
	assert.Equal(t, serial.WastedBytes, parallel.WastedBytes)
}
