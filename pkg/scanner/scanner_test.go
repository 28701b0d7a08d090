package scanner

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestScan_BucketsBySizeExactly(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", strings.Repeat("x", 100))
	b := writeFile(t, dir, "b.txt", strings.Repeat("y", 100))
	writeFile(t, dir, "c.txt", strings.Repeat("z", 50))
	writeFile(t, dir, "d.txt", strings.Repeat("z", 51))

	res, err := New(0, nil).Scan(dir)
	require.NoError(t, err)

	// only the 100-byte size has more than one member
	require.Len(t, res.Buckets, 1)
	assert.ElementsMatch(t, []string{a, b}, res.Buckets[100])
}

func TestScan_SingletonSizesPruned(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one", "a")
	writeFile(t, dir, "two", "bb")
	writeFile(t, dir, "three", "ccc")

	res, err := New(0, nil).Scan(dir)
	require.NoError(t, err)
	assert.Empty(t, res.Buckets)
	assert.EqualValues(t, 3, res.Scanned)
}

func TestScan_MinSizeThreshold(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "small1", "xx")
	writeFile(t, dir, "small2", "yy")
	big1 := writeFile(t, dir, "big1", strings.Repeat("x", 10))
	big2 := writeFile(t, dir, "big2", strings.Repeat("y", 10))

	res, err := New(5, nil).Scan(dir)
	require.NoError(t, err)

	require.Len(t, res.Buckets, 1)
	assert.ElementsMatch(t, []string{big1, big2}, res.Buckets[10])
}

func TestScan_RecursesSubdirectories(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a", "same")
	b := writeFile(t, dir, filepath.Join("sub", "deep", "b"), "same")

	res, err := New(0, nil).Scan(dir)
	require.NoError(t, err)

	require.Len(t, res.Buckets, 1)
	assert.ElementsMatch(t, []string{a, b}, res.Buckets[4])
}

func TestScan_MissingRootFatal(t *testing.T) {
	_, err := New(0, nil).Scan(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestScan_RootIsFileFatal(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "file", "x")

	_, err := New(0, nil).Scan(path)
	assert.Error(t, err)
}

func TestScan_DoesNotFollowDirectorySymlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires elevation on windows")
	}

	dir := t.TempDir()
	writeFile(t, dir, filepath.Join("real", "a"), "same")
	writeFile(t, dir, filepath.Join("real", "b"), "same")
	require.NoError(t, os.Symlink(filepath.Join(dir, "real"), filepath.Join(dir, "alias")))

	res, err := New(0, nil).Scan(dir)
	require.NoError(t, err)

	// the aliased subtree must not double the candidates
	require.Len(t, res.Buckets, 1)
	assert.Len(t, res.Buckets[4], 2)
}

func TestScan_FileSymlinkSizedViaTarget(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires elevation on windows")
	}

	dir := t.TempDir()
	target := writeFile(t, dir, "target", "content!")
	writeFile(t, dir, "other", "content?")
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Symlink(target, link))

	res, err := New(0, nil).Scan(dir)
	require.NoError(t, err)

	require.Len(t, res.Buckets, 1)
	assert.Len(t, res.Buckets[8], 3, "link sized via its 8-byte target")
}

func TestScan_DiscoveryOrderIsStable(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c", "a", "b"} {
		writeFile(t, dir, name, "equal-size")
	}

	first, err := New(0, nil).Scan(dir)
	require.NoError(t, err)
	second, err := New(0, nil).Scan(dir)
	require.NoError(t, err)

	assert.Equal(t, first.Buckets, second.Buckets)
}
