package hasher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNew_UnknownAlgorithm(t *testing.T) {
	_, err := New("crc32", 1024)
	assert.Error(t, err)
}

func TestNew_InvalidChunkSize(t *testing.T) {
	_, err := New("sha256", 0)
	assert.Error(t, err)
}

func TestCompute_FullKnownDigest(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "abc.txt", "abc")

	h, err := New("sha256", 64)
	require.NoError(t, err)

	r := h.Compute(path, Full)
	require.False(t, r.Unavailable())
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", r.Digest)
	assert.Equal(t, path, r.Path)
}

func TestCompute_PartialOnlyReadsFirstChunk(t *testing.T) {
	dir := t.TempDir()
	// same first 8 bytes, different tails
	a := writeFile(t, dir, "a", "prefix00-tail-one")
	b := writeFile(t, dir, "b", "prefix00-tail-two")

	h, err := New("sha256", 8)
	require.NoError(t, err)

	ra := h.Compute(a, Partial)
	rb := h.Compute(b, Partial)
	require.False(t, ra.Unavailable())
	require.False(t, rb.Unavailable())
	assert.Equal(t, ra.Digest, rb.Digest, "identical first chunk must yield identical partial digest")

	fa := h.Compute(a, Full)
	fb := h.Compute(b, Full)
	assert.NotEqual(t, fa.Digest, fb.Digest, "differing tails must yield differing full digests")
}

func TestCompute_PartialEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty", "")

	h, err := New("sha256", 64)
	require.NoError(t, err)

	r := h.Compute(path, Partial)
	require.False(t, r.Unavailable(), "empty file is not an error in partial mode")
	assert.Equal(t, "", r.Digest)
}

func TestCompute_FullEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty", "")

	h, err := New("sha256", 64)
	require.NoError(t, err)

	r := h.Compute(path, Full)
	require.False(t, r.Unavailable())
	// sha256 of the empty stream
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", r.Digest)
}

func TestCompute_MissingFileUnavailable(t *testing.T) {
	h, err := New("sha256", 64)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "gone")
	for _, mode := range []Mode{Partial, Full} {
		r := h.Compute(path, mode)
		assert.True(t, r.Unavailable())
		assert.Equal(t, path, r.Path, "unavailable result must carry the path")
	}
}

func TestCompute_MultiChunkStream(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("x", 100)
	path := writeFile(t, dir, "big", content)

	small, err := New("sha256", 7)
	require.NoError(t, err)
	large, err := New("sha256", 4096)
	require.NoError(t, err)

	assert.Equal(t, large.Compute(path, Full).Digest, small.Compute(path, Full).Digest,
		"chunk size must not affect the full digest")
}

func TestAlgorithms(t *testing.T) {
	assert.Equal(t, []string{"md5", "sha1", "sha256", "sha512"}, Algorithms())
}
