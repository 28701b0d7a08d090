package hasher

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// Mode selects how much of a file's content is digested.
type Mode int

const (
	// Partial hashes only the first chunk of the file. It is a cheap
	// pre-filter and never authoritative for equality.
	Partial Mode = iota + 1
	// Full hashes the entire content stream and is authoritative.
	Full
)

func (m Mode) String() string {
	if m == Partial {
		return "partial"
	}
	return "full"
}

// Result is the outcome of hashing a single path. A non-nil Err marks the
// file as unavailable for the run; it must never be treated as matching
// anything, including other unavailable files.
type Result struct {
	Path   string
	Digest string
	Err    error
}

func (r Result) Unavailable() bool {
	return r.Err != nil
}

var algorithms = map[string]func() hash.Hash{
	"sha256": sha256.New,
	"sha1":   sha1.New,
	"sha512": sha512.New,
	"md5":    md5.New,
}

// Algorithms returns the supported algorithm names, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type Hasher struct {
	algo      string
	newHash   func() hash.Hash
	chunkSize int
}

// New returns a Hasher for the named algorithm reading in chunkSize byte
// chunks. Compute is safe to call concurrently for disjoint paths.
func New(algo string, chunkSize int) (*Hasher, error) {
	newHash, ok := algorithms[algo]
	if !ok {
		return nil, errors.Errorf("unknown hash algorithm: %q", algo)
	}

	if chunkSize <= 0 {
		return nil, errors.Errorf("invalid chunk size: %d", chunkSize)
	}

	return &Hasher{
		algo:      algo,
		newHash:   newHash,
		chunkSize: chunkSize,
	}, nil
}

func (h *Hasher) Algorithm() string {
	return h.algo
}

// Compute digests the file at path. In Partial mode only the first chunk is
// read; an empty file yields an empty partial digest rather than an error.
// Read failures produce an unavailable Result carrying the path.
func (h *Hasher) Compute(path string, mode Mode) Result {
	f, err := os.Open(path)
	if err != nil {
		return Result{Path: path, Err: err}
	}
	defer f.Close()

	d := h.newHash()
	buf := make([]byte, h.chunkSize)

	if mode == Partial {
		n, err := io.ReadFull(f, buf)
		if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
			return Result{Path: path, Err: err}
		}
		if n == 0 {
			// defined empty-content digest for empty files
			return Result{Path: path, Digest: ""}
		}
		d.Write(buf[:n])
	} else {
		if _, err := io.CopyBuffer(d, f, buf); err != nil {
			return Result{Path: path, Err: err}
		}
	}

	return Result{Path: path, Digest: hex.EncodeToString(d.Sum(nil))}
}
