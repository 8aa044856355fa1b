// Package checksum verifies downloaded files against digests published alongside them.
package checksum

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/italolelis/batchdl/internal/sizefmt"
)

type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	MD5    Algorithm = "md5"
	CRC32  Algorithm = "crc32"
	SHA256 Algorithm = "sha256"
)

var ErrUnknownAlgorithm = errors.New("unknown checksum algorithm")

// MismatchError reports a file whose digest differs from the expected one.
type MismatchError struct {
	Path      string
	Algorithm Algorithm
	Expected  string
	Actual    string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s mismatch for %s: expected %s, got %s", e.Algorithm, e.Path, e.Expected, e.Actual)
}

// ParseAlgorithm accepts the algorithm names case-insensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(s))); a {
	case SHA1, MD5, CRC32, SHA256:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

// File digests the file at path. crc32 is rendered in decimal, every other algorithm in
// lowercase hex.
func File(path string, algo Algorithm) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat %s: %w", path, err)
	}

	buf := make([]byte, sizefmt.ChooseBufferSize(uint64(info.Size())))
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	if algo == CRC32 {
		return strconv.FormatUint(uint64(h.(hash.Hash32).Sum32()), 10), nil
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify digests the file and compares it with expected. Hex digests compare without
// regard to case or leading zeros.
func Verify(path string, algo Algorithm, expected string) error {
	actual, err := File(path, algo)
	if err != nil {
		return err
	}

	if normalize(actual) != normalize(expected) {
		return &MismatchError{Path: path, Algorithm: algo, Expected: expected, Actual: actual}
	}

	return nil
}

func normalize(digest string) string {
	d := strings.TrimLeft(strings.ToLower(strings.TrimSpace(digest)), "0")
	if d == "" {
		return "0"
	}

	return d
}

func newHash(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case SHA1:
		return sha1.New(), nil
	case MD5:
		return md5.New(), nil
	case CRC32:
		return crc32.NewIEEE(), nil
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
	}
}
