package manifest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/italolelis/batchdl/internal/checksum"
	"github.com/italolelis/batchdl/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExpander struct {
	calls []int64
}

func (f *fakeExpander) ExpandPutioFolder(_ context.Context, id int64, destDir string) ([]transfer.Spec, error) {
	f.calls = append(f.calls, id)

	return []transfer.Spec{{Source: "putio://99", Destination: filepath.Join(destDir, "inner.mkv")}}, nil
}

func TestLoadAndSpecs(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")

	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"url": "https://example.com/files/a.bin", "sha1": "abc"},
		{"url": "https://example.com/b", "path": "sub/b.bin", "checksum": "123", "algorithm": "crc32"},
		{"url": "https://example.com/c", "path": "/abs/c.bin"},
		{"putio_folder": 7, "path": "show"}
	]`), 0o644))

	m, err := Load(path, target)
	require.NoError(t, err)

	x := &fakeExpander{}

	specs, err := m.Specs(context.Background(), x)
	require.NoError(t, err)

	assert.Equal(t, []transfer.Spec{
		{Source: "https://example.com/files/a.bin", Destination: filepath.Join(target, "a.bin")},
		{Source: "https://example.com/b", Destination: filepath.Join(target, "sub", "b.bin")},
		{Source: "https://example.com/c", Destination: "/abs/c.bin"},
		{Source: "putio://99", Destination: filepath.Join(target, "show", "inner.mkv")},
	}, specs)
	assert.Equal(t, []int64{7}, x.calls)

	exp, err := m.Expectations()
	require.NoError(t, err)
	assert.Equal(t, map[string]Expectation{
		filepath.Join(target, "a.bin"):        {Algorithm: checksum.SHA1, Digest: "abc"},
		filepath.Join(target, "sub", "b.bin"): {Algorithm: checksum.CRC32, Digest: "123"},
	}, exp)
}

func TestParseRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"url": "x"}`},
		{"empty entry", `[{}]`},
		{"url and folder", `[{"url": "https://x/a", "putio_folder": 1}]`},
		{"unknown algorithm", `[{"url": "https://x/a", "checksum": "1", "algorithm": "sha512"}]`},
		{"two digests", `[{"url": "https://x/a", "sha1": "1", "checksum": "1", "algorithm": "md5"}]`},
		{"folder checksum", `[{"putio_folder": 3, "sha1": "1"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json), "/target")

			var cfgErr *transfer.ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}

func TestSpecsRejectsUnsafePaths(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"escapes target", `[{"url": "https://x/a", "path": "../../etc/passwd"}]`},
		{"no file name", `[{"url": "https://example.com/"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.json), "/target")
			require.NoError(t, err)

			_, err = m.Specs(context.Background(), nil)

			var cfgErr *transfer.ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}

func TestSpecsFolderWithoutExpander(t *testing.T) {
	m, err := Parse([]byte(`[{"putio_folder": 3}]`), "/target")
	require.NoError(t, err)

	_, err = m.Specs(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "put.io is not configured")
}
