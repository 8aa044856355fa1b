// Package manifest loads the list of files a batch should download.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/italolelis/batchdl/internal/checksum"
	"github.com/italolelis/batchdl/internal/transfer"
)

// Entry is one line of a manifest. Either URL or PutioFolder is set. Path is relative to
// the target directory unless absolute; when empty it is taken from the URL.
type Entry struct {
	URL         string `json:"url,omitempty"`
	Path        string `json:"path,omitempty"`
	SHA1        string `json:"sha1,omitempty"`
	Checksum    string `json:"checksum,omitempty"`
	Algorithm   string `json:"algorithm,omitempty"`
	PutioFolder int64  `json:"putio_folder,omitempty"`
}

// Expectation is the digest a downloaded file must match.
type Expectation struct {
	Algorithm checksum.Algorithm
	Digest    string
}

// FolderExpander lists a put.io folder as transfer specs below destDir.
type FolderExpander interface {
	ExpandPutioFolder(ctx context.Context, folderID int64, destDir string) ([]transfer.Spec, error)
}

type Manifest struct {
	TargetDir string
	Entries   []Entry
}

// Load reads a JSON array of entries from path.
func Load(path, targetDir string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	return Parse(data, targetDir)
}

func Parse(data []byte, targetDir string) (*Manifest, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &transfer.ConfigError{Field: "manifest", Reason: "malformed JSON", Err: err}
	}

	for i, e := range entries {
		if err := e.validate(); err != nil {
			return nil, &transfer.ConfigError{Field: fmt.Sprintf("manifest entry %d", i), Reason: err.Error()}
		}
	}

	return &Manifest{TargetDir: targetDir, Entries: entries}, nil
}

func (e Entry) validate() error {
	switch {
	case e.URL == "" && e.PutioFolder == 0:
		return fmt.Errorf("either url or putio_folder is required")
	case e.URL != "" && e.PutioFolder != 0:
		return fmt.Errorf("url and putio_folder are mutually exclusive")
	case e.PutioFolder != 0 && (e.SHA1 != "" || e.Checksum != ""):
		return fmt.Errorf("checksums are not supported on folders")
	case e.SHA1 != "" && e.Checksum != "":
		return fmt.Errorf("sha1 and checksum are mutually exclusive")
	}

	if e.Checksum != "" {
		if _, err := checksum.ParseAlgorithm(e.Algorithm); err != nil {
			return err
		}
	}

	return nil
}

// Specs turns the entries into transfer specs, expanding put.io folders through x. x may
// be nil when the manifest has no folder entries.
func (m *Manifest) Specs(ctx context.Context, x FolderExpander) ([]transfer.Spec, error) {
	specs := make([]transfer.Spec, 0, len(m.Entries))

	for _, e := range m.Entries {
		dest, err := m.destination(e)
		if err != nil {
			return nil, err
		}

		if e.PutioFolder != 0 {
			if x == nil {
				return nil, &transfer.ConfigError{Field: "putio_folder", Reason: "put.io is not configured"}
			}

			expanded, err := x.ExpandPutioFolder(ctx, e.PutioFolder, dest)
			if err != nil {
				return nil, fmt.Errorf("failed to expand put.io folder %d: %w", e.PutioFolder, err)
			}

			specs = append(specs, expanded...)

			continue
		}

		specs = append(specs, transfer.Spec{Source: e.URL, Destination: dest})
	}

	return specs, nil
}

// Expectations maps destinations to the digest they must match.
func (m *Manifest) Expectations() (map[string]Expectation, error) {
	out := make(map[string]Expectation)

	for _, e := range m.Entries {
		var exp Expectation

		switch {
		case e.SHA1 != "":
			exp = Expectation{Algorithm: checksum.SHA1, Digest: e.SHA1}
		case e.Checksum != "":
			algo, err := checksum.ParseAlgorithm(e.Algorithm)
			if err != nil {
				return nil, err
			}

			exp = Expectation{Algorithm: algo, Digest: e.Checksum}
		default:
			continue
		}

		dest, err := m.destination(e)
		if err != nil {
			return nil, err
		}

		out[dest] = exp
	}

	return out, nil
}

func (m *Manifest) destination(e Entry) (string, error) {
	p := e.Path
	if p == "" && e.URL != "" {
		p = nameFromURL(e.URL)
	}

	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}

	if p == "" && e.PutioFolder == 0 {
		return "", &transfer.ConfigError{Field: "path", Reason: "cannot derive a file name from " + e.URL}
	}

	clean := filepath.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", &transfer.ConfigError{Field: "path", Reason: "escapes the target directory: " + p}
	}

	return filepath.Join(m.TargetDir, clean), nil
}

func nameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}

	return name
}
