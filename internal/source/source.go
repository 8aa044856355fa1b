// Package source turns the URIs found in a batch into URLs the downloader can fetch.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/italolelis/batchdl/internal/source/putio"
	"github.com/italolelis/batchdl/internal/telemetry"
	"github.com/italolelis/batchdl/internal/transfer"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
)

const SchemePutio = "putio"

var ErrUnsupportedScheme = errors.New("unsupported source scheme")

// PutioClient is the part of the put.io client the resolver needs.
type PutioClient interface {
	FileURL(ctx context.Context, fileID int64) (string, error)
	ListFiles(ctx context.Context, folderID int64) ([]putio.File, error)
}

// Resolver maps source URIs to fetchable URLs. http and https pass through untouched;
// putio://<file-id> is looked up through the put.io API.
type Resolver struct {
	putio     PutioClient
	telemetry *telemetry.Telemetry
}

// NewResolver creates a resolver. A nil put.io client makes putio:// sources fail.
func NewResolver(pc PutioClient, tel *telemetry.Telemetry) *Resolver {
	return &Resolver{putio: pc, telemetry: tel}
}

func (r *Resolver) Resolve(ctx context.Context, source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("failed to parse source %s: %w", source, err)
	}

	switch u.Scheme {
	case "http", "https":
		return source, nil
	case SchemePutio:
		id, err := putioID(u)
		if err != nil {
			return "", err
		}

		if r.putio == nil {
			return "", fmt.Errorf("%w: %s (no put.io token configured)", ErrUnsupportedScheme, u.Scheme)
		}

		var resolved string

		err = r.telemetry.InstrumentClientOperation(ctx, "putio", "file_url", func(ctx context.Context) error {
			var err error

			resolved, err = r.putio.FileURL(ctx, id)

			return err
		})
		if err != nil {
			return "", err
		}

		return resolved, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

// ExpandPutioFolder lists a put.io folder and returns one spec per file, mirroring the
// folder layout under destDir.
func (r *Resolver) ExpandPutioFolder(ctx context.Context, folderID int64, destDir string) ([]transfer.Spec, error) {
	if r.putio == nil {
		return nil, fmt.Errorf("%w: %s (no put.io token configured)", ErrUnsupportedScheme, SchemePutio)
	}

	var files []putio.File

	err := r.telemetry.InstrumentClientOperation(ctx, "putio", "list_files", func(ctx context.Context) error {
		var err error

		files, err = r.putio.ListFiles(ctx, folderID)

		return err
	})
	if err != nil {
		return nil, err
	}

	specs := make([]transfer.Spec, 0, len(files))
	for _, f := range files {
		specs = append(specs, transfer.Spec{
			Source:      PutioURI(f.ID),
			Destination: filepath.Join(destDir, f.Path),
		})
	}

	return specs, nil
}

// PutioURI formats a put.io file id as a source URI.
func PutioURI(fileID int64) string {
	return SchemePutio + "://" + strconv.FormatInt(fileID, 10)
}

func putioID(u *url.URL) (int64, error) {
	raw := u.Host
	if raw == "" {
		raw = path.Base(u.Opaque)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid put.io file id %q", raw)
	}

	return id, nil
}

// HTTPHosts returns the distinct hosts of the http and https sources in specs.
func HTTPHosts(specs []transfer.Spec) []string {
	seen := make(map[string]struct{})

	var hosts []string

	for _, spec := range specs {
		u, err := url.Parse(spec.Source)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			continue
		}

		if _, ok := seen[u.Host]; ok {
			continue
		}

		seen[u.Host] = struct{}{}
		hosts = append(hosts, u.Host)
	}

	return hosts
}

// NewHTTPClient builds the client used for transfers. headerTimeout bounds the wait for
// response headers (0 disables it). bearerToken, when set, is sent only to tokenHosts:
// redirects elsewhere and resolved put.io download URLs go without it.
func NewHTTPClient(headerTimeout time.Duration, bearerToken string, tokenHosts []string) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ResponseHeaderTimeout = headerTimeout

	var rt http.RoundTripper = otelhttp.NewTransport(base)

	if bearerToken != "" && len(tokenHosts) > 0 {
		hosts := make(map[string]struct{}, len(tokenHosts))
		for _, h := range tokenHosts {
			hosts[h] = struct{}{}
		}

		rt = &hostScopedTransport{
			hosts: hosts,
			authed: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearerToken}),
				Base:   rt,
			},
			base: rt,
		}
	}

	return &http.Client{Transport: rt}
}

// hostScopedTransport authenticates requests to a fixed set of hosts.
type hostScopedTransport struct {
	hosts  map[string]struct{}
	authed http.RoundTripper
	base   http.RoundTripper
}

func (t *hostScopedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if _, ok := t.hosts[req.URL.Host]; ok {
		return t.authed.RoundTrip(req)
	}

	return t.base.RoundTrip(req)
}
