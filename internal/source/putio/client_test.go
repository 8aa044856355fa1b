package putio

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	putio "github.com/putdotio/go-putio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	goputioClient := putio.NewClient(nil)
	u, _ := url.Parse(serverURL)
	goputioClient.BaseURL = u

	return &Client{putioClient: goputioClient}
}

// fakePutio serves a small tree:
//
//	10 Show/         (folder)
//	  11 e01.mkv
//	  12 Extras/     (folder)
//	    13 bonus.mkv
//	20 movie.mkv
func fakePutio(t *testing.T, failing ...string) *httptest.Server {
	t.Helper()

	files := map[string]string{
		"10": `{"id":10,"name":"Show","file_type":"FOLDER","content_type":"application/x-directory","size":300}`,
		"20": `{"id":20,"name":"movie.mkv","file_type":"VIDEO","content_type":"video/x-matroska","size":2048}`,
	}

	children := map[string]string{
		"10": `[{"id":11,"name":"e01.mkv","file_type":"VIDEO","size":100},{"id":12,"name":"Extras","file_type":"FOLDER","content_type":"application/x-directory","size":200}]`,
		"12": `[{"id":13,"name":"bonus.mkv","file_type":"VIDEO","size":200}]`,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/v2/files/list", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		parent := r.URL.Query().Get("parent_id")

		if slices.Contains(failing, parent) {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error_type":"INTERNAL","error_message":"boom"}`)

			return
		}

		body, ok := children[parent]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error_type":"NOT_FOUND","error_message":"not found"}`)

			return
		}

		fmt.Fprintf(w, `{"files":%s,"parent":%s,"cursor":""}`, body, files["10"])
	})

	mux.HandleFunc("/v2/files/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		rest := strings.TrimPrefix(r.URL.Path, "/v2/files/")

		if id, ok := strings.CutSuffix(rest, "/url"); ok {
			fmt.Fprintf(w, `{"url":"https://cdn.example.com/%s"}`, id)

			return
		}

		body, ok := files[rest]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error_type":"NOT_FOUND","error_message":"not found"}`)

			return
		}

		fmt.Fprintf(w, `{"file":%s}`, body)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func TestFileURL(t *testing.T) {
	server := fakePutio(t)
	client := newTestClient(server.URL)

	got, err := client.FileURL(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/20", got)
}

func TestListFiles(t *testing.T) {
	server := fakePutio(t)
	client := newTestClient(server.URL)

	tests := []struct {
		name string
		id   int64
		want []File
	}{
		{
			name: "single file",
			id:   20,
			want: []File{{ID: 20, Path: "movie.mkv", Size: 2048}},
		},
		{
			name: "nested folder",
			id:   10,
			want: []File{
				{ID: 11, Path: "e01.mkv", Size: 100},
				{ID: 13, Path: filepath.Join("Extras", "bonus.mkv"), Size: 200},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.ListFiles(context.Background(), tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListFilesUnknownID(t *testing.T) {
	server := fakePutio(t)
	client := newTestClient(server.URL)

	_, err := client.ListFiles(context.Background(), 999)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get file")
}

func TestListFilesNestedFolderFailure(t *testing.T) {
	server := fakePutio(t, "12")
	client := newTestClient(server.URL)

	got, err := client.ListFiles(context.Background(), 10)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "failed to list folder Extras")
}
