package putio

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/italolelis/batchdl/internal/logctx"
	"github.com/putdotio/go-putio"
	"golang.org/x/oauth2"
)

// File is a downloadable put.io file and its path relative to the folder it was listed from.
type File struct {
	ID   int64
	Path string
	Size int64
}

type Client struct {
	putioClient *putio.Client
}

func NewClient(token string) *Client {
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	oauthClient := oauth2.NewClient(context.Background(), tokenSource)

	return &Client{putioClient: putio.NewClient(oauthClient)}
}

func (c *Client) Authenticate(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	logger.InfoContext(ctx, "authenticating with Put.io")

	user, err := c.putioClient.Account.Info(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to get account info", "err", err)

		return fmt.Errorf("failed to get account info: %w", err)
	}

	logger.InfoContext(ctx, "authenticated with Put.io", "user", user.Username)

	return nil
}

// FileURL returns a direct download URL for the file. The URL is short lived, so it is
// resolved right before the transfer connects.
func (c *Client) FileURL(ctx context.Context, fileID int64) (string, error) {
	url, err := c.putioClient.Files.URL(ctx, fileID, false)
	if err != nil {
		return "", fmt.Errorf("failed to get file download url: %w", err)
	}

	return url, nil
}

// ListFiles walks a folder and returns every downloadable file below it. A plain file id
// yields just that file.
func (c *Client) ListFiles(ctx context.Context, folderID int64) ([]File, error) {
	root, err := c.putioClient.Files.Get(ctx, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	if !root.IsDir() {
		return []File{{ID: root.ID, Path: root.Name, Size: root.Size}}, nil
	}

	return c.listRecursively(ctx, root.ID, "")
}

func (c *Client) listRecursively(ctx context.Context, parentID int64, basePath string) ([]File, error) {
	logger := logctx.LoggerFromContext(ctx).With("parent_id", parentID, "base_path", basePath)

	files, _, err := c.putioClient.Files.List(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	var result []File

	for _, f := range files {
		switch strings.ToLower(f.FileType) {
		case "folder":
			nested, err := c.listRecursively(ctx, f.ID, filepath.Join(basePath, f.Name))
			if err != nil {
				logger.ErrorContext(ctx, "failed to get nested files", "folder", f.Name, "err", err)

				return nil, fmt.Errorf("failed to list folder %s: %w", filepath.Join(basePath, f.Name), err)
			}

			result = append(result, nested...)
		default:
			result = append(result, File{
				ID:   f.ID,
				Path: filepath.Join(basePath, f.Name),
				Size: f.Size,
			})
		}
	}

	logger.DebugContext(ctx, "listed folder", "file_count", len(result))

	return result, nil
}
