package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/calemcnulty-gai/reel-ai/internal/media"
)

// FSBlobStore keeps blobs on the local filesystem. URLs are baseURL/<key>,
// served by the web server's content handler.
type FSBlobStore struct {
	baseDir string
	baseURL string
}

var _ BlobStore = (*FSBlobStore)(nil)

func NewFSBlobStore(baseDir, baseURL string) *FSBlobStore {
	return &FSBlobStore{
		baseDir: baseDir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (fs *FSBlobStore) path(key string) string {
	return filepath.Join(fs.baseDir, filepath.FromSlash(key))
}

func (fs *FSBlobStore) Upload(ctx context.Context, key string, r io.Reader, size int64, progress ProgressFunc) (string, error) {
	dst := fs.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create blob file: %w", err)
	}

	_, err = io.Copy(out, newProgressReader(r, size, progress))
	closeErr := out.Close()
	if err != nil || closeErr != nil {
		os.Remove(dst)
		if err == nil {
			err = closeErr
		}
		return "", fmt.Errorf("failed to write blob: %w", err)
	}

	return fs.baseURL + "/" + key, nil
}

func (fs *FSBlobStore) Download(ctx context.Context, key string, w io.Writer) error {
	in, err := os.Open(fs.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("blob %s: %w", key, media.ErrNotFound)
		}
		return fmt.Errorf("failed to open blob: %w", err)
	}
	defer in.Close()

	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to read blob: %w", err)
	}
	return nil
}

func (fs *FSBlobStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(fs.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

func (fs *FSBlobStore) KeyFromURL(url string) (string, error) {
	if !strings.HasPrefix(url, fs.baseURL+"/") {
		return "", fmt.Errorf("url %s: %w", url, media.ErrNotFound)
	}
	return strings.TrimPrefix(url, fs.baseURL+"/"), nil
}
