// Package blob stores video and thumbnail binaries under path-style keys and
// hands back public retrieval URLs.
package blob

import (
	"context"
	"io"
	"strings"
)

// ProgressFunc receives transfer progress as bytes moved so far out of the
// total. total is 0 when unknown.
type ProgressFunc func(transferred, total int64)

// BlobStore is the binary storage surface. Keys are slash-separated paths,
// e.g. videos/<userId>/video_1700000000000.mp4.
type BlobStore interface {
	// Upload stores the content and returns its public URL. progress may be
	// nil.
	Upload(ctx context.Context, key string, r io.Reader, size int64, progress ProgressFunc) (string, error)
	Download(ctx context.Context, key string, w io.Writer) error
	Delete(ctx context.Context, key string) error

	// KeyFromURL maps a public URL issued by this store back to its key.
	// URLs from another store return media.ErrNotFound.
	KeyFromURL(url string) (string, error)
}

// progressReader reports transfer progress while the underlying store
// consumes the source.
type progressReader struct {
	r           io.Reader
	total       int64
	transferred int64
	progress    ProgressFunc
}

func newProgressReader(r io.Reader, total int64, progress ProgressFunc) io.Reader {
	if progress == nil {
		return r
	}
	return &progressReader{r: r, total: total, progress: progress}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.transferred += int64(n)
		p.progress(p.transferred, p.total)
	}
	return n, err
}

func contentTypeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".mp4"):
		return "video/mp4"
	case strings.HasSuffix(key, ".webm"):
		return "video/webm"
	case strings.HasSuffix(key, ".jpg"), strings.HasSuffix(key, ".jpeg"):
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
