package store

import (
	"context"
	"log/slog"

	"github.com/calemcnulty-gai/reel-ai/internal/media"
	"github.com/calemcnulty-gai/reel-ai/internal/notify"
)

type lister interface {
	List(ctx context.Context, limit int, startAfterID string) ([]media.Video, error)
}

// watchVideos backs the SQL stores' Watch: emit the first page now, then
// re-query on every change notification. Stale pages are dropped when the
// receiver lags.
func watchVideos(ctx context.Context, l lister, changes *notify.Broadcaster[struct{}], limit int) (<-chan []media.Video, error) {
	initial, err := l.List(ctx, limit, "")
	if err != nil {
		return nil, err
	}

	out := make(chan []media.Video, 4)
	out <- initial

	events, cancel := changes.Subscribe()
	go func() {
		defer close(out)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-events:
				if !ok {
					return
				}
				videos, err := l.List(ctx, limit, "")
				if err != nil {
					slog.Warn("watch re-query failed", "error", err)
					continue
				}
				select {
				case out <- videos:
				default:
				}
			}
		}
	}()

	return out, nil
}
