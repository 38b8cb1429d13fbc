// Package store persists video metadata. Three implementations are
// provided: sqlite (default), postgres and dynamodb, selected at startup.
package store

import (
	"context"

	"github.com/calemcnulty-gai/reel-ai/internal/media"
)

// VideoStore is the document-database surface the rest of the service
// depends on. Get returns (nil, nil) when the video does not exist;
// mutations of a missing video return media.ErrNotFound.
type VideoStore interface {
	// Create assigns an id and creation timestamp and persists v.
	Create(ctx context.Context, v *media.Video) (string, error)
	Get(ctx context.Context, id string) (*media.Video, error)

	// List returns up to limit videos ordered newest first. startAfterID,
	// when non-empty, is the id of the last video of the previous page and
	// the returned page starts strictly after that video's position.
	List(ctx context.Context, limit int, startAfterID string) ([]media.Video, error)
	ListByUser(ctx context.Context, userID string) ([]media.Video, error)
	ListMissingThumbnails(ctx context.Context) ([]media.Video, error)

	// Update applies the non-nil fields. All-nil is a no-op success.
	Update(ctx context.Context, id string, title, description, thumbnailURL *string) error
	SetThumbnailURL(ctx context.Context, id, url string) error

	// Counter increments are atomic; counts never decrease.
	IncrementViews(ctx context.Context, id string) error
	IncrementShares(ctx context.Context, id string) error

	// ToggleLike flips the caller's like membership for the video and
	// returns the resulting state (true = now liked).
	ToggleLike(ctx context.Context, videoID, userID string) (bool, error)

	Delete(ctx context.Context, id string) error

	// Watch emits the current first page immediately, then re-emits it after
	// every mutation. Each call is an independent subscription; the channel
	// closes when ctx ends.
	Watch(ctx context.Context, limit int) (<-chan []media.Video, error)

	Close() error
}
