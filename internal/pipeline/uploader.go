package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/calemcnulty-gai/reel-ai/internal/blob"
	"github.com/calemcnulty-gai/reel-ai/internal/media"
	"github.com/calemcnulty-gai/reel-ai/internal/store"
)

// Uploader pushes a recorded video into blob storage and registers its
// metadata. The metadata row is written only after the content upload has
// fully succeeded, so the store never references a blob that does not exist.
type Uploader struct {
	store      store.VideoStore
	blobs      blob.BlobStore
	extractor  media.FrameExtractor
	scratchDir string
}

func NewUploader(st store.VideoStore, blobs blob.BlobStore, extractor media.FrameExtractor, scratchDir string) *Uploader {
	return &Uploader{
		store:      st,
		blobs:      blobs,
		extractor:  extractor,
		scratchDir: scratchDir,
	}
}

type uploadResult struct {
	url string
	err error
}

// Upload stores the file at path under the owner's prefix, attempts an inline
// thumbnail, and creates the metadata record. Thumbnail failure is non-fatal;
// the video is published without one and the backfill job picks it up later.
// Cancelling ctx abandons the wait for an in-flight transfer, it does not
// revoke bytes already sent.
func (u *Uploader) Upload(ctx context.Context, userID, path string, title, description *string, progress blob.ProgressFunc) (*media.Video, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable source file %s: %v", media.ErrValidation, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", media.ErrValidation, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", media.ErrValidation, err)
	}
	defer f.Close()

	stamp := time.Now().UnixMilli()
	key := fmt.Sprintf("videos/%s/video_%d.mp4", userID, stamp)

	done := make(chan uploadResult, 1)
	go func() {
		url, err := u.blobs.Upload(ctx, key, f, info.Size(), progress)
		done <- uploadResult{url: url, err: err}
	}()

	var videoURL string
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %v", media.ErrTransfer, res.err)
		}
		videoURL = res.url
	}

	thumbnailURL := u.inlineThumbnail(ctx, userID, path, stamp)

	v := &media.Video{
		UserID:       userID,
		Title:        title,
		Description:  description,
		VideoURL:     videoURL,
		ThumbnailURL: thumbnailURL,
		CreatedAt:    time.Now().UTC(),
	}
	id, err := u.store.Create(ctx, v)
	if err != nil {
		return nil, fmt.Errorf("failed to save video metadata: %w", err)
	}
	v.ID = id

	slog.Info("video uploaded", "video_id", id, "user_id", userID, "key", key, "size", info.Size())
	return v, nil
}

// inlineThumbnail extracts a frame from the still-local source and uploads
// it. Returns nil on any failure; the caller publishes without a thumbnail.
func (u *Uploader) inlineThumbnail(ctx context.Context, userID, videoPath string, stamp int64) *string {
	thumbPath := filepath.Join(u.scratchDir, fmt.Sprintf("thumb_%d.jpg", stamp))
	defer os.Remove(thumbPath)

	if err := u.extractor.ExtractFrame(ctx, videoPath, thumbPath); err != nil {
		slog.Warn("inline thumbnail extraction failed", "video_path", videoPath, "error", err)
		return nil
	}

	key := fmt.Sprintf("thumbnails/%s/thumb_%d.jpg", userID, stamp)
	uctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	f, err := os.Open(thumbPath)
	if err != nil {
		slog.Warn("inline thumbnail unreadable", "error", err)
		return nil
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		slog.Warn("inline thumbnail unreadable", "error", err)
		return nil
	}

	url, err := u.blobs.Upload(uctx, key, f, info.Size(), nil)
	if err != nil {
		slog.Warn("inline thumbnail upload failed", "key", key, "error", err)
		return nil
	}
	return &url
}
