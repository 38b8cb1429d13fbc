// Package pipeline implements upload orchestration and the thumbnail
// pipeline: extract a representative frame for every video that lacks one,
// singly or as a batched backfill job.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/calemcnulty-gai/reel-ai/internal/blob"
	"github.com/calemcnulty-gai/reel-ai/internal/media"
	"github.com/calemcnulty-gai/reel-ai/internal/notify"
	"github.com/calemcnulty-gai/reel-ai/internal/store"
)

const (
	downloadTimeout  = 60 * time.Second
	uploadTimeout    = 30 * time.Second
	writeBackTimeout = 10 * time.Second

	// Number of per-video pipelines that run concurrently within a backfill
	// batch. Batch N+1 does not start until batch N fully completes.
	batchSize = 3
)

// ProgressFunc receives batch-level backfill progress.
type ProgressFunc func(p notify.BackfillProgress)

type Pipeline struct {
	store      store.VideoStore
	blobs      blob.BlobStore
	extractor  media.FrameExtractor
	scratchDir string
}

func New(st store.VideoStore, blobs blob.BlobStore, extractor media.FrameExtractor, scratchDir string) *Pipeline {
	return &Pipeline{
		store:      st,
		blobs:      blobs,
		extractor:  extractor,
		scratchDir: scratchDir,
	}
}

// GenerateForVideo produces and attaches a thumbnail for a single video.
// Every failure is converted to false at this boundary; nothing propagates
// to the caller. Scratch files are removed on all exit paths.
func (p *Pipeline) GenerateForVideo(ctx context.Context, v media.Video) bool {
	return p.generateOne(ctx, v, "")
}

func (p *Pipeline) generateOne(ctx context.Context, v media.Video, suffix string) bool {
	log := slog.With("video_id", v.ID, "video_url", v.VideoURL)

	// Best-effort recheck; a concurrent run could still race this read.
	existing, err := p.store.Get(ctx, v.ID)
	if err != nil {
		log.Error("failed to re-read video", "error", err)
		return false
	}
	if existing == nil {
		log.Warn("video disappeared before thumbnail generation")
		return false
	}
	if existing.ThumbnailURL != nil {
		log.Debug("thumbnail already exists, skipping")
		return true
	}

	key, err := p.blobs.KeyFromURL(v.VideoURL)
	if err != nil {
		log.Error("failed to resolve video blob reference", "error", err)
		return false
	}

	stamp := time.Now().UnixMilli()
	videoPath := filepath.Join(p.scratchDir, fmt.Sprintf("temp_%d%s.mp4", stamp, suffix))
	thumbPath := filepath.Join(p.scratchDir, fmt.Sprintf("thumb_%d%s.jpg", stamp, suffix))
	defer os.Remove(videoPath)
	defer os.Remove(thumbPath)

	if err := p.downloadVideo(ctx, key, videoPath); err != nil {
		log.Error("failed to download video", "key", key, "error", err)
		return false
	}

	if err := p.extractor.ExtractFrame(ctx, videoPath, thumbPath); err != nil {
		log.Error("failed to extract frame", "error", err)
		return false
	}

	thumbKey := fmt.Sprintf("thumbnails/%s/thumb_%d%s.jpg", v.UserID, stamp, suffix)
	thumbURL, err := p.uploadThumbnail(ctx, thumbKey, thumbPath)
	if err != nil {
		log.Error("failed to upload thumbnail", "key", thumbKey, "error", err)
		return false
	}

	wctx, cancel := context.WithTimeout(ctx, writeBackTimeout)
	defer cancel()
	if err := p.store.SetThumbnailURL(wctx, v.ID, thumbURL); err != nil {
		log.Error("failed to write back thumbnail url", "thumbnail_url", thumbURL, "error", err)
		return false
	}

	log.Info("thumbnail generated", "thumbnail_url", thumbURL)
	return true
}

func (p *Pipeline) downloadVideo(ctx context.Context, key, dst string) error {
	dctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create scratch file: %w", err)
	}

	err = p.blobs.Download(dctx, key, f)
	closeErr := f.Close()
	if err != nil {
		return err
	}
	return closeErr
}

func (p *Pipeline) uploadThumbnail(ctx context.Context, key, path string) (string, error) {
	uctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open thumbnail: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat thumbnail: %w", err)
	}

	return p.blobs.Upload(uctx, key, f, info.Size(), nil)
}

// GenerateMissing backfills thumbnails for every video lacking one. Videos
// are processed in batches of batchSize with an await-all barrier between
// batches; a single video's failure never aborts the batch or the job.
// Cancellation is cooperative: in-flight pipelines finish, no new batch
// starts. Returns the number of successes.
func (p *Pipeline) GenerateMissing(ctx context.Context, progress ProgressFunc) int {
	candidates, err := p.store.ListMissingThumbnails(ctx)
	if err != nil {
		slog.Error("backfill failed to list candidate videos", "error", err)
		if progress != nil {
			progress(notify.BackfillProgress{Error: "failed to list candidate videos"})
		}
		return 0
	}

	total := len(candidates)
	slog.Info("backfill started", "candidates", total)

	var mu sync.Mutex
	processed, success := 0, 0

	report := func() {
		if progress == nil {
			return
		}
		progress(notify.BackfillProgress{Processed: processed, Total: total, Success: success})
	}

	for i := 0; i < total; i += batchSize {
		if ctx.Err() != nil {
			slog.Info("backfill cancelled", "processed", processed, "total", total)
			break
		}

		end := i + batchSize
		if end > total {
			end = total
		}
		batch := candidates[i:end]

		var wg sync.WaitGroup
		for j, v := range batch {
			wg.Add(1)
			go func(index int, v media.Video) {
				defer wg.Done()
				ok := p.generateOne(ctx, v, fmt.Sprintf("_%d", index))

				mu.Lock()
				processed++
				if ok {
					success++
				}
				report()
				mu.Unlock()
			}(i+j, v)
		}
		wg.Wait()

		slog.Info("backfill batch completed",
			"batch", i/batchSize+1, "processed", processed, "success", success, "total", total)
	}

	slog.Info("backfill finished", "success", success, "total", total)
	return success
}
