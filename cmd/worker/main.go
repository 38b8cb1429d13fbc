package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/calemcnulty-gai/reel-ai/internal/blob"
	"github.com/calemcnulty-gai/reel-ai/internal/config"
	"github.com/calemcnulty-gai/reel-ai/internal/media"
	"github.com/calemcnulty-gai/reel-ai/internal/notify"
	"github.com/calemcnulty-gai/reel-ai/internal/pipeline"
	"github.com/calemcnulty-gai/reel-ai/internal/queue"
	"github.com/calemcnulty-gai/reel-ai/internal/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()
	if cfg.SQSQueueURL == "" {
		slog.Error("SQS_QUEUE_URL not set")
		os.Exit(1)
	}

	q, err := queue.NewSQSQueue(cfg.SQSQueueURL, cfg.AWSRegion)
	if err != nil {
		slog.Error("failed to create job queue", "error", err)
		os.Exit(1)
	}

	videoStore, err := buildStore(cfg)
	if err != nil {
		slog.Error("failed to create video store", "type", cfg.StoreType, "error", err)
		os.Exit(1)
	}
	defer videoStore.Close()

	blobs, err := buildBlobStore(cfg)
	if err != nil {
		slog.Error("failed to create blob store", "type", cfg.BlobType, "error", err)
		os.Exit(1)
	}

	pipe := pipeline.New(videoStore, blobs, media.NewFFmpegExtractor(), cfg.ScratchDir)

	var notifier *notify.RedisNotifier
	if cfg.RedisAddr != "" {
		notifier = notify.NewRedisNotifier(cfg.RedisAddr)
		defer notifier.Close()
	}

	slog.Info("worker started", "queue", cfg.SQSQueueURL)

	ctx := context.Background()
	for {
		msgs, err := q.Receive(ctx, 1)
		if err != nil {
			slog.Error("receive message error", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, m := range msgs {
			switch m.Job.Kind {
			case queue.JobThumbnail:
				runThumbnailJob(ctx, pipe, videoStore, m.Job.VideoID)
			case queue.JobBackfill:
				runBackfillJob(ctx, pipe, notifier)
			default:
				slog.Warn("unknown job kind, dropping", "kind", m.Job.Kind)
			}

			if err := q.Delete(ctx, m); err != nil {
				slog.Warn("failed to acknowledge message", "error", err)
			}
		}
	}
}

func runThumbnailJob(ctx context.Context, pipe *pipeline.Pipeline, videoStore store.VideoStore, videoID string) {
	jobLog := slog.With("video_id", videoID, "job", queue.JobThumbnail)
	jobLog.Info("processing job")

	v, err := videoStore.Get(ctx, videoID)
	if err != nil {
		jobLog.Error("failed to load video", "error", err)
		return
	}
	if v == nil {
		jobLog.Warn("video no longer exists")
		return
	}

	if ok := pipe.GenerateForVideo(ctx, *v); ok {
		jobLog.Info("job completed")
	} else {
		jobLog.Warn("job failed")
	}
}

// runBackfillJob runs the full backfill, publishing progress over redis and
// honoring stop requests at batch boundaries.
func runBackfillJob(ctx context.Context, pipe *pipeline.Pipeline, notifier *notify.RedisNotifier) {
	jobLog := slog.With("job", queue.JobBackfill)
	jobLog.Info("processing job")

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var progress pipeline.ProgressFunc
	if notifier != nil {
		stop, unsubscribe := notifier.SubscribeStop(jobCtx)
		defer unsubscribe()
		go func() {
			select {
			case <-stop:
				jobLog.Info("stop requested")
				cancel()
			case <-jobCtx.Done():
			}
		}()

		progress = func(p notify.BackfillProgress) {
			notifier.PublishProgress(jobCtx, p)
		}
	}

	success := pipe.GenerateMissing(jobCtx, progress)
	jobLog.Info("job completed", "success", success)
}

func buildStore(cfg config.Config) (store.VideoStore, error) {
	switch cfg.StoreType {
	case "postgres":
		return store.NewPostgresVideoStore(cfg.StoreOptions)
	case "dynamodb":
		return store.NewDynamoDBVideoStore(cfg.StoreOptions)
	default:
		return store.NewSQLiteVideoStore(cfg.StoreOptions)
	}
}

func buildBlobStore(cfg config.Config) (blob.BlobStore, error) {
	switch cfg.BlobType {
	case "s3":
		return blob.NewS3BlobStore(cfg.BlobOptions)
	default:
		return blob.NewFSBlobStore(cfg.BlobOptions, cfg.BlobBaseURL), nil
	}
}
