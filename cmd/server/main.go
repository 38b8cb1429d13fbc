package main

import (
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/calemcnulty-gai/reel-ai/internal/auth"
	"github.com/calemcnulty-gai/reel-ai/internal/blob"
	"github.com/calemcnulty-gai/reel-ai/internal/config"
	"github.com/calemcnulty-gai/reel-ai/internal/media"
	"github.com/calemcnulty-gai/reel-ai/internal/notify"
	"github.com/calemcnulty-gai/reel-ai/internal/pipeline"
	"github.com/calemcnulty-gai/reel-ai/internal/queue"
	"github.com/calemcnulty-gai/reel-ai/internal/store"
	"github.com/calemcnulty-gai/reel-ai/internal/web"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg := config.Load()

	listen := flag.String("listen", cfg.ListenAddr, "Listen address for the web server")
	storeType := flag.String("store", cfg.StoreType, "Video store type (sqlite, postgres, dynamodb)")
	storeOptions := flag.String("store-options", cfg.StoreOptions, "Options for the video store (db path, DSN or table name)")
	blobType := flag.String("blob", cfg.BlobType, "Blob store type (fs, s3)")
	blobOptions := flag.String("blob-options", cfg.BlobOptions, "Options for the blob store (base dir or bucket name)")
	flag.Parse()

	videoStore, err := buildStore(*storeType, *storeOptions)
	if err != nil {
		slog.Error("failed to create video store", "type", *storeType, "error", err)
		os.Exit(1)
	}
	defer videoStore.Close()

	blobs, contentDir, err := buildBlobStore(*blobType, *blobOptions, cfg)
	if err != nil {
		slog.Error("failed to create blob store", "type", *blobType, "error", err)
		os.Exit(1)
	}

	extractor := media.NewFFmpegExtractor()
	uploader := pipeline.NewUploader(videoStore, blobs, extractor, cfg.ScratchDir)
	pipe := pipeline.New(videoStore, blobs, extractor, cfg.ScratchDir)

	verifier := auth.NewLocalVerifier()
	authService := auth.NewService(verifier, cfg.JWTSecret)

	opts := web.Options{
		Auth:           authService,
		Store:          videoStore,
		Blobs:          blobs,
		Uploader:       uploader,
		Pipeline:       pipe,
		ContentDir:     contentDir,
		ScratchDir:     cfg.ScratchDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}

	if cfg.SQSQueueURL != "" {
		q, err := queue.NewSQSQueue(cfg.SQSQueueURL, cfg.AWSRegion)
		if err != nil {
			slog.Error("failed to create job queue", "error", err)
			os.Exit(1)
		}
		opts.Queue = q
	}
	if cfg.RedisAddr != "" {
		opts.Notifier = notify.NewRedisNotifier(cfg.RedisAddr)
		defer opts.Notifier.Close()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		slog.Error("failed to start listener", "addr", *listen, "error", err)
		os.Exit(1)
	}
	defer lis.Close()

	slog.Info("server listening", "addr", *listen, "store", *storeType, "blob", *blobType)
	if err := web.NewServer(opts).Start(lis); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func buildStore(storeType, options string) (store.VideoStore, error) {
	switch storeType {
	case "sqlite":
		return store.NewSQLiteVideoStore(options)
	case "postgres":
		return store.NewPostgresVideoStore(options)
	case "dynamodb":
		return store.NewDynamoDBVideoStore(options)
	default:
		return nil, fmt.Errorf("unsupported video store type: %s", storeType)
	}
}

func buildBlobStore(blobType, options string, cfg config.Config) (blob.BlobStore, string, error) {
	switch blobType {
	case "fs":
		return blob.NewFSBlobStore(options, cfg.BlobBaseURL), options, nil
	case "s3":
		s, err := blob.NewS3BlobStore(options)
		return s, "", err
	default:
		return nil, "", fmt.Errorf("unsupported blob store type: %s", blobType)
	}
}
