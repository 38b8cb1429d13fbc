package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/calemcnulty-gai/reel-ai/internal/config"
	"github.com/calemcnulty-gai/reel-ai/internal/notify"
	"github.com/calemcnulty-gai/reel-ai/internal/queue"
)

func main() {
	if len(os.Args) < 2 {
		printUsageAndExit()
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "backfill":
		startBackfill(cfg)
	case "stop":
		stopBackfill(cfg)
	case "watch":
		watchProgress(cfg)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsageAndExit()
	}
}

func printUsageAndExit() {
	fmt.Println("Usage:")
	fmt.Println("  backfill  - Enqueue a thumbnail backfill job")
	fmt.Println("  stop      - Ask a running backfill job to stop")
	fmt.Println("  watch     - Follow backfill progress until interrupted")
	os.Exit(1)
}

func startBackfill(cfg config.Config) {
	if cfg.SQSQueueURL == "" {
		slog.Error("SQS_QUEUE_URL not set")
		os.Exit(1)
	}

	q, err := queue.NewSQSQueue(cfg.SQSQueueURL, cfg.AWSRegion)
	if err != nil {
		slog.Error("failed to create job queue", "error", err)
		os.Exit(1)
	}

	if err := q.Enqueue(context.Background(), queue.Job{Kind: queue.JobBackfill}); err != nil {
		slog.Error("failed to enqueue backfill job", "error", err)
		os.Exit(1)
	}
	fmt.Println("Backfill job enqueued")
}

func stopBackfill(cfg config.Config) {
	notifier := mustNotifier(cfg)
	defer notifier.Close()

	if err := notifier.PublishStop(context.Background()); err != nil {
		slog.Error("failed to publish stop command", "error", err)
		os.Exit(1)
	}
	fmt.Println("Stop requested; the job halts at the next batch boundary")
}

func watchProgress(cfg config.Config) {
	notifier := mustNotifier(cfg)
	defer notifier.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	updates, cancel := notifier.SubscribeProgress(ctx)
	defer cancel()

	fmt.Println("Watching backfill progress (Ctrl-C to exit)")
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-updates:
			if !ok {
				return
			}
			if p.Error != "" {
				fmt.Printf("  error: %s\n", p.Error)
				continue
			}
			fmt.Printf("  %d/%d processed, %d succeeded\n", p.Processed, p.Total, p.Success)
		}
	}
}

func mustNotifier(cfg config.Config) *notify.RedisNotifier {
	if cfg.RedisAddr == "" {
		slog.Error("REDIS_ADDR not set")
		os.Exit(1)
	}
	return notify.NewRedisNotifier(cfg.RedisAddr)
}
