package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const (
	progressChannel = "thumbnails:progress"
	controlChannel  = "thumbnails:control"

	stopCommand = "stop"
)

// BackfillProgress is the batch-level progress report of the thumbnail
// backfill job, published after every processed video.
type BackfillProgress struct {
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Success   int    `json:"success"`
	Error     string `json:"error,omitempty"`
}

// RedisNotifier pushes backfill progress to interested clients and relays
// user-initiated stop requests back to the running job.
type RedisNotifier struct {
	rdb *redis.Client
}

func NewRedisNotifier(addr string) *RedisNotifier {
	return &RedisNotifier{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (n *RedisNotifier) PublishProgress(ctx context.Context, p BackfillProgress) {
	payload, err := json.Marshal(p)
	if err != nil {
		slog.Error("failed to marshal progress", "error", err)
		return
	}
	if err := n.rdb.Publish(ctx, progressChannel, payload).Err(); err != nil {
		slog.Warn("failed to publish progress", "error", err)
	}
}

// SubscribeProgress delivers progress updates until cancel is called or the
// context ends.
func (n *RedisNotifier) SubscribeProgress(ctx context.Context) (<-chan BackfillProgress, func()) {
	sub := n.rdb.Subscribe(ctx, progressChannel)
	out := make(chan BackfillProgress, 16)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var p BackfillProgress
			if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
				slog.Warn("invalid progress payload", "error", err)
				continue
			}
			select {
			case out <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}

// PublishStop asks a running backfill job to stop at its next batch boundary.
func (n *RedisNotifier) PublishStop(ctx context.Context) error {
	return n.rdb.Publish(ctx, controlChannel, stopCommand).Err()
}

// SubscribeStop fires once per stop request.
func (n *RedisNotifier) SubscribeStop(ctx context.Context) (<-chan struct{}, func()) {
	sub := n.rdb.Subscribe(ctx, controlChannel)
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			if msg.Payload != stopCommand {
				continue
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}

func (n *RedisNotifier) Close() error {
	return n.rdb.Close()
}
