package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/calemcnulty-gai/reel-ai/internal/notify"
	"github.com/calemcnulty-gai/reel-ai/internal/queue"
)

// handleBackfill handles POST /api/thumbnails/backfill - generate thumbnails
// for every video missing one. With a queue configured the job is handed to
// the worker; otherwise it runs in-process.
func (s *server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, err := s.currentUser(r); err != nil {
		s.sendError(w, err)
		return
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(r.Context(), queue.Job{Kind: queue.JobBackfill}); err == nil {
			slog.Info("backfill job enqueued")
			s.sendJSON(w, map[string]interface{}{"status": "enqueued"}, http.StatusAccepted)
			return
		} else {
			slog.Error("failed to enqueue backfill job, running in-process", "error", err)
		}
	}

	s.backfillMu.Lock()
	if s.backfillCancel != nil {
		s.backfillMu.Unlock()
		s.sendJSONError(w, "backfill already running", http.StatusConflict)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.backfillCancel = cancel
	s.backfillMu.Unlock()

	go func() {
		defer func() {
			s.backfillMu.Lock()
			s.backfillCancel = nil
			s.backfillMu.Unlock()
			cancel()
		}()

		s.pipeline.GenerateMissing(ctx, func(p notify.BackfillProgress) {
			if s.notifier != nil {
				s.notifier.PublishProgress(ctx, p)
			}
		})
	}()

	s.sendJSON(w, map[string]interface{}{"status": "started"}, http.StatusAccepted)
}

// handleBackfillStop handles POST /api/thumbnails/backfill/stop - request a
// cooperative stop. In-flight videos finish, no new batch starts.
func (s *server) handleBackfillStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if _, err := s.currentUser(r); err != nil {
		s.sendError(w, err)
		return
	}

	stopped := false

	s.backfillMu.Lock()
	if s.backfillCancel != nil {
		s.backfillCancel()
		stopped = true
	}
	s.backfillMu.Unlock()

	// A worker-side job listens on the stop channel.
	if s.notifier != nil {
		if err := s.notifier.PublishStop(r.Context()); err != nil {
			slog.Warn("failed to publish stop command", "error", err)
		} else {
			stopped = true
		}
	}

	s.sendJSON(w, map[string]interface{}{"stopping": stopped}, http.StatusOK)
}
