// Package web exposes the video service over HTTP: auth, feed, uploads,
// engagement counters and the thumbnail backfill trigger.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/calemcnulty-gai/reel-ai/internal/auth"
	"github.com/calemcnulty-gai/reel-ai/internal/blob"
	"github.com/calemcnulty-gai/reel-ai/internal/media"
	"github.com/calemcnulty-gai/reel-ai/internal/notify"
	"github.com/calemcnulty-gai/reel-ai/internal/pipeline"
	"github.com/calemcnulty-gai/reel-ai/internal/queue"
	"github.com/calemcnulty-gai/reel-ai/internal/store"
)

// Options wires the server's collaborators. Queue, Notifier and ContentDir
// are optional.
type Options struct {
	Auth     *auth.Service
	Store    store.VideoStore
	Blobs    blob.BlobStore
	Uploader *pipeline.Uploader
	Pipeline *pipeline.Pipeline

	// Queue, when set, receives backfill and per-video thumbnail jobs for
	// the worker. Without it the server runs them in-process.
	Queue *queue.SQSQueue
	// Notifier, when set, publishes backfill progress and listens for stop
	// commands.
	Notifier *notify.RedisNotifier

	// ContentDir enables serving filesystem blobs under /content/.
	ContentDir string

	ScratchDir     string
	MaxUploadBytes int64
}

type server struct {
	auth     *auth.Service
	store    store.VideoStore
	blobs    blob.BlobStore
	uploader *pipeline.Uploader
	pipeline *pipeline.Pipeline
	queue    *queue.SQSQueue
	notifier *notify.RedisNotifier

	contentDir     string
	scratchDir     string
	maxUploadBytes int64

	mux *http.ServeMux

	backfillMu     sync.Mutex
	backfillCancel context.CancelFunc

	limiterMu    sync.Mutex
	limiters     map[string]*clientLimiter
	limiterSweep time.Time
}

// clientLimiter tracks when a per-host limiter was last used so idle entries
// can be evicted.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const (
	limiterIdleTTL       = 3 * time.Minute
	limiterSweepInterval = time.Minute
)

func NewServer(opts Options) *server {
	return &server{
		auth:           opts.Auth,
		store:          opts.Store,
		blobs:          opts.Blobs,
		uploader:       opts.Uploader,
		pipeline:       opts.Pipeline,
		queue:          opts.Queue,
		notifier:       opts.Notifier,
		contentDir:     opts.ContentDir,
		scratchDir:     opts.ScratchDir,
		maxUploadBytes: opts.MaxUploadBytes,
		limiters:       make(map[string]*clientLimiter),
		limiterSweep:   time.Now(),
	}
}

func (s *server) Start(lis net.Listener) error {
	return http.Serve(lis, s.Handler())
}

// Handler builds the route table wrapped in CORS and rate limiting.
func (s *server) Handler() http.Handler {
	s.mux = http.NewServeMux()

	// Auth endpoints
	s.mux.HandleFunc("/api/auth/signin", s.handleSignIn)
	s.mux.HandleFunc("/api/auth/signout", s.handleSignOut)
	s.mux.HandleFunc("/api/me", s.handleMe)

	// Video endpoints (JSON responses)
	s.mux.HandleFunc("/api/videos", s.handleVideos)
	s.mux.HandleFunc("/api/videos/", s.handleVideoSubpath)
	s.mux.HandleFunc("/api/users/me/videos", s.handleMyVideos)

	// Thumbnail backfill
	s.mux.HandleFunc("/api/thumbnails/backfill", s.handleBackfill)
	s.mux.HandleFunc("/api/thumbnails/backfill/stop", s.handleBackfillStop)

	// Live feed over websocket
	s.mux.HandleFunc("/api/feed/ws", s.handleFeedWS)

	// Content endpoint (binary responses), only for filesystem blob storage
	if s.contentDir != "" {
		s.mux.Handle("/content/", http.StripPrefix("/content/", http.FileServer(http.Dir(s.contentDir))))
	}

	return s.corsMiddleware(s.rateLimitMiddleware(s.mux))
}

// CORS middleware to allow frontend requests
func (s *server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware throttles each client to 10 requests/second with a
// burst of 30.
func (s *server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}

		limiter := s.limiterFor(host)
		if !limiter.Allow() {
			s.sendJSONError(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// limiterFor returns the host's limiter, creating one on first sight, and
// periodically evicts limiters no request has touched for limiterIdleTTL.
func (s *server) limiterFor(host string) *rate.Limiter {
	now := time.Now()

	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	if now.Sub(s.limiterSweep) > limiterSweepInterval {
		s.limiterSweep = now
		for h, cl := range s.limiters {
			if now.Sub(cl.lastSeen) > limiterIdleTTL {
				delete(s.limiters, h)
			}
		}
	}

	cl, ok := s.limiters[host]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(10), 30)}
		s.limiters[host] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// currentUser resolves the Bearer session token. Returns
// media.ErrNotAuthenticated when the header is missing or invalid.
func (s *server) currentUser(r *http.Request) (*media.User, error) {
	return s.auth.CurrentUser(r.Context(), bearerToken(r))
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return ""
	}
	return h[len(prefix):]
}

type apiErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (s *server) sendJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *server) sendJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
	})
}

// sendError maps the domain error taxonomy to HTTP statuses.
func (s *server) sendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, media.ErrNotAuthenticated):
		s.sendJSONError(w, "not signed in", http.StatusUnauthorized)
	case errors.Is(err, media.ErrAuthFailure):
		s.sendJSONError(w, "authentication failed", http.StatusUnauthorized)
	case errors.Is(err, media.ErrNotOwner):
		s.sendJSONError(w, "not the owner of this video", http.StatusForbidden)
	case errors.Is(err, media.ErrNotFound):
		s.sendJSONError(w, "not found", http.StatusNotFound)
	case errors.Is(err, media.ErrValidation):
		s.sendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, media.ErrTransfer):
		slog.Error("transfer failed", "error", err)
		s.sendJSONError(w, "transfer failed", http.StatusBadGateway)
	default:
		slog.Error("internal error", "error", err)
		s.sendJSONError(w, "internal error", http.StatusInternalServerError)
	}
}
