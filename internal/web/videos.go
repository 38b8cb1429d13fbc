package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/calemcnulty-gai/reel-ai/internal/blob"
	"github.com/calemcnulty-gai/reel-ai/internal/media"
	"github.com/calemcnulty-gai/reel-ai/internal/queue"
)

const (
	defaultFeedLimit = 10
	maxFeedLimit     = 10
)

type feedResponse struct {
	Data       []media.Video `json:"data"`
	Limit      int           `json:"limit"`
	HasMore    bool          `json:"hasMore"`
	NextCursor string        `json:"nextCursor,omitempty"`
}

func feedLimit(r *http.Request) int {
	limit := defaultFeedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	return limit
}

// handleVideos handles GET /api/videos (feed page) and POST /api/videos
// (upload).
func (s *server) handleVideos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleFeed(w, r)
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		s.sendJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) handleFeed(w http.ResponseWriter, r *http.Request) {
	limit := feedLimit(r)
	after := r.URL.Query().Get("after")

	videos, err := s.store.List(r.Context(), limit, after)
	if err != nil {
		slog.Error("failed to list videos", "error", err)
		s.sendError(w, err)
		return
	}

	resp := feedResponse{
		Data:    videos,
		Limit:   limit,
		HasMore: len(videos) == limit,
	}
	if len(videos) > 0 {
		resp.NextCursor = videos[len(videos)-1].ID
	}
	s.sendJSON(w, resp, http.StatusOK)
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		s.sendError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		s.sendJSONError(w, "invalid form data", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.sendJSONError(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".mp4") {
		s.sendJSONError(w, "invalid file type, only MP4 files are allowed", http.StatusBadRequest)
		return
	}

	title := optionalFormValue(r, "title")
	description := optionalFormValue(r, "description")

	// Spool to scratch so the uploader works against a local file, same as
	// the on-device recording path.
	tempDir, err := os.MkdirTemp(s.scratchDir, "upload-*")
	if err != nil {
		slog.Error("failed to create temp directory", "error", err)
		s.sendJSONError(w, "failed to create temporary directory", http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(tempDir)

	localPath := filepath.Join(tempDir, "upload.mp4")
	out, err := os.Create(localPath)
	if err != nil {
		slog.Error("failed to create spool file", "error", err)
		s.sendJSONError(w, "failed to save uploaded file", http.StatusInternalServerError)
		return
	}
	_, err = io.Copy(out, file)
	out.Close()
	if err != nil {
		s.sendJSONError(w, "failed to save uploaded file", http.StatusInternalServerError)
		return
	}

	progress := progressSteps(func(percent int64) {
		slog.Debug("upload progress", "user_id", user.ID, "percent", percent)
	})
	video, err := s.uploader.Upload(r.Context(), user.ID, localPath, title, description, progress)
	if err != nil {
		s.sendError(w, err)
		return
	}

	// The inline attempt is best effort; hand misses to the worker.
	if video.ThumbnailURL == nil && s.queue != nil {
		job := queue.Job{Kind: queue.JobThumbnail, VideoID: video.ID}
		if err := s.queue.Enqueue(r.Context(), job); err != nil {
			slog.Warn("failed to enqueue thumbnail job", "video_id", video.ID, "error", err)
		}
	}

	s.sendJSON(w, video, http.StatusCreated)
}

// progressSteps reports transfer progress at quarter intervals, so a large
// upload leaves a coarse trail without a log line per chunk.
func progressSteps(report func(percent int64)) blob.ProgressFunc {
	var last int64 = -1
	return func(transferred, total int64) {
		if total <= 0 {
			return
		}
		percent := transferred * 100 / total
		if step := percent / 25; step > last {
			last = step
			report(percent)
		}
	}
}

func optionalFormValue(r *http.Request, name string) *string {
	v := strings.TrimSpace(r.FormValue(name))
	if v == "" {
		return nil
	}
	return &v
}

// handleVideoSubpath routes /api/videos/{id} and /api/videos/{id}/{action}.
func (s *server) handleVideoSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/videos/")
	parts := strings.SplitN(rest, "/", 2)
	videoID := parts[0]
	if videoID == "" {
		s.sendJSONError(w, "video ID required", http.StatusBadRequest)
		return
	}

	if len(parts) == 2 {
		if r.Method != http.MethodPost {
			s.sendJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleEngagement(w, r, videoID, parts[1])
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleVideoDetail(w, r, videoID)
	case http.MethodPatch:
		s.handleVideoUpdate(w, r, videoID)
	case http.MethodDelete:
		s.handleVideoDelete(w, r, videoID)
	default:
		s.sendJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *server) handleVideoDetail(w http.ResponseWriter, r *http.Request, videoID string) {
	video, err := s.store.Get(r.Context(), videoID)
	if err != nil {
		slog.Error("failed to read video", "video_id", videoID, "error", err)
		s.sendError(w, err)
		return
	}
	if video == nil {
		s.sendJSONError(w, "video not found", http.StatusNotFound)
		return
	}

	s.sendJSON(w, video, http.StatusOK)
}

// ownedVideo loads the video and checks the requester owns it.
func (s *server) ownedVideo(r *http.Request, videoID string) (*media.Video, error) {
	user, err := s.currentUser(r)
	if err != nil {
		return nil, err
	}

	video, err := s.store.Get(r.Context(), videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, fmt.Errorf("video %s: %w", videoID, media.ErrNotFound)
	}
	if video.UserID != user.ID {
		return nil, fmt.Errorf("video %s: %w", videoID, media.ErrNotOwner)
	}
	return video, nil
}

func (s *server) handleVideoUpdate(w http.ResponseWriter, r *http.Request, videoID string) {
	if _, err := s.ownedVideo(r, videoID); err != nil {
		s.sendError(w, err)
		return
	}

	var body struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.sendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if body.Title != nil && strings.TrimSpace(*body.Title) == "" {
		s.sendJSONError(w, "title must not be blank", http.StatusBadRequest)
		return
	}
	if body.Title == nil && body.Description == nil {
		s.sendJSONError(w, "nothing to update", http.StatusBadRequest)
		return
	}

	if err := s.store.Update(r.Context(), videoID, body.Title, body.Description, nil); err != nil {
		s.sendError(w, err)
		return
	}

	video, err := s.store.Get(r.Context(), videoID)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, video, http.StatusOK)
}

func (s *server) handleVideoDelete(w http.ResponseWriter, r *http.Request, videoID string) {
	video, err := s.ownedVideo(r, videoID)
	if err != nil {
		s.sendError(w, err)
		return
	}

	// Remove blobs first, best effort; metadata removal is what makes the
	// video disappear from feeds.
	s.deleteBlobForURL(r, video.VideoURL)
	if video.ThumbnailURL != nil {
		s.deleteBlobForURL(r, *video.ThumbnailURL)
	}

	if err := s.store.Delete(r.Context(), videoID); err != nil {
		s.sendError(w, err)
		return
	}

	slog.Info("video deleted", "video_id", videoID, "user_id", video.UserID)
	s.sendJSON(w, map[string]interface{}{"success": true, "id": videoID}, http.StatusOK)
}

func (s *server) deleteBlobForURL(r *http.Request, url string) {
	key, err := s.blobs.KeyFromURL(url)
	if err != nil {
		slog.Warn("could not resolve blob for deletion", "url", url, "error", err)
		return
	}
	if err := s.blobs.Delete(r.Context(), key); err != nil {
		slog.Warn("failed to delete blob", "key", key, "error", err)
	}
}

func (s *server) handleEngagement(w http.ResponseWriter, r *http.Request, videoID, action string) {
	ctx := r.Context()

	var err error
	switch action {
	case "view":
		err = s.store.IncrementViews(ctx, videoID)
	case "share":
		err = s.store.IncrementShares(ctx, videoID)
	case "like":
		user, authErr := s.currentUser(r)
		if authErr != nil {
			s.sendError(w, authErr)
			return
		}
		var v *media.Video
		v, err = s.store.Get(ctx, videoID)
		if err == nil && v == nil {
			err = media.ErrNotFound
		}
		if err == nil {
			var liked bool
			liked, err = s.store.ToggleLike(ctx, videoID, user.ID)
			if err == nil {
				s.sendJSON(w, map[string]interface{}{"liked": liked}, http.StatusOK)
				return
			}
		}
	default:
		s.sendJSONError(w, "unknown action", http.StatusNotFound)
		return
	}

	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			s.sendJSONError(w, "video not found", http.StatusNotFound)
			return
		}
		s.sendError(w, err)
		return
	}

	s.sendJSON(w, map[string]interface{}{"success": true}, http.StatusOK)
}

// handleMyVideos handles GET /api/users/me/videos - the signed-in user's
// uploads, newest first.
func (s *server) handleMyVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, err := s.currentUser(r)
	if err != nil {
		s.sendError(w, err)
		return
	}

	videos, err := s.store.ListByUser(r.Context(), user.ID)
	if err != nil {
		slog.Error("failed to list user videos", "user_id", user.ID, "error", err)
		s.sendError(w, err)
		return
	}

	s.sendJSON(w, map[string]interface{}{"data": videos, "total": len(videos)}, http.StatusOK)
}
