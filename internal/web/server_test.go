package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/calemcnulty-gai/reel-ai/internal/auth"
	"github.com/calemcnulty-gai/reel-ai/internal/blob"
	"github.com/calemcnulty-gai/reel-ai/internal/media"
	"github.com/calemcnulty-gai/reel-ai/internal/pipeline"
	"github.com/calemcnulty-gai/reel-ai/internal/store"
)

type stubExtractor struct{}

func (stubExtractor) ExtractFrame(ctx context.Context, videoPath, outPath string) error {
	return os.WriteFile(outPath, []byte("jpeg"), 0644)
}

type testEnv struct {
	handler http.Handler
	store   store.VideoStore
	blobs   blob.BlobStore
	blobDir string
	auth    *auth.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	videoStore, err := store.NewSQLiteVideoStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { videoStore.Close() })

	blobDir := t.TempDir()
	blobs := blob.NewFSBlobStore(blobDir, "http://localhost/content")

	scratch := t.TempDir()
	extractor := stubExtractor{}

	verifier := auth.NewLocalVerifier()
	if _, err := verifier.Register("owner@example.com", "pw-owner", "Owner"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := verifier.Register("other@example.com", "pw-other", "Other"); err != nil {
		t.Fatalf("register: %v", err)
	}
	authService := auth.NewService(verifier, "test-secret")

	s := NewServer(Options{
		Auth:           authService,
		Store:          videoStore,
		Blobs:          blobs,
		Uploader:       pipeline.NewUploader(videoStore, blobs, extractor, scratch),
		Pipeline:       pipeline.New(videoStore, blobs, extractor, scratch),
		ScratchDir:     scratch,
		MaxUploadBytes: 10 << 20,
	})

	return &testEnv{
		handler: s.Handler(),
		store:   videoStore,
		blobs:   blobs,
		blobDir: blobDir,
		auth:    authService,
	}
}

func (e *testEnv) signIn(t *testing.T, email, password string) string {
	t.Helper()
	token, _, err := e.auth.SignIn(context.Background(), email+":"+password)
	if err != nil {
		t.Fatalf("sign-in: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) seedVideo(t *testing.T, userID string, createdAt time.Time) media.Video {
	t.Helper()
	url, err := e.blobs.Upload(context.Background(),
		fmt.Sprintf("videos/%s/video_%d.mp4", userID, createdAt.UnixMilli()),
		bytes.NewReader([]byte("mp4 bytes")), 9, nil)
	if err != nil {
		t.Fatalf("seed blob: %v", err)
	}

	v := media.Video{UserID: userID, VideoURL: url, CreatedAt: createdAt}
	id, err := e.store.Create(context.Background(), &v)
	if err != nil {
		t.Fatalf("seed video: %v", err)
	}
	v.ID = id
	return v
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid response body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestFeedLimitClamp(t *testing.T) {
	env := newTestEnv(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		env.seedVideo(t, "u1", base.Add(time.Duration(i)*time.Minute))
	}

	rec := env.do(t, http.MethodGet, "/api/videos?limit=50", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	resp := decode[feedResponse](t, rec)
	if len(resp.Data) != maxFeedLimit {
		t.Errorf("expected %d videos, got %d", maxFeedLimit, len(resp.Data))
	}
	if !resp.HasMore || resp.NextCursor == "" {
		t.Errorf("expected hasMore with cursor, got %+v", resp)
	}

	// The next page picks up where the cursor left off.
	rec = env.do(t, http.MethodGet, "/api/videos?after="+resp.NextCursor, "", nil, "")
	next := decode[feedResponse](t, rec)
	if len(next.Data) != 2 {
		t.Errorf("expected 2 remaining videos, got %d", len(next.Data))
	}
}

func TestUploadRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	body, contentType := multipartUpload(t, "clip.mp4", "", "")
	rec := env.do(t, http.MethodPost, "/api/videos", "", body, contentType)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func multipartUpload(t *testing.T, filename, title, description string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write([]byte("mp4 bytes"))
	if title != "" {
		w.WriteField("title", title)
	}
	if description != "" {
		w.WriteField("description", description)
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestUploadAndFetch(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, "owner@example.com", "pw-owner")

	body, contentType := multipartUpload(t, "clip.mp4", "T", "")
	rec := env.do(t, http.MethodPost, "/api/videos", token, body, contentType)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	uploaded := decode[media.Video](t, rec)
	if uploaded.Title == nil || *uploaded.Title != "T" || uploaded.Description != nil {
		t.Errorf("unexpected metadata: %+v", uploaded)
	}
	if uploaded.ViewCount != 0 || uploaded.LikeCount != 0 || uploaded.ShareCount != 0 {
		t.Errorf("counters not zero: %+v", uploaded)
	}
	if uploaded.ThumbnailURL == nil {
		t.Error("expected inline thumbnail")
	}

	rec = env.do(t, http.MethodGet, "/api/videos/"+uploaded.ID, "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("detail status %d", rec.Code)
	}
}

func TestUploadRejectsNonMP4(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, "owner@example.com", "pw-owner")

	body, contentType := multipartUpload(t, "clip.mov", "", "")
	rec := env.do(t, http.MethodPost, "/api/videos", token, body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestPatchVideo(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, "owner@example.com", "pw-owner")
	owner, _ := env.auth.CurrentUser(context.Background(), token)
	v := env.seedVideo(t, owner.ID, time.Now().UTC())

	rec := env.do(t, http.MethodPatch, "/api/videos/"+v.ID, token,
		bytes.NewReader([]byte(`{"title":"renamed"}`)), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	updated := decode[media.Video](t, rec)
	if updated.Title == nil || *updated.Title != "renamed" {
		t.Errorf("title not updated: %+v", updated)
	}

	rec = env.do(t, http.MethodPatch, "/api/videos/"+v.ID, token,
		bytes.NewReader([]byte(`{"title":"   "}`)), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank title: expected 400, got %d", rec.Code)
	}
}

func TestNonOwnerCannotModify(t *testing.T) {
	env := newTestEnv(t)
	ownerToken := env.signIn(t, "owner@example.com", "pw-owner")
	owner, _ := env.auth.CurrentUser(context.Background(), ownerToken)
	otherToken := env.signIn(t, "other@example.com", "pw-other")

	v := env.seedVideo(t, owner.ID, time.Now().UTC())
	key, _ := env.blobs.KeyFromURL(v.VideoURL)

	rec := env.do(t, http.MethodDelete, "/api/videos/"+v.ID, otherToken, nil, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	// Record and blob must both survive the rejected delete.
	got, err := env.store.Get(context.Background(), v.ID)
	if err != nil || got == nil {
		t.Errorf("video removed by non-owner: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.blobDir, filepath.FromSlash(key))); err != nil {
		t.Errorf("blob removed by non-owner: %v", err)
	}

	rec = env.do(t, http.MethodPatch, "/api/videos/"+v.ID, otherToken,
		bytes.NewReader([]byte(`{"title":"hijack"}`)), "application/json")
	if rec.Code != http.StatusForbidden {
		t.Errorf("patch: expected 403, got %d", rec.Code)
	}
}

func TestOwnerDeleteRemovesRecordAndBlob(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, "owner@example.com", "pw-owner")
	owner, _ := env.auth.CurrentUser(context.Background(), token)
	v := env.seedVideo(t, owner.ID, time.Now().UTC())
	key, _ := env.blobs.KeyFromURL(v.VideoURL)

	rec := env.do(t, http.MethodDelete, "/api/videos/"+v.ID, token, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	got, _ := env.store.Get(context.Background(), v.ID)
	if got != nil {
		t.Error("video still present after delete")
	}
	if _, err := os.Stat(filepath.Join(env.blobDir, filepath.FromSlash(key))); !os.IsNotExist(err) {
		t.Errorf("blob still present after delete: %v", err)
	}
}

func TestEngagementEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, "other@example.com", "pw-other")
	v := env.seedVideo(t, "u1", time.Now().UTC())

	rec := env.do(t, http.MethodPost, "/api/videos/"+v.ID+"/view", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("view status %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/videos/"+v.ID+"/share", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("share status %d", rec.Code)
	}

	// Likes need a signed-in user.
	rec = env.do(t, http.MethodPost, "/api/videos/"+v.ID+"/like", "", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous like: expected 401, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/videos/"+v.ID+"/like", token, nil, "")
	like := decode[map[string]bool](t, rec)
	if !like["liked"] {
		t.Error("expected liked=true")
	}
	rec = env.do(t, http.MethodPost, "/api/videos/"+v.ID+"/like", token, nil, "")
	like = decode[map[string]bool](t, rec)
	if like["liked"] {
		t.Error("expected liked=false on second toggle")
	}

	got, _ := env.store.Get(context.Background(), v.ID)
	if got.ViewCount != 1 || got.ShareCount != 1 || got.LikeCount != 0 {
		t.Errorf("unexpected counters: %+v", got)
	}

	rec = env.do(t, http.MethodPost, "/api/videos/missing/view", "", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing video view: expected 404, got %d", rec.Code)
	}
}

func TestMyVideos(t *testing.T) {
	env := newTestEnv(t)
	token := env.signIn(t, "owner@example.com", "pw-owner")
	owner, _ := env.auth.CurrentUser(context.Background(), token)

	env.seedVideo(t, owner.ID, time.Now().UTC())
	env.seedVideo(t, "someone-else", time.Now().UTC().Add(time.Minute))

	rec := env.do(t, http.MethodGet, "/api/users/me/videos", token, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var resp struct {
		Data  []media.Video `json:"data"`
		Total int           `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if resp.Total != 1 || len(resp.Data) != 1 || resp.Data[0].UserID != owner.ID {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSignInSignOutEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/signin", "",
		bytes.NewReader([]byte(`{"idToken":"owner@example.com:pw-owner"}`)), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("signin status %d: %s", rec.Code, rec.Body.String())
	}
	signin := decode[signInResponse](t, rec)
	if signin.Token == "" || signin.User.Handle != "owner" {
		t.Errorf("unexpected signin response: %+v", signin)
	}

	rec = env.do(t, http.MethodGet, "/api/me", signin.Token, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("me status %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/signout", signin.Token, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("signout status %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/me", signin.Token, nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after signout, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/signin", "",
		bytes.NewReader([]byte(`{"idToken":"owner@example.com:wrong"}`)), "application/json")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad credentials: expected 401, got %d", rec.Code)
	}
}
