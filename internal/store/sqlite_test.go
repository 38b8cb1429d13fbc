package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/calemcnulty-gai/reel-ai/internal/media"
)

func newTestStore(t *testing.T) *SQLiteVideoStore {
	t.Helper()
	s, err := NewSQLiteVideoStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addVideo(t *testing.T, s *SQLiteVideoStore, userID string, createdAt time.Time) media.Video {
	t.Helper()
	v := media.Video{
		UserID:    userID,
		VideoURL:  "http://blobs.test/videos/" + userID + "/v.mp4",
		CreatedAt: createdAt,
	}
	id, err := s.Create(context.Background(), &v)
	if err != nil {
		t.Fatalf("failed to create video: %v", err)
	}
	v.ID = id
	return v
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	title := "my clip"
	v := media.Video{UserID: "u1", Title: &title, VideoURL: "http://blobs.test/v.mp4"}
	id, err := s.Create(ctx, &v)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("Create returned empty id")
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for existing video")
	}
	if got.UserID != "u1" || got.Title == nil || *got.Title != "my clip" {
		t.Errorf("unexpected video: %+v", got)
	}
	if got.ViewCount != 0 || got.LikeCount != 0 || got.ShareCount != 0 {
		t.Errorf("new video counters not zero: %+v", got)
	}
	if got.ThumbnailURL != nil {
		t.Errorf("new video has thumbnail: %v", *got.ThumbnailURL)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 15; i++ {
		addVideo(t, s, "u1", base.Add(time.Duration(i)*time.Minute))
	}

	page, err := s.List(ctx, 10, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 10 {
		t.Fatalf("expected 10 videos, got %d", len(page))
	}
	for i := 1; i < len(page); i++ {
		if page[i].CreatedAt.After(page[i-1].CreatedAt) {
			t.Errorf("page out of order at %d: %v after %v", i, page[i].CreatedAt, page[i-1].CreatedAt)
		}
	}
}

func TestListCursorPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		addVideo(t, s, "u1", base.Add(time.Duration(i)*time.Minute))
	}

	seen := map[string]bool{}
	cursor := ""
	for {
		page, err := s.List(ctx, 2, cursor)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, v := range page {
			if seen[v.ID] {
				t.Fatalf("video %s returned twice", v.ID)
			}
			seen[v.ID] = true
		}
		cursor = page[len(page)-1].ID
	}
	if len(seen) != 5 {
		t.Errorf("expected 5 distinct videos across pages, got %d", len(seen))
	}

	if _, err := s.List(ctx, 2, "bogus-cursor"); !errors.Is(err, media.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown cursor, got %v", err)
	}
}

func TestToggleLike(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	v := addVideo(t, s, "u1", time.Now().UTC())

	liked, err := s.ToggleLike(ctx, v.ID, "u2")
	if err != nil || !liked {
		t.Fatalf("first toggle: liked=%v err=%v", liked, err)
	}
	liked, err = s.ToggleLike(ctx, v.ID, "u2")
	if err != nil || liked {
		t.Fatalf("second toggle: liked=%v err=%v", liked, err)
	}
	liked, err = s.ToggleLike(ctx, v.ID, "u2")
	if err != nil || !liked {
		t.Fatalf("third toggle: liked=%v err=%v", liked, err)
	}

	got, err := s.Get(ctx, v.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.LikeCount != 1 {
		t.Errorf("expected like count 1, got %d", got.LikeCount)
	}
}

func TestToggleLikeTwoUsers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	v := addVideo(t, s, "u1", time.Now().UTC())

	s.ToggleLike(ctx, v.ID, "u2")
	s.ToggleLike(ctx, v.ID, "u3")

	got, _ := s.Get(ctx, v.ID)
	if got.LikeCount != 2 {
		t.Errorf("expected like count 2, got %d", got.LikeCount)
	}
}

func TestIncrements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	v := addVideo(t, s, "u1", time.Now().UTC())

	for i := 0; i < 3; i++ {
		if err := s.IncrementViews(ctx, v.ID); err != nil {
			t.Fatalf("IncrementViews: %v", err)
		}
	}
	if err := s.IncrementShares(ctx, v.ID); err != nil {
		t.Fatalf("IncrementShares: %v", err)
	}

	got, _ := s.Get(ctx, v.ID)
	if got.ViewCount != 3 || got.ShareCount != 1 {
		t.Errorf("expected views=3 shares=1, got views=%d shares=%d", got.ViewCount, got.ShareCount)
	}

	if err := s.IncrementViews(ctx, "missing"); !errors.Is(err, media.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	v := addVideo(t, s, "u1", time.Now().UTC())

	title := "new title"
	if err := s.Update(ctx, v.ID, &title, nil, nil); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, _ := s.Get(ctx, v.ID)
	if got.Title == nil || *got.Title != "new title" {
		t.Errorf("title not updated: %+v", got)
	}
	if got.Description != nil {
		t.Errorf("description should be untouched: %v", *got.Description)
	}

	// All-nil update is a no-op success even for missing ids.
	if err := s.Update(ctx, "missing", nil, nil, nil); err != nil {
		t.Errorf("no-op update should succeed, got %v", err)
	}
	if err := s.Update(ctx, "missing", &title, nil, nil); !errors.Is(err, media.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListMissingThumbnails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v1 := addVideo(t, s, "u1", time.Now().UTC())
	v2 := addVideo(t, s, "u1", time.Now().UTC().Add(time.Minute))

	if err := s.SetThumbnailURL(ctx, v2.ID, "http://blobs.test/thumb.jpg"); err != nil {
		t.Fatalf("SetThumbnailURL: %v", err)
	}

	missing, err := s.ListMissingThumbnails(ctx)
	if err != nil {
		t.Fatalf("ListMissingThumbnails: %v", err)
	}
	if len(missing) != 1 || missing[0].ID != v1.ID {
		t.Errorf("expected only %s missing, got %+v", v1.ID, missing)
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	v := addVideo(t, s, "u1", time.Now().UTC())
	s.ToggleLike(ctx, v.ID, "u2")

	if err := s.Delete(ctx, v.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got, _ := s.Get(ctx, v.ID)
	if got != nil {
		t.Errorf("video still present after delete")
	}
	if err := s.Delete(ctx, v.ID); !errors.Is(err, media.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestWatchEmitsOnChange(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addVideo(t, s, "u1", time.Now().UTC())

	pages, err := s.Watch(ctx, 10)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	select {
	case page := <-pages:
		if len(page) != 1 {
			t.Fatalf("expected initial page of 1, got %d", len(page))
		}
	case <-time.After(time.Second):
		t.Fatal("no initial page emitted")
	}

	addVideo(t, s, "u1", time.Now().UTC().Add(time.Minute))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case page := <-pages:
			if len(page) == 2 {
				return
			}
		case <-deadline:
			t.Fatal("no updated page after mutation")
		}
	}
}
