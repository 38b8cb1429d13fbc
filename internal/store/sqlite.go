package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/calemcnulty-gai/reel-ai/internal/media"
	"github.com/calemcnulty-gai/reel-ai/internal/notify"
)

type SQLiteVideoStore struct {
	db      *sql.DB
	changes *notify.Broadcaster[struct{}]
}

var _ VideoStore = (*SQLiteVideoStore)(nil)

func NewSQLiteVideoStore(dbPath string) (*SQLiteVideoStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS videos (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT,
			description TEXT,
			video_url TEXT NOT NULL,
			thumbnail_url TEXT,
			created_at DATETIME NOT NULL,
			view_count INTEGER NOT NULL DEFAULT 0,
			like_count INTEGER NOT NULL DEFAULT 0,
			share_count INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_videos_user_id ON videos(user_id);
		CREATE TABLE IF NOT EXISTS video_likes (
			video_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (video_id, user_id)
		);
	`)
	if err != nil {
		return nil, err
	}

	return &SQLiteVideoStore{db: db, changes: notify.NewBroadcaster[struct{}]()}, nil
}

const videoColumns = `id, user_id, title, description, video_url, thumbnail_url, created_at, view_count, like_count, share_count`

func scanVideo(row interface{ Scan(...any) error }) (*media.Video, error) {
	var v media.Video
	err := row.Scan(&v.ID, &v.UserID, &v.Title, &v.Description, &v.VideoURL,
		&v.ThumbnailURL, &v.CreatedAt, &v.ViewCount, &v.LikeCount, &v.ShareCount)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *SQLiteVideoStore) Create(ctx context.Context, v *media.Video) (string, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO videos (`+videoColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.Title, v.Description, v.VideoURL, v.ThumbnailURL,
		v.CreatedAt, v.ViewCount, v.LikeCount, v.ShareCount,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return "", errors.New("video ID already exists")
		}
		return "", fmt.Errorf("failed to insert video: %w", err)
	}

	s.changes.Publish(struct{}{})
	return v.ID, nil
}

func (s *SQLiteVideoStore) Get(ctx context.Context, id string) (*media.Video, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = ?`, id)

	v, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read video: %w", err)
	}
	return v, nil
}

func (s *SQLiteVideoStore) List(ctx context.Context, limit int, startAfterID string) ([]media.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos ORDER BY created_at DESC, id DESC LIMIT ?`
	args := []any{limit}

	if startAfterID != "" {
		cursor, err := s.Get(ctx, startAfterID)
		if err != nil {
			return nil, err
		}
		if cursor == nil {
			return nil, fmt.Errorf("cursor video %s: %w", startAfterID, media.ErrNotFound)
		}
		query = `SELECT ` + videoColumns + ` FROM videos
			WHERE created_at < ? OR (created_at = ? AND id < ?)
			ORDER BY created_at DESC, id DESC LIMIT ?`
		args = []any{cursor.CreatedAt, cursor.CreatedAt, cursor.ID, limit}
	}

	return s.queryVideos(ctx, query, args...)
}

func (s *SQLiteVideoStore) ListByUser(ctx context.Context, userID string) ([]media.Video, error) {
	return s.queryVideos(ctx, `SELECT `+videoColumns+` FROM videos
		WHERE user_id = ? ORDER BY created_at DESC, id DESC`, userID)
}

func (s *SQLiteVideoStore) ListMissingThumbnails(ctx context.Context) ([]media.Video, error) {
	return s.queryVideos(ctx, `SELECT `+videoColumns+` FROM videos
		WHERE thumbnail_url IS NULL ORDER BY created_at DESC, id DESC`)
}

func (s *SQLiteVideoStore) queryVideos(ctx context.Context, query string, args ...any) ([]media.Video, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	var result []media.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

func (s *SQLiteVideoStore) Update(ctx context.Context, id string, title, description, thumbnailURL *string) error {
	var cols []string
	var args []any
	if title != nil {
		cols = append(cols, "title = ?")
		args = append(args, *title)
	}
	if description != nil {
		cols = append(cols, "description = ?")
		args = append(args, *description)
	}
	if thumbnailURL != nil {
		cols = append(cols, "thumbnail_url = ?")
		args = append(args, *thumbnailURL)
	}
	if len(cols) == 0 {
		return nil
	}
	args = append(args, id)

	return s.execOnVideo(ctx, `UPDATE videos SET `+strings.Join(cols, ", ")+` WHERE id = ?`, args...)
}

func (s *SQLiteVideoStore) SetThumbnailURL(ctx context.Context, id, url string) error {
	return s.execOnVideo(ctx, `UPDATE videos SET thumbnail_url = ? WHERE id = ?`, url, id)
}

func (s *SQLiteVideoStore) IncrementViews(ctx context.Context, id string) error {
	return s.execOnVideo(ctx, `UPDATE videos SET view_count = view_count + 1 WHERE id = ?`, id)
}

func (s *SQLiteVideoStore) IncrementShares(ctx context.Context, id string) error {
	return s.execOnVideo(ctx, `UPDATE videos SET share_count = share_count + 1 WHERE id = ?`, id)
}

// execOnVideo runs a single-row mutation and reports ErrNotFound when the
// video does not exist.
func (s *SQLiteVideoStore) execOnVideo(ctx context.Context, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return media.ErrNotFound
	}
	s.changes.Publish(struct{}{})
	return nil
}

func (s *SQLiteVideoStore) ToggleLike(ctx context.Context, videoID, userID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM video_likes WHERE video_id = ? AND user_id = ?)`,
		videoID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to read like: %w", err)
	}

	if exists {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM video_likes WHERE video_id = ? AND user_id = ?`, videoID, userID); err != nil {
			return false, fmt.Errorf("failed to remove like: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE videos SET like_count = like_count - 1 WHERE id = ? AND like_count > 0`, videoID); err != nil {
			return false, fmt.Errorf("failed to update like count: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO video_likes (video_id, user_id, created_at) VALUES (?, ?, ?)`,
			videoID, userID, time.Now().UTC()); err != nil {
			return false, fmt.Errorf("failed to add like: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE videos SET like_count = like_count + 1 WHERE id = ?`, videoID); err != nil {
			return false, fmt.Errorf("failed to update like count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit like toggle: %w", err)
	}

	s.changes.Publish(struct{}{})
	return !exists, nil
}

func (s *SQLiteVideoStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM video_likes WHERE video_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete likes: %w", err)
	}
	return s.execOnVideo(ctx, `DELETE FROM videos WHERE id = ?`, id)
}

func (s *SQLiteVideoStore) Watch(ctx context.Context, limit int) (<-chan []media.Video, error) {
	return watchVideos(ctx, s, s.changes, limit)
}

func (s *SQLiteVideoStore) Close() error {
	return s.db.Close()
}
