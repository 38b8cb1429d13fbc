package media

import "time"

// Video is a single entry in the feed. ThumbnailURL stays nil until a
// thumbnail pipeline run succeeds for the video.
type Video struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Title        *string   `json:"title,omitempty"`
	Description  *string   `json:"description,omitempty"`
	VideoURL     string    `json:"videoUrl"`
	ThumbnailURL *string   `json:"thumbnailUrl,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	ViewCount    int64     `json:"viewCount"`
	LikeCount    int64     `json:"likeCount"`
	ShareCount   int64     `json:"shareCount"`
}

// User is a profile projection of the identity provider's account. Handle is
// derived from the email local-part; handle and bio edits are not written
// back to the provider.
type User struct {
	ID          string  `json:"id"`
	Email       string  `json:"email"`
	DisplayName string  `json:"displayName"`
	Handle      string  `json:"handle"`
	Bio         *string `json:"bio,omitempty"`
	PhotoURL    *string `json:"photoUrl,omitempty"`
}
