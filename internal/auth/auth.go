// Package auth wraps an external identity provider behind TokenVerifier and
// exchanges verified identity tokens for signed session tokens.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/calemcnulty-gai/reel-ai/internal/media"
	"github.com/calemcnulty-gai/reel-ai/internal/notify"
)

// TokenVerifier validates an identity token issued by the external provider
// and returns the account it belongs to. It is consumed as a black box.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*media.User, error)
}

// Claims is the session token payload.
type Claims struct {
	UserID      string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
	PhotoURL    string `json:"photo,omitempty"`
	jwt.RegisteredClaims
}

const sessionTTL = 24 * time.Hour

// Service issues and validates sessions and exposes a stream of
// signed-in/signed-out transitions.
type Service struct {
	verifier TokenVerifier
	secret   []byte
	state    *notify.Broadcaster[bool]

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> expiry
}

func NewService(verifier TokenVerifier, secret string) *Service {
	return &Service{
		verifier: verifier,
		secret:   []byte(secret),
		state:    notify.NewBroadcaster[bool](),
		revoked:  make(map[string]time.Time),
	}
}

// SignIn exchanges an identity token for a session token and the signed-in
// user's profile projection.
func (s *Service) SignIn(ctx context.Context, idToken string) (string, *media.User, error) {
	user, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		slog.Warn("sign-in rejected", "error", err)
		return "", nil, fmt.Errorf("%w: %v", media.ErrAuthFailure, err)
	}

	user.Handle = HandleFromEmail(user.Email)

	now := time.Now()
	claims := Claims{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	if user.PhotoURL != nil {
		claims.PhotoURL = *user.PhotoURL
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	slog.Info("user signed in", "user_id", user.ID, "handle", user.Handle)
	s.state.Publish(true)
	return token, user, nil
}

// CurrentUser returns the profile for a session token, or
// media.ErrNotAuthenticated when the session is missing, expired or revoked.
func (s *Service) CurrentUser(ctx context.Context, token string) (*media.User, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	user := &media.User{
		ID:          claims.UserID,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		Handle:      HandleFromEmail(claims.Email),
	}
	if claims.PhotoURL != "" {
		user.PhotoURL = &claims.PhotoURL
	}
	return user, nil
}

// SignOut revokes the session. Revoking an already-invalid token is not an
// error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		return nil
	}

	s.mu.Lock()
	s.revoked[claims.ID] = claims.ExpiresAt.Time
	// Drop revocations for sessions that have expired on their own.
	now := time.Now()
	for jti, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, jti)
		}
	}
	s.mu.Unlock()

	slog.Info("user signed out", "user_id", claims.UserID)
	s.state.Publish(false)
	return nil
}

// AuthState streams signed-in/signed-out transitions.
func (s *Service) AuthState() (<-chan bool, func()) {
	return s.state.Subscribe()
}

func (s *Service) parse(token string) (*Claims, error) {
	if token == "" {
		return nil, media.ErrNotAuthenticated
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, media.ErrNotAuthenticated
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, media.ErrNotAuthenticated
	}

	s.mu.Lock()
	_, revoked := s.revoked[claims.ID]
	s.mu.Unlock()
	if revoked {
		return nil, media.ErrNotAuthenticated
	}

	return claims, nil
}

// HandleFromEmail derives the user's handle from the email local-part.
func HandleFromEmail(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
