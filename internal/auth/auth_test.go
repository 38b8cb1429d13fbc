package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/calemcnulty-gai/reel-ai/internal/media"
)

func newTestService(t *testing.T) (*Service, *LocalVerifier) {
	t.Helper()
	verifier := NewLocalVerifier()
	if _, err := verifier.Register("jordan@example.com", "hunter22", "Jordan"); err != nil {
		t.Fatalf("register: %v", err)
	}
	return NewService(verifier, "test-secret"), verifier
}

func TestSignInAndCurrentUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	token, user, err := svc.SignIn(ctx, "jordan@example.com:hunter22")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if token == "" {
		t.Fatal("empty session token")
	}
	if user.Handle != "jordan" {
		t.Errorf("expected handle jordan, got %s", user.Handle)
	}

	got, err := svc.CurrentUser(ctx, token)
	if err != nil {
		t.Fatalf("CurrentUser: %v", err)
	}
	if got.ID != user.ID || got.Email != "jordan@example.com" || got.Handle != "jordan" {
		t.Errorf("unexpected user: %+v", got)
	}
}

func TestSignInBadCredentials(t *testing.T) {
	svc, _ := newTestService(t)

	_, _, err := svc.SignIn(context.Background(), "jordan@example.com:wrong")
	if !errors.Is(err, media.ErrAuthFailure) {
		t.Errorf("expected ErrAuthFailure, got %v", err)
	}

	_, _, err = svc.SignIn(context.Background(), "nobody@example.com:hunter22")
	if !errors.Is(err, media.ErrAuthFailure) {
		t.Errorf("expected ErrAuthFailure for unknown account, got %v", err)
	}
}

func TestCurrentUserRejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := svc.CurrentUser(context.Background(), token); !errors.Is(err, media.ErrNotAuthenticated) {
			t.Errorf("token %q: expected ErrNotAuthenticated, got %v", token, err)
		}
	}
}

func TestSignOutRevokesSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	token, _, err := svc.SignIn(ctx, "jordan@example.com:hunter22")
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}

	if err := svc.SignOut(ctx, token); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if _, err := svc.CurrentUser(ctx, token); !errors.Is(err, media.ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated after sign-out, got %v", err)
	}

	// Signing out again is not an error.
	if err := svc.SignOut(ctx, token); err != nil {
		t.Errorf("repeated SignOut: %v", err)
	}
}

func TestAuthStateStream(t *testing.T) {
	svc, _ := newTestService(t)
	states, cancel := svc.AuthState()
	defer cancel()

	token, _, _ := svc.SignIn(context.Background(), "jordan@example.com:hunter22")
	if got := <-states; !got {
		t.Error("expected signed-in transition")
	}

	svc.SignOut(context.Background(), token)
	if got := <-states; got {
		t.Error("expected signed-out transition")
	}
}

func TestHandleFromEmail(t *testing.T) {
	cases := []struct {
		email string
		want  string
	}{
		{"jordan@example.com", "jordan"},
		{"a.b+c@sub.example.com", "a.b+c"},
		{"noatsign", "noatsign"},
		{"", ""},
	}
	for _, c := range cases {
		if got := HandleFromEmail(c.email); got != c.want {
			t.Errorf("HandleFromEmail(%q) = %q, want %q", c.email, got, c.want)
		}
	}
}
