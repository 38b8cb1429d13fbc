package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/calemcnulty-gai/reel-ai/internal/media"
)

// LocalVerifier is an in-process identity provider for development and
// tests. Identity tokens take the form "email:password".
type LocalVerifier struct {
	mu       sync.RWMutex
	accounts map[string]*localAccount // keyed by email
}

type localAccount struct {
	id           string
	displayName  string
	passwordHash []byte
}

var _ TokenVerifier = (*LocalVerifier)(nil)

func NewLocalVerifier() *LocalVerifier {
	return &LocalVerifier{accounts: make(map[string]*localAccount)}
}

// Register creates an account and returns its id.
func (v *LocalVerifier) Register(email, password, displayName string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, exists := v.accounts[email]; exists {
		return "", errors.New("account already exists")
	}

	id := uuid.NewString()
	v.accounts[email] = &localAccount{
		id:           id,
		displayName:  displayName,
		passwordHash: hash,
	}
	return id, nil
}

func (v *LocalVerifier) Verify(ctx context.Context, idToken string) (*media.User, error) {
	email, password, found := strings.Cut(idToken, ":")
	if !found {
		return nil, errors.New("malformed identity token")
	}

	v.mu.RLock()
	account, ok := v.accounts[email]
	v.mu.RUnlock()
	if !ok {
		return nil, errors.New("unknown account")
	}

	if err := bcrypt.CompareHashAndPassword(account.passwordHash, []byte(password)); err != nil {
		return nil, errors.New("bad credentials")
	}

	return &media.User{
		ID:          account.id,
		Email:       email,
		DisplayName: account.displayName,
	}, nil
}
