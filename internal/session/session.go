// Package session keeps the signed-in user and access token across restarts.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/franckalain/leafmetric/internal/models"
	"github.com/franckalain/leafmetric/internal/securestore"
)

// Storage keys
const (
	TokenKey = "token"
	UserKey  = "user"
)

// ErrEmptyToken is returned by Login when the server issued no token
var ErrEmptyToken = errors.New("no access token issued")

// Store holds the active session in memory and mirrors it to a secure store
type Store struct {
	backend securestore.Store
	logger  *log.Logger

	mu    sync.RWMutex
	token string
	user  *models.User
}

// New creates a session store; a nil logger discards output
func New(backend securestore.Store, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Store{backend: backend, logger: logger}
}

// Restore loads a persisted session. Absence or unreadable storage means no session.
func (s *Store) Restore(ctx context.Context) (models.Session, bool) {
	token, err := s.backend.Get(ctx, TokenKey)
	if err != nil {
		if !errors.Is(err, securestore.ErrNotFound) {
			s.logger.Printf("[SESSION] failed to read token: %v", err)
		}
		return models.Session{}, false
	}
	raw, err := s.backend.Get(ctx, UserKey)
	if err != nil {
		if !errors.Is(err, securestore.ErrNotFound) {
			s.logger.Printf("[SESSION] failed to read user: %v", err)
		}
		return models.Session{}, false
	}
	if token == "" {
		return models.Session{}, false
	}

	var user models.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.Printf("[SESSION] stored user is not valid JSON: %v", err)
		return models.Session{}, false
	}

	s.mu.Lock()
	s.token = token
	s.user = &user
	s.mu.Unlock()

	s.logger.Printf("[SESSION] restored session for %s", user.Email)
	return models.Session{Token: token, User: user}, true
}

// Login persists token and user and makes them the active session
func (s *Store) Login(ctx context.Context, token string, user models.User) error {
	if token == "" {
		return ErrEmptyToken
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	if err := s.backend.Set(ctx, UserKey, string(data)); err != nil {
		return fmt.Errorf("failed to store user: %w", err)
	}
	if err := s.backend.Set(ctx, TokenKey, token); err != nil {
		// Do not leave a user without a token behind
		if derr := s.backend.Delete(ctx, UserKey); derr != nil {
			s.logger.Printf("[SESSION] failed to roll back user: %v", derr)
		}
		return fmt.Errorf("failed to store token: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.user = &user
	s.mu.Unlock()

	s.logger.Printf("[SESSION] logged in as %s", user.Email)
	return nil
}

// Logout forgets the session in memory and in storage. Safe to call when logged out.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	err := errors.Join(
		s.backend.Delete(ctx, TokenKey),
		s.backend.Delete(ctx, UserKey),
	)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.logger.Printf("[SESSION] logged out")
	return nil
}

// Token returns the in-memory access token, or "" when logged out
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the in-memory user
func (s *Store) User() (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

// Authenticated reports whether a session is active
func (s *Store) Authenticated() bool {
	return s.Token() != ""
}
