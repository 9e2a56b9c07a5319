// Package session owns the authenticated-session lifecycle: the bearer
// token and user identity, loaded from and persisted to the system
// keyring, with an explicit init/teardown tied to login and logout. The
// gateway and scheduler receive a Session instead of reaching for ambient
// global state.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/asilva/triage/internal/credential"
	"github.com/asilva/triage/internal/model"
)

// ErrNotAuthenticated is returned by Load when no token is stored.
var ErrNotAuthenticated = errors.New("no stored session; log in first")

// Session holds the current bearer token and user identity. It implements
// gateway.TokenSource. Safe for concurrent use: the sync goroutine reads
// the token while the UI goroutine may tear the session down.
type Session struct {
	mu    sync.RWMutex
	token string
	user  model.User
}

// Load restores a session from the system keyring. A missing token yields
// ErrNotAuthenticated; a missing user record is tolerated (the profile
// endpoint refills it).
func Load() (*Session, error) {
	token, err := credential.LoadToken()
	if err != nil || token == "" {
		return nil, ErrNotAuthenticated
	}

	s := &Session{token: token}
	if raw, err := credential.LoadUser(); err == nil && raw != "" {
		_ = json.Unmarshal([]byte(raw), &s.user)
	}
	return s, nil
}

// Init creates and persists a new session after a successful auth
// exchange.
func Init(token string, user model.User) (*Session, error) {
	if err := credential.StoreToken(token); err != nil {
		return nil, fmt.Errorf("persisting token: %w", err)
	}

	raw, err := json.Marshal(user)
	if err == nil {
		if err := credential.StoreUser(string(raw)); err != nil {
			return nil, fmt.Errorf("persisting user: %w", err)
		}
	}

	return &Session{token: token, user: user}, nil
}

// Token returns the bearer token. Empty after teardown.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the stored user identity.
func (s *Session) User() model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// SetUser updates the stored identity, e.g. after a profile fetch.
func (s *Session) SetUser(user model.User) {
	s.mu.Lock()
	s.user = user
	s.mu.Unlock()

	if raw, err := json.Marshal(user); err == nil {
		_ = credential.StoreUser(string(raw))
	}
}

// Expired reports whether the token is a JWT whose exp claim has passed.
// The claim is decoded without signature verification; the client only
// uses it to skip requests that are certain to bounce. Opaque non-JWT
// tokens are never considered locally expired.
func (s *Session) Expired() bool {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()

	if token == "" {
		return true
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

// Teardown clears the in-memory session and deletes the persisted
// credentials. Called on logout and on any 401. Idempotent.
func (s *Session) Teardown() error {
	s.mu.Lock()
	s.token = ""
	s.user = model.User{}
	s.mu.Unlock()

	return credential.Clear()
}
