// Package session tracks whether the user is authenticated and notifies
// listeners when that changes. It is the explicit lifecycle the reminder
// poller is bound to.
package session

import (
	"errors"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/classroom/internal/credential"
)

// tokenKey is the vault key of the bearer token.
const tokenKey = "session-token"

// Role is the classroom role carried by the token.
type Role string

const (
	RoleUnknown Role = ""
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// CanStartAttendance reports whether the role may open attendance windows.
func (r Role) CanStartAttendance() bool {
	return r == RoleTeacher || r == RoleAdmin || r == RoleUnknown
}

// CanExportAttendance reports whether the role may download the
// classroom's attendance sheet.
func (r Role) CanExportAttendance() bool {
	return r.CanStartAttendance()
}

// CanMarkAttendance reports whether the role may mark itself present.
func (r Role) CanMarkAttendance() bool {
	return r == RoleStudent || r == RoleUnknown
}

// Vault persists the token between runs.
type Vault interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Session holds the bearer token of the signed-in user.
type Session struct {
	vault Vault
	now   func() time.Time

	mu        gosync.Mutex
	token     string
	claims    jwt.MapClaims
	listeners []func(authenticated bool)
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock token expiry is checked against.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a signed-out session persisting through vault.
func New(vault Vault, opts ...Option) *Session {
	s := &Session{vault: vault, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads a previously saved token. A missing token leaves the
// session signed out and is not an error.
func (s *Session) Restore() error {
	token, err := s.vault.Get(tokenKey)
	if errors.Is(err, credential.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restoring session: %w", err)
	}
	return s.set(token, false)
}

// Login stores token and notifies listeners.
func (s *Session) Login(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("empty token")
	}
	return s.set(token, true)
}

func (s *Session) set(token string, persist bool) error {
	if persist {
		if err := s.vault.Set(tokenKey, token); err != nil {
			return fmt.Errorf("saving session: %w", err)
		}
	}

	s.mu.Lock()
	s.token = token
	s.claims = parseClaims(token)
	s.mu.Unlock()

	s.notify()
	return nil
}

// Logout forgets the token and notifies listeners.
func (s *Session) Logout() error {
	s.mu.Lock()
	hadToken := s.token != ""
	s.token = ""
	s.claims = nil
	s.mu.Unlock()

	err := s.vault.Delete(tokenKey)
	if hadToken {
		s.notify()
	}
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// Token returns the bearer token while it is present and, for JWTs, not
// past its expiry. It matches api.TokenSource.
func (s *Session) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return "", false
	}
	if s.expiredLocked() {
		return "", false
	}
	return s.token, true
}

// Authenticated reports whether a usable token is present.
func (s *Session) Authenticated() bool {
	_, ok := s.Token()
	return ok
}

// Expired reports whether a token is held but its JWT expiry has passed.
// Listeners are not notified on expiry; the holder is expected to Logout.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token != "" && s.expiredLocked()
}

// Role returns the role claim of the token, RoleUnknown for opaque tokens.
func (s *Session) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range []string{"user_role", "role"} {
		if v, ok := s.claims[key].(string); ok && v != "" {
			return Role(strings.ToLower(v))
		}
	}
	return RoleUnknown
}

// OnChange registers fn to be called after every login or logout with the
// new authentication state. Listeners run synchronously on the caller's
// goroutine.
func (s *Session) OnChange(fn func(authenticated bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) notify() {
	s.mu.Lock()
	listeners := append([]func(bool){}, s.listeners...)
	authed := s.token != "" && !s.expiredLocked()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(authed)
	}
}

func (s *Session) expiredLocked() bool {
	if s.claims == nil {
		return false
	}
	exp, err := s.claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !s.now().Before(exp.Time)
}

// parseClaims reads JWT claims without verifying the signature; the server
// remains the authority. Opaque tokens yield nil.
func parseClaims(token string) jwt.MapClaims {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil
	}
	return claims
}
