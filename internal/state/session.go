// Package state holds the client-side mutable state: the current session and
// the in-memory notification list. Stores are explicit instances passed
// through constructors, never package globals.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Session is the identity snapshot for the current login.
type Session struct {
	UserID             string `json:"user_id"`
	OrganizationID     string `json:"organization_id,omitempty"`
	Email              string `json:"email"`
	Role               string `json:"role"`
	IsImpersonating    bool   `json:"is_impersonating,omitempty"`
	HasAdminPrivileges bool   `json:"has_admin_privileges,omitempty"`
	Token              string `json:"token"`
}

const sessionFileName = "session.json"

// SessionStore owns the live session and mirrors it to disk so the API client
// can attach the token to requests issued before in-memory state is warm
// (e.g. the first call after process start).
type SessionStore struct {
	mu   sync.RWMutex
	path string
	cur  *Session
}

// NewSessionStore creates a store rooted at the given home directory.
// The disk snapshot, if present, is loaded eagerly.
func NewSessionStore(homeDir string) (*SessionStore, error) {
	s := &SessionStore{path: filepath.Join(homeDir, sessionFileName)}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read session snapshot: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		// A corrupt snapshot is not fatal: the user just has to log in again.
		_ = os.Remove(s.path)
		return s, nil
	}
	if sess.Token != "" {
		s.cur = &sess
	}
	return s, nil
}

// Set replaces the session and persists the snapshot before returning, so the
// token is on disk by the time callers proceed to authenticated requests.
func (s *SessionStore) Set(sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write session snapshot: %w", err)
	}
	copied := sess
	s.cur = &copied
	return nil
}

// Current returns the live session, if any.
func (s *SessionStore) Current() (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur == nil {
		return Session{}, false
	}
	return *s.cur, true
}

// Token returns the session token, or "" when logged out.
func (s *SessionStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cur == nil {
		return ""
	}
	return s.cur.Token
}

// Valid reports whether a session with a token is present.
func (s *SessionStore) Valid() bool {
	return s.Token() != ""
}

// Clear drops the session and removes the disk snapshot. Idempotent.
func (s *SessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = nil
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session snapshot: %w", err)
	}
	return nil
}
