package memory

import (
	// Standard Library Imports
	"context"
	"sync"

	// External Imports
	"github.com/google/uuid"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// SessionManager provides an in-memory implementation of oidc.SessionManager.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]oidc.Session
}

// Configure implements oidc.Configure.
func (s *SessionManager) Configure(_ context.Context) error {
	return nil
}

// Create stores a new session.
func (s *SessionManager) Create(_ context.Context, session oidc.Session) (result oidc.Session, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if _, exists := s.sessions[session.ID]; exists {
		return result, oidc.ErrResourceExists
	}

	s.sessions[session.ID] = session
	return session, nil
}

// Get returns a stored session.
func (s *SessionManager) Get(_ context.Context, sessionID string) (result oidc.Session, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return result, oidc.ErrNotFound
	}
	return session, nil
}

// Update replaces a stored session.
func (s *SessionManager) Update(_ context.Context, sessionID string, session oidc.Session) (result oidc.Session, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return result, oidc.ErrNotFound
	}
	session.ID = sessionID
	s.sessions[sessionID] = session
	return session, nil
}

// Delete removes a stored session.
func (s *SessionManager) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return oidc.ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// End marks the session inactive.
func (s *SessionManager) End(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return oidc.ErrNotFound
	}
	session.Active = false
	s.sessions[sessionID] = session
	return nil
}
