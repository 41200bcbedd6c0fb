package oidc

import (
	// Standard Library Imports
	"context"
)

// SessionManager provides a generic interface to end-user sessions in order
// to build a Datastore backend.
type SessionManager interface {
	Configure
	SessionStore
}

// SessionStore persists end-user sessions.
type SessionStore interface {
	Create(ctx context.Context, session Session) (Session, error)
	Get(ctx context.Context, sessionID string) (Session, error)
	Update(ctx context.Context, sessionID string, session Session) (Session, error)
	Delete(ctx context.Context, sessionID string) error

	// End marks the session inactive. The change must be visible to the next
	// read so a revoked session cannot keep authorizing prompt=none flows.
	End(ctx context.Context, sessionID string) error
}
