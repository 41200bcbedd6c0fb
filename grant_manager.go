package oidc

import (
	// Standard Library Imports
	"context"
)

// GrantManager provides a generic interface to authorization grants in order
// to build a Datastore backend.
type GrantManager interface {
	Configure
	GrantStore
}

// GrantStore provides the methods a backend must implement to persist
// AuthorizationGrant resources.
type GrantStore interface {
	List(ctx context.Context, filter ListGrantsRequest) ([]AuthorizationGrant, error)
	Create(ctx context.Context, grant AuthorizationGrant) (AuthorizationGrant, error)
	Get(ctx context.Context, grantID string) (AuthorizationGrant, error)
	Update(ctx context.Context, grantID string, grant AuthorizationGrant) (AuthorizationGrant, error)
	Delete(ctx context.Context, grantID string) error

	// GetByClientUserSession returns the active grant for the given
	// (client, user, session) triple, or ErrNotFound.
	GetByClientUserSession(ctx context.Context, clientID, userID, sessionID string) (AuthorizationGrant, error)

	// AccreteScopes unions the provided scopes onto the grant's approved set.
	// The update must be atomic with respect to the grant id.
	AccreteScopes(ctx context.Context, grantID string, scopes []string) (AuthorizationGrant, error)

	// Deactivate marks the grant inactive. Tokens hanging off the grant are
	// revoked separately through the TokenStore.
	Deactivate(ctx context.Context, grantID string) error
}

// ListGrantsRequest enables filtering stored AuthorizationGrant entities.
type ListGrantsRequest struct {
	// ClientID enables filtering grants based on Client ID.
	ClientID string `json:"client_id" xml:"client_id"`
	// UserID enables filtering grants based on User ID.
	UserID string `json:"user_id" xml:"user_id"`
	// SessionID enables filtering grants based on Session ID.
	SessionID string `json:"session_id" xml:"session_id"`
	// Active filters out deactivated grants.
	Active bool `json:"active" xml:"active"`
}
