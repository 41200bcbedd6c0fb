package oidc

import (
	// Standard Library Imports
	"context"
	"time"

	// External Imports
	"github.com/ory/fosite"
)

// ClientManager provides a generic interface to clients in order to build a
// Datastore backend.
type ClientManager interface {
	Configure
	ClientStore
}

// ClientStore provides the methods a registry backend must implement to
// persist OAuth 2.0 client resources.
type ClientStore interface {
	// GetClient satisfies fosite.ClientManager, so a store can back any
	// component that speaks in fosite.Client terms.
	GetClient(ctx context.Context, clientID string) (fosite.Client, error)

	List(ctx context.Context, filter ListClientsRequest) ([]Client, error)
	Create(ctx context.Context, client Client) (Client, error)
	Get(ctx context.Context, clientID string) (Client, error)
	Update(ctx context.Context, clientID string, client Client) (Client, error)
	Delete(ctx context.Context, clientID string) error
	Authenticate(ctx context.Context, clientID string, secret string) (Client, error)
	GrantScopes(ctx context.Context, clientID string, scopes []string) (Client, error)
	RemoveScopes(ctx context.Context, clientID string, scopes []string) (Client, error)

	// AuthenticateRegistrationToken verifies the bearer credential guarding a
	// client's registration management URI.
	AuthenticateRegistrationToken(ctx context.Context, clientID string, token string) (Client, error)

	ClientAssertionJWTValid(ctx context.Context, jti string) error
	SetClientAssertionJWT(ctx context.Context, jti string, exp time.Time) error
}

// ListClientsRequest enables listing and filtering client records.
type ListClientsRequest struct {
	// RedirectURI filters clients based on a registered redirect URI.
	RedirectURI string `json:"redirect_uri" xml:"redirect_uri"`
	// GrantType filters clients based on GrantType.
	GrantType string `json:"grant_type" xml:"grant_type"`
	// ResponseType filters clients based on ResponseType.
	ResponseType string `json:"response_type" xml:"response_type"`
	// SectorIdentifierURI filters clients that share a sector.
	SectorIdentifierURI string `json:"sector_identifier_uri" xml:"sector_identifier_uri"`
	// SoftwareID filters clients registered from the same software statement
	// lineage.
	SoftwareID string `json:"software_id" xml:"software_id"`
	// ScopesIntersection filters clients that have at least the listed scopes.
	// ScopesIntersection performs an AND operation.
	// If ScopesUnion is provided, a union operation will be performed as it
	// returns the wider selection.
	ScopesIntersection []string `json:"scopes_intersection" xml:"scopes_intersection"`
	// ScopesUnion filters clients that have at least one of the listed scopes.
	// ScopesUnion performs an OR operation.
	ScopesUnion []string `json:"scopes_union" xml:"scopes_union"`
	// Public filters clients based on Public status.
	Public bool `json:"public" xml:"public"`
	// Trusted filters clients based on pre-authorized status.
	Trusted bool `json:"trusted" xml:"trusted"`
	// Disabled filters clients based on denied access.
	Disabled bool `json:"disabled" xml:"disabled"`
}
