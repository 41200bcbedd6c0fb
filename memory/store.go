// Package memory provides a mutex guarded, in-process implementation of the
// storage managers. It backs the test suites and single-node deployments;
// fleets should use the mongo backend instead.
package memory

import (
	// Standard Library Imports
	"context"

	// External Imports
	"github.com/ory/fosite"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// Store bundles one in-memory manager per entity behind the interfaces the
// protocol engine consumes.
type Store struct {
	ClientManager   *ClientManager
	GrantManager    *GrantManager
	TokenManager    *TokenManager
	PairwiseManager *PairwiseManager
	SessionManager  *SessionManager
	UserManager     *UserManager
	DeniedJTIs      *DeniedJTIManager

	Hasher fosite.Hasher
}

// NewStore returns a fully wired in-memory store.
func NewStore() *Store {
	hasher := &fosite.BCrypt{Config: &fosite.Config{HashCost: 8}}

	deniedJTIs := &DeniedJTIManager{
		jtis: map[string]oidc.DeniedJTI{},
	}
	return &Store{
		ClientManager: &ClientManager{
			clients:    map[string]oidc.Client{},
			Hasher:     hasher,
			DeniedJTIs: deniedJTIs,
		},
		GrantManager: &GrantManager{
			grants: map[string]oidc.AuthorizationGrant{},
		},
		TokenManager: &TokenManager{
			codes:         map[string]oidc.AuthorizationCode{},
			accessTokens:  map[string]oidc.Token{},
			refreshTokens: map[string]oidc.Token{},
		},
		PairwiseManager: &PairwiseManager{
			mappings: map[string]oidc.PairwiseSubjectMapping{},
		},
		SessionManager: &SessionManager{
			sessions: map[string]oidc.Session{},
		},
		UserManager: &UserManager{
			users:  map[string]oidc.User{},
			Hasher: hasher,
		},
		DeniedJTIs: deniedJTIs,
		Hasher:     hasher,
	}
}

// Configure implements oidc.Configure for the whole store.
func (s *Store) Configure(_ context.Context) error {
	return nil
}
