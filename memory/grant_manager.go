package memory

import (
	// Standard Library Imports
	"context"
	"sync"
	"time"

	// External Imports
	"github.com/google/uuid"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// GrantManager provides an in-memory implementation of oidc.GrantManager.
type GrantManager struct {
	mu     sync.RWMutex
	grants map[string]oidc.AuthorizationGrant
}

// Configure implements oidc.Configure.
func (g *GrantManager) Configure(_ context.Context) error {
	return nil
}

// List filters stored grants.
func (g *GrantManager) List(_ context.Context, filter oidc.ListGrantsRequest) (results []oidc.AuthorizationGrant, err error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, grant := range g.grants {
		if filter.ClientID != "" && grant.ClientID != filter.ClientID {
			continue
		}
		if filter.UserID != "" && grant.UserID != filter.UserID {
			continue
		}
		if filter.SessionID != "" && grant.SessionID != filter.SessionID {
			continue
		}
		if filter.Active && !grant.Active {
			continue
		}
		results = append(results, grant)
	}
	return results, nil
}

// Create stores a new grant.
func (g *GrantManager) Create(_ context.Context, grant oidc.AuthorizationGrant) (result oidc.AuthorizationGrant, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if grant.ID == "" {
		grant.ID = uuid.NewString()
	}
	if grant.CreateTime == 0 {
		grant.CreateTime = time.Now().Unix()
	}
	if _, exists := g.grants[grant.ID]; exists {
		return result, oidc.ErrResourceExists
	}

	g.grants[grant.ID] = grant
	return grant, nil
}

// Get returns a stored grant.
func (g *GrantManager) Get(_ context.Context, grantID string) (result oidc.AuthorizationGrant, err error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	grant, ok := g.grants[grantID]
	if !ok {
		return result, oidc.ErrNotFound
	}
	return grant, nil
}

// Update replaces a stored grant.
func (g *GrantManager) Update(_ context.Context, grantID string, grant oidc.AuthorizationGrant) (result oidc.AuthorizationGrant, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.grants[grantID]; !ok {
		return result, oidc.ErrNotFound
	}

	grant.ID = grantID
	grant.UpdateTime = time.Now().Unix()
	g.grants[grantID] = grant
	return grant, nil
}

// Delete removes a stored grant.
func (g *GrantManager) Delete(_ context.Context, grantID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.grants[grantID]; !ok {
		return oidc.ErrNotFound
	}
	delete(g.grants, grantID)
	return nil
}

// GetByClientUserSession returns the active grant for the triple, or
// ErrNotFound.
func (g *GrantManager) GetByClientUserSession(_ context.Context, clientID, userID, sessionID string) (result oidc.AuthorizationGrant, err error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, grant := range g.grants {
		if grant.Active && grant.ClientID == clientID && grant.UserID == userID && grant.SessionID == sessionID {
			return grant, nil
		}
	}
	return result, oidc.ErrNotFound
}

// AccreteScopes unions the provided scopes onto the grant's approved set.
func (g *GrantManager) AccreteScopes(_ context.Context, grantID string, scopes []string) (result oidc.AuthorizationGrant, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	grant, ok := g.grants[grantID]
	if !ok {
		return result, oidc.ErrNotFound
	}

	for _, scope := range scopes {
		if !contains(grant.GrantedScopes, scope) {
			grant.GrantedScopes = append(grant.GrantedScopes, scope)
		}
	}
	grant.UpdateTime = time.Now().Unix()
	g.grants[grantID] = grant
	return grant, nil
}

// Deactivate marks the grant inactive.
func (g *GrantManager) Deactivate(_ context.Context, grantID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	grant, ok := g.grants[grantID]
	if !ok {
		return oidc.ErrNotFound
	}
	grant.Active = false
	grant.UpdateTime = time.Now().Unix()
	g.grants[grantID] = grant
	return nil
}
