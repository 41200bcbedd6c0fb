package memory

import (
	// Standard Library Imports
	"context"
	"sync"
	"time"

	// External Imports
	"github.com/google/uuid"
	"github.com/ory/fosite"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// ClientManager provides an in-memory implementation of oidc.ClientManager.
type ClientManager struct {
	mu      sync.RWMutex
	clients map[string]oidc.Client

	Hasher     fosite.Hasher
	DeniedJTIs oidc.DeniedJTIStore
}

// Configure implements oidc.Configure.
func (c *ClientManager) Configure(_ context.Context) error {
	return nil
}

// List filters stored clients.
func (c *ClientManager) List(_ context.Context, filter oidc.ListClientsRequest) (results []oidc.Client, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, client := range c.clients {
		if filter.RedirectURI != "" && !client.HasRedirectURI(filter.RedirectURI) {
			continue
		}
		if filter.GrantType != "" && !contains(client.GrantTypes, filter.GrantType) {
			continue
		}
		if filter.ResponseType != "" && !contains(client.ResponseTypes, filter.ResponseType) {
			continue
		}
		if filter.SectorIdentifierURI != "" && client.SectorIdentifierURI != filter.SectorIdentifierURI {
			continue
		}
		if filter.SoftwareID != "" && client.SoftwareID != filter.SoftwareID {
			continue
		}
		if filter.Public && !client.Public {
			continue
		}
		if filter.Trusted && !client.Trusted {
			continue
		}
		if filter.Disabled && !client.Disabled {
			continue
		}
		results = append(results, client)
	}

	return results, nil
}

// Create stores a new client, hashing its secret and registration access
// token on the way in.
func (c *ClientManager) Create(ctx context.Context, client oidc.Client) (result oidc.Client, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client.ID == "" {
		client.ID = uuid.NewString()
	}
	if client.CreateTime == 0 {
		client.CreateTime = time.Now().Unix()
	}
	if _, exists := c.clients[client.ID]; exists {
		return result, oidc.ErrResourceExists
	}

	if client.Secret != "" {
		hash, err := c.Hasher.Hash(ctx, []byte(client.Secret))
		if err != nil {
			return result, err
		}
		client.Secret = string(hash)
	}
	if client.RegistrationAccessToken != "" {
		hash, err := c.Hasher.Hash(ctx, []byte(client.RegistrationAccessToken))
		if err != nil {
			return result, err
		}
		client.RegistrationAccessToken = string(hash)
	}

	c.clients[client.ID] = client
	return client, nil
}

// Get returns a stored client.
func (c *ClientManager) Get(_ context.Context, clientID string) (result oidc.Client, err error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	client, ok := c.clients[clientID]
	if !ok {
		return result, oidc.ErrNotFound
	}
	return client, nil
}

// GetClient implements fosite.ClientManager.
func (c *ClientManager) GetClient(ctx context.Context, clientID string) (fosite.Client, error) {
	client, err := c.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// Update replaces a stored client, keeping the prior secret when the update
// does not carry a new one.
func (c *ClientManager) Update(ctx context.Context, clientID string, updated oidc.Client) (result oidc.Client, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.clients[clientID]
	if !ok {
		return result, oidc.ErrNotFound
	}

	updated.ID = clientID
	updated.CreateTime = current.CreateTime
	updated.UpdateTime = time.Now().Unix()
	if updated.Secret == "" || updated.Secret == current.Secret {
		updated.Secret = current.Secret
	} else {
		hash, err := c.Hasher.Hash(ctx, []byte(updated.Secret))
		if err != nil {
			return result, err
		}
		updated.Secret = string(hash)
	}
	if updated.RegistrationAccessToken == "" {
		updated.RegistrationAccessToken = current.RegistrationAccessToken
	}

	c.clients[clientID] = updated
	return updated, nil
}

// Delete removes a stored client.
func (c *ClientManager) Delete(_ context.Context, clientID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.clients[clientID]; !ok {
		return oidc.ErrNotFound
	}
	delete(c.clients, clientID)
	return nil
}

// Authenticate verifies the identity of a client resource.
func (c *ClientManager) Authenticate(ctx context.Context, clientID string, secret string) (result oidc.Client, err error) {
	client, err := c.Get(ctx, clientID)
	if err != nil {
		return result, err
	}

	if client.Disabled {
		return result, fosite.ErrAccessDenied
	}
	if client.Public {
		// The client doesn't have a secret, therefore is authenticated
		// implicitly.
		return client, nil
	}

	err = c.Hasher.Compare(ctx, client.GetHashedSecret(), []byte(secret))
	if err != nil {
		return result, err
	}
	return client, nil
}

// AuthenticateRegistrationToken verifies the bearer credential guarding the
// client's registration management URI.
func (c *ClientManager) AuthenticateRegistrationToken(ctx context.Context, clientID string, token string) (result oidc.Client, err error) {
	client, err := c.Get(ctx, clientID)
	if err != nil {
		return result, err
	}

	if client.RegistrationAccessToken == "" {
		return result, fosite.ErrAccessDenied
	}
	err = c.Hasher.Compare(ctx, []byte(client.RegistrationAccessToken), []byte(token))
	if err != nil {
		return result, fosite.ErrAccessDenied
	}
	return client, nil
}

// GrantScopes grants the provided scopes to the specified client resource.
func (c *ClientManager) GrantScopes(_ context.Context, clientID string, scopes []string) (result oidc.Client, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, ok := c.clients[clientID]
	if !ok {
		return result, oidc.ErrNotFound
	}

	client.UpdateTime = time.Now().Unix()
	client.EnableScopeAccess(scopes...)
	c.clients[clientID] = client
	return client, nil
}

// RemoveScopes revokes the provided scopes from the specified client
// resource.
func (c *ClientManager) RemoveScopes(_ context.Context, clientID string, scopes []string) (result oidc.Client, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, ok := c.clients[clientID]
	if !ok {
		return result, oidc.ErrNotFound
	}

	client.UpdateTime = time.Now().Unix()
	client.DisableScopeAccess(scopes...)
	c.clients[clientID] = client
	return client, nil
}

// ClientAssertionJWTValid returns an error if the JTI is known and not yet
// expired, nil otherwise.
func (c *ClientManager) ClientAssertionJWTValid(ctx context.Context, jti string) error {
	deniedJTI, err := c.DeniedJTIs.Get(ctx, jti)
	if err != nil {
		if err == oidc.ErrNotFound {
			// the jti is not known => valid
			return nil
		}
		return err
	}

	if time.Unix(deniedJTI.Expiry, 0).After(time.Now()) {
		// the jti is not expired yet => invalid
		return oidc.ErrJTIKnown
	}
	return nil
}

// SetClientAssertionJWT marks a JTI as known for the given expiry time,
// cleaning out expired entries first.
func (c *ClientManager) SetClientAssertionJWT(ctx context.Context, jti string, exp time.Time) error {
	if err := c.DeniedJTIs.DeleteBefore(ctx, time.Now().Unix()); err != nil && err != oidc.ErrNotFound {
		return err
	}

	_, err := c.DeniedJTIs.Create(ctx, oidc.NewDeniedJTI(jti, exp))
	if err != nil {
		if err == oidc.ErrResourceExists {
			return oidc.ErrJTIKnown
		}
		return err
	}
	return nil
}

func contains(haystack []string, needle string) bool {
	for _, value := range haystack {
		if value == needle {
			return true
		}
	}
	return false
}
