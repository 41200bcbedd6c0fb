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

// UserManager provides an in-memory implementation of oidc.UserManager.
type UserManager struct {
	mu    sync.RWMutex
	users map[string]oidc.User

	Hasher fosite.Hasher
}

// Configure implements oidc.Configure.
func (u *UserManager) Configure(_ context.Context) error {
	return nil
}

// List filters stored users.
func (u *UserManager) List(_ context.Context, filter oidc.ListUsersRequest) (results []oidc.User, err error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	for _, user := range u.users {
		if filter.Username != "" && user.Username != filter.Username {
			continue
		}
		if filter.Email != "" && user.Email != filter.Email {
			continue
		}
		if filter.Disabled && !user.Disabled {
			continue
		}
		results = append(results, user)
	}
	return results, nil
}

// Create stores a new user, hashing the password on the way in.
func (u *UserManager) Create(ctx context.Context, user oidc.User) (result oidc.User, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreateTime == 0 {
		user.CreateTime = time.Now().Unix()
	}
	if _, exists := u.users[user.ID]; exists {
		return result, oidc.ErrResourceExists
	}

	if user.Password != "" {
		hash, err := u.Hasher.Hash(ctx, []byte(user.Password))
		if err != nil {
			return result, err
		}
		user.Password = string(hash)
	}

	u.users[user.ID] = user
	return user, nil
}

// Get returns a stored user by id.
func (u *UserManager) Get(_ context.Context, userID string) (result oidc.User, err error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	user, ok := u.users[userID]
	if !ok {
		return result, oidc.ErrNotFound
	}
	return user, nil
}

// GetByUsername returns a stored user by username.
func (u *UserManager) GetByUsername(_ context.Context, username string) (result oidc.User, err error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	for _, user := range u.users {
		if user.Username == username {
			return user, nil
		}
	}
	return result, oidc.ErrNotFound
}

// Update replaces a stored user, keeping the prior password when the update
// does not carry a new one.
func (u *UserManager) Update(ctx context.Context, userID string, updated oidc.User) (result oidc.User, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	current, ok := u.users[userID]
	if !ok {
		return result, oidc.ErrNotFound
	}

	updated.ID = userID
	updated.CreateTime = current.CreateTime
	updated.UpdateTime = time.Now().Unix()
	if updated.Password == "" || updated.Password == current.Password {
		updated.Password = current.Password
	} else {
		hash, err := u.Hasher.Hash(ctx, []byte(updated.Password))
		if err != nil {
			return result, err
		}
		updated.Password = string(hash)
	}

	u.users[userID] = updated
	return updated, nil
}

// Delete removes a stored user.
func (u *UserManager) Delete(_ context.Context, userID string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if _, ok := u.users[userID]; !ok {
		return oidc.ErrNotFound
	}
	delete(u.users, userID)
	return nil
}

// Authenticate verifies a user's credentials.
func (u *UserManager) Authenticate(ctx context.Context, username string, password string) (result oidc.User, err error) {
	user, err := u.GetByUsername(ctx, username)
	if err != nil {
		return result, err
	}

	if user.Disabled {
		return result, fosite.ErrAccessDenied
	}
	err = u.Hasher.Compare(ctx, []byte(user.Password), []byte(password))
	if err != nil {
		return result, err
	}
	return user, nil
}

// GrantScopes grants the provided scopes to the specified user resource.
func (u *UserManager) GrantScopes(_ context.Context, userID string, scopes []string) (result oidc.User, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	user, ok := u.users[userID]
	if !ok {
		return result, oidc.ErrNotFound
	}

	for _, scope := range scopes {
		if !contains(user.Scopes, scope) {
			user.Scopes = append(user.Scopes, scope)
		}
	}
	user.UpdateTime = time.Now().Unix()
	u.users[userID] = user
	return user, nil
}

// RemoveScopes revokes the provided scopes from the specified user resource.
func (u *UserManager) RemoveScopes(_ context.Context, userID string, scopes []string) (result oidc.User, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	user, ok := u.users[userID]
	if !ok {
		return result, oidc.ErrNotFound
	}

	for _, scope := range scopes {
		for i, existing := range user.Scopes {
			if existing == scope {
				user.Scopes = append(user.Scopes[:i], user.Scopes[i+1:]...)
				break
			}
		}
	}
	user.UpdateTime = time.Now().Unix()
	u.users[userID] = user
	return user, nil
}
