package oidc

import "context"

// UserManager provides a generic interface to users in order to build a DataStore
type UserManager interface {
	Configure
	UserStorer
}

// UserStorer provides a definition of specific methods that are required to store a User in a data store.
type UserStorer interface {
	List(ctx context.Context, filter ListUsersRequest) ([]User, error)
	Create(ctx context.Context, user User) (User, error)
	Get(ctx context.Context, userID string) (User, error)
	GetByUsername(ctx context.Context, username string) (User, error)
	Update(ctx context.Context, userID string, user User) (User, error)
	Delete(ctx context.Context, userID string) error
	Authenticate(ctx context.Context, username string, password string) (User, error)
	GrantScopes(ctx context.Context, userID string, scopes []string) (User, error)
	RemoveScopes(ctx context.Context, userID string, scopes []string) (User, error)
}

// ListUsersRequest enables filtering stored User entities.
type ListUsersRequest struct {
	// Username filters users based on username.
	Username string `json:"username" xml:"username"`
	// Email filters users based on email address.
	Email string `json:"email" xml:"email"`
	// ScopesUnion filters users that have at least one of the listed scopes.
	// ScopesUnion performs an OR operation.
	// If ScopesUnion is provided, a union operation will be performed as it
	// returns the wider selection.
	ScopesUnion []string `json:"scopes_union" xml:"scopes_union"`
	// ScopesIntersection filters users that have all the listed scopes.
	// ScopesIntersection performs an AND operation.
	ScopesIntersection []string `json:"scopes_intersection" xml:"scopes_intersection"`
	// Disabled filters users to those with disabled accounts.
	Disabled bool `json:"disabled" xml:"disabled"`
}
