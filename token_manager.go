package oidc

import (
	// Standard Library Imports
	"context"
)

// TokenManager provides an interface in order to build a token lifecycle
// storage backend.
type TokenManager interface {
	Configure
	TokenStore
}

// TokenStore provides the methods a backend must implement to persist
// authorization codes, access tokens and refresh tokens, and to perform the
// cascading invalidation the protocol engine relies on.
type TokenStore interface {
	AuthorizationCodeStorage
	AccessTokenStorage
	RefreshTokenStorage

	// RevokeByGrantID deactivates every access and refresh token of the given
	// grant lineage. The change must be visible to the next read.
	RevokeByGrantID(ctx context.Context, grantID string) error

	// RevokeByIssuanceID deactivates the sibling tokens minted together in a
	// single issuance event.
	RevokeByIssuanceID(ctx context.Context, issuanceID string) error

	// RevokeByCodeSignature deactivates every token descended from the given
	// authorization code, the containment path for code replay.
	RevokeByCodeSignature(ctx context.Context, codeSignature string) error
}

// AuthorizationCodeStorage stores single-use authorization codes.
type AuthorizationCodeStorage interface {
	CreateAuthorizationCode(ctx context.Context, code AuthorizationCode) (AuthorizationCode, error)

	GetAuthorizationCode(ctx context.Context, signature string) (AuthorizationCode, error)

	// ConsumeAuthorizationCode atomically marks the code used. Exactly one
	// concurrent caller wins; later callers receive ErrCodeAlreadyUsed
	// together with the stored code so they can trigger containment.
	ConsumeAuthorizationCode(ctx context.Context, signature string) (AuthorizationCode, error)

	DeleteAuthorizationCode(ctx context.Context, signature string) error
}

// AccessTokenStorage stores access tokens.
type AccessTokenStorage interface {
	CreateAccessToken(ctx context.Context, token Token) (Token, error)

	GetAccessToken(ctx context.Context, signature string) (Token, error)

	RevokeAccessToken(ctx context.Context, signature string) error

	DeleteAccessToken(ctx context.Context, signature string) error
}

// RefreshTokenStorage stores refresh tokens.
type RefreshTokenStorage interface {
	CreateRefreshToken(ctx context.Context, token Token) (Token, error)

	GetRefreshToken(ctx context.Context, signature string) (Token, error)

	RevokeRefreshToken(ctx context.Context, signature string) error

	DeleteRefreshToken(ctx context.Context, signature string) error

	// RotateRefreshToken atomically retires the presented token and stores
	// its replacement.
	RotateRefreshToken(ctx context.Context, oldSignature string, replacement Token) (Token, error)
}

// ListTokensRequest enables filtering stored token entities.
type ListTokensRequest struct {
	// ClientID enables filtering tokens based on Client ID.
	ClientID string `json:"client_id" xml:"client_id"`
	// UserID enables filtering tokens based on User ID.
	UserID string `json:"user_id" xml:"user_id"`
	// GrantID enables filtering tokens based on grant lineage.
	GrantID string `json:"grant_id" xml:"grant_id"`
	// IssuanceID enables filtering tokens based on issuance event.
	IssuanceID string `json:"issuance_id" xml:"issuance_id"`
	// Active filters out revoked tokens.
	Active bool `json:"active" xml:"active"`
}
