package oidc

import (
	// Standard Library Imports
	"time"
)

// Config carries the server-wide protocol policy. Zero values are filled in
// by EnsureDefaults, so a Config literal only needs the fields a deployment
// cares about.
type Config struct {
	// Issuer is the value minted into the iss claim of every token.
	Issuer string

	// AuthorizationCodeLifespan bounds how long an authorization code stays
	// redeemable.
	AuthorizationCodeLifespan time.Duration
	// AccessTokenLifespan bounds access token validity.
	AccessTokenLifespan time.Duration
	// RefreshTokenLifespan bounds refresh token validity. Zero issues
	// non-expiring refresh tokens.
	RefreshTokenLifespan time.Duration
	// IDTokenLifespan bounds ID Token validity.
	IDTokenLifespan time.Duration

	// PairwiseType selects between algorithmic and persistent pairwise
	// subject derivation.
	PairwiseType string
	// PairwiseSalt keys the algorithmic pairwise hash. One salt serves the
	// whole deployment; rotating it rotates every algorithmic subject.
	PairwiseSalt string

	// SoftwareStatementJWKSURI points at the key set trusted to sign
	// software statements. Empty means statements are verified against the
	// jwks_uri claim they embed.
	SoftwareStatementJWKSURI string

	// AllowUnsignedRequestObjects permits request objects with alg=none.
	// Off unless a deployment explicitly opts in.
	AllowUnsignedRequestObjects bool
	// RotateRefreshTokens issues a replacement refresh token on every
	// refresh grant and retires the presented one.
	RotateRefreshTokens bool

	// OutboundTimeout bounds sector identifier and JWKS fetches.
	OutboundTimeout time.Duration
}

// EnsureDefaults fills unset fields with production defaults.
func (c *Config) EnsureDefaults() {
	if c.AuthorizationCodeLifespan == 0 {
		c.AuthorizationCodeLifespan = 5 * time.Minute
	}
	if c.AccessTokenLifespan == 0 {
		c.AccessTokenLifespan = time.Hour
	}
	if c.IDTokenLifespan == 0 {
		c.IDTokenLifespan = time.Hour
	}
	if c.PairwiseType == "" {
		c.PairwiseType = PairwiseTypeAlgorithmic
	}
	if c.OutboundTimeout == 0 {
		c.OutboundTimeout = 10 * time.Second
	}
}
