package oidc

import (
	// Standard Library Imports
	"time"
)

// AuthorizationCode is a single-use, short-lived artifact bound to a grant.
// Redemption must flip Used exactly once; a second presentation of the same
// code is the signal to revoke everything minted from the first redemption.
type AuthorizationCode struct {
	// ID uniquely identifies the code record.
	ID string `bson:"id" json:"id" xml:"id"`
	// Signature is the value handed to the client, stored hashed or plain
	// depending on backend policy, and looked up on redemption.
	Signature string `bson:"signature" json:"signature" xml:"signature"`
	// GrantID points at the owning authorization grant.
	GrantID string `bson:"grant_id" json:"grant_id" xml:"grant_id"`
	// ClientID is the client the code was issued to.
	ClientID string `bson:"client_id" json:"client_id" xml:"client_id"`
	// UserID is the authenticated resource owner.
	UserID string `bson:"user_id" json:"user_id" xml:"user_id"`
	// SessionID is the browser session the code was issued under.
	SessionID string `bson:"session_id" json:"session_id" xml:"session_id"`
	// RedirectURI must match exactly on redemption.
	RedirectURI string `bson:"redirect_uri" json:"redirect_uri" xml:"redirect_uri"`
	// RequestedScopes is the scope set approved for this issuance.
	RequestedScopes []string `bson:"requested_scopes" json:"requested_scopes" xml:"requested_scopes"`
	// Nonce is echoed into the ID Token minted at redemption.
	Nonce string `bson:"nonce" json:"nonce,omitempty" xml:"nonce,omitempty"`
	// CodeChallenge holds the PKCE challenge, when the client sent one.
	CodeChallenge string `bson:"code_challenge" json:"code_challenge,omitempty" xml:"code_challenge,omitempty"`
	// CodeChallengeMethod is "S256" or "plain".
	CodeChallengeMethod string `bson:"code_challenge_method" json:"code_challenge_method,omitempty" xml:"code_challenge_method,omitempty"`
	// ClaimRequests carries the raw claims parameter from the authorization
	// request, used when minting ID Token and userinfo claims.
	ClaimRequests string `bson:"claim_requests" json:"claim_requests,omitempty" xml:"claim_requests,omitempty"`
	// CreateTime is when the code was issued, in unixtime.
	CreateTime int64 `bson:"create_time" json:"create_time" xml:"create_time"`
	// ExpireTime is when the code stops being redeemable, in unixtime.
	ExpireTime int64 `bson:"expire_time" json:"expire_time" xml:"expire_time"`
	// Used is set on first redemption.
	Used bool `bson:"used" json:"used" xml:"used"`
}

// IsExpired returns whether the code has outlived its lifetime.
func (c AuthorizationCode) IsExpired(now time.Time) bool {
	return now.Unix() >= c.ExpireTime
}

// Token is a stored access or refresh token record. Sibling tokens minted in
// the same issuance event share an IssuanceID so revoking one can find the
// other; all tokens of a lineage share a GrantID.
type Token struct {
	// ID uniquely identifies the token record.
	ID string `bson:"id" json:"id" xml:"id"`
	// Signature is the opaque value presented by callers.
	Signature string `bson:"signature" json:"signature" xml:"signature"`
	// GrantID points at the owning authorization grant.
	GrantID string `bson:"grant_id" json:"grant_id" xml:"grant_id"`
	// IssuanceID groups the tokens minted together in one issuance event.
	IssuanceID string `bson:"issuance_id" json:"issuance_id" xml:"issuance_id"`
	// CodeSignature is the authorization code this token descends from, empty
	// for tokens minted by implicit or refresh flows.
	CodeSignature string `bson:"code_signature" json:"code_signature,omitempty" xml:"code_signature,omitempty"`
	// ClientID is the client the token was issued to.
	ClientID string `bson:"client_id" json:"client_id" xml:"client_id"`
	// UserID is the resource owner the token acts for.
	UserID string `bson:"user_id" json:"user_id" xml:"user_id"`
	// SessionID is the browser session the token was issued under.
	SessionID string `bson:"session_id" json:"session_id,omitempty" xml:"session_id,omitempty"`
	// Scopes is the scope set the token carries.
	Scopes []string `bson:"scopes" json:"scopes" xml:"scopes"`
	// CreateTime is when the token was issued, in unixtime.
	CreateTime int64 `bson:"create_time" json:"create_time" xml:"create_time"`
	// ExpireTime is when the token expires, in unixtime. Zero means the token
	// does not expire.
	ExpireTime int64 `bson:"expire_time" json:"expire_time,omitempty" xml:"expire_time,omitempty"`
	// Active is false once revoked.
	Active bool `bson:"active" json:"active" xml:"active"`
}

// IsExpired returns whether the token has outlived its lifetime.
func (t Token) IsExpired(now time.Time) bool {
	return t.ExpireTime != 0 && now.Unix() >= t.ExpireTime
}

// IsUsable returns whether the token can still authorize requests.
func (t Token) IsUsable(now time.Time) bool {
	return t.Active && !t.IsExpired(now)
}

// HasScope reports whether the token carries the given scope.
func (t Token) HasScope(scope string) bool {
	for _, s := range t.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
