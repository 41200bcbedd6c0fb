package oidc

import (
	// External Imports
	"github.com/ory/fosite"
)

// Application types a client may register as.
const (
	ApplicationTypeWeb    = "web"
	ApplicationTypeNative = "native"
)

// Subject identifier types a client may register with.
const (
	SubjectTypePublic   = "public"
	SubjectTypePairwise = "pairwise"
)

// Client is an OAuth 2.0 / OpenID Connect relying party registered with the
// authorization server. The record carries the full effective registration
// metadata so a subsequent read returns exactly what registration resolved.
type Client struct {
	// ID is the unique identifier issued to the client at registration.
	ID string `bson:"id" json:"client_id" xml:"client_id"`
	// Name is a human readable name for the client.
	Name string `bson:"name" json:"client_name,omitempty" xml:"client_name,omitempty"`
	// CreateTime is when the client was registered, in unixtime.
	CreateTime int64 `bson:"create_time" json:"client_id_issued_at,omitempty" xml:"client_id_issued_at,omitempty"`
	// UpdateTime is the last time the registration was updated, in unixtime.
	UpdateTime int64 `bson:"update_time" json:"update_time,omitempty" xml:"update_time,omitempty"`
	// Secret is the hashed client secret. Empty for public clients.
	Secret string `bson:"secret" json:"client_secret,omitempty" xml:"client_secret,omitempty"`
	// JOSESecret is a recoverable copy of the client secret, retained only to
	// derive symmetric JWS/JWE keys for the HS and AES key wrap families. It
	// is never serialized outward.
	JOSESecret string `bson:"jose_secret" json:"-" xml:"-"`
	// ApplicationType is either "web" or "native".
	ApplicationType string `bson:"application_type" json:"application_type,omitempty" xml:"application_type,omitempty"`
	// SubjectType is either "public" or "pairwise".
	SubjectType string `bson:"subject_type" json:"subject_type,omitempty" xml:"subject_type,omitempty"`
	// SectorIdentifierURI groups clients that share pairwise subject
	// identifiers. Optional; when absent and SubjectType is pairwise, the
	// sector is derived from the redirect URI host.
	SectorIdentifierURI string `bson:"sector_identifier_uri" json:"sector_identifier_uri,omitempty" xml:"sector_identifier_uri,omitempty"`
	// RedirectURIs contains the registered redirection endpoints.
	RedirectURIs []string `bson:"redirect_uris" json:"redirect_uris" xml:"redirect_uris"`
	// ResponseTypes contains the OAuth 2.0 response types the client may use.
	ResponseTypes []string `bson:"response_types" json:"response_types" xml:"response_types"`
	// GrantTypes contains the OAuth 2.0 grant types the client may use. Always
	// a superset of the set implied by ResponseTypes.
	GrantTypes []string `bson:"grant_types" json:"grant_types" xml:"grant_types"`
	// Scopes contains the scopes the client may request.
	Scopes []string `bson:"scopes" json:"scope,omitempty" xml:"scope,omitempty"`
	// AllowedAudiences contains the audiences the client may request tokens
	// for.
	AllowedAudiences []string `bson:"allowed_audiences" json:"allowed_audiences,omitempty" xml:"allowed_audiences,omitempty"`

	// TokenEndpointAuthMethod is how the client authenticates at the token
	// endpoint, for example "client_secret_basic" or "none".
	TokenEndpointAuthMethod string `bson:"token_endpoint_auth_method" json:"token_endpoint_auth_method,omitempty" xml:"token_endpoint_auth_method,omitempty"`
	// TokenEndpointAuthSigningAlg constrains private_key_jwt and
	// client_secret_jwt client assertions.
	TokenEndpointAuthSigningAlg string `bson:"token_endpoint_auth_signing_alg" json:"token_endpoint_auth_signing_alg,omitempty" xml:"token_endpoint_auth_signing_alg,omitempty"`
	// IDTokenSignedResponseAlg is the JWS alg for ID Tokens issued to this
	// client. "none" is never accepted at registration.
	IDTokenSignedResponseAlg string `bson:"id_token_signed_response_alg" json:"id_token_signed_response_alg,omitempty" xml:"id_token_signed_response_alg,omitempty"`
	// IDTokenEncryptedResponseAlg is the JWE key management alg for ID Tokens,
	// empty when ID Tokens are not encrypted.
	IDTokenEncryptedResponseAlg string `bson:"id_token_encrypted_response_alg" json:"id_token_encrypted_response_alg,omitempty" xml:"id_token_encrypted_response_alg,omitempty"`
	// IDTokenEncryptedResponseEnc is the JWE content encryption alg for ID
	// Tokens.
	IDTokenEncryptedResponseEnc string `bson:"id_token_encrypted_response_enc" json:"id_token_encrypted_response_enc,omitempty" xml:"id_token_encrypted_response_enc,omitempty"`
	// UserinfoSignedResponseAlg is the JWS alg for signed userinfo responses,
	// empty for plain JSON.
	UserinfoSignedResponseAlg string `bson:"userinfo_signed_response_alg" json:"userinfo_signed_response_alg,omitempty" xml:"userinfo_signed_response_alg,omitempty"`
	// RequestObjectSigningAlg is the JWS alg request objects from this client
	// must be signed with. Empty accepts any supported alg.
	RequestObjectSigningAlg string `bson:"request_object_signing_alg" json:"request_object_signing_alg,omitempty" xml:"request_object_signing_alg,omitempty"`
	// RequestObjectEncryptionAlg is the JWE key management alg accepted for
	// encrypted request objects.
	RequestObjectEncryptionAlg string `bson:"request_object_encryption_alg" json:"request_object_encryption_alg,omitempty" xml:"request_object_encryption_alg,omitempty"`
	// RequestObjectEncryptionEnc is the JWE content encryption alg accepted
	// for encrypted request objects.
	RequestObjectEncryptionEnc string `bson:"request_object_encryption_enc" json:"request_object_encryption_enc,omitempty" xml:"request_object_encryption_enc,omitempty"`
	// JSONWebKeysURI points at the client's JWKS for request object and client
	// assertion verification.
	JSONWebKeysURI string `bson:"jwks_uri" json:"jwks_uri,omitempty" xml:"jwks_uri,omitempty"`

	// SoftwareID identifies the software the client runs, typically asserted
	// through a software statement.
	SoftwareID string `bson:"software_id" json:"software_id,omitempty" xml:"software_id,omitempty"`
	// SoftwareVersion is the version of the software the client runs.
	SoftwareVersion string `bson:"software_version" json:"software_version,omitempty" xml:"software_version,omitempty"`
	// SoftwareStatement is the raw signed statement presented at registration,
	// retained for audit.
	SoftwareStatement string `bson:"software_statement" json:"software_statement,omitempty" xml:"software_statement,omitempty"`

	// RegistrationAccessToken is the hash of the bearer credential guarding
	// the client's registration management URI.
	RegistrationAccessToken string `bson:"registration_access_token" json:"-" xml:"-"`
	// PARLifetime bounds pushed authorization requests, in seconds.
	PARLifetime int64 `bson:"par_lifetime" json:"par_lifetime,omitempty" xml:"par_lifetime,omitempty"`
	// FrontchannelLogoutURI is called in the user agent during end-session.
	FrontchannelLogoutURI string `bson:"frontchannel_logout_uri" json:"frontchannel_logout_uri,omitempty" xml:"frontchannel_logout_uri,omitempty"`
	// BackchannelLogoutURI is called server to server during end-session.
	BackchannelLogoutURI string `bson:"backchannel_logout_uri" json:"backchannel_logout_uri,omitempty" xml:"backchannel_logout_uri,omitempty"`
	// PostLogoutRedirectURIs are the locations the user agent may be returned
	// to after end-session.
	PostLogoutRedirectURIs []string `bson:"post_logout_redirect_uris" json:"post_logout_redirect_uris,omitempty" xml:"post_logout_redirect_uris,omitempty"`

	// LocalizedNames carries client_name values keyed by BCP 47 locale tag.
	LocalizedNames map[string]string `bson:"localized_names" json:"-" xml:"-"`
	// LocalizedLogoURIs carries logo_uri values keyed by locale tag.
	LocalizedLogoURIs map[string]string `bson:"localized_logo_uris" json:"-" xml:"-"`
	// LocalizedPolicyURIs carries policy_uri values keyed by locale tag.
	LocalizedPolicyURIs map[string]string `bson:"localized_policy_uris" json:"-" xml:"-"`
	// LocalizedTosURIs carries tos_uri values keyed by locale tag.
	LocalizedTosURIs map[string]string `bson:"localized_tos_uris" json:"-" xml:"-"`

	// Public is true when the client has no secret.
	Public bool `bson:"public" json:"public" xml:"public"`
	// Trusted marks pre-authorized clients for which the consent step is
	// skipped entirely.
	Trusted bool `bson:"trusted" json:"trusted" xml:"trusted"`
	// Disabled blocks the client from all server interaction.
	Disabled bool `bson:"disabled" json:"disabled" xml:"disabled"`
}

// GetID implements fosite.Client.
func (c *Client) GetID() string {
	return c.ID
}

// GetHashedSecret implements fosite.Client.
func (c *Client) GetHashedSecret() []byte {
	return []byte(c.Secret)
}

// GetRedirectURIs implements fosite.Client.
func (c *Client) GetRedirectURIs() []string {
	return c.RedirectURIs
}

// GetGrantTypes implements fosite.Client.
func (c *Client) GetGrantTypes() fosite.Arguments {
	if len(c.GrantTypes) == 0 {
		return fosite.Arguments{GrantTypeAuthorizationCode, GrantTypeRefreshToken}
	}
	return c.GrantTypes
}

// GetResponseTypes implements fosite.Client.
func (c *Client) GetResponseTypes() fosite.Arguments {
	if len(c.ResponseTypes) == 0 {
		return fosite.Arguments{ResponseTypeCode}
	}
	return c.ResponseTypes
}

// GetScopes implements fosite.Client.
func (c *Client) GetScopes() fosite.Arguments {
	return c.Scopes
}

// IsPublic implements fosite.Client.
func (c *Client) IsPublic() bool {
	return c.Public
}

// GetAudience implements fosite.Client.
func (c *Client) GetAudience() fosite.Arguments {
	return c.AllowedAudiences
}

// IsEmpty returns whether or not the client resource is an empty record.
func (c Client) IsEmpty() bool {
	return c.ID == ""
}

// HasRedirectURI returns true if the given URI is registered exactly.
func (c Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// EnableScopeAccess adds the provided scopes to the client's registered scope
// set, without duplication.
func (c *Client) EnableScopeAccess(addScopes ...string) {
	for _, scope := range addScopes {
		found := false
		for _, registered := range c.Scopes {
			if registered == scope {
				found = true
				break
			}
		}
		if !found {
			c.Scopes = append(c.Scopes, scope)
		}
	}
}

// DisableScopeAccess removes the provided scopes from the client's registered
// scope set.
func (c *Client) DisableScopeAccess(removeScopes ...string) {
	for _, scope := range removeScopes {
		for i, registered := range c.Scopes {
			if registered == scope {
				copy(c.Scopes[i:], c.Scopes[i+1:])
				c.Scopes[len(c.Scopes)-1] = ""
				c.Scopes = c.Scopes[:len(c.Scopes)-1]
				break
			}
		}
	}
}
