// Package register implements OAuth 2.0 Dynamic Client Registration with the
// OpenID Connect registration extensions: metadata validation, sector
// identifier verification, software statements, and management of the
// per-client registration URI.
package register

import (
	// Standard Library Imports
	"encoding/json"
	"fmt"
	"strings"
)

// Registration error codes per RFC 7591 Section 3.2.2.
const (
	ErrorInvalidRedirectURI    = "invalid_redirect_uri"
	ErrorInvalidClientMetadata = "invalid_client_metadata"
	ErrorInvalidSoftwareStmt   = "invalid_software_statement"
)

// Error is a structured registration rejection naming the parameter that
// failed validation.
type Error struct {
	// Code is the RFC 7591 error code.
	Code string `json:"error"`
	// Parameter names the registration field that failed.
	Parameter string `json:"parameter,omitempty"`
	// Description is human readable detail.
	Description string `json:"error_description,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Parameter == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Description)
	}
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Parameter, e.Description)
}

func newError(code, parameter, description string) *Error {
	return &Error{Code: code, Parameter: parameter, Description: description}
}

// Request is a client registration request. Localized metadata arrives as
// BCP 47 tagged keys ("client_name#ja-JP") and is collected separately by
// ParseRequest.
type Request struct {
	RedirectURIs            []string `json:"redirect_uris"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ApplicationType         string   `json:"application_type,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	SubjectType             string   `json:"subject_type,omitempty"`
	SectorIdentifierURI     string   `json:"sector_identifier_uri,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	TokenEndpointAuthAlg    string   `json:"token_endpoint_auth_signing_alg,omitempty"`

	IDTokenSignedResponseAlg    string `json:"id_token_signed_response_alg,omitempty"`
	IDTokenEncryptedResponseAlg string `json:"id_token_encrypted_response_alg,omitempty"`
	IDTokenEncryptedResponseEnc string `json:"id_token_encrypted_response_enc,omitempty"`
	UserinfoSignedResponseAlg   string `json:"userinfo_signed_response_alg,omitempty"`
	RequestObjectSigningAlg     string `json:"request_object_signing_alg,omitempty"`
	RequestObjectEncryptionAlg  string `json:"request_object_encryption_alg,omitempty"`
	RequestObjectEncryptionEnc  string `json:"request_object_encryption_enc,omitempty"`
	JSONWebKeysURI              string `json:"jwks_uri,omitempty"`

	SoftwareID        string `json:"software_id,omitempty"`
	SoftwareVersion   string `json:"software_version,omitempty"`
	SoftwareStatement string `json:"software_statement,omitempty"`

	FrontchannelLogoutURI  string   `json:"frontchannel_logout_uri,omitempty"`
	BackchannelLogoutURI   string   `json:"backchannel_logout_uri,omitempty"`
	PostLogoutRedirectURIs []string `json:"post_logout_redirect_uris,omitempty"`

	// AllowLocalhostRedirects lets a web client opt into plain-http loopback
	// redirect URIs for local testing.
	AllowLocalhostRedirects bool `json:"allow_localhost_redirects,omitempty"`

	// LocalizedNames and friends are filled by ParseRequest from tagged keys.
	LocalizedNames      map[string]string `json:"-"`
	LocalizedLogoURIs   map[string]string `json:"-"`
	LocalizedPolicyURIs map[string]string `json:"-"`
	LocalizedTosURIs    map[string]string `json:"-"`
}

// ParseRequest unmarshals a registration request body, collecting localized
// metadata carried in locale-tagged keys.
func ParseRequest(body []byte) (*Request, error) {
	var request Request
	if err := json.Unmarshal(body, &request); err != nil {
		return nil, newError(ErrorInvalidClientMetadata, "", "request body is not valid JSON")
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(body, &tagged); err != nil {
		return nil, newError(ErrorInvalidClientMetadata, "", "request body is not a JSON object")
	}

	for key, raw := range tagged {
		base, locale, found := strings.Cut(key, "#")
		if !found || locale == "" {
			continue
		}

		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, newError(ErrorInvalidClientMetadata, key, "localized values must be strings")
		}

		switch base {
		case "client_name":
			if request.LocalizedNames == nil {
				request.LocalizedNames = map[string]string{}
			}
			request.LocalizedNames[locale] = value
		case "logo_uri":
			if request.LocalizedLogoURIs == nil {
				request.LocalizedLogoURIs = map[string]string{}
			}
			request.LocalizedLogoURIs[locale] = value
		case "policy_uri":
			if request.LocalizedPolicyURIs == nil {
				request.LocalizedPolicyURIs = map[string]string{}
			}
			request.LocalizedPolicyURIs[locale] = value
		case "tos_uri":
			if request.LocalizedTosURIs == nil {
				request.LocalizedTosURIs = map[string]string{}
			}
			request.LocalizedTosURIs[locale] = value
		}
	}

	return &request, nil
}

// Response echoes the effective client metadata back to the registrant, plus
// the credentials for managing the registration.
type Response struct {
	ClientID                string            `json:"client_id"`
	ClientSecret            string            `json:"client_secret,omitempty"`
	ClientIDIssuedAt        int64             `json:"client_id_issued_at,omitempty"`
	RegistrationAccessToken string            `json:"registration_access_token,omitempty"`
	RegistrationClientURI   string            `json:"registration_client_uri,omitempty"`
	Metadata                map[string]interface{} `json:"-"`
}

// MarshalJSON flattens the metadata claims map into the response body so the
// registration response carries every effective field.
func (r Response) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{}
	for key, value := range r.Metadata {
		out[key] = value
	}
	out["client_id"] = r.ClientID
	if r.ClientSecret != "" {
		out["client_secret"] = r.ClientSecret
	}
	if r.ClientIDIssuedAt != 0 {
		out["client_id_issued_at"] = r.ClientIDIssuedAt
	}
	if r.RegistrationAccessToken != "" {
		out["registration_access_token"] = r.RegistrationAccessToken
	}
	if r.RegistrationClientURI != "" {
		out["registration_client_uri"] = r.RegistrationClientURI
	}
	return json.Marshal(out)
}
