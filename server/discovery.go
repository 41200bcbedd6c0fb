package server

import (
	// Standard Library Imports
	"html/template"
	"net/http"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// discoveryDocument is the OpenID Provider metadata served from the
// well-known configuration endpoint.
type discoveryDocument struct {
	Issuer                 string `json:"issuer"`
	AuthorizationEndpoint  string `json:"authorization_endpoint"`
	TokenEndpoint          string `json:"token_endpoint"`
	UserinfoEndpoint       string `json:"userinfo_endpoint"`
	JwksURI                string `json:"jwks_uri"`
	RegistrationEndpoint   string `json:"registration_endpoint"`
	RevocationEndpoint     string `json:"revocation_endpoint"`
	EndSessionEndpoint     string `json:"end_session_endpoint"`
	FrontchannelLogoutSupported bool `json:"frontchannel_logout_supported"`
	FrontchannelLogoutSessionSupported bool `json:"frontchannel_logout_session_supported"`

	ScopesSupported        []string `json:"scopes_supported"`
	ResponseTypesSupported []string `json:"response_types_supported"`
	ResponseModesSupported []string `json:"response_modes_supported"`
	GrantTypesSupported    []string `json:"grant_types_supported"`
	SubjectTypesSupported  []string `json:"subject_types_supported"`

	IDTokenSigningAlgValuesSupported    []string `json:"id_token_signing_alg_values_supported"`
	IDTokenEncryptionAlgValuesSupported []string `json:"id_token_encryption_alg_values_supported"`
	UserinfoSigningAlgValuesSupported   []string `json:"userinfo_signing_alg_values_supported"`
	RequestObjectSigningAlgValuesSupported []string `json:"request_object_signing_alg_values_supported"`
	TokenEndpointAuthMethodsSupported   []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported       []string `json:"code_challenge_methods_supported"`
	ClaimsSupported                     []string `json:"claims_supported"`

	RequestParameterSupported    bool `json:"request_parameter_supported"`
	ClaimsParameterSupported     bool `json:"claims_parameter_supported"`
	RequestURIParameterSupported bool `json:"request_uri_parameter_supported"`
}

// handleDiscovery implements GET /.well-known/openid-configuration.
func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	issuer := s.Config.Issuer

	doc := discoveryDocument{
		Issuer:                issuer,
		AuthorizationEndpoint: issuer + "/authorize",
		TokenEndpoint:         issuer + "/token",
		UserinfoEndpoint:      issuer + "/userinfo",
		JwksURI:               issuer + "/jwks",
		RegistrationEndpoint:  issuer + "/register",
		RevocationEndpoint:    issuer + "/revoke",
		EndSessionEndpoint:    issuer + "/end_session",

		FrontchannelLogoutSupported:        true,
		FrontchannelLogoutSessionSupported: true,

		ScopesSupported: []string{"openid", "profile", "email", "address", "phone"},
		ResponseTypesSupported: []string{
			"code",
			"token",
			"id_token",
			"id_token token",
			"code id_token",
			"code token",
			"code id_token token",
		},
		ResponseModesSupported: []string{
			oidc.ResponseModeQuery,
			oidc.ResponseModeFragment,
			oidc.ResponseModeFormPost,
		},
		GrantTypesSupported: []string{
			oidc.GrantTypeAuthorizationCode,
			oidc.GrantTypeImplicit,
			oidc.GrantTypeRefreshToken,
		},
		SubjectTypesSupported: []string{"public", "pairwise"},

		IDTokenSigningAlgValuesSupported: []string{
			"RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "PS256", "PS384", "PS512", "HS256", "HS384", "HS512",
		},
		IDTokenEncryptionAlgValuesSupported: []string{
			"RSA-OAEP", "RSA-OAEP-256", "ECDH-ES", "A128KW", "A192KW", "A256KW",
		},
		UserinfoSigningAlgValuesSupported: []string{
			"RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "HS256", "HS384", "HS512",
		},
		RequestObjectSigningAlgValuesSupported: []string{
			"none", "RS256", "RS384", "RS512", "ES256", "ES384", "ES512", "HS256", "HS384", "HS512",
		},
		TokenEndpointAuthMethodsSupported: []string{
			"client_secret_basic", "client_secret_post", "client_secret_jwt", "private_key_jwt", "none",
		},
		CodeChallengeMethodsSupported: []string{"plain", "S256"},
		ClaimsSupported: []string{
			"iss", "sub", "aud", "exp", "iat", "auth_time", "nonce", "sid",
			"name", "given_name", "family_name", "email", "email_verified",
			"address", "phone_number",
		},

		RequestParameterSupported:    true,
		ClaimsParameterSupported:     true,
		RequestURIParameterSupported: false,
	}

	s.writeJSON(w, http.StatusOK, doc)
}

// handleJWKS implements GET /jwks, serving the server's public keys.
func (s *Server) handleJWKS(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Keys.Public())
}

// logoutPage fans front-channel logout out to every participating relying
// party before offering the post-logout destination.
var logoutPage = template.Must(template.New("logout").Parse(`<!DOCTYPE html>
<html>
<head><title>Logged out</title></head>
<body>
<p>You have been logged out.</p>
{{- range .FrontchannelLogoutURIs }}
<iframe style="display:none" src="{{ . }}"></iframe>
{{- end }}
{{- if .RedirectURI }}
<a href="{{ .RedirectURI }}">Continue</a>
{{- end }}
</body>
</html>
`))

// writeLogoutPage renders the end-session response page.
func writeLogoutPage(w http.ResponseWriter, frontchannelLogoutURIs []string, redirectURI string) error {
	w.Header().Set("Content-Type", "text/html;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-store")

	return logoutPage.Execute(w, struct {
		FrontchannelLogoutURIs []string
		RedirectURI            string
	}{
		FrontchannelLogoutURIs: frontchannelLogoutURIs,
		RedirectURI:            redirectURI,
	})
}
