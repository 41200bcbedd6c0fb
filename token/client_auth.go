package token

import (
	// Standard Library Imports
	"context"
	"net/http"
	"time"

	// External Imports
	"github.com/ory/fosite"
	"github.com/pkg/errors"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
	"github.com/p000ic/go-oidc-server/crypto"
)

// jwtBearerAssertionType is the client_assertion_type for JWT client
// authentication, per RFC 7523.
const jwtBearerAssertionType = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"

// ClientAuthenticator resolves and authenticates the client behind a token
// endpoint request, covering client_secret_basic, client_secret_post,
// client_secret_jwt, private_key_jwt and public (none) clients.
type ClientAuthenticator struct {
	// Clients looks up and authenticates client records.
	Clients oidc.ClientStore
	// Fetcher retrieves client key sets for private_key_jwt.
	Fetcher *crypto.KeyFetcher
	// Audience is the value client assertions must be addressed to, normally
	// the issuer URL.
	Audience string
}

// Authenticate identifies the caller from the request's credentials. The
// request form must already be parsed.
func (a *ClientAuthenticator) Authenticate(ctx context.Context, r *http.Request) (oidc.Client, error) {
	if r.PostFormValue("client_assertion_type") == jwtBearerAssertionType {
		return a.authenticateAssertion(ctx, r.PostFormValue("client_assertion"))
	}

	clientID, secret, ok := r.BasicAuth()
	if !ok {
		clientID = r.PostFormValue("client_id")
		secret = r.PostFormValue("client_secret")
	}
	if clientID == "" {
		return oidc.Client{}, fosite.ErrInvalidClient.WithHint("No client credentials were provided.")
	}

	if secret == "" {
		// Only public clients may authenticate with a bare client id.
		client, err := a.Clients.Get(ctx, clientID)
		if err != nil {
			return oidc.Client{}, fosite.ErrInvalidClient.WithHint("The client is unknown.")
		}
		if !client.Public || client.TokenEndpointAuthMethod != "none" {
			return oidc.Client{}, fosite.ErrInvalidClient.WithHint("The client must authenticate with its secret.")
		}
		if client.Disabled {
			return oidc.Client{}, fosite.ErrInvalidClient.WithHint("The client has been disabled.")
		}
		return client, nil
	}

	client, err := a.Clients.Authenticate(ctx, clientID, secret)
	if err != nil {
		return oidc.Client{}, fosite.ErrInvalidClient.WithHint("Client authentication failed.")
	}
	return client, nil
}

// authenticateAssertion verifies a JWT client assertion: signature per the
// client's registered auth method, iss/sub binding, audience, expiry, and
// single use of the jti.
func (a *ClientAuthenticator) authenticateAssertion(ctx context.Context, assertion string) (oidc.Client, error) {
	if assertion == "" {
		return oidc.Client{}, fosite.ErrInvalidClient.WithHint("The client assertion is missing.")
	}

	unverified, err := crypto.RawClaims(assertion)
	if err != nil {
		return oidc.Client{}, fosite.ErrInvalidClient.WithHint("The client assertion is malformed.")
	}
	clientID, _ := unverified["sub"].(string)
	if clientID == "" {
		return oidc.Client{}, fosite.ErrInvalidClient.WithHint("The client assertion has no subject.")
	}

	client, err := a.Clients.Get(ctx, clientID)
	if err != nil {
		return oidc.Client{}, fosite.ErrInvalidClient.WithHint("The client is unknown.")
	}
	if client.Disabled {
		return oidc.Client{}, fosite.ErrInvalidClient.WithHint("The client has been disabled.")
	}

	claims, err := a.verifyAssertion(ctx, client, assertion)
	if err != nil {
		return oidc.Client{}, err
	}

	if iss, _ := claims["iss"].(string); iss != client.ID {
		return oidc.Client{}, fosite.ErrInvalidClient.WithHint("The assertion issuer must be the client id.")
	}
	if !audienceMatches(claims["aud"], a.Audience) {
		return oidc.Client{}, fosite.ErrInvalidClient.WithHint("The assertion audience does not include this server.")
	}

	exp, ok := claims["exp"].(float64)
	if !ok || time.Now().Unix() >= int64(exp) {
		return oidc.Client{}, fosite.ErrInvalidClient.WithHint("The assertion has expired.")
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return oidc.Client{}, fosite.ErrInvalidClient.WithHint("The assertion has no jti.")
	}
	if err := a.Clients.ClientAssertionJWTValid(ctx, jti); err != nil {
		return oidc.Client{}, fosite.ErrInvalidClient.WithHint("The assertion has already been used.")
	}
	if err := a.Clients.SetClientAssertionJWT(ctx, jti, time.Unix(int64(exp), 0)); err != nil {
		return oidc.Client{}, errors.Wrap(err, "recording assertion jti")
	}

	return client, nil
}

func (a *ClientAuthenticator) verifyAssertion(ctx context.Context, client oidc.Client, assertion string) (map[string]interface{}, error) {
	alg, _, err := crypto.PeekHeader(assertion)
	if err != nil {
		return nil, fosite.ErrInvalidClient.WithHint("The client assertion is malformed.")
	}
	if client.TokenEndpointAuthSigningAlg != "" && alg != client.TokenEndpointAuthSigningAlg {
		return nil, fosite.ErrInvalidClient.WithHint("The assertion algorithm does not match the registration.")
	}

	switch client.TokenEndpointAuthMethod {
	case "client_secret_jwt":
		if !crypto.IsSymmetric(alg) {
			return nil, fosite.ErrInvalidClient.WithHint("client_secret_jwt assertions must use an HS algorithm.")
		}
		claims, err := crypto.VerifyWithSecret(assertion, alg, client.JOSESecret)
		if err != nil {
			return nil, fosite.ErrInvalidClient.WithHint("Assertion signature verification failed.")
		}
		return claims, nil

	case "private_key_jwt":
		if client.JSONWebKeysURI == "" {
			return nil, fosite.ErrInvalidClient.WithHint("The client registered no jwks_uri.")
		}
		keys, err := a.Fetcher.FetchJWKS(ctx, client.JSONWebKeysURI)
		if err != nil {
			return nil, fosite.ErrInvalidClient.WithHint("The client key set is unavailable.")
		}
		claims, err := crypto.Verify(assertion, keys)
		if err != nil {
			return nil, fosite.ErrInvalidClient.WithHint("Assertion signature verification failed.")
		}
		return claims, nil

	default:
		return nil, fosite.ErrInvalidClient.WithHint("The client is not registered for assertion authentication.")
	}
}

func audienceMatches(aud interface{}, wanted string) bool {
	switch typed := aud.(type) {
	case string:
		return typed == wanted
	case []interface{}:
		for _, entry := range typed {
			if value, ok := entry.(string); ok && value == wanted {
				return true
			}
		}
	}
	return false
}
