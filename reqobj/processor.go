// Package reqobj verifies request objects, the signed and optionally
// encrypted JWTs clients may send in place of plain authorization query
// parameters, and overlays their claims onto the in-flight request.
package reqobj

import (
	// Standard Library Imports
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	// External Imports
	"github.com/go-jose/go-jose/v3"
	"github.com/pkg/errors"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
	"github.com/p000ic/go-oidc-server/crypto"
)

// ErrInvalidRequestObject is returned for any request object failure: bad
// signature, disallowed alg, decryption failure or malformed claims. The
// authorization endpoint maps it to the invalid_request_object error code.
var ErrInvalidRequestObject = errors.New("invalid_request_object")

// Result carries the outcome of request object processing.
type Result struct {
	// Params is the effective parameter set after verified claims have
	// overridden their top-level counterparts.
	Params url.Values
	// ClaimRequests is the raw JSON of the claims member, carrying nested
	// id_token and userinfo claim constraints through to token issuance.
	// Empty when the object carried no claims member.
	ClaimRequests string
}

// Processor verifies request objects against client registration metadata and
// server policy.
type Processor struct {
	// Keys holds the server keys used to unwrap encrypted request objects.
	Keys *crypto.KeyStore
	// Fetcher retrieves client key sets for signature verification.
	Fetcher *crypto.KeyFetcher
	// AllowUnsigned permits alg=none request objects. Off by default.
	AllowUnsigned bool
}

// Process verifies the request parameter, when present, and returns the
// overlaid parameter set. Without a request parameter the input passes
// through untouched.
func (p *Processor) Process(ctx context.Context, client *oidc.Client, params url.Values) (*Result, error) {
	token := params.Get("request")
	if token == "" {
		return &Result{Params: params}, nil
	}

	if crypto.IsEncrypted(token) {
		inner, err := p.decrypt(token, client)
		if err != nil {
			return nil, err
		}
		token = inner
	}

	claims, err := p.verify(ctx, token, client)
	if err != nil {
		return nil, err
	}

	return overlay(params, claims)
}

func (p *Processor) decrypt(token string, client *oidc.Client) (string, error) {
	alg, _, err := crypto.PeekHeader(token)
	if err != nil {
		return "", errors.Wrap(ErrInvalidRequestObject, "malformed encrypted request object")
	}

	if client.RequestObjectEncryptionAlg != "" && alg != client.RequestObjectEncryptionAlg {
		return "", errors.Wrapf(ErrInvalidRequestObject,
			"encryption alg %q does not match registration", alg)
	}

	if crypto.IsSymmetric(alg) {
		if client.JOSESecret == "" {
			return "", errors.Wrap(ErrInvalidRequestObject,
				"client has no secret to derive a decryption key from")
		}
		inner, err := crypto.DecryptWithSecret(token, client.JOSESecret)
		if err != nil {
			return "", errors.Wrap(ErrInvalidRequestObject, "decryption failed")
		}
		return inner, nil
	}

	key, err := p.Keys.DecryptionKey(alg)
	if err != nil {
		return "", errors.Wrapf(ErrInvalidRequestObject, "no decryption key for alg %q", alg)
	}
	inner, err := crypto.Decrypt(token, key)
	if err != nil {
		return "", errors.Wrap(ErrInvalidRequestObject, "decryption failed")
	}
	return inner, nil
}

func (p *Processor) verify(ctx context.Context, token string, client *oidc.Client) (map[string]interface{}, error) {
	alg, _, err := crypto.PeekHeader(token)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidRequestObject, "malformed request object")
	}

	registered := client.RequestObjectSigningAlg
	if registered != "" && alg != registered {
		return nil, errors.Wrapf(ErrInvalidRequestObject,
			"signing alg %q does not match registered %q", alg, registered)
	}

	switch {
	case alg == crypto.AlgNone:
		if !p.AllowUnsigned {
			return nil, errors.Wrap(ErrInvalidRequestObject, "unsigned request objects are not accepted")
		}
		claims, err := crypto.VerifyUnsecured(token)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidRequestObject, "malformed unsecured request object")
		}
		return claims, nil

	case crypto.IsSymmetric(alg):
		if client.JOSESecret == "" {
			return nil, errors.Wrap(ErrInvalidRequestObject,
				"client has no secret to derive a verification key from")
		}
		claims, err := crypto.VerifyWithSecret(token, alg, client.JOSESecret)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidRequestObject, "signature verification failed")
		}
		return claims, nil

	default:
		keys, err := p.clientKeys(ctx, client)
		if err != nil {
			return nil, err
		}
		claims, err := crypto.Verify(token, keys)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidRequestObject, "signature verification failed")
		}
		return claims, nil
	}
}

func (p *Processor) clientKeys(ctx context.Context, client *oidc.Client) (*jose.JSONWebKeySet, error) {
	if client.JSONWebKeysURI == "" {
		return nil, errors.Wrap(ErrInvalidRequestObject,
			"client registered no jwks_uri for request object verification")
	}
	keys, err := p.Fetcher.FetchJWKS(ctx, client.JSONWebKeysURI)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidRequestObject, "client key set is unavailable")
	}
	return keys, nil
}

// overlay applies verified request object claims over the top-level
// parameters. The request and request_uri members never override themselves.
func overlay(params url.Values, claims map[string]interface{}) (*Result, error) {
	result := &Result{Params: url.Values{}}
	for key, values := range params {
		result.Params[key] = append([]string(nil), values...)
	}

	for name, value := range claims {
		switch name {
		case "request", "request_uri":
			continue
		case "claims":
			raw, err := json.Marshal(value)
			if err != nil {
				return nil, errors.Wrap(ErrInvalidRequestObject, "malformed claims member")
			}
			result.ClaimRequests = string(raw)
			continue
		}

		switch typed := value.(type) {
		case string:
			result.Params.Set(name, typed)
		case bool:
			result.Params.Set(name, strconv.FormatBool(typed))
		case float64:
			result.Params.Set(name, strconv.FormatFloat(typed, 'f', -1, 64))
		default:
			return nil, errors.Wrapf(ErrInvalidRequestObject,
				"claim %q has an unsupported type", name)
		}
	}

	return result, nil
}
