package token

import (
	// Standard Library Imports
	"context"
	"time"

	// External Imports
	"github.com/google/uuid"
	"github.com/pkg/errors"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
	"github.com/p000ic/go-oidc-server/crypto"
)

// defaultIDTokenAlg is used when a client registered no preference.
const defaultIDTokenAlg = "RS256"

// IDTokenIssuer mints signed, optionally encrypted ID Tokens per client
// registration metadata.
type IDTokenIssuer struct {
	// Issuer is minted into the iss claim.
	Issuer string
	// Keys signs with the server's private keys.
	Keys *crypto.KeyStore
	// Fetcher retrieves client keys for asymmetric ID Token encryption.
	Fetcher *crypto.KeyFetcher
	// Lifespan bounds ID Token validity.
	Lifespan time.Duration
}

// IDTokenParams carries the per-issuance claims of an ID Token.
type IDTokenParams struct {
	// Subject is the pairwise or public subject identifier.
	Subject string
	// Nonce echoes the authorization request nonce, when one was sent.
	Nonce string
	// AuthTime is when the user last actively authenticated, in unixtime.
	AuthTime int64
	// SessionID is minted into the sid claim so end-session can locate the
	// session an ID token hint belongs to.
	SessionID string
	// AccessToken, when set, produces an at_hash claim.
	AccessToken string
	// Code, when set, produces a c_hash claim.
	Code string
	// Extra claims are merged into the token, typically profile claims
	// satisfying an essential claims request.
	Extra map[string]interface{}
}

// SigningAlg returns the JWS algorithm ID Tokens for this client are signed
// with.
func (i *IDTokenIssuer) SigningAlg(client oidc.Client) string {
	if client.IDTokenSignedResponseAlg != "" {
		return client.IDTokenSignedResponseAlg
	}
	return defaultIDTokenAlg
}

// Mint builds, signs and, when the client registered for it, encrypts an ID
// Token.
func (i *IDTokenIssuer) Mint(ctx context.Context, client oidc.Client, params IDTokenParams) (string, error) {
	now := time.Now()
	alg := i.SigningAlg(client)

	claims := map[string]interface{}{
		"iss": i.Issuer,
		"sub": params.Subject,
		"aud": client.ID,
		"iat": now.Unix(),
		"exp": now.Add(i.Lifespan).Unix(),
		"jti": uuid.NewString(),
	}
	if params.Nonce != "" {
		claims["nonce"] = params.Nonce
	}
	if params.AuthTime != 0 {
		claims["auth_time"] = params.AuthTime
	}
	if params.SessionID != "" {
		claims["sid"] = params.SessionID
	}
	// Artifact hashes bind the ID Token to the code and access token issued
	// beside it. The hash strength follows the signing algorithm.
	if params.Code != "" {
		hash, err := crypto.HalfHash(alg, params.Code)
		if err != nil {
			return "", errors.Wrap(err, "computing c_hash")
		}
		claims["c_hash"] = hash
	}
	if params.AccessToken != "" {
		hash, err := crypto.HalfHash(alg, params.AccessToken)
		if err != nil {
			return "", errors.Wrap(err, "computing at_hash")
		}
		claims["at_hash"] = hash
	}
	for name, value := range params.Extra {
		claims[name] = value
	}

	var signed string
	var err error
	if crypto.IsSymmetric(alg) {
		if client.JOSESecret == "" {
			return "", errors.New("client has no secret to derive a signing key from")
		}
		signed, err = crypto.SignWithSecret(claims, alg, client.JOSESecret)
	} else {
		key, keyErr := i.Keys.SigningKey(alg)
		if keyErr != nil {
			return "", keyErr
		}
		signed, err = crypto.Sign(claims, alg, key)
	}
	if err != nil {
		return "", errors.Wrap(err, "signing id token")
	}

	if client.IDTokenEncryptedResponseAlg == "" {
		return signed, nil
	}
	return i.encrypt(ctx, client, signed)
}

func (i *IDTokenIssuer) encrypt(ctx context.Context, client oidc.Client, signed string) (string, error) {
	alg := client.IDTokenEncryptedResponseAlg
	enc := client.IDTokenEncryptedResponseEnc
	if enc == "" {
		enc = "A128CBC-HS256"
	}

	if crypto.IsSymmetric(alg) {
		if client.JOSESecret == "" {
			return "", errors.New("client has no secret to derive an encryption key from")
		}
		return crypto.EncryptForSecret(signed, alg, enc, client.JOSESecret)
	}

	if client.JSONWebKeysURI == "" {
		return "", errors.New("client registered no jwks_uri for id token encryption")
	}
	keys, err := i.Fetcher.FetchJWKS(ctx, client.JSONWebKeysURI)
	if err != nil {
		return "", errors.Wrap(err, "fetching client keys")
	}
	for _, key := range keys.Keys {
		if key.Use == "" || key.Use == "enc" || key.Use == "sig" {
			return crypto.Encrypt(signed, alg, enc, key.Key)
		}
	}
	return "", errors.New("client key set has no usable encryption key")
}
