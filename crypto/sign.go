package crypto

import (
	// Standard Library Imports
	"encoding/base64"
	"encoding/json"
	"strings"

	// External Imports
	"github.com/go-jose/go-jose/v3"
	"github.com/pkg/errors"
)

// ErrUnsupportedAlgorithm is returned when a token names an algorithm outside
// the capability registry.
var ErrUnsupportedAlgorithm = errors.New("unsupported algorithm")

// ErrSignatureInvalid is returned when a JWS fails verification against the
// provided key material.
var ErrSignatureInvalid = errors.New("signature verification failed")

// Sign serializes claims into a compact JWS using the given algorithm and
// private key.
func Sign(claims map[string]interface{}, alg string, key *jose.JSONWebKey) (string, error) {
	if !CanSign(alg) {
		return "", errors.Wrap(ErrUnsupportedAlgorithm, alg)
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", errors.Wrap(err, "marshalling claims")
	}

	opts := (&jose.SignerOptions{}).WithType("JWT")
	signer, err := jose.NewSigner(jose.SigningKey{
		Algorithm: jose.SignatureAlgorithm(alg),
		Key:       key,
	}, opts)
	if err != nil {
		return "", errors.Wrap(err, "building signer")
	}

	jws, err := signer.Sign(payload)
	if err != nil {
		return "", errors.Wrap(err, "signing claims")
	}

	return jws.CompactSerialize()
}

// SignWithSecret serializes claims into a compact JWS keyed from a client
// secret, for the HS algorithm family.
func SignWithSecret(claims map[string]interface{}, alg string, clientSecret string) (string, error) {
	if !CanSign(alg) || !IsSymmetric(alg) {
		return "", errors.Wrap(ErrUnsupportedAlgorithm, alg)
	}
	key, err := SymmetricKey(alg, clientSecret)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(claims)
	if err != nil {
		return "", errors.Wrap(err, "marshalling claims")
	}

	opts := (&jose.SignerOptions{}).WithType("JWT")
	signer, err := jose.NewSigner(jose.SigningKey{
		Algorithm: jose.SignatureAlgorithm(alg),
		Key:       key,
	}, opts)
	if err != nil {
		return "", errors.Wrap(err, "building signer")
	}

	jws, err := signer.Sign(payload)
	if err != nil {
		return "", errors.Wrap(err, "signing claims")
	}

	return jws.CompactSerialize()
}

// SignUnsecured serializes claims into an alg=none JWS. Callers must gate
// this behind explicit policy; nothing in this package emits it by default.
func SignUnsecured(claims map[string]interface{}) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", errors.Wrap(err, "marshalling claims")
	}
	header, err := json.Marshal(map[string]string{"alg": AlgNone, "typ": "JWT"})
	if err != nil {
		return "", errors.Wrap(err, "marshalling header")
	}

	return base64.RawURLEncoding.EncodeToString(header) + "." +
		base64.RawURLEncoding.EncodeToString(payload) + ".", nil
}

// PeekHeader returns the unverified JOSE header of a compact token. Use it
// only to route the token to the right capability; never trust its claims.
func PeekHeader(token string) (alg string, kid string, err error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return "", "", errors.New("malformed compact token")
	}

	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", "", errors.Wrap(err, "decoding header")
	}

	var header struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err = json.Unmarshal(raw, &header); err != nil {
		return "", "", errors.Wrap(err, "unmarshalling header")
	}

	return header.Alg, header.Kid, nil
}

// RawClaims decodes the payload of a compact JWS without verifying it. Use
// it only to route a token to the right key material; never trust the result.
func RawClaims(token string) (map[string]interface{}, error) {
	parts := strings.Split(token, ".")
	if len(parts) < 2 {
		return nil, errors.New("malformed compact token")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, errors.Wrap(err, "decoding payload")
	}
	return unmarshalClaims(payload)
}

// Verify checks a compact JWS against the given public key set and returns
// the verified claims. Tokens with alg=none are rejected here; callers that
// allow unsecured tokens use VerifyUnsecured explicitly.
func Verify(token string, keys *jose.JSONWebKeySet) (map[string]interface{}, error) {
	alg, kid, err := PeekHeader(token)
	if err != nil {
		return nil, err
	}
	if alg == AlgNone {
		return nil, errors.Wrap(ErrSignatureInvalid, "alg none rejected")
	}
	if !CanVerify(alg) || IsSymmetric(alg) {
		return nil, errors.Wrap(ErrUnsupportedAlgorithm, alg)
	}

	jws, err := jose.ParseSigned(token)
	if err != nil {
		return nil, errors.Wrap(err, "parsing token")
	}

	for _, key := range candidateKeys(keys, kid, alg) {
		payload, err := jws.Verify(key)
		if err == nil {
			return unmarshalClaims(payload)
		}
	}

	return nil, ErrSignatureInvalid
}

// VerifyWithSecret checks an HS-family compact JWS keyed from the client
// secret and returns the verified claims.
func VerifyWithSecret(token string, alg string, clientSecret string) (map[string]interface{}, error) {
	headerAlg, _, err := PeekHeader(token)
	if err != nil {
		return nil, err
	}
	if headerAlg != alg || !IsSymmetric(alg) || !CanVerify(alg) {
		return nil, errors.Wrap(ErrUnsupportedAlgorithm, headerAlg)
	}

	key, err := SymmetricKey(alg, clientSecret)
	if err != nil {
		return nil, err
	}

	jws, err := jose.ParseSigned(token)
	if err != nil {
		return nil, errors.Wrap(err, "parsing token")
	}

	payload, err := jws.Verify(key)
	if err != nil {
		return nil, ErrSignatureInvalid
	}

	return unmarshalClaims(payload)
}

// VerifyUnsecured parses an alg=none token without signature verification.
// The empty third segment is still required, so a stripped signed token does
// not slip through.
func VerifyUnsecured(token string) (map[string]interface{}, error) {
	alg, _, err := PeekHeader(token)
	if err != nil {
		return nil, err
	}
	if alg != AlgNone {
		return nil, errors.Wrap(ErrUnsupportedAlgorithm, alg)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[2] != "" {
		return nil, errors.Wrap(ErrSignatureInvalid, "unsecured token carries a signature")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, errors.Wrap(err, "decoding payload")
	}

	return unmarshalClaims(payload)
}

// candidateKeys narrows a key set to those plausibly able to verify the
// token, preferring an exact kid match.
func candidateKeys(keys *jose.JSONWebKeySet, kid string, alg string) []jose.JSONWebKey {
	if keys == nil {
		return nil
	}
	if kid != "" {
		if matched := keys.Key(kid); len(matched) > 0 {
			return matched
		}
	}

	var candidates []jose.JSONWebKey
	for _, key := range keys.Keys {
		if key.Algorithm == "" || key.Algorithm == alg {
			candidates = append(candidates, key)
		}
	}
	return candidates
}

func unmarshalClaims(payload []byte) (map[string]interface{}, error) {
	var claims map[string]interface{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, errors.Wrap(err, "unmarshalling claims")
	}
	return claims, nil
}
