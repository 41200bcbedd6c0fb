// Package crypto performs every JOSE operation the authorization server
// needs: signing and verifying JWS in the RS/ES/PS/HS families, encrypting
// and decrypting JWE, computing OIDC artifact half-hashes, and fetching
// remote JWKS documents.
package crypto

import (
	// External Imports
	"github.com/go-jose/go-jose/v3"
)

// AlgNone is the JWS "none" algorithm. It is never part of the capability
// registry; callers opt into it explicitly where policy allows.
const AlgNone = "none"

// capability describes what the server can do with a single algorithm
// identifier. Dispatch is a registry lookup, so adding an algorithm is a new
// entry here rather than another branch in the verifier.
type capability struct {
	// sign and verify mark JWS algorithms, encrypt and decrypt mark JWE key
	// management algorithms.
	sign    bool
	verify  bool
	encrypt bool
	decrypt bool
	// symmetric marks algorithms whose key material is derived from the
	// client secret rather than a stored key.
	symmetric bool
}

// capabilities registers every algorithm the server speaks.
var capabilities = map[string]capability{
	// JWS, asymmetric.
	string(jose.RS256): {sign: true, verify: true},
	string(jose.RS384): {sign: true, verify: true},
	string(jose.RS512): {sign: true, verify: true},
	string(jose.ES256): {sign: true, verify: true},
	string(jose.ES384): {sign: true, verify: true},
	string(jose.ES512): {sign: true, verify: true},
	string(jose.PS256): {sign: true, verify: true},
	string(jose.PS384): {sign: true, verify: true},
	string(jose.PS512): {sign: true, verify: true},

	// JWS, client secret keyed.
	string(jose.HS256): {sign: true, verify: true, symmetric: true},
	string(jose.HS384): {sign: true, verify: true, symmetric: true},
	string(jose.HS512): {sign: true, verify: true, symmetric: true},

	// JWE key management, asymmetric.
	string(jose.RSA1_5):       {encrypt: true, decrypt: true},
	string(jose.RSA_OAEP):     {encrypt: true, decrypt: true},
	string(jose.RSA_OAEP_256): {encrypt: true, decrypt: true},

	// JWE key management, client secret keyed.
	string(jose.A128KW): {encrypt: true, decrypt: true, symmetric: true},
	string(jose.A192KW): {encrypt: true, decrypt: true, symmetric: true},
	string(jose.A256KW): {encrypt: true, decrypt: true, symmetric: true},
}

// CanSign returns true when alg is a supported JWS signing algorithm.
func CanSign(alg string) bool {
	return capabilities[alg].sign
}

// CanVerify returns true when alg is a supported JWS verification algorithm.
func CanVerify(alg string) bool {
	return capabilities[alg].verify
}

// CanEncrypt returns true when alg is a supported JWE key management
// algorithm.
func CanEncrypt(alg string) bool {
	return capabilities[alg].encrypt
}

// CanDecrypt returns true when alg is a supported JWE key management
// algorithm for inbound tokens.
func CanDecrypt(alg string) bool {
	return capabilities[alg].decrypt
}

// IsSymmetric returns true when alg derives its key from the client secret.
func IsSymmetric(alg string) bool {
	return capabilities[alg].symmetric
}
