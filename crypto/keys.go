package crypto

import (
	// Standard Library Imports
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"

	// External Imports
	"github.com/go-jose/go-jose/v3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// KeyStore holds the server's private JOSE keys and serves lookups by
// algorithm and key id.
type KeyStore struct {
	// Private contains the server's private keys.
	Private jose.JSONWebKeySet
}

// NewKeyStore generates a keystore with one RSA and one EC key, enough to
// serve every registered asymmetric algorithm family.
func NewKeyStore() (*KeyStore, error) {
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, errors.Wrap(err, "generating rsa key")
	}
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generating ec key")
	}

	return &KeyStore{
		Private: jose.JSONWebKeySet{
			Keys: []jose.JSONWebKey{
				{Key: rsaKey, KeyID: uuid.NewString(), Algorithm: string(jose.RS256), Use: "sig"},
				{Key: ecKey, KeyID: uuid.NewString(), Algorithm: string(jose.ES256), Use: "sig"},
			},
		},
	}, nil
}

// Public returns the publishable half of the keystore, served from the JWKS
// endpoint.
func (k *KeyStore) Public() jose.JSONWebKeySet {
	var public jose.JSONWebKeySet
	for _, key := range k.Private.Keys {
		public.Keys = append(public.Keys, key.Public())
	}
	return public
}

// SigningKey returns a private key able to sign with the given algorithm.
func (k *KeyStore) SigningKey(alg string) (*jose.JSONWebKey, error) {
	if !CanSign(alg) || IsSymmetric(alg) {
		return nil, errors.Errorf("no signing capability for alg %q", alg)
	}
	family := keyTypeForAlg(alg)
	for i := range k.Private.Keys {
		key := &k.Private.Keys[i]
		if keyTypeOf(key) == family {
			return key, nil
		}
	}
	return nil, errors.Errorf("no private key for alg %q", alg)
}

// DecryptionKey returns the private key able to unwrap the given JWE key
// management algorithm.
func (k *KeyStore) DecryptionKey(alg string) (*jose.JSONWebKey, error) {
	if !CanDecrypt(alg) || IsSymmetric(alg) {
		return nil, errors.Errorf("no decryption capability for alg %q", alg)
	}
	for i := range k.Private.Keys {
		key := &k.Private.Keys[i]
		if keyTypeOf(key) == "RSA" {
			return key, nil
		}
	}
	return nil, errors.Errorf("no private key for alg %q", alg)
}

func keyTypeForAlg(alg string) string {
	switch alg {
	case string(jose.ES256), string(jose.ES384), string(jose.ES512):
		return "EC"
	default:
		return "RSA"
	}
}

func keyTypeOf(key *jose.JSONWebKey) string {
	switch key.Key.(type) {
	case *ecdsa.PrivateKey, *ecdsa.PublicKey:
		return "EC"
	case *rsa.PrivateKey, *rsa.PublicKey:
		return "RSA"
	default:
		return ""
	}
}

// SymmetricKey derives JWE/JWS key material from a client secret, sized for
// the given algorithm. OIDC symmetric algorithms key off the client secret;
// the derivation is a SHA-2 digest truncated to the key size the algorithm
// needs.
func SymmetricKey(alg string, clientSecret string) ([]byte, error) {
	if !IsSymmetric(alg) {
		return nil, errors.Errorf("alg %q does not use a client secret key", alg)
	}

	switch alg {
	case string(jose.HS256), string(jose.HS384), string(jose.HS512):
		// HMAC uses the secret bytes directly.
		return []byte(clientSecret), nil
	case string(jose.A128KW):
		sum := sha256.Sum256([]byte(clientSecret))
		return sum[:16], nil
	case string(jose.A192KW):
		sum := sha256.Sum256([]byte(clientSecret))
		return sum[:24], nil
	case string(jose.A256KW):
		sum := sha256.Sum256([]byte(clientSecret))
		return sum[:], nil
	default:
		sum := sha512.Sum512([]byte(clientSecret))
		return sum[:], nil
	}
}
