package crypto

import (
	// External Imports
	"github.com/go-jose/go-jose/v3"
	"github.com/pkg/errors"
)

// ErrDecryptionFailed is returned when a JWE cannot be unwrapped with the
// available key material.
var ErrDecryptionFailed = errors.New("decryption failed")

// Encrypt wraps a payload, typically a nested JWS, into a compact JWE for the
// recipient key.
func Encrypt(payload string, alg string, enc string, recipient interface{}) (string, error) {
	if !CanEncrypt(alg) {
		return "", errors.Wrap(ErrUnsupportedAlgorithm, alg)
	}

	encrypter, err := jose.NewEncrypter(
		jose.ContentEncryption(enc),
		jose.Recipient{
			Algorithm: jose.KeyAlgorithm(alg),
			Key:       recipient,
		},
		(&jose.EncrypterOptions{}).WithContentType("JWT"),
	)
	if err != nil {
		return "", errors.Wrap(err, "building encrypter")
	}

	jwe, err := encrypter.Encrypt([]byte(payload))
	if err != nil {
		return "", errors.Wrap(err, "encrypting payload")
	}

	return jwe.CompactSerialize()
}

// EncryptForSecret wraps a payload keyed from the client secret, for the
// AxxxKW algorithm family.
func EncryptForSecret(payload string, alg string, enc string, clientSecret string) (string, error) {
	key, err := SymmetricKey(alg, clientSecret)
	if err != nil {
		return "", err
	}
	return Encrypt(payload, alg, enc, key)
}

// Decrypt unwraps a compact JWE using the server's private key and returns
// the inner payload.
func Decrypt(token string, key *jose.JSONWebKey) (string, error) {
	jwe, err := jose.ParseEncrypted(token)
	if err != nil {
		return "", errors.Wrap(err, "parsing jwe")
	}

	alg := jwe.Header.Algorithm
	if !CanDecrypt(alg) {
		return "", errors.Wrap(ErrUnsupportedAlgorithm, alg)
	}

	payload, err := jwe.Decrypt(key)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(payload), nil
}

// DecryptWithSecret unwraps a compact JWE keyed from the client secret.
func DecryptWithSecret(token string, clientSecret string) (string, error) {
	jwe, err := jose.ParseEncrypted(token)
	if err != nil {
		return "", errors.Wrap(err, "parsing jwe")
	}

	alg := jwe.Header.Algorithm
	if !CanDecrypt(alg) || !IsSymmetric(alg) {
		return "", errors.Wrap(ErrUnsupportedAlgorithm, alg)
	}

	key, err := SymmetricKey(alg, clientSecret)
	if err != nil {
		return "", err
	}

	payload, err := jwe.Decrypt(key)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(payload), nil
}

// IsEncrypted reports whether a compact token is a JWE, judged by its segment
// count: five for JWE against three for JWS.
func IsEncrypted(token string) bool {
	segments := 1
	for _, r := range token {
		if r == '.' {
			segments++
		}
	}
	return segments == 5
}
