package crypto

import (
	// Standard Library Imports
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"strings"

	// External Imports
	"github.com/pkg/errors"
)

// HalfHash computes the OIDC artifact hash (c_hash, at_hash) for a signed
// value: the left half of the SHA-2 digest whose strength matches the ID
// Token signing algorithm, base64url encoded without padding.
func HalfHash(signingAlg string, value string) (string, error) {
	var digest []byte
	switch {
	case strings.HasSuffix(signingAlg, "256"):
		sum := sha256.Sum256([]byte(value))
		digest = sum[:]
	case strings.HasSuffix(signingAlg, "384"):
		sum := sha512.Sum384([]byte(value))
		digest = sum[:]
	case strings.HasSuffix(signingAlg, "512"):
		sum := sha512.Sum512([]byte(value))
		digest = sum[:]
	default:
		return "", errors.Wrap(ErrUnsupportedAlgorithm, signingAlg)
	}

	return base64.RawURLEncoding.EncodeToString(digest[:len(digest)/2]), nil
}
