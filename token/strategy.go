// Package token implements the token lifecycle: authorization code
// redemption, refresh, revocation with cascading invalidation, userinfo and
// end-session.
package token

import (
	// Standard Library Imports
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	// External Imports
	"github.com/pkg/errors"
)

// NewOpaque mints an opaque token value and the signature it is stored
// under. Only the signature touches persistent storage, so a leaked store
// never yields usable credentials.
func NewOpaque() (token string, signature string, err error) {
	raw := make([]byte, 32)
	if _, err = rand.Read(raw); err != nil {
		return "", "", errors.Wrap(err, "generating token")
	}

	token = base64.RawURLEncoding.EncodeToString(raw)
	return token, SignatureOf(token), nil
}

// SignatureOf returns the storage signature of an opaque token value.
func SignatureOf(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
