package oidc

import (
	// Standard Library Imports
	"time"
)

// DeniedJTI tracks a JWT ID that has been consumed and must not be accepted
// again, guarding software statements, request objects and client assertions
// against replay.
type DeniedJTI struct {
	// JTI is the raw jti claim value.
	JTI string `bson:"jti" json:"jti" xml:"jti"`
	// Signature is the lookup key stored for the JTI.
	Signature string `bson:"signature" json:"signature" xml:"signature"`
	// Expiry is the unixtime after which the denial itself can be dropped,
	// since the token would no longer verify anyway.
	Expiry int64 `bson:"exp" json:"exp" xml:"exp"`
}

// NewDeniedJTI returns a DeniedJTI keyed ready for storage.
func NewDeniedJTI(jti string, exp time.Time) DeniedJTI {
	return DeniedJTI{
		JTI:       jti,
		Signature: jti,
		Expiry:    exp.Unix(),
	}
}
