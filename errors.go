package oidc

import (
	// External Imports
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned by a manager when the requested resource does
	// not exist in the datastore.
	ErrNotFound = errors.New("resource not found")

	// ErrResourceExists is returned by a manager when a create collides with
	// an already stored resource.
	ErrResourceExists = errors.New("resource already exists")

	// ErrCodeAlreadyUsed is returned when an authorization code is presented
	// for redemption a second time. Callers must treat this as a signal to
	// revoke every token minted from the first redemption.
	ErrCodeAlreadyUsed = errors.New("authorization code already used")

	// ErrTokenInactive is returned when an access or refresh token has been
	// revoked or has expired.
	ErrTokenInactive = errors.New("token is no longer active")

	// ErrJTIKnown is returned when a JWT ID has been seen before and must not
	// be replayed.
	ErrJTIKnown = errors.New("jti already known")
)
