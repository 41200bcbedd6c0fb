package oidc

import (
	// Standard Library Imports
	"context"
)

// Configure enables a backend to set itself up, for example by building
// datastore indices, before serving traffic.
type Configure interface {
	Configure(ctx context.Context) error
}
