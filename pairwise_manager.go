package oidc

import (
	// Standard Library Imports
	"context"
)

// PairwiseManager provides a generic interface to persistent pairwise subject
// mappings in order to build a Datastore backend. Algorithmic deployments
// never touch it.
type PairwiseManager interface {
	Configure
	PairwiseStore
}

// PairwiseStore persists pairwise subject mappings keyed by
// (sector identifier, user).
type PairwiseStore interface {
	Create(ctx context.Context, mapping PairwiseSubjectMapping) (PairwiseSubjectMapping, error)
	GetBySectorUser(ctx context.Context, sectorIdentifier, userID string) (PairwiseSubjectMapping, error)
	Delete(ctx context.Context, id string) error
}
