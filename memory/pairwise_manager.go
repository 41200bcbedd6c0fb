package memory

import (
	// Standard Library Imports
	"context"
	"sync"
	"time"

	// External Imports
	"github.com/google/uuid"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// PairwiseManager provides an in-memory implementation of
// oidc.PairwiseManager.
type PairwiseManager struct {
	mu       sync.RWMutex
	mappings map[string]oidc.PairwiseSubjectMapping
}

// Configure implements oidc.Configure.
func (p *PairwiseManager) Configure(_ context.Context) error {
	return nil
}

// Create stores a new pairwise subject mapping.
func (p *PairwiseManager) Create(_ context.Context, mapping oidc.PairwiseSubjectMapping) (result oidc.PairwiseSubjectMapping, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if mapping.ID == "" {
		mapping.ID = uuid.NewString()
	}
	if mapping.CreateTime == 0 {
		mapping.CreateTime = time.Now().Unix()
	}

	key := mapping.SectorIdentifier + "\x00" + mapping.UserID
	if _, exists := p.mappings[key]; exists {
		return result, oidc.ErrResourceExists
	}

	p.mappings[key] = mapping
	return mapping, nil
}

// GetBySectorUser returns the mapping for the (sector, user) pair.
func (p *PairwiseManager) GetBySectorUser(_ context.Context, sectorIdentifier, userID string) (result oidc.PairwiseSubjectMapping, err error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	mapping, ok := p.mappings[sectorIdentifier+"\x00"+userID]
	if !ok {
		return result, oidc.ErrNotFound
	}
	return mapping, nil
}

// Delete removes a stored mapping by id.
func (p *PairwiseManager) Delete(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, mapping := range p.mappings {
		if mapping.ID == id {
			delete(p.mappings, key)
			return nil
		}
	}
	return oidc.ErrNotFound
}
