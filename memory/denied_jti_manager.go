package memory

import (
	// Standard Library Imports
	"context"
	"sync"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// DeniedJTIManager provides an in-memory implementation of
// oidc.DeniedJTIManager.
type DeniedJTIManager struct {
	mu   sync.RWMutex
	jtis map[string]oidc.DeniedJTI
}

// Configure implements oidc.Configure.
func (d *DeniedJTIManager) Configure(_ context.Context) error {
	return nil
}

// Create stores a new denied JTI.
func (d *DeniedJTIManager) Create(_ context.Context, deniedJti oidc.DeniedJTI) (result oidc.DeniedJTI, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.jtis[deniedJti.Signature]; exists {
		return result, oidc.ErrResourceExists
	}
	d.jtis[deniedJti.Signature] = deniedJti
	return deniedJti, nil
}

// Get returns a stored denied JTI.
func (d *DeniedJTIManager) Get(_ context.Context, jti string) (result oidc.DeniedJTI, err error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	denied, ok := d.jtis[jti]
	if !ok {
		return result, oidc.ErrNotFound
	}
	return denied, nil
}

// Delete removes a stored denied JTI.
func (d *DeniedJTIManager) Delete(_ context.Context, jti string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.jtis[jti]; !ok {
		return oidc.ErrNotFound
	}
	delete(d.jtis, jti)
	return nil
}

// DeleteBefore removes all denied JTIs that expired before the given unix
// time.
func (d *DeniedJTIManager) DeleteBefore(_ context.Context, expBefore int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for signature, denied := range d.jtis {
		if denied.Expiry < expBefore {
			delete(d.jtis, signature)
		}
	}
	return nil
}
