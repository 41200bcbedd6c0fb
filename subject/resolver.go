// Package subject derives the subject identifiers released in tokens and
// userinfo responses: a process-wide stable identifier for public clients,
// and per-sector opaque identifiers for pairwise clients so relying parties
// cannot correlate users across sectors.
package subject

import (
	// Standard Library Imports
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/url"

	// External Imports
	"github.com/google/uuid"
	"github.com/pkg/errors"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// ErrNoSector is returned when a pairwise client has neither an explicit
// sector identifier nor a redirect URI set sharing a single host.
var ErrNoSector = errors.New("unable to resolve a sector identifier for pairwise client")

// Resolver computes subject identifiers. Pairwise derivation is keyed by a
// deployment-wide salt; the persistent mode additionally stores random
// mappings through the PairwiseStore.
type Resolver struct {
	// Type selects algorithmic or persistent pairwise derivation.
	Type string
	// Salt keys the algorithmic derivation.
	Salt string
	// Pairwise persists mappings in persistent mode. Unused otherwise.
	Pairwise oidc.PairwiseStore
}

// NewResolver builds a resolver from server config.
func NewResolver(cfg *oidc.Config, pairwise oidc.PairwiseStore) *Resolver {
	return &Resolver{
		Type:     cfg.PairwiseType,
		Salt:     cfg.PairwiseSalt,
		Pairwise: pairwise,
	}
}

// Resolve returns the subject identifier released to the given client for
// the given user.
func (r *Resolver) Resolve(ctx context.Context, client oidc.Client, userID string) (string, error) {
	if client.SubjectType != oidc.SubjectTypePairwise {
		// Public subjects are identical across every client.
		return userID, nil
	}

	sector, err := SectorIdentifier(client)
	if err != nil {
		return "", err
	}

	if r.Type == oidc.PairwiseTypePersistent {
		return r.persistentSubject(ctx, sector, userID)
	}
	return r.algorithmicSubject(sector, userID), nil
}

// SectorIdentifier resolves the sector a pairwise client belongs to: the
// host of its sector_identifier_uri when registered, otherwise the single
// host shared by all of its redirect URIs.
func SectorIdentifier(client oidc.Client) (string, error) {
	if client.SectorIdentifierURI != "" {
		parsed, err := url.Parse(client.SectorIdentifierURI)
		if err != nil || parsed.Host == "" {
			return "", errors.Wrap(ErrNoSector, "malformed sector_identifier_uri")
		}
		return parsed.Host, nil
	}

	host := ""
	for _, redirect := range client.RedirectURIs {
		parsed, err := url.Parse(redirect)
		if err != nil || parsed.Host == "" {
			return "", errors.Wrap(ErrNoSector, "malformed redirect uri")
		}
		if host == "" {
			host = parsed.Hostname()
			continue
		}
		if parsed.Hostname() != host {
			return "", ErrNoSector
		}
	}
	if host == "" {
		return "", ErrNoSector
	}
	return host, nil
}

// algorithmicSubject recomputes the subject from a keyed hash. Stable for
// fixed (sector, user, salt) and not invertible.
func (r *Resolver) algorithmicSubject(sector, userID string) string {
	mac := hmac.New(sha256.New, []byte(r.Salt))
	mac.Write([]byte(sector))
	mac.Write([]byte{0})
	mac.Write([]byte(userID))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// persistentSubject returns the stored mapping for the (sector, user) pair,
// minting a random one on first use.
func (r *Resolver) persistentSubject(ctx context.Context, sector, userID string) (string, error) {
	mapping, err := r.Pairwise.GetBySectorUser(ctx, sector, userID)
	if err == nil {
		return mapping.Subject, nil
	}
	if errors.Cause(err) != oidc.ErrNotFound {
		return "", err
	}

	mapping, err = r.Pairwise.Create(ctx, oidc.PairwiseSubjectMapping{
		SectorIdentifier: sector,
		UserID:           userID,
		Subject:          uuid.NewString(),
	})
	if err != nil {
		if errors.Cause(err) == oidc.ErrResourceExists {
			// Lost a create race; the stored mapping wins.
			mapping, err = r.Pairwise.GetBySectorUser(ctx, sector, userID)
			if err != nil {
				return "", err
			}
			return mapping.Subject, nil
		}
		return "", err
	}
	return mapping.Subject, nil
}
