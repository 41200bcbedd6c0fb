package subject

import (
	// Standard Library Imports
	"context"
	"testing"

	// External Imports
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
	"github.com/p000ic/go-oidc-server/memory"
)

func newResolver(t *testing.T, pairwiseType string) *Resolver {
	t.Helper()
	cfg := &oidc.Config{
		PairwiseType: pairwiseType,
		PairwiseSalt: "test-salt",
	}
	cfg.EnsureDefaults()
	return NewResolver(cfg, memory.NewStore().PairwiseManager)
}

func TestResolve_PublicSubjectIsSharedAcrossClients(t *testing.T) {
	resolver := newResolver(t, oidc.PairwiseTypeAlgorithmic)
	ctx := context.Background()

	clientA := oidc.Client{ID: "a", SubjectType: oidc.SubjectTypePublic}
	clientB := oidc.Client{ID: "b", SubjectType: oidc.SubjectTypePublic}

	subA, err := resolver.Resolve(ctx, clientA, "user-1")
	require.NoError(t, err)
	subB, err := resolver.Resolve(ctx, clientB, "user-1")
	require.NoError(t, err)

	assert.Equal(t, subA, subB)
}

func TestResolve_StableAcrossCalls(t *testing.T) {
	resolver := newResolver(t, oidc.PairwiseTypeAlgorithmic)
	ctx := context.Background()

	client := oidc.Client{
		ID:                  "a",
		SubjectType:         oidc.SubjectTypePairwise,
		SectorIdentifierURI: "https://sector.example.com/redirects.json",
	}

	first, err := resolver.Resolve(ctx, client, "user-1")
	require.NoError(t, err)
	second, err := resolver.Resolve(ctx, client, "user-1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, "user-1", first)
}

func TestResolve_ShareSubjectIdBetweenClientsWithSameSectorId(t *testing.T) {
	for _, mode := range []string{oidc.PairwiseTypeAlgorithmic, oidc.PairwiseTypePersistent} {
		t.Run(mode, func(t *testing.T) {
			resolver := newResolver(t, mode)
			ctx := context.Background()

			clientA := oidc.Client{
				ID:                  "a",
				SubjectType:         oidc.SubjectTypePairwise,
				SectorIdentifierURI: "https://sector.example.com/redirects.json",
			}
			clientB := oidc.Client{
				ID:                  "b",
				SubjectType:         oidc.SubjectTypePairwise,
				SectorIdentifierURI: "https://sector.example.com/other.json",
			}

			subA, err := resolver.Resolve(ctx, clientA, "user-1")
			require.NoError(t, err)
			subB, err := resolver.Resolve(ctx, clientB, "user-1")
			require.NoError(t, err)

			// Same sector host, same subject.
			assert.Equal(t, subA, subB)
		})
	}
}

func TestResolve_DistinctSectorsNeverCollide(t *testing.T) {
	resolver := newResolver(t, oidc.PairwiseTypeAlgorithmic)
	ctx := context.Background()

	clientA := oidc.Client{
		ID:                  "a",
		SubjectType:         oidc.SubjectTypePairwise,
		SectorIdentifierURI: "https://sector-one.example.com/redirects.json",
	}
	clientB := oidc.Client{
		ID:                  "b",
		SubjectType:         oidc.SubjectTypePairwise,
		SectorIdentifierURI: "https://sector-two.example.com/redirects.json",
	}

	subA, err := resolver.Resolve(ctx, clientA, "user-1")
	require.NoError(t, err)
	subB, err := resolver.Resolve(ctx, clientB, "user-1")
	require.NoError(t, err)

	assert.NotEqual(t, subA, subB)

	// Different users in the same sector do not collide either.
	subA2, err := resolver.Resolve(ctx, clientA, "user-2")
	require.NoError(t, err)
	assert.NotEqual(t, subA, subA2)
}

func TestSectorIdentifier_DerivedFromRedirectHost(t *testing.T) {
	client := oidc.Client{
		SubjectType: oidc.SubjectTypePairwise,
		RedirectURIs: []string{
			"https://app.example.com/cb",
			"https://app.example.com/cb2",
		},
	}

	sector, err := SectorIdentifier(client)
	require.NoError(t, err)
	assert.Equal(t, "app.example.com", sector)
}

func TestSectorIdentifier_MixedHostsWithoutSectorURIFails(t *testing.T) {
	client := oidc.Client{
		SubjectType: oidc.SubjectTypePairwise,
		RedirectURIs: []string{
			"https://app-one.example.com/cb",
			"https://app-two.example.com/cb",
		},
	}

	_, err := SectorIdentifier(client)
	assert.ErrorIs(t, err, ErrNoSector)
}
