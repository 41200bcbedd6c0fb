package memory

import (
	// Standard Library Imports
	"context"
	"sync"
	"testing"
	"time"

	// External Imports
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

func TestClientManager_CreateHashesSecret(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	created, err := store.ClientManager.Create(ctx, oidc.Client{
		ID:     "client-1",
		Secret: "hunter2hunter2",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2hunter2", created.Secret)

	_, err = store.ClientManager.Authenticate(ctx, "client-1", "hunter2hunter2")
	assert.NoError(t, err)

	_, err = store.ClientManager.Authenticate(ctx, "client-1", "wrong")
	assert.Error(t, err)
}

func TestClientManager_RegistrationToken(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.ClientManager.Create(ctx, oidc.Client{
		ID:                      "client-1",
		RegistrationAccessToken: "reg-token",
	})
	require.NoError(t, err)

	_, err = store.ClientManager.AuthenticateRegistrationToken(ctx, "client-1", "reg-token")
	assert.NoError(t, err)

	_, err = store.ClientManager.AuthenticateRegistrationToken(ctx, "client-1", "stolen")
	assert.Error(t, err)
}

func TestTokenManager_ConsumeAuthorizationCodeOnce(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.TokenManager.CreateAuthorizationCode(ctx, oidc.AuthorizationCode{
		Signature:  "code-sig",
		GrantID:    "grant-1",
		ExpireTime: time.Now().Add(time.Minute).Unix(),
	})
	require.NoError(t, err)

	first, err := store.TokenManager.ConsumeAuthorizationCode(ctx, "code-sig")
	require.NoError(t, err)
	assert.True(t, first.Used)

	second, err := store.TokenManager.ConsumeAuthorizationCode(ctx, "code-sig")
	assert.ErrorIs(t, err, oidc.ErrCodeAlreadyUsed)
	assert.Equal(t, "grant-1", second.GrantID)
}

func TestTokenManager_ConcurrentConsumeAdmitsExactlyOneWinner(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.TokenManager.CreateAuthorizationCode(ctx, oidc.AuthorizationCode{
		Signature: "code-sig",
	})
	require.NoError(t, err)

	const attempts = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.TokenManager.ConsumeAuthorizationCode(ctx, "code-sig"); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestTokenManager_RevokeByGrantID(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.TokenManager.CreateAccessToken(ctx, oidc.Token{
		Signature: "at-1", GrantID: "grant-1", Active: true,
	})
	require.NoError(t, err)
	_, err = store.TokenManager.CreateRefreshToken(ctx, oidc.Token{
		Signature: "rt-1", GrantID: "grant-1", Active: true,
	})
	require.NoError(t, err)
	_, err = store.TokenManager.CreateAccessToken(ctx, oidc.Token{
		Signature: "at-2", GrantID: "grant-2", Active: true,
	})
	require.NoError(t, err)

	require.NoError(t, store.TokenManager.RevokeByGrantID(ctx, "grant-1"))

	at1, err := store.TokenManager.GetAccessToken(ctx, "at-1")
	require.NoError(t, err)
	assert.False(t, at1.Active)

	rt1, err := store.TokenManager.GetRefreshToken(ctx, "rt-1")
	require.NoError(t, err)
	assert.False(t, rt1.Active)

	// The unrelated lineage is untouched.
	at2, err := store.TokenManager.GetAccessToken(ctx, "at-2")
	require.NoError(t, err)
	assert.True(t, at2.Active)
}

func TestTokenManager_RotateRefreshToken(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	_, err := store.TokenManager.CreateRefreshToken(ctx, oidc.Token{
		Signature: "rt-old", GrantID: "grant-1", Active: true,
	})
	require.NoError(t, err)

	rotated, err := store.TokenManager.RotateRefreshToken(ctx, "rt-old", oidc.Token{
		Signature: "rt-new", GrantID: "grant-1", Active: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "rt-new", rotated.Signature)

	old, err := store.TokenManager.GetRefreshToken(ctx, "rt-old")
	require.NoError(t, err)
	assert.False(t, old.Active)

	// A retired token cannot be rotated again.
	_, err = store.TokenManager.RotateRefreshToken(ctx, "rt-old", oidc.Token{Signature: "rt-x"})
	assert.ErrorIs(t, err, oidc.ErrTokenInactive)
}

func TestGrantManager_AccreteScopes(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	grant, err := store.GrantManager.Create(ctx, oidc.AuthorizationGrant{
		ClientID:      "client-1",
		UserID:        "user-1",
		SessionID:     "sess-1",
		GrantedScopes: []string{"openid", "profile"},
		Active:        true,
	})
	require.NoError(t, err)

	accreted, err := store.GrantManager.AccreteScopes(ctx, grant.ID, []string{"profile", "email"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"openid", "profile", "email"}, accreted.GrantedScopes)

	found, err := store.GrantManager.GetByClientUserSession(ctx, "client-1", "user-1", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, grant.ID, found.ID)

	require.NoError(t, store.GrantManager.Deactivate(ctx, grant.ID))
	_, err = store.GrantManager.GetByClientUserSession(ctx, "client-1", "user-1", "sess-1")
	assert.ErrorIs(t, err, oidc.ErrNotFound)
}

func TestDeniedJTIManager_Replay(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.ClientManager.SetClientAssertionJWT(ctx, "jti-1", time.Now().Add(time.Hour))
	require.NoError(t, err)

	assert.ErrorIs(t, store.ClientManager.ClientAssertionJWTValid(ctx, "jti-1"), oidc.ErrJTIKnown)
	assert.NoError(t, store.ClientManager.ClientAssertionJWTValid(ctx, "jti-unseen"))
}
