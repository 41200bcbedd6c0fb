package token

import (
	// Standard Library Imports
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	// External Imports
	"github.com/google/uuid"
	"github.com/ory/fosite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
	"github.com/p000ic/go-oidc-server/crypto"
	"github.com/p000ic/go-oidc-server/memory"
	"github.com/p000ic/go-oidc-server/subject"
)

type fixture struct {
	lifecycle *Lifecycle
	store     *memory.Store
	client    oidc.Client
	user      oidc.User
	session   oidc.Session
	grant     oidc.AuthorizationGrant
	keys      *crypto.KeyStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	cfg := &oidc.Config{
		Issuer:              "https://issuer.example.com",
		PairwiseSalt:        "salt",
		RotateRefreshTokens: true,
	}
	cfg.EnsureDefaults()

	keys, err := crypto.NewKeyStore()
	require.NoError(t, err)

	client, err := store.ClientManager.Create(ctx, oidc.Client{
		ID:           "client-1",
		Secret:       "client-secret",
		JOSESecret:   "client-secret",
		RedirectURIs: []string{"https://app.example.com/cb"},
		GrantTypes:   []string{"authorization_code", "refresh_token"},
		Scopes:       []string{"openid", "profile", "email"},
	})
	require.NoError(t, err)

	user, err := store.UserManager.Create(ctx, oidc.User{
		ID:       "user-1",
		Username: "jdoe",
		Name:     "J. Doe",
		Email:    "jdoe@example.com",
	})
	require.NoError(t, err)

	session, err := store.SessionManager.Create(ctx, oidc.Session{
		ID:        "session-1",
		UserID:    user.ID,
		AuthTime:  time.Now().Unix(),
		ClientIDs: []string{client.ID},
		Active:    true,
	})
	require.NoError(t, err)

	grant, err := store.GrantManager.Create(ctx, oidc.AuthorizationGrant{
		ID:            uuid.NewString(),
		ClientID:      client.ID,
		UserID:        user.ID,
		SessionID:     session.ID,
		GrantedScopes: []string{"openid", "profile", "email"},
		CreateTime:    time.Now().Unix(),
		Active:        true,
	})
	require.NoError(t, err)

	fetcher := crypto.NewKeyFetcher(2 * time.Second)
	lifecycle := &Lifecycle{
		Config:   cfg,
		Clients:  store.ClientManager,
		Grants:   store.GrantManager,
		Tokens:   store.TokenManager,
		Sessions: store.SessionManager,
		Users:    store.UserManager,
		Subjects: subject.NewResolver(cfg, store.PairwiseManager),
		IDTokens: &IDTokenIssuer{
			Issuer:   cfg.Issuer,
			Keys:     keys,
			Fetcher:  fetcher,
			Lifespan: cfg.IDTokenLifespan,
		},
		Auth: &ClientAuthenticator{
			Clients:  store.ClientManager,
			Fetcher:  fetcher,
			Audience: cfg.Issuer,
		},
	}
	return &fixture{
		lifecycle: lifecycle,
		store:     store,
		client:    client,
		user:      user,
		session:   session,
		grant:     grant,
		keys:      keys,
	}
}

// mintCode seeds a redeemable authorization code hanging off the fixture
// grant.
func (f *fixture) mintCode(t *testing.T, scopes []string, challenge, method string) string {
	t.Helper()

	value, signature, err := NewOpaque()
	require.NoError(t, err)

	now := time.Now()
	_, err = f.store.TokenManager.CreateAuthorizationCode(context.Background(), oidc.AuthorizationCode{
		ID:                  uuid.NewString(),
		Signature:           signature,
		GrantID:             f.grant.ID,
		ClientID:            f.client.ID,
		UserID:              f.user.ID,
		SessionID:           f.session.ID,
		RedirectURI:         "https://app.example.com/cb",
		RequestedScopes:     scopes,
		Nonce:               "nonce-1",
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
		CreateTime:          now.Unix(),
		ExpireTime:          now.Add(5 * time.Minute).Unix(),
	})
	require.NoError(t, err)
	return value
}

func tokenRequest(form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/token", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func (f *fixture) exchangeCode(t *testing.T, code string) (*Response, error) {
	t.Helper()
	return f.lifecycle.Exchange(context.Background(), tokenRequest(url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {"https://app.example.com/cb"},
		"client_id":     {f.client.ID},
		"client_secret": {"client-secret"},
	}))
}

func TestRedeemIssuesTokens(t *testing.T) {
	f := newFixture(t)
	code := f.mintCode(t, []string{"openid", "profile"}, "", "")

	response, err := f.exchangeCode(t, code)
	require.NoError(t, err)

	assert.NotEmpty(t, response.AccessToken)
	assert.NotEmpty(t, response.RefreshToken)
	assert.Equal(t, "bearer", response.TokenType)
	require.NotEmpty(t, response.IDToken)

	public := f.keys.Public()
	claims, err := crypto.Verify(response.IDToken, &public)
	require.NoError(t, err)
	assert.Equal(t, "nonce-1", claims["nonce"])
	assert.Equal(t, f.client.ID, claims["aud"])
	assert.NotEmpty(t, claims["sub"])
	assert.Equal(t, "session-1", claims["sid"])
}

func TestRedeemReplayRevokesEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.mintCode(t, []string{"openid"}, "", "")

	first, err := f.exchangeCode(t, code)
	require.NoError(t, err)

	_, err = f.exchangeCode(t, code)
	require.Error(t, err, "a consumed code must not redeem twice")

	// Containment: the first redemption's tokens are all dead.
	_, err = f.lifecycle.Userinfo(ctx, first.AccessToken)
	assert.Error(t, err, "access token from the replayed code must be unusable")

	_, err = f.lifecycle.Exchange(ctx, tokenRequest(url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {first.RefreshToken},
		"client_id":     {f.client.ID},
		"client_secret": {"client-secret"},
	}))
	assert.Error(t, err, "refresh token from the replayed code must be unusable")
}

func TestRedeemValidations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("wrong redirect uri", func(t *testing.T) {
		code := f.mintCode(t, []string{"openid"}, "", "")
		_, err := f.lifecycle.Exchange(ctx, tokenRequest(url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {"https://app.example.com/other"},
			"client_id":     {f.client.ID},
			"client_secret": {"client-secret"},
		}))
		assert.Error(t, err)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := f.exchangeCode(t, "not-a-code")
		assert.Error(t, err)
	})

	t.Run("bad client secret", func(t *testing.T) {
		code := f.mintCode(t, []string{"openid"}, "", "")
		_, err := f.lifecycle.Exchange(ctx, tokenRequest(url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {"https://app.example.com/cb"},
			"client_id":     {f.client.ID},
			"client_secret": {"wrong"},
		}))
		assert.Error(t, err)
	})
}

func TestRedeemPKCE(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	code := f.mintCode(t, []string{"openid"}, challenge, "S256")
	_, err := f.lifecycle.Exchange(ctx, tokenRequest(url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {"https://app.example.com/cb"},
		"client_id":     {f.client.ID},
		"client_secret": {"client-secret"},
		"code_verifier": {"wrong-verifier-wrong-verifier-wrong-verifier"},
	}))
	assert.Error(t, err, "a wrong verifier must not redeem")

	code = f.mintCode(t, []string{"openid"}, challenge, "S256")
	_, err = f.lifecycle.Exchange(ctx, tokenRequest(url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {"https://app.example.com/cb"},
		"client_id":     {f.client.ID},
		"client_secret": {"client-secret"},
		"code_verifier": {verifier},
	}))
	assert.NoError(t, err)
}

func TestRefreshRotatesAndBoundsScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.mintCode(t, []string{"openid", "profile"}, "", "")

	issued, err := f.exchangeCode(t, code)
	require.NoError(t, err)

	refreshed, err := f.lifecycle.Exchange(ctx, tokenRequest(url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {issued.RefreshToken},
		"scope":         {"openid"},
		"client_id":     {f.client.ID},
		"client_secret": {"client-secret"},
	}))
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, issued.RefreshToken, refreshed.RefreshToken,
		"rotation must issue a new refresh token")
	assert.Equal(t, "openid", refreshed.Scope)

	// The retired refresh token must not work again.
	_, err = f.lifecycle.Exchange(ctx, tokenRequest(url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {issued.RefreshToken},
		"client_id":     {f.client.ID},
		"client_secret": {"client-secret"},
	}))
	assert.Error(t, err)

	// Scope escalation past the original grant is rejected.
	_, err = f.lifecycle.Exchange(ctx, tokenRequest(url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshed.RefreshToken},
		"scope":         {"openid admin"},
		"client_id":     {f.client.ID},
		"client_secret": {"client-secret"},
	}))
	assert.Error(t, err)
}

func TestRevokeRefreshTokenCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.mintCode(t, []string{"openid", "profile"}, "", "")

	issued, err := f.exchangeCode(t, code)
	require.NoError(t, err)

	_, err = f.lifecycle.Userinfo(ctx, issued.AccessToken)
	require.NoError(t, err, "access token works before revocation")

	err = f.lifecycle.Revoke(ctx, tokenRequest(url.Values{
		"token":           {issued.RefreshToken},
		"token_type_hint": {"refresh_token"},
		"client_id":       {f.client.ID},
		"client_secret":   {"client-secret"},
	}))
	require.NoError(t, err)

	_, err = f.lifecycle.Userinfo(ctx, issued.AccessToken)
	assert.Error(t, err, "revoking the refresh token kills the whole lineage")
}

func TestRevokeAccessTokenKillsSiblingRefresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.mintCode(t, []string{"openid"}, "", "")

	issued, err := f.exchangeCode(t, code)
	require.NoError(t, err)

	err = f.lifecycle.Revoke(ctx, tokenRequest(url.Values{
		"token":           {issued.AccessToken},
		"token_type_hint": {"access_token"},
		"client_id":       {f.client.ID},
		"client_secret":   {"client-secret"},
	}))
	require.NoError(t, err)

	_, err = f.lifecycle.Exchange(ctx, tokenRequest(url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {issued.RefreshToken},
		"client_id":     {f.client.ID},
		"client_secret": {"client-secret"},
	}))
	assert.Error(t, err, "the sibling refresh token dies with the access token")
}

func TestRevokeUnknownTokenIsIdempotent(t *testing.T) {
	f := newFixture(t)

	err := f.lifecycle.Revoke(context.Background(), tokenRequest(url.Values{
		"token":         {"never-issued"},
		"client_id":     {f.client.ID},
		"client_secret": {"client-secret"},
	}))
	assert.NoError(t, err, "revoking an unknown token must succeed")
}

func TestRevokeWithoutTokenParameterFails(t *testing.T) {
	f := newFixture(t)

	err := f.lifecycle.Revoke(context.Background(), tokenRequest(url.Values{
		"client_id":     {f.client.ID},
		"client_secret": {"client-secret"},
	}))
	assert.Error(t, err)
}

func TestUserinfoReleasesScopeClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.mintCode(t, []string{"openid", "profile", "email"}, "", "")

	issued, err := f.exchangeCode(t, code)
	require.NoError(t, err)

	info, err := f.lifecycle.Userinfo(ctx, issued.AccessToken)
	require.NoError(t, err)
	assert.NotEmpty(t, info.Claims["sub"])
	assert.Equal(t, "J. Doe", info.Claims["name"])
	assert.Equal(t, "jdoe@example.com", info.Claims["email"])
	assert.Empty(t, info.JWT, "plain JSON unless the client registered a signing alg")
}

func TestUserinfoScopeLimitsClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.mintCode(t, []string{"openid"}, "", "")

	issued, err := f.exchangeCode(t, code)
	require.NoError(t, err)

	info, err := f.lifecycle.Userinfo(ctx, issued.AccessToken)
	require.NoError(t, err)
	assert.NotContains(t, info.Claims, "email")
	assert.NotContains(t, info.Claims, "name")
}

func TestEndSessionInvalidatesSessionAndGrants(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Register a front-channel logout URI and a post-logout destination.
	f.client.FrontchannelLogoutURI = "https://app.example.com/logout"
	f.client.PostLogoutRedirectURIs = []string{"https://app.example.com/bye"}
	_, err := f.store.ClientManager.Update(ctx, f.client.ID, f.client)
	require.NoError(t, err)

	code := f.mintCode(t, []string{"openid"}, "", "")
	issued, err := f.exchangeCode(t, code)
	require.NoError(t, err)

	result, err := f.lifecycle.EndSession(ctx, issued.IDToken, "https://app.example.com/bye", "st")
	require.NoError(t, err)

	assert.Equal(t, "https://app.example.com/bye?state=st", result.RedirectURI)
	require.Len(t, result.FrontchannelLogoutURIs, 1)
	assert.Contains(t, result.FrontchannelLogoutURIs[0], "sid=session-1")

	session, err := f.store.SessionManager.Get(ctx, f.session.ID)
	require.NoError(t, err)
	assert.False(t, session.Active)

	_, err = f.lifecycle.Userinfo(ctx, issued.AccessToken)
	assert.Error(t, err, "tokens die with the session")
}

func TestEndSessionRejectsForeignIDToken(t *testing.T) {
	f := newFixture(t)

	otherKeys, err := crypto.NewKeyStore()
	require.NoError(t, err)
	signingKey, err := otherKeys.SigningKey("RS256")
	require.NoError(t, err)
	forged, err := crypto.Sign(map[string]interface{}{
		"iss": "https://issuer.example.com",
		"sid": "session-1",
	}, "RS256", signingKey)
	require.NoError(t, err)

	_, err = f.lifecycle.EndSession(context.Background(), forged, "", "")
	assert.Error(t, err)
}

func TestRedeemRejectsExpiredCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	value, signature, err := NewOpaque()
	require.NoError(t, err)
	_, err = f.store.TokenManager.CreateAuthorizationCode(ctx, oidc.AuthorizationCode{
		ID:              uuid.NewString(),
		Signature:       signature,
		GrantID:         f.grant.ID,
		ClientID:        f.client.ID,
		UserID:          f.user.ID,
		SessionID:       f.session.ID,
		RedirectURI:     "https://app.example.com/cb",
		RequestedScopes: []string{"openid"},
		CreateTime:      time.Now().Add(-10 * time.Minute).Unix(),
		ExpireTime:      time.Now().Add(-5 * time.Minute).Unix(),
	})
	require.NoError(t, err)

	_, err = f.exchangeCode(t, value)
	require.Error(t, err)
	rfc := fosite.ErrorToRFC6749Error(err)
	assert.Equal(t, "invalid_grant", rfc.ErrorField)
	assert.Contains(t, rfc.HintField, "expired")
}

func TestUserinfoRejectsExpiredAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	value, signature, err := NewOpaque()
	require.NoError(t, err)
	_, err = f.store.TokenManager.CreateAccessToken(ctx, oidc.Token{
		ID:         uuid.NewString(),
		Signature:  signature,
		GrantID:    f.grant.ID,
		IssuanceID: uuid.NewString(),
		ClientID:   f.client.ID,
		UserID:     f.user.ID,
		SessionID:  f.session.ID,
		Scopes:     []string{"openid", "profile"},
		CreateTime: time.Now().Add(-2 * time.Hour).Unix(),
		ExpireTime: time.Now().Add(-time.Hour).Unix(),
		Active:     true,
	})
	require.NoError(t, err)

	_, err = f.lifecycle.Userinfo(ctx, value)
	assert.Error(t, err, "an expired access token must not release claims")
}

// rotationLosingTokenStore loses every refresh rotation race, recording the
// access token signatures minted before the loss.
type rotationLosingTokenStore struct {
	oidc.TokenStore
	accessSignatures []string
}

func (s *rotationLosingTokenStore) CreateAccessToken(ctx context.Context, token oidc.Token) (oidc.Token, error) {
	s.accessSignatures = append(s.accessSignatures, token.Signature)
	return s.TokenStore.CreateAccessToken(ctx, token)
}

func (s *rotationLosingTokenStore) RotateRefreshToken(_ context.Context, _ string, _ oidc.Token) (oidc.Token, error) {
	return oidc.Token{}, oidc.ErrTokenInactive
}

func TestRefreshRotationFailureRevokesMintedAccessToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	code := f.mintCode(t, []string{"openid"}, "", "")

	issued, err := f.exchangeCode(t, code)
	require.NoError(t, err)

	losing := &rotationLosingTokenStore{TokenStore: f.store.TokenManager}
	f.lifecycle.Tokens = losing

	_, err = f.lifecycle.Exchange(ctx, tokenRequest(url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {issued.RefreshToken},
		"client_id":     {f.client.ID},
		"client_secret": {"client-secret"},
	}))
	require.Error(t, err)

	require.Len(t, losing.accessSignatures, 1)
	stored, err := f.store.TokenManager.GetAccessToken(ctx, losing.accessSignatures[0])
	require.NoError(t, err)
	assert.False(t, stored.Active,
		"the access token minted before the failed rotation must not stay redeemable")
}
