package authorize

import (
	// Standard Library Imports
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	// External Imports
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
	"github.com/p000ic/go-oidc-server/crypto"
	"github.com/p000ic/go-oidc-server/memory"
	"github.com/p000ic/go-oidc-server/reqobj"
	"github.com/p000ic/go-oidc-server/subject"
	"github.com/p000ic/go-oidc-server/token"
)

// stubAuthenticator returns a fixed user and session, or fails when unset.
type stubAuthenticator struct {
	user    oidc.User
	session oidc.Session
}

func (s *stubAuthenticator) Authenticate(_ context.Context, _ *http.Request) (oidc.User, oidc.Session, error) {
	return s.user, s.session, nil
}

// stubConsenter approves everything and records what it was asked for.
type stubConsenter struct {
	asked   [][]string
	approve func(scopes []string) []string
}

func (s *stubConsenter) Consent(_ context.Context, _ oidc.User, _ oidc.Client, scopes []string) ([]string, error) {
	s.asked = append(s.asked, scopes)
	if s.approve != nil {
		return s.approve(scopes), nil
	}
	return scopes, nil
}

type fixture struct {
	issuer    *Issuer
	store     *memory.Store
	consenter *stubConsenter
	client    oidc.Client
	keys      *crypto.KeyStore
}

func newFixture(t *testing.T, client oidc.Client) *fixture {
	t.Helper()

	store := memory.NewStore()
	cfg := &oidc.Config{Issuer: "https://issuer.example.com", PairwiseSalt: "salt"}
	cfg.EnsureDefaults()

	keys, err := crypto.NewKeyStore()
	require.NoError(t, err)

	ctx := context.Background()
	client.JOSESecret = "client-secret"
	stored, err := store.ClientManager.Create(ctx, client)
	require.NoError(t, err)
	stored.JOSESecret = "client-secret"

	user, err := store.UserManager.Create(ctx, oidc.User{
		ID:       "user-1",
		Username: "jdoe",
		Name:     "J. Doe",
		Email:    "jdoe@example.com",
	})
	require.NoError(t, err)
	session, err := store.SessionManager.Create(ctx, oidc.Session{
		ID:       "session-1",
		UserID:   user.ID,
		AuthTime: time.Now().Unix(),
		Active:   true,
	})
	require.NoError(t, err)

	consenter := &stubConsenter{}
	issuer := &Issuer{
		Config:   cfg,
		Clients:  store.ClientManager,
		Grants:   store.GrantManager,
		Tokens:   store.TokenManager,
		Sessions: store.SessionManager,
		Subjects: subject.NewResolver(cfg, store.PairwiseManager),
		RequestObjects: &reqobj.Processor{
			Keys:    keys,
			Fetcher: crypto.NewKeyFetcher(2 * time.Second),
		},
		IDTokens: &token.IDTokenIssuer{
			Issuer:   cfg.Issuer,
			Keys:     keys,
			Fetcher:  crypto.NewKeyFetcher(2 * time.Second),
			Lifespan: cfg.IDTokenLifespan,
		},
		Authenticator: &stubAuthenticator{user: user, session: session},
		Consenter:     consenter,
	}
	return &fixture{issuer: issuer, store: store, consenter: consenter, client: stored, keys: keys}
}

func webClient() oidc.Client {
	return oidc.Client{
		ID:            "client-1",
		Secret:        "client-secret",
		RedirectURIs:  []string{"https://app.example.com/cb"},
		ResponseTypes: []string{"code", "token", "id_token", "code id_token"},
		GrantTypes:    []string{"authorization_code", "refresh_token", "implicit"},
		Scopes:        []string{"openid", "profile", "email", "address"},
	}
}

func authorizeRequest(params url.Values) *http.Request {
	return httptest.NewRequest(http.MethodGet, "/authorize?"+params.Encode(), nil)
}

func TestAuthorizeCodeFlow(t *testing.T) {
	f := newFixture(t, webClient())

	response := f.issuer.Authorize(context.Background(), authorizeRequest(url.Values{
		"client_id":     {f.client.ID},
		"redirect_uri":  {"https://app.example.com/cb"},
		"response_type": {"code"},
		"scope":         {"openid profile"},
		"state":         {"opaque-state"},
	}))

	require.Nil(t, response.DirectError)
	assert.Equal(t, StageResponded, response.Stage)
	assert.Equal(t, oidc.ResponseModeQuery, response.Mode)
	assert.Equal(t, "opaque-state", response.Params.Get("state"))

	code := response.Params.Get("code")
	require.NotEmpty(t, code)

	stored, err := f.store.TokenManager.GetAuthorizationCode(
		context.Background(), token.SignatureOf(code))
	require.NoError(t, err)
	assert.Equal(t, f.client.ID, stored.ClientID)
	assert.ElementsMatch(t, []string{"openid", "profile"}, stored.RequestedScopes)
	assert.NotEmpty(t, stored.GrantID)

	grant, err := f.store.GrantManager.Get(context.Background(), stored.GrantID)
	require.NoError(t, err)
	assert.True(t, grant.Active)
}

func TestAuthorizeImplicitFlow(t *testing.T) {
	f := newFixture(t, webClient())

	response := f.issuer.Authorize(context.Background(), authorizeRequest(url.Values{
		"client_id":     {f.client.ID},
		"redirect_uri":  {"https://app.example.com/cb"},
		"response_type": {"id_token token"},
		"scope":         {"openid"},
		"nonce":         {"n-0S6_WzA2Mj"},
	}))

	require.Nil(t, response.DirectError)
	assert.Equal(t, oidc.ResponseModeFragment, response.Mode)

	accessToken := response.Params.Get("access_token")
	idToken := response.Params.Get("id_token")
	require.NotEmpty(t, accessToken)
	require.NotEmpty(t, idToken)

	public := f.keys.Public()
	claims, err := crypto.Verify(idToken, &public)
	require.NoError(t, err)
	assert.Equal(t, "n-0S6_WzA2Mj", claims["nonce"])
	assert.Equal(t, "https://issuer.example.com", claims["iss"])

	// at_hash binds the ID token to the access token issued beside it.
	wantHash, err := crypto.HalfHash("RS256", accessToken)
	require.NoError(t, err)
	assert.Equal(t, wantHash, claims["at_hash"])
	assert.NotContains(t, claims, "c_hash")
}

func TestAuthorizeHybridFlowHashes(t *testing.T) {
	f := newFixture(t, webClient())

	response := f.issuer.Authorize(context.Background(), authorizeRequest(url.Values{
		"client_id":     {f.client.ID},
		"redirect_uri":  {"https://app.example.com/cb"},
		"response_type": {"code id_token"},
		"scope":         {"openid"},
		"nonce":         {"nonce-1"},
	}))

	require.Nil(t, response.DirectError)
	assert.Equal(t, oidc.ResponseModeFragment, response.Mode)

	code := response.Params.Get("code")
	idToken := response.Params.Get("id_token")
	require.NotEmpty(t, code)
	require.NotEmpty(t, idToken)

	public := f.keys.Public()
	claims, err := crypto.Verify(idToken, &public)
	require.NoError(t, err)

	wantHash, err := crypto.HalfHash("RS256", code)
	require.NoError(t, err)
	assert.Equal(t, wantHash, claims["c_hash"])
}

func TestAuthorizeRequiresNonceForIDToken(t *testing.T) {
	f := newFixture(t, webClient())

	response := f.issuer.Authorize(context.Background(), authorizeRequest(url.Values{
		"client_id":     {f.client.ID},
		"redirect_uri":  {"https://app.example.com/cb"},
		"response_type": {"id_token"},
		"scope":         {"openid"},
	}))

	assert.Equal(t, StageError, response.Stage)
	assert.Equal(t, "invalid_request", response.Params.Get("error"))
}

func TestAuthorizeUnsupportedResponseType(t *testing.T) {
	client := webClient()
	client.ResponseTypes = []string{"code"}
	f := newFixture(t, client)

	response := f.issuer.Authorize(context.Background(), authorizeRequest(url.Values{
		"client_id":     {f.client.ID},
		"redirect_uri":  {"https://app.example.com/cb"},
		"response_type": {"token"},
		"scope":         {"openid"},
		"state":         {"s"},
	}))

	require.Nil(t, response.DirectError)
	assert.Equal(t, "unsupported_response_type", response.Params.Get("error"))
	assert.Equal(t, "s", response.Params.Get("state"),
		"redirect errors carry the original state")
}

func TestAuthorizeUnknownRedirectIsDirectError(t *testing.T) {
	f := newFixture(t, webClient())

	response := f.issuer.Authorize(context.Background(), authorizeRequest(url.Values{
		"client_id":     {f.client.ID},
		"redirect_uri":  {"https://evil.example.com/cb"},
		"response_type": {"code"},
	}))

	require.NotNil(t, response.DirectError,
		"an unregistered redirect URI must never receive a redirect")
}

func TestAuthorizePromptNoneWithoutGrant(t *testing.T) {
	f := newFixture(t, webClient())

	response := f.issuer.Authorize(context.Background(), authorizeRequest(url.Values{
		"client_id":     {f.client.ID},
		"redirect_uri":  {"https://app.example.com/cb"},
		"response_type": {"code"},
		"scope":         {"openid"},
		"prompt":        {"none"},
	}))

	assert.Equal(t, "consent_required", response.Params.Get("error"))
	assert.Empty(t, f.consenter.asked, "prompt=none must not invoke the consent oracle")
}

func TestAuthorizePromptNoneWithCoveringGrant(t *testing.T) {
	f := newFixture(t, webClient())
	ctx := context.Background()

	first := f.issuer.Authorize(ctx, authorizeRequest(url.Values{
		"client_id":     {f.client.ID},
		"redirect_uri":  {"https://app.example.com/cb"},
		"response_type": {"code"},
		"scope":         {"openid profile"},
	}))
	require.Nil(t, first.DirectError)
	require.Empty(t, first.Params.Get("error"))

	second := f.issuer.Authorize(ctx, authorizeRequest(url.Values{
		"client_id":     {f.client.ID},
		"redirect_uri":  {"https://app.example.com/cb"},
		"response_type": {"code"},
		"scope":         {"openid"},
		"prompt":        {"none"},
	}))
	assert.Empty(t, second.Params.Get("error"),
		"a covering grant satisfies prompt=none")
	assert.NotEmpty(t, second.Params.Get("code"))
}

func TestAuthorizeTrustedClientSkipsConsent(t *testing.T) {
	client := webClient()
	client.Trusted = true
	f := newFixture(t, client)

	response := f.issuer.Authorize(context.Background(), authorizeRequest(url.Values{
		"client_id":     {f.client.ID},
		"redirect_uri":  {"https://app.example.com/cb"},
		"response_type": {"code"},
		"scope":         {"openid"},
		"prompt":        {"none"},
	}))

	assert.Empty(t, response.Params.Get("error"))
	assert.NotEmpty(t, response.Params.Get("code"))
	assert.Empty(t, f.consenter.asked)
}

func TestAuthorizeScopeAccretion(t *testing.T) {
	f := newFixture(t, webClient())
	ctx := context.Background()

	first := f.issuer.Authorize(ctx, authorizeRequest(url.Values{
		"client_id":     {f.client.ID},
		"redirect_uri":  {"https://app.example.com/cb"},
		"response_type": {"code"},
		"scope":         {"openid profile"},
	}))
	require.Empty(t, first.Params.Get("error"))
	require.Len(t, f.consenter.asked, 1)
	assert.ElementsMatch(t, []string{"openid", "profile"}, f.consenter.asked[0])

	// A superset request re-consents only the difference.
	second := f.issuer.Authorize(ctx, authorizeRequest(url.Values{
		"client_id":     {f.client.ID},
		"redirect_uri":  {"https://app.example.com/cb"},
		"response_type": {"code"},
		"scope":         {"openid profile email address"},
	}))
	require.Empty(t, second.Params.Get("error"))
	require.Len(t, f.consenter.asked, 2)
	assert.ElementsMatch(t, []string{"email", "address"}, f.consenter.asked[1])

	// A subset of the approved union skips consent and reuses the grant.
	third := f.issuer.Authorize(ctx, authorizeRequest(url.Values{
		"client_id":     {f.client.ID},
		"redirect_uri":  {"https://app.example.com/cb"},
		"response_type": {"code"},
		"scope":         {"profile email"},
	}))
	require.Empty(t, third.Params.Get("error"))
	assert.Len(t, f.consenter.asked, 2, "no fresh consent for an approved subset")

	grants, err := f.store.GrantManager.List(ctx, oidc.ListGrantsRequest{
		ClientID: f.client.ID,
	})
	require.NoError(t, err)
	require.Len(t, grants, 1, "accretion reuses the grant rather than creating one")
	assert.ElementsMatch(t,
		[]string{"openid", "profile", "email", "address"},
		grants[0].GrantedScopes)
}

func TestAuthorizeFormPostNeverLeaksIntoURL(t *testing.T) {
	f := newFixture(t, webClient())

	response := f.issuer.Authorize(context.Background(), authorizeRequest(url.Values{
		"client_id":     {f.client.ID},
		"redirect_uri":  {"https://app.example.com/cb"},
		"response_type": {"id_token token"},
		"response_mode": {"form_post"},
		"scope":         {"openid"},
		"nonce":         {"nonce-2"},
	}))
	require.Nil(t, response.DirectError)
	require.Equal(t, oidc.ResponseModeFormPost, response.Mode)

	recorder := httptest.NewRecorder()
	require.NoError(t, response.Write(recorder, httptest.NewRequest(http.MethodGet, "/authorize", nil)))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, recorder.Header().Get("Location"))
	body := recorder.Body.String()
	assert.Contains(t, body, `action="https://app.example.com/cb"`)
	assert.Contains(t, body, `name="access_token"`)
	assert.Contains(t, body, `name="id_token"`)
}

func TestAuthorizeQueryModeCannotDeliverTokens(t *testing.T) {
	f := newFixture(t, webClient())

	response := f.issuer.Authorize(context.Background(), authorizeRequest(url.Values{
		"client_id":     {f.client.ID},
		"redirect_uri":  {"https://app.example.com/cb"},
		"response_type": {"token"},
		"response_mode": {"query"},
		"scope":         {"openid"},
	}))

	assert.Equal(t, "invalid_request", response.Params.Get("error"))
}

func TestAuthorizeRequestObjectOverridesParameters(t *testing.T) {
	f := newFixture(t, webClient())
	f.issuer.RequestObjects.AllowUnsigned = true

	requestObject, err := crypto.SignUnsecured(map[string]interface{}{
		"scope": "openid email",
		"state": "from-object",
	})
	require.NoError(t, err)

	response := f.issuer.Authorize(context.Background(), authorizeRequest(url.Values{
		"client_id":     {f.client.ID},
		"redirect_uri":  {"https://app.example.com/cb"},
		"response_type": {"code"},
		"scope":         {"openid"},
		"state":         {"top-level"},
		"request":       {requestObject},
	}))

	require.Empty(t, response.Params.Get("error"))
	assert.Equal(t, "from-object", response.Params.Get("state"))

	code := response.Params.Get("code")
	stored, err := f.store.TokenManager.GetAuthorizationCode(
		context.Background(), token.SignatureOf(code))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"openid", "email"}, stored.RequestedScopes)
}

func TestAuthorizeFragmentWriteRedirects(t *testing.T) {
	f := newFixture(t, webClient())

	response := f.issuer.Authorize(context.Background(), authorizeRequest(url.Values{
		"client_id":     {f.client.ID},
		"redirect_uri":  {"https://app.example.com/cb"},
		"response_type": {"token"},
		"scope":         {"openid"},
	}))
	require.Nil(t, response.DirectError)

	recorder := httptest.NewRecorder()
	require.NoError(t, response.Write(recorder, httptest.NewRequest(http.MethodGet, "/authorize", nil)))

	location := recorder.Header().Get("Location")
	require.NotEmpty(t, location)
	assert.True(t, strings.HasPrefix(location, "https://app.example.com/cb#"),
		"implicit responses travel in the fragment")
	assert.NotContains(t, location, "?access_token=")
}
