package server

import (
	// Standard Library Imports
	"bytes"
	"context"
	"encoding/json"
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
)

type stubAuthenticator struct {
	user    oidc.User
	session oidc.Session
}

func (a *stubAuthenticator) Authenticate(_ context.Context, _ *http.Request) (oidc.User, oidc.Session, error) {
	return a.user, a.session, nil
}

type stubConsenter struct{}

func (c *stubConsenter) Consent(_ context.Context, _ oidc.User, _ oidc.Client, scopes []string) ([]string, error) {
	return scopes, nil
}

type fixture struct {
	server *Server
	store  *memory.Store
	ts     *httptest.Server
	client *http.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	store := memory.NewStore()

	user, err := store.UserManager.Create(ctx, oidc.User{
		Username:      "ava",
		Password:      "secret",
		Name:          "Ava Tester",
		Email:         "ava@example.com",
		EmailVerified: true,
	})
	require.NoError(t, err)

	session, err := store.SessionManager.Create(ctx, oidc.Session{
		UserID:   user.ID,
		AuthTime: time.Now().Unix(),
		Active:   true,
	})
	require.NoError(t, err)

	keys, err := crypto.NewKeyStore()
	require.NoError(t, err)

	cfg := &oidc.Config{
		Issuer:              "https://provider.example.com",
		PairwiseSalt:        "test-salt",
		RotateRefreshTokens: true,
	}

	srv := New(cfg, Stores{
		Clients:  store.ClientManager,
		Grants:   store.GrantManager,
		Tokens:   store.TokenManager,
		Pairwise: store.PairwiseManager,
		Sessions: store.SessionManager,
		Users:    store.UserManager,
	}, keys, &stubAuthenticator{user: user, session: session}, &stubConsenter{}, nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return &fixture{server: srv, store: store, ts: ts, client: client}
}

// registerClient registers a confidential web client through the endpoint
// and returns the decoded response body.
func (f *fixture) registerClient(t *testing.T, metadata map[string]interface{}) map[string]interface{} {
	t.Helper()

	body, err := json.Marshal(metadata)
	require.NoError(t, err)

	resp, err := f.client.Post(f.ts.URL+"/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

func TestRegistrationEndpoint(t *testing.T) {
	f := newFixture(t)

	registered := f.registerClient(t, map[string]interface{}{
		"redirect_uris": []string{"https://rp.example.com/callback"},
		"client_name":   "Relying Party",
	})

	clientID, _ := registered["client_id"].(string)
	registrationToken, _ := registered["registration_access_token"].(string)
	assert.NotEmpty(t, clientID)
	assert.NotEmpty(t, registered["client_secret"])
	assert.NotEmpty(t, registrationToken)
	assert.Equal(t,
		"https://provider.example.com/register/"+clientID,
		registered["registration_client_uri"],
	)

	t.Run("read requires the registration token", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/register/"+clientID, nil)
		require.NoError(t, err)
		resp, err := f.client.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		req.Header.Set("Authorization", "Bearer "+registrationToken)
		resp, err = f.client.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var read map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&read))
		assert.Equal(t, clientID, read["client_id"])
		assert.Empty(t, read["client_secret"], "secret is one-time output")
	})

	t.Run("wrong token is rejected", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/register/"+clientID, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer not-the-token")
		resp, err := f.client.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("deregistration removes the client", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, f.ts.URL+"/register/"+clientID, nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+registrationToken)
		resp, err := f.client.Do(req)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		_, err = f.store.ClientManager.Get(context.Background(), clientID)
		assert.ErrorIs(t, err, oidc.ErrNotFound)
	})
}

func TestRegistrationEndpointRejectsBadRedirects(t *testing.T) {
	f := newFixture(t)

	body, err := json.Marshal(map[string]interface{}{
		"redirect_uris": []string{"http://rp.example.com/callback"},
	})
	require.NoError(t, err)

	resp, err := f.client.Post(f.ts.URL+"/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, "invalid_redirect_uri", decoded["error"])
}

func TestAuthorizationCodeFlowEndToEnd(t *testing.T) {
	f := newFixture(t)

	registered := f.registerClient(t, map[string]interface{}{
		"redirect_uris": []string{"https://rp.example.com/callback"},
		"grant_types":   []string{"authorization_code", "refresh_token"},
		"scope":         "openid profile email",
	})
	clientID := registered["client_id"].(string)
	clientSecret := registered["client_secret"].(string)

	// Authorization request.
	authorizeURL := f.ts.URL + "/authorize?" + url.Values{
		"client_id":     []string{clientID},
		"redirect_uri":  []string{"https://rp.example.com/callback"},
		"response_type": []string{"code"},
		"scope":         []string{"openid profile"},
		"state":         []string{"af0ifjsldkj"},
		"nonce":         []string{"n-0S6_WzA2Mj"},
	}.Encode()

	resp, err := f.client.Get(authorizeURL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "af0ifjsldkj", location.Query().Get("state"))
	code := location.Query().Get("code")
	require.NotEmpty(t, code)

	// Redemption.
	form := url.Values{
		"grant_type":   []string{"authorization_code"},
		"code":         []string{code},
		"redirect_uri": []string{"https://rp.example.com/callback"},
	}
	req, err := http.NewRequest(http.MethodPost, f.ts.URL+"/token", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(clientID, clientSecret)

	resp, err = f.client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tokens struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		RefreshToken string `json:"refresh_token"`
		IDToken      string `json:"id_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tokens))
	assert.NotEmpty(t, tokens.AccessToken)
	assert.Equal(t, "bearer", strings.ToLower(tokens.TokenType))
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.NotEmpty(t, tokens.IDToken)

	// Userinfo.
	req, err = http.NewRequest(http.MethodGet, f.ts.URL+"/userinfo", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)

	resp, err = f.client.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var claims map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&claims))
	assert.NotEmpty(t, claims["sub"])
	assert.Equal(t, "Ava Tester", claims["name"])

	// Revocation of the refresh token kills the whole lineage.
	form = url.Values{
		"token":           []string{tokens.RefreshToken},
		"token_type_hint": []string{"refresh_token"},
	}
	req, err = http.NewRequest(http.MethodPost, f.ts.URL+"/revoke", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(clientID, clientSecret)

	resp, err = f.client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	req, err = http.NewRequest(http.MethodGet, f.ts.URL+"/userinfo", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	resp, err = f.client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestTokenEndpointErrors(t *testing.T) {
	f := newFixture(t)

	registered := f.registerClient(t, map[string]interface{}{
		"redirect_uris": []string{"https://rp.example.com/callback"},
	})
	clientID := registered["client_id"].(string)
	clientSecret := registered["client_secret"].(string)

	t.Run("unsupported grant type", func(t *testing.T) {
		form := url.Values{"grant_type": []string{"password"}}
		req, err := http.NewRequest(http.MethodPost, f.ts.URL+"/token", strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(clientID, clientSecret)

		resp, err := f.client.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var decoded map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
		assert.Equal(t, "unsupported_grant_type", decoded["error"])
	})

	t.Run("bad client credentials", func(t *testing.T) {
		form := url.Values{"grant_type": []string{"authorization_code"}, "code": []string{"nope"}}
		req, err := http.NewRequest(http.MethodPost, f.ts.URL+"/token", strings.NewReader(form.Encode()))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.SetBasicAuth(clientID, "wrong-secret")

		resp, err := f.client.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))

		var decoded map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
		assert.Equal(t, "invalid_client", decoded["error"])
	})
}

func TestDiscoveryAndJWKS(t *testing.T) {
	f := newFixture(t)

	resp, err := f.client.Get(f.ts.URL + "/.well-known/openid-configuration")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "https://provider.example.com", doc["issuer"])
	assert.Equal(t, "https://provider.example.com/jwks", doc["jwks_uri"])
	assert.Contains(t, doc["subject_types_supported"], "pairwise")

	resp, err = f.client.Get(f.ts.URL + "/jwks")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var jwks struct {
		Keys []map[string]interface{} `json:"keys"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jwks))
	assert.NotEmpty(t, jwks.Keys)
	for _, key := range jwks.Keys {
		assert.NotContains(t, key, "d", "jwks must only carry public material")
	}
}
