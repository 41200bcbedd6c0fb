package register

import (
	// Standard Library Imports
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
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

func newRegistry(t *testing.T) (*Registry, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	return &Registry{
		Clients: store.ClientManager,
		Validator: &Validator{
			Sectors: NewSectorVerifier(2 * time.Second),
		},
		Issuer: "https://issuer.example.com",
	}, store
}

func TestRegisterIssuesCredentials(t *testing.T) {
	registry, store := newRegistry(t)

	response, err := registry.Register(context.Background(), &Request{
		RedirectURIs: []string{"https://app.example.com/callback"},
		ClientName:   "Example App",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, response.ClientID)
	assert.NotEmpty(t, response.ClientSecret)
	assert.NotEmpty(t, response.RegistrationAccessToken)
	assert.Equal(t,
		"https://issuer.example.com/register/"+response.ClientID,
		response.RegistrationClientURI,
	)

	stored, err := store.ClientManager.Get(context.Background(), response.ClientID)
	require.NoError(t, err)
	assert.NotEqual(t, response.ClientSecret, stored.Secret,
		"stored secret must be hashed")
	assert.Equal(t, []string{"code"}, stored.ResponseTypes)
	assert.ElementsMatch(t,
		[]string{"authorization_code", "refresh_token"}, stored.GrantTypes)
}

func TestRegisterPublicClientHasNoSecret(t *testing.T) {
	registry, _ := newRegistry(t)

	response, err := registry.Register(context.Background(), &Request{
		RedirectURIs:            []string{"https://spa.example.com/cb"},
		TokenEndpointAuthMethod: "none",
	})
	require.NoError(t, err)
	assert.Empty(t, response.ClientSecret)
}

func TestRegisterRejectsHTTPRedirectForWebClients(t *testing.T) {
	registry, _ := newRegistry(t)

	_, err := registry.Register(context.Background(), &Request{
		RedirectURIs: []string{"http://app.example.com/callback"},
	})
	require.Error(t, err)

	var regErr *Error
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, ErrorInvalidRedirectURI, regErr.Code)
	assert.Equal(t, "redirect_uris", regErr.Parameter)
}

func TestRegisterAllowsLoopbackWhenOptedIn(t *testing.T) {
	registry, _ := newRegistry(t)

	_, err := registry.Register(context.Background(), &Request{
		RedirectURIs:            []string{"http://localhost:8080/callback"},
		AllowLocalhostRedirects: true,
	})
	assert.NoError(t, err)
}

func TestRegisterNativeClientCustomScheme(t *testing.T) {
	registry, _ := newRegistry(t)

	_, err := registry.Register(context.Background(), &Request{
		ApplicationType: oidc.ApplicationTypeNative,
		RedirectURIs:    []string{"com.example.app:/oauth2redirect"},
	})
	assert.NoError(t, err)

	_, err = registry.Register(context.Background(), &Request{
		ApplicationType: oidc.ApplicationTypeNative,
		RedirectURIs:    []string{"https://app.example.com/callback"},
	})
	assert.Error(t, err, "native clients must not register https redirects")
}

func TestRegisterRejectsUnsignedIDTokens(t *testing.T) {
	registry, _ := newRegistry(t)

	_, err := registry.Register(context.Background(), &Request{
		RedirectURIs:             []string{"https://app.example.com/callback"},
		IDTokenSignedResponseAlg: "none",
	})
	require.Error(t, err)

	var regErr *Error
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "id_token_signed_response_alg", regErr.Parameter)
}

func TestRegisterGrantTypeUnionIsAdditive(t *testing.T) {
	registry, store := newRegistry(t)

	response, err := registry.Register(context.Background(), &Request{
		RedirectURIs:  []string{"https://app.example.com/callback"},
		ResponseTypes: []string{"code", "id_token token"},
		GrantTypes:    []string{"refresh_token"},
	})
	require.NoError(t, err)

	stored, err := store.ClientManager.Get(context.Background(), response.ClientID)
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{"authorization_code", "implicit", "refresh_token"},
		stored.GrantTypes,
	)
}

func TestRegisterPairwiseNeedsDerivableSector(t *testing.T) {
	registry, _ := newRegistry(t)

	_, err := registry.Register(context.Background(), &Request{
		RedirectURIs: []string{
			"https://one.example.com/cb",
			"https://two.example.com/cb",
		},
		SubjectType: oidc.SubjectTypePairwise,
	})
	require.Error(t, err)

	var regErr *Error
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "subject_type", regErr.Parameter)

	_, err = registry.Register(context.Background(), &Request{
		RedirectURIs: []string{
			"https://one.example.com/cb",
			"https://one.example.com/other",
		},
		SubjectType: oidc.SubjectTypePairwise,
	})
	assert.NoError(t, err, "single host needs no sector document")
}

func TestRegisterSectorIdentifierDocument(t *testing.T) {
	sector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`["https://one.example.com/cb","https://two.example.com/cb"]`))
	}))
	defer sector.Close()

	registry, _ := newRegistry(t)

	// The https scheme check happens before the fetch, so the plain-http test
	// server address is checked via the verifier directly.
	verifier := NewSectorVerifier(2 * time.Second)
	err := verifier.Verify(context.Background(), sector.URL,
		[]string{"https://one.example.com/cb", "https://two.example.com/cb"})
	assert.NoError(t, err)

	err = verifier.Verify(context.Background(), sector.URL,
		[]string{"https://three.example.com/cb"})
	require.Error(t, err)

	var regErr *Error
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "sector_identifier_uri", regErr.Parameter)

	_, err = registry.Register(context.Background(), &Request{
		RedirectURIs:        []string{"https://one.example.com/cb"},
		SubjectType:         oidc.SubjectTypePairwise,
		SectorIdentifierURI: sector.URL,
	})
	assert.Error(t, err, "sector identifier URIs must be https")
}

func TestReadUpdateDeregisterLifecycle(t *testing.T) {
	registry, _ := newRegistry(t)
	ctx := context.Background()

	created, err := registry.Register(ctx, &Request{
		RedirectURIs: []string{"https://app.example.com/callback"},
		ClientName:   "Before",
	})
	require.NoError(t, err)

	_, err = registry.Read(ctx, created.ClientID, "wrong-token")
	assert.Error(t, err)

	read, err := registry.Read(ctx, created.ClientID, created.RegistrationAccessToken)
	require.NoError(t, err)
	assert.Equal(t, "Before", read.Metadata["client_name"])
	assert.Empty(t, read.ClientSecret, "reads never re-issue credentials")

	updated, err := registry.Update(ctx, created.ClientID, created.RegistrationAccessToken, &Request{
		RedirectURIs: []string{"https://app.example.com/callback"},
		ClientName:   "After",
	})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Metadata["client_name"])

	// The registration access token survives updates.
	_, err = registry.Read(ctx, created.ClientID, created.RegistrationAccessToken)
	assert.NoError(t, err)

	require.NoError(t, registry.Deregister(ctx, created.ClientID, created.RegistrationAccessToken))

	_, err = registry.Read(ctx, created.ClientID, created.RegistrationAccessToken)
	assert.Error(t, err)
}

func TestRegisterLocalizedMetadataRoundTrip(t *testing.T) {
	request, err := ParseRequest([]byte(`{
		"redirect_uris": ["https://app.example.com/callback"],
		"client_name": "Example",
		"client_name#ja-JP": "れい",
		"client_name#fr-FR": "Exemple"
	}`))
	require.NoError(t, err)
	assert.Equal(t, "Example", request.ClientName)
	assert.Equal(t, "れい", request.LocalizedNames["ja-JP"])

	registry, _ := newRegistry(t)
	response, err := registry.Register(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, "れい", response.Metadata["client_name#ja-JP"])
	assert.Equal(t, "Exemple", response.Metadata["client_name#fr-FR"])
}

func TestSoftwareStatementOverridesMetadata(t *testing.T) {
	keys, err := crypto.NewKeyStore()
	require.NoError(t, err)
	signingKey, err := keys.SigningKey("RS256")
	require.NoError(t, err)

	statement, err := crypto.Sign(map[string]interface{}{
		"software_id":      "sw-123",
		"software_version": "2.0",
		"client_name":      "Asserted Name",
	}, "RS256", signingKey)
	require.NoError(t, err)

	registry, _ := newRegistry(t)
	public := keys.Public()
	registry.Software = &SoftwareStatementVerifier{Keys: &public}

	response, err := registry.Register(context.Background(), &Request{
		RedirectURIs: []string{"https://app.example.com/callback"},
		ClientName:   "Self Asserted",
		SoftwareStatement: statement,
	})
	require.NoError(t, err)
	assert.Equal(t, "Asserted Name", response.Metadata["client_name"])
	assert.Equal(t, "sw-123", response.Metadata["software_id"])
	assert.Equal(t, "2.0", response.Metadata["software_version"])
}

func TestSoftwareStatementRejectsUnknownSigner(t *testing.T) {
	signerKeys, err := crypto.NewKeyStore()
	require.NoError(t, err)
	signingKey, err := signerKeys.SigningKey("RS256")
	require.NoError(t, err)

	statement, err := crypto.Sign(map[string]interface{}{
		"software_id": "sw-123",
	}, "RS256", signingKey)
	require.NoError(t, err)

	trustedKeys, err := crypto.NewKeyStore()
	require.NoError(t, err)

	registry, _ := newRegistry(t)
	public := trustedKeys.Public()
	registry.Software = &SoftwareStatementVerifier{Keys: &public}

	_, err = registry.Register(context.Background(), &Request{
		RedirectURIs:      []string{"https://app.example.com/callback"},
		SoftwareStatement: statement,
	})
	require.Error(t, err)

	var regErr *Error
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, ErrorInvalidSoftwareStmt, regErr.Code)
}

func TestSoftwareStatementEmbeddedJWKSURI(t *testing.T) {
	keys, err := crypto.NewKeyStore()
	require.NoError(t, err)
	signingKey, err := keys.SigningKey("RS256")
	require.NoError(t, err)

	public := keys.Public()
	jwksServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(public)
	}))
	defer jwksServer.Close()

	statement, err := crypto.Sign(map[string]interface{}{
		"jwks_uri":    jwksServer.URL,
		"software_id": "sw-456",
	}, "RS256", signingKey)
	require.NoError(t, err)

	registry, _ := newRegistry(t)
	registry.Software = &SoftwareStatementVerifier{
		Fetcher: crypto.NewKeyFetcher(2 * time.Second),
	}

	response, err := registry.Register(context.Background(), &Request{
		RedirectURIs:      []string{"https://app.example.com/callback"},
		SoftwareStatement: statement,
	})
	require.NoError(t, err)
	assert.Equal(t, "sw-456", response.Metadata["software_id"])
}

func TestSoftwareStatementWithoutResolvableKeysFails(t *testing.T) {
	keys, err := crypto.NewKeyStore()
	require.NoError(t, err)
	signingKey, err := keys.SigningKey("RS256")
	require.NoError(t, err)

	// No jwks_uri claim, no pinned keys, no configured JWKS.
	statement, err := crypto.Sign(map[string]interface{}{
		"software_id": "sw-789",
	}, "RS256", signingKey)
	require.NoError(t, err)

	registry, _ := newRegistry(t)
	registry.Software = &SoftwareStatementVerifier{
		Fetcher: crypto.NewKeyFetcher(2 * time.Second),
	}

	_, err = registry.Register(context.Background(), &Request{
		RedirectURIs:      []string{"https://app.example.com/callback"},
		SoftwareStatement: statement,
	})
	require.Error(t, err)

	var regErr *Error
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, ErrorInvalidSoftwareStmt, regErr.Code)
}
