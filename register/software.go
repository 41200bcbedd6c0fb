package register

import (
	// Standard Library Imports
	"context"

	// External Imports
	"github.com/go-jose/go-jose/v3"

	// Internal Imports
	"github.com/p000ic/go-oidc-server/crypto"
)

// SoftwareStatementVerifier checks software statements against a trusted key
// set. Keys may be pinned directly or fetched from a configured JWKS URI.
// Without either, verification falls back to the statement's own jwks_uri
// claim.
type SoftwareStatementVerifier struct {
	// Keys holds pinned trusted verification keys.
	Keys *jose.JSONWebKeySet
	// JWKSURI, when set, is fetched lazily to supplement pinned keys.
	JWKSURI string
	// Fetcher retrieves remote key sets.
	Fetcher *crypto.KeyFetcher
}

// Verify validates the statement signature and applies its claims over the
// metadata in the request. Statement claims win over self-asserted values.
func (v *SoftwareStatementVerifier) Verify(ctx context.Context, request *Request) error {
	if request.SoftwareStatement == "" {
		return nil
	}

	keys := &jose.JSONWebKeySet{}
	if v.Keys != nil {
		keys.Keys = append(keys.Keys, v.Keys.Keys...)
	}
	if v.JWKSURI != "" && v.Fetcher != nil {
		remote, err := v.Fetcher.FetchJWKS(ctx, v.JWKSURI)
		if err != nil {
			return newError(ErrorInvalidSoftwareStmt, "software_statement",
				"trusted software statement keys are unavailable")
		}
		keys.Keys = append(keys.Keys, remote.Keys...)
	}
	if len(keys.Keys) == 0 {
		embedded, err := v.embeddedKeys(ctx, request.SoftwareStatement)
		if err != nil {
			return err
		}
		keys.Keys = append(keys.Keys, embedded.Keys...)
	}

	claims, err := crypto.Verify(request.SoftwareStatement, keys)
	if err != nil {
		return newError(ErrorInvalidSoftwareStmt, "software_statement",
			"software statement signature verification failed")
	}

	if value, ok := claims["software_id"].(string); ok && value != "" {
		request.SoftwareID = value
	}
	if value, ok := claims["software_version"].(string); ok && value != "" {
		request.SoftwareVersion = value
	}
	if value, ok := claims["client_name"].(string); ok && value != "" {
		request.ClientName = value
	}
	if values := stringClaim(claims, "redirect_uris"); len(values) > 0 {
		request.RedirectURIs = values
	}
	if values := stringClaim(claims, "grant_types"); len(values) > 0 {
		request.GrantTypes = values
	}
	if value, ok := claims["scope"].(string); ok && value != "" {
		request.Scope = value
	}
	return nil
}

// embeddedKeys resolves the statement's jwks_uri claim into a key set. The
// claim is read before signature verification; trust is established by the
// fetched keys actually verifying the statement.
func (v *SoftwareStatementVerifier) embeddedKeys(ctx context.Context, statement string) (*jose.JSONWebKeySet, error) {
	if v.Fetcher == nil {
		return nil, newError(ErrorInvalidSoftwareStmt, "software_statement",
			"no trusted software statement keys configured")
	}

	claims, err := crypto.RawClaims(statement)
	if err != nil {
		return nil, newError(ErrorInvalidSoftwareStmt, "software_statement",
			"software statement is not a well formed JWT")
	}
	uri, ok := claims["jwks_uri"].(string)
	if !ok || uri == "" {
		return nil, newError(ErrorInvalidSoftwareStmt, "software_statement",
			"no trusted software statement keys configured")
	}

	keys, err := v.Fetcher.FetchJWKS(ctx, uri)
	if err != nil {
		return nil, newError(ErrorInvalidSoftwareStmt, "software_statement",
			"software statement keys are unavailable")
	}
	return keys, nil
}

// stringClaim extracts a JSON string array claim.
func stringClaim(claims map[string]interface{}, name string) []string {
	raw, ok := claims[name].([]interface{})
	if !ok {
		return nil
	}
	values := make([]string, 0, len(raw))
	for _, entry := range raw {
		if value, ok := entry.(string); ok {
			values = append(values, value)
		}
	}
	return values
}
