package oidc_test

import (
	// Standard Library Imports
	"testing"

	// External Imports
	"github.com/stretchr/testify/assert"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

func TestImpliedGrantTypes(t *testing.T) {
	testcases := []struct {
		name          string
		responseTypes []string
		want          []string
	}{
		{
			name:          "empty set implies the code flow",
			responseTypes: nil,
			want:          []string{oidc.GrantTypeAuthorizationCode, oidc.GrantTypeRefreshToken},
		},
		{
			name:          "code",
			responseTypes: []string{"code"},
			want:          []string{oidc.GrantTypeAuthorizationCode, oidc.GrantTypeRefreshToken},
		},
		{
			name:          "token",
			responseTypes: []string{"token"},
			want:          []string{oidc.GrantTypeImplicit},
		},
		{
			name:          "id_token",
			responseTypes: []string{"id_token"},
			want:          []string{oidc.GrantTypeImplicit},
		},
		{
			name:          "token id_token",
			responseTypes: []string{"token id_token"},
			want:          []string{oidc.GrantTypeImplicit},
		},
		{
			name:          "hybrid",
			responseTypes: []string{"code id_token"},
			want:          []string{oidc.GrantTypeAuthorizationCode, oidc.GrantTypeRefreshToken, oidc.GrantTypeImplicit},
		},
		{
			name:          "full hybrid",
			responseTypes: []string{"code", "code id_token token"},
			want:          []string{oidc.GrantTypeAuthorizationCode, oidc.GrantTypeRefreshToken, oidc.GrantTypeImplicit},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ElementsMatch(t, tc.want, oidc.ImpliedGrantTypes(tc.responseTypes))
		})
	}
}

func TestUnionGrantTypes_IsAdditive(t *testing.T) {
	// Explicit grant types widen, never narrow, the implied set.
	got := oidc.UnionGrantTypes([]string{"client_credentials"}, []string{"code"})
	assert.ElementsMatch(t,
		[]string{"authorization_code", "client_credentials", "refresh_token"},
		got,
	)

	// Supplying a subset of the implied set changes nothing.
	got = oidc.UnionGrantTypes([]string{"authorization_code"}, []string{"code"})
	assert.ElementsMatch(t, []string{"authorization_code", "refresh_token"}, got)
}

func TestDefaultResponseMode(t *testing.T) {
	assert.Equal(t, oidc.ResponseModeQuery, oidc.DefaultResponseMode([]string{"code"}))
	assert.Equal(t, oidc.ResponseModeFragment, oidc.DefaultResponseMode([]string{"token"}))
	assert.Equal(t, oidc.ResponseModeFragment, oidc.DefaultResponseMode([]string{"id_token"}))
	assert.Equal(t, oidc.ResponseModeFragment, oidc.DefaultResponseMode([]string{"code", "id_token"}))
}
