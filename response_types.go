package oidc

import (
	// Standard Library Imports
	"sort"
	"strings"
)

// OAuth 2.0 / OpenID Connect response types.
const (
	ResponseTypeCode    = "code"
	ResponseTypeToken   = "token"
	ResponseTypeIDToken = "id_token"
)

// OAuth 2.0 grant types.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeImplicit          = "implicit"
)

// Response modes an authorization response can be delivered through.
const (
	ResponseModeQuery    = "query"
	ResponseModeFragment = "fragment"
	ResponseModeFormPost = "form_post"
)

// ImpliedGrantTypes maps a set of response types to the minimal grant type
// set a client needs in order to use them. An empty response type set is
// treated as code-only. Both registration and runtime authorization rely on
// this table; explicitly supplied grant types are unioned in, never used to
// narrow the result.
func ImpliedGrantTypes(responseTypes []string) []string {
	var code, implicit bool
	for _, responseType := range responseTypes {
		// Multi-valued response types arrive space delimited, for example
		// "code id_token".
		for _, part := range strings.Fields(responseType) {
			switch part {
			case ResponseTypeCode:
				code = true
			case ResponseTypeToken, ResponseTypeIDToken:
				implicit = true
			}
		}
	}
	if !code && !implicit {
		code = true
	}

	var grantTypes []string
	if code {
		grantTypes = append(grantTypes, GrantTypeAuthorizationCode, GrantTypeRefreshToken)
	}
	if implicit {
		grantTypes = append(grantTypes, GrantTypeImplicit)
	}
	return grantTypes
}

// UnionGrantTypes merges explicitly requested grant types with the set the
// response types imply, returning a sorted, de-duplicated set.
func UnionGrantTypes(requested []string, responseTypes []string) []string {
	set := map[string]struct{}{}
	for _, grantType := range ImpliedGrantTypes(responseTypes) {
		set[grantType] = struct{}{}
	}
	for _, grantType := range requested {
		if grantType != "" {
			set[grantType] = struct{}{}
		}
	}

	union := make([]string, 0, len(set))
	for grantType := range set {
		union = append(union, grantType)
	}
	sort.Strings(union)
	return union
}

// ResponseTypeParts splits a possibly multi-valued response type parameter
// into its individual values.
func ResponseTypeParts(responseType string) []string {
	return strings.Fields(responseType)
}

// DefaultResponseMode returns the response mode used when the authorization
// request does not name one: query for code-only flows, fragment as soon as
// a token or id_token is returned from the authorization endpoint.
func DefaultResponseMode(responseTypeParts []string) string {
	for _, part := range responseTypeParts {
		if part == ResponseTypeToken || part == ResponseTypeIDToken {
			return ResponseModeFragment
		}
	}
	return ResponseModeQuery
}
