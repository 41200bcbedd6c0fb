package register

import (
	// Standard Library Imports
	"context"
	"fmt"
	"net/url"
	"strings"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
	"github.com/p000ic/go-oidc-server/crypto"
)

var validResponseTypes = map[string]bool{
	"code":                true,
	"token":               true,
	"id_token":            true,
	"id_token token":      true,
	"code id_token":       true,
	"code token":          true,
	"code id_token token": true,
}

var validAuthMethods = map[string]bool{
	"client_secret_basic": true,
	"client_secret_post":  true,
	"client_secret_jwt":   true,
	"private_key_jwt":     true,
	"none":                true,
}

// Validator checks registration metadata against protocol rules before a
// client record is created or updated.
type Validator struct {
	// Sectors verifies explicit sector identifier documents.
	Sectors *SectorVerifier
}

// Validate applies the full metadata rule set in order, returning the first
// failure. On success the request has been normalized in place: response
// types and grant types are defaulted, and the grant type union applied.
func (v *Validator) Validate(ctx context.Context, request *Request) error {
	if err := v.validateRedirectURIs(request); err != nil {
		return err
	}

	if err := v.validateResponseTypes(request); err != nil {
		return err
	}

	if err := v.validateSubjectType(ctx, request); err != nil {
		return err
	}

	if err := v.validateAlgorithms(request); err != nil {
		return err
	}

	if err := v.validateAuthMethod(request); err != nil {
		return err
	}

	if err := v.validateLogoutURIs(request); err != nil {
		return err
	}

	request.GrantTypes = oidc.UnionGrantTypes(request.GrantTypes, request.ResponseTypes)
	return nil
}

func (v *Validator) validateRedirectURIs(request *Request) error {
	if len(request.RedirectURIs) == 0 {
		return newError(ErrorInvalidRedirectURI, "redirect_uris",
			"at least one redirect URI is required")
	}

	applicationType := request.ApplicationType
	if applicationType == "" {
		applicationType = oidc.ApplicationTypeWeb
	}
	if applicationType != oidc.ApplicationTypeWeb && applicationType != oidc.ApplicationTypeNative {
		return newError(ErrorInvalidClientMetadata, "application_type",
			fmt.Sprintf("unknown application type %q", applicationType))
	}
	request.ApplicationType = applicationType

	for _, redirectURI := range request.RedirectURIs {
		parsed, err := url.Parse(redirectURI)
		if err != nil || !parsed.IsAbs() {
			return newError(ErrorInvalidRedirectURI, "redirect_uris",
				fmt.Sprintf("%q is not an absolute URI", redirectURI))
		}
		if parsed.Fragment != "" {
			return newError(ErrorInvalidRedirectURI, "redirect_uris",
				fmt.Sprintf("%q must not contain a fragment", redirectURI))
		}

		if applicationType == oidc.ApplicationTypeNative {
			// Native clients use custom schemes or plain-http loopback.
			if parsed.Scheme == "https" {
				return newError(ErrorInvalidRedirectURI, "redirect_uris",
					fmt.Sprintf("native clients must not register https URI %q", redirectURI))
			}
			if parsed.Scheme == "http" && !isLoopback(parsed) {
				return newError(ErrorInvalidRedirectURI, "redirect_uris",
					fmt.Sprintf("http URI %q is only allowed on the loopback interface", redirectURI))
			}
			continue
		}

		// Web clients require https, with a loopback exemption for local
		// development when explicitly requested.
		if parsed.Scheme == "https" {
			continue
		}
		if parsed.Scheme == "http" && isLoopback(parsed) && request.AllowLocalhostRedirects {
			continue
		}
		return newError(ErrorInvalidRedirectURI, "redirect_uris",
			fmt.Sprintf("web clients must register https URIs, got %q", redirectURI))
	}

	return nil
}

func isLoopback(u *url.URL) bool {
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

func (v *Validator) validateResponseTypes(request *Request) error {
	if len(request.ResponseTypes) == 0 {
		request.ResponseTypes = []string{oidc.ResponseTypeCode}
		return nil
	}

	for _, responseType := range request.ResponseTypes {
		if !validResponseTypes[canonicalResponseType(responseType)] {
			return newError(ErrorInvalidClientMetadata, "response_types",
				fmt.Sprintf("unknown response type %q", responseType))
		}
	}
	return nil
}

// canonicalResponseType sorts a space delimited compound value into the
// canonical ordering used by the registry.
func canonicalResponseType(responseType string) string {
	parts := oidc.ResponseTypeParts(responseType)
	ordered := make([]string, 0, 3)
	for _, want := range []string{"code", "id_token", "token"} {
		for _, part := range parts {
			if part == want {
				ordered = append(ordered, part)
			}
		}
	}
	if len(ordered) != len(parts) {
		return responseType
	}
	return strings.Join(ordered, " ")
}

func (v *Validator) validateSubjectType(ctx context.Context, request *Request) error {
	switch request.SubjectType {
	case "", oidc.SubjectTypePublic:
		return nil

	case oidc.SubjectTypePairwise:
		if request.SectorIdentifierURI != "" {
			parsed, err := url.Parse(request.SectorIdentifierURI)
			if err != nil || parsed.Scheme != "https" {
				return newError(ErrorInvalidClientMetadata, "sector_identifier_uri",
					"sector identifier URI must use the https scheme")
			}
			if v.Sectors == nil {
				return newError(ErrorInvalidClientMetadata, "sector_identifier_uri",
					"sector identifier verification is not available")
			}
			return v.Sectors.Verify(ctx, request.SectorIdentifierURI, request.RedirectURIs)
		}

		// Without an explicit sector document every redirect URI must share
		// a single host for the sector to be derivable.
		hosts := map[string]bool{}
		for _, redirectURI := range request.RedirectURIs {
			parsed, err := url.Parse(redirectURI)
			if err != nil {
				return newError(ErrorInvalidRedirectURI, "redirect_uris",
					fmt.Sprintf("%q is not a valid URI", redirectURI))
			}
			hosts[parsed.Hostname()] = true
		}
		if len(hosts) > 1 {
			return newError(ErrorInvalidClientMetadata, "subject_type",
				"pairwise clients with redirect URIs on multiple hosts must register a sector_identifier_uri")
		}
		return nil

	default:
		return newError(ErrorInvalidClientMetadata, "subject_type",
			fmt.Sprintf("unknown subject type %q", request.SubjectType))
	}
}

func (v *Validator) validateAlgorithms(request *Request) error {
	if request.IDTokenSignedResponseAlg == crypto.AlgNone {
		return newError(ErrorInvalidClientMetadata, "id_token_signed_response_alg",
			"ID tokens must be signed")
	}

	signingFields := map[string]string{
		"id_token_signed_response_alg":    request.IDTokenSignedResponseAlg,
		"userinfo_signed_response_alg":    request.UserinfoSignedResponseAlg,
		"token_endpoint_auth_signing_alg": request.TokenEndpointAuthAlg,
	}
	for field, alg := range signingFields {
		if alg == "" || alg == crypto.AlgNone {
			continue
		}
		if !crypto.CanSign(alg) {
			return newError(ErrorInvalidClientMetadata, field,
				fmt.Sprintf("unsupported signing algorithm %q", alg))
		}
	}

	if alg := request.RequestObjectSigningAlg; alg != "" && alg != crypto.AlgNone {
		if !crypto.CanVerify(alg) {
			return newError(ErrorInvalidClientMetadata, "request_object_signing_alg",
				fmt.Sprintf("unsupported signing algorithm %q", alg))
		}
	}

	encryptionFields := map[string]string{
		"id_token_encrypted_response_alg": request.IDTokenEncryptedResponseAlg,
		"request_object_encryption_alg":   request.RequestObjectEncryptionAlg,
	}
	for field, alg := range encryptionFields {
		if alg == "" {
			continue
		}
		if !crypto.CanEncrypt(alg) {
			return newError(ErrorInvalidClientMetadata, field,
				fmt.Sprintf("unsupported encryption algorithm %q", alg))
		}
	}

	// An encryption content type without a key algorithm is meaningless.
	if request.IDTokenEncryptedResponseEnc != "" && request.IDTokenEncryptedResponseAlg == "" {
		return newError(ErrorInvalidClientMetadata, "id_token_encrypted_response_enc",
			"id_token_encrypted_response_alg must also be provided")
	}
	if request.RequestObjectEncryptionEnc != "" && request.RequestObjectEncryptionAlg == "" {
		return newError(ErrorInvalidClientMetadata, "request_object_encryption_enc",
			"request_object_encryption_alg must also be provided")
	}

	return nil
}

func (v *Validator) validateAuthMethod(request *Request) error {
	if request.TokenEndpointAuthMethod == "" {
		request.TokenEndpointAuthMethod = "client_secret_basic"
		return nil
	}
	if !validAuthMethods[request.TokenEndpointAuthMethod] {
		return newError(ErrorInvalidClientMetadata, "token_endpoint_auth_method",
			fmt.Sprintf("unknown token endpoint auth method %q", request.TokenEndpointAuthMethod))
	}
	return nil
}

func (v *Validator) validateLogoutURIs(request *Request) error {
	for field, value := range map[string]string{
		"frontchannel_logout_uri": request.FrontchannelLogoutURI,
		"backchannel_logout_uri":  request.BackchannelLogoutURI,
	} {
		if value == "" {
			continue
		}
		parsed, err := url.Parse(value)
		if err != nil || !parsed.IsAbs() {
			return newError(ErrorInvalidClientMetadata, field,
				fmt.Sprintf("%q is not an absolute URI", value))
		}
	}
	return nil
}
