package register

import (
	// Standard Library Imports
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	// External Imports
	"github.com/google/uuid"
	"github.com/pkg/errors"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// Registry drives the dynamic registration lifecycle: create, read, update
// and delete of client records, guarded by per-client registration access
// tokens.
type Registry struct {
	// Clients persists client records.
	Clients oidc.ClientStore
	// Validator checks metadata before any write.
	Validator *Validator
	// Software verifies software statements when presented.
	Software *SoftwareStatementVerifier
	// Issuer is the server's issuer URL, used to build registration client
	// URIs.
	Issuer string
}

// Register validates the request and creates a new client record. The
// response carries the one-time plaintext secret and registration access
// token.
func (r *Registry) Register(ctx context.Context, request *Request) (*Response, error) {
	if r.Software != nil {
		if err := r.Software.Verify(ctx, request); err != nil {
			return nil, err
		}
	}
	if err := r.Validator.Validate(ctx, request); err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	client := clientFromRequest(request)
	client.ID = uuid.NewString()
	client.CreateTime = now
	client.UpdateTime = now

	registrationToken, err := newCredential()
	if err != nil {
		return nil, errors.Wrap(err, "generating registration access token")
	}
	client.RegistrationAccessToken = registrationToken

	var secret string
	if client.TokenEndpointAuthMethod == "none" {
		client.Public = true
	} else {
		secret, err = newCredential()
		if err != nil {
			return nil, errors.Wrap(err, "generating client secret")
		}
		client.Secret = secret
		client.JOSESecret = secret
	}

	created, err := r.Clients.Create(ctx, client)
	if err != nil {
		return nil, errors.Wrap(err, "persisting client registration")
	}

	response := r.response(created)
	response.ClientSecret = secret
	response.RegistrationAccessToken = registrationToken
	return response, nil
}

// Read returns the effective metadata for the client, after verifying the
// registration access token.
func (r *Registry) Read(ctx context.Context, clientID, registrationToken string) (*Response, error) {
	client, err := r.Clients.AuthenticateRegistrationToken(ctx, clientID, registrationToken)
	if err != nil {
		return nil, err
	}
	return r.response(client), nil
}

// Update revalidates the submitted metadata and replaces the registration.
// The client keeps its identifier, secret and registration access token.
func (r *Registry) Update(ctx context.Context, clientID, registrationToken string, request *Request) (*Response, error) {
	existing, err := r.Clients.AuthenticateRegistrationToken(ctx, clientID, registrationToken)
	if err != nil {
		return nil, err
	}

	if r.Software != nil {
		if err := r.Software.Verify(ctx, request); err != nil {
			return nil, err
		}
	}
	if err := r.Validator.Validate(ctx, request); err != nil {
		return nil, err
	}

	client := clientFromRequest(request)
	client.ID = existing.ID
	client.CreateTime = existing.CreateTime
	client.UpdateTime = time.Now().Unix()
	client.Secret = existing.Secret
	client.JOSESecret = existing.JOSESecret
	client.Public = existing.Public
	client.RegistrationAccessToken = existing.RegistrationAccessToken
	client.Trusted = existing.Trusted

	updated, err := r.Clients.Update(ctx, clientID, client)
	if err != nil {
		return nil, errors.Wrap(err, "updating client registration")
	}
	return r.response(updated), nil
}

// Deregister removes the client after verifying the registration access
// token.
func (r *Registry) Deregister(ctx context.Context, clientID, registrationToken string) error {
	if _, err := r.Clients.AuthenticateRegistrationToken(ctx, clientID, registrationToken); err != nil {
		return err
	}
	return r.Clients.Delete(ctx, clientID)
}

func (r *Registry) response(client oidc.Client) *Response {
	metadata := map[string]interface{}{
		"redirect_uris":              client.RedirectURIs,
		"response_types":             client.ResponseTypes,
		"grant_types":                client.GrantTypes,
		"application_type":           client.ApplicationType,
		"token_endpoint_auth_method": client.TokenEndpointAuthMethod,
	}
	if client.Name != "" {
		metadata["client_name"] = client.Name
	}
	if client.SubjectType != "" {
		metadata["subject_type"] = client.SubjectType
	}
	if client.SectorIdentifierURI != "" {
		metadata["sector_identifier_uri"] = client.SectorIdentifierURI
	}
	if len(client.Scopes) > 0 {
		metadata["scope"] = strings.Join(client.Scopes, " ")
	}
	if client.IDTokenSignedResponseAlg != "" {
		metadata["id_token_signed_response_alg"] = client.IDTokenSignedResponseAlg
	}
	if client.IDTokenEncryptedResponseAlg != "" {
		metadata["id_token_encrypted_response_alg"] = client.IDTokenEncryptedResponseAlg
	}
	if client.IDTokenEncryptedResponseEnc != "" {
		metadata["id_token_encrypted_response_enc"] = client.IDTokenEncryptedResponseEnc
	}
	if client.UserinfoSignedResponseAlg != "" {
		metadata["userinfo_signed_response_alg"] = client.UserinfoSignedResponseAlg
	}
	if client.RequestObjectSigningAlg != "" {
		metadata["request_object_signing_alg"] = client.RequestObjectSigningAlg
	}
	if client.RequestObjectEncryptionAlg != "" {
		metadata["request_object_encryption_alg"] = client.RequestObjectEncryptionAlg
	}
	if client.RequestObjectEncryptionEnc != "" {
		metadata["request_object_encryption_enc"] = client.RequestObjectEncryptionEnc
	}
	if client.JSONWebKeysURI != "" {
		metadata["jwks_uri"] = client.JSONWebKeysURI
	}
	if client.SoftwareID != "" {
		metadata["software_id"] = client.SoftwareID
	}
	if client.SoftwareVersion != "" {
		metadata["software_version"] = client.SoftwareVersion
	}
	if client.FrontchannelLogoutURI != "" {
		metadata["frontchannel_logout_uri"] = client.FrontchannelLogoutURI
	}
	if client.BackchannelLogoutURI != "" {
		metadata["backchannel_logout_uri"] = client.BackchannelLogoutURI
	}
	if len(client.PostLogoutRedirectURIs) > 0 {
		metadata["post_logout_redirect_uris"] = client.PostLogoutRedirectURIs
	}
	for locale, value := range client.LocalizedNames {
		metadata["client_name#"+locale] = value
	}
	for locale, value := range client.LocalizedLogoURIs {
		metadata["logo_uri#"+locale] = value
	}
	for locale, value := range client.LocalizedPolicyURIs {
		metadata["policy_uri#"+locale] = value
	}
	for locale, value := range client.LocalizedTosURIs {
		metadata["tos_uri#"+locale] = value
	}

	return &Response{
		ClientID:              client.ID,
		ClientIDIssuedAt:      client.CreateTime,
		RegistrationClientURI: fmt.Sprintf("%s/register/%s", strings.TrimSuffix(r.Issuer, "/"), client.ID),
		Metadata:              metadata,
	}
}

func clientFromRequest(request *Request) oidc.Client {
	var scopes []string
	if request.Scope != "" {
		scopes = strings.Fields(request.Scope)
	}

	return oidc.Client{
		Name:                        request.ClientName,
		ApplicationType:             request.ApplicationType,
		SubjectType:                 request.SubjectType,
		SectorIdentifierURI:         request.SectorIdentifierURI,
		RedirectURIs:                request.RedirectURIs,
		ResponseTypes:               request.ResponseTypes,
		GrantTypes:                  request.GrantTypes,
		Scopes:                      scopes,
		TokenEndpointAuthMethod:     request.TokenEndpointAuthMethod,
		TokenEndpointAuthSigningAlg: request.TokenEndpointAuthAlg,
		IDTokenSignedResponseAlg:    request.IDTokenSignedResponseAlg,
		IDTokenEncryptedResponseAlg: request.IDTokenEncryptedResponseAlg,
		IDTokenEncryptedResponseEnc: request.IDTokenEncryptedResponseEnc,
		UserinfoSignedResponseAlg:   request.UserinfoSignedResponseAlg,
		RequestObjectSigningAlg:     request.RequestObjectSigningAlg,
		RequestObjectEncryptionAlg:  request.RequestObjectEncryptionAlg,
		RequestObjectEncryptionEnc:  request.RequestObjectEncryptionEnc,
		JSONWebKeysURI:              request.JSONWebKeysURI,
		SoftwareID:                  request.SoftwareID,
		SoftwareVersion:             request.SoftwareVersion,
		SoftwareStatement:           request.SoftwareStatement,
		FrontchannelLogoutURI:       request.FrontchannelLogoutURI,
		BackchannelLogoutURI:        request.BackchannelLogoutURI,
		PostLogoutRedirectURIs:      request.PostLogoutRedirectURIs,
		LocalizedNames:              request.LocalizedNames,
		LocalizedLogoURIs:           request.LocalizedLogoURIs,
		LocalizedPolicyURIs:         request.LocalizedPolicyURIs,
		LocalizedTosURIs:            request.LocalizedTosURIs,
	}
}

// newCredential returns a 256 bit url safe random string.
func newCredential() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
