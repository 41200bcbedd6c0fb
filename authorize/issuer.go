package authorize

import (
	// Standard Library Imports
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	// External Imports
	"github.com/google/uuid"
	"github.com/ory/fosite"
	"github.com/pkg/errors"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
	"github.com/p000ic/go-oidc-server/reqobj"
	"github.com/p000ic/go-oidc-server/subject"
	"github.com/p000ic/go-oidc-server/token"
)

// Authenticator is the resource-owner authentication oracle. It inspects the
// inbound request, typically a session cookie, and returns the authenticated
// user and session. A request with no authenticated user returns an error.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (oidc.User, oidc.Session, error)
}

// Consenter is the consent oracle. It is asked only for the scopes that lack
// a prior approval and returns the subset the user approved.
type Consenter interface {
	Consent(ctx context.Context, user oidc.User, client oidc.Client, scopes []string) ([]string, error)
}

// Issuer runs the authorization endpoint state machine.
type Issuer struct {
	Config         *oidc.Config
	Clients        oidc.ClientStore
	Grants         oidc.GrantStore
	Tokens         oidc.TokenStore
	Sessions       oidc.SessionStore
	Subjects       *subject.Resolver
	RequestObjects *reqobj.Processor
	IDTokens       *token.IDTokenIssuer
	Authenticator  Authenticator
	Consenter      Consenter
}

// Authorize processes one authorization attempt. The returned response is
// always writable; failures surface either as a direct error, before a
// redirect URI is trusted, or as error parameters carried in the response
// mode success would have used.
func (i *Issuer) Authorize(ctx context.Context, r *http.Request) *Response {
	request := &Request{Stage: StageReceived}
	params := r.URL.Query()
	request.fromParams(params)

	// Client and redirect URI must check out before anything is delivered by
	// redirect.
	if request.ClientID == "" {
		return directError(fosite.ErrInvalidRequest.WithHint("The client_id parameter is missing."))
	}
	client, err := i.Clients.Get(ctx, request.ClientID)
	if err != nil {
		return directError(fosite.ErrInvalidRequest.WithHint("The client is unknown."))
	}
	if client.Disabled {
		return directError(fosite.ErrUnauthorizedClient.WithHint("The client has been disabled."))
	}
	request.Client = client

	if request.RedirectURI == "" && len(client.RedirectURIs) == 1 {
		request.RedirectURI = client.RedirectURIs[0]
	}
	if !client.HasRedirectURI(request.RedirectURI) {
		return directError(fosite.ErrInvalidRequest.WithHint("The redirect_uri is not registered for this client."))
	}

	// The redirect URI is now trusted; request object failures and later
	// errors ride it.
	result, err := i.RequestObjects.Process(ctx, &client, params)
	if err != nil {
		return i.redirectError(request, fosite.ErrInvalidRequestObject.WithHint("The request object could not be verified."))
	}
	if overlaid := result.Params.Get("client_id"); overlaid != "" && overlaid != client.ID {
		return i.redirectError(request, fosite.ErrInvalidRequestObject.WithHint("The request object names another client."))
	}
	request.fromParams(result.Params)
	request.Client = client
	if result.ClaimRequests != "" {
		request.ClaimRequests = result.ClaimRequests
	}
	if !client.HasRedirectURI(request.RedirectURI) {
		return directError(fosite.ErrInvalidRequest.WithHint("The redirect_uri is not registered for this client."))
	}

	if response := i.validateClient(request); response != nil {
		return response
	}
	request.Stage = StageClientValidated

	user, session, err := i.Authenticator.Authenticate(ctx, r)
	if err != nil || user.IsEmpty() {
		return i.redirectError(request, fosite.ErrLoginRequired.WithHint("No end-user is authenticated."))
	}
	request.User = user
	request.Session = session
	request.Stage = StageUserAuthenticated

	request.Scopes = intersect(request.Scopes, client.Scopes)
	request.Stage = StageScopeResolved

	if response := i.decideConsent(ctx, request); response != nil {
		return response
	}
	request.Stage = StageConsentDecided

	response, err := i.issueArtifacts(ctx, request)
	if err != nil {
		return i.redirectError(request, fosite.ErrServerError.WithHint("Artifact issuance failed."))
	}
	request.Stage = StageResponded
	response.Stage = StageResponded
	return response
}

// validateClient checks the response type set and its parameter coupling
// against the client registration.
func (i *Issuer) validateClient(request *Request) *Response {
	if len(request.ResponseTypes) == 0 {
		return i.redirectError(request, fosite.ErrInvalidRequest.WithHint("The response_type parameter is missing."))
	}

	// Registered compound values are flattened; the requested set must be a
	// subset. A client registered with zero response types is code-only.
	var registered []string
	for _, value := range request.Client.GetResponseTypes() {
		registered = append(registered, oidc.ResponseTypeParts(value)...)
	}
	for _, responseType := range request.ResponseTypes {
		if !contains(registered, responseType) {
			return i.redirectError(request, fosite.ErrUnsupportedResponseType.WithHintf(
				"The client may not request response type %q.", responseType))
		}
	}

	if request.wantsIDToken() && request.Nonce == "" {
		return i.redirectError(request, fosite.ErrInvalidRequest.WithHint(
			"The nonce parameter is required when requesting an id_token."))
	}

	defaultMode := oidc.DefaultResponseMode(request.ResponseTypes)
	switch request.ResponseMode {
	case "":
		request.ResponseMode = defaultMode
	case oidc.ResponseModeQuery:
		// Query delivery would leak tokens into URLs and logs.
		if defaultMode == oidc.ResponseModeFragment {
			return i.redirectError(request, fosite.ErrInvalidRequest.WithHint(
				"Response mode query cannot deliver tokens."))
		}
	case oidc.ResponseModeFragment, oidc.ResponseModeFormPost:
	default:
		return i.redirectError(request, fosite.ErrInvalidRequest.WithHintf(
			"Response mode %q is not supported.", request.ResponseMode))
	}
	return nil
}

// decideConsent reuses a covering grant, skips consent for trusted clients,
// and otherwise consults the consent oracle for exactly the missing scopes.
func (i *Issuer) decideConsent(ctx context.Context, request *Request) *Response {
	grant, err := i.Grants.GetByClientUserSession(ctx,
		request.Client.ID, request.User.ID, request.Session.ID)
	haveGrant := err == nil

	if haveGrant && grant.HasGrantedScopes(request.Scopes) {
		request.Grant = grant
		return nil
	}

	missing := request.Scopes
	if haveGrant {
		missing = grant.MissingScopes(request.Scopes)
	}

	if !request.Client.Trusted {
		if request.Prompt == "none" {
			return i.redirectError(request, fosite.ErrConsentRequired.WithHint(
				"The request needs consent the user has not given."))
		}
		approved, err := i.Consenter.Consent(ctx, request.User, request.Client, missing)
		if err != nil {
			return i.redirectError(request, fosite.ErrAccessDenied.WithHint("The user denied the request."))
		}
		if len(approved) < len(missing) {
			// Partial approval narrows the issued scope set.
			kept := make([]string, 0, len(request.Scopes))
			for _, scope := range request.Scopes {
				if !contains(missing, scope) || contains(approved, scope) {
					kept = append(kept, scope)
				}
			}
			request.Scopes = kept
		}
		missing = approved
	}

	now := time.Now().Unix()
	if haveGrant {
		grant, err = i.Grants.AccreteScopes(ctx, grant.ID, missing)
		if err != nil {
			return i.redirectError(request, fosite.ErrServerError.WithHint("Recording consent failed."))
		}
	} else {
		grant, err = i.Grants.Create(ctx, oidc.AuthorizationGrant{
			ID:            uuid.NewString(),
			ClientID:      request.Client.ID,
			UserID:        request.User.ID,
			SessionID:     request.Session.ID,
			GrantedScopes: request.Scopes,
			CreateTime:    now,
			UpdateTime:    now,
			Active:        true,
		})
		if err != nil {
			return i.redirectError(request, fosite.ErrServerError.WithHint("Recording consent failed."))
		}
	}
	request.Grant = grant
	return nil
}

// issueArtifacts mints the code, access token and ID token the response type
// set asks for and assembles the response parameters.
func (i *Issuer) issueArtifacts(ctx context.Context, request *Request) (*Response, error) {
	request.Stage = StageArtifactsIssued
	now := time.Now()
	params := url.Values{}

	var codeValue, accessValue string

	if request.wantsCode() {
		value, signature, err := token.NewOpaque()
		if err != nil {
			return nil, err
		}
		codeValue = value

		_, err = i.Tokens.CreateAuthorizationCode(ctx, oidc.AuthorizationCode{
			ID:                  uuid.NewString(),
			Signature:           signature,
			GrantID:             request.Grant.ID,
			ClientID:            request.Client.ID,
			UserID:              request.User.ID,
			SessionID:           request.Session.ID,
			RedirectURI:         request.RedirectURI,
			RequestedScopes:     request.Scopes,
			Nonce:               request.Nonce,
			CodeChallenge:       request.CodeChallenge,
			CodeChallengeMethod: request.CodeChallengeMethod,
			ClaimRequests:       request.ClaimRequests,
			CreateTime:          now.Unix(),
			ExpireTime:          now.Add(i.Config.AuthorizationCodeLifespan).Unix(),
		})
		if err != nil {
			return nil, errors.Wrap(err, "persisting authorization code")
		}
		params.Set("code", value)
	}

	if request.wantsToken() {
		value, signature, err := token.NewOpaque()
		if err != nil {
			return nil, err
		}
		accessValue = value

		_, err = i.Tokens.CreateAccessToken(ctx, oidc.Token{
			ID:         uuid.NewString(),
			Signature:  signature,
			GrantID:    request.Grant.ID,
			IssuanceID: uuid.NewString(),
			ClientID:   request.Client.ID,
			UserID:     request.User.ID,
			SessionID:  request.Session.ID,
			Scopes:     request.Scopes,
			CreateTime: now.Unix(),
			ExpireTime: now.Add(i.Config.AccessTokenLifespan).Unix(),
			Active:     true,
		})
		if err != nil {
			return nil, errors.Wrap(err, "persisting access token")
		}
		params.Set("access_token", value)
		params.Set("token_type", "bearer")
		params.Set("expires_in", strconv.FormatInt(int64(i.Config.AccessTokenLifespan.Seconds()), 10))
		params.Set("scope", strings.Join(request.Scopes, " "))
	}

	if request.wantsIDToken() {
		sub, err := i.Subjects.Resolve(ctx, request.Client, request.User.ID)
		if err != nil {
			return nil, errors.Wrap(err, "resolving subject")
		}
		idToken, err := i.IDTokens.Mint(ctx, request.Client, token.IDTokenParams{
			Subject:     sub,
			Nonce:       request.Nonce,
			AuthTime:    request.Session.AuthTime,
			SessionID:   request.Session.ID,
			AccessToken: accessValue,
			Code:        codeValue,
		})
		if err != nil {
			return nil, errors.Wrap(err, "minting id token")
		}
		params.Set("id_token", idToken)
	}

	if request.State != "" {
		params.Set("state", request.State)
	}

	request.Session.AddClient(request.Client.ID)
	if !request.Session.IsEmpty() {
		if _, err := i.Sessions.Update(ctx, request.Session.ID, request.Session); err != nil {
			return nil, errors.Wrap(err, "recording session participant")
		}
	}

	return &Response{
		RedirectURI: request.RedirectURI,
		Mode:        request.ResponseMode,
		Params:      params,
	}, nil
}

// redirectError delivers an error through the response mode success would
// have used, carrying the original state.
func (i *Issuer) redirectError(request *Request, rfcErr *fosite.RFC6749Error) *Response {
	request.Stage = StageError

	mode := request.ResponseMode
	if mode == "" {
		mode = oidc.DefaultResponseMode(request.ResponseTypes)
	}

	params := url.Values{}
	params.Set("error", rfcErr.ErrorField)
	if rfcErr.HintField != "" {
		params.Set("error_description", rfcErr.HintField)
	} else if rfcErr.DescriptionField != "" {
		params.Set("error_description", rfcErr.DescriptionField)
	}
	if request.State != "" {
		params.Set("state", request.State)
	}

	return &Response{
		Stage:       StageError,
		RedirectURI: request.RedirectURI,
		Mode:        mode,
		Params:      params,
	}
}

func directError(rfcErr *fosite.RFC6749Error) *Response {
	return &Response{Stage: StageError, DirectError: rfcErr}
}
