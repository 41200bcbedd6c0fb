package token

import (
	// Standard Library Imports
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	// External Imports
	"github.com/google/uuid"
	"github.com/ory/fosite"
	"github.com/pkg/errors"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
	"github.com/p000ic/go-oidc-server/crypto"
	"github.com/p000ic/go-oidc-server/subject"
)

// Lifecycle redeems, refreshes and revokes tokens, serves userinfo, and ends
// sessions. Every mutation funnels through the TokenStore so cascading
// invalidation is synchronously visible to the next read.
type Lifecycle struct {
	Config   *oidc.Config
	Clients  oidc.ClientStore
	Grants   oidc.GrantStore
	Tokens   oidc.TokenStore
	Sessions oidc.SessionStore
	Users    oidc.UserStorer
	Subjects *subject.Resolver
	IDTokens *IDTokenIssuer
	Auth     *ClientAuthenticator
}

// Response is a token endpoint success body.
type Response struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Exchange handles a token endpoint request end to end: client
// authentication, grant dispatch, token issuance.
func (l *Lifecycle) Exchange(ctx context.Context, r *http.Request) (*Response, error) {
	if err := r.ParseForm(); err != nil {
		return nil, fosite.ErrInvalidRequest.WithHint("The request body could not be parsed.")
	}

	client, err := l.Auth.Authenticate(ctx, r)
	if err != nil {
		return nil, err
	}

	switch grantType := r.PostFormValue("grant_type"); grantType {
	case oidc.GrantTypeAuthorizationCode:
		return l.redeem(ctx, client,
			r.PostFormValue("code"),
			r.PostFormValue("redirect_uri"),
			r.PostFormValue("code_verifier"),
		)
	case oidc.GrantTypeRefreshToken:
		return l.refresh(ctx, client,
			r.PostFormValue("refresh_token"),
			r.PostFormValue("scope"),
		)
	default:
		return nil, fosite.ErrUnsupportedGrantType.WithHintf("Grant type %q is not supported.", grantType)
	}
}

// redeem exchanges an authorization code for tokens. A replayed code revokes
// everything the first redemption issued.
func (l *Lifecycle) redeem(ctx context.Context, client oidc.Client, code, redirectURI, codeVerifier string) (*Response, error) {
	if code == "" {
		return nil, fosite.ErrInvalidRequest.WithHint("The code parameter is missing.")
	}
	if !client.GetGrantTypes().Has(oidc.GrantTypeAuthorizationCode) {
		return nil, fosite.ErrUnauthorizedClient.WithHint("The client may not use the authorization_code grant.")
	}

	signature := SignatureOf(code)
	stored, err := l.Tokens.ConsumeAuthorizationCode(ctx, signature)
	switch {
	case errors.Is(err, oidc.ErrCodeAlreadyUsed):
		// Containment: the first redemption's tokens all become unusable.
		if revokeErr := l.Tokens.RevokeByCodeSignature(ctx, signature); revokeErr != nil {
			return nil, errors.Wrap(revokeErr, "revoking replayed code lineage")
		}
		return nil, fosite.ErrInvalidGrant.WithHint("The authorization code has already been used.")
	case errors.Is(err, oidc.ErrNotFound):
		return nil, fosite.ErrInvalidGrant.WithHint("The authorization code is unknown.")
	case err != nil:
		return nil, errors.Wrap(err, "consuming authorization code")
	}

	if stored.ClientID != client.ID {
		return nil, fosite.ErrInvalidGrant.WithHint("The authorization code was issued to another client.")
	}
	if stored.IsExpired(time.Now()) {
		return nil, fosite.ErrInvalidGrant.WithHint("The authorization code has expired.")
	}
	if stored.RedirectURI != redirectURI {
		return nil, fosite.ErrInvalidGrant.WithHint("The redirect_uri does not match the authorization request.")
	}
	if err := verifyPKCE(stored, codeVerifier); err != nil {
		return nil, err
	}

	issuance := issuanceContext{
		grantID:       stored.GrantID,
		issuanceID:    uuid.NewString(),
		codeSignature: signature,
		clientID:      client.ID,
		userID:        stored.UserID,
		sessionID:     stored.SessionID,
		scopes:        stored.RequestedScopes,
	}

	response, err := l.issue(ctx, client, issuance)
	if err != nil {
		return nil, err
	}

	if contains(stored.RequestedScopes, "openid") {
		idToken, err := l.mintIDToken(ctx, client, issuance, stored.Nonce, stored.ClaimRequests, response.AccessToken, "")
		if err != nil {
			return nil, err
		}
		response.IDToken = idToken
	}
	return response, nil
}

// refresh exchanges a refresh token for a new access token, rotating the
// refresh token when policy says so.
func (l *Lifecycle) refresh(ctx context.Context, client oidc.Client, refreshToken, scope string) (*Response, error) {
	if refreshToken == "" {
		return nil, fosite.ErrInvalidRequest.WithHint("The refresh_token parameter is missing.")
	}
	if !client.GetGrantTypes().Has(oidc.GrantTypeRefreshToken) {
		return nil, fosite.ErrUnauthorizedClient.WithHint("The client may not use the refresh_token grant.")
	}

	signature := SignatureOf(refreshToken)
	stored, err := l.Tokens.GetRefreshToken(ctx, signature)
	if err != nil {
		return nil, fosite.ErrInvalidGrant.WithHint("The refresh token is unknown.")
	}
	if stored.ClientID != client.ID {
		return nil, fosite.ErrInvalidGrant.WithHint("The refresh token was issued to another client.")
	}
	if !stored.IsUsable(time.Now()) {
		return nil, fosite.ErrInvalidGrant.WithHint("The refresh token is no longer active.")
	}

	scopes := stored.Scopes
	if scope != "" {
		requested := strings.Fields(scope)
		for _, s := range requested {
			if !contains(stored.Scopes, s) {
				return nil, fosite.ErrInvalidScope.WithHintf("Scope %q exceeds the original grant.", s)
			}
		}
		scopes = requested
	}

	issuance := issuanceContext{
		grantID:       stored.GrantID,
		issuanceID:    uuid.NewString(),
		codeSignature: stored.CodeSignature,
		clientID:      client.ID,
		userID:        stored.UserID,
		sessionID:     stored.SessionID,
		scopes:        scopes,
	}

	accessValue, accessSignature, err := NewOpaque()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if _, err := l.Tokens.CreateAccessToken(ctx, issuance.token(accessSignature, now, l.Config.AccessTokenLifespan)); err != nil {
		return nil, errors.Wrap(err, "persisting access token")
	}

	response := &Response{
		AccessToken: accessValue,
		TokenType:   "bearer",
		ExpiresIn:   int64(l.Config.AccessTokenLifespan.Seconds()),
		Scope:       strings.Join(scopes, " "),
	}

	if l.Config.RotateRefreshTokens {
		refreshValue, refreshSignature, err := NewOpaque()
		if err != nil {
			return nil, err
		}
		replacement := issuance.token(refreshSignature, now, l.Config.RefreshTokenLifespan)
		if _, err := l.Tokens.RotateRefreshToken(ctx, signature, replacement); err != nil {
			// A lost rotation race must not leave the already persisted
			// access token redeemable.
			if revokeErr := l.Tokens.RevokeAccessToken(ctx, accessSignature); revokeErr != nil {
				return nil, errors.Wrap(revokeErr, "revoking access token after failed rotation")
			}
			return nil, fosite.ErrInvalidGrant.WithHint("The refresh token is no longer active.")
		}
		response.RefreshToken = refreshValue
	}

	if contains(scopes, "openid") {
		idToken, err := l.mintIDToken(ctx, client, issuance, "", "", response.AccessToken, "")
		if err != nil {
			return nil, err
		}
		response.IDToken = idToken
	}
	return response, nil
}

// Revoke implements RFC 7009. Unknown and already-revoked tokens succeed so
// the endpoint cannot be used to probe for live tokens.
func (l *Lifecycle) Revoke(ctx context.Context, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return fosite.ErrInvalidRequest.WithHint("The request body could not be parsed.")
	}

	client, err := l.Auth.Authenticate(ctx, r)
	if err != nil {
		return err
	}

	value := r.PostFormValue("token")
	if value == "" {
		return fosite.ErrInvalidRequest.WithHint("The token parameter is missing.")
	}

	signature := SignatureOf(value)
	order := []string{"refresh_token", "access_token"}
	if r.PostFormValue("token_type_hint") == "access_token" {
		order = []string{"access_token", "refresh_token"}
	}

	for _, kind := range order {
		switch kind {
		case "refresh_token":
			stored, err := l.Tokens.GetRefreshToken(ctx, signature)
			if err != nil {
				continue
			}
			if stored.ClientID != client.ID {
				return nil
			}
			// Revoking a refresh token takes the whole grant lineage with it.
			return l.Tokens.RevokeByGrantID(ctx, stored.GrantID)

		case "access_token":
			stored, err := l.Tokens.GetAccessToken(ctx, signature)
			if err != nil {
				continue
			}
			if stored.ClientID != client.ID {
				return nil
			}
			// An access token takes its issuance siblings, including the
			// refresh token minted beside it.
			return l.Tokens.RevokeByIssuanceID(ctx, stored.IssuanceID)
		}
	}
	return nil
}

// UserinfoResponse carries userinfo output: plain claims, or a signed JWT
// when the client registered userinfo_signed_response_alg.
type UserinfoResponse struct {
	Claims map[string]interface{}
	JWT    string
}

// Userinfo resolves the claims released to the bearer of an access token.
func (l *Lifecycle) Userinfo(ctx context.Context, accessToken string) (*UserinfoResponse, error) {
	if accessToken == "" {
		return nil, fosite.ErrRequestUnauthorized.WithHint("An access token is required.")
	}

	stored, err := l.Tokens.GetAccessToken(ctx, SignatureOf(accessToken))
	if err != nil || !stored.IsUsable(time.Now()) {
		return nil, fosite.ErrRequestUnauthorized.WithHint("The access token is not active.")
	}
	if stored.GrantID != "" {
		grant, err := l.Grants.Get(ctx, stored.GrantID)
		if err != nil || !grant.Active {
			return nil, fosite.ErrRequestUnauthorized.WithHint("The underlying grant is no longer active.")
		}
	}

	client, err := l.Clients.Get(ctx, stored.ClientID)
	if err != nil {
		return nil, fosite.ErrRequestUnauthorized.WithHint("The token's client is unknown.")
	}
	user, err := l.Users.Get(ctx, stored.UserID)
	if err != nil {
		return nil, fosite.ErrRequestUnauthorized.WithHint("The token's user is unknown.")
	}
	sub, err := l.Subjects.Resolve(ctx, client, user.ID)
	if err != nil {
		return nil, errors.Wrap(err, "resolving subject")
	}

	claims := map[string]interface{}{"sub": sub}
	releaseScopeClaims(claims, user, stored.Scopes)

	if client.UserinfoSignedResponseAlg == "" {
		return &UserinfoResponse{Claims: claims}, nil
	}

	claims["iss"] = l.Config.Issuer
	claims["aud"] = client.ID
	alg := client.UserinfoSignedResponseAlg
	var signed string
	if crypto.IsSymmetric(alg) {
		signed, err = crypto.SignWithSecret(claims, alg, client.JOSESecret)
	} else {
		key, keyErr := l.IDTokens.Keys.SigningKey(alg)
		if keyErr != nil {
			return nil, keyErr
		}
		signed, err = crypto.Sign(claims, alg, key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "signing userinfo")
	}
	return &UserinfoResponse{Claims: claims, JWT: signed}, nil
}

// EndSessionResult carries the outcome of an end-session request.
type EndSessionResult struct {
	// RedirectURI is the validated post-logout destination, empty when none
	// was requested or it failed validation.
	RedirectURI string
	// FrontchannelLogoutURIs lists the relying-party logout calls the user
	// agent should perform, one per participating client that registered one.
	FrontchannelLogoutURIs []string
}

// EndSession validates the ID token hint, invalidates the session it names
// and revokes every grant approved within it, then fans logout out to the
// session's relying parties.
func (l *Lifecycle) EndSession(ctx context.Context, idTokenHint, postLogoutRedirectURI, state string) (*EndSessionResult, error) {
	if idTokenHint == "" {
		return nil, fosite.ErrInvalidRequest.WithHint("An id_token_hint is required.")
	}

	public := l.IDTokens.Keys.Public()
	claims, err := crypto.Verify(idTokenHint, &public)
	if err != nil {
		return nil, fosite.ErrInvalidRequest.WithHint("The id_token_hint could not be verified.")
	}
	if iss, _ := claims["iss"].(string); iss != l.Config.Issuer {
		return nil, fosite.ErrInvalidRequest.WithHint("The id_token_hint was issued by another server.")
	}

	sessionID, _ := claims["sid"].(string)
	if sessionID == "" {
		return nil, fosite.ErrInvalidRequest.WithHint("The id_token_hint carries no session.")
	}
	session, err := l.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fosite.ErrInvalidRequest.WithHint("The session is unknown.")
	}

	result := &EndSessionResult{}
	hintClientID, _ := claims["aud"].(string)
	if postLogoutRedirectURI != "" && hintClientID != "" {
		client, err := l.Clients.Get(ctx, hintClientID)
		if err == nil && contains(client.PostLogoutRedirectURIs, postLogoutRedirectURI) {
			redirect := postLogoutRedirectURI
			if state != "" {
				separator := "?"
				if strings.Contains(redirect, "?") {
					separator = "&"
				}
				redirect += separator + "state=" + state
			}
			result.RedirectURI = redirect
		}
	}

	for _, clientID := range session.ClientIDs {
		client, err := l.Clients.Get(ctx, clientID)
		if err != nil || client.FrontchannelLogoutURI == "" {
			continue
		}
		logout := client.FrontchannelLogoutURI
		separator := "?"
		if strings.Contains(logout, "?") {
			separator = "&"
		}
		logout += separator + "iss=" + l.Config.Issuer + "&sid=" + sessionID
		result.FrontchannelLogoutURIs = append(result.FrontchannelLogoutURIs, logout)

		if grant, err := l.Grants.GetByClientUserSession(ctx, clientID, session.UserID, sessionID); err == nil {
			if err := l.Grants.Deactivate(ctx, grant.ID); err != nil {
				return nil, errors.Wrap(err, "deactivating grant")
			}
			if err := l.Tokens.RevokeByGrantID(ctx, grant.ID); err != nil {
				return nil, errors.Wrap(err, "revoking grant tokens")
			}
		}
	}

	if err := l.Sessions.End(ctx, sessionID); err != nil {
		return nil, errors.Wrap(err, "ending session")
	}
	return result, nil
}

// issuanceContext carries the lineage identifiers shared by every token of a
// single issuance event.
type issuanceContext struct {
	grantID       string
	issuanceID    string
	codeSignature string
	clientID      string
	userID        string
	sessionID     string
	scopes        []string
}

func (i issuanceContext) token(signature string, now time.Time, lifespan time.Duration) oidc.Token {
	expiry := int64(0)
	if lifespan > 0 {
		expiry = now.Add(lifespan).Unix()
	}
	return oidc.Token{
		ID:            uuid.NewString(),
		Signature:     signature,
		GrantID:       i.grantID,
		IssuanceID:    i.issuanceID,
		CodeSignature: i.codeSignature,
		ClientID:      i.clientID,
		UserID:        i.userID,
		SessionID:     i.sessionID,
		Scopes:        i.scopes,
		CreateTime:    now.Unix(),
		ExpireTime:    expiry,
		Active:        true,
	}
}

// issue mints the access token, and a refresh token when the client may use
// the refresh_token grant.
func (l *Lifecycle) issue(ctx context.Context, client oidc.Client, issuance issuanceContext) (*Response, error) {
	now := time.Now()

	accessValue, accessSignature, err := NewOpaque()
	if err != nil {
		return nil, err
	}
	if _, err := l.Tokens.CreateAccessToken(ctx, issuance.token(accessSignature, now, l.Config.AccessTokenLifespan)); err != nil {
		return nil, errors.Wrap(err, "persisting access token")
	}

	response := &Response{
		AccessToken: accessValue,
		TokenType:   "bearer",
		ExpiresIn:   int64(l.Config.AccessTokenLifespan.Seconds()),
		Scope:       strings.Join(issuance.scopes, " "),
	}

	if client.GetGrantTypes().Has(oidc.GrantTypeRefreshToken) {
		refreshValue, refreshSignature, err := NewOpaque()
		if err != nil {
			return nil, err
		}
		if _, err := l.Tokens.CreateRefreshToken(ctx, issuance.token(refreshSignature, now, l.Config.RefreshTokenLifespan)); err != nil {
			return nil, errors.Wrap(err, "persisting refresh token")
		}
		response.RefreshToken = refreshValue
	}
	return response, nil
}

// mintIDToken builds the ID token for an issuance, honoring any essential
// claim requests carried over from the authorization request.
func (l *Lifecycle) mintIDToken(ctx context.Context, client oidc.Client, issuance issuanceContext, nonce, claimRequests, accessToken, code string) (string, error) {
	sub, err := l.Subjects.Resolve(ctx, client, issuance.userID)
	if err != nil {
		return "", errors.Wrap(err, "resolving subject")
	}

	var authTime int64
	if issuance.sessionID != "" {
		if session, err := l.Sessions.Get(ctx, issuance.sessionID); err == nil {
			authTime = session.AuthTime
		}
	}

	extra := map[string]interface{}{}
	if claimRequests != "" {
		user, err := l.Users.Get(ctx, issuance.userID)
		if err == nil {
			applyClaimRequests(extra, claimRequests, user)
		}
	}

	return l.IDTokens.Mint(ctx, client, IDTokenParams{
		Subject:     sub,
		Nonce:       nonce,
		AuthTime:    authTime,
		SessionID:   issuance.sessionID,
		AccessToken: accessToken,
		Code:        code,
		Extra:       extra,
	})
}

// verifyPKCE checks the code verifier against the challenge stored with the
// code, when the authorization request carried one.
func verifyPKCE(code oidc.AuthorizationCode, verifier string) error {
	if code.CodeChallenge == "" {
		return nil
	}
	if verifier == "" {
		return fosite.ErrInvalidGrant.WithHint("The code_verifier parameter is missing.")
	}

	switch code.CodeChallengeMethod {
	case "", "plain":
		if subtle.ConstantTimeCompare([]byte(verifier), []byte(code.CodeChallenge)) != 1 {
			return fosite.ErrInvalidGrant.WithHint("The code_verifier does not match.")
		}
	case "S256":
		sum := sha256.Sum256([]byte(verifier))
		computed := base64.RawURLEncoding.EncodeToString(sum[:])
		if subtle.ConstantTimeCompare([]byte(computed), []byte(code.CodeChallenge)) != 1 {
			return fosite.ErrInvalidGrant.WithHint("The code_verifier does not match.")
		}
	default:
		return fosite.ErrInvalidGrant.WithHintf("Code challenge method %q is not supported.", code.CodeChallengeMethod)
	}
	return nil
}

// releaseScopeClaims copies the profile claims each granted scope unlocks.
func releaseScopeClaims(claims map[string]interface{}, user oidc.User, scopes []string) {
	for _, scope := range scopes {
		switch scope {
		case "profile":
			if user.Name != "" {
				claims["name"] = user.Name
			}
			if user.GivenName != "" {
				claims["given_name"] = user.GivenName
			}
			if user.FamilyName != "" {
				claims["family_name"] = user.FamilyName
			}
		case "email":
			if user.Email != "" {
				claims["email"] = user.Email
				claims["email_verified"] = user.EmailVerified
			}
		case "address":
			if user.Address != "" {
				claims["address"] = user.Address
			}
		case "phone":
			if user.PhoneNumber != "" {
				claims["phone_number"] = user.PhoneNumber
			}
		}
	}
}

// applyClaimRequests satisfies essential id_token claim requests from the
// user's profile.
func applyClaimRequests(into map[string]interface{}, claimRequests string, user oidc.User) {
	var parsed struct {
		IDToken map[string]json.RawMessage `json:"id_token"`
	}
	if err := json.Unmarshal([]byte(claimRequests), &parsed); err != nil {
		return
	}

	available := map[string]interface{}{}
	releaseScopeClaims(available, user, []string{"profile", "email", "address", "phone"})
	for name := range parsed.IDToken {
		if value, ok := available[name]; ok {
			into[name] = value
		}
	}
}

func contains(haystack []string, needle string) bool {
	for _, entry := range haystack {
		if entry == needle {
			return true
		}
	}
	return false
}
