// Package authorize implements the authorization endpoint: one explicit
// state machine per authorization attempt, from request receipt through
// client validation, user authentication, scope resolution, consent and
// artifact issuance to the final redirect or form post.
package authorize

import (
	// Standard Library Imports
	"net/url"
	"strings"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
)

// Stage tags the state an authorization attempt is in. Every transition
// failure is attributable to the stage it happened in.
type Stage string

// The stages an attempt moves through. Error is terminal and reachable from
// any stage.
const (
	StageReceived          Stage = "RECEIVED"
	StageClientValidated   Stage = "CLIENT_VALIDATED"
	StageUserAuthenticated Stage = "USER_AUTHENTICATED"
	StageScopeResolved     Stage = "SCOPE_RESOLVED"
	StageConsentDecided    Stage = "CONSENT_DECIDED"
	StageArtifactsIssued   Stage = "ARTIFACTS_ISSUED"
	StageResponded         Stage = "RESPONDED"
	StageError             Stage = "ERROR"
)

// Request is one authorization attempt in flight.
type Request struct {
	// Stage is the state machine tag.
	Stage Stage

	// ClientID, RedirectURI and friends are the effective request
	// parameters, after any request object overlay.
	ClientID            string
	RedirectURI         string
	ResponseTypes       []string
	ResponseMode        string
	Scopes              []string
	State               string
	Nonce               string
	Prompt              string
	CodeChallenge       string
	CodeChallengeMethod string
	// ClaimRequests is the raw claims member, from the claims parameter or a
	// request object.
	ClaimRequests string

	// Client is resolved during client validation.
	Client oidc.Client
	// User and Session are resolved during user authentication.
	User    oidc.User
	Session oidc.Session
	// Grant is the approval record the attempt issued artifacts under.
	Grant oidc.AuthorizationGrant
}

// fromParams fills the request fields from an effective parameter set.
func (r *Request) fromParams(params url.Values) {
	r.ClientID = params.Get("client_id")
	r.RedirectURI = params.Get("redirect_uri")
	r.ResponseTypes = oidc.ResponseTypeParts(params.Get("response_type"))
	r.ResponseMode = params.Get("response_mode")
	r.Scopes = strings.Fields(params.Get("scope"))
	r.State = params.Get("state")
	r.Nonce = params.Get("nonce")
	r.Prompt = params.Get("prompt")
	r.CodeChallenge = params.Get("code_challenge")
	r.CodeChallengeMethod = params.Get("code_challenge_method")
	if claims := params.Get("claims"); claims != "" {
		r.ClaimRequests = claims
	}
}

// wantsCode reports whether the response type set includes code.
func (r *Request) wantsCode() bool { return contains(r.ResponseTypes, oidc.ResponseTypeCode) }

// wantsToken reports whether the response type set includes token.
func (r *Request) wantsToken() bool { return contains(r.ResponseTypes, oidc.ResponseTypeToken) }

// wantsIDToken reports whether the response type set includes id_token.
func (r *Request) wantsIDToken() bool { return contains(r.ResponseTypes, oidc.ResponseTypeIDToken) }

func contains(haystack []string, needle string) bool {
	for _, entry := range haystack {
		if entry == needle {
			return true
		}
	}
	return false
}

// intersect returns the requested scopes the client is registered for. A
// client with no registered scope restriction passes requests through.
func intersect(requested, registered []string) []string {
	if len(registered) == 0 {
		return requested
	}
	var out []string
	for _, scope := range requested {
		if contains(registered, scope) {
			out = append(out, scope)
		}
	}
	return out
}
