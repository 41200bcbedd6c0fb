// Package server exposes the protocol engine over HTTP: dynamic client
// registration, authorization, token, revocation, userinfo, end-session,
// discovery and JWKS endpoints.
package server

import (
	// Standard Library Imports
	"encoding/json"
	"net/http"
	"time"

	// External Imports
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/ory/fosite"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
	"github.com/p000ic/go-oidc-server/authorize"
	"github.com/p000ic/go-oidc-server/crypto"
	"github.com/p000ic/go-oidc-server/register"
	"github.com/p000ic/go-oidc-server/reqobj"
	"github.com/p000ic/go-oidc-server/subject"
	"github.com/p000ic/go-oidc-server/token"
)

// Stores bundles the storage interfaces the server consumes. Both the memory
// and the mongo backends satisfy it.
type Stores struct {
	Clients  oidc.ClientStore
	Grants   oidc.GrantStore
	Tokens   oidc.TokenStore
	Pairwise oidc.PairwiseStore
	Sessions oidc.SessionStore
	Users    oidc.UserStorer
}

// Server wires the protocol components behind one HTTP handler.
type Server struct {
	Config *oidc.Config
	Log    *logrus.Logger

	Keys       *crypto.KeyStore
	Registry   *register.Registry
	Authorizer *authorize.Issuer
	Lifecycle  *token.Lifecycle
}

// New builds a fully wired server. The authenticator and consenter supply
// the interactive pieces the protocol engine delegates: resolving the
// end-user session and asking for scope approval.
func New(cfg *oidc.Config, stores Stores, keys *crypto.KeyStore, authenticator authorize.Authenticator, consenter authorize.Consenter, log *logrus.Logger) *Server {
	cfg.EnsureDefaults()
	if log == nil {
		log = logrus.New()
	}

	fetcher := crypto.NewKeyFetcher(cfg.OutboundTimeout)
	subjects := subject.NewResolver(cfg, stores.Pairwise)
	idTokens := &token.IDTokenIssuer{
		Issuer:   cfg.Issuer,
		Keys:     keys,
		Fetcher:  fetcher,
		Lifespan: cfg.IDTokenLifespan,
	}

	return &Server{
		Config: cfg,
		Log:    log,
		Keys:   keys,
		Registry: &register.Registry{
			Clients: stores.Clients,
			Validator: &register.Validator{
				Sectors: register.NewSectorVerifier(cfg.OutboundTimeout),
			},
			Software: &register.SoftwareStatementVerifier{
				JWKSURI: cfg.SoftwareStatementJWKSURI,
				Fetcher: fetcher,
			},
			Issuer: cfg.Issuer,
		},
		Authorizer: &authorize.Issuer{
			Config:   cfg,
			Clients:  stores.Clients,
			Grants:   stores.Grants,
			Tokens:   stores.Tokens,
			Sessions: stores.Sessions,
			Subjects: subjects,
			RequestObjects: &reqobj.Processor{
				Keys:          keys,
				Fetcher:       fetcher,
				AllowUnsigned: cfg.AllowUnsignedRequestObjects,
			},
			IDTokens:      idTokens,
			Authenticator: authenticator,
			Consenter:     consenter,
		},
		Lifecycle: &token.Lifecycle{
			Config:   cfg,
			Clients:  stores.Clients,
			Grants:   stores.Grants,
			Tokens:   stores.Tokens,
			Sessions: stores.Sessions,
			Users:    stores.Users,
			Subjects: subjects,
			IDTokens: idTokens,
			Auth: &token.ClientAuthenticator{
				Clients:  stores.Clients,
				Fetcher:  fetcher,
				Audience: cfg.Issuer,
			},
		},
	}
}

// Handler returns the HTTP routes of the authorization server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.requestLogger)

	r.Post("/register", s.handleRegister)
	r.Route("/register/{clientID}", func(r chi.Router) {
		r.Get("/", s.handleRegistrationRead)
		r.Put("/", s.handleRegistrationUpdate)
		r.Delete("/", s.handleRegistrationDelete)
	})

	r.Get("/authorize", s.handleAuthorize)
	r.Post("/authorize", s.handleAuthorize)

	r.Post("/token", s.handleToken)
	r.Post("/revoke", s.handleRevoke)

	r.Get("/userinfo", s.handleUserinfo)
	r.Post("/userinfo", s.handleUserinfo)

	r.Get("/end_session", s.handleEndSession)

	r.Get("/.well-known/openid-configuration", s.handleDiscovery)
	r.Get("/jwks", s.handleJWKS)

	return r
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.Log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		}).Info("request")
	})
}

// writeJSON renders a JSON response body.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		s.Log.WithError(err).Error("writing response body")
	}
}

// writeOAuthError renders an error in RFC 6749 wire format, picking the
// status code the error carries.
func (s *Server) writeOAuthError(w http.ResponseWriter, err error) {
	rfcErr := fosite.ErrorToRFC6749Error(err)

	body := map[string]interface{}{
		"error": rfcErr.ErrorField,
	}
	description := rfcErr.GetDescription()
	if description != "" {
		body["error_description"] = description
	}

	if rfcErr.ErrorField == fosite.ErrInvalidClient.ErrorField {
		w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
	}

	s.writeJSON(w, rfcErr.CodeField, body)
}

// writeRegistrationError renders a dynamic registration error body.
func (s *Server) writeRegistrationError(w http.ResponseWriter, err error) {
	var regErr *register.Error
	if errors.As(err, &regErr) {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             regErr.Code,
			"error_description": regErr.Description,
		})
		return
	}

	s.writeOAuthError(w, err)
}
