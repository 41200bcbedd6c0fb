package server

import (
	// Standard Library Imports
	"io"
	"net/http"
	"strings"

	// External Imports
	"github.com/go-chi/chi/v5"
	"github.com/ory/fosite"
	"github.com/pkg/errors"

	// Internal Imports
	oidc "github.com/p000ic/go-oidc-server"
	"github.com/p000ic/go-oidc-server/register"
)

// maxRegistrationBodyBytes bounds registration request bodies.
const maxRegistrationBodyBytes = 1 << 20

// handleRegister implements POST /register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRegistrationBodyBytes))
	if err != nil {
		s.writeOAuthError(w, fosite.ErrInvalidRequest.WithHint("The request body could not be read."))
		return
	}

	request, err := register.ParseRequest(body)
	if err != nil {
		s.writeRegistrationError(w, err)
		return
	}

	response, err := s.Registry.Register(r.Context(), request)
	if err != nil {
		s.writeRegistrationError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, response)
}

// handleRegistrationRead implements GET /register/{clientID}.
func (s *Server) handleRegistrationRead(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	registrationToken, ok := bearerToken(r)
	if !ok {
		s.writeRegistrationAuthError(w)
		return
	}

	response, err := s.Registry.Read(r.Context(), clientID, registrationToken)
	if err != nil {
		s.writeRegistrationManagementError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleRegistrationUpdate implements PUT /register/{clientID}.
func (s *Server) handleRegistrationUpdate(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	registrationToken, ok := bearerToken(r)
	if !ok {
		s.writeRegistrationAuthError(w)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRegistrationBodyBytes))
	if err != nil {
		s.writeOAuthError(w, fosite.ErrInvalidRequest.WithHint("The request body could not be read."))
		return
	}

	request, err := register.ParseRequest(body)
	if err != nil {
		s.writeRegistrationError(w, err)
		return
	}

	response, err := s.Registry.Update(r.Context(), clientID, registrationToken, request)
	if err != nil {
		s.writeRegistrationManagementError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleRegistrationDelete implements DELETE /register/{clientID}.
func (s *Server) handleRegistrationDelete(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")
	registrationToken, ok := bearerToken(r)
	if !ok {
		s.writeRegistrationAuthError(w)
		return
	}

	err := s.Registry.Deregister(r.Context(), clientID, registrationToken)
	if err != nil {
		s.writeRegistrationManagementError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleAuthorize implements GET|POST /authorize.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	response := s.Authorizer.Authorize(r.Context(), r)

	err := response.Write(w, r)
	if err != nil {
		s.Log.WithError(err).Error("writing authorization response")
	}
}

// handleToken implements POST /token.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	response, err := s.Lifecycle.Exchange(r.Context(), r)
	if err != nil {
		s.writeOAuthError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleRevoke implements POST /revoke. A successful revocation and an
// unknown token both answer 200 with an empty body.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	err := s.Lifecycle.Revoke(r.Context(), r)
	if err != nil {
		s.writeOAuthError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
}

// handleUserinfo implements GET|POST /userinfo.
func (s *Server) handleUserinfo(w http.ResponseWriter, r *http.Request) {
	accessToken, ok := bearerToken(r)
	if !ok && r.Method == http.MethodPost {
		// RFC 6750 also allows form-encoded delivery.
		if err := r.ParseForm(); err == nil {
			accessToken = r.PostFormValue("access_token")
			ok = accessToken != ""
		}
	}
	if !ok {
		w.Header().Set("WWW-Authenticate", `Bearer realm="userinfo"`)
		s.writeOAuthError(w, fosite.ErrRequestUnauthorized.WithHint("An access token is required."))
		return
	}

	response, err := s.Lifecycle.Userinfo(r.Context(), accessToken)
	if err != nil {
		w.Header().Set("WWW-Authenticate", `Bearer realm="userinfo", error="invalid_token"`)
		s.writeOAuthError(w, err)
		return
	}

	if response.JWT != "" {
		w.Header().Set("Content-Type", "application/jwt")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(response.JWT))
		return
	}

	s.writeJSON(w, http.StatusOK, response.Claims)
}

// handleEndSession implements GET /end_session.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	result, err := s.Lifecycle.EndSession(
		r.Context(),
		query.Get("id_token_hint"),
		query.Get("post_logout_redirect_uri"),
		query.Get("state"),
	)
	if err != nil {
		s.writeOAuthError(w, err)
		return
	}

	// Without relying parties to notify, redirect straight away.
	if len(result.FrontchannelLogoutURIs) == 0 && result.RedirectURI != "" {
		http.Redirect(w, r, result.RedirectURI, http.StatusFound)
		return
	}

	err = writeLogoutPage(w, result.FrontchannelLogoutURIs, result.RedirectURI)
	if err != nil {
		s.Log.WithError(err).Error("writing logout page")
	}
}

// writeRegistrationAuthError answers a registration management request that
// carries no usable bearer credential.
func (s *Server) writeRegistrationAuthError(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="registration"`)
	s.writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": "A registration access token is required.",
	})
}

// writeRegistrationManagementError maps failures on the management URI.
// An unknown client and a wrong token are indistinguishable to the caller.
func (s *Server) writeRegistrationManagementError(w http.ResponseWriter, err error) {
	if errors.Is(err, oidc.ErrNotFound) || errors.Is(err, fosite.ErrAccessDenied) {
		w.Header().Set("WWW-Authenticate", `Bearer realm="registration", error="invalid_token"`)
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":             "invalid_token",
			"error_description": "The registration access token is not valid for this client.",
		})
		return
	}

	s.writeRegistrationError(w, err)
}

// bearerToken extracts an RFC 6750 bearer credential from the Authorization
// header.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
