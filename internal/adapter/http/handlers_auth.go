// Package adapthttp implements the HTTP adapter for the application.
package adapthttp

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"slices"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"bookstore/internal/domain"
)

// sessionResponse is the browser's view of a session. The bearer token
// never leaves the server.
type sessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	Admin         bool         `json:"admin"`
	User          *domain.User `json:"user,omitempty"`
}

func sessionView(sess domain.Session) sessionResponse {
	return sessionResponse{
		Authenticated: sess.Authenticated(),
		Admin:         sess.Admin(),
		User:          sess.User,
	}
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"sso_enabled":    s.oidcConfig.Enabled,
		"session":        sessionView(v.Session.Current()),
		"paymentMethods": s.checkout.Methods(),
		"categories":     s.settings.VisibleCategories(),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req domain.Credentials
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sess, err := s.auth.Login(r.Context(), visitorFrom(r.Context()), req)
	if err = s.kept(r, err); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(sess))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req domain.Registration
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sess, err := s.auth.Register(r.Context(), visitorFrom(r.Context()), req)
	if err = s.kept(r, err); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionView(sess))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.kept(r, s.auth.Logout(r.Context(), visitorFrom(r.Context()))); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	sess, err := s.auth.Refresh(r.Context(), visitorFrom(r.Context()))
	if err = s.kept(r, err); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(sess))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	v := visitorFrom(r.Context())
	switch r.Method {
	case http.MethodGet:
		u, err := s.auth.Profile(r.Context(), v)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	case http.MethodPut:
		var req domain.ProfileUpdate
		if err := parseJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		u, err := s.auth.UpdateProfile(r.Context(), v, req)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, u)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handlePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req domain.PasswordChange
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.auth.ChangePassword(r.Context(), visitorFrom(r.Context()), req); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSSOLogin(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		http.Error(w, "sso disabled", http.StatusNotFound)
		return
	}
	state := generateState()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil || s.cookie.Secure,
		SameSite: http.SameSiteLaxMode, // Lax required for cross-site redirect returns
		MaxAge:   300,
	})
	http.Redirect(w, r, s.oidcConfig.OAuth2Config.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	if !s.oidcConfig.Enabled {
		http.Error(w, "sso disabled", http.StatusNotFound)
		return
	}

	state, err := r.Cookie("oauth_state")
	if err != nil || r.URL.Query().Get("state") != state.Value {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "oauth_state", MaxAge: -1, Path: "/"})

	logger := loggerFrom(r.Context(), s.logger)
	token, err := s.oidcConfig.OAuth2Config.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		logger.Warn("sso code exchange failed", "error", err)
		http.Error(w, "failed to exchange token", http.StatusInternalServerError)
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		http.Error(w, "no id_token", http.StatusInternalServerError)
		return
	}

	idToken, err := s.oidcConfig.Provider.Verifier(&oidc.Config{ClientID: s.oidcConfig.OAuth2Config.ClientID}).Verify(r.Context(), rawIDToken)
	if err != nil {
		logger.Warn("sso id token rejected", "error", err)
		http.Error(w, "failed to verify token", http.StatusInternalServerError)
		return
	}

	var claims map[string]any
	if err = idToken.Claims(&claims); err != nil {
		http.Error(w, "failed to parse claims", http.StatusInternalServerError)
		return
	}

	user := s.userFromClaims(idToken.Subject, claims)
	bearer := token.AccessToken
	if bearer == "" {
		bearer = rawIDToken
	}
	_, err = s.auth.SignIn(r.Context(), visitorFrom(r.Context()), user, bearer)
	if err = s.kept(r, err); err != nil {
		s.fail(w, r, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// userFromClaims maps ID token claims to a storefront user. Membership of
// the admin role in the roles claim grants admin.
func (s *Server) userFromClaims(subject string, claims map[string]any) domain.User {
	str := func(key string) string {
		v, _ := claims[key].(string)
		return v
	}
	user := domain.User{
		ID:     subject,
		Name:   str("name"),
		Email:  str("email"),
		Role:   "cliente",
		Active: true,
	}
	if user.Name == "" {
		user.Name = str("preferred_username")
	}

	var roles []string
	switch v := claims[s.oidcConfig.RolesClaim].(type) {
	case string:
		roles = strings.Fields(v)
	case []any:
		for _, item := range v {
			if role, ok := item.(string); ok {
				roles = append(roles, role)
			}
		}
	}
	if s.oidcConfig.AdminRole != "" && slices.Contains(roles, s.oidcConfig.AdminRole) {
		user.Role = domain.RoleAdmin
	}
	return user
}

func generateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
