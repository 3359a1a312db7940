package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"mealog/internal/api"
	"mealog/internal/models"
)

func (s *Server) handleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var req api.CredentialsRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	user, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !s.issueSession(w, r, user) {
		return
	}
	s.log().Info("user registered", "user_id", user.ID, "username", user.Username, "role", user.Role)
	s.writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req api.CredentialsRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	now := time.Now().UTC()
	limiterKey := loginAttemptKey(req.Username, r)
	if !s.loginLimiter.Allow(limiterKey, now) {
		s.writeError(w, r, tooManyRequests(fmt.Errorf("too many login attempts; retry later")))
		return
	}

	user, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, errInvalidCredentials) {
			s.loginLimiter.RegisterFailure(limiterKey, now)
			s.writeError(w, r, unauthorized(err))
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	s.loginLimiter.Reset(limiterKey)

	if !s.issueSession(w, r, user) {
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleAuthProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req api.ProfileRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	updated, err := s.auth.UpdateProfile(r.Context(), user, req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.log().Info("profile updated", "user_id", updated.ID,
		"email_changed", req.Email != nil, "password_changed", req.NewPassword != "")
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) issueSession(w http.ResponseWriter, r *http.Request, user *models.User) bool {
	if err := s.sessions.Issue(w, user.ID); err != nil {
		s.writeError(w, r, internalError(fmt.Errorf("issue session: %w", err)))
		return false
	}
	return true
}

func loginAttemptKey(username string, r *http.Request) string {
	user := strings.ToLower(strings.TrimSpace(username))
	if user == "" {
		user = "<empty>"
	}
	ip := requestClientIP(r)
	if ip == "" {
		ip = "<unknown>"
	}
	return ip + "|" + user
}

func requestClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remote)
	if err == nil {
		return strings.TrimSpace(host)
	}
	return remote
}
