package server

import (
	"context"
	"fmt"
	"net/http"

	"mealog/internal/models"
)

type authContextKey struct{}

type authPrincipal struct {
	User *models.User
}

func contextWithAuthPrincipal(ctx context.Context, principal authPrincipal) context.Context {
	return context.WithValue(ctx, authContextKey{}, principal)
}

func authPrincipalFromContext(ctx context.Context) (authPrincipal, bool) {
	if ctx == nil {
		return authPrincipal{}, false
	}
	principal, ok := ctx.Value(authContextKey{}).(authPrincipal)
	return principal, ok
}

// currentUser returns the signed-in user, or nil for guests.
func currentUser(r *http.Request) *models.User {
	principal, ok := authPrincipalFromContext(r.Context())
	if !ok {
		return nil
	}
	return principal.User
}

// withSession resolves the session cookie to a user. Invalid cookies and
// deleted accounts are treated as guests.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.sessions.UserID(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		user, err := s.auth.UserByID(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		if user == nil {
			s.sessions.Clear(w)
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithAuthPrincipal(r.Context(), authPrincipal{User: user})))
	})
}

func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := currentUser(r)
	if user == nil {
		s.writeError(w, r, unauthorized(fmt.Errorf("authentication required")))
		return nil, false
	}
	return user, true
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return nil, false
	}
	if !user.IsAdmin() {
		s.writeError(w, r, forbidden(fmt.Errorf("admin role required")))
		return nil, false
	}
	return user, true
}
