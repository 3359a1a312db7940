package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and metrics.
	mux.HandleFunc("GET /health", s.handleHealth)
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}

	// Image upload and serving.
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /"+s.paths.Prefix()+"/{key}", s.handleServeImage)

	// Auth.
	mux.HandleFunc("POST /api/auth/register", s.handleAuthRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleAuthLogin)
	mux.HandleFunc("POST /api/auth/logout", s.handleAuthLogout)
	mux.HandleFunc("GET /api/auth/me", s.handleAuthMe)
	mux.HandleFunc("PUT /api/auth/profile", s.handleAuthProfile)
	mux.HandleFunc("GET /api/settings/public", s.handlePublicSettings)

	// Meals collection and feeds.
	mux.HandleFunc("GET /api/meals", s.handleListMeals)
	mux.HandleFunc("POST /api/meals", s.handleCreateMeal)
	mux.HandleFunc("GET /api/meals/search", s.handleSearchMeals)
	mux.HandleFunc("GET /api/meals/explore", s.handleExploreMeals)

	// Single meal.
	mux.HandleFunc("GET /api/meals/{id}", s.handleGetMeal)
	mux.HandleFunc("PUT /api/meals/{id}", s.handleUpdateMeal)
	mux.HandleFunc("DELETE /api/meals/{id}", s.handleDeleteMeal)

	// Admin.
	mux.HandleFunc("GET /api/admin/users", s.handleAdminListUsers)
	mux.HandleFunc("POST /api/admin/users", s.handleAdminCreateUser)
	mux.HandleFunc("DELETE /api/admin/users/{id}", s.handleAdminDeleteUser)
	mux.HandleFunc("POST /api/admin/users/{id}/password", s.handleAdminResetPassword)

	return mux
}
