package server

import (
	"net/http"

	"mealog/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

func (s *Server) handlePublicSettings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.PublicSettings{AllowRegister: s.auth.RegistrationOpen()})
}
