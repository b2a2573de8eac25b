package api

import (
	"net/http"

	"github.com/aksjeradar/internal/types"
)

// handleRegister handles POST /api/auth/register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid request body", nil)
		return
	}

	result, err := s.services.Users.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// handleLogin handles POST /api/auth/login. The identifier may be a
// username or an email address.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid request body", nil)
		return
	}

	result, err := s.services.Users.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleRefresh handles POST /api/auth/refresh.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid request body", nil)
		return
	}

	result, err := s.services.Users.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleLogout handles POST /api/auth/logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid request body", nil)
		return
	}

	if err := s.services.Users.Logout(r.Context(), req.RefreshToken); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
