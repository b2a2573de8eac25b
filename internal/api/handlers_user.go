package api

import (
	"net/http"

	"github.com/aksjeradar/internal/models"
	"github.com/aksjeradar/internal/types"
)

// handleGetMe handles GET /api/me.
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	profile, err := s.services.Users.GetProfile(r.Context(), UserID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

// handleUpdateSettings handles PATCH /api/me/settings.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req models.UserSettings
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid request body", nil)
		return
	}

	if err := s.services.Users.UpdateSettings(r.Context(), UserID(r), &req); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, req)
}

// handleGetStats handles GET /api/stats.
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.services.Achievements.Stats(r.Context(), UserID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// handleListAchievementCatalog handles GET /api/achievements: the
// public catalog without unlock state.
func (s *Server) handleListAchievementCatalog(w http.ResponseWriter, r *http.Request) {
	// An empty user annotates nothing as unlocked.
	views, err := s.services.Achievements.List(r.Context(), UserID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}

// handleListMyAchievements handles GET /api/achievements/mine.
func (s *Server) handleListMyAchievements(w http.ResponseWriter, r *http.Request) {
	views, err := s.services.Achievements.List(r.Context(), UserID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, views)
}
