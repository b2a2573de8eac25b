package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/aksjeradar/internal/types"
)

// handleCreateAlert handles POST /api/alerts.
func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol    string  `json:"symbol"`
		Condition string  `json:"condition"`
		Threshold float64 `json:"threshold"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid request body", nil)
		return
	}

	alert, err := s.services.Alerts.Create(r.Context(), UserID(r), req.Symbol, types.AlertCondition(req.Condition), req.Threshold)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, alert)
}

// handleListAlerts handles GET /api/alerts.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.services.Alerts.List(r.Context(), UserID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"alerts": alerts})
}

// handleRearmAlert handles POST /api/alerts/{id}/rearm.
func (s *Server) handleRearmAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Alerts.Rearm(r.Context(), mux.Vars(r)["id"], UserID(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handleDeleteAlert handles DELETE /api/alerts/{id}.
func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Alerts.Delete(r.Context(), mux.Vars(r)["id"], UserID(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handleListNotifications handles GET /api/notifications?limit=.
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}

	items, unread, err := s.services.Notifications.List(r.Context(), UserID(r), limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": items,
		"unread":        unread,
	})
}

// handleMarkNotificationRead handles POST /api/notifications/{id}/read.
func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Notifications.MarkRead(r.Context(), mux.Vars(r)["id"], UserID(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handleMarkAllNotificationsRead handles POST /api/notifications/read-all.
func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	updated, err := s.services.Notifications.MarkAllRead(r.Context(), UserID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"updated": updated})
}
