package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aksjeradar/internal/types"
)

// handleCreateWatchlist handles POST /api/watchlists.
func (s *Server) handleCreateWatchlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid request body", nil)
		return
	}

	watchlist, err := s.services.Watchlists.Create(r.Context(), UserID(r), req.Name)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, watchlist)
}

// handleListWatchlists handles GET /api/watchlists.
func (s *Server) handleListWatchlists(w http.ResponseWriter, r *http.Request) {
	watchlists, err := s.services.Watchlists.List(r.Context(), UserID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"watchlists": watchlists})
}

// handleGetWatchlist handles GET /api/watchlists/{id}.
func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	view, err := s.services.Watchlists.Get(r.Context(), mux.Vars(r)["id"], UserID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

// handleDeleteWatchlist handles DELETE /api/watchlists/{id}.
func (s *Server) handleDeleteWatchlist(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Watchlists.Delete(r.Context(), mux.Vars(r)["id"], UserID(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handleAddWatchlistEntry handles POST /api/watchlists/{id}/entries.
func (s *Server) handleAddWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid request body", nil)
		return
	}

	entry, err := s.services.Watchlists.AddSymbol(r.Context(), mux.Vars(r)["id"], UserID(r), req.Symbol)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

// handleRemoveWatchlistEntry handles DELETE /api/watchlists/{id}/entries/{symbol}.
func (s *Server) handleRemoveWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.services.Watchlists.RemoveSymbol(r.Context(), vars["id"], UserID(r), vars["symbol"]); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
