package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/aksjeradar/internal/types"
)

const defaultTradeLimit = 100

// handleCreatePortfolio handles POST /api/portfolios.
func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid request body", nil)
		return
	}

	portfolio, err := s.services.Portfolios.Create(r.Context(), UserID(r), req.Name)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, portfolio)
}

// handleListPortfolios handles GET /api/portfolios.
func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := s.services.Portfolios.List(r.Context(), UserID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"portfolios": portfolios})
}

// handleRenamePortfolio handles PUT /api/portfolios/{id}.
func (s *Server) handleRenamePortfolio(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid request body", nil)
		return
	}

	if err := s.services.Portfolios.Rename(r.Context(), mux.Vars(r)["id"], UserID(r), req.Name); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handleDeletePortfolio handles DELETE /api/portfolios/{id}.
func (s *Server) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Portfolios.Delete(r.Context(), mux.Vars(r)["id"], UserID(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handlePortfolioValuation handles GET /api/portfolios/{id}/valuation.
func (s *Server) handlePortfolioValuation(w http.ResponseWriter, r *http.Request) {
	valuation, err := s.services.Portfolios.Valuation(r.Context(), mux.Vars(r)["id"], UserID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, valuation)
}

// handleAddHolding handles POST /api/portfolios/{id}/holdings.
func (s *Server) handleAddHolding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol   string  `json:"symbol"`
		Quantity float64 `json:"quantity"`
		Price    float64 `json:"price"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid request body", nil)
		return
	}

	holding, err := s.services.Portfolios.AddHolding(r.Context(), mux.Vars(r)["id"], UserID(r), req.Symbol, req.Quantity, req.Price)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, holding)
}

// handleRemoveHolding handles DELETE /api/portfolios/{id}/holdings/{holdingId}.
func (s *Server) handleRemoveHolding(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.services.Portfolios.RemoveHolding(r.Context(), vars["id"], UserID(r), vars["holdingId"]); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handleListTrades handles GET /api/trades?limit=.
func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	limit := defaultTradeLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}

	trades, err := s.services.Portfolios.ListTrades(r.Context(), UserID(r), limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"trades": trades})
}
