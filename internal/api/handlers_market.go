package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/aksjeradar/internal/types"
)

const defaultHistoryLimit = 500

// handleOverview handles GET /api/market/overview.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.services.Market.GetOverviewForTier(r.Context(), Tier(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, overview)
}

// handleGetQuote handles GET /api/stocks/quote/{symbol}.
func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	quote, err := s.services.Market.GetQuoteForTier(r.Context(), symbol, Tier(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, quote)
}

// handleGetQuotes handles GET /api/stocks/quotes?symbols=A,B,C.
func (s *Server) handleGetQuotes(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "symbols parameter is required", nil)
		return
	}

	quotes, err := s.services.Market.GetQuotes(r.Context(), symbols, Tier(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"quotes": quotes})
}

// handleSearch handles GET /api/stocks/search?q=.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	matches := s.services.Market.Search(r.Context(), r.URL.Query().Get("q"), Tier(r))
	respondJSON(w, http.StatusOK, map[string]interface{}{"symbols": matches})
}

// handleCompare handles GET /api/stocks/compare?symbols=A,B.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"))

	quotes, err := s.services.Market.Compare(r.Context(), symbols)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"quotes": quotes})
}

// handleHistory handles GET /api/stocks/{symbol}/history?from=&to=&limit=.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	query := r.URL.Query()

	var from, to time.Time
	var err error
	if v := query.Get("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid from timestamp (use RFC3339)", nil)
			return
		}
	}
	if v := query.Get("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid to timestamp (use RFC3339)", nil)
			return
		}
	}

	limit := defaultHistoryLimit
	if v := query.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit <= 0 {
			respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "limit must be a positive integer", nil)
			return
		}
	}

	ticks, err := s.services.Market.GetHistory(r.Context(), symbol, from, to, limit)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"ticks": ticks})
}

// handleNews handles GET /api/news.
func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"items": s.services.News.Items()})
}

func splitSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
