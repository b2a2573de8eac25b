package api

import (
	"io"
	"net/http"

	"github.com/aksjeradar/internal/types"
)

// Payment gateway signature header.
const webhookSignatureHeader = "X-Gateway-Signature"

const maxWebhookBody = 64 << 10

// handlePricing handles GET /api/pricing. Public: the pricing page is
// shown to visitors before they register.
func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"plans": s.services.Billing.Plans(),
	})
}

// handleGetSubscription handles GET /api/billing/subscription.
func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.services.Billing.GetSubscription(r.Context(), UserID(r))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"subscription": sub})
}

// handleStartTrial handles POST /api/billing/trial.
func (s *Server) handleStartTrial(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanID string `json:"planId"`
	}
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "invalid request body", nil)
		return
	}

	sub, err := s.services.Billing.StartTrial(r.Context(), UserID(r), req.PlanID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

// handleCancelSubscription handles POST /api/billing/cancel.
func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Billing.Cancel(r.Context(), UserID(r)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// handleBillingWebhook handles POST /api/billing/webhook. The raw body
// is read before parsing because the HMAC covers the exact bytes.
func (s *Server) handleBillingWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, types.ErrCodeInvalidInput, "failed to read request body", nil)
		return
	}

	if err := s.services.Billing.HandleWebhook(r.Context(), body, r.Header.Get(webhookSignatureHeader)); err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
