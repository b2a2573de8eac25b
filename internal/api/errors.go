package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aksjeradar/internal/i18n"
	"github.com/aksjeradar/internal/types"
)

// ErrorResponse is the JSON error envelope: a stable code, a localized
// message, and an optional detail string for API clients.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the error payload.
type ErrorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Detail  string                 `json:"detail,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends the error envelope. The message is localized from
// the code via Accept-Language; detail carries the specific English
// description for API clients.
func respondError(w http.ResponseWriter, r *http.Request, statusCode int, code, detail string, details map[string]interface{}) {
	lang := i18n.FromAcceptLanguage(r.Header.Get("Accept-Language"))
	respondJSON(w, statusCode, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: i18n.T(lang, messageID(code)),
			Detail:  detail,
			Details: details,
		},
	})
}

// respondServiceError translates a service error into the envelope.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *types.ServiceError
	if !errors.As(err, &svcErr) {
		respondError(w, r, http.StatusInternalServerError, types.ErrCodeInternalError, "", nil)
		return
	}
	respondError(w, r, statusForCode(svcErr.Code), svcErr.Code, svcErr.Message, svcErr.Details)
}

// parseJSONBody parses a JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// statusForCode maps stable service error codes to HTTP statuses.
func statusForCode(code string) int {
	switch code {
	case types.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case types.ErrCodeNotFound:
		return http.StatusNotFound
	case types.ErrCodeConflict:
		return http.StatusConflict
	case types.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case types.ErrCodeForbidden:
		return http.StatusForbidden
	case types.ErrCodePaymentRequired:
		return http.StatusPaymentRequired
	case types.ErrCodeRateLimitExceeded, types.ErrCodeQuotaExceeded:
		return http.StatusTooManyRequests
	case types.ErrCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messageID maps error codes to catalog message IDs.
func messageID(code string) string {
	switch code {
	case types.ErrCodeInvalidInput:
		return i18n.MsgInvalidInput
	case types.ErrCodeNotFound:
		return i18n.MsgNotFound
	case types.ErrCodeConflict:
		return i18n.MsgInvalidInput
	case types.ErrCodeUnauthorized:
		return i18n.MsgUnauthorized
	case types.ErrCodePaymentRequired:
		return i18n.MsgPremiumRequired
	case types.ErrCodeRateLimitExceeded:
		return i18n.MsgRateLimited
	case types.ErrCodeQuotaExceeded:
		return i18n.MsgQuotaExceeded
	case types.ErrCodeServiceUnavailable:
		return i18n.MsgServiceUnavailable
	default:
		return i18n.MsgInternalError
	}
}
