package server

import (
	"encoding/json"
	"net/http"

	"remote-browser-env/pkg/apperr"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError maps the error taxonomy onto HTTP statuses and keeps the
// reason code in the body for the caller.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch apperr.Code(err) {
	case apperr.CodeValidation:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeTaskConflict:
		status = http.StatusConflict
	case apperr.CodeBrowserNotReady:
		status = http.StatusServiceUnavailable
	case apperr.CodeConnection:
		status = http.StatusBadGateway
	case apperr.CodeTimeout:
		status = http.StatusGatewayTimeout
	}

	body := map[string]any{
		"error": err.Error(),
		"code":  apperr.Code(err),
	}
	if reason := apperr.Reason(err); reason != "" {
		body["reason"] = reason
	}

	respondJSON(w, status, body)
}
