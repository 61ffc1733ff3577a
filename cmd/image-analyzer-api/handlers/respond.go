// Package handlers provides HTTP handlers for the image analyzer API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/spherical/image-analyzer/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message, detail string) {
	resp := map[string]string{
		"error":   message,
		"message": message,
	}
	if detail != "" {
		resp["detail"] = detail
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the pipeline's error kinds onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	resp := map[string]string{
		"error":   message,
		"message": message,
		"detail":  err.Error(),
	}
	errType := domain.TypeOf(err)
	if errType != "" {
		resp["kind"] = string(errType)
	}
	writeJSON(w, statusFor(errType), resp)
}

func statusFor(t domain.ErrorType) int {
	switch t {
	case domain.ErrorTypePrecondition:
		return http.StatusConflict
	case domain.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case domain.ErrorTypeUpstream, domain.ErrorTypeNetwork, domain.ErrorTypeMalformed:
		return http.StatusBadGateway
	case domain.ErrorTypeIO:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
