package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/kozaktomas/fuzzysearch/internal/fingerprint"
	"github.com/kozaktomas/fuzzysearch/internal/fuzzysearch"
	"github.com/kozaktomas/fuzzysearch/internal/session"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// errorStatus maps lookup and hashing failures to an HTTP status.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	case fingerprint.IsDecodeError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	if _, ok := fuzzysearch.IsRemoteRejected(err); ok {
		return http.StatusBadGateway
	}
	if fuzzysearch.IsTransport(err) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondLookupError logs err and sends it with the status from errorStatus.
func respondLookupError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", r.Method, sanitizeForLog(r.URL.Path), err)
	}
	respondError(w, status, err.Error())
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
