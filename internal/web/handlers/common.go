package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kozaktomas/smart-attendance/internal/calendar"
	"github.com/kozaktomas/smart-attendance/internal/errors"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

var logger = slog.Default().With("component", "web")

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

// statusForError maps an error kind to an HTTP status.
func statusForError(err error) int {
	switch errors.KindOf(err) {
	case errors.KindInput:
		return http.StatusBadRequest
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindResource:
		return http.StatusServiceUnavailable
	case errors.KindConsistency:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondErr sends err with the status of its kind. Storage and untagged failures are logged
// and hidden behind a generic message.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", r.Method, "path", sanitizeForLog(r.URL.Path), "error", err)
		respondError(w, status, "internal error")
		return
	}
	respondError(w, status, err.Error())
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// dateParam returns the "date" query parameter, defaulting to today.
func dateParam(r *http.Request) (string, error) {
	date := r.URL.Query().Get("date")
	if date == "" {
		return calendar.FormatDate(calendar.Today()), nil
	}
	if _, err := calendar.ParseDate(date); err != nil {
		return "", errors.Input("date parameter", err)
	}
	return date, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
