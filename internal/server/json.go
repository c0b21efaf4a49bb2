package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/omega-championship/overlays/internal/startgg"
	"github.com/omega-championship/overlays/internal/store"
	"github.com/omega-championship/overlays/internal/view"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusError carries the HTTP status a handler wants to answer with.
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string { return e.msg }

func errStatus(status int, msg string) error {
	return &statusError{status: status, msg: msg}
}

// fail maps err to a status code, logs it and writes the JSON error body.
func fail(w http.ResponseWriter, logger *slog.Logger, err error) {
	var se *statusError
	var apiErr *startgg.APIError
	switch {
	case errors.As(err, &se):
		if se.status >= http.StatusInternalServerError {
			logger.Error("request failed", "error", err)
		}
		writeError(w, se.status, se.msg)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &apiErr):
		logger.Error("start.gg request failed", "status", apiErr.StatusCode, "error", err)
		writeError(w, http.StatusInternalServerError, apiErr.Error())
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func handleNotFound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if wantsHTML(r) {
			view.RenderStatus(w, r, http.StatusNotFound, view.Error(http.StatusNotFound, "Page not found"))
			return
		}
		writeError(w, http.StatusNotFound, "not found")
	}
}
