package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
)

type errorResponse struct {
	Error     string                  `json:"error"`
	Field     string                  `json:"field,omitempty"`
	Message   string                  `json:"message,omitempty"`
	Conflicts []availability.Conflict `json:"conflicts,omitempty"`
	RequestID string                  `json:"request_id,omitempty"`
}

// writeError maps the availability error kinds to HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	resp := errorResponse{RequestID: httpx.RequestIDFromContext(r.Context())}
	status := http.StatusInternalServerError

	var (
		ve *availability.ValidationError
		nf *availability.NotFoundError
		ce *availability.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		status, resp.Error, resp.Field, resp.Message = http.StatusBadRequest, "validation_failed", ve.Field, ve.Msg
	case errors.As(err, &nf):
		status, resp.Error, resp.Message = http.StatusNotFound, "not_found", nf.Error()
	case errors.As(err, &ce):
		status, resp.Error, resp.Conflicts = http.StatusConflict, "slot_taken", ce.Conflicts
	case errors.Is(err, availability.ErrTransient):
		status, resp.Error = http.StatusServiceUnavailable, "temporarily_unavailable"
		w.Header().Set("Retry-After", "1")
		logger.Warn("dependency failure", "path", r.URL.Path, "err", err)
	default:
		resp.Error = "internal_error"
		logger.Error("request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func badRequest(w http.ResponseWriter, r *http.Request, logger *slog.Logger, field, msg string) {
	writeError(w, r, logger, &availability.ValidationError{Field: field, Msg: msg})
}
