package booking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
)

type storedError struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Msg   string `json:"message,omitempty"`
}

// replay rebuilds the outcome of an earlier request from its idempotency record.
func replay(rec storage.IdempotencyRecord) (BookResult, error) {
	switch rec.StatusCode {
	case http.StatusCreated:
		var appt model.Appointment
		if err := json.Unmarshal(rec.ResponsePayload, &appt); err != nil {
			return BookResult{}, err
		}
		return BookResult{Appointment: appt, Replayed: true}, nil
	case http.StatusConflict:
		return BookResult{}, &availability.ConflictError{}
	default:
		var body storedError
		_ = json.Unmarshal(rec.ResponsePayload, &body)
		if body.Field == "" {
			body.Field = "start_time"
		}
		return BookResult{}, &availability.ValidationError{Field: body.Field, Msg: body.Msg}
	}
}

// finalizeError records a deterministic rejection under the idempotency key so
// a retry gets the same answer. Transient failures are not recorded.
func (s *Service) finalizeError(ctx context.Context, tx pgx.Tx, providerID, key string, cause error) bool {
	var (
		status int
		body   storedError
	)
	var ve *availability.ValidationError
	switch {
	case errors.Is(cause, availability.ErrSlotTaken):
		status, body.Error = http.StatusConflict, "slot_taken"
	case errors.As(cause, &ve):
		status, body.Error, body.Field, body.Msg = http.StatusBadRequest, "validation_failed", ve.Field, ve.Msg
	default:
		return false
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return false
	}
	if err := s.repo.FinalizeIdempotency(ctx, tx, providerID, key, "", status, payload); err != nil {
		s.logger.Error("failed to finalize idempotency (error)", "err", err)
		return false
	}
	return true
}
