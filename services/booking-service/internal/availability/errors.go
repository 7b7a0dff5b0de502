package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrSlotTaken  = errors.New("slot_taken")
	ErrTransient  = errors.New("temporarily unavailable")
)

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError is returned when a commit loses the slot to another booking.
type ConflictError struct {
	Conflicts []Conflict
}

func (e *ConflictError) Error() string {
	if len(e.Conflicts) == 0 {
		return "slot_taken"
	}
	ids := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		ids = append(ids, c.AppointmentID)
	}
	return "slot_taken: overlaps " + strings.Join(ids, ", ")
}

func (e *ConflictError) Is(target error) bool { return target == ErrSlotTaken }

// TransientError wraps repository and timeout failures. Callers may retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// Transient classifies a repository error. Not-found and validation errors
// pass through; anything else, timeouts included, becomes a TransientError.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrTransient) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TransientError{Op: op, Err: fmt.Errorf("query timeout: %w", err)}
	}
	return &TransientError{Op: op, Err: err}
}
