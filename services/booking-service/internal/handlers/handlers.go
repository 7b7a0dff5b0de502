package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/md-rashed-zaman/apptbook/libs/httpx"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
)

// BookingService is implemented by *booking.Service.
type BookingService interface {
	AvailableSlots(ctx context.Context, q availability.SlotQuery) (availability.Availability, error)
	CheckSlot(ctx context.Context, c availability.SlotCheck) (availability.SlotDecision, error)
	Book(ctx context.Context, req booking.BookRequest) (booking.BookResult, error)
	Reschedule(ctx context.Context, req booking.RescheduleRequest) (model.Appointment, error)
	Cancel(ctx context.Context, req booking.CancelRequest) (model.Appointment, error)
	Confirm(ctx context.Context, appointmentID string) (model.Appointment, error)
	Deny(ctx context.Context, appointmentID string) (model.Appointment, error)
	List(ctx context.Context, f storage.ListFilter) ([]model.Appointment, error)
}

type BookingHandler struct {
	svc    BookingService
	logger *slog.Logger
}

func NewBookingHandler(svc BookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

// Register mounts the booking routes on mux. public wraps the unauthenticated
// customer-facing routes, typically with a rate limiter; nil leaves them bare.
func (h *BookingHandler) Register(mux *http.ServeMux, public httpx.Middleware) {
	if public == nil {
		public = func(next http.Handler) http.Handler { return next }
	}
	mux.Handle("/api/v1/public/slots", public(http.HandlerFunc(h.Slots)))
	mux.Handle("/api/v1/public/slots/check", public(http.HandlerFunc(h.CheckSlot)))
	mux.Handle("/api/v1/public/book", public(http.HandlerFunc(h.Book)))
	mux.HandleFunc("/api/v1/appointments", h.List)
	mux.HandleFunc("/api/v1/appointments/reschedule", h.Reschedule)
	mux.HandleFunc("/api/v1/appointments/cancel", h.Cancel)
	mux.HandleFunc("/api/v1/appointments/confirm", h.Confirm)
	mux.HandleFunc("/api/v1/appointments/deny", h.Deny)
}
