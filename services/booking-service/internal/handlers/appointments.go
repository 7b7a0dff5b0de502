package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/storage"
)

type bookRequest struct {
	ProviderID    string `json:"provider_id"`
	ServiceID     string `json:"service_id"`
	StartTime     string `json:"start_time"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	Notes         string `json:"notes"`
}

type rescheduleRequest struct {
	AppointmentID string `json:"appointment_id"`
	StartTime     string `json:"start_time"`
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type appointmentIDRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type appointmentResponse struct {
	model.Appointment
	EndTime time.Time `json:"end_time"`
}

func toResponse(a model.Appointment) appointmentResponse {
	return appointmentResponse{Appointment: a, EndTime: a.EndTime()}
}

func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, h.logger, "body", "invalid json body")
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		badRequest(w, r, h.logger, "start_time", "must be RFC3339")
		return
	}

	res, err := h.svc.Book(r.Context(), booking.BookRequest{
		ProviderID:     strings.TrimSpace(req.ProviderID),
		ServiceID:      strings.TrimSpace(req.ServiceID),
		StartTime:      start,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  req.CustomerPhone,
		Notes:          req.Notes,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if res.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	writeJSON(w, http.StatusCreated, toResponse(res.Appointment))
}

func (h *BookingHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, h.logger, "body", "invalid json body")
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartTime))
	if err != nil {
		badRequest(w, r, h.logger, "start_time", "must be RFC3339")
		return
	}

	appt, err := h.svc.Reschedule(r.Context(), booking.RescheduleRequest{
		AppointmentID: strings.TrimSpace(req.AppointmentID),
		StartTime:     start,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, h.logger, "body", "invalid json body")
		return
	}
	appt, err := h.svc.Cancel(r.Context(), booking.CancelRequest{
		AppointmentID: strings.TrimSpace(req.AppointmentID),
		Reason:        req.Reason,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req appointmentIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, h.logger, "body", "invalid json body")
		return
	}
	appt, err := h.svc.Confirm(r.Context(), strings.TrimSpace(req.AppointmentID))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *BookingHandler) Deny(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req appointmentIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, r, h.logger, "body", "invalid json body")
		return
	}
	appt, err := h.svc.Deny(r.Context(), strings.TrimSpace(req.AppointmentID))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(appt))
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	providerID := strings.TrimSpace(r.Header.Get("X-Provider-Id"))
	if providerID == "" {
		providerID = strings.TrimSpace(q.Get("provider_id"))
	}
	if providerID == "" {
		badRequest(w, r, h.logger, "provider_id", "is required")
		return
	}

	filter := storage.ListFilter{
		ProviderID: providerID,
		Status:     availability.AppointmentStatus(strings.TrimSpace(q.Get("status"))),
		Limit:      50,
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			filter.Limit = n
		}
	}
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			badRequest(w, r, h.logger, p.name, "must be RFC3339")
			return
		}
		*p.dst = t
	}

	appts, err := h.svc.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		items = append(items, toResponse(a))
	}
	writeJSON(w, http.StatusOK, items)
}
