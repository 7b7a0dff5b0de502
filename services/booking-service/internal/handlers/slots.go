package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
)

func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	query := availability.SlotQuery{
		ProviderID: strings.TrimSpace(q.Get("provider_id")),
		ServiceID:  strings.TrimSpace(q.Get("service_id")),
		Date:       strings.TrimSpace(q.Get("date")),
		Timezone:   strings.TrimSpace(q.Get("timezone")),
	}
	if query.ProviderID == "" || query.ServiceID == "" || query.Date == "" {
		badRequest(w, r, h.logger, "query", "provider_id, service_id, and date are required")
		return
	}

	res, err := h.svc.AvailableSlots(r.Context(), query)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// CheckSlot is a non-binding pre-check for a single candidate slot.
func (h *BookingHandler) CheckSlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(q.Get("start_time")))
	if err != nil {
		badRequest(w, r, h.logger, "start_time", "must be RFC3339")
		return
	}
	duration, err := strconv.Atoi(strings.TrimSpace(q.Get("duration_minutes")))
	if err != nil {
		badRequest(w, r, h.logger, "duration_minutes", "must be an integer")
		return
	}

	decision, err := h.svc.CheckSlot(r.Context(), availability.SlotCheck{
		ProviderID:           strings.TrimSpace(q.Get("provider_id")),
		Start:                start,
		DurationMinutes:      duration,
		ExcludeAppointmentID: strings.TrimSpace(q.Get("exclude_appointment_id")),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}
