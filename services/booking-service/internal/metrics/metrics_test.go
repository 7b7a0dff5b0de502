package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveSlotQuery(availability.Availability{Available: true}, nil, 10*time.Millisecond)
	m.ObserveSlotQuery(availability.Availability{Reason: availability.ReasonFullyBooked}, nil, time.Millisecond)
	m.ObserveSlotCheck(availability.SlotDecision{Reason: availability.ReasonAppointmentConflict}, nil)
	m.ObserveCommit("book", &availability.ConflictError{})
	m.ObserveCommit("book", nil)
	m.OutboxPublished(3)
	m.OutboxFailed()

	if v := counterValue(t, reg, "apptbook_availability_slot_queries_total", map[string]string{"outcome": "unavailable", "reason": "fully_booked"}); v != 1 {
		t.Fatalf("expected 1 fully_booked query, got %v", v)
	}
	if v := counterValue(t, reg, "apptbook_booking_commits_total", map[string]string{"operation": "book", "outcome": "conflict"}); v != 1 {
		t.Fatalf("expected 1 conflict commit, got %v", v)
	}
	if v := counterValue(t, reg, "apptbook_outbox_published_total", nil); v != 3 {
		t.Fatalf("expected 3 published, got %v", v)
	}
}

func TestOutcome(t *testing.T) {
	cases := map[error]string{
		nil: "ok",
		&availability.ValidationError{Field: "x"}:                   "invalid",
		&availability.NotFoundError{}:                               "not_found",
		&availability.TransientError{Op: "q", Err: errors.New("x")}: "transient",
		errors.New("boom"):                                          "error",
	}
	for err, want := range cases {
		if got := Outcome(err); got != want {
			t.Fatalf("Outcome(%v): expected %s, got %s", err, want, got)
		}
	}
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveSlotQuery(availability.Availability{}, nil, 0)
	m.ObserveSlotCheck(availability.SlotDecision{}, nil)
	m.ObserveCommit("book", nil)
	m.OutboxPublished(1)
	m.OutboxFailed()
}
