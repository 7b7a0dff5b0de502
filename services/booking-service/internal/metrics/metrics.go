package metrics

import (
	"errors"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/prometheus/client_golang/prometheus"
)

// BookingMetrics exposes counters and histograms for slot queries and commits.
type BookingMetrics struct {
	slotQueries     *prometheus.CounterVec
	slotLatency     prometheus.Histogram
	slotChecks      *prometheus.CounterVec
	commits         *prometheus.CounterVec
	outboxPublished prometheus.Counter
	outboxFailures  prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		slotQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptbook",
			Subsystem: "availability",
			Name:      "slot_queries_total",
			Help:      "Slot listings by outcome and unavailability reason",
		}, []string{"outcome", "reason"}),
		slotLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "apptbook",
			Subsystem: "availability",
			Name:      "slot_query_seconds",
			Help:      "Latency of slot listings",
			Buckets:   prometheus.DefBuckets,
		}),
		slotChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptbook",
			Subsystem: "availability",
			Name:      "slot_checks_total",
			Help:      "Single-slot checks by outcome and reason",
		}, []string{"outcome", "reason"}),
		commits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apptbook",
			Subsystem: "booking",
			Name:      "commits_total",
			Help:      "Booking writes by operation and outcome",
		}, []string{"operation", "outcome"}),
		outboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apptbook",
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox events written to Kafka",
		}),
		outboxFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "apptbook",
			Subsystem: "outbox",
			Name:      "publish_failures_total",
			Help:      "Failed outbox publish batches",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotQueries, m.slotLatency, m.slotChecks, m.commits, m.outboxPublished, m.outboxFailures)
	return m
}

func (m *BookingMetrics) ObserveSlotQuery(res availability.Availability, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.slotLatency.Observe(elapsed.Seconds())
	switch {
	case err != nil:
		m.slotQueries.WithLabelValues(Outcome(err), "").Inc()
	case res.Available:
		m.slotQueries.WithLabelValues("available", "").Inc()
	default:
		m.slotQueries.WithLabelValues("unavailable", res.Reason).Inc()
	}
}

func (m *BookingMetrics) ObserveSlotCheck(d availability.SlotDecision, err error) {
	if m == nil {
		return
	}
	switch {
	case err != nil:
		m.slotChecks.WithLabelValues(Outcome(err), "").Inc()
	case d.Available:
		m.slotChecks.WithLabelValues("available", "").Inc()
	default:
		m.slotChecks.WithLabelValues("unavailable", d.Reason).Inc()
	}
}

func (m *BookingMetrics) ObserveCommit(operation string, err error) {
	if m == nil {
		return
	}
	m.commits.WithLabelValues(operation, Outcome(err)).Inc()
}

func (m *BookingMetrics) OutboxPublished(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.outboxPublished.Add(float64(n))
}

func (m *BookingMetrics) OutboxFailed() {
	if m == nil {
		return
	}
	m.outboxFailures.Inc()
}

// Outcome maps an error to a low-cardinality label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, availability.ErrSlotTaken):
		return "conflict"
	case errors.Is(err, availability.ErrValidation):
		return "invalid"
	case errors.Is(err, availability.ErrNotFound):
		return "not_found"
	case errors.Is(err, availability.ErrTransient):
		return "transient"
	default:
		return "error"
	}
}
