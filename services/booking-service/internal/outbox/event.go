package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/model"
)

const (
	AggregateAppointment = "appointment"

	EventAppointmentBooked      = "booking.appointment.booked.v1"
	EventAppointmentRescheduled = "booking.appointment.rescheduled.v1"
	EventAppointmentCancelled   = "booking.appointment.cancelled.v1"
	EventAppointmentConfirmed   = "booking.appointment.confirmed.v1"
	EventAppointmentDenied      = "booking.appointment.denied.v1"
)

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// AppointmentPayload is the body of every booking.appointment.* event.
type AppointmentPayload struct {
	EventID           string     `json:"event_id"`
	AppointmentID     string     `json:"appointment_id"`
	ProviderID        string     `json:"provider_id"`
	ServiceID         string     `json:"service_id"`
	CustomerName      string     `json:"customer_name"`
	CustomerEmail     string     `json:"customer_email,omitempty"`
	CustomerPhone     string     `json:"customer_phone,omitempty"`
	StartTime         time.Time  `json:"start_time"`
	EndTime           time.Time  `json:"end_time"`
	DurationMinutes   int        `json:"duration_minutes"`
	Status            string     `json:"status"`
	PreviousStartTime *time.Time `json:"previous_start_time,omitempty"`
	Reason            string     `json:"reason,omitempty"`
	OccurredAt        time.Time  `json:"occurred_at"`
}

// AppointmentEvent builds an event of eventType for appt. previousStart is
// set for reschedules only.
func AppointmentEvent(eventType string, appt model.Appointment, previousStart *time.Time, reason string, at time.Time) (Event, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(AppointmentPayload{
		EventID:           id,
		AppointmentID:     appt.ID,
		ProviderID:        appt.ProviderID,
		ServiceID:         appt.ServiceID,
		CustomerName:      appt.CustomerName,
		CustomerEmail:     appt.CustomerEmail,
		CustomerPhone:     appt.CustomerPhone,
		StartTime:         appt.StartTime.UTC(),
		EndTime:           appt.EndTime().UTC(),
		DurationMinutes:   appt.DurationMinutes,
		Status:            string(appt.Status),
		PreviousStartTime: previousStart,
		Reason:            reason,
		OccurredAt:        at.UTC(),
	})
	if err != nil {
		return Event{}, err
	}
	return Event{
		EventID:       id,
		AggregateType: AggregateAppointment,
		AggregateID:   appt.ID,
		EventType:     eventType,
		Payload:       payload,
	}, nil
}
