package model

import (
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
)

type Appointment struct {
	ID              string                         `json:"id"`
	ProviderID      string                         `json:"provider_id"`
	ServiceID       string                         `json:"service_id"`
	CustomerName    string                         `json:"customer_name"`
	CustomerEmail   string                         `json:"customer_email,omitempty"`
	CustomerPhone   string                         `json:"customer_phone,omitempty"`
	Notes           string                         `json:"notes,omitempty"`
	StartTime       time.Time                      `json:"start_time"`
	DurationMinutes int                            `json:"duration_minutes"`
	Status          availability.AppointmentStatus `json:"status"`
	CancelledAt     *time.Time                     `json:"cancelled_at,omitempty"`
	CancelReason    string                         `json:"cancellation_reason,omitempty"`
	CreatedAt       time.Time                      `json:"created_at"`
	UpdatedAt       time.Time                      `json:"updated_at"`
}

func (a Appointment) EndTime() time.Time {
	return a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

func (a Appointment) Slot() availability.SlotCheck {
	return availability.SlotCheck{
		ProviderID:      a.ProviderID,
		Start:           a.StartTime,
		DurationMinutes: a.DurationMinutes,
	}
}
