package availability

import (
	"time"
)

const (
	DefaultGranularityMinutes = 15
	DefaultBufferMinutes      = 15
)

// ScheduleBlock is one recurring weekly working window of a provider.
type ScheduleBlock struct {
	ID             string
	ProviderID     string
	Weekday        time.Weekday
	Start          TimeOfDay
	End            TimeOfDay
	Active         bool
	EffectiveFrom  *Date
	EffectiveUntil *Date
}

// AppliesOn reports whether the block is active and effective on d (bounds inclusive).
func (b ScheduleBlock) AppliesOn(d Date) bool {
	if !b.Active || b.Weekday != d.Weekday() || b.End <= b.Start {
		return false
	}
	if b.EffectiveFrom != nil && d.Before(*b.EffectiveFrom) {
		return false
	}
	if b.EffectiveUntil != nil && d.After(*b.EffectiveUntil) {
		return false
	}
	return true
}

func (b ScheduleBlock) Window(d Date, loc *time.Location) Interval {
	return Interval{Start: b.Start.On(d, loc), End: b.End.On(d, loc)}
}

type ExceptionKind string

const (
	ExceptionUnavailable  ExceptionKind = "unavailable"
	ExceptionSpecialHours ExceptionKind = "special_hours"
	ExceptionHoliday      ExceptionKind = "holiday"
)

// Exception overrides the weekly schedule on one date. Both bounds nil means
// the whole day.
type Exception struct {
	ID         string
	ProviderID string
	Date       Date
	Start      *TimeOfDay
	End        *TimeOfDay
	Kind       ExceptionKind
	Reason     string
}

func (e Exception) WholeDay() bool { return e.Start == nil && e.End == nil }

// Window returns the blocked range on the exception date. A missing bound
// extends to the edge of the day.
func (e Exception) Window(loc *time.Location) Interval {
	start, end := TimeOfDay(0), EndOfDay
	if e.Start != nil {
		start = *e.Start
	}
	if e.End != nil {
		end = *e.End
	}
	return Interval{Start: start.On(e.Date, loc), End: end.On(e.Date, loc)}
}

// DisplayReason is the text reported when the exception closes the day.
func (e Exception) DisplayReason() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Kind != "" {
		return string(e.Kind)
	}
	return string(ExceptionUnavailable)
}

type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "scheduled"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusCompleted  AppointmentStatus = "completed"
	StatusNoShow     AppointmentStatus = "no_show"
)

// BlockingStatuses are the appointment states that occupy provider time.
var BlockingStatuses = []AppointmentStatus{StatusScheduled, StatusConfirmed, StatusInProgress}

func (s AppointmentStatus) Blocking() bool {
	for _, b := range BlockingStatuses {
		if s == b {
			return true
		}
	}
	return false
}

type BlockingAppointment struct {
	ID              string
	ProviderID      string
	Start           time.Time
	DurationMinutes int
	Status          AppointmentStatus
}

func (a BlockingAppointment) Interval() Interval {
	return Interval{Start: a.Start, End: a.Start.Add(time.Duration(a.DurationMinutes) * time.Minute)}
}

type ServicePolicy struct {
	ID                 string
	Name               string
	DurationMinutes    int
	MaxAdvanceDays     int
	SameDayAllowed     bool
	GranularityMinutes int
	BufferMinutes      int
}

// withDefaults fills unset granularity and buffer.
func (p ServicePolicy) withDefaults() ServicePolicy {
	if p.GranularityMinutes <= 0 {
		p.GranularityMinutes = DefaultGranularityMinutes
	}
	if p.BufferMinutes <= 0 {
		p.BufferMinutes = DefaultBufferMinutes
	}
	return p
}

type Provider struct {
	ID       string
	Name     string
	Timezone string
}

type TimeSlot struct {
	StartTime TimeOfDay `json:"start_time"`
	EndTime   TimeOfDay `json:"end_time"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

type Availability struct {
	Date      string     `json:"date"`
	Timezone  string     `json:"timezone"`
	Available bool       `json:"available"`
	Reason    string     `json:"reason,omitempty"`
	Slots     []TimeSlot `json:"slots"`
}

type Conflict struct {
	AppointmentID string    `json:"appointment_id"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
}

type SlotDecision struct {
	Available bool       `json:"available"`
	Reason    string     `json:"reason,omitempty"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}
