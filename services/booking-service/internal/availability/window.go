package availability

import "time"

const (
	ReasonDateInPast           = "date_in_past"
	ReasonSameDayNotAllowed    = "same_day_not_allowed"
	ReasonAdvanceLimitExceeded = "advance_limit_exceeded"
	ReasonNoSchedule           = "no_schedule"
	ReasonFullyBooked          = "fully_booked"
	ReasonAppointmentConflict  = "appointment_conflict"
	ReasonOutsideSchedule      = "outside_schedule"
	ReasonExceptionConflict    = "exception_conflict"
	ReasonStartInPast          = "start_in_past"
)

type WindowDecision struct {
	Valid  bool
	Reason string
}

// ValidateDate applies the booking window of policy to date. now must already
// be expressed in the provider's timezone; "today" is its calendar date.
// A negative MaxAdvanceDays disables the advance limit; zero allows today only.
func ValidateDate(date Date, policy ServicePolicy, now time.Time) WindowDecision {
	today := DateOf(now)
	switch {
	case date.Before(today):
		return WindowDecision{Reason: ReasonDateInPast}
	case date == today && !policy.SameDayAllowed:
		return WindowDecision{Reason: ReasonSameDayNotAllowed}
	case policy.MaxAdvanceDays >= 0 && date.DaysSince(today) > policy.MaxAdvanceDays:
		return WindowDecision{Reason: ReasonAdvanceLimitExceeded}
	}
	return WindowDecision{Valid: true}
}
