package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
)

func (r *Repository) Provider(ctx context.Context, providerID string) (availability.Provider, error) {
	var p availability.Provider
	err := r.db.QueryRow(ctx, `
		SELECT id::text, name, timezone
		FROM providers
		WHERE id = $1
	`, providerID).Scan(&p.ID, &p.Name, &p.Timezone)
	if err != nil {
		if IsNotFound(err) {
			return availability.Provider{}, &availability.NotFoundError{Entity: "provider", ID: providerID}
		}
		return availability.Provider{}, err
	}
	return p, nil
}

// ServicePolicy maps a NULL max_advance_days to -1 (no advance limit).
func (r *Repository) ServicePolicy(ctx context.Context, serviceID string) (availability.ServicePolicy, error) {
	var p availability.ServicePolicy
	err := r.db.QueryRow(ctx, `
		SELECT id::text, name, duration_minutes, COALESCE(max_advance_days, -1), same_day_allowed,
			granularity_minutes, buffer_minutes
		FROM services
		WHERE id = $1
	`, serviceID).Scan(&p.ID, &p.Name, &p.DurationMinutes, &p.MaxAdvanceDays, &p.SameDayAllowed,
		&p.GranularityMinutes, &p.BufferMinutes)
	if err != nil {
		if IsNotFound(err) {
			return availability.ServicePolicy{}, &availability.NotFoundError{Entity: "service", ID: serviceID}
		}
		return availability.ServicePolicy{}, err
	}
	return p, nil
}

// ScheduleBlocks uses Postgres weekday numbering (0 = Sunday), which matches time.Weekday.
func (r *Repository) ScheduleBlocks(ctx context.Context, providerID string, weekday time.Weekday) ([]availability.ScheduleBlock, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, provider_id::text, weekday,
			to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
			is_active, effective_from, effective_until
		FROM schedule_blocks
		WHERE provider_id = $1 AND weekday = $2
		ORDER BY start_time ASC
	`, providerID, int(weekday))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []availability.ScheduleBlock
	for rows.Next() {
		var (
			b          availability.ScheduleBlock
			wd         int
			start, end string
			from, till *time.Time
		)
		if err := rows.Scan(&b.ID, &b.ProviderID, &wd, &start, &end, &b.Active, &from, &till); err != nil {
			return nil, err
		}
		b.Weekday = time.Weekday(wd)
		if b.Start, err = availability.ParseTimeOfDay(start); err != nil {
			return nil, err
		}
		if b.End, err = availability.ParseTimeOfDay(end); err != nil {
			return nil, err
		}
		b.EffectiveFrom = datePtr(from)
		b.EffectiveUntil = datePtr(till)
		blocks = append(blocks, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return blocks, nil
}

func (r *Repository) Exceptions(ctx context.Context, providerID string, date availability.Date) ([]availability.Exception, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, provider_id::text, exception_date,
			to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
			kind, COALESCE(reason, '')
		FROM availability_exceptions
		WHERE provider_id = $1 AND exception_date = $2::date
		ORDER BY start_time ASC NULLS FIRST
	`, providerID, date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.Exception
	for rows.Next() {
		var (
			e          availability.Exception
			day        time.Time
			start, end *string
			kind       string
		)
		if err := rows.Scan(&e.ID, &e.ProviderID, &day, &start, &end, &kind, &e.Reason); err != nil {
			return nil, err
		}
		e.Date = availability.DateOf(day)
		e.Kind = availability.ExceptionKind(kind)
		if e.Start, err = timeOfDayPtr(start); err != nil {
			return nil, err
		}
		if e.End, err = timeOfDayPtr(end); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// BlockingAppointments returns appointments in a blocking status that overlap
// [window.Start, window.End).
func (r *Repository) BlockingAppointments(ctx context.Context, providerID string, window availability.Interval, excludeID string) ([]availability.BlockingAppointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, provider_id::text, start_time, duration_minutes, status
		FROM appointments
		WHERE provider_id = $1
			AND status = ANY($2)
			AND start_time < $4
			AND start_time + make_interval(mins => duration_minutes) > $3
			AND ($5 = '' OR id::text <> $5)
		ORDER BY start_time ASC
	`, providerID, blockingStatuses(), window.Start, window.End, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []availability.BlockingAppointment
	for rows.Next() {
		var (
			a      availability.BlockingAppointment
			status string
		)
		if err := rows.Scan(&a.ID, &a.ProviderID, &a.Start, &a.DurationMinutes, &status); err != nil {
			return nil, err
		}
		a.Status = availability.AppointmentStatus(status)
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func blockingStatuses() []string {
	out := make([]string, 0, len(availability.BlockingStatuses))
	for _, s := range availability.BlockingStatuses {
		out = append(out, string(s))
	}
	return out
}

func datePtr(t *time.Time) *availability.Date {
	if t == nil {
		return nil
	}
	d := availability.DateOf(*t)
	return &d
}

func timeOfDayPtr(s *string) (*availability.TimeOfDay, error) {
	if s == nil {
		return nil, nil
	}
	t, err := availability.ParseTimeOfDay(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
