package availability

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type SlotCheck struct {
	ProviderID      string
	Start           time.Time
	DurationMinutes int
	// ExcludeAppointmentID keeps an appointment from conflicting with itself on reschedule.
	ExcludeAppointmentID string
}

// Validator is the authoritative check for one candidate slot. Its reads run
// one after another so it is safe on a single pgx transaction.
type Validator struct {
	store ValidatorStore
	opts  options
}

func NewValidator(store ValidatorStore, opts ...Option) *Validator {
	return &Validator{store: store, opts: buildOptions(opts)}
}

// WithStore returns a validator with the same options reading from store.
// The booking service uses it to bind the check to a transaction.
func (v *Validator) WithStore(store ValidatorStore) *Validator {
	return &Validator{store: store, opts: v.opts}
}

func (v *Validator) IsSlotAvailable(ctx context.Context, c SlotCheck) (SlotDecision, error) {
	ctx, span := v.opts.tracer.Start(ctx, "availability.IsSlotAvailable")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider_id", c.ProviderID),
		attribute.String("start", c.Start.UTC().Format(time.RFC3339)),
		attribute.Int("duration_minutes", c.DurationMinutes),
	)

	d, err := v.isSlotAvailable(ctx, c)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return SlotDecision{}, err
	}
	span.SetAttributes(attribute.Bool("available", d.Available), attribute.String("reason", d.Reason))
	return d, nil
}

func (v *Validator) isSlotAvailable(ctx context.Context, c SlotCheck) (SlotDecision, error) {
	if err := validateID("provider_id", c.ProviderID); err != nil {
		return SlotDecision{}, err
	}
	if strings.TrimSpace(c.ExcludeAppointmentID) != "" {
		if err := validateID("exclude_appointment_id", c.ExcludeAppointmentID); err != nil {
			return SlotDecision{}, err
		}
	}
	if c.Start.IsZero() {
		return SlotDecision{}, &ValidationError{Field: "start", Msg: "is required"}
	}
	if c.DurationMinutes <= 0 {
		return SlotDecision{}, &ValidationError{Field: "duration_minutes", Msg: "must be positive"}
	}
	candidate := Interval{Start: c.Start, End: c.Start.Add(time.Duration(c.DurationMinutes) * time.Minute)}

	var appts []BlockingAppointment
	err := v.opts.query(ctx, "load appointments", func(ctx context.Context) (err error) {
		appts, err = v.store.BlockingAppointments(ctx, c.ProviderID, candidate, c.ExcludeAppointmentID)
		return err
	})
	if err != nil {
		return SlotDecision{}, err
	}
	var conflicts []Conflict
	for _, a := range appts {
		if a.ID == c.ExcludeAppointmentID && a.ID != "" {
			continue
		}
		iv := a.Interval()
		if !a.Status.Blocking() || !iv.Overlaps(candidate) {
			continue
		}
		conflicts = append(conflicts, Conflict{AppointmentID: a.ID, Start: iv.Start, End: iv.End})
	}
	if len(conflicts) > 0 {
		sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Start.Before(conflicts[j].Start) })
		return SlotDecision{Reason: ReasonAppointmentConflict, Conflicts: conflicts}, nil
	}

	var provider Provider
	err = v.opts.query(ctx, "load provider", func(ctx context.Context) (err error) {
		provider, err = v.store.Provider(ctx, c.ProviderID)
		return err
	})
	if err != nil {
		return SlotDecision{}, err
	}
	loc, err := LoadLocation(provider.Timezone)
	if err != nil {
		return SlotDecision{}, err
	}
	date := DateOf(c.Start.In(loc))

	var exceptions []Exception
	err = v.opts.query(ctx, "load exceptions", func(ctx context.Context) (err error) {
		exceptions, err = v.store.Exceptions(ctx, c.ProviderID, date)
		return err
	})
	if err != nil {
		return SlotDecision{}, err
	}
	for _, ex := range exceptions {
		if ex.Date != date {
			continue
		}
		if ex.WholeDay() || ex.Window(loc).Overlaps(candidate) {
			return SlotDecision{Reason: ReasonExceptionConflict}, nil
		}
	}

	var blocks []ScheduleBlock
	err = v.opts.query(ctx, "load schedule blocks", func(ctx context.Context) (err error) {
		blocks, err = v.store.ScheduleBlocks(ctx, c.ProviderID, date.Weekday())
		return err
	})
	if err != nil {
		return SlotDecision{}, err
	}
	for _, b := range blocks {
		if b.AppliesOn(date) && b.Window(date, loc).Contains(candidate) {
			return SlotDecision{Available: true}, nil
		}
	}
	return SlotDecision{Reason: ReasonOutsideSchedule}, nil
}
