package availability

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

type SlotQuery struct {
	ProviderID string
	ServiceID  string
	Date       string
	// Timezone is an IANA name used only to render the slots. Date and the
	// schedule are always read in the provider's own timezone.
	Timezone string
}

// Engine lists bookable slots. It holds no state between calls.
type Engine struct {
	store Store
	opts  options
}

func NewEngine(store Store, opts ...Option) *Engine {
	return &Engine{store: store, opts: buildOptions(opts)}
}

func (e *Engine) GetAvailableSlots(ctx context.Context, q SlotQuery) (Availability, error) {
	ctx, span := e.opts.tracer.Start(ctx, "availability.GetAvailableSlots")
	defer span.End()
	span.SetAttributes(
		attribute.String("provider_id", q.ProviderID),
		attribute.String("service_id", q.ServiceID),
		attribute.String("date", q.Date),
	)

	res, err := e.getAvailableSlots(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Availability{}, err
	}
	span.SetAttributes(attribute.Int("slots", len(res.Slots)), attribute.String("reason", res.Reason))
	return res, nil
}

func (e *Engine) getAvailableSlots(ctx context.Context, q SlotQuery) (Availability, error) {
	if err := validateID("provider_id", q.ProviderID); err != nil {
		return Availability{}, err
	}
	if err := validateID("service_id", q.ServiceID); err != nil {
		return Availability{}, err
	}
	date, err := ParseDate(q.Date)
	if err != nil {
		return Availability{}, &ValidationError{Field: "date", Msg: err.Error()}
	}
	var display *time.Location
	if strings.TrimSpace(q.Timezone) != "" {
		if display, err = LoadLocation(q.Timezone); err != nil {
			return Availability{}, err
		}
	}

	var (
		provider Provider
		policy   ServicePolicy
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.opts.query(gctx, "load provider", func(ctx context.Context) (err error) {
			provider, err = e.store.Provider(ctx, q.ProviderID)
			return err
		})
	})
	g.Go(func() error {
		return e.opts.query(gctx, "load service", func(ctx context.Context) (err error) {
			policy, err = e.store.ServicePolicy(ctx, q.ServiceID)
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return Availability{}, err
	}
	loc, err := LoadLocation(provider.Timezone)
	if err != nil {
		return Availability{}, err
	}
	if display == nil {
		display = loc
	}
	if policy.DurationMinutes <= 0 {
		return Availability{}, &ValidationError{Field: "service_id", Msg: "service has no duration"}
	}
	policy = policy.withDefaults()

	now := e.opts.now().In(loc)
	res := Availability{Date: date.String(), Timezone: display.String(), Slots: []TimeSlot{}}
	if d := ValidateDate(date, policy, now); !d.Valid {
		res.Reason = d.Reason
		return res, nil
	}

	var (
		blocks       []ScheduleBlock
		exceptions   []Exception
		appointments []BlockingAppointment
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.opts.query(gctx, "load schedule blocks", func(ctx context.Context) (err error) {
			blocks, err = e.store.ScheduleBlocks(ctx, q.ProviderID, date.Weekday())
			return err
		})
	})
	g.Go(func() error {
		return e.opts.query(gctx, "load exceptions", func(ctx context.Context) (err error) {
			exceptions, err = e.store.Exceptions(ctx, q.ProviderID, date)
			return err
		})
	})
	g.Go(func() error {
		return e.opts.query(gctx, "load appointments", func(ctx context.Context) (err error) {
			appointments, err = e.store.BlockingAppointments(ctx, q.ProviderID, date.Bounds(loc), "")
			return err
		})
	})
	if err := g.Wait(); err != nil {
		return Availability{}, err
	}

	slots, reason := planDay(dayPlan{
		date:         date,
		loc:          loc,
		now:          now,
		policy:       policy,
		blocks:       blocks,
		exceptions:   exceptions,
		appointments: appointments,
	})
	if slots != nil {
		res.Slots = renderIn(slots, display)
	}
	res.Available = len(res.Slots) > 0
	res.Reason = reason
	return res, nil
}

// renderIn re-expresses slots in loc. Instants are unchanged so each slot
// still passes the validator.
func renderIn(slots []TimeSlot, loc *time.Location) []TimeSlot {
	for i, s := range slots {
		start := s.Start.In(loc)
		slots[i] = TimeSlot{
			StartTime: ClockOf(start),
			EndTime:   clockOn(s.End, DateOf(start), loc),
			Start:     start,
			End:       s.End.In(loc),
		}
	}
	return slots
}

type dayPlan struct {
	date         Date
	loc          *time.Location
	now          time.Time
	policy       ServicePolicy
	blocks       []ScheduleBlock
	exceptions   []Exception
	appointments []BlockingAppointment
}

// planDay is the pure part of slot listing. It returns the ordered slots, or
// no slots and the reason the day has none.
func planDay(p dayPlan) ([]TimeSlot, string) {
	busy := make([]Interval, 0, len(p.appointments)+len(p.exceptions))
	for _, ex := range p.exceptions {
		if ex.Date != p.date {
			continue
		}
		if ex.WholeDay() {
			return nil, ex.DisplayReason()
		}
		busy = append(busy, ex.Window(p.loc))
	}

	var active []ScheduleBlock
	for _, b := range p.blocks {
		if b.AppliesOn(p.date) {
			active = append(active, b)
		}
	}
	if len(active) == 0 {
		return nil, ReasonNoSchedule
	}

	for _, a := range p.appointments {
		if a.Status.Blocking() {
			busy = append(busy, a.Interval())
		}
	}

	duration := time.Duration(p.policy.DurationMinutes) * time.Minute
	step := time.Duration(p.policy.GranularityMinutes) * time.Minute
	threshold := p.now.Add(time.Duration(p.policy.BufferMinutes) * time.Minute)

	seen := make(map[int64]struct{})
	var slots []TimeSlot
	for _, b := range active {
		w := b.Window(p.date, p.loc)
		start := w.Start
		if start.Before(threshold) {
			start = ceilToGranularity(threshold, p.date, p.loc, p.policy.GranularityMinutes)
		}
		for _, s := range FreeSlots(Interval{Start: start, End: w.End}, duration, step, busy, threshold) {
			key := s.Start.UnixNano()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			slots = append(slots, TimeSlot{
				StartTime: clockOn(s.Start, p.date, p.loc),
				EndTime:   clockOn(s.End, p.date, p.loc),
				Start:     s.Start,
				End:       s.End,
			})
		}
	}
	if len(slots) == 0 {
		return nil, ReasonFullyBooked
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots, ""
}

func validateID(field, id string) error {
	if _, err := uuid.Parse(strings.TrimSpace(id)); err != nil {
		return &ValidationError{Field: field, Msg: "must be a UUID"}
	}
	return nil
}

// LoadLocation resolves an IANA zone name. "Local" is rejected because it
// depends on the host.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, &ValidationError{Field: "timezone", Msg: "must be an IANA zone name"}
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, &ValidationError{Field: "timezone", Msg: "unknown zone " + name}
	}
	return loc, nil
}
