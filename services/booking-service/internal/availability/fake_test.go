package availability

import (
	"context"
	"sync"
	"time"
)

const (
	testProvider = "7b3e9d2a-1c4f-4e8a-9a51-3d2f6b8c0e11"
	testService  = "0f6c2b7e-5d8a-4b3c-8e91-2a4d6f8b1c33"
)

type fakeStore struct {
	mu sync.Mutex

	providers    map[string]Provider
	services     map[string]ServicePolicy
	blocks       []ScheduleBlock
	exceptions   []Exception
	appointments []BlockingAppointment

	// failOn makes the named call return err.
	failOn string
	err    error
	// hang makes every call wait for its context.
	hang bool

	calls map[string]int
}

func newFakeStore(tz string, policy ServicePolicy) *fakeStore {
	policy.ID = testService
	return &fakeStore{
		providers: map[string]Provider{testProvider: {ID: testProvider, Name: "Dr. Rahman", Timezone: tz}},
		services:  map[string]ServicePolicy{testService: policy},
		calls:     map[string]int{},
	}
}

func (f *fakeStore) enter(ctx context.Context, name string) error {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
	if f.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.failOn == name {
		return f.err
	}
	return nil
}

func (f *fakeStore) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeStore) Provider(ctx context.Context, id string) (Provider, error) {
	if err := f.enter(ctx, "provider"); err != nil {
		return Provider{}, err
	}
	p, ok := f.providers[id]
	if !ok {
		return Provider{}, &NotFoundError{Entity: "provider", ID: id}
	}
	return p, nil
}

func (f *fakeStore) ServicePolicy(ctx context.Context, id string) (ServicePolicy, error) {
	if err := f.enter(ctx, "service"); err != nil {
		return ServicePolicy{}, err
	}
	p, ok := f.services[id]
	if !ok {
		return ServicePolicy{}, &NotFoundError{Entity: "service", ID: id}
	}
	return p, nil
}

func (f *fakeStore) ScheduleBlocks(ctx context.Context, providerID string, weekday time.Weekday) ([]ScheduleBlock, error) {
	if err := f.enter(ctx, "blocks"); err != nil {
		return nil, err
	}
	var out []ScheduleBlock
	for _, b := range f.blocks {
		if b.ProviderID == providerID && b.Weekday == weekday {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) Exceptions(ctx context.Context, providerID string, date Date) ([]Exception, error) {
	if err := f.enter(ctx, "exceptions"); err != nil {
		return nil, err
	}
	var out []Exception
	for _, e := range f.exceptions {
		if e.ProviderID == providerID && e.Date == date {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) BlockingAppointments(ctx context.Context, providerID string, window Interval, excludeID string) ([]BlockingAppointment, error) {
	if err := f.enter(ctx, "appointments"); err != nil {
		return nil, err
	}
	var out []BlockingAppointment
	for _, a := range f.appointments {
		if a.ProviderID != providerID || a.ID == excludeID || !a.Status.Blocking() {
			continue
		}
		if a.Interval().Overlaps(window) {
			out = append(out, a)
		}
	}
	return out, nil
}

func block(weekday time.Weekday, start, end string) ScheduleBlock {
	s, err := ParseTimeOfDay(start)
	if err != nil {
		panic(err)
	}
	e, err := ParseTimeOfDay(end)
	if err != nil {
		panic(err)
	}
	return ScheduleBlock{ProviderID: testProvider, Weekday: weekday, Start: s, End: e, Active: true}
}

func tod(s string) *TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return &t
}

func mustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func startTimes(slots []TimeSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.StartTime.String())
	}
	return out
}

func containsStart(slots []TimeSlot, hhmm string) bool {
	for _, s := range slots {
		if s.StartTime.String() == hhmm {
			return true
		}
	}
	return false
}
