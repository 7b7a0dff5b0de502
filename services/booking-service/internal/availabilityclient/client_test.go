package availabilityclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/grpcx"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/grpcserver"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
)

type fakeAvailability struct {
	err   error
	query availability.SlotQuery
	check availability.SlotCheck
}

func (f *fakeAvailability) AvailableSlots(_ context.Context, q availability.SlotQuery) (availability.Availability, error) {
	f.query = q
	if f.err != nil {
		return availability.Availability{}, f.err
	}
	start := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	return availability.Availability{
		Date:      q.Date,
		Timezone:  "UTC",
		Available: true,
		Slots: []availability.TimeSlot{{
			StartTime: availability.NewTimeOfDay(11, 0),
			EndTime:   availability.NewTimeOfDay(11, 30),
			Start:     start,
			End:       start.Add(30 * time.Minute),
		}},
	}, nil
}

func (f *fakeAvailability) CheckSlot(_ context.Context, c availability.SlotCheck) (availability.SlotDecision, error) {
	f.check = c
	if f.err != nil {
		return availability.SlotDecision{}, f.err
	}
	return availability.SlotDecision{
		Available: false,
		Reason:    availability.ReasonAppointmentConflict,
		Conflicts: []availability.Conflict{{AppointmentID: "a1", Start: c.Start, End: c.Start.Add(30 * time.Minute)}},
	}, nil
}

func startServer(t *testing.T, svc grpcserver.Availability) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpcx.NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	grpcserver.Register(srv, svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	dialer := grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	})
	c, err := Dial(context.Background(), "passthrough:///bufnet", grpcx.DialOptions{}, dialer)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGetAvailableSlotsRoundTrip(t *testing.T) {
	svc := &fakeAvailability{}
	c := startServer(t, svc)

	res, err := c.GetAvailableSlots(context.Background(), availability.SlotQuery{
		ProviderID: "p", ServiceID: "s", Date: "2026-03-02", Timezone: "UTC",
	})
	if err != nil {
		t.Fatalf("GetAvailableSlots: %v", err)
	}
	if svc.query.ProviderID != "p" || svc.query.Date != "2026-03-02" {
		t.Fatalf("unexpected query %+v", svc.query)
	}
	if !res.Available || len(res.Slots) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Slots[0].StartTime != availability.NewTimeOfDay(11, 0) {
		t.Fatalf("unexpected start %s", res.Slots[0].StartTime)
	}
	if !res.Slots[0].End.Equal(time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected end %s", res.Slots[0].End)
	}
}

func TestIsSlotAvailableRoundTrip(t *testing.T) {
	svc := &fakeAvailability{}
	c := startServer(t, svc)
	start := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)

	res, err := c.IsSlotAvailable(context.Background(), availability.SlotCheck{
		ProviderID: "p", Start: start, DurationMinutes: 45, ExcludeAppointmentID: "x",
	})
	if err != nil {
		t.Fatalf("IsSlotAvailable: %v", err)
	}
	if svc.check.DurationMinutes != 45 || svc.check.ExcludeAppointmentID != "x" || !svc.check.Start.Equal(start) {
		t.Fatalf("unexpected check %+v", svc.check)
	}
	if res.Available || res.Reason != availability.ReasonAppointmentConflict || len(res.Conflicts) != 1 {
		t.Fatalf("unexpected decision %+v", res)
	}
}

func TestErrorKindsSurviveTransport(t *testing.T) {
	cases := []struct {
		err    error
		target error
	}{
		{&availability.ValidationError{Field: "date", Msg: "bad"}, availability.ErrValidation},
		{&availability.NotFoundError{Entity: "provider", ID: "p"}, availability.ErrNotFound},
		{availability.Transient("load provider", errors.New("conn refused")), availability.ErrTransient},
	}
	for _, tc := range cases {
		c := startServer(t, &fakeAvailability{err: tc.err})
		_, err := c.GetAvailableSlots(context.Background(), availability.SlotQuery{ProviderID: "p"})
		if !errors.Is(err, tc.target) {
			t.Fatalf("%v: expected %v, got %v", tc.err, tc.target, err)
		}
	}
}

func TestHealthy(t *testing.T) {
	c := startServer(t, &fakeAvailability{})
	if err := c.Healthy(context.Background()); err != nil {
		t.Fatalf("Healthy: %v", err)
	}
}
