package availability

import (
	"testing"
	"time"
)

func TestParseTimeOfDay(t *testing.T) {
	cases := map[string]TimeOfDay{
		"00:00":    0,
		"09:30":    NewTimeOfDay(9, 30),
		"17:45:00": NewTimeOfDay(17, 45),
		"24:00":    EndOfDay,
	}
	for in, want := range cases {
		got, err := ParseTimeOfDay(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %s, got %s", in, want, got)
		}
	}
	for _, bad := range []string{"", "9", "25:00", "24:30", "10:60", "10:5", "10:00:30", "ab:cd"} {
		if _, err := ParseTimeOfDay(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestTimeOfDayOnEndOfDayRollsOver(t *testing.T) {
	d := mustDate("2026-03-02")
	got := EndOfDay.On(d, time.UTC)
	want := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if c := clockOn(got, d, time.UTC); c != EndOfDay {
		t.Fatalf("expected 24:00, got %s", c)
	}
}

func TestDateArithmetic(t *testing.T) {
	d := mustDate("2026-02-27")
	if got := d.AddDays(2).String(); got != "2026-03-01" {
		t.Fatalf("expected 2026-03-01, got %s", got)
	}
	if got := mustDate("2026-03-02").Weekday(); got != time.Monday {
		t.Fatalf("expected Monday, got %s", got)
	}
	if got := mustDate("2026-04-01").DaysSince(mustDate("2026-03-02")); got != 30 {
		t.Fatalf("expected 30 days, got %d", got)
	}
	if _, err := ParseDate("2026-13-01"); err == nil {
		t.Fatalf("expected invalid month to fail")
	}
}

func TestDateBoundsAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	b := mustDate("2026-03-08").Bounds(loc)
	if got := b.End.Sub(b.Start); got != 23*time.Hour {
		t.Fatalf("expected 23h spring-forward day, got %s", got)
	}
}

func TestIntervalHalfOpen(t *testing.T) {
	base := time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC)
	a := Interval{Start: base, End: base.Add(30 * time.Minute)}
	adjacent := Interval{Start: base.Add(-30 * time.Minute), End: base}
	if a.Overlaps(adjacent) || adjacent.Overlaps(a) {
		t.Fatalf("adjacent intervals must not overlap")
	}
	inner := Interval{Start: base.Add(10 * time.Minute), End: base.Add(20 * time.Minute)}
	if !a.Overlaps(inner) || !a.Contains(inner) {
		t.Fatalf("expected inner interval to overlap and be contained")
	}
	if inner.Contains(a) {
		t.Fatalf("inner must not contain outer")
	}
}

func TestCeilToGranularity(t *testing.T) {
	d := mustDate("2026-03-02")
	cases := []struct {
		in   time.Time
		want string
	}{
		{time.Date(2026, 3, 2, 14, 20, 0, 0, time.UTC), "14:30"},
		{time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC), "14:30"},
		{time.Date(2026, 3, 2, 14, 30, 1, 0, time.UTC), "14:45"},
		{time.Date(2026, 3, 2, 23, 50, 0, 0, time.UTC), "24:00"},
	}
	for _, c := range cases {
		got := ceilToGranularity(c.in, d, time.UTC, 15)
		if s := clockOn(got, d, time.UTC).String(); s != c.want {
			t.Fatalf("ceil %s: expected %s, got %s", c.in.Format("15:04:05"), c.want, s)
		}
	}
}
