package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a civil calendar date. It carries no location; it is turned into
// instants only through Midnight/Bounds or TimeOfDay.On with an explicit zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// noonUTC is used for calendar arithmetic so DST never shifts the day.
func (d Date) noonUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}

func (d Date) Weekday() time.Weekday { return d.noonUTC().Weekday() }

func (d Date) AddDays(n int) Date { return DateOf(d.noonUTC().AddDate(0, 0, n)) }

func (d Date) Before(o Date) bool { return d.noonUTC().Before(o.noonUTC()) }

func (d Date) After(o Date) bool { return d.noonUTC().After(o.noonUTC()) }

// DaysSince returns d - o in whole calendar days.
func (d Date) DaysSince(o Date) int {
	return int(d.noonUTC().Sub(o.noonUTC()).Hours() / 24)
}

func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Bounds is the provider-local day [00:00, next 00:00) as instants.
func (d Date) Bounds(loc *time.Location) Interval {
	return Interval{Start: d.Midnight(loc), End: d.AddDays(1).Midnight(loc)}
}

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is a local wall-clock time in minutes after midnight. 24:00 is
// accepted as an end bound.
type TimeOfDay int

const EndOfDay TimeOfDay = 24 * 60

func NewTimeOfDay(hour, minute int) TimeOfDay { return TimeOfDay(hour*60 + minute) }

// ParseTimeOfDay accepts "HH:MM" and the "HH:MM:SS" form Postgres renders for time columns.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("time of day must be HH:MM (got %q)", s)
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || len(parts[1]) != 2 {
		return 0, fmt.Errorf("time of day must be HH:MM (got %q)", s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.ParseFloat(parts[2], 64); err != nil || sec != 0 {
			return 0, fmt.Errorf("time of day must be on a whole minute (got %q)", s)
		}
	}
	if m < 0 || m > 59 || h < 0 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time of day out of range (got %q)", s)
	}
	return NewTimeOfDay(h, m), nil
}

// ClockOf returns the wall clock of t in its own location, truncated to the minute.
func ClockOf(t time.Time) TimeOfDay {
	return NewTimeOfDay(t.Hour(), t.Minute())
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On anchors t to date d in loc. 24:00 becomes midnight of the following day.
func (t TimeOfDay) On(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, t.Hour(), t.Minute(), 0, 0, loc)
}

func (t TimeOfDay) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// clockOn renders instant i as a wall clock relative to day d, so an end that
// lands exactly on the next midnight reads 24:00 rather than 00:00.
func clockOn(i time.Time, d Date, loc *time.Location) TimeOfDay {
	local := i.In(loc)
	if DateOf(local).After(d) && local.Hour() == 0 && local.Minute() == 0 {
		return EndOfDay
	}
	return ClockOf(local)
}

// Interval is a half-open range of instants [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Valid() bool { return i.End.After(i.Start) }

// Overlaps uses half-open semantics: touching intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

func overlapsAny(c Interval, busy []Interval) bool {
	for _, b := range busy {
		if c.Overlaps(b) {
			return true
		}
	}
	return false
}

// ceilToGranularity rounds t up to the next wall-clock multiple of step
// minutes on day d. Instants on a later day are returned unchanged.
func ceilToGranularity(t time.Time, d Date, loc *time.Location, step int) time.Time {
	local := t.In(loc)
	if DateOf(local) != d || step <= 0 {
		return t
	}
	mins := local.Hour()*60 + local.Minute()
	if local.Second() > 0 || local.Nanosecond() > 0 {
		mins++
	}
	if rem := mins % step; rem != 0 {
		mins += step - rem
	}
	rounded := TimeOfDay(mins).On(d, loc)
	if rounded.Before(t) {
		// Wall clock repeated by a DST fall-back; keep the absolute bound.
		return t
	}
	return rounded
}
