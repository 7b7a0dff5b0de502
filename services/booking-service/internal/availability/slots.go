package availability

import "time"

// FreeSlots walks window in step increments and returns every candidate
// [t, t+duration) that fits inside window, starts no earlier than earliest and
// overlaps none of busy.
func FreeSlots(window Interval, duration, step time.Duration, busy []Interval, earliest time.Time) []Interval {
	if duration <= 0 || step <= 0 || !window.Valid() {
		return nil
	}

	var free []Interval
	for t := window.Start; !t.Add(duration).After(window.End); t = t.Add(step) {
		if t.Before(earliest) {
			continue
		}
		slot := Interval{Start: t, End: t.Add(duration)}
		if !overlapsAny(slot, busy) {
			free = append(free, slot)
		}
	}
	return free
}
