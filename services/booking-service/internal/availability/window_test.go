package availability

import (
	"testing"
	"time"
)

func TestValidateDate(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 5, 0, 0, time.UTC)
	policy := ServicePolicy{DurationMinutes: 30, MaxAdvanceDays: 30, SameDayAllowed: true}

	cases := []struct {
		name   string
		date   string
		policy ServicePolicy
		want   string
	}{
		{"yesterday", "2026-03-01", policy, ReasonDateInPast},
		{"today allowed", "2026-03-02", policy, ""},
		{"today not allowed", "2026-03-02", ServicePolicy{MaxAdvanceDays: 30}, ReasonSameDayNotAllowed},
		{"at advance limit", "2026-04-01", policy, ""},
		{"past advance limit", "2026-04-02", policy, ReasonAdvanceLimitExceeded},
		{"max 0, today", "2026-03-02", ServicePolicy{SameDayAllowed: true}, ""},
		{"max 0, tomorrow", "2026-03-03", ServicePolicy{SameDayAllowed: true}, ReasonAdvanceLimitExceeded},
		{"no advance limit", "2027-03-02", ServicePolicy{MaxAdvanceDays: -1, SameDayAllowed: true}, ""},
	}
	for _, c := range cases {
		got := ValidateDate(mustDate(c.date), c.policy, now)
		if got.Reason != c.want || got.Valid != (c.want == "") {
			t.Fatalf("%s: expected reason %q, got %+v", c.name, c.want, got)
		}
	}
}

func TestValidateDateUsesProviderCalendar(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Dhaka")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// 20:00 UTC on Mar 1 is already Mar 2 in Dhaka.
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC).In(loc)
	got := ValidateDate(mustDate("2026-03-01"), ServicePolicy{SameDayAllowed: true}, now)
	if got.Reason != ReasonDateInPast {
		t.Fatalf("expected date_in_past, got %+v", got)
	}
}
