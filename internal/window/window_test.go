package window

import (
	"testing"
	"time"

	"classbot/internal/config"
)

func target(day string, clock string, off *config.Offset) config.ClassTarget {
	t := config.ClassTarget{Day: day, Time: clock, Name: "x", User: "u", BookingWindowOffset: off}
	wd, err := config.ParseWeekday(day)
	if err != nil {
		panic(err)
	}
	t.Weekday = wd
	start, err := config.ParseClockTime(clock)
	if err != nil {
		panic(err)
	}
	t.Start = start
	return t
}

func TestComputeDefaultOffset(t *testing.T) {
	t.Parallel()
	// Monday 16:30 class, default 7d+1h: fires Monday 15:30, 7 days ahead.
	spec := Compute(target("Monday", "4:30 PM", nil))
	if spec.Weekday != time.Monday {
		t.Fatalf("Weekday = %v, want Monday", spec.Weekday)
	}
	if spec.Time != (config.TimeOfDay{Hour: 15, Minute: 30}) {
		t.Fatalf("Time = %v, want 15:30", spec.Time)
	}
	if spec.DaysAhead != 7 {
		t.Fatalf("DaysAhead = %d, want 7", spec.DaysAhead)
	}
}

func TestComputeMidnightWrapShiftsWeekday(t *testing.T) {
	t.Parallel()
	// Monday 00:30 class, 1 hour offset: the subtraction crosses midnight,
	// so the trigger fires Sunday 23:30 one day ahead of the class.
	spec := Compute(target("Monday", "00:30", &config.Offset{Hours: 1}))
	if spec.Weekday != time.Sunday {
		t.Fatalf("Weekday = %v, want Sunday", spec.Weekday)
	}
	if spec.Time != (config.TimeOfDay{Hour: 23, Minute: 30}) {
		t.Fatalf("Time = %v, want 23:30", spec.Time)
	}
	if spec.DaysAhead != 1 {
		t.Fatalf("DaysAhead = %d, want 1", spec.DaysAhead)
	}
}

func TestComputeWrapWithWholeDays(t *testing.T) {
	t.Parallel()
	// Default rule applied to an early class: Sunday 00:15 - 7d1h fires
	// Saturday 23:15, 8 days ahead.
	spec := Compute(target("Sunday", "00:15", nil))
	if spec.Weekday != time.Saturday {
		t.Fatalf("Weekday = %v, want Saturday", spec.Weekday)
	}
	if spec.Time != (config.TimeOfDay{Hour: 23, Minute: 15}) {
		t.Fatalf("Time = %v, want 23:15", spec.Time)
	}
	if spec.DaysAhead != 8 {
		t.Fatalf("DaysAhead = %d, want 8", spec.DaysAhead)
	}
}

func TestNextOccurrenceStableAcrossSpringForward(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	spec := Compute(target("Monday", "4:30 PM", nil))

	// 2025-03-09 02:00 EST -> EDT. Compute the fire instant from a
	// reference before the transition and one after: the local wall-clock
	// time must be 15:30 in both cases.
	before := time.Date(2025, 3, 4, 12, 0, 0, 0, loc)
	after := time.Date(2025, 3, 11, 12, 0, 0, 0, loc)

	for _, now := range []time.Time{before, after} {
		fire := NextOccurrence(spec, now, loc)
		if fire.Weekday() != time.Monday {
			t.Fatalf("fire weekday = %v, want Monday", fire.Weekday())
		}
		if fire.Hour() != 15 || fire.Minute() != 30 {
			t.Fatalf("fire local time = %02d:%02d, want 15:30 (now=%v)", fire.Hour(), fire.Minute(), now)
		}
	}
}

func TestNextOccurrenceStableAcrossFallBack(t *testing.T) {
	t.Parallel()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	spec := Compute(target("Wednesday", "9:00 AM", nil))

	// 2025-11-02 02:00 EDT -> EST.
	before := time.Date(2025, 10, 28, 12, 0, 0, 0, loc)
	after := time.Date(2025, 11, 4, 12, 0, 0, 0, loc)

	for _, now := range []time.Time{before, after} {
		fire := NextOccurrence(spec, now, loc)
		if fire.Hour() != 8 || fire.Minute() != 0 {
			t.Fatalf("fire local time = %02d:%02d, want 08:00 (now=%v)", fire.Hour(), fire.Minute(), now)
		}
	}
}

func TestNextOccurrenceSameDayRollsForward(t *testing.T) {
	t.Parallel()
	// Reference is a Monday after the fire time: next occurrence is the
	// following Monday, not today.
	spec := Compute(target("Monday", "4:30 PM", nil))
	now := time.Date(2025, 6, 2, 16, 0, 0, 0, time.UTC) // Monday 16:00 > 15:30
	fire := NextOccurrence(spec, now, time.UTC)
	if fire.Day() != 9 {
		t.Fatalf("fire day = %d, want 9 (next Monday)", fire.Day())
	}
}

func TestClassDate(t *testing.T) {
	t.Parallel()
	spec := Compute(target("Monday", "00:30", &config.Offset{Hours: 1}))
	// Fired Sunday 2025-06-01 23:30: class date is Monday 2025-06-02.
	fired := time.Date(2025, 6, 1, 23, 30, 0, 0, time.UTC)
	d := ClassDate(spec, fired, time.UTC)
	if d.Year() != 2025 || d.Month() != time.June || d.Day() != 2 {
		t.Fatalf("class date = %v, want 2025-06-02", d)
	}
}
