// Package window derives trigger fire times from class times.
//
// The booking site opens its window a fixed civil-time offset before each
// class (default 7 days + 1 hour). All arithmetic here is done on calendar
// fields (weekday, hour, minute), never on absolute instants: subtracting
// an hour from "Monday 16:30" yields "Monday 15:30" on both sides of a DST
// transition, with no silent drift.
package window

import (
	"fmt"
	"time"

	"classbot/internal/config"
)

// FireSpec is the recurring weekly fire slot for one ClassTarget: the
// weekday and wall-clock time the trigger runs, plus how many days ahead
// of the fire date the class date lies.
type FireSpec struct {
	Weekday time.Weekday
	Time    config.TimeOfDay

	// DaysAhead is the calendar distance from fire date to class date.
	// With the default offset it is 7; it grows by one when the hour
	// subtraction crosses midnight (e.g. class Monday 00:30 - 1h fires
	// Sunday 23:30, one day ahead).
	DaysAhead int
}

func (f FireSpec) String() string {
	return fmt.Sprintf("%s %s (+%dd)", f.Weekday, f.Time, f.DaysAhead)
}

// Compute derives the weekly fire slot for target. The target must have
// passed config validation; Compute is total over that domain.
func Compute(target config.ClassTarget) FireSpec {
	off := target.Offset()

	minutes := target.Start.Minutes() - off.Hours*60
	borrow := 0
	for minutes < 0 {
		minutes += 24 * 60
		borrow++
	}

	daysBack := off.Days + borrow
	// Go weekdays are 0=Sunday..6=Saturday; keep the modulus positive.
	fireDay := time.Weekday(((int(target.Weekday)-daysBack)%7 + 7) % 7)

	return FireSpec{
		Weekday:   fireDay,
		Time:      config.TimeOfDay{Hour: minutes / 60, Minute: minutes % 60},
		DaysAhead: daysBack,
	}
}

// NextOccurrence returns the first instant at or after now whose local
// calendar fields in loc match spec. The result is built with time.Date on
// civil fields, so the wall-clock time holds across DST transitions.
func NextOccurrence(spec FireSpec, now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	daysUntil := (int(spec.Weekday) - int(local.Weekday()) + 7) % 7

	candidate := time.Date(local.Year(), local.Month(), local.Day()+daysUntil,
		spec.Time.Hour, spec.Time.Minute, 0, 0, loc)
	if candidate.Before(local) {
		candidate = time.Date(local.Year(), local.Month(), local.Day()+daysUntil+7,
			spec.Time.Hour, spec.Time.Minute, 0, 0, loc)
	}
	return candidate
}

// ClassDate returns the calendar date the fired trigger should book,
// given the instant the trigger fired.
func ClassDate(spec FireSpec, firedAt time.Time, loc *time.Location) time.Time {
	local := firedAt.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+spec.DaysAhead, 0, 0, 0, 0, loc)
}
