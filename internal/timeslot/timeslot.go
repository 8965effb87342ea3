// Package timeslot provides time-of-day arithmetic for appointment slots.
// All functions are deterministic; "now" is always an explicit input.
package timeslot

import (
	"fmt"
	"iter"
	"time"
)

const DateLayout = "2006-01-02"

// TimeOfDay is a clock time within a single day at minute resolution.
// The zero value is midnight.
type TimeOfDay struct {
	minutes int
}

func New(hour, minute int) TimeOfDay {
	return TimeOfDay{minutes: hour*60 + minute}
}

// Parse accepts "15:04" or "15:04:05". Seconds are discarded; slots are
// minute-aligned in this domain.
func Parse(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return New(t.Hour(), t.Minute()), nil
		}
	}
	return TimeOfDay{}, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
}

func (t TimeOfDay) Hour() int   { return t.minutes / 60 }
func (t TimeOfDay) Minute() int { return t.minutes % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Add returns the time n minutes later. Slots never cross midnight in this
// domain; a result past 24:00 indicates bad upstream data and is returned
// as-is for the caller to reject.
func (t TimeOfDay) Add(n int) TimeOfDay {
	return TimeOfDay{minutes: t.minutes + n}
}

func (t TimeOfDay) Before(o TimeOfDay) bool { return t.minutes < o.minutes }

func (t TimeOfDay) Compare(o TimeOfDay) int {
	switch {
	case t.minutes < o.minutes:
		return -1
	case t.minutes > o.minutes:
		return 1
	default:
		return 0
	}
}

// Microseconds converts to microseconds since midnight, the representation
// pgtype.Time uses for Postgres TIME columns.
func (t TimeOfDay) Microseconds() int64 {
	return int64(t.minutes) * 60 * 1_000_000
}

func FromMicroseconds(us int64) TimeOfDay {
	return TimeOfDay{minutes: int(us / 1_000_000 / 60)}
}

// At combines the time of day with the calendar date and location of date.
func (t TimeOfDay) At(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location())
}

// Slots enumerates slot start times at a fixed stride from start up to but
// excluding end. The sequence is lazy and can be ranged over more than once.
func Slots(start, end TimeOfDay, strideMinutes int) iter.Seq[TimeOfDay] {
	return func(yield func(TimeOfDay) bool) {
		if strideMinutes <= 0 {
			return
		}
		for cur := start; cur.Before(end); cur = cur.Add(strideMinutes) {
			if !yield(cur) {
				return
			}
		}
	}
}

// WithinBuffer reports whether candidate falls before now+buffer, i.e. is too
// soon (or already past) to be booked.
func WithinBuffer(candidate, now time.Time, buffer time.Duration) bool {
	return candidate.Before(now.Add(buffer))
}

// ParseDate validates a calendar date in YYYY-MM-DD form. The result is
// midnight local time so that At and SameDay compare in the caller's zone.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
