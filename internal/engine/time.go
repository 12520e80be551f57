package engine

import (
	"fmt"
	"time"
)

// Day is one simulated day.
const Day = 24 * time.Hour

// Time is a point in simulated time, measured as the offset from the start
// of the run. It never decreases while a Scheduler advances.
type Time time.Duration

// At converts a number of simulated days into a Time.
func At(days float64) Time {
	return Time(days * float64(Day))
}

// Add returns t shifted by d.
func (t Time) Add(d time.Duration) Time {
	return t + Time(d)
}

// Sub returns the duration between t and u.
func (t Time) Sub(u Time) time.Duration {
	return time.Duration(t - u)
}

// Before reports whether t is strictly earlier than u.
func (t Time) Before(u Time) bool { return t < u }

// After reports whether t is strictly later than u.
func (t Time) After(u Time) bool { return t > u }

// Days returns t expressed in (fractional) simulated days.
func (t Time) Days() float64 {
	return float64(t) / float64(Day)
}

// Max returns the later of a and b.
func Max(a, b Time) Time {
	if a > b {
		return a
	}
	return b
}

// String renders t as a human-readable simulation time, e.g. "Day 3, 14:05".
func (t Time) String() string {
	total := time.Duration(t)
	if total < 0 {
		return "-" + Time(-total).String()
	}
	days := total / Day
	rem := total % Day
	hours := rem / time.Hour
	minutes := (rem % time.Hour) / time.Minute
	return fmt.Sprintf("Day %d, %d:%02d", days+1, hours, minutes)
}
