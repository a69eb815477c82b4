// Package weekday maps dates to the canonical lowercase weekday names used in
// plan file names and main-plan keys.
package weekday

import "time"

var names = [...]string{
	time.Sunday:    "sunday",
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
}

// Name returns the canonical weekday name of t in t's location.
func Name(t time.Time) string { return names[t.Weekday()] }

// Of returns the canonical name of d.
func Of(d time.Weekday) string { return names[d] }
