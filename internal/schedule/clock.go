// internal/schedule/clock.go
package schedule

import (
	"time"
)

// RoundLength is the spacing between round boundaries.
const RoundLength = 3 * time.Hour

const roundHours = int(RoundLength / time.Hour)

// NextRoundBoundary returns the next 3-hour aligned local hour (00, 03, ... 21)
// strictly after now, in now's location.
func NextRoundBoundary(now time.Time) time.Time {
	h := now.Hour()
	// ceil((h+1)/3)*3; hour 24 normalises to next day 00:00
	nextHour := ((h + roundHours) / roundHours) * roundHours

	y, m, d := now.Date()
	candidate := time.Date(y, m, d, nextHour, 0, 0, 0, now.Location())
	if !candidate.After(now) {
		candidate = time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())
	}
	return candidate
}

// CurrentRoundNumber maps now to a 1-indexed round, wrapping modulo rounds.
// Slot k of the day (00-03 is slot 1) maps to ((k-1) % rounds) + 1.
func CurrentRoundNumber(now time.Time, rounds int) int {
	if rounds <= 0 {
		rounds = 1
	}
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	hours := int(now.Sub(midnight) / time.Hour)
	slot := hours/roundHours + 1
	return ((slot - 1) % rounds) + 1
}

// Remaining is a countdown broken into whole units for display.
type Remaining struct {
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

// Split floors d into hours, minutes and seconds. Negative durations are zero.
func Split(d time.Duration) Remaining {
	if d < 0 {
		d = 0
	}
	return Remaining{
		Hours:   int(d / time.Hour),
		Minutes: int((d % time.Hour) / time.Minute),
		Seconds: int((d % time.Minute) / time.Second),
	}
}
