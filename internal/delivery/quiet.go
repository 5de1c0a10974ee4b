package delivery

import (
	"time"

	"preppertrack/internal/inventory"
)

// InQuietHours reports whether now falls in the [start, end] window given as
// HH:MM. A window with start >= end wraps midnight. Malformed bounds mean
// there is no quiet window.
func InQuietHours(now time.Time, start, end string) bool {
	s, ok := inventory.ParseClock(start)
	if !ok {
		return false
	}
	e, ok := inventory.ParseClock(end)
	if !ok {
		return false
	}
	m := now.Hour()*60 + now.Minute()
	if s < e {
		return m >= s && m <= e
	}
	return m >= s || m <= e
}
