package domain

import (
	"fmt"
	"time"
)

// OutcomeResponse returns the time from creation to the outcome being set.
// The second result is false when the lead has no outcome.
func (e *Event) OutcomeResponse() (time.Duration, bool) {
	if e.Outcome == nil || e.OutcomeSetAt == nil {
		return 0, false
	}
	d := e.OutcomeSetAt.Sub(e.CreatedAt)
	if d < 0 {
		d = 0
	}
	return d, true
}

// FormatResponse renders a response time as "<1m", "Nm", "Nh Mm" (under 48
// hours) or "Nd Nh". Zero remainders are dropped ("2h", "3d").
func FormatResponse(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalMinutes := int64(d / time.Minute)
	if totalMinutes < 1 {
		return "<1m"
	}
	if totalMinutes < 60 {
		return fmt.Sprintf("%dm", totalMinutes)
	}

	totalHours := totalMinutes / 60
	remMinutes := totalMinutes % 60
	if totalHours < 48 {
		if remMinutes > 0 {
			return fmt.Sprintf("%dh %dm", totalHours, remMinutes)
		}
		return fmt.Sprintf("%dh", totalHours)
	}

	days := totalHours / 24
	remHours := totalHours % 24
	if remHours > 0 {
		return fmt.Sprintf("%dd %dh", days, remHours)
	}
	return fmt.Sprintf("%dd", days)
}
