package rating

import "time"

// NextStreak advances a daily streak counter given the previous qualifying
// test time and the current one. Calendar-day adjacency in UTC: a test on the
// next day continues the streak, the same day leaves it unchanged, and any
// larger gap resets it to 1. A zero `last` starts a new streak.
func NextStreak(current int, last, now time.Time) int {
	if last.IsZero() {
		return 1
	}

	switch daysBetween(last, now) {
	case 0:
		if current < 1 {
			return 1
		}
		return current
	case 1:
		return current + 1
	default:
		return 1
	}
}

// daysBetween counts whole calendar days between two instants in UTC.
func daysBetween(a, b time.Time) int {
	a, b = a.UTC(), b.UTC()
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
