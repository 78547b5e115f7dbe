// Package backoff computes the reconnect delay schedule.
//
// The schedule is the single source of truth for both the transport's retry
// timer and the coordinator's user-facing countdown, so the displayed
// countdown cannot drift from the real retry behavior.
package backoff

import "time"

// Delay returns the wait before the given reconnect attempt.
//
// The schedule is base * 2^(attempt-1), capped at max. Attempts below 1 are
// treated as attempt 1. With base=1s and max=30s the sequence is
// 1s, 2s, 4s, 8s, 16s, 30s, 30s, ...
func Delay(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	// Cap the shift to avoid overflow on absurd attempt counts.
	shift := uint(attempt - 1)
	if shift > 30 {
		return max
	}

	d := base << shift
	if d > max || d <= 0 {
		return max
	}
	return d
}
