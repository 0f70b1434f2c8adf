package infra

import (
	"time"
)

const (
	baseDelay = 1 * time.Second
	maxDelay  = 60 * time.Second
)

// CalculateBackoff returns the doubling retry delay for a given attempt
// number: baseDelay * 2^attempt, capped at maxDelay.
// Negative attempts return baseDelay.
func CalculateBackoff(attempt int) time.Duration {
	if attempt < 0 {
		return baseDelay
	}

	// 2^30 seconds already exceeds any sensible cap.
	if attempt > 30 {
		return maxDelay
	}

	backoff := baseDelay * time.Duration(1<<attempt)
	if backoff > maxDelay {
		return maxDelay
	}

	return backoff
}
