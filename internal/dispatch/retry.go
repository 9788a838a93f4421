package dispatch

import (
	"math"
	"time"
)

// RetryPolicy defines backoff behavior for retryable action failures.
// Retries happen within the action's own timeout budget, never beyond it.
type RetryPolicy struct {
	MaxAttempts       int           // total attempts including the first (1 = no retries)
	InitialDelay      time.Duration // delay before the first retry
	MaxDelay          time.Duration // cap on the backoff delay
	BackoffMultiplier float64       // exponential growth factor, e.g. 2.0
}

// Delay calculates the backoff delay before the given retry (1-based).
func (p RetryPolicy) Delay(retry int) time.Duration {
	if retry <= 1 {
		return p.InitialDelay
	}
	delay := float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(retry-1))
	if time.Duration(delay) > p.MaxDelay {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetry reports whether another attempt is allowed after the given
// attempt count.
func (p RetryPolicy) ShouldRetry(attempts int) bool {
	return attempts < p.MaxAttempts
}
