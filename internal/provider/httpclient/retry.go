package httpclient

import "time"

const defaultAttempts = 3

// RetryPolicy retries network failures with linear backoff. The wait after
// the zero-based failed attempt i is (3*i+1) units.
type RetryPolicy struct {
	Attempts int
	Unit     time.Duration
}

func DefaultRetryPolicy(unit time.Duration) RetryPolicy {
	if unit <= 0 {
		unit = time.Second
	}
	return RetryPolicy{Attempts: defaultAttempts, Unit: unit}
}

func (p RetryPolicy) Backoff(attempt int) time.Duration {
	return time.Duration(3*attempt+1) * p.Unit
}

func (p RetryPolicy) attempts() int {
	if p.Attempts <= 0 {
		return defaultAttempts
	}
	return p.Attempts
}
