package camera

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry schedules device reacquisition with exponential backoff.
// It is not safe for concurrent use; the kiosk loop owns it.
type Retry struct {
	policy *backoff.ExponentialBackOff
	next   time.Time
}

// NewRetry creates a retry schedule starting at initial and capped at maxInterval.
func NewRetry(initial, maxInterval time.Duration) *Retry {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0
	b.Reset()
	return &Retry{policy: b}
}

// Failed records a failure at now and returns the delay until the next attempt.
func (r *Retry) Failed(now time.Time) time.Duration {
	d := r.policy.NextBackOff()
	r.next = now.Add(d)
	return d
}

// Ready reports whether an attempt is allowed at now.
func (r *Retry) Ready(now time.Time) bool {
	return !now.Before(r.next)
}

// Succeeded resets the schedule.
func (r *Retry) Succeeded() {
	r.policy.Reset()
	r.next = time.Time{}
}
