package worker

import (
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy spaces the attempts of a failing outbox task. The delay grows
// by Factor per attempt up to Max; Jitter adds up to that fraction of the
// delay at random so tasks failing together do not retry together.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
	Factor   float64
	Jitter   float64
}

func defaultRetryPolicy(attempts int) RetryPolicy {
	if attempts <= 0 {
		attempts = 5
	}
	return RetryPolicy{Attempts: attempts, Base: 2 * time.Second, Max: time.Minute, Factor: 2, Jitter: 0.2}
}

// Exhausted reports whether attempt (1-based) was the last one allowed.
func (p RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= p.Attempts
}

// Delay returns the wait before the attempt following attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base, factor := p.Base, p.Factor
	if base <= 0 {
		base = time.Second
	}
	if factor < 1 {
		factor = 2
	}
	d := float64(base) * math.Pow(factor, float64(max(attempt, 1)-1))
	if p.Max > 0 {
		d = math.Min(d, float64(p.Max))
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * rand.Float64()
	}
	return time.Duration(d)
}
