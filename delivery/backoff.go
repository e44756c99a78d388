package delivery

import (
	"math/rand"
	"time"
)

// Backoff computes how long a failed entry waits before it becomes due
// again: exponential doubling from Base, capped at Cap, with jitter so
// a batch of failures does not come back in lockstep.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

func (b Backoff) Delay(retryCount int) time.Duration {
	if b.Base <= 0 {
		return 0
	}

	d := b.Base
	for i := 0; i < retryCount && d < b.Cap; i++ {
		d *= 2
	}
	if d > b.Cap {
		d = b.Cap
	}

	jitter := time.Duration(rand.Int63n(int64(d/5)+1)) - d/10

	return d + jitter
}

func (b Backoff) NextAttempt(now time.Time, retryCount int) time.Time {
	return now.Add(b.Delay(retryCount))
}
