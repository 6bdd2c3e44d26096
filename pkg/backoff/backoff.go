package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Policy defines reconnect backoff behavior. One policy value is shared by
// every reconnect path so the growth curve stays consistent.
type Policy struct {
	// Min is the delay for the first attempt.
	Min time.Duration
	// Max caps the delay growth.
	Max time.Duration
	// Factor multiplies the delay for each retry attempt.
	Factor float64
	// Jitter adds randomization as a fraction of the delay (0-1).
	Jitter float64
}

// Default is the feed reconnect policy: 1s doubling up to 60s.
func Default() Policy {
	return Policy{
		Min:    time.Second,
		Max:    60 * time.Second,
		Factor: 2.0,
	}
}

// Next returns the delay for the given attempt (1-based). Callers reset the
// attempt counter to zero on success.
func (p Policy) Next(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	min := p.Min
	if min <= 0 {
		min = time.Second
	}
	max := p.Max
	if max <= 0 {
		max = 60 * time.Second
	}
	factor := p.Factor
	if factor <= 1 {
		factor = 2.0
	}

	wait := min
	for i := 1; i < attempt; i++ {
		next := time.Duration(float64(wait) * factor)
		if next > max {
			wait = max
			break
		}
		wait = next
	}

	if p.Jitter <= 0 {
		return wait
	}
	jitter := p.Jitter
	if jitter > 1 {
		jitter = 1
	}
	delta := float64(wait) * jitter
	return wait - time.Duration(delta) + time.Duration(rand.Float64()*2*delta)
}

// Sleep waits for the attempt's delay or until the context is cancelled.
func (p Policy) Sleep(ctx context.Context, attempt int) {
	wait := p.Next(attempt)
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
