package delivery

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Retry bounds the attempts a remote channel makes for one message.
type Retry struct {
	Max      int           // extra attempts after the first
	Base     time.Duration // first backoff
	MaxDelay time.Duration
}

// Do calls fn until it succeeds, attempts run out or ctx ends. When lim is
// set every attempt waits for a token first. The last error is returned.
func (r Retry) Do(ctx context.Context, lim *rate.Limiter, fn func(ctx context.Context) error) error {
	attempts := 1
	if r.Max > 0 {
		attempts += r.Max
	}
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				if last != nil {
					return last
				}
				return err
			}
		}
		if last = fn(ctx); last == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		t := time.NewTimer(r.delay(attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return last
		}
	}
	return last
}

// delay is the backoff before attempt+1: base*2^(attempt-1), jittered 0.7..1.3.
func (r Retry) delay(attempt int) time.Duration {
	base := r.Base
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	maxD := r.MaxDelay
	if maxD <= 0 {
		maxD = 10 * time.Second
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxD {
			d = maxD
			break
		}
	}
	d = time.Duration(float64(d) * (0.7 + rand.Float64()*0.6))
	if d > maxD {
		d = maxD
	}
	return d
}
