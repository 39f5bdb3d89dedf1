// Package backoff holds the exponential retry delay shared by workers that
// poll or consume from an upstream.
package backoff

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Exponential doubles its delay after every failure, up to Max.
// The zero value is not usable; set Initial and Max.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration

	current time.Duration
}

// Next returns the delay to wait before the next attempt and doubles the
// delay for the attempt after it.
func (e *Exponential) Next() time.Duration {
	if e.current <= 0 {
		e.current = e.Initial
	}
	d := e.current
	e.current = min(e.current*2, e.Max)
	return min(d, e.Max)
}

// Reset starts the sequence over at Initial after a success.
func (e *Exponential) Reset() {
	e.current = 0
}

// Sleep waits d on clock. It returns false if ctx ended first.
func Sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
