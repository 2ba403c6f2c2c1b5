package otp

import (
	"context"
	"time"

	"github.com/dmitrijs2005/keynest/internal/clock"
)

// Watch calls fn with the current time immediately and then once per
// interval until ctx is done. Ticks that arrive while fn is still running
// are coalesced.
func Watch(ctx context.Context, clk clock.Clock, interval time.Duration, fn func(now time.Time)) error {
	tick := make(chan struct{}, 1)
	schedule := func() clock.Timer {
		return clk.AfterFunc(interval, func() {
			select {
			case tick <- struct{}{}:
			default:
			}
		})
	}

	fn(clk.Now())
	for {
		t := schedule()
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-tick:
			fn(clk.Now())
		}
	}
}
