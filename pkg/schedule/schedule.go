// Package schedule holds the timing primitives shared by the background
// services. Everything goes through a clock.Clock so tests can drive time
// with clock.NewMock().
package schedule

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// Sleep blocks for d on clk or until ctx is done, whichever comes first.
// It returns ctx.Err() when the context ended the wait.
func Sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := clk.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Every calls fn immediately and then once per interval until ctx is done
// or stop is closed. A nil stop channel never fires.
func Every(ctx context.Context, clk clock.Clock, interval time.Duration, stop <-chan struct{}, fn func(context.Context)) {
	ticker := clk.Ticker(interval)
	defer ticker.Stop()

	fn(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
