package registrypub

import (
	"context"
	"time"

	"github.com/vk/shipgrid/internal/ctxlog"
	"github.com/vk/shipgrid/internal/release"
)

// Waiter lets a prior tier's publishes become externally visible before the
// next tier's dependency lookups run against the registry. The registry's
// index is eventually consistent and offers no read-your-writes guarantee.
type Waiter interface {
	// Wait blocks until the packages published so far can be assumed
	// visible. prior holds the tier that just finished publishing.
	Wait(ctx context.Context, prior []release.Package) error
}

// DelayWaiter is the conservative strategy the source pipeline uses: an
// unconditional fixed sleep. It is not itself a failure source; only
// cancellation of the surrounding run interrupts it.
type DelayWaiter struct {
	Delay time.Duration
}

// Wait sleeps for the configured settle delay, honoring cancellation.
func (w *DelayWaiter) Wait(ctx context.Context, prior []release.Package) error {
	if w.Delay <= 0 {
		return nil
	}
	ctxlog.FromContext(ctx).Info("Waiting for registry propagation.", "delay", w.Delay.String())

	timer := time.NewTimer(w.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
