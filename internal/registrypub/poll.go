package registrypub

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"resty.dev/v3"

	"github.com/vk/shipgrid/internal/ctxlog"
	"github.com/vk/shipgrid/internal/release"
	"github.com/vk/shipgrid/internal/version"
)

// PollWaiter is the stronger alternative to the fixed settle delay: it asks
// the registry index for each just-published package until the write is
// visible, with bounded attempts. Exhausting the attempts is an error,
// because the next tier's preconditions are then unknown rather than merely
// unlikely.
type PollWaiter struct {
	// IndexURL is the registry's version lookup endpoint; the package name
	// and version are appended as path segments.
	IndexURL string

	// Tag is the release tag whose version every package publishes under.
	Tag string

	Attempts int
	Interval time.Duration

	client *resty.Client
}

// NewPollWaiter creates a poll waiter with sane bounds for a human-paced
// release run.
func NewPollWaiter(indexURL, tag string) *PollWaiter {
	return &PollWaiter{
		IndexURL: indexURL,
		Tag:      tag,
		Attempts: 12,
		Interval: 10 * time.Second,
		client:   resty.New(),
	}
}

// Close releases the waiter's HTTP client.
func (w *PollWaiter) Close() error {
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}

// Wait polls the index for every package of the prior tier.
func (w *PollWaiter) Wait(ctx context.Context, prior []release.Package) error {
	logger := ctxlog.FromContext(ctx)
	for _, pkg := range prior {
		if err := w.waitOne(ctx, logger.With("package", pkg.Name), pkg); err != nil {
			return err
		}
	}
	return nil
}

func (w *PollWaiter) waitOne(ctx context.Context, logger *slog.Logger, pkg release.Package) error {
	url := fmt.Sprintf("%s/%s/%s", w.IndexURL, pkg.Name, version.Normalize(w.Tag))

	for attempt := 1; attempt <= w.Attempts; attempt++ {
		res, err := w.client.R().SetContext(ctx).Get(url)
		if err == nil && res.IsSuccess() {
			logger.Info("Package visible in registry index.", "attempt", attempt)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Info("Package not visible yet.", "attempt", attempt, "of", w.Attempts)

		timer := time.NewTimer(w.Interval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return fmt.Errorf("package %s@%s not visible in registry index after %d attempts",
		pkg.Name, version.Normalize(w.Tag), w.Attempts)
}
