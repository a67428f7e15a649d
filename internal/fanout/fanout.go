// Package fanout runs the independent publication channels concurrently.
// Channels fail in isolation: one channel's error is captured as its own
// outcome and never cancels or blocks a sibling. The fan-out is complete
// only when every channel has reported a terminal outcome.
package fanout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vk/shipgrid/internal/channels"
	"github.com/vk/shipgrid/internal/ctxlog"
	"github.com/vk/shipgrid/internal/release"
)

// Run executes every channel in its own goroutine and waits for all of
// them. Artifacts from succeeding channels are attached through att as they
// complete; the aggregator serializes concurrent attaches.
//
// The parent context still applies: cancelling it (operator interrupt)
// stops all channels, but no channel's failure cancels the context.
func Run(ctx context.Context, chs []channels.Channel, env *channels.Env, att channels.Attacher) map[string]release.Outcome {
	logger := ctxlog.FromContext(ctx)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = make(map[string]release.Outcome, len(chs))
	)

	logger.Info("🚀 Fanning out channels.", "count", len(chs))
	for _, ch := range chs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome := runOne(ctx, ch, env, att)
			mu.Lock()
			outcomes[ch.Name()] = outcome
			mu.Unlock()
		}()
	}
	wg.Wait()

	for name, outcome := range outcomes {
		if outcome.Err != nil {
			logger.Error("Channel failed.", "channel", name, "error", outcome.Err)
		}
	}
	return outcomes
}

// runOne drives a single channel to its terminal outcome, converting a
// panic inside the channel into a failure rather than taking down the run.
func runOne(ctx context.Context, ch channels.Channel, env *channels.Env, att channels.Attacher) (outcome release.Outcome) {
	logger := ctxlog.FromContext(ctx).With("channel", ch.Name())
	start := time.Now()
	outcome.Channel = ch.Name()

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = fmt.Errorf("channel panicked: %v", r)
		}
		outcome.Duration = time.Since(start)
	}()

	logger.Info("▶️ Channel started")
	artifacts, err := ch.Run(ctx, env)
	if err != nil {
		outcome.Err = err
		return outcome
	}

	for _, a := range artifacts {
		att.Attach(a)
	}
	outcome.Artifacts = artifacts
	logger.Info("✅ Channel finished", "artifacts", len(artifacts), "duration", time.Since(start).String())
	return outcome
}

// Failed reports whether any channel's outcome is a failure.
func Failed(outcomes map[string]release.Outcome) bool {
	for _, o := range outcomes {
		if o.Err != nil {
			return true
		}
	}
	return false
}
