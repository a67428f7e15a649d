package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/vk/shipgrid/internal/aggregator"
	"github.com/vk/shipgrid/internal/builder"
	"github.com/vk/shipgrid/internal/channels"
	"github.com/vk/shipgrid/internal/ctxlog"
	"github.com/vk/shipgrid/internal/fanout"
	"github.com/vk/shipgrid/internal/registrypub"
	"github.com/vk/shipgrid/internal/release"
	"github.com/vk/shipgrid/internal/sequencer"
	"github.com/vk/shipgrid/internal/tap"
)

// Option customizes collaborator wiring; tests substitute the external
// tools through these.
type Option func(*App)

// WithPublisher overrides the registry publisher.
func WithPublisher(p registrypub.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithWaiter overrides the propagation waiter.
func WithWaiter(w registrypub.Waiter) Option {
	return func(a *App) { a.waiter = w }
}

// WithRunner overrides the toolchain command runner.
func WithRunner(r builder.CommandRunner) Option {
	return func(a *App) { a.runner = r }
}

// Run executes one full publication: plan, sequence, fan out, aggregate,
// tap. The returned error aggregates every failure, but a failed tier or
// channel never prevents the remaining independent work from running.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := a.logger

	packages, err := a.releasePackages()
	if err != nil {
		return fmt.Errorf("resolving package registries: %w", err)
	}

	// Plan before any side effect: a cyclic graph is a configuration
	// defect and must abort with zero publish calls made.
	tiers, err := sequencer.Plan(packages)
	if err != nil {
		return fmt.Errorf("planning publication order: %w", err)
	}
	logger.Info("Publication plan computed.", "packages", len(packages), "tiers", len(tiers))

	if a.config.DryRun {
		a.printPlan(tiers)
		return nil
	}

	var failures []error

	if len(packages) > 0 {
		report, err := a.runSequencer(ctx, tiers)
		if err != nil {
			failures = append(failures, fmt.Errorf("registry publication: %w", err))
		}
		if report != nil {
			logger.Info("Registry publication finished.",
				"published_tiers", report.PublishedTiers(), "total_tiers", len(tiers))
		}
	}

	agg := aggregator.New(a.config.Tag, a.config.Commit)
	outcomes, err := a.runChannels(ctx, agg)
	if err != nil {
		return errors.Join(append(failures, err)...)
	}
	if fanout.Failed(outcomes) {
		names := make([]string, 0, len(outcomes))
		for name := range outcomes {
			names = append(names, name)
		}
		// Sorted so the joined error reads the same on every run.
		sort.Strings(names)
		for _, name := range names {
			if err := outcomes[name].Err; err != nil {
				failures = append(failures, fmt.Errorf("channel %s: %w", name, err))
			}
		}
	}

	record := agg.Finalize()
	reportPath := filepath.Join(a.config.WorkDir, "release.yaml")
	if err := agg.WriteReport(reportPath); err != nil {
		logger.Error("Failed to write release report.", "error", err)
	} else {
		logger.Info("Release record finalized.", "artifacts", len(record.Artifacts), "report", reportPath)
	}

	if err := a.runTapUpdate(ctx, agg); err != nil {
		failures = append(failures, fmt.Errorf("tap update: %w", err))
	}

	if len(failures) > 0 {
		return errors.Join(failures...)
	}
	logger.Info("🏁 Release run complete.", "tag", a.config.Tag)
	return nil
}

// releasePackages converts the manifest's package blocks into the model,
// resolving each package's registry binding so that sequencing always sees
// an explicit registry name.
func (a *App) releasePackages() ([]release.Package, error) {
	pkgs := make([]release.Package, 0, len(a.manifest.Packages))
	for _, p := range a.manifest.Packages {
		reg, err := a.manifest.RegistryFor(p)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, release.Package{
			Name:      p.Name,
			Path:      p.Path,
			Registry:  reg.Name,
			DependsOn: p.DependsOn,
		})
	}
	return pkgs, nil
}

// runSequencer wires a publisher and waiter per registry block (unless a
// test injected its own) and drives the tiers.
func (a *App) runSequencer(ctx context.Context, tiers []sequencer.Tier) (*sequencer.Report, error) {
	publisher := a.publisher
	if publisher == nil {
		mux := make(registrypub.PublisherMux, len(a.manifest.Registries))
		for _, reg := range a.manifest.Registries {
			mux[reg.Name] = &registrypub.ExecPublisher{
				Root:    a.config.WorkDir,
				Command: reg.Command,
				Args:    append([]string{"publish"}, reg.PublishArgs...),
			}
		}
		publisher = mux
	}

	waiter := a.waiter
	if waiter == nil {
		mux := make(registrypub.WaiterMux, len(a.manifest.Registries))
		for _, reg := range a.manifest.Registries {
			if reg.WaitStrategy == "poll" {
				pw := registrypub.NewPollWaiter(reg.IndexURL, a.config.Tag)
				defer pw.Close()
				mux[reg.Name] = pw
			} else {
				mux[reg.Name] = &registrypub.DelayWaiter{Delay: reg.SettleDuration()}
			}
		}
		waiter = mux
	}

	// One throttling registry serializes the whole tier; interleaving
	// serial and concurrent registries within a tier is not worth modeling.
	serial := false
	for _, reg := range a.manifest.Registries {
		if reg.Serial {
			serial = true
		}
	}

	seq := &sequencer.Sequencer{Publisher: publisher, Waiter: waiter, Serial: serial}
	return seq.Publish(ctx, tiers)
}

// runChannels builds the fan-out environment and runs every enabled
// channel concurrently.
func (a *App) runChannels(ctx context.Context, agg *aggregator.Aggregator) (map[string]release.Outcome, error) {
	chs, err := channels.FromManifest(a.manifest.Channels, a.config.Channels)
	if err != nil {
		return nil, err
	}
	if len(chs) == 0 {
		a.logger.Warn("No channels enabled, nothing to fan out.")
		return nil, nil
	}

	runner := a.runner
	if runner == nil {
		runner = builder.ExecRunner
	}

	outDir := filepath.Join(a.config.WorkDir, "dist")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}

	env := &channels.Env{
		Project: a.manifest.Project.Name,
		Binary:  a.manifest.Project.BinaryName,
		Tag:     a.config.Tag,
		Commit:  a.config.Commit,
		WorkDir: a.config.WorkDir,
		Builder: &builder.Builder{
			Root:    a.config.WorkDir,
			OutDir:  outDir,
			Project: a.manifest.Project.Name,
			Binary:  a.manifest.Project.BinaryName,
			Tag:     a.config.Tag,
			Run:     runner,
		},
		Run: runner,
	}

	if a.config.ReleaseAPI != "" && a.manifest.Project.Repository != "" {
		uploader := aggregator.NewAssetUploader(
			a.config.ReleaseAPI,
			a.manifest.Project.Repository,
			a.config.Tag,
			os.Getenv("SHIPGRID_TOKEN"),
		)
		defer uploader.Close()
		env.Upload = uploader.Upload
	}

	return fanout.Run(ctx, chs, env, agg), nil
}

// runTapUpdate bumps the tap formula for stable releases, strictly gated
// on the archive channel having delivered a checksum.
func (a *App) runTapUpdate(ctx context.Context, agg *aggregator.Aggregator) error {
	if a.manifest.Tap == nil {
		return nil
	}

	checksum, err := agg.ArchiveChecksum()
	if errors.Is(err, aggregator.ErrMissingArchive) {
		// The upstream artifact is missing: skip, don't fail the run. The
		// archive channel's own outcome already reports why.
		a.logger.Warn("Skipping tap update.", "reason", err.Error())
		return nil
	}
	if err != nil {
		return err
	}

	runner := a.runner
	if runner == nil {
		runner = builder.ExecRunner
	}
	updater := &tap.Updater{
		Repository: a.manifest.Tap.Repository,
		Formula:    a.manifest.Tap.Formula,
		Project:    a.manifest.Project.Name,
		ArchiveURL: a.manifest.Tap.ArchiveURL,
		WorkDir:    a.config.WorkDir,
		Run:        runner,
	}
	return updater.Update(ctx, a.config.Tag, checksum)
}

// printPlan renders the dry-run view of the publication order and the
// enabled channels.
func (a *App) printPlan(tiers []sequencer.Tier) {
	fmt.Fprintf(a.outW, "release %s (%s)\n", a.config.Tag, a.config.Commit)
	for i, tier := range tiers {
		fmt.Fprintf(a.outW, "tier %d:", i)
		for _, pkg := range tier.Packages {
			fmt.Fprintf(a.outW, " %s", pkg.Name)
		}
		fmt.Fprintln(a.outW)
	}
	for _, ch := range a.manifest.Channels {
		fmt.Fprintf(a.outW, "channel: %s\n", ch.Name)
	}
	if a.manifest.Tap != nil {
		fmt.Fprintf(a.outW, "tap: %s (%s)\n", a.manifest.Tap.Repository, a.manifest.Tap.Formula)
	}
}
