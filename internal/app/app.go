// Package app assembles and runs one release-publication invocation: it
// loads the manifest, builds the publish plan, drives the sequencer, fans
// out the channels, aggregates the record, and updates the tap.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/shipgrid/internal/builder"
	"github.com/vk/shipgrid/internal/ctxlog"
	"github.com/vk/shipgrid/internal/manifest"
	"github.com/vk/shipgrid/internal/registrypub"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle for one run.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	manifest *manifest.Manifest

	// Injected collaborators; nil means wire the real ones from the
	// manifest at run time.
	publisher registrypub.Publisher
	waiter    registrypub.Waiter
	runner    builder.CommandRunner
}

// NewApp constructs a fully initialized App with its own isolated logger.
// A manifest that cannot be loaded is a fatal startup error and panics;
// the cmd entrypoint recovers it into a clean exit message.
func NewApp(outW io.Writer, config *Config, opts ...Option) *App {
	logger := newLogger(config.LogLevel, config.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	m, err := manifest.Load(ctx, config.ManifestPath)
	if err != nil {
		panic(fmt.Errorf("failed to load release manifest: %w", err))
	}
	logger.Debug("Release manifest loaded.", "project", m.Project.Name)

	a := &App{
		outW:     outW,
		logger:   logger,
		config:   config,
		manifest: m,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Manifest returns the loaded manifest. This is primarily for testing.
func (a *App) Manifest() *manifest.Manifest {
	return a.manifest
}
