// Package registrypub holds the collaborator contracts for the external
// package registry: publishing one package, and waiting out the registry's
// read-after-write propagation delay between dependent publishes.
package registrypub

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/vk/shipgrid/internal/ctxlog"
	"github.com/vk/shipgrid/internal/release"
)

// Publisher publishes one named package to its registry. Implementations
// know nothing about ordering; the sequencer owns that.
type Publisher interface {
	Publish(ctx context.Context, pkg release.Package) error
}

// PublishError wraps a failed publish with the package it belongs to, so a
// human can re-run exactly that publication. A PublishError aborts the
// remaining tiers of the sequence but never touches unrelated channels.
type PublishError struct {
	Package string
	Cause   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Package, e.Cause)
}

func (e *PublishError) Unwrap() error {
	return e.Cause
}

// ExecPublisher shells out to the registry's own CLI (cargo, npm, twine and
// friends) in the package's directory. Publishes are never retried: real
// registries reject a duplicate publish of the same version, so a retry
// after partial success could only make things worse.
type ExecPublisher struct {
	// Root is the source tree root; package paths are relative to it.
	Root string

	// Command is the registry CLI binary, Args its publish subcommand and
	// flags, e.g. "cargo" + ["publish"].
	Command string
	Args    []string

	// Env holds extra environment entries (credentials) appended to the
	// child process environment.
	Env []string
}

// Publish runs the registry CLI for one package.
func (p *ExecPublisher) Publish(ctx context.Context, pkg release.Package) error {
	logger := ctxlog.FromContext(ctx).With("package", pkg.Name)
	logger.Info("▶️ Publishing package", "registry", pkg.Registry)

	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	cmd.Dir = filepath.Join(p.Root, pkg.Path)
	if len(p.Env) > 0 {
		cmd.Env = append(cmd.Environ(), p.Env...)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			err = fmt.Errorf("%w: %s", err, lastLine(detail))
		}
		logger.Error("Publish failed.", "error", err)
		return &PublishError{Package: pkg.Name, Cause: err}
	}

	logger.Info("✅ Package published")
	return nil
}

// lastLine keeps errors short: registry CLIs print the actionable message on
// their final stderr line.
func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
