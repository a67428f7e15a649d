// Package testutil provides shared helpers for integration-style tests:
// a thread-safe log buffer, fake registry collaborators, and a fake
// toolchain runner that behaves like the real external tools.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/shipgrid/internal/release"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// WriteTree materializes a map of relative path -> content inside a fresh
// temp directory and returns its root.
func WriteTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

// RecordingPublisher captures registry publish calls in order and fails the
// packages it is configured to fail.
type RecordingPublisher struct {
	mu       sync.Mutex
	Calls    []release.Package
	Failures map[string]error
}

// Publish implements registrypub.Publisher.
func (p *RecordingPublisher) Publish(ctx context.Context, pkg release.Package) error {
	p.mu.Lock()
	p.Calls = append(p.Calls, pkg)
	p.mu.Unlock()
	if err, ok := p.Failures[pkg.Name]; ok {
		return err
	}
	return nil
}

// Published returns the publish call order observed so far.
func (p *RecordingPublisher) Published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Calls))
	for i, pkg := range p.Calls {
		out[i] = pkg.Name
	}
	return out
}

// Registries maps each published package to the registry it was routed to.
func (p *RecordingPublisher) Registries() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.Calls))
	for _, pkg := range p.Calls {
		out[pkg.Name] = pkg.Registry
	}
	return out
}

// RecordingWaiter counts propagation waits without sleeping.
type RecordingWaiter struct {
	mu    sync.Mutex
	Waits int
}

// Wait implements registrypub.Waiter.
func (w *RecordingWaiter) Wait(ctx context.Context, prior []release.Package) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.Waits++
	return nil
}

// WaitCount returns how many tier boundaries have been waited on.
func (w *RecordingWaiter) WaitCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Waits
}

// RecordingRunner stands in for every external toolchain. It records each
// invocation and mimics the filesystem side effects the orchestrator relies
// on: git-archive writes its -o output, git-clone materializes a checkout
// carrying FormulaContent.
type RecordingRunner struct {
	mu             sync.Mutex
	Commands       [][]string
	Failures       map[string]error // keyed by command name, e.g. "docker"
	FormulaPath    string           // relative path inside the fake clone
	FormulaContent string
}

// Run implements builder.CommandRunner.
func (r *RecordingRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	r.mu.Lock()
	r.Commands = append(r.Commands, append([]string{name}, args...))
	r.mu.Unlock()

	if err, ok := r.Failures[name]; ok {
		return err
	}

	if name == "git" && len(args) > 0 {
		switch args[0] {
		case "archive":
			for i, a := range args {
				if a == "-o" && i+1 < len(args) {
					return os.WriteFile(args[i+1], []byte("fake source archive"), 0o644)
				}
			}
		case "clone":
			cloneDir := args[len(args)-1]
			if r.FormulaPath != "" {
				path := filepath.Join(cloneDir, r.FormulaPath)
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return err
				}
				return os.WriteFile(path, []byte(r.FormulaContent), 0o644)
			}
			return os.MkdirAll(cloneDir, 0o755)
		}
	}
	return nil
}

// CommandNames returns the first word of every recorded invocation.
func (r *RecordingRunner) CommandNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.Commands))
	for i, cmd := range r.Commands {
		names[i] = cmd[0]
	}
	return names
}

// GitSubcommands returns the recorded git subcommands in order.
func (r *RecordingRunner) GitSubcommands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var subs []string
	for _, cmd := range r.Commands {
		if cmd[0] == "git" && len(cmd) > 1 {
			subs = append(subs, cmd[1])
		}
	}
	return subs
}
