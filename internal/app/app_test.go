package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/shipgrid/internal/app"
	"github.com/vk/shipgrid/internal/testutil"
)

const releaseManifest = `
project {
  name        = "oxidb"
  binary_name = "oxidb_server"
  repository  = "example/oxidb"
}

registry "crates" {
  command      = "cargo"
  settle_delay = "60s"
  serial       = true
}

package "lib" {
  path     = "lib"
  registry = "crates"
}

package "server" {
  path       = "server"
  registry   = "crates"
  depends_on = ["lib"]
}

channel "archive" {}

channel "binary" {
  targets       = ["x86_64-linux"]
  build_command = ["cargo", "build", "--release", "--target", "{triple}"]
  output        = "prebuilt/oxidb_server"
}

tap {
  repository  = "git@example.com:example/homebrew-tap.git"
  formula     = "Formula/oxidb.rb"
  archive_url = "https://example.com/oxidb/archive/{tag}.tar.gz"
}
`

const staleFormula = `class Oxidb < Formula
  url "https://example.com/oxidb/archive/1.3.0.tar.gz"
  version "1.3.0"
  sha256 "0ld5um"
end
`

// newTestApp stands up an app over a temp source tree with every external
// collaborator faked.
func newTestApp(t *testing.T, manifest string) (*app.App, string, *testutil.RecordingPublisher, *testutil.RecordingWaiter, *testutil.RecordingRunner) {
	t.Helper()

	dir := testutil.WriteTree(t, map[string]string{
		"release.hcl":           manifest,
		"prebuilt/oxidb_server": "elf bytes",
	})

	cfg, err := app.NewConfig(app.Config{
		ManifestPath: filepath.Join(dir, "release.hcl"),
		Tag:          "1.4.0",
		Commit:       "abc123",
		WorkDir:      dir,
		LogFormat:    "text",
		LogLevel:     "debug",
	})
	require.NoError(t, err)

	pub := &testutil.RecordingPublisher{}
	waiter := &testutil.RecordingWaiter{}
	runner := &testutil.RecordingRunner{
		FormulaPath:    "Formula/oxidb.rb",
		FormulaContent: staleFormula,
	}

	buf := &testutil.SafeBuffer{}
	a := app.NewApp(buf, cfg,
		app.WithPublisher(pub),
		app.WithWaiter(waiter),
		app.WithRunner(runner.Run),
	)
	return a, dir, pub, waiter, runner
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Release 1.4.0 over the graph lib -> server: both tiers must publish
	// with a propagation wait between them, and the tap must update
	// because the tag is stable and the archive channel succeeded.
	a, dir, pub, waiter, runner := newTestApp(t, releaseManifest)

	// --- Act ---
	err := a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)

	assert.Equal(t, []string{"lib", "server"}, pub.Published(),
		"lib publishes strictly before server")
	assert.Equal(t, 1, waiter.WaitCount(),
		"one propagation wait, at the single tier boundary")

	// The archive channel built the source archive and the tap consumed
	// its checksum.
	subs := runner.GitSubcommands()
	assert.Contains(t, subs, "archive")
	assert.Contains(t, subs, "clone")
	assert.Contains(t, subs, "commit")
	assert.Contains(t, subs, "push")

	formula, readErr := os.ReadFile(filepath.Join(dir, "tap", "Formula", "oxidb.rb"))
	require.NoError(t, readErr)
	assert.Contains(t, string(formula), `version "1.4.0"`)
	assert.NotContains(t, string(formula), "0ld5um", "checksum must be replaced")

	// The release record lands next to the source tree.
	assert.FileExists(t, filepath.Join(dir, "release.yaml"))
}

func TestRun_SequencerFailureDoesNotBlockChannels(t *testing.T) {
	t.Parallel()

	a, dir, pub, _, runner := newTestApp(t, releaseManifest)
	pub.Failures = map[string]error{"lib": errors.New("registry rejected the upload")}

	err := a.Run(context.Background())

	// The run fails overall, but the independent channels still published.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "registry publication")

	assert.Equal(t, []string{"lib"}, pub.Published(), "server's tier is never attempted")
	assert.Contains(t, runner.GitSubcommands(), "archive", "archive channel still ran")
	assert.FileExists(t, filepath.Join(dir, "release.yaml"))
}

func TestRun_ArchiveFailureSkipsTap(t *testing.T) {
	t.Parallel()

	a, dir, _, _, runner := newTestApp(t, releaseManifest)
	runner.Failures = map[string]error{"git": errors.New("git exploded")}

	err := a.Run(context.Background())

	// The archive channel failed, so the tap never runs: the run reports
	// the channel failure, not a tap failure.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel archive")
	assert.NotContains(t, err.Error(), "tap update")
	assert.NoFileExists(t, filepath.Join(dir, "tap", "Formula", "oxidb.rb"))
}

func TestRun_RoutesPackagesToTheirRegistries(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Two registry blocks; each package must publish through the registry
	// it is bound to, never through the first block declared.
	multiReg := `
project { name = "oxidb" }

registry "crates" {
  command = "cargo"
  serial  = true
}

registry "pypi" {
  command = "maturin"
}

package "lib" {
  path     = "lib"
  registry = "pypi"
}

package "server" {
  path       = "server"
  registry   = "crates"
  depends_on = ["lib"]
}
`
	a, _, pub, _, _ := newTestApp(t, multiReg)

	// --- Act ---
	err := a.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"lib", "server"}, pub.Published())
	assert.Equal(t, map[string]string{
		"lib":    "pypi",
		"server": "crates",
	}, pub.Registries())
}

func TestRun_StampsTheDefaultRegistry(t *testing.T) {
	t.Parallel()

	// A package without a registry attribute resolves to the single
	// declared registry block.
	single := `
project { name = "oxidb" }

registry "crates" { command = "cargo" }

package "lib" { path = "lib" }
`
	a, _, pub, _, _ := newTestApp(t, single)

	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, map[string]string{"lib": "crates"}, pub.Registries())
}

func TestRun_CycleAbortsBeforeAnyPublish(t *testing.T) {
	t.Parallel()

	cyclic := `
project { name = "oxidb" }

registry "crates" { command = "cargo" }

package "a" {
  path       = "a"
  depends_on = ["b"]
}

package "b" {
  path       = "b"
  depends_on = ["a"]
}
`
	a, _, pub, _, runner := newTestApp(t, cyclic)

	err := a.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "planning publication order")
	assert.Empty(t, pub.Published(), "a cyclic graph must cause zero publish calls")
	assert.Empty(t, runner.Commands, "no channel may run either")
}

func TestRun_DryRunPrintsPlanOnly(t *testing.T) {
	t.Parallel()

	dir := testutil.WriteTree(t, map[string]string{"release.hcl": releaseManifest})
	cfg, err := app.NewConfig(app.Config{
		ManifestPath: dir,
		Tag:          "1.4.0",
		Commit:       "abc123",
		WorkDir:      dir,
		DryRun:       true,
	})
	require.NoError(t, err)

	pub := &testutil.RecordingPublisher{}
	buf := &testutil.SafeBuffer{}
	a := app.NewApp(buf, cfg, app.WithPublisher(pub))

	require.NoError(t, a.Run(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "tier 0: lib")
	assert.Contains(t, out, "tier 1: server")
	assert.Contains(t, out, "channel: archive")
	assert.Empty(t, pub.Published())
}
