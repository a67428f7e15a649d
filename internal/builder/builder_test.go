package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/shipgrid/internal/release"
)

// fakeRunner records invocations and optionally writes an output file, the
// way a real toolchain would.
type fakeRunner struct {
	calls  [][]string
	write  string // file to create relative to dir, "" for none
	err    error
	output []byte
}

func (f *fakeRunner) run(ctx context.Context, dir, name string, args ...string) error {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return f.err
	}
	if f.write != "" {
		path := f.write
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		return os.WriteFile(path, f.output, 0o644)
	}
	// git archive writes to its -o flag.
	for i, a := range f.calls[len(f.calls)-1] {
		if a == "-o" && i+1 < len(f.calls[len(f.calls)-1]) {
			return os.WriteFile(f.calls[len(f.calls)-1][i+1], f.output, 0o644)
		}
	}
	return nil
}

func newBuilder(t *testing.T, run CommandRunner) *Builder {
	t.Helper()
	return &Builder{
		Root:    t.TempDir(),
		OutDir:  t.TempDir(),
		Project: "oxidb",
		Binary:  "oxidb_server",
		Tag:     "v1.4.0",
		Run:     run,
	}
}

func TestBuild_Binary(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	runner := &fakeRunner{
		write:  filepath.Join("target", "x86_64-linux", "oxidb_server"),
		output: []byte("elf"),
	}
	b := newBuilder(t, runner.run)

	// --- Act ---
	artifact, err := b.Build(context.Background(), Spec{
		Kind:    release.KindBinary,
		Triple:  "x86_64-linux",
		Command: []string{"cargo", "build", "--release", "--target", "{triple}"},
		Output:  "target/{triple}/oxidb_server",
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "oxidb_server_1.4.0_x86_64_linux", artifact.Name)
	assert.Equal(t, release.Target{OS: "linux", Arch: "x86_64"}, artifact.Target)
	assert.FileExists(t, artifact.Path)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{"cargo", "build", "--release", "--target", "x86_64-linux"}, runner.calls[0])
}

func TestBuild_UnsupportedTarget(t *testing.T) {
	t.Parallel()

	b := newBuilder(t, (&fakeRunner{}).run)

	_, err := b.Build(context.Background(), Spec{
		Kind:    release.KindBinary,
		Triple:  "x86_64-plan9",
		Command: []string{"cargo", "build"},
	})

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, TargetUnsupported, be.Reason)
}

func TestBuild_ToolchainFailure(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: errors.New("linker exploded")}
	b := newBuilder(t, runner.run)

	_, err := b.Build(context.Background(), Spec{
		Kind:    release.KindBinary,
		Triple:  "x86_64-linux",
		Command: []string{"cargo", "build"},
		Output:  "target/oxidb_server",
	})

	var be *BuildError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, CompilationFailed, be.Reason)
	assert.Equal(t, "x86_64-linux", be.Target)
}

func TestBuildArchive_ComputesChecksum(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{output: []byte("source tree bytes")}
	b := newBuilder(t, runner.run)

	artifact, err := b.BuildArchive(context.Background(), "tar.gz")
	require.NoError(t, err)

	assert.Equal(t, release.KindArchive, artifact.Kind)
	assert.Equal(t, "oxidb_1.4.0.tar.gz", artifact.Name)
	require.NotEmpty(t, artifact.Checksum)

	// The checksum must match the archive's actual content.
	sum, err := ChecksumFile(artifact.Path)
	require.NoError(t, err)
	assert.Equal(t, sum, artifact.Checksum)

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "git", runner.calls[0][0])
	assert.Contains(t, runner.calls[0], "--format=tar.gz")
	assert.Contains(t, runner.calls[0], "v1.4.0")
}
