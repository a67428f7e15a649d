// Package builder invokes external toolchains to produce typed release
// artifacts: platform binaries, language wheels, and the full-source
// archive whose checksum feeds the tap formula. Builders are stateless and
// safe to invoke concurrently for disjoint targets.
package builder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/vk/shipgrid/internal/ctxlog"
	"github.com/vk/shipgrid/internal/release"
	"github.com/vk/shipgrid/internal/version"
)

// CommandRunner executes one toolchain invocation in the given directory.
// It exists so tests and dry runs can substitute the real toolchains.
type CommandRunner func(ctx context.Context, dir string, name string, args ...string) error

// ExecRunner is the production CommandRunner: it runs the command with
// stderr captured into the returned error.
func ExecRunner(ctx context.Context, dir string, name string, args ...string) error {
	if _, err := exec.LookPath(name); err != nil {
		return &BuildError{Target: name, Reason: ToolchainUnavailable, Cause: err}
	}
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, tail(out))
	}
	return nil
}

// tail returns the last non-empty output line, where toolchains put the
// actionable message.
func tail(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Spec describes one build: what to produce, for which target, and how.
// Command and Output may reference {triple}, {os}, {arch} and {tag}
// placeholders, expanded per target.
type Spec struct {
	Kind    release.ArtifactKind
	Triple  string   // manifest target triple, e.g. "x86_64-linux"
	Command []string // toolchain invocation
	Output  string   // path of the produced file, relative to the source root
}

// Builder turns Specs into Artifacts. A Builder is a pure function of
// (source tree, spec): it holds no mutable state.
type Builder struct {
	Root    string // source tree root
	OutDir  string // where finished artifacts are placed
	Project string
	Binary  string
	Tag     string

	Run CommandRunner
}

// Build produces one artifact for one target. Failure modes: an unknown
// triple is TargetUnsupported, a missing toolchain is ToolchainUnavailable,
// anything the toolchain itself rejects is CompilationFailed.
func (b *Builder) Build(ctx context.Context, spec Spec) (release.Artifact, error) {
	logger := ctxlog.FromContext(ctx).With("kind", string(spec.Kind), "target", spec.Triple)

	target, err := release.ParseTarget(spec.Triple)
	if err != nil {
		return release.Artifact{}, &BuildError{Target: spec.Triple, Reason: TargetUnsupported, Cause: err}
	}
	if len(spec.Command) == 0 {
		return release.Artifact{}, &BuildError{Target: spec.Triple, Reason: ToolchainUnavailable, Cause: errors.New("no build command configured")}
	}

	expand := b.expander(target, spec.Triple)
	name := expand(spec.Command[0])
	args := make([]string, 0, len(spec.Command)-1)
	for _, a := range spec.Command[1:] {
		args = append(args, expand(a))
	}

	logger.Info("▶️ Building artifact")
	if err := b.Run(ctx, b.Root, name, args...); err != nil {
		var be *BuildError
		if errors.As(err, &be) {
			be.Target = spec.Triple
			return release.Artifact{}, be
		}
		return release.Artifact{}, &BuildError{Target: spec.Triple, Reason: CompilationFailed, Cause: err}
	}

	artifact, err := b.collect(spec, target, expand(spec.Output))
	if err != nil {
		return release.Artifact{}, &BuildError{Target: spec.Triple, Reason: CompilationFailed, Cause: err}
	}
	logger.Info("✅ Artifact built", "name", artifact.Name)
	return artifact, nil
}

// collect moves the toolchain's output into OutDir under the release
// naming convention and stamps the artifact.
func (b *Builder) collect(spec Spec, target release.Target, output string) (release.Artifact, error) {
	src := filepath.Join(b.Root, output)

	var name string
	switch spec.Kind {
	case release.KindBinary:
		name = version.BinaryName(b.Binary, b.Tag, target.Arch, target.OS)
	default:
		name = filepath.Base(src)
	}
	dst := filepath.Join(b.OutDir, name)

	if err := copyFile(src, dst); err != nil {
		return release.Artifact{}, fmt.Errorf("collecting %s: %w", output, err)
	}

	return release.Artifact{
		Kind:   spec.Kind,
		Name:   name,
		Target: target,
		Path:   dst,
	}, nil
}

// BuildArchive produces the full-source archive {project}_{tag}.{ext} via
// git-archive and records its content checksum. The checksum later becomes
// the input for the tap formula update.
func (b *Builder) BuildArchive(ctx context.Context, ext string) (release.Artifact, error) {
	logger := ctxlog.FromContext(ctx).With("kind", "archive")

	format := "tar.gz"
	if ext == "zip" {
		format = "zip"
	}
	name := version.ArchiveName(b.Project, b.Tag, format)
	out := filepath.Join(b.OutDir, name)

	logger.Info("▶️ Building source archive", "name", name)
	err := b.Run(ctx, b.Root, "git", "archive",
		"--format="+format,
		"--prefix="+b.Project+"-"+version.Normalize(b.Tag)+"/",
		"-o", out,
		b.Tag,
	)
	if err != nil {
		return release.Artifact{}, &BuildError{Target: "archive", Reason: CompilationFailed, Cause: err}
	}

	sum, err := ChecksumFile(out)
	if err != nil {
		return release.Artifact{}, &BuildError{Target: "archive", Reason: CompilationFailed, Cause: err}
	}

	logger.Info("✅ Source archive built", "checksum", sum)
	return release.Artifact{
		Kind:     release.KindArchive,
		Name:     name,
		Path:     out,
		Checksum: sum,
	}, nil
}

// ChecksumFile returns the hex sha256 of a file's content.
func ChecksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (b *Builder) expander(target release.Target, triple string) func(string) string {
	r := strings.NewReplacer(
		"{triple}", triple,
		"{os}", target.OS,
		"{arch}", target.Arch,
		"{tag}", version.Normalize(b.Tag),
	)
	return r.Replace
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
