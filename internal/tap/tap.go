// Package tap updates the package-manager tap formula after a stable
// release: it rewrites the formula's version reference and source-archive
// checksum, and commits the change to the tap repository. The update is
// strictly downstream of the archive channel, whose checksum it consumes.
package tap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/vk/shipgrid/internal/builder"
	"github.com/vk/shipgrid/internal/ctxlog"
	"github.com/vk/shipgrid/internal/version"
)

var (
	urlRe     = regexp.MustCompile(`(?m)^(\s*url\s+")[^"]*(")`)
	versionRe = regexp.MustCompile(`(?m)^(\s*version\s+")[^"]*(")`)
	sha256Re  = regexp.MustCompile(`(?m)^(\s*sha256\s+")[^"]*(")`)
)

// Updater performs the read-modify-write of one formula document.
type Updater struct {
	// Repository is the tap's git URL; Formula the document path within it.
	Repository string
	Formula    string

	// Project names the release subject; ArchiveURL is the template for
	// the stable source archive, with {tag} expanded.
	Project    string
	ArchiveURL string

	// WorkDir is where the tap repository is cloned.
	WorkDir string

	Run builder.CommandRunner
}

// Update rewrites the formula for the given tag and archive checksum and
// commits the result. It is a no-op when the formula already carries these
// values, so re-running a release never produces a vacuous history entry.
//
// Callers gate this on version.IsStable(tag) and on the archive channel's
// success; Update itself re-checks stability as a last line of defense.
func (u *Updater) Update(ctx context.Context, tag, checksum string) error {
	logger := ctxlog.FromContext(ctx).With("formula", u.Formula)

	if !version.IsStable(tag) {
		logger.Info("Skipping tap update for pre-release tag.", "tag", tag)
		return nil
	}
	if checksum == "" {
		return fmt.Errorf("tap update requires the archive checksum")
	}

	// A previous run may have left a checkout behind; git refuses to clone
	// over it.
	cloneDir := filepath.Join(u.WorkDir, "tap")
	if err := os.RemoveAll(cloneDir); err != nil {
		return fmt.Errorf("clearing previous tap checkout: %w", err)
	}
	if err := u.Run(ctx, u.WorkDir, "git", "clone", "--depth", "1", u.Repository, cloneDir); err != nil {
		return fmt.Errorf("cloning tap repository: %w", err)
	}

	formulaPath := filepath.Join(cloneDir, u.Formula)
	original, err := os.ReadFile(formulaPath)
	if err != nil {
		return fmt.Errorf("reading formula: %w", err)
	}

	updated := u.rewrite(string(original), tag, checksum)
	if updated == string(original) {
		logger.Info("Formula already current, skipping commit.", "tag", tag)
		return nil
	}

	if err := os.WriteFile(formulaPath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing formula: %w", err)
	}

	message := fmt.Sprintf("%s %s", u.Project, version.Normalize(tag))
	if err := u.Run(ctx, cloneDir, "git", "commit", "-am", message); err != nil {
		return fmt.Errorf("committing formula: %w", err)
	}
	if err := u.Run(ctx, cloneDir, "git", "push"); err != nil {
		return fmt.Errorf("pushing formula: %w", err)
	}

	logger.Info("✅ Tap formula updated", "tag", tag)
	return nil
}

// rewrite replaces the url, version and sha256 fields in the formula text.
func (u *Updater) rewrite(formula, tag, checksum string) string {
	v := version.Normalize(tag)
	if u.ArchiveURL != "" {
		url := strings.ReplaceAll(u.ArchiveURL, "{tag}", v)
		formula = urlRe.ReplaceAllString(formula, "${1}"+url+"${2}")
	}
	formula = versionRe.ReplaceAllString(formula, "${1}"+v+"${2}")
	formula = sha256Re.ReplaceAllString(formula, "${1}"+checksum+"${2}")
	return formula
}
