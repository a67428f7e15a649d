// Package version implements tag handling for a release run: the stability
// predicate that gates the tap and stable-docs channels, and the naming
// convention for produced artifacts.
package version

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// Normalize strips an optional leading "v" from a release tag, returning the
// bare version string used in artifact names and registry versions.
func Normalize(tag string) string {
	return strings.TrimPrefix(tag, "v")
}

// IsStable reports whether a tag is a stable release. A tag is stable iff it
// carries no pre-release qualifier. Valid semver tags are judged by their
// parsed pre-release component; anything else falls back to looking for the
// "-" delimiter, which is how the upstream registries read tags too.
func IsStable(tag string) bool {
	v := "v" + Normalize(tag)
	if semver.IsValid(v) {
		return semver.Prerelease(v) == ""
	}
	return !strings.Contains(Normalize(tag), "-")
}

// ArchiveName returns the name for a full-source archive artifact:
// {project}_{tag}.{ext}.
func ArchiveName(project, tag, ext string) string {
	return fmt.Sprintf("%s_%s.%s", project, Normalize(tag), ext)
}

// BinaryName returns the name for a platform binary artifact:
// {binaryName}_{tag}_{arch}_{os}, with ".exe" appended on windows.
func BinaryName(binary, tag, arch, os string) string {
	name := fmt.Sprintf("%s_%s_%s_%s", binary, Normalize(tag), arch, os)
	if os == "windows" {
		name += ".exe"
	}
	return name
}
