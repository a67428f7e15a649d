package release

import (
	"fmt"
	"strings"
)

// Target describes one platform × architecture build destination.
type Target struct {
	OS   string `yaml:"os"`
	Arch string `yaml:"arch"`
}

// knownOS maps target-triple OS components to the names used in artifact
// file names.
var knownOS = map[string]string{
	"linux":   "linux",
	"apple":   "macos",
	"darwin":  "macos",
	"macos":   "macos",
	"windows": "windows",
}

// ParseTarget parses a manifest target triple such as "x86_64-linux" or
// "aarch64-apple" into a Target. Unknown platforms are a configuration
// error, reported so the owning channel can surface TargetUnsupported.
func ParseTarget(triple string) (Target, error) {
	arch, osPart, ok := strings.Cut(triple, "-")
	if !ok || arch == "" {
		return Target{}, fmt.Errorf("malformed target triple %q", triple)
	}
	osName, ok := knownOS[osPart]
	if !ok {
		return Target{}, fmt.Errorf("unsupported target os %q in %q", osPart, triple)
	}
	return Target{OS: osName, Arch: arch}, nil
}

// String returns the target in arch-os form.
func (t Target) String() string {
	return t.Arch + "-" + t.OS
}
