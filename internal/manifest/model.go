// Package manifest loads and validates the HCL release manifest: the
// project identity, the registry configuration, the package dependency
// graph, the enabled channels, and the tap settings.
package manifest

import "time"

// Manifest is the fully decoded and validated release manifest.
type Manifest struct {
	Project    Project
	Registries []Registry
	Packages   []Package
	Channels   []Channel
	Tap        *Tap
}

// Project identifies the release subject.
type Project struct {
	Name       string `hcl:"name"`
	BinaryName string `hcl:"binary_name,optional"`
	Repository string `hcl:"repository,optional"`
}

// Registry configures one external package registry and the propagation
// strategy between dependent publishes against it.
type Registry struct {
	Name string `hcl:"name,label"`

	// Command and PublishArgs form the registry CLI invocation run in each
	// package directory, e.g. "cargo" + ["publish"].
	Command     string   `hcl:"command"`
	PublishArgs []string `hcl:"publish_args,optional"`

	// SettleDelay is the fixed wait between tiers ("60s"). WaitStrategy
	// selects "delay" (default) or "poll"; poll requires IndexURL.
	SettleDelay  string `hcl:"settle_delay,optional"`
	WaitStrategy string `hcl:"wait_strategy,optional"`
	IndexURL     string `hcl:"index_url,optional"`

	// Serial forces sequential publishes within a tier.
	Serial bool `hcl:"serial,optional"`

	settleDelay time.Duration
}

// SettleDuration returns the parsed settle delay.
func (r Registry) SettleDuration() time.Duration {
	return r.settleDelay
}

// Package declares one registry-publishable unit and its dependency edges.
type Package struct {
	Name      string   `hcl:"name,label"`
	Path      string   `hcl:"path"`
	Registry  string   `hcl:"registry,optional"`
	DependsOn []string `hcl:"depends_on,optional"`
}

// Channel enables one publication channel. The attribute set is the union
// of what the individual channels accept; each channel validates its own.
type Channel struct {
	Name string `hcl:"name,label"`

	Targets      []string `hcl:"targets,optional"`
	BuildCommand []string `hcl:"build_command,optional"`
	Output       string   `hcl:"output,optional"`

	// Format is the archive format, "tar.gz" or "zip".
	Format string `hcl:"format,optional"`

	// Image is the container image reference, without tag.
	Image string `hcl:"image,optional"`

	// Remote and Dir configure the docs channel: the site repository and
	// the source directory the generator runs in.
	Remote  string   `hcl:"remote,optional"`
	Dir     string   `hcl:"dir,optional"`
	Command []string `hcl:"command,optional"`
}

// Tap configures the package-manager tap formula update.
type Tap struct {
	Repository string `hcl:"repository"`
	Formula    string `hcl:"formula"`

	// ArchiveURL is the formula's source-archive URL template; {tag} is
	// expanded with the normalized release tag.
	ArchiveURL string `hcl:"archive_url,optional"`
}
