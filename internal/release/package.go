package release

// Package is one registry-publishable unit of the release graph.
type Package struct {
	// Name is the package's identity in its target registry.
	Name string

	// Path is the package's location relative to the source tree root.
	Path string

	// Registry names the registry configuration this package publishes to.
	Registry string

	// DependsOn lists the names of packages that must be visible in the
	// registry before this one may be published. All names must resolve
	// within the same release graph.
	DependsOn []string
}
