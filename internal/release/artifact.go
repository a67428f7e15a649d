package release

// ArtifactKind classifies what a build produced.
type ArtifactKind string

const (
	KindBinary  ArtifactKind = "binary"
	KindWheel   ArtifactKind = "wheel"
	KindArchive ArtifactKind = "archive"
	KindImage   ArtifactKind = "image"
)

// Artifact is the typed, immutable result of one build. It is created by a
// builder, owned by the aggregator once attached, and never mutated after
// production.
type Artifact struct {
	Kind   ArtifactKind `yaml:"kind"`
	Name   string       `yaml:"name"`
	Target Target       `yaml:"target,omitempty"`

	// Path is the artifact's location on the local filesystem. Empty for
	// artifacts that only exist remotely (pushed images).
	Path string `yaml:"path,omitempty"`

	// URL is where the artifact ended up after its channel published it.
	URL string `yaml:"url,omitempty"`

	// Checksum is the hex sha256 of the artifact's content. Always set for
	// archives, whose checksum feeds the tap formula update.
	Checksum string `yaml:"checksum,omitempty"`
}
