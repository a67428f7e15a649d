package app

import "errors"

// Config holds everything one orchestrator invocation needs to run.
type Config struct {
	// ManifestPath points at the release manifest file or directory.
	ManifestPath string

	// Tag and Commit come from the release event that triggered the run.
	Tag    string
	Commit string

	// Channels optionally restricts the fan-out to the named channels,
	// for manual re-runs of a failed channel.
	Channels []string

	// ReleaseAPI is the version-control host's release API root. Asset
	// upload is disabled when empty.
	ReleaseAPI string

	// WorkDir is the source tree root the toolchains run in.
	WorkDir string

	DryRun    bool
	LogFormat string
	LogLevel  string
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ManifestPath == "" {
		return nil, errors.New("ManifestPath is a required configuration field and cannot be empty")
	}
	if cfg.Tag == "" {
		return nil, errors.New("a release tag is required")
	}
	if cfg.Commit == "" {
		return nil, errors.New("a source commit is required")
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}
	return &cfg, nil
}
