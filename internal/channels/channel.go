// Package channels implements the independent publication targets of a
// release: the source archive, per-platform binaries, language wheels,
// container images, and the documentation site. Channels share no mutable
// state; each one succeeds or fails on its own.
package channels

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/shipgrid/internal/builder"
	"github.com/vk/shipgrid/internal/manifest"
	"github.com/vk/shipgrid/internal/release"
)

// Attacher receives finished artifacts for aggregation onto the release
// record. Implementations must be safe for concurrent use.
type Attacher interface {
	Attach(a release.Artifact)
}

// Env carries the read-only release metadata and the collaborators a
// channel may use. Channels must not mutate anything here.
type Env struct {
	Project string
	Binary  string
	Tag     string
	Commit  string
	WorkDir string

	Builder *builder.Builder
	Run     builder.CommandRunner

	// Upload attaches an artifact file to the external release object and
	// returns its URL. Nil when asset upload is disabled (dry runs, tests).
	Upload func(ctx context.Context, a release.Artifact) (string, error)
}

// upload pushes an artifact to the release object when an uploader is
// configured, stamping the returned URL onto the artifact.
func (e *Env) upload(ctx context.Context, a release.Artifact) (release.Artifact, error) {
	if e.Upload == nil {
		return a, nil
	}
	url, err := e.Upload(ctx, a)
	if err != nil {
		return a, fmt.Errorf("uploading %s: %w", a.Name, err)
	}
	a.URL = url
	return a, nil
}

// Channel is one independently-succeeding-or-failing publication target.
type Channel interface {
	Name() string
	Run(ctx context.Context, env *Env) ([]release.Artifact, error)
}

// Factory builds a channel from its manifest block.
type Factory func(cfg manifest.Channel) (Channel, error)

var factories = map[string]Factory{}

// Register adds a channel factory under its manifest name. Called from
// package init functions.
func Register(name string, f Factory) {
	if _, dup := factories[name]; dup {
		panic(fmt.Sprintf("channel %q registered twice", name))
	}
	factories[name] = f
}

// FromManifest instantiates every channel block of the manifest, filtered
// by `only` when non-empty (manual re-run of selected channels).
func FromManifest(cfgs []manifest.Channel, only []string) ([]Channel, error) {
	selected := make(map[string]bool, len(only))
	for _, name := range only {
		selected[name] = true
	}

	var out []Channel
	for _, cfg := range cfgs {
		if len(selected) > 0 && !selected[cfg.Name] {
			continue
		}
		factory, ok := factories[cfg.Name]
		if !ok {
			return nil, fmt.Errorf("unknown channel %q (known: %v)", cfg.Name, Known())
		}
		ch, err := factory(cfg)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", cfg.Name, err)
		}
		out = append(out, ch)
	}
	return out, nil
}

// Known lists the registered channel names, sorted.
func Known() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
