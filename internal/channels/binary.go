package channels

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vk/shipgrid/internal/builder"
	"github.com/vk/shipgrid/internal/manifest"
	"github.com/vk/shipgrid/internal/release"
)

func init() {
	Register("binary", func(cfg manifest.Channel) (Channel, error) {
		if len(cfg.Targets) == 0 {
			return nil, errors.New("binary channel requires targets")
		}
		if len(cfg.BuildCommand) == 0 || cfg.Output == "" {
			return nil, errors.New("binary channel requires build_command and output")
		}
		return &buildChannel{
			name:    "binary",
			kind:    release.KindBinary,
			targets: cfg.Targets,
			command: cfg.BuildCommand,
			output:  cfg.Output,
		}, nil
	})
	Register("wheel", func(cfg manifest.Channel) (Channel, error) {
		if len(cfg.Targets) == 0 {
			return nil, errors.New("wheel channel requires targets")
		}
		if len(cfg.BuildCommand) == 0 || cfg.Output == "" {
			return nil, errors.New("wheel channel requires build_command and output")
		}
		return &buildChannel{
			name:    "wheel",
			kind:    release.KindWheel,
			targets: cfg.Targets,
			command: cfg.BuildCommand,
			output:  cfg.Output,
		}, nil
	})
}

// buildChannel builds one artifact per target. Targets are disjoint, so
// they build concurrently; a failure aborts this channel's own remaining
// work but never touches sibling channels.
type buildChannel struct {
	name    string
	kind    release.ArtifactKind
	targets []string
	command []string
	output  string
}

func (c *buildChannel) Name() string { return c.name }

func (c *buildChannel) Run(ctx context.Context, env *Env) ([]release.Artifact, error) {
	var (
		mu        sync.Mutex
		artifacts []release.Artifact
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, triple := range c.targets {
		g.Go(func() error {
			artifact, err := env.Builder.Build(gctx, builder.Spec{
				Kind:    c.kind,
				Triple:  triple,
				Command: c.command,
				Output:  c.output,
			})
			if err != nil {
				return err
			}
			artifact, err = env.upload(gctx, artifact)
			if err != nil {
				return err
			}
			mu.Lock()
			artifacts = append(artifacts, artifact)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return artifacts, nil
}
