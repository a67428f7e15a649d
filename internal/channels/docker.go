package channels

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/shipgrid/internal/ctxlog"
	"github.com/vk/shipgrid/internal/manifest"
	"github.com/vk/shipgrid/internal/release"
	"github.com/vk/shipgrid/internal/version"
)

func init() {
	Register("docker", func(cfg manifest.Channel) (Channel, error) {
		if cfg.Image == "" {
			return nil, errors.New("docker channel requires image")
		}
		return &dockerChannel{image: cfg.Image}, nil
	})
}

// dockerChannel builds the container image and pushes {image}:{tag}; stable
// releases additionally move the :latest tag.
type dockerChannel struct {
	image string
}

func (c *dockerChannel) Name() string { return "docker" }

func (c *dockerChannel) Run(ctx context.Context, env *Env) ([]release.Artifact, error) {
	logger := ctxlog.FromContext(ctx).With("channel", "docker")

	tagged := fmt.Sprintf("%s:%s", c.image, version.Normalize(env.Tag))
	refs := []string{tagged}
	if version.IsStable(env.Tag) {
		refs = append(refs, c.image+":latest")
	}

	buildArgs := []string{"build"}
	for _, ref := range refs {
		buildArgs = append(buildArgs, "-t", ref)
	}
	buildArgs = append(buildArgs, ".")
	if err := env.Run(ctx, env.WorkDir, "docker", buildArgs...); err != nil {
		return nil, fmt.Errorf("docker build: %w", err)
	}

	for _, ref := range refs {
		logger.Info("▶️ Pushing image", "ref", ref)
		if err := env.Run(ctx, env.WorkDir, "docker", "push", ref); err != nil {
			return nil, fmt.Errorf("docker push %s: %w", ref, err)
		}
	}

	logger.Info("✅ Images pushed", "count", len(refs))
	return []release.Artifact{{
		Kind: release.KindImage,
		Name: tagged,
		URL:  tagged,
	}}, nil
}
