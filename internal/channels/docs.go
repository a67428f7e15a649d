package channels

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/vk/shipgrid/internal/ctxlog"
	"github.com/vk/shipgrid/internal/manifest"
	"github.com/vk/shipgrid/internal/release"
	"github.com/vk/shipgrid/internal/version"
)

func init() {
	Register("docs", func(cfg manifest.Channel) (Channel, error) {
		if cfg.Remote == "" {
			return nil, errors.New("docs channel requires remote")
		}
		if len(cfg.Command) == 0 {
			return nil, errors.New("docs channel requires command")
		}
		dir := cfg.Dir
		if dir == "" {
			dir = "docs"
		}
		return &docsChannel{remote: cfg.Remote, dir: dir, command: cfg.Command}, nil
	})
}

// docsChannel runs the documentation generator and pushes the result to the
// site repository: always under the release tag, and under the "stable"
// alias only for stable releases.
type docsChannel struct {
	remote  string
	dir     string
	command []string
}

func (c *docsChannel) Name() string { return "docs" }

func (c *docsChannel) Run(ctx context.Context, env *Env) ([]release.Artifact, error) {
	logger := ctxlog.FromContext(ctx).With("channel", "docs")

	docsDir := filepath.Join(env.WorkDir, c.dir)
	logger.Info("▶️ Generating documentation", "dir", docsDir)
	if err := env.Run(ctx, docsDir, c.command[0], c.command[1:]...); err != nil {
		return nil, err
	}

	aliases := []string{version.Normalize(env.Tag)}
	if version.IsStable(env.Tag) {
		aliases = append(aliases, "stable")
	}
	for _, alias := range aliases {
		if err := env.Run(ctx, docsDir, "git", "push", c.remote, "HEAD:refs/heads/"+alias, "--force"); err != nil {
			return nil, err
		}
	}

	logger.Info("✅ Documentation published", "aliases", aliases)
	return nil, nil
}
