package channels

import (
	"context"

	"github.com/vk/shipgrid/internal/manifest"
	"github.com/vk/shipgrid/internal/release"
)

func init() {
	Register("archive", func(cfg manifest.Channel) (Channel, error) {
		format := cfg.Format
		if format == "" {
			format = "tar.gz"
		}
		return &archiveChannel{format: format}, nil
	})
}

// archiveChannel produces the full-source archive. Its checksum is the
// upstream input for the tap formula update, so the tap step is gated on
// this channel's success.
type archiveChannel struct {
	format string
}

func (c *archiveChannel) Name() string { return "archive" }

func (c *archiveChannel) Run(ctx context.Context, env *Env) ([]release.Artifact, error) {
	artifact, err := env.Builder.BuildArchive(ctx, c.format)
	if err != nil {
		return nil, err
	}
	artifact, err = env.upload(ctx, artifact)
	if err != nil {
		return nil, err
	}
	return []release.Artifact{artifact}, nil
}
