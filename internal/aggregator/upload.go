package aggregator

import (
	"context"
	"fmt"
	"os"

	"resty.dev/v3"

	"github.com/vk/shipgrid/internal/ctxlog"
	"github.com/vk/shipgrid/internal/release"
)

// AssetUploader attaches artifact files to the external release object on
// the version-control host. Upload failures belong to the channel that
// produced the artifact, not to the aggregate record.
type AssetUploader struct {
	// BaseURL is the host's release API root; Repository its owner/name
	// slug; Tag the release to attach to.
	BaseURL    string
	Repository string
	Tag        string

	client *resty.Client
}

// NewAssetUploader creates an uploader authenticated by the token, which is
// sent as a bearer credential.
func NewAssetUploader(baseURL, repository, tag, token string) *AssetUploader {
	client := resty.New().SetAuthToken(token)
	return &AssetUploader{
		BaseURL:    baseURL,
		Repository: repository,
		Tag:        tag,
		client:     client,
	}
}

// Close releases the uploader's HTTP client.
func (u *AssetUploader) Close() error {
	if u.client != nil {
		return u.client.Close()
	}
	return nil
}

// Upload pushes one artifact file and returns its download URL.
func (u *AssetUploader) Upload(ctx context.Context, artifact release.Artifact) (string, error) {
	logger := ctxlog.FromContext(ctx).With("asset", artifact.Name)

	data, err := os.ReadFile(artifact.Path)
	if err != nil {
		return "", fmt.Errorf("reading artifact %s: %w", artifact.Name, err)
	}

	url := fmt.Sprintf("%s/repos/%s/releases/%s/assets", u.BaseURL, u.Repository, u.Tag)
	res, err := u.client.R().
		SetContext(ctx).
		SetQueryParam("name", artifact.Name).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(data).
		Post(url)
	if err != nil {
		return "", fmt.Errorf("uploading asset %s: %w", artifact.Name, err)
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("uploading asset %s: unexpected status %s", artifact.Name, res.Status())
	}

	assetURL := fmt.Sprintf("%s/%s", url, artifact.Name)
	logger.Info("✅ Asset attached to release", "url", assetURL)
	return assetURL, nil
}
