// Package builder turns a build context directory into a locally
// cached image tagged for the current run.
package builder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/caravel-cd/caravel/internal/image"
)

// ImageAPI is the slice of the Docker client the builder needs.
type ImageAPI interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error)
}

// Builder invokes the Docker daemon to construct an image from a
// build context. The daemon call blocks until the build finishes.
type Builder struct {
	api        ImageAPI
	dockerfile string
	logger     *log.Logger
}

// New creates a builder. dockerfile is the descriptor name relative to
// the context directory, usually "Dockerfile".
func New(api ImageAPI, dockerfile string, logger *log.Logger) *Builder {
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}
	return &Builder{api: api, dockerfile: dockerfile, logger: logger}
}

// Build constructs repository:tag from contextDir. The returned ref
// carries the image id digest when the daemon reports one.
func (b *Builder) Build(ctx context.Context, contextDir, repository, tag string) (image.Ref, error) {
	if err := image.ValidateTag(tag); err != nil {
		return image.Ref{}, err
	}

	descriptor := filepath.Join(contextDir, b.dockerfile)
	if _, err := os.Stat(descriptor); err != nil {
		return image.Ref{}, fmt.Errorf("build context %s has no %s: %w", contextDir, b.dockerfile, err)
	}

	ref := image.Ref{Repository: repository, Tag: tag}

	buildContext, err := archive.TarWithOptions(contextDir, &archive.TarOptions{})
	if err != nil {
		return image.Ref{}, fmt.Errorf("failed to tar build context %s: %w", contextDir, err)
	}
	defer buildContext.Close()

	b.logger.Info("building image", "image", ref.String(), "context", contextDir)

	resp, err := b.api.ImageBuild(ctx, buildContext, types.ImageBuildOptions{
		Tags:       []string{ref.String()},
		Dockerfile: b.dockerfile,
		Remove:     true,
	})
	if err != nil {
		return image.Ref{}, fmt.Errorf("docker build failed: %w", err)
	}
	defer resp.Body.Close()

	imageID, err := b.drainBuildOutput(resp.Body)
	if err != nil {
		return image.Ref{}, err
	}
	ref.Digest = imageID

	b.logger.Info("image built", "image", ref.String(), "id", imageID)
	return ref, nil
}

// drainBuildOutput consumes the daemon's progress stream. The build is
// not complete until the stream is drained, and daemon-side failures
// arrive as error messages inside it rather than as a call error.
func (b *Builder) drainBuildOutput(body io.Reader) (string, error) {
	var imageID string

	dec := json.NewDecoder(body)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("failed to decode build output: %w", err)
		}

		if msg.Error != nil {
			return "", fmt.Errorf("docker build failed: %s", msg.Error.Message)
		}

		if msg.Aux != nil {
			var result types.BuildResult
			if err := json.Unmarshal(*msg.Aux, &result); err == nil && result.ID != "" {
				imageID = result.ID
			}
		}

		if line := strings.TrimSpace(msg.Stream); line != "" {
			b.logger.Debug(line)
		}
	}

	return imageID, nil
}
