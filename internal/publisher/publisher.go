// Package publisher pushes a locally built image to the registry under
// the run's tag set.
package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	imagetypes "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/pkg/jsonmessage"

	"github.com/caravel-cd/caravel/internal/image"
)

// ImageAPI is the slice of the Docker client the publisher needs.
type ImageAPI interface {
	ImageTag(ctx context.Context, source, target string) error
	ImagePush(ctx context.Context, ref string, options imagetypes.PushOptions) (io.ReadCloser, error)
}

// Credentials is the opaque registry secret. It is passed through to
// the daemon and never logged or persisted.
type Credentials struct {
	Username string
	Password string
}

// Publisher pushes one image under several tags. All pushes must
// succeed for the step to count as successful; there is no partial
// success surfaced upward.
type Publisher struct {
	api    ImageAPI
	logger *log.Logger
}

func New(api ImageAPI, logger *log.Logger) *Publisher {
	return &Publisher{api: api, logger: logger}
}

// Publish tags ref's content with every tag in tags and pushes each to
// the registry. Re-pushing content the registry already holds is a
// registry-side no-op, not an error.
func (p *Publisher) Publish(ctx context.Context, ref image.Ref, tags []string, creds Credentials) error {
	if len(tags) == 0 {
		return fmt.Errorf("no tags to publish for %s", ref.String())
	}

	auth, err := encodeAuth(ref.Repository, creds)
	if err != nil {
		return err
	}

	for _, tag := range tags {
		target := ref.WithTag(tag)

		if target.String() != ref.String() {
			if err := p.api.ImageTag(ctx, ref.String(), target.String()); err != nil {
				return fmt.Errorf("failed to tag %s as %s: %w", ref.String(), target.String(), err)
			}
		}

		if err := p.push(ctx, target, auth); err != nil {
			return err
		}
	}

	return nil
}

func (p *Publisher) push(ctx context.Context, ref image.Ref, auth string) error {
	p.logger.Info("pushing image", "image", ref.String())

	body, err := p.api.ImagePush(ctx, ref.String(), imagetypes.PushOptions{RegistryAuth: auth})
	if err != nil {
		return fmt.Errorf("failed to push %s: %w", ref.String(), err)
	}
	defer body.Close()

	// The push is not acknowledged until the stream is drained; the
	// registry rejecting a layer shows up as an error message in it.
	dec := json.NewDecoder(body)
	for {
		var msg jsonmessage.JSONMessage
		if err := dec.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("failed to decode push output for %s: %w", ref.String(), err)
		}
		if msg.Error != nil {
			return fmt.Errorf("failed to push %s: %s", ref.String(), msg.Error.Message)
		}
	}

	p.logger.Info("image pushed", "image", ref.String())
	return nil
}

// encodeAuth wraps credentials in the base64 JSON header the daemon
// expects. StdEncoding for Podman compatibility.
func encodeAuth(repository string, creds Credentials) (string, error) {
	server, err := image.Domain(repository)
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(registry.AuthConfig{
		Username:      creds.Username,
		Password:      creds.Password,
		ServerAddress: server,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal registry auth: %w", err)
	}

	return base64.StdEncoding.EncodeToString(payload), nil
}
