// Package docker owns the daemon connection shared by the build,
// publish and cleanup stages.
package docker

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
)

// MinServerVersion is the oldest daemon the pipeline is tested
// against; BuildKit progress output changed shape before this.
const MinServerVersion = "20.10.0"

// NewClient connects to the daemon using the standard environment
// (DOCKER_HOST and friends) and negotiates the API version.
func NewClient() (*client.Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return cli, nil
}

// SystemAPI is the slice of the Docker client the preflight needs.
type SystemAPI interface {
	ServerVersion(ctx context.Context) (types.Version, error)
}

// VerifyServer checks the daemon is reachable and recent enough.
func VerifyServer(ctx context.Context, api SystemAPI, logger *log.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	v, err := api.ServerVersion(ctx)
	if err != nil {
		return fmt.Errorf("cannot connect to Docker daemon: %w", err)
	}

	current, err := semver.NewVersion(v.Version)
	if err != nil {
		// Some daemons report non-semver builds; don't block on them.
		logger.Warn("unparseable Docker daemon version", "version", v.Version)
		return nil
	}
	if current.LessThan(semver.MustParse(MinServerVersion)) {
		return fmt.Errorf("docker daemon %s is older than supported minimum %s", v.Version, MinServerVersion)
	}

	logger.Debug("docker daemon ok", "version", v.Version, "api", v.APIVersion)
	return nil
}
