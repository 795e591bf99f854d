// Package cleanup reclaims local disk held by image layers that no
// run references anymore. Best effort: the pipeline logs failures here
// but never fails because of them.
package cleanup

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	imagetypes "github.com/docker/docker/api/types/image"
)

// PruneAPI is the slice of the Docker client the agent needs.
type PruneAPI interface {
	ImagesPrune(ctx context.Context, pruneFilters filters.Args) (imagetypes.PruneReport, error)
	BuildCachePrune(ctx context.Context, opts types.BuildCachePruneOptions) (*types.BuildCachePruneReport, error)
}

// Report summarizes what a reclaim pass freed.
type Report struct {
	ImagesDeleted  int
	SpaceReclaimed uint64
}

// Agent prunes dangling image layers and, optionally, the builder
// cache after each pipeline run.
type Agent struct {
	api        PruneAPI
	buildCache bool
	logger     *log.Logger
}

func New(api PruneAPI, buildCache bool, logger *log.Logger) *Agent {
	return &Agent{api: api, buildCache: buildCache, logger: logger}
}

// Reclaim removes layers left dangling by superseded builds. Runs once
// per pipeline invocation regardless of how the run ended.
func (a *Agent) Reclaim(ctx context.Context) (Report, error) {
	var report Report

	pruned, err := a.api.ImagesPrune(ctx, filters.NewArgs(filters.Arg("dangling", "true")))
	if err != nil {
		return report, fmt.Errorf("failed to prune dangling images: %w", err)
	}
	report.ImagesDeleted = len(pruned.ImagesDeleted)
	report.SpaceReclaimed = pruned.SpaceReclaimed

	if a.buildCache {
		cachePruned, err := a.api.BuildCachePrune(ctx, types.BuildCachePruneOptions{})
		if err != nil {
			return report, fmt.Errorf("failed to prune build cache: %w", err)
		}
		report.SpaceReclaimed += cachePruned.SpaceReclaimed
	}

	a.logger.Info("reclaimed local build artifacts",
		"images_deleted", report.ImagesDeleted, "space_reclaimed_bytes", report.SpaceReclaimed)
	return report, nil
}
