package cleanup

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	imagetypes "github.com/docker/docker/api/types/image"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePruneAPI struct {
	imagesReport imagetypes.PruneReport
	imagesErr    error
	cacheReport  types.BuildCachePruneReport
	cacheErr     error

	imagesFilters filters.Args
	cacheCalls    int
}

func (f *fakePruneAPI) ImagesPrune(ctx context.Context, pruneFilters filters.Args) (imagetypes.PruneReport, error) {
	f.imagesFilters = pruneFilters
	return f.imagesReport, f.imagesErr
}

func (f *fakePruneAPI) BuildCachePrune(ctx context.Context, opts types.BuildCachePruneOptions) (*types.BuildCachePruneReport, error) {
	f.cacheCalls++
	if f.cacheErr != nil {
		return nil, f.cacheErr
	}
	return &f.cacheReport, nil
}

func TestReclaimDanglingOnly(t *testing.T) {
	api := &fakePruneAPI{
		imagesReport: imagetypes.PruneReport{
			ImagesDeleted:  []imagetypes.DeleteResponse{{Deleted: "sha256:aa"}, {Deleted: "sha256:bb"}},
			SpaceReclaimed: 2048,
		},
	}
	agent := New(api, false, log.New(io.Discard))

	report, err := agent.Reclaim(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, report.ImagesDeleted)
	assert.Equal(t, uint64(2048), report.SpaceReclaimed)
	assert.Equal(t, []string{"true"}, api.imagesFilters.Get("dangling"))
	assert.Zero(t, api.cacheCalls)
}

func TestReclaimWithBuildCache(t *testing.T) {
	api := &fakePruneAPI{
		imagesReport: imagetypes.PruneReport{SpaceReclaimed: 100},
		cacheReport:  types.BuildCachePruneReport{SpaceReclaimed: 400},
	}
	agent := New(api, true, log.New(io.Discard))

	report, err := agent.Reclaim(context.Background())

	require.NoError(t, err)
	assert.Equal(t, uint64(500), report.SpaceReclaimed)
	assert.Equal(t, 1, api.cacheCalls)
}

func TestReclaimImagePruneError(t *testing.T) {
	api := &fakePruneAPI{imagesErr: fmt.Errorf("daemon busy")}
	agent := New(api, true, log.New(io.Discard))

	_, err := agent.Reclaim(context.Background())

	require.Error(t, err)
	// No cache prune after the image prune already failed.
	assert.Zero(t, api.cacheCalls)
}
