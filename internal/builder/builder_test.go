package builder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/docker/docker/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeImageAPI struct {
	response string
	err      error

	calls   int
	options types.ImageBuildOptions
}

func (f *fakeImageAPI) ImageBuild(ctx context.Context, buildContext io.Reader, options types.ImageBuildOptions) (types.ImageBuildResponse, error) {
	f.calls++
	f.options = options
	if f.err != nil {
		return types.ImageBuildResponse{}, f.err
	}
	// The daemon expects the context to be streamed in full.
	if _, err := io.Copy(io.Discard, buildContext); err != nil {
		return types.ImageBuildResponse{}, err
	}
	return types.ImageBuildResponse{Body: io.NopCloser(strings.NewReader(f.response))}, nil
}

func writeBuildContext(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0o644)
	require.NoError(t, err)
	return dir
}

func TestBuildSuccess(t *testing.T) {
	api := &fakeImageAPI{response: strings.Join([]string{
		`{"stream":"Step 1/1 : FROM scratch"}`,
		`{"aux":{"ID":"sha256:deadbeef"}}`,
		`{"stream":"Successfully built deadbeef"}`,
	}, "\n")}
	b := New(api, "", log.New(io.Discard))

	ref, err := b.Build(context.Background(), writeBuildContext(t), "repo/app", "42")

	require.NoError(t, err)
	assert.Equal(t, "repo/app:42", ref.String())
	assert.Equal(t, "sha256:deadbeef", ref.Digest)
	assert.Equal(t, []string{"repo/app:42"}, api.options.Tags)
	assert.Equal(t, "Dockerfile", api.options.Dockerfile)
}

func TestBuildDaemonErrorInStream(t *testing.T) {
	api := &fakeImageAPI{response: strings.Join([]string{
		`{"stream":"Step 1/2 : FROM scratch"}`,
		`{"errorDetail":{"message":"no such file"},"error":"no such file"}`,
	}, "\n")}
	b := New(api, "", log.New(io.Discard))

	_, err := b.Build(context.Background(), writeBuildContext(t), "repo/app", "42")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such file")
}

func TestBuildMissingDescriptor(t *testing.T) {
	api := &fakeImageAPI{}
	b := New(api, "", log.New(io.Discard))

	_, err := b.Build(context.Background(), t.TempDir(), "repo/app", "42")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Dockerfile")
	// The daemon must never be invoked for a malformed context.
	assert.Zero(t, api.calls)
}

func TestBuildInvalidTag(t *testing.T) {
	api := &fakeImageAPI{}
	b := New(api, "", log.New(io.Discard))

	_, err := b.Build(context.Background(), writeBuildContext(t), "repo/app", "not ok")

	require.Error(t, err)
	assert.Zero(t, api.calls)
}

func TestBuildCustomDescriptorName(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "Dockerfile.prod"), []byte("FROM scratch\n"), 0o644)
	require.NoError(t, err)

	api := &fakeImageAPI{response: `{"stream":"done"}`}
	b := New(api, "Dockerfile.prod", log.New(io.Discard))

	_, err = b.Build(context.Background(), dir, "repo/app", "42")

	require.NoError(t, err)
	assert.Equal(t, "Dockerfile.prod", api.options.Dockerfile)
}
