package cluster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestResolveTarget(t *testing.T) {
	path := writeManifest(t, `
apiVersion: apps/v1
kind: Deployment
metadata:
  name: app
  namespace: prod
spec:
  template:
    spec:
      containers:
        - name: web
          image: repo/app:latest
`)

	target, err := ResolveTarget(path)

	require.NoError(t, err)
	assert.Equal(t, Target{Namespace: "prod", Workload: "app", Container: "web"}, target)
}

func TestResolveTargetSkipsOtherKinds(t *testing.T) {
	path := writeManifest(t, `
apiVersion: v1
kind: Service
metadata:
  name: app
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: app
  namespace: prod
spec:
  template:
    spec:
      containers:
        - name: app
`)

	target, err := ResolveTarget(path)

	require.NoError(t, err)
	assert.Equal(t, "app", target.Workload)
	assert.Equal(t, "prod", target.Namespace)
}

func TestResolveTargetDefaultsContainerName(t *testing.T) {
	path := writeManifest(t, `
kind: Deployment
metadata:
  name: app
`)

	target, err := ResolveTarget(path)

	require.NoError(t, err)
	assert.Equal(t, "app", target.Container)
}

func TestResolveTargetNoDeployment(t *testing.T) {
	path := writeManifest(t, `
kind: ConfigMap
metadata:
  name: settings
`)

	_, err := ResolveTarget(path)

	assert.Error(t, err)
}

func TestResolveTargetMissingFile(t *testing.T) {
	_, err := ResolveTarget(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Error(t, err)
}

func TestResolveTargetBadYAML(t *testing.T) {
	path := writeManifest(t, "kind: [unclosed")

	_, err := ResolveTarget(path)

	assert.Error(t, err)
}
