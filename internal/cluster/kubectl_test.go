package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUpdateImageArgs(t *testing.T) {
	target := Target{Namespace: "prod", Workload: "app", Container: "app"}

	args := updateImageArgs(target, "repo/app:42")

	assert.Equal(t, []string{
		"set", "image", "deployment/app", "app=repo/app:42", "--namespace", "prod",
	}, args)
}

func TestApplyArgs(t *testing.T) {
	args := applyArgs(Target{Workload: "app"}, "deploy/app.yaml")

	// No namespace flag when the manifest carries its own.
	assert.Equal(t, []string{"apply", "-f", "deploy/app.yaml"}, args)
}

func TestRolloutStatusArgs(t *testing.T) {
	target := Target{Namespace: "prod", Workload: "app"}

	args := rolloutStatusArgs(target, 2*time.Minute)

	assert.Equal(t, []string{
		"rollout", "status", "deployment/app", "--timeout=2m0s", "--namespace", "prod",
	}, args)
}
