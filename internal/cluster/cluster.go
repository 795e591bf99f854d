// Package cluster abstracts the Kubernetes control plane operations
// the pipeline needs: mutate a workload's image, apply a manifest, and
// observe a rollout.
package cluster

import (
	"context"
	"time"
)

// Outcome is the terminal result of observing a rollout.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed-out"
)

// Target identifies a pre-existing workload in a cluster namespace.
// The pipeline only ever mutates the workload's declared image.
type Target struct {
	Namespace string
	Workload  string
	Container string
}

// Interface is implemented by the kubectl adapter and by test fakes.
type Interface interface {
	// UpdateImage points the target's container at ref without
	// touching any other declared property of the workload.
	UpdateImage(ctx context.Context, target Target, ref string) error

	// Apply declares the complete desired workload specification from
	// the manifest, creating the workload if absent or reconciling
	// drift if present.
	Apply(ctx context.Context, target Target, manifestPath string) error

	// RolloutStatus blocks until the workload's rollout reaches a
	// terminal state or timeout elapses. The error carries detail for
	// failed and timed-out outcomes.
	RolloutStatus(ctx context.Context, target Target, timeout time.Duration) (Outcome, error)
}
