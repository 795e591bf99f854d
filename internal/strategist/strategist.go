// Package strategist drives a deployment to its terminal state. It
// prefers a minimal-diff in-place image update and falls back to a
// full manifest apply exactly once, only when the update command
// itself fails. A rollout that goes unhealthy after a successful
// mutation is a real deployment problem and never triggers the
// fallback.
package strategist

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/caravel-cd/caravel/internal/cluster"
	"github.com/caravel-cd/caravel/internal/image"
)

// State is the strategist's position in the deployment lifecycle.
type State string

const (
	StateIdle                    State = "idle"
	StateAttemptingInPlace       State = "attempting-in-place"
	StateAttemptingManifestApply State = "attempting-manifest-apply"
	StateObservingRollout        State = "observing-rollout"
	StateSucceeded               State = "succeeded"
	StateFailed                  State = "failed"
	StateTimedOut                State = "timed-out"
)

// CommandError means neither mutation path could be executed: the
// in-place update failed and so did the manifest apply. The in-place
// error is kept so operators can tell "workload absent" apart from
// other command failures.
type CommandError struct {
	InPlaceErr error
	ApplyErr   error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("deployment commands failed: in-place update: %v; manifest apply: %v", e.InPlaceErr, e.ApplyErr)
}

func (e *CommandError) Unwrap() error { return e.ApplyErr }

// RolloutError means the mutation was accepted but the workload never
// reached a healthy state within bounds. Not retried here; retrying is
// an operator decision.
type RolloutError struct {
	Outcome cluster.Outcome
	Detail  error
}

func (e *RolloutError) Error() string {
	return fmt.Sprintf("rollout %s: %v", e.Outcome, e.Detail)
}

func (e *RolloutError) Unwrap() error { return e.Detail }

// Strategist deploys one image reference to one target. Not reusable
// across runs; each pipeline run constructs its own.
type Strategist struct {
	cluster        cluster.Interface
	target         cluster.Target
	manifestPath   string
	rolloutTimeout time.Duration
	logger         *log.Logger

	state    State
	fellBack bool
}

func New(c cluster.Interface, target cluster.Target, manifestPath string, rolloutTimeout time.Duration, logger *log.Logger) *Strategist {
	return &Strategist{
		cluster:        c,
		target:         target,
		manifestPath:   manifestPath,
		rolloutTimeout: rolloutTimeout,
		logger:         logger,
		state:          StateIdle,
	}
}

// State reports the current lifecycle state.
func (s *Strategist) State() State { return s.state }

// FellBack reports whether the manifest-apply fallback was used.
func (s *Strategist) FellBack() bool { return s.fellBack }

// Deploy mutates the target to run ref and blocks until the rollout
// reaches a terminal state. Returns nil only when the rollout
// succeeded.
func (s *Strategist) Deploy(ctx context.Context, ref image.Ref) error {
	if err := s.mutate(ctx, ref); err != nil {
		s.state = StateFailed
		return err
	}

	s.state = StateObservingRollout
	s.logger.Info("observing rollout",
		"workload", s.target.Workload, "namespace", s.target.Namespace, "timeout", s.rolloutTimeout)

	outcome, err := s.cluster.RolloutStatus(ctx, s.target, s.rolloutTimeout)
	switch outcome {
	case cluster.OutcomeSucceeded:
		s.state = StateSucceeded
		s.logger.Info("rollout succeeded", "workload", s.target.Workload, "image", ref.String())
		return nil
	case cluster.OutcomeTimedOut:
		s.state = StateTimedOut
		return &RolloutError{Outcome: outcome, Detail: err}
	default:
		s.state = StateFailed
		return &RolloutError{Outcome: cluster.OutcomeFailed, Detail: err}
	}
}

// mutate tries the in-place update and falls back to the manifest
// apply on command failure. Whichever path succeeds moves the
// deployment forward to rollout observation.
func (s *Strategist) mutate(ctx context.Context, ref image.Ref) error {
	s.state = StateAttemptingInPlace
	inPlaceErr := s.cluster.UpdateImage(ctx, s.target, ref.String())
	if inPlaceErr == nil {
		return nil
	}

	// The workload may not exist yet (first deploy) or its live spec
	// may have drifted; declaring the full manifest covers both.
	s.logger.Warn("in-place update failed, applying manifest",
		"workload", s.target.Workload, "err", inPlaceErr)

	s.state = StateAttemptingManifestApply
	s.fellBack = true
	if applyErr := s.cluster.Apply(ctx, s.target, s.manifestPath); applyErr != nil {
		return &CommandError{InPlaceErr: inPlaceErr, ApplyErr: applyErr}
	}
	return nil
}
