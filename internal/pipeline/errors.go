package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/caravel-cd/caravel/internal/cluster"
	"github.com/caravel-cd/caravel/internal/strategist"
)

// Stage names the pipeline step that produced an error, so operators
// can tell "image never built" from "never reached registry" from
// "reached cluster but unhealthy".
type Stage string

const (
	StageBuild   Stage = "build"
	StagePublish Stage = "publish"
	StageDeploy  Stage = "deploy"
	StageCleanup Stage = "cleanup"
)

// StageError is a fatal pipeline error attributed to the stage that
// raised it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// outcome classifies a finished run for the ledger and the exit
// summary.
func outcome(err error) string {
	if err == nil {
		return "succeeded"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var rollout *strategist.RolloutError
	if errors.As(err, &rollout) && rollout.Outcome == cluster.OutcomeTimedOut {
		return "timed-out"
	}
	return "failed"
}

// failedStage extracts the stage from a pipeline error, defaulting to
// build for errors raised before any stage ran.
func failedStage(err error) Stage {
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage
	}
	return StageBuild
}
