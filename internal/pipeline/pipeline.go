// Package pipeline sequences one deployment run: build the image,
// publish it under the build tag and "latest", roll it out, verify the
// rollout, and reclaim stale layers. The flow is strictly sequential
// with a single conditional branch (the strategist's fallback) and one
// unconditional terminal step (cleanup).
package pipeline

import (
	"context"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/caravel-cd/caravel/internal/cleanup"
	"github.com/caravel-cd/caravel/internal/history"
	"github.com/caravel-cd/caravel/internal/image"
	"github.com/caravel-cd/caravel/internal/publisher"
)

// RollingTag is the alias every successful run republishes.
const RollingTag = "latest"

// Builder constructs a locally cached image for this run.
type Builder interface {
	Build(ctx context.Context, contextDir, repository, tag string) (image.Ref, error)
}

// Publisher pushes the built image to the registry under a tag set.
type Publisher interface {
	Publish(ctx context.Context, ref image.Ref, tags []string, creds publisher.Credentials) error
}

// Deployer mutates the target workload and verifies the rollout.
type Deployer interface {
	Deploy(ctx context.Context, ref image.Ref) error
}

// Cleaner reclaims local build artifacts at pipeline termination.
type Cleaner interface {
	Reclaim(ctx context.Context) (cleanup.Report, error)
}

// Ledger issues build identifiers and records run outcomes.
type Ledger interface {
	NextBuildID(ctx context.Context, correlation string) (int64, error)
	RecordOutcome(ctx context.Context, rec history.RunRecord) error
}

// Options carries the run parameters resolved from configuration.
type Options struct {
	ContextDir  string
	Repository  string
	Credentials publisher.Credentials
}

// Pipeline executes one run. A new Pipeline is built per invocation;
// concurrent runs are separate processes coordinating only through the
// registry and the cluster.
type Pipeline struct {
	opts      Options
	ledger    Ledger
	builder   Builder
	publisher Publisher
	deployer  Deployer
	cleaner   Cleaner
	logger    *log.Logger

	now func() time.Time
}

func New(opts Options, ledger Ledger, b Builder, p Publisher, d Deployer, c Cleaner, logger *log.Logger) *Pipeline {
	return &Pipeline{
		opts:      opts,
		ledger:    ledger,
		builder:   b,
		publisher: p,
		deployer:  d,
		cleaner:   c,
		logger:    logger,
		now:       time.Now,
	}
}

// Run executes the pipeline. The returned error is the first fatal
// error encountered, attributed to its stage. Cleanup runs exactly
// once on every exit path, including cancellation, and its own failure
// never changes the result.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	correlation := uuid.NewString()
	logger := p.logger.With("run", correlation)
	started := p.now()

	buildID, err := p.ledger.NextBuildID(ctx, correlation)
	if err != nil {
		return &StageError{Stage: StageBuild, Err: err}
	}
	tag := strconv.FormatInt(buildID, 10)
	logger.Info("pipeline started", "build_id", tag, "repository", p.opts.Repository)

	var ref image.Ref
	defer func() {
		var img string
		if ref.Repository != "" {
			img = ref.String()
		}
		p.finalize(ctx, logger, history.RunRecord{
			ID:          buildID,
			Correlation: correlation,
			Image:       img,
			Stage:       string(failedStage(err)),
			Outcome:     outcome(err),
			StartedAt:   started,
		}, err)
	}()

	ref, err = p.builder.Build(ctx, p.opts.ContextDir, p.opts.Repository, tag)
	if err != nil {
		return &StageError{Stage: StageBuild, Err: err}
	}

	if err = p.publisher.Publish(ctx, ref, []string{tag, RollingTag}, p.opts.Credentials); err != nil {
		return &StageError{Stage: StagePublish, Err: err}
	}

	if err = p.deployer.Deploy(ctx, ref); err != nil {
		return &StageError{Stage: StageDeploy, Err: err}
	}

	logger.Info("pipeline succeeded", "image", ref.String(), "took", p.now().Sub(started))
	return nil
}

// finalize is the unconditional tail of every run: reclaim local
// artifacts and write the ledger row. It must survive cancellation, so
// it detaches from the run context's cancel signal.
func (p *Pipeline) finalize(ctx context.Context, logger *log.Logger, rec history.RunRecord, runErr error) {
	ctx = context.WithoutCancel(ctx)

	report, cleanupErr := p.cleaner.Reclaim(ctx)
	if cleanupErr != nil {
		logger.Warn("cleanup failed", "err", cleanupErr)
	} else {
		logger.Debug("cleanup done",
			"images_deleted", report.ImagesDeleted, "space_reclaimed_bytes", report.SpaceReclaimed)
	}

	if runErr == nil {
		rec.Stage = ""
	}
	rec.FinishedAt = p.now()
	if err := p.ledger.RecordOutcome(ctx, rec); err != nil {
		logger.Warn("failed to record run outcome", "err", err)
	}

	if runErr != nil {
		logger.Error("pipeline failed", "stage", failedStage(runErr), "err", runErr)
	}
}
