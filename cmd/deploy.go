package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/caravel-cd/caravel/internal/builder"
	"github.com/caravel-cd/caravel/internal/cleanup"
	"github.com/caravel-cd/caravel/internal/cluster"
	"github.com/caravel-cd/caravel/internal/config"
	"github.com/caravel-cd/caravel/internal/docker"
	"github.com/caravel-cd/caravel/internal/history"
	"github.com/caravel-cd/caravel/internal/logging"
	"github.com/caravel-cd/caravel/internal/pipeline"
	"github.com/caravel-cd/caravel/internal/publisher"
	"github.com/caravel-cd/caravel/internal/strategist"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run the full pipeline: build, publish, roll out, verify, prune",
	RunE:  runDeploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.Setup(cfg.Logging)
	if err != nil {
		return err
	}

	// An operator abort must still reach the pipeline's finalizer, so
	// the signal cancels the context instead of killing the process.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli, err := docker.NewClient()
	if err != nil {
		return err
	}
	defer cli.Close()

	if err := docker.VerifyServer(ctx, cli, logger); err != nil {
		return err
	}

	store, err := history.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	target := cluster.Target{
		Namespace: cfg.Cluster.Namespace,
		Workload:  cfg.Cluster.Workload,
		Container: cfg.Cluster.Container,
	}
	if target.Workload == "" {
		target, err = cluster.ResolveTarget(cfg.Cluster.Manifest)
		if err != nil {
			return err
		}
	}

	kubectl := cluster.NewKubectl(cfg.Cluster.Kubectl, logger)

	p := pipeline.New(
		pipeline.Options{
			ContextDir: cfg.Image.ContextDir,
			Repository: cfg.Image.Repository,
			Credentials: publisher.Credentials{
				Username: cfg.Registry.Username,
				Password: cfg.Registry.Password,
			},
		},
		store,
		builder.New(cli, cfg.Image.Dockerfile, logger),
		publisher.New(cli, logger),
		strategist.New(kubectl, target, cfg.Cluster.Manifest, cfg.Cluster.RolloutTimeout, logger),
		cleanup.New(cli, cfg.Cleanup.BuildCache, logger),
		logger,
	)

	return p.Run(ctx)
}
