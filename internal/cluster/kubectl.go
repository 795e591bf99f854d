package cluster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Kubectl talks to the cluster by shelling out to kubectl, inheriting
// whatever kubeconfig and context the environment provides.
type Kubectl struct {
	exe    string
	logger *log.Logger
}

func NewKubectl(exe string, logger *log.Logger) *Kubectl {
	if exe == "" {
		exe = "kubectl"
	}
	return &Kubectl{exe: exe, logger: logger}
}

var _ Interface = (*Kubectl)(nil)

func (k *Kubectl) UpdateImage(ctx context.Context, target Target, ref string) error {
	_, err := k.run(ctx, updateImageArgs(target, ref)...)
	if err != nil {
		return fmt.Errorf("kubectl set image: %w", err)
	}
	return nil
}

func (k *Kubectl) Apply(ctx context.Context, target Target, manifestPath string) error {
	_, err := k.run(ctx, applyArgs(target, manifestPath)...)
	if err != nil {
		return fmt.Errorf("kubectl apply: %w", err)
	}
	return nil
}

func (k *Kubectl) RolloutStatus(ctx context.Context, target Target, timeout time.Duration) (Outcome, error) {
	// kubectl enforces the deadline itself; the context gets a grace
	// period on top so a wedged kubectl cannot hang the pipeline.
	ctx, cancel := context.WithTimeout(ctx, timeout+30*time.Second)
	defer cancel()

	out, err := k.run(ctx, rolloutStatusArgs(target, timeout)...)
	if err == nil {
		return OutcomeSucceeded, nil
	}

	if isRolloutTimeout(ctx, err) {
		return OutcomeTimedOut, fmt.Errorf("rollout of %s/%s did not complete within %s: %w",
			target.Namespace, target.Workload, timeout, err)
	}
	return OutcomeFailed, fmt.Errorf("rollout of %s/%s failed: %w (last status: %s)",
		target.Namespace, target.Workload, err, strings.TrimSpace(out))
}

func (k *Kubectl) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, k.exe, args...)
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	begin := time.Now()
	err := cmd.Run()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		err = fmt.Errorf("%s", msg)
	}

	k.logger.Debug("kubectl", "args", strings.Join(args, " "), "took", time.Since(begin), "err", err)
	return stdout.String(), err
}

func updateImageArgs(target Target, ref string) []string {
	args := []string{"set", "image", "deployment/" + target.Workload, target.Container + "=" + ref}
	return appendNamespace(args, target)
}

func applyArgs(target Target, manifestPath string) []string {
	args := []string{"apply", "-f", manifestPath}
	return appendNamespace(args, target)
}

func rolloutStatusArgs(target Target, timeout time.Duration) []string {
	args := []string{"rollout", "status", "deployment/" + target.Workload, "--timeout=" + timeout.String()}
	return appendNamespace(args, target)
}

func appendNamespace(args []string, target Target) []string {
	if target.Namespace != "" {
		args = append(args, "--namespace", target.Namespace)
	}
	return args
}

// isRolloutTimeout distinguishes a bounded wait elapsing from a real
// failure condition. kubectl reports the former as "timed out waiting
// for the condition"; a killed process after the context deadline
// counts as well.
func isRolloutTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	return strings.Contains(err.Error(), "timed out waiting")
}
