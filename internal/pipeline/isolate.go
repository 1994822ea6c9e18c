package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"driftcast/internal/pkg/logger"
)

// Isolator runs each render in a separate worker process so an encoder crash
// or memory blowup cannot take down the scheduler. The worker re-reads the
// job from the database; the only contract is the job ID and the exit code.
type Isolator struct {
	binaryPath  string
	memLimitMiB int
	log         *logger.Logger
}

func NewIsolator(binaryPath string, memLimitMiB int, log *logger.Logger) *Isolator {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Isolator{
		binaryPath:  binaryPath,
		memLimitMiB: memLimitMiB,
		log:         log.WithComponent("isolator"),
	}
}

// Run invokes the worker binary for one job and waits for it. A nil error
// means the worker exited 0, which the worker only does after the job reached
// SUCCESS. The job row carries the real failure detail; the error here only
// reports the process outcome.
func (iso *Isolator) Run(ctx context.Context, jobID string) error {
	log := iso.log.FromContext(ctx).WithJobID(jobID)

	cmd := exec.CommandContext(ctx, iso.binaryPath, "-job", jobID)
	cmd.Env = mergeMemLimit(os.Environ(), iso.memLimitMiB)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	log.Info("starting render worker", "binary", iso.binaryPath)
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Errorf("render worker exited with code %d", exitErr.ExitCode())
		}
		return fmt.Errorf("render worker did not start: %w", err)
	}
	return nil
}

// mergeMemLimit appends a GOMEMLIMIT for the child unless the operator already
// set one; an explicit environment value always wins.
func mergeMemLimit(env []string, limitMiB int) []string {
	if limitMiB <= 0 {
		return env
	}
	for _, kv := range env {
		if strings.HasPrefix(kv, "GOMEMLIMIT=") {
			return env
		}
	}
	return append(env, fmt.Sprintf("GOMEMLIMIT=%dMiB", limitMiB))
}
