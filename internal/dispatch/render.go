package dispatch

import (
	"context"

	"driftcast/internal/models"
	"driftcast/internal/pkg/logger"
	"driftcast/internal/pipeline"
)

// RenderRunner executes one already-claimed render job. The in-process runner
// and the isolating worker-process runner both satisfy it.
type RenderRunner interface {
	Run(ctx context.Context, jobID string) error
}

type renderJobGetter interface {
	Get(ctx context.Context, id string) (*models.RenderJob, error)
}

// renderJobRecorder is the dispatcher's view of the job table: enough to see
// whether a crashed worker left its row in RUNNING and to settle it.
type renderJobRecorder interface {
	Get(ctx context.Context, id string) (*models.RenderJob, error)
	MarkFailed(ctx context.Context, id, message string) error
}

// InProcessRunner renders inside the scheduler process. Development mode;
// production uses pipeline.Isolator instead.
type InProcessRunner struct {
	jobs renderJobGetter
	pipe *pipeline.Pipeline
}

func NewInProcessRunner(jobs renderJobGetter, pipe *pipeline.Pipeline) *InProcessRunner {
	return &InProcessRunner{jobs: jobs, pipe: pipe}
}

func (r *InProcessRunner) Run(ctx context.Context, jobID string) error {
	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	return r.pipe.Run(ctx, job)
}

// RenderDispatcher drives one claim-and-run cycle for render jobs.
type RenderDispatcher struct {
	claimer *Claimer
	runner  RenderRunner
	jobs    renderJobRecorder
	log     *logger.Logger
}

func NewRenderDispatcher(claimer *Claimer, runner RenderRunner, jobs renderJobRecorder, log *logger.Logger) *RenderDispatcher {
	if log == nil {
		log = logger.NewDefault()
	}
	return &RenderDispatcher{claimer: claimer, runner: runner, jobs: jobs, log: log.WithComponent("render_dispatch")}
}

// Tick claims due render jobs and runs them sequentially. A job failure is
// already recorded on its row; the loop moves on so one broken job cannot
// starve the rest of the batch.
func (d *RenderDispatcher) Tick(ctx context.Context) (int, error) {
	claimed, err := d.claimer.ClaimDue(ctx)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, id := range claimed {
		if ctx.Err() != nil {
			return done, ctx.Err()
		}
		if err := d.runner.Run(ctx, id); err != nil {
			d.log.FromContext(ctx).WithJobID(id).Error("render job failed", "error", err.Error())
			d.settleCrashed(ctx, id, err)
			continue
		}
		done++
	}
	return done, nil
}

// settleCrashed moves a job out of RUNNING when the worker died before
// persisting a verdict (OOM kill, panic). Leaving the row RUNNING would
// consume one of the requester's concurrency slots forever.
func (d *RenderDispatcher) settleCrashed(ctx context.Context, id string, runErr error) {
	job, err := d.jobs.Get(ctx, id)
	if err != nil {
		d.log.FromContext(ctx).WithJobID(id).Error("failed to load job after worker failure", "error", err.Error())
		return
	}
	if job.Status != models.JobRunning {
		return
	}
	if err := d.jobs.MarkFailed(ctx, id, runErr.Error()); err != nil {
		d.log.FromContext(ctx).WithJobID(id).Error("failed to mark crashed job failed", "error", err.Error())
	}
}
