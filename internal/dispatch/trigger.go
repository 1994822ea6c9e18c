package dispatch

import (
	"context"
	"sort"
	"time"

	"driftcast/internal/pkg/errors"
	"driftcast/internal/pkg/logger"
)

// Task names accepted by the manual trigger.
const (
	TaskSync    = "sync"
	TaskUploads = "uploads"
	TaskRenders = "renders"
)

// Outcome is the per-task result of a trigger request.
type Outcome string

const (
	OutcomeCooldown   Outcome = "cooldown"
	OutcomeNoWork     Outcome = "no_work"
	OutcomeDispatched Outcome = "dispatched"
)

// Syncer is the Drive crawler as seen by the trigger.
type Syncer interface {
	Sync(ctx context.Context) error
	LastSync() time.Time
}

// CooldownGate abstracts the redis window for tests.
type CooldownGate interface {
	TryAcquire(ctx context.Context, caller, task string) (bool, error)
}

// Trigger serves manual task runs. Work is dispatched fire-and-forget on a
// background context so a closed HTTP connection cannot cancel a render
// mid-encode.
type Trigger struct {
	cooldown     CooldownGate
	renders      *RenderDispatcher
	uploads      *UploadDispatcher
	rendersQ     JobQueue
	uploadsQ     JobQueue
	syncer       Syncer
	syncInterval time.Duration
	log          *logger.Logger
}

type TriggerDeps struct {
	Cooldown    CooldownGate
	Renders     *RenderDispatcher
	Uploads     *UploadDispatcher
	RenderQueue JobQueue
	UploadQueue JobQueue
	Syncer      Syncer
	// SyncInterval bounds how fresh a completed crawl may be before a
	// triggered sync reports no_work. Zero means a sync is always due.
	SyncInterval time.Duration
	Log          *logger.Logger
}

func NewTrigger(d TriggerDeps) *Trigger {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	return &Trigger{
		cooldown:     d.Cooldown,
		renders:      d.Renders,
		uploads:      d.Uploads,
		rendersQ:     d.RenderQueue,
		uploadsQ:     d.UploadQueue,
		syncer:       d.Syncer,
		syncInterval: d.SyncInterval,
		log:          log.WithComponent("trigger"),
	}
}

// ValidateTasks normalizes and checks a requested task list.
func ValidateTasks(tasks []string) ([]string, error) {
	if len(tasks) == 0 {
		return nil, errors.Validation("tasks must not be empty")
	}

	seen := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		switch task {
		case TaskSync, TaskUploads, TaskRenders:
			seen[task] = true
		default:
			return nil, errors.Validationf("unknown task %q", task)
		}
	}

	out := make([]string, 0, len(seen))
	for task := range seen {
		out = append(out, task)
	}
	sort.Strings(out)
	return out, nil
}

// Run resolves each requested task to an outcome. Dispatched tasks execute in
// a detached goroutine; the caller only learns whether work was started.
func (t *Trigger) Run(ctx context.Context, caller string, tasks []string) (map[string]Outcome, error) {
	outcomes := make(map[string]Outcome, len(tasks))
	for _, task := range tasks {
		outcome, err := t.runOne(ctx, caller, task)
		if err != nil {
			return nil, err
		}
		outcomes[task] = outcome
	}
	return outcomes, nil
}

func (t *Trigger) runOne(ctx context.Context, caller, task string) (Outcome, error) {
	ok, err := t.cooldown.TryAcquire(ctx, caller, task)
	if err != nil {
		return "", errors.Wrap(err, "trigger.cooldown", "cooldown check failed")
	}
	if !ok {
		return OutcomeCooldown, nil
	}

	hasWork, err := t.hasWork(ctx, task)
	if err != nil {
		return "", err
	}
	if !hasWork {
		return OutcomeNoWork, nil
	}

	t.dispatch(task)
	return OutcomeDispatched, nil
}

func (t *Trigger) hasWork(ctx context.Context, task string) (bool, error) {
	switch task {
	case TaskRenders:
		return t.rendersQ.HasDuePending(ctx)
	case TaskUploads:
		// Publishing may be disabled entirely.
		if t.uploads == nil {
			return false, nil
		}
		return t.uploadsQ.HasDuePending(ctx)
	default:
		// A crawl that just completed will not see new files yet; one is due
		// only after the configured interval has passed.
		if t.syncInterval <= 0 {
			return true, nil
		}
		last := t.syncer.LastSync()
		return last.IsZero() || time.Since(last) >= t.syncInterval, nil
	}
}

func (t *Trigger) dispatch(task string) {
	// Detached from the request context on purpose.
	ctx := context.Background()

	go func() {
		var err error
		switch task {
		case TaskSync:
			err = t.syncer.Sync(ctx)
		case TaskUploads:
			_, err = t.uploads.Tick(ctx)
		case TaskRenders:
			_, err = t.renders.Tick(ctx)
		}
		if err != nil {
			t.log.Error("triggered task failed", "task", task, "error", err.Error())
		} else {
			t.log.Info("triggered task finished", "task", task)
		}
	}()
}
