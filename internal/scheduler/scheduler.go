// Package scheduler elects a single leader through a database lease and, while
// leading, runs the periodic sync and dispatch tasks. Leadership is only ever
// decided by the lease row; in-process state just mirrors it.
package scheduler

import (
	"context"
	"sync"
	"time"

	"driftcast/internal/pkg/logger"
)

// State is the scheduler lifecycle phase.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateLeading  State = "leading"
)

// LeaseStore is the lease protocol surface.
type LeaseStore interface {
	Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	Renew(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, holder string) error
}

// Task is one periodic unit of scheduler work. Tick reports how many items it
// processed.
type Task interface {
	Tick(ctx context.Context) (int, error)
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func(ctx context.Context) (int, error)

func (f TaskFunc) Tick(ctx context.Context) (int, error) { return f(ctx) }

// PeriodicTask pairs a task with its interval.
type PeriodicTask struct {
	Name     string
	Interval time.Duration
	Task     Task
}

type Config struct {
	LeaseName string
	HolderID  string
	LeaseTTL  time.Duration
}

// Scheduler runs the periodic tasks while it holds the lease. Each task gets
// its own ticker goroutine, so a long sync cannot delay render dispatch; within
// one task, ticks never overlap.
type Scheduler struct {
	cfg    Config
	leases LeaseStore
	tasks  []PeriodicTask
	log    *logger.Logger

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config, leases LeaseStore, tasks []PeriodicTask, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault()
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 30 * time.Second
	}
	return &Scheduler{
		cfg:    cfg,
		leases: leases,
		tasks:  tasks,
		log:    log.WithComponent("scheduler"),
		state:  StateStopped,
	}
}

// State reports the current lifecycle phase.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start attempts to take leadership. It returns (true, nil) when this instance
// won the lease and the task loops are running. Calling Start while a start is
// in flight or while leading is a no-op returning false; losing the election
// is not an error.
func (s *Scheduler) Start(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if s.state != StateStopped {
		s.mu.Unlock()
		return false, nil
	}
	s.state = StateStarting
	s.mu.Unlock()

	won, err := s.leases.Acquire(ctx, s.cfg.LeaseName, s.cfg.HolderID, s.cfg.LeaseTTL)
	if err != nil || !won {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		if err != nil {
			return false, err
		}
		s.log.Info("lease held elsewhere, staying passive", "lease", s.cfg.LeaseName)
		return false, nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.state = StateLeading
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.log.Info("took scheduler leadership", "lease", s.cfg.LeaseName, "holder", s.cfg.HolderID)
	go s.run(runCtx, done)
	return true, nil
}

// Stop surrenders leadership: tickers stop, in-flight ticks finish, and the
// lease is released so another instance can take over immediately.
func (s *Scheduler) Stop(reason string) {
	s.mu.Lock()
	if s.state != StateLeading {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	s.log.Info("stopping scheduler", "reason", reason)
	cancel()
	<-done

	releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer releaseCancel()
	if err := s.leases.Release(releaseCtx, s.cfg.LeaseName, s.cfg.HolderID); err != nil {
		s.log.Error("failed to release lease", "error", err.Error())
	}
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	var wg sync.WaitGroup
	for _, pt := range s.tasks {
		wg.Add(1)
		go func(pt PeriodicTask) {
			defer wg.Done()
			s.taskLoop(ctx, pt)
		}(pt)
	}

	s.heartbeat(ctx)
	wg.Wait()
}

func (s *Scheduler) taskLoop(ctx context.Context, pt PeriodicTask) {
	log := s.log.WithFields(map[string]any{"task": pt.Name})

	ticker := time.NewTicker(pt.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pt.Task.Tick(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Error("task tick failed", "error", err.Error())
				continue
			}
			if n > 0 {
				log.Info("task tick finished", "processed", n)
			}
		}
	}
}

// heartbeat renews the lease at half the TTL. A renewal that returns zero rows
// is retried once; failing twice means another instance may already hold the
// lease, so this one surrenders leadership rather than risk two leaders.
func (s *Scheduler) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.LeaseTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.renewOnceWithRetry(ctx) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.log.Error("lease lost, surrendering leadership", "lease", s.cfg.LeaseName)
			go s.surrender()
			return
		}
	}
}

func (s *Scheduler) renewOnceWithRetry(ctx context.Context) bool {
	ok, err := s.leases.Renew(ctx, s.cfg.LeaseName, s.cfg.HolderID, s.cfg.LeaseTTL)
	if ok && err == nil {
		return true
	}
	if err != nil {
		s.log.Warn("lease renewal errored, retrying", "error", err.Error())
	}

	ok, err = s.leases.Renew(ctx, s.cfg.LeaseName, s.cfg.HolderID, s.cfg.LeaseTTL)
	if err != nil {
		s.log.Error("lease renewal retry errored", "error", err.Error())
		return false
	}
	return ok
}

// surrender flips the scheduler back to stopped after a lost lease. The lease
// row already belongs to someone else, so no release is attempted.
func (s *Scheduler) surrender() {
	s.mu.Lock()
	if s.state != StateLeading {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	cancel := s.cancel
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	cancel()
}
