package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeLeases implements the lease protocol in memory with the same
// self-or-expired acquire rule as the database row.
type fakeLeases struct {
	mu        sync.Mutex
	holder    string
	expiresAt time.Time

	renewOK   bool
	renewErrs int
	released  int
}

func newFakeLeases() *fakeLeases {
	return &fakeLeases{renewOK: true}
}

func (f *fakeLeases) Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.holder != "" && f.holder != holder && time.Now().Before(f.expiresAt) {
		return false, nil
	}
	f.holder = holder
	f.expiresAt = time.Now().Add(ttl)
	return true, nil
}

func (f *fakeLeases) Renew(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.renewOK || f.holder != holder {
		return false, nil
	}
	f.expiresAt = time.Now().Add(ttl)
	return true, nil
}

func (f *fakeLeases) Release(ctx context.Context, name, holder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.released++
	if f.holder == holder {
		f.holder = ""
	}
	return nil
}

type countingTask struct {
	mu    sync.Mutex
	ticks int
}

func (t *countingTask) Tick(ctx context.Context) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ticks++
	return 1, nil
}

func (t *countingTask) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticks
}

func (f *fakeLeases) releaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

func testConfig(holder string) Config {
	return Config{LeaseName: "scheduler", HolderID: holder, LeaseTTL: 200 * time.Millisecond}
}

func TestSchedulerWinsFreeLease(t *testing.T) {
	leases := newFakeLeases()
	task := &countingTask{}
	s := New(testConfig("node-a"), leases, []PeriodicTask{
		{Name: "count", Interval: 10 * time.Millisecond, Task: task},
	}, nil)

	won, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !won {
		t.Fatal("expected to win a free lease")
	}
	if got := s.State(); got != StateLeading {
		t.Fatalf("expected leading state, got %v", got)
	}

	deadline := time.After(2 * time.Second)
	for task.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("task never ticked")
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.Stop("test done")
	if got := s.State(); got != StateStopped {
		t.Errorf("expected stopped state, got %v", got)
	}
	if leases.releaseCount() == 0 {
		t.Error("lease was not released on stop")
	}
}

func TestSchedulerLosesContestedLease(t *testing.T) {
	leases := newFakeLeases()
	leases.holder = "node-other"
	leases.expiresAt = time.Now().Add(time.Hour)

	s := New(testConfig("node-a"), leases, nil, nil)

	won, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if won {
		t.Fatal("must not win a live foreign lease")
	}
	if got := s.State(); got != StateStopped {
		t.Errorf("expected stopped state after lost election, got %v", got)
	}
}

func TestSchedulerTakesExpiredLease(t *testing.T) {
	leases := newFakeLeases()
	leases.holder = "node-dead"
	leases.expiresAt = time.Now().Add(-time.Minute)

	s := New(testConfig("node-a"), leases, nil, nil)

	won, err := s.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !won {
		t.Fatal("expected to take over an expired lease")
	}
	s.Stop("test done")
}

func TestSchedulerStartIdempotent(t *testing.T) {
	leases := newFakeLeases()
	s := New(testConfig("node-a"), leases, nil, nil)

	won, err := s.Start(context.Background())
	if err != nil || !won {
		t.Fatalf("first start: won=%v err=%v", won, err)
	}

	won, err = s.Start(context.Background())
	if err != nil {
		t.Fatalf("second start errored: %v", err)
	}
	if won {
		t.Error("second start must be a no-op")
	}
	s.Stop("test done")
}

func TestSchedulerSurrendersOnLostLease(t *testing.T) {
	leases := newFakeLeases()
	s := New(testConfig("node-a"), leases, nil, nil)

	won, err := s.Start(context.Background())
	if err != nil || !won {
		t.Fatalf("start: won=%v err=%v", won, err)
	}

	// Another instance steals the row; both renewal attempts see zero rows.
	leases.mu.Lock()
	leases.holder = "node-thief"
	leases.mu.Unlock()

	deadline := time.After(2 * time.Second)
	for s.State() != StateStopped {
		select {
		case <-deadline:
			t.Fatal("scheduler never surrendered leadership")
		case <-time.After(10 * time.Millisecond):
		}
	}

	if leases.releaseCount() != 0 {
		t.Error("a stolen lease must not be released")
	}
}

func TestSchedulerStopWithoutLeadership(t *testing.T) {
	s := New(testConfig("node-a"), newFakeLeases(), nil, nil)
	// Must not panic or block.
	s.Stop("noop")
}
