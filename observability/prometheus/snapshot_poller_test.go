package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/Swind/go-task-manager/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type managerStub struct {
	stats core.ManagerStats
}

func (s managerStub) Stats() core.ManagerStats { return s.stats }

func TestSnapshotPoller_CollectsManagerStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddManager("manager-a", managerStub{stats: core.ManagerStats{
		State:    core.ManagerRunning,
		Pending:  4,
		Active:   2,
		Workers:  8,
		Executed: 11,
		Evicted:  3,
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Start(ctx)
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		pending := testutil.ToFloat64(poller.pending.WithLabelValues("manager-a"))
		active := testutil.ToFloat64(poller.active.WithLabelValues("manager-a"))
		return pending == 4 && active == 2
	})

	if got := testutil.ToFloat64(poller.running.WithLabelValues("manager-a")); got != 1 {
		t.Fatalf("running gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(poller.workers.WithLabelValues("manager-a")); got != 8 {
		t.Fatalf("workers gauge = %v, want 8", got)
	}
	if got := testutil.ToFloat64(poller.executed.WithLabelValues("manager-a")); got != 11 {
		t.Fatalf("executed gauge = %v, want 11", got)
	}
	if got := testutil.ToFloat64(poller.evicted.WithLabelValues("manager-a")); got != 3 {
		t.Fatalf("evicted gauge = %v, want 3", got)
	}
}

func TestSnapshotPoller_RealManagerNotRunning(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	cfg := core.DefaultTaskManagerConfig()
	cfg.Workers = 3
	cfg.Logger = core.NewNoOpLogger()
	m := core.NewTaskManagerWithConfig(cfg)
	_ = m.AddTask(core.When(func() bool { return false }, func(ctx context.Context) {}))

	poller.AddManager("idle", m)
	poller.Start(context.Background())
	defer poller.Stop()

	assertEventually(t, 2*time.Second, func() bool {
		return testutil.ToFloat64(poller.pending.WithLabelValues("idle")) == 1
	})
	if got := testutil.ToFloat64(poller.running.WithLabelValues("idle")); got != 0 {
		t.Fatalf("running gauge = %v, want 0", got)
	}
	if got := testutil.ToFloat64(poller.workers.WithLabelValues("idle")); got != 3 {
		t.Fatalf("workers gauge = %v, want 3", got)
	}
}

func TestSnapshotPoller_RemoveManager(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, time.Hour)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddManager("gone", managerStub{stats: core.ManagerStats{Pending: 1}})
	poller.collectOnce()
	if got := testutil.CollectAndCount(poller.pending); got != 1 {
		t.Fatalf("pending series = %d, want 1", got)
	}

	poller.RemoveManager("gone")
	poller.collectOnce()
	if got := testutil.CollectAndCount(poller.pending); got != 0 {
		t.Fatalf("pending series after remove = %d, want 0", got)
	}
}

func TestSnapshotPoller_StartStop_Idempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poller.Start(ctx)
	poller.Start(ctx)
	poller.Stop()
	poller.Stop()
}

func assertEventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}
