package prometheus

import (
	"context"
	"testing"
	"time"

	"github.com/dispatchq/dispatch"
	"github.com/dispatchq/dispatch/core"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type stubQueueProvider struct {
	stats core.QueueStats
}

func (s *stubQueueProvider) Stats() core.QueueStats { return s.stats }

type stubPoolProvider struct {
	stats core.PoolStats
}

func (s *stubPoolProvider) Stats() core.PoolStats { return s.stats }

func TestSnapshotPoller_CollectsQueueAndPoolGauges(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, time.Hour) // rely on the initial collection
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.AddQueue("work", &stubQueueProvider{stats: core.QueueStats{
		Label:      "work",
		Kind:       "concurrent",
		Pending:    3,
		Running:    2,
		BarrierSet: true,
	}})
	poller.AddPool("main-pool", &stubPoolProvider{stats: core.PoolStats{
		ID:      "main-pool",
		Workers: 8,
		Queued:  5,
		Active:  2,
		Delayed: 1,
		Running: true,
	}})

	poller.Start(context.Background())
	poller.Stop()

	if got := testutil.ToFloat64(poller.queuePending.WithLabelValues("work", "concurrent")); got != 3 {
		t.Fatalf("queue pending = %v, want 3", got)
	}
	if got := testutil.ToFloat64(poller.queueRunning.WithLabelValues("work", "concurrent")); got != 2 {
		t.Fatalf("queue running = %v, want 2", got)
	}
	if got := testutil.ToFloat64(poller.queueBarrier.WithLabelValues("work", "concurrent")); got != 1 {
		t.Fatalf("queue barrier = %v, want 1", got)
	}
	if got := testutil.ToFloat64(poller.poolQueued.WithLabelValues("main-pool")); got != 5 {
		t.Fatalf("pool queued = %v, want 5", got)
	}
	if got := testutil.ToFloat64(poller.poolWorkers.WithLabelValues("main-pool")); got != 8 {
		t.Fatalf("pool workers = %v, want 8", got)
	}
	if got := testutil.ToFloat64(poller.poolRunning.WithLabelValues("main-pool")); got != 1 {
		t.Fatalf("pool running = %v, want 1", got)
	}
}

func TestSnapshotPoller_StartStopIdempotent(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	poller.Start(context.Background())
	poller.Start(context.Background())
	poller.Stop()
	poller.Stop()

	// A stopped poller can be started again.
	poller.Start(context.Background())
	poller.Stop()
}

func TestSnapshotPoller_RealQueueStats(t *testing.T) {
	reg := prom.NewRegistry()
	poller, err := NewSnapshotPoller(reg, time.Hour)
	if err != nil {
		t.Fatalf("NewSnapshotPoller failed: %v", err)
	}

	pool := dispatch.NewGoroutineThreadPool("poller-test", 2)
	pool.Start(context.Background())
	defer pool.Stop()
	queue := core.NewSerialQueue(pool, "observed", nil)
	queue.Sync(func(ctx context.Context) {})

	poller.AddQueue(queue.Label(), queue)
	poller.Start(context.Background())
	poller.Stop()

	if got := testutil.ToFloat64(poller.queuePending.WithLabelValues("observed", "serial")); got != 0 {
		t.Fatalf("idle queue pending = %v, want 0", got)
	}
}
