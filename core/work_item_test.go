package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// Given: a freshly created WorkItem
// When: nothing has been done with it
// Then: it is pending, unfinished and not cancelled
func TestWorkItemInitialState(t *testing.T) {
	item := NewWorkItem(func(ctx context.Context) {})

	if item.State() != StatePending {
		t.Errorf("Expected state pending, got %v", item.State())
	}
	if item.IsFinished() {
		t.Error("New item should not be finished")
	}
	if item.IsCancelled() {
		t.Error("New item should not be cancelled")
	}
}

// Given: a pending WorkItem
// When: Perform is called twice
// Then: the action runs exactly once and the item ends completed
func TestWorkItemPerformExactlyOnce(t *testing.T) {
	var runs int32
	item := NewWorkItem(func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
	})

	item.Perform(context.Background())
	item.Perform(context.Background())

	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Errorf("Expected action to run once, ran %d times", got)
	}
	if item.State() != StateCompleted {
		t.Errorf("Expected state completed, got %v", item.State())
	}
	if !item.IsFinished() {
		t.Error("Performed item should be finished")
	}
}

// Given: a WorkItem whose action panics
// When: Perform is called under the caller's recover
// Then: the item still finishes as completed and waiters unblock
func TestWorkItemPanicStillFinishes(t *testing.T) {
	item := NewWorkItem(func(ctx context.Context) {
		panic("boom")
	})

	func() {
		defer func() { recover() }()
		item.Perform(context.Background())
	}()

	if !item.IsFinished() {
		t.Error("Item should be finished after a panicking run")
	}
	if item.State() != StateCompleted {
		t.Errorf("Expected state completed, got %v", item.State())
	}
	if item.WaitTimeout(time.Second) != WaitSuccess {
		t.Error("Waiters should be released after a panicking run")
	}
}

// Given: a pending WorkItem that is cancelled
// When: the item later reaches execution
// Then: the action never runs, but the item finalizes so waiters unblock
func TestWorkItemCancelBeforeRun(t *testing.T) {
	var runs int32
	item := NewWorkItem(func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
	})

	item.Cancel()
	if !item.IsCancelled() {
		t.Fatal("Item should report cancelled")
	}
	if item.IsFinished() {
		t.Error("Cancel alone must not finalize the item")
	}

	item.Perform(context.Background())

	if atomic.LoadInt32(&runs) != 0 {
		t.Error("Cancelled action must not run")
	}
	if item.State() != StateCancelled {
		t.Errorf("Expected state cancelled, got %v", item.State())
	}
	if !item.IsFinished() {
		t.Error("Dequeued cancelled item counts as finished")
	}
	if item.WaitTimeout(time.Second) != WaitSuccess {
		t.Error("Waiters should be released once the cancelled item is dequeued")
	}
}

// Given: a completed WorkItem
// When: Cancel is called
// Then: nothing changes; Cancel only wins against pending items
func TestWorkItemCancelAfterCompletion(t *testing.T) {
	item := NewWorkItem(func(ctx context.Context) {})
	item.Perform(context.Background())

	item.Cancel()

	if item.State() != StateCompleted {
		t.Errorf("Expected state completed, got %v", item.State())
	}
	if item.IsCancelled() {
		t.Error("Completed item must not become cancelled")
	}
}

func TestWorkItemCancelIdempotent(t *testing.T) {
	item := NewWorkItem(func(ctx context.Context) {})
	item.Cancel()
	item.Cancel()

	if item.State() != StateCancelled {
		t.Errorf("Expected state cancelled, got %v", item.State())
	}
}

// Given: an item running on a pool-backed queue
// When: another goroutine waits with a generous timeout
// Then: the wait observes completion
func TestWorkItemWaitTimeoutSuccess(t *testing.T) {
	item := NewWorkItem(func(ctx context.Context) {
		time.Sleep(30 * time.Millisecond)
	})

	go item.Perform(context.Background())

	if item.WaitTimeout(2*time.Second) != WaitSuccess {
		t.Error("Expected wait to observe completion")
	}
	if item.State() != StateCompleted {
		t.Errorf("Expected state completed, got %v", item.State())
	}
}

// Given: an item nobody ever performs
// When: waiting with a short timeout
// Then: the wait times out and leaves the item untouched
func TestWorkItemWaitTimeoutExpires(t *testing.T) {
	var runs int32
	item := NewWorkItem(func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
	})

	if item.WaitTimeout(20*time.Millisecond) != WaitTimedOut {
		t.Error("Expected wait to time out")
	}
	if item.State() != StatePending {
		t.Errorf("Timed-out wait must not change state, got %v", item.State())
	}

	// The item is still schedulable after a timed-out wait.
	item.Perform(context.Background())
	if atomic.LoadInt32(&runs) != 1 {
		t.Error("Item should still run after a timed-out wait")
	}
}

// Given: an already finished item
// When: waiting with a zero or negative timeout
// Then: the wait reports success without blocking
func TestWorkItemWaitZeroTimeout(t *testing.T) {
	item := NewWorkItem(func(ctx context.Context) {})

	if item.WaitTimeout(0) != WaitTimedOut {
		t.Error("Zero timeout on a pending item should time out")
	}

	item.Perform(context.Background())

	if item.WaitTimeout(0) != WaitSuccess {
		t.Error("Zero timeout on a finished item should succeed")
	}
	if item.WaitUntil(time.Now().Add(-time.Second)) != WaitSuccess {
		t.Error("Past deadline on a finished item should succeed")
	}
}

// Given: an item performed on another goroutine
// When: waiting against absolute deadlines on both sides of its completion
// Then: a deadline before completion times out without affecting the run,
// and a generous deadline observes completion
func TestWorkItemWaitUntilDeadline(t *testing.T) {
	item := NewWorkItem(func(ctx context.Context) {
		time.Sleep(80 * time.Millisecond)
	})

	go item.Perform(context.Background())

	if item.WaitUntil(time.Now().Add(10*time.Millisecond)) != WaitTimedOut {
		t.Error("Deadline before completion should time out")
	}
	if item.State() == StateCompleted {
		t.Error("Timed-out deadline wait must not complete the item")
	}

	if item.WaitUntil(time.Now().Add(3*time.Second)) != WaitSuccess {
		t.Error("Generous deadline should observe completion")
	}
	if item.State() != StateCompleted {
		t.Errorf("Expected state completed, got %v", item.State())
	}
}

// Given: an item with several notifications registered before it runs
// When: the item completes on a serial queue
// Then: every notification fires, and only after the action finished
func TestWorkItemNotifyAfterCompletion(t *testing.T) {
	pool := newTestThreadPool(4)
	defer pool.stop()
	queue := NewSerialQueue(pool, "notify-test", nil)

	var actionDone int32
	var observedDone int32
	var wg sync.WaitGroup
	wg.Add(3)

	item := NewWorkItem(func(ctx context.Context) {
		time.Sleep(20 * time.Millisecond)
		atomic.StoreInt32(&actionDone, 1)
	})

	for i := 0; i < 3; i++ {
		item.Notify(queue, func(ctx context.Context) {
			if atomic.LoadInt32(&actionDone) == 1 {
				atomic.AddInt32(&observedDone, 1)
			}
			wg.Done()
		})
	}

	queue.AsyncItem(item)
	wg.Wait()

	if got := atomic.LoadInt32(&observedDone); got != 3 {
		t.Errorf("Expected 3 notifications to observe the finished action, got %d", got)
	}
}

// Given: an item that already finished
// When: Notify is called afterwards
// Then: the continuation is submitted immediately
func TestWorkItemNotifyOnFinishedItem(t *testing.T) {
	pool := newTestThreadPool(2)
	defer pool.stop()
	queue := NewSerialQueue(pool, "notify-late", nil)

	item := NewWorkItem(func(ctx context.Context) {})
	item.Perform(context.Background())

	cont := item.Notify(queue, func(ctx context.Context) {})

	if cont.WaitTimeout(2*time.Second) != WaitSuccess {
		t.Error("Late notification should run promptly")
	}
}

// Given: a chain of notifications, each returned item observed by the next
// When: the head item completes
// Then: the chain runs in order
func TestWorkItemNotifyChaining(t *testing.T) {
	pool := newTestThreadPool(4)
	defer pool.stop()
	queue := NewSerialQueue(pool, "notify-chain", nil)

	var mu sync.Mutex
	var order []int

	record := func(n int) {
		mu.Lock()
		order = append(order, n)
		mu.Unlock()
	}

	head := NewWorkItem(func(ctx context.Context) { record(1) })
	second := head.Notify(queue, func(ctx context.Context) { record(2) })
	tail := second.Notify(queue, func(ctx context.Context) { record(3) })

	queue.AsyncItem(head)
	tail.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("Expected chain order [1 2 3], got %v", order)
	}
}

// Given: a cancelled item with a registered notification
// When: the item is dequeued
// Then: the notification fires even though the action never ran
func TestWorkItemNotifyFiresOnCancelled(t *testing.T) {
	pool := newTestThreadPool(2)
	defer pool.stop()
	queue := NewSerialQueue(pool, "notify-cancel", nil)

	item := NewWorkItem(func(ctx context.Context) {
		t.Error("Cancelled action must not run")
	})
	cont := item.Notify(queue, func(ctx context.Context) {})

	item.Cancel()
	queue.AsyncItem(item)

	if cont.WaitTimeout(2*time.Second) != WaitSuccess {
		t.Error("Notification should fire for a dequeued cancelled item")
	}
	if item.State() != StateCancelled {
		t.Errorf("Expected state cancelled, got %v", item.State())
	}
}
