package core

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// WorkItem: a cancellable, waitable unit of deferred work
// =============================================================================

// State describes where a WorkItem is in its lifecycle. Transitions only
// move forward: Pending -> Running -> Completed, or Pending -> Cancelled.
type State int

const (
	StatePending State = iota
	StateRunning
	StateCompleted
	StateCancelled
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// WaitResult reports whether a bounded wait observed completion.
type WaitResult int

const (
	WaitSuccess WaitResult = iota
	WaitTimedOut
)

// WorkItem wraps a single action together with its execution state and
// completion notifications. It is a dumb handle: it does nothing until
// performed, either directly via Perform or by a Queue it was submitted to.
// Waiting on an item that is never submitted blocks forever; that is the
// caller's contract, not an error this layer detects.
//
// All methods are safe for concurrent use. State transitions are applied by
// at most one executor at a time; Cancel/Wait/State may race with them freely.
type WorkItem struct {
	mu            sync.Mutex
	state         State
	finished      bool
	fn            WorkFunc
	done          chan struct{}
	notifications []notification
}

// notification is a continuation registered via Notify: item is submitted
// async to queue once the observed WorkItem finishes.
type notification struct {
	queue *Queue
	item  *WorkItem
}

// NewWorkItem creates a pending WorkItem wrapping fn. No side effects beyond
// allocation; the item is not scheduled anywhere.
func NewWorkItem(fn WorkFunc) *WorkItem {
	return &WorkItem{
		state: StatePending,
		fn:    fn,
		done:  make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (w *WorkItem) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// IsCancelled reports whether Cancel won the race against execution.
func (w *WorkItem) IsCancelled() bool {
	return w.State() == StateCancelled
}

// IsFinished reports whether the item has run (or been skipped as cancelled)
// and released its waiters.
func (w *WorkItem) IsFinished() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.finished
}

// Perform executes the wrapped action synchronously on the calling goroutine,
// exactly once. Performing an item that already ran is a no-op. Performing a
// cancelled item skips the action but still finalizes the item, so waiters
// unblock and notifications fire; a cancelled item that reaches the front of
// a queue counts as finished, not as stuck.
func (w *WorkItem) Perform(ctx context.Context) {
	w.mu.Lock()
	switch w.state {
	case StatePending:
		w.state = StateRunning
		fn := w.fn
		w.mu.Unlock()

		// finish must run even if fn panics so waiters are released; the
		// panic itself propagates to the substrate's recovery.
		defer w.finish(StateCompleted)
		if fn != nil {
			fn(ctx)
		}
	case StateCancelled:
		w.mu.Unlock()
		w.finish(StateCancelled)
	default:
		// Running or Completed: at-most-once guard.
		w.mu.Unlock()
	}
}

// finish moves the item to its terminal state, releases waiters and hands
// registered notifications to their queues. Idempotent.
func (w *WorkItem) finish(terminal State) {
	w.mu.Lock()
	if w.finished {
		w.mu.Unlock()
		return
	}
	w.finished = true
	w.state = terminal
	w.fn = nil
	pending := w.notifications
	w.notifications = nil
	close(w.done)
	w.mu.Unlock()

	for _, n := range pending {
		n.queue.AsyncItem(n.item)
	}
}

// Cancel marks a not-yet-started item as cancelled so its action never runs.
// It has no effect on an item that is already running or finished, and it is
// idempotent. Cancellation is cooperative: in-flight work is never
// interrupted.
func (w *WorkItem) Cancel() {
	w.mu.Lock()
	if w.state == StatePending {
		w.state = StateCancelled
	}
	w.mu.Unlock()
}

// Notify registers fn to be submitted to queue once this item finishes,
// successfully or not. If the item already finished, fn is submitted
// immediately. Returns the continuation's own WorkItem so notifications
// chain like any other submission.
//
// Notifications registered before completion never run before the action
// finishes; no relative order among multiple notifications is guaranteed.
func (w *WorkItem) Notify(queue *Queue, fn WorkFunc) *WorkItem {
	if queue == nil {
		panic("dispatch: Notify requires a queue")
	}
	item := NewWorkItem(fn)

	w.mu.Lock()
	if w.finished {
		w.mu.Unlock()
		return queue.AsyncItem(item)
	}
	w.notifications = append(w.notifications, notification{queue: queue, item: item})
	w.mu.Unlock()
	return item
}

// Wait blocks the calling goroutine until the item finishes. If the item was
// never submitted or performed, Wait blocks indefinitely.
func (w *WorkItem) Wait() {
	<-w.done
}

// WaitTimeout blocks for at most timeout and reports whether the item
// finished in time. Timing out does not cancel or otherwise affect the
// pending execution.
func (w *WorkItem) WaitTimeout(timeout time.Duration) WaitResult {
	select {
	case <-w.done:
		return WaitSuccess
	default:
	}
	if timeout <= 0 {
		return WaitTimedOut
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-w.done:
		return WaitSuccess
	case <-timer.C:
		return WaitTimedOut
	}
}

// WaitUntil is WaitTimeout expressed against an absolute deadline.
func (w *WorkItem) WaitUntil(deadline time.Time) WaitResult {
	return w.WaitTimeout(time.Until(deadline))
}
