package core

import (
	"context"
	"sync"
	"time"
)

type queueKind int

const (
	kindMain queueKind = iota
	kindGlobal
	kindSerial
	kindConcurrent
)

func (k queueKind) String() string {
	switch k {
	case kindMain:
		return "main"
	case kindGlobal:
		return "global"
	case kindSerial:
		return "serial"
	case kindConcurrent:
		return "concurrent"
	default:
		return "unknown"
	}
}

// Queue is a named execution context: a routing and scheduling policy over
// the thread pool. The queue itself never executes anything; it decides when
// a WorkItem becomes eligible and with what traits it reaches the pool.
//
// Queues compare by identity: two handles are the same queue iff they are the
// same pointer. Built-in queues are process-wide singletons (see the root
// dispatch package), so same-tier handles are always equal; two creation
// calls always yield distinct queues, labels notwithstanding.
//
// A queue is never torn down while it has pending work; dropping all handles
// simply abandons it to the garbage collector once its work has drained.
type Queue struct {
	label  string
	kind   queueKind
	target *Queue     // set at creation, immutable; drives QoS inheritance
	traits TaskTraits // effective traits, resolved once at creation
	exec   executor
}

// NewMainQueue creates a serial queue drained by one dedicated goroutine,
// the stand-in for a main-thread-bound event loop. The root dispatch package
// exposes the process-wide singleton; constructing more of these is only
// useful in tests.
func NewMainQueue(label string) *Queue {
	q := &Queue{
		label:  label,
		kind:   kindMain,
		traits: TraitsForQoS(QoSUserInteractive),
	}
	q.exec = newMainExecutor(label)
	return q
}

// NewGlobalQueue creates a concurrent queue dispatching straight into pool at
// the given QoS class. The root dispatch package owns one singleton per tier.
func NewGlobalQueue(pool ThreadPool, qos QoS) *Queue {
	if pool == nil {
		panic("dispatch: global queue requires a thread pool")
	}
	q := &Queue{
		label:  "global." + qos.String(),
		kind:   kindGlobal,
		traits: TraitsForQoS(qos),
	}
	q.exec = &globalExecutor{pool: pool}
	return q
}

// NewSerialQueue creates a custom serial queue: strict one-at-a-time FIFO
// execution of its items, on whichever pool worker is free. The label is
// diagnostic only. target, if non-nil, fixes where the queue inherits its
// QoS from; it cannot be changed later.
//
// Creation fails only if the substrate is unusable (nil pool), which is a
// programming error, not a recoverable condition.
func NewSerialQueue(pool ThreadPool, label string, target *Queue) *Queue {
	if pool == nil {
		panic("dispatch: serial queue requires a thread pool")
	}
	q := &Queue{
		label:  label,
		kind:   kindSerial,
		target: target,
		traits: TraitsForQoS(resolveQoS(target)),
	}
	q.exec = newSerialExecutor(pool)
	return q
}

// NewConcurrentQueue creates a custom concurrent queue: its items run in
// parallel on the pool, except around barrier submissions which get the
// queue to themselves. See NewSerialQueue for label and target.
func NewConcurrentQueue(pool ThreadPool, label string, target *Queue) *Queue {
	if pool == nil {
		panic("dispatch: concurrent queue requires a thread pool")
	}
	q := &Queue{
		label:  label,
		kind:   kindConcurrent,
		target: target,
		traits: TraitsForQoS(resolveQoS(target)),
	}
	q.exec = &concurrentExecutor{pool: pool}
	return q
}

// resolveQoS walks the target chain and adopts the first queue with an
// intrinsic QoS class (a global tier or the main queue). Custom queues with
// no target run at QoSDefault.
func resolveQoS(target *Queue) QoS {
	for q := target; q != nil; q = q.target {
		if q.kind == kindGlobal || q.kind == kindMain {
			return q.traits.QoS
		}
	}
	return QoSDefault
}

// Label returns the diagnostic label given at creation. It has no semantic
// effect anywhere.
func (q *Queue) Label() string {
	return q.label
}

// IsConcurrent reports whether two items of this queue may execute at the
// same time.
func (q *Queue) IsConcurrent() bool {
	return q.kind == kindGlobal || q.kind == kindConcurrent
}

// QoS returns the effective quality-of-service class this queue submits
// work at, after target-chain resolution.
func (q *Queue) QoS() QoS {
	return q.traits.QoS
}

// Target returns the queue this one was chained to at creation, or nil.
func (q *Queue) Target() *Queue {
	return q.target
}

// Equal reports whether two handles reference the same execution context.
func (q *Queue) Equal(other *Queue) bool {
	return q == other
}

// IsCurrent reports whether the calling code is presently executing as a
// task dispatched by this queue. Detection relies on the marker this package
// plants in the task context, so it reports false for code that reached the
// caller through any other path.
func (q *Queue) IsCurrent(ctx context.Context) bool {
	return CurrentQueue(ctx) == q
}

// Stats returns a point-in-time observability snapshot.
func (q *Queue) Stats() QueueStats {
	return QueueStats{
		Label:      q.label,
		Kind:       q.kind.String(),
		QoS:        q.traits.QoS,
		Concurrent: q.IsConcurrent(),
		Pending:    q.exec.pendingCount(),
		Running:    q.exec.runningCount(),
		BarrierSet: q.exec.barrierPending(),
	}
}

// performTask binds an item to this queue: the returned task carries the
// current-queue marker and drives the item's normal state machine. Every
// submission mode goes through here, barriers included, so cancellation,
// waiting and notifications behave identically everywhere.
func (q *Queue) performTask(item *WorkItem) Task {
	return func(ctx context.Context) {
		item.Perform(withCurrentQueue(ctx, q))
	}
}

// =============================================================================
// Submission protocol
// =============================================================================

// Async wraps fn in a new WorkItem, enqueues it, and returns the item
// immediately. FIFO order is guaranteed among items submitted to the same
// serial queue, and nowhere else.
func (q *Queue) Async(fn WorkFunc) *WorkItem {
	return q.AsyncItem(NewWorkItem(fn))
}

// AsyncItem enqueues an existing item and returns it without waiting.
// The item stays valid and schedulable even if the caller drops the handle.
func (q *Queue) AsyncItem(item *WorkItem) *WorkItem {
	if item == nil {
		panic("dispatch: submitted a nil WorkItem")
	}
	q.exec.submit(q.performTask(item), q.traits, false)
	return item
}

// Sync enqueues fn and blocks the caller until it has completed; it is
// exactly submit-then-wait. Calling Sync on the serial queue the caller is
// currently executing on deadlocks; the model cannot detect that.
func (q *Queue) Sync(fn WorkFunc) *WorkItem {
	return q.SyncItem(NewWorkItem(fn))
}

// SyncItem enqueues item and blocks until it completes.
func (q *Queue) SyncItem(item *WorkItem) *WorkItem {
	q.AsyncItem(item)
	item.Wait()
	return item
}

// After schedules fn to become eligible no earlier than now+delay; from that
// point it behaves exactly like an Async submission. Zero or negative delay
// is immediate eligibility.
func (q *Queue) After(delay time.Duration, fn WorkFunc) *WorkItem {
	return q.AfterItem(delay, NewWorkItem(fn))
}

// AfterItem schedules an existing item after a delay.
func (q *Queue) AfterItem(delay time.Duration, item *WorkItem) *WorkItem {
	if item == nil {
		panic("dispatch: submitted a nil WorkItem")
	}
	if delay <= 0 {
		return q.AsyncItem(item)
	}
	q.exec.submitDelayed(q.performTask(item), delay, q.traits)
	return item
}

// BarrierAsync submits fn so that it runs with exclusive access to this
// queue: everything submitted before it completes first, and nothing
// submitted after it starts until it finishes. On a serial queue or a global
// tier this is an ordinary Async; serial queues are already exclusive, and
// the shared global pools accept no barriers.
func (q *Queue) BarrierAsync(fn WorkFunc) *WorkItem {
	return q.BarrierAsyncItem(NewWorkItem(fn))
}

// BarrierAsyncItem submits an existing item as a barrier.
func (q *Queue) BarrierAsyncItem(item *WorkItem) *WorkItem {
	if item == nil {
		panic("dispatch: submitted a nil WorkItem")
	}
	q.exec.submit(q.performTask(item), q.traits, true)
	return item
}

// BarrierSync is BarrierAsync followed by waiting for the item.
func (q *Queue) BarrierSync(fn WorkFunc) *WorkItem {
	return q.BarrierSyncItem(NewWorkItem(fn))
}

// BarrierSyncItem submits item as a barrier and blocks until it completes.
func (q *Queue) BarrierSyncItem(item *WorkItem) *WorkItem {
	q.BarrierAsyncItem(item)
	item.Wait()
	return item
}

// Apply fans n invocations of fn out across this queue's concurrency and
// blocks until every one of them has finished. Indices run 0..n-1 with no
// guaranteed completion order (a serial queue runs them in order, by
// construction). A panic inside one invocation surfaces through the pool's
// PanicHandler like any other task fault; Apply still waits out the rest.
func (q *Queue) Apply(n int, fn func(ctx context.Context, idx int)) {
	if n <= 0 || fn == nil {
		return
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		idx := i
		q.Async(func(ctx context.Context) {
			defer wg.Done()
			fn(ctx, idx)
		})
	}
	wg.Wait()
}
