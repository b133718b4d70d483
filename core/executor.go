package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// executor is a queue's admission policy over the thread pool: it decides
// when a submitted task may reach a worker. One implementation per queue
// kind; all of them are cheap to construct and live as long as their queue.
type executor interface {
	submit(task Task, traits TaskTraits, barrier bool)
	submitDelayed(task Task, delay time.Duration, traits TaskTraits)
	pendingCount() int
	runningCount() int
	barrierPending() bool
}

// =============================================================================
// globalExecutor: shared concurrent tiers
// =============================================================================

// globalExecutor routes straight into the pool. It applies no admission
// control of its own, so the barrier flag degenerates to a plain submission.
type globalExecutor struct {
	pool   ThreadPool
	active atomic.Int32
}

func (e *globalExecutor) submit(task Task, traits TaskTraits, _ bool) {
	e.pool.PostInternal(e.wrap(task), traits)
}

func (e *globalExecutor) submitDelayed(task Task, delay time.Duration, traits TaskTraits) {
	e.pool.PostDelayedInternal(e.wrap(task), delay, traits, e)
}

// PostTaskWithTraits implements DelayTarget; already-wrapped delayed tasks
// come back through the plain path.
func (e *globalExecutor) PostTaskWithTraits(task Task, traits TaskTraits) {
	e.pool.PostInternal(task, traits)
}

func (e *globalExecutor) wrap(task Task) Task {
	return func(ctx context.Context) {
		e.active.Add(1)
		defer e.active.Add(-1)
		task(ctx)
	}
}

func (e *globalExecutor) pendingCount() int    { return 0 }
func (e *globalExecutor) runningCount() int    { return int(e.active.Load()) }
func (e *globalExecutor) barrierPending() bool { return false }

// =============================================================================
// serialExecutor: custom serial queues
// =============================================================================

// serialExecutor guarantees strict one-at-a-time FIFO execution on top of
// the pool by keeping at most one run loop scheduled: the loop takes one
// task, runs it, and reposts itself if the queue is non-empty. That yield
// between tasks keeps a busy serial queue from starving the pool.
type serialExecutor struct {
	pool          ThreadPool
	queue         ReadyQueue
	mu            sync.Mutex
	isRunning     bool
	activeRunners int32 // atomic guard for the exclusivity assertion
}

func newSerialExecutor(pool ThreadPool) *serialExecutor {
	return &serialExecutor{
		pool:  pool,
		queue: NewFIFOReadyQueue(),
	}
}

func (e *serialExecutor) submit(task Task, traits TaskTraits, _ bool) {
	// A barrier on an already-exclusive queue adds nothing.
	e.queue.Push(task, traits)
	e.scheduleRunLoop(traits)
}

func (e *serialExecutor) submitDelayed(task Task, delay time.Duration, traits TaskTraits) {
	e.pool.PostDelayedInternal(task, delay, traits, e)
}

// PostTaskWithTraits implements DelayTarget: a due delayed task joins the
// FIFO like a fresh submission.
func (e *serialExecutor) PostTaskWithTraits(task Task, traits TaskTraits) {
	e.submit(task, traits, false)
}

// scheduleRunLoop starts the run loop if it is not already scheduled.
func (e *serialExecutor) scheduleRunLoop(traits TaskTraits) {
	e.mu.Lock()
	if !e.isRunning {
		e.isRunning = true
		e.mu.Unlock()
		e.pool.PostInternal(e.runLoop, traits)
	} else {
		e.mu.Unlock()
	}
}

func (e *serialExecutor) runLoop(ctx context.Context) {
	// Assertion: strictly one loop at a time
	if n := atomic.AddInt32(&e.activeRunners, 1); n > 1 {
		panic(fmt.Sprintf("dispatch: serial queue ran %d loops concurrently", n))
	}
	defer atomic.AddInt32(&e.activeRunners, -1)

	item, ok := e.queue.Pop()
	if !ok {
		e.mu.Lock()
		if e.queue.IsEmpty() {
			e.isRunning = false
			e.mu.Unlock()
			return
		}
		e.mu.Unlock()
		nextTraits, _ := e.queue.PeekTraits()
		e.pool.PostInternal(e.runLoop, nextTraits)
		return
	}

	// Execute ONE task. A panic must not leave the loop unscheduled, so it
	// is swallowed here; the item's own state machine already finalized.
	func() {
		defer func() { recover() }()
		item.Task(ctx)
	}()

	// Repost if there is more work (yield between every task).
	e.mu.Lock()
	more := !e.queue.IsEmpty()
	if !more {
		e.isRunning = false
	}
	e.mu.Unlock()

	if more {
		nextTraits, _ := e.queue.PeekTraits()
		e.pool.PostInternal(e.runLoop, nextTraits)
	}
}

func (e *serialExecutor) pendingCount() int { return e.queue.Len() }
func (e *serialExecutor) runningCount() int {
	return int(atomic.LoadInt32(&e.activeRunners))
}
func (e *serialExecutor) barrierPending() bool { return false }

// =============================================================================
// concurrentExecutor: custom concurrent queues with barrier support
// =============================================================================

type pendingEntry struct {
	task    Task
	traits  TaskTraits
	barrier bool
}

// concurrentExecutor lets items run in parallel on the pool but enforces
// barrier admission: a barrier waits for every earlier item to complete,
// runs alone, and only then may later items start. Plain items are only
// held back while a barrier is pending or active, so the fast path is a
// single mutex acquisition.
type concurrentExecutor struct {
	pool ThreadPool

	mu      sync.Mutex
	running int
	barrier bool // a barrier task is currently executing
	pending []pendingEntry
}

func (e *concurrentExecutor) submit(task Task, traits TaskTraits, barrier bool) {
	e.mu.Lock()
	if e.barrier || len(e.pending) > 0 || (barrier && e.running > 0) {
		e.pending = append(e.pending, pendingEntry{task: task, traits: traits, barrier: barrier})
		e.mu.Unlock()
		return
	}
	e.running++
	e.barrier = barrier
	e.mu.Unlock()

	e.pool.PostInternal(e.wrap(task, barrier), traits)
}

func (e *concurrentExecutor) submitDelayed(task Task, delay time.Duration, traits TaskTraits) {
	e.pool.PostDelayedInternal(task, delay, traits, e)
}

// PostTaskWithTraits implements DelayTarget: a due delayed task is admitted
// like a fresh non-barrier submission, so it respects any barrier in flight.
func (e *concurrentExecutor) PostTaskWithTraits(task Task, traits TaskTraits) {
	e.submit(task, traits, false)
}

func (e *concurrentExecutor) wrap(task Task, barrier bool) Task {
	return func(ctx context.Context) {
		// Admission release must run even if the task panics.
		defer e.onTaskComplete(barrier)
		task(ctx)
	}
}

func (e *concurrentExecutor) onTaskComplete(barrier bool) {
	e.mu.Lock()
	e.running--
	if barrier {
		e.barrier = false
	}
	starts := e.admitLocked()
	e.mu.Unlock()

	for _, s := range starts {
		e.pool.PostInternal(e.wrap(s.task, s.barrier), s.traits)
	}
}

// admitLocked pops every pending entry that may start now, preserving
// submission order: plain items flow until the next barrier; a barrier is
// admitted only once the queue is idle, and nothing follows it until it
// completes.
func (e *concurrentExecutor) admitLocked() []pendingEntry {
	var starts []pendingEntry
	for len(e.pending) > 0 {
		if e.barrier {
			break
		}
		next := e.pending[0]
		if next.barrier && e.running > 0 {
			break
		}

		e.pending[0] = pendingEntry{}
		e.pending = e.pending[1:]
		e.running++
		if next.barrier {
			e.barrier = true
		}
		starts = append(starts, next)
	}
	if len(e.pending) == 0 {
		e.pending = nil
	}
	return starts
}

func (e *concurrentExecutor) pendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

func (e *concurrentExecutor) runningCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *concurrentExecutor) barrierPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.barrier {
		return true
	}
	for _, p := range e.pending {
		if p.barrier {
			return true
		}
	}
	return false
}

// =============================================================================
// mainExecutor: the main queue's dedicated loop
// =============================================================================

// mainExecutor binds a queue to one dedicated goroutine, the stand-in for a
// main-thread event loop: tasks run one at a time, always on that goroutine.
// The backlog is an unbounded FIFO with a wake signal, so submission never
// blocks the submitter; in particular a task running on the main queue may
// submit any amount of follow-up work without wedging the loop that has to
// drain it. Delays use time.AfterFunc rather than the pool's timer heap so
// the main queue works without any pool at all.
type mainExecutor struct {
	label        string
	queue        *FIFOReadyQueue
	signal       chan struct{}
	panicHandler PanicHandler
	ctx          context.Context
	cancel       context.CancelFunc
	stopped      chan struct{}
	once         sync.Once
	active       atomic.Int32
}

func newMainExecutor(label string) *mainExecutor {
	ctx, cancel := context.WithCancel(context.Background())
	e := &mainExecutor{
		label:        label,
		queue:        NewFIFOReadyQueue(),
		signal:       make(chan struct{}, 1),
		panicHandler: &DefaultPanicHandler{},
		ctx:          ctx,
		cancel:       cancel,
		stopped:      make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *mainExecutor) submit(task Task, traits TaskTraits, _ bool) {
	select {
	case <-e.ctx.Done():
		// Loop stopped, drop task
		return
	default:
	}

	e.queue.Push(task, traits)
	select {
	case e.signal <- struct{}{}:
	default:
		// Signal already pending, the loop will see the task.
	}
}

func (e *mainExecutor) submitDelayed(task Task, delay time.Duration, traits TaskTraits) {
	select {
	case <-e.ctx.Done():
	default:
		time.AfterFunc(delay, func() {
			e.submit(task, traits, false)
		})
	}
}

func (e *mainExecutor) loop() {
	defer close(e.stopped)

	for {
		if item, ok := e.queue.Pop(); ok {
			e.runOne(item.Task)
			continue
		}

		select {
		case <-e.signal:
		case <-e.ctx.Done():
			return
		}
	}
}

func (e *mainExecutor) runOne(task Task) {
	e.active.Store(1)
	defer func() {
		e.active.Store(0)
		if rec := recover(); rec != nil {
			// workerID -1 marks the main queue's dedicated loop.
			e.panicHandler.HandlePanic(e.ctx, e.label, -1, rec, debug.Stack())
		}
	}()
	task(e.ctx)
}

// stop terminates the loop. Only tests need this; the process-wide main
// queue lives for the process.
func (e *mainExecutor) stop() {
	e.once.Do(func() {
		e.cancel()
		<-e.stopped
	})
}

func (e *mainExecutor) pendingCount() int    { return e.queue.Len() }
func (e *mainExecutor) runningCount() int    { return int(e.active.Load()) }
func (e *mainExecutor) barrierPending() bool { return false }
