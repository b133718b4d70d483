// Package dispatch provides typed work queues over a goroutine pool.
//
// The model has two halves: a Queue is a named execution context with a
// scheduling policy (serial or concurrent, with a quality-of-service class),
// and a WorkItem is a cancellable, waitable handle around one deferred
// action. Queues decide when work becomes eligible; a shared worker pool
// executes it.
//
// # Quick Start
//
// Built-in queues are ready without any setup; the global pool starts
// lazily with runtime.NumCPU() workers:
//
//	item := dispatch.Global(dispatch.QoSDefault).Async(func(ctx context.Context) {
//		// concurrent work
//	})
//	item.Wait()
//
// Call InitGlobalThreadPool early to pick a worker count explicitly:
//
//	dispatch.InitGlobalThreadPool(4)
//	defer dispatch.ShutdownGlobalThreadPool()
//
// # Queues
//
// Main() is a process-wide serial queue drained by one dedicated goroutine.
// Global(qos) returns one of five shared concurrent tiers, ordered
// UserInteractive > UserInitiated > Default > Utility > Background.
// NewSerialQueue and NewConcurrentQueue create custom queues; targeting a
// custom queue at another queue fixes where it inherits its QoS from.
//
// # Submission
//
// Every submission mode returns the WorkItem so calls chain naturally:
//
//	q := dispatch.NewSerialQueue("ledger")
//	q.Async(load).Notify(dispatch.Main(), render)
//	q.Sync(func(ctx context.Context) { /* runs before Sync returns */ })
//	q.After(time.Second, expire)
//
// BarrierAsync and BarrierSync on a concurrent queue run their item with
// exclusive access: everything submitted earlier drains first, and nothing
// later starts until the barrier finishes. On serial queues and the global
// tiers a barrier degenerates to a plain submission.
//
// Apply(n, fn) is a parallel for loop: it fans n indexed invocations across
// the queue and blocks until all of them finish.
//
// # Hazards
//
// Sync against the serial queue the caller is already executing on
// deadlocks, exactly as in any one-at-a-time model; the library cannot
// detect it. Cancellation is cooperative: Cancel prevents a pending item
// from starting but never interrupts a running one.
package dispatch
