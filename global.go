package dispatch

import (
	"context"
	"runtime"
	"sync"

	"github.com/dispatchq/dispatch/core"
)

// =============================================================================
// Global Thread Pool (Singleton)
// =============================================================================

var (
	globalThreadPool *GoroutineThreadPool
	globalMu         sync.Mutex
)

// InitGlobalThreadPool initializes the global thread pool with the given
// number of workers and starts it. Calling it after the pool exists (either
// by a prior call or by lazy initialization) is a no-op; call it early if
// the default worker count is not what you want.
func InitGlobalThreadPool(workers int) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		return // Already initialized
	}

	globalThreadPool = NewGoroutineThreadPool("dispatch-global", workers)
	globalThreadPool.Start(context.Background())
}

// GetGlobalThreadPool returns the global thread pool, creating and starting
// it with runtime.NumCPU() workers on first use.
func GetGlobalThreadPool() *GoroutineThreadPool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool == nil {
		globalThreadPool = NewGoroutineThreadPool("dispatch-global", runtime.NumCPU())
		globalThreadPool.Start(context.Background())
	}
	return globalThreadPool
}

// ShutdownGlobalThreadPool stops the global thread pool. Intended for
// process teardown: built-in queues created against the old pool stop
// executing once it is gone.
func ShutdownGlobalThreadPool() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalThreadPool != nil {
		globalThreadPool.Stop()
		globalThreadPool = nil
	}
}

// =============================================================================
// Built-in queues
// =============================================================================

var (
	builtinOnce  sync.Once
	mainQueue    *core.Queue
	globalQueues [5]*core.Queue // indexed by QoS
)

func initBuiltins() {
	builtinOnce.Do(func() {
		pool := GetGlobalThreadPool()
		mainQueue = core.NewMainQueue("main")
		for _, qos := range []core.QoS{
			core.QoSBackground,
			core.QoSUtility,
			core.QoSDefault,
			core.QoSUserInitiated,
			core.QoSUserInteractive,
		} {
			globalQueues[qos] = core.NewGlobalQueue(pool, qos)
		}
	})
}

// Main returns the process-wide main queue: always serial, drained by one
// dedicated goroutine for the life of the process. Submitting Sync to it
// from its own goroutine deadlocks, as with any serial queue.
func Main() *core.Queue {
	initBuiltins()
	return mainQueue
}

// Global returns the shared concurrent queue for the given QoS class.
// Handles for the same class are always the same queue. An out-of-range
// class maps to the default tier.
func Global(qos core.QoS) *core.Queue {
	initBuiltins()
	if qos < core.QoSBackground || qos > core.QoSUserInteractive {
		qos = core.QoSDefault
	}
	return globalQueues[qos]
}

// =============================================================================
// Custom queue constructors
// =============================================================================

// NewSerialQueue creates a serial queue on the global pool. The label is
// diagnostic only; two calls always create two distinct queues.
func NewSerialQueue(label string) *core.Queue {
	return core.NewSerialQueue(GetGlobalThreadPool(), label, nil)
}

// NewSerialQueueTargeting creates a serial queue chained to target for QoS
// inheritance. The target is fixed for the queue's lifetime.
func NewSerialQueueTargeting(label string, target *core.Queue) *core.Queue {
	return core.NewSerialQueue(GetGlobalThreadPool(), label, target)
}

// NewConcurrentQueue creates a concurrent queue on the global pool.
func NewConcurrentQueue(label string) *core.Queue {
	return core.NewConcurrentQueue(GetGlobalThreadPool(), label, nil)
}

// NewConcurrentQueueTargeting creates a concurrent queue chained to target
// for QoS inheritance.
func NewConcurrentQueueTargeting(label string, target *core.Queue) *core.Queue {
	return core.NewConcurrentQueue(GetGlobalThreadPool(), label, target)
}
