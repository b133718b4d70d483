package core

import (
	"context"
	"time"
)

// Task is the unit of work handed to the execution substrate (Closure)
type Task func(ctx context.Context)

// WorkFunc is the caller-facing action type. Submitting a WorkFunc to a
// Queue wraps it in a WorkItem; the ctx carries the current-queue marker
// used by Queue.IsCurrent.
type WorkFunc func(ctx context.Context)

// =============================================================================
// QoS: quality-of-service classes, ordered lowest to highest urgency
// =============================================================================

type QoS int

const (
	// QoSBackground: lowest urgency. Work the user is not aware of
	// (prefetching, maintenance, cleanup).
	QoSBackground QoS = iota

	// QoSUtility: long-running work with visible progress
	// (downloads, imports).
	QoSUtility

	// QoSDefault: the fallback class when nothing more specific applies.
	QoSDefault

	// QoSUserInitiated: work the user asked for and is waiting on.
	QoSUserInitiated

	// QoSUserInteractive: highest urgency. Work that gates an interactive
	// response; delaying it makes the program feel stalled.
	QoSUserInteractive
)

// String returns the canonical lowercase name of the class.
func (q QoS) String() string {
	switch q {
	case QoSUserInteractive:
		return "user_interactive"
	case QoSUserInitiated:
		return "user_initiated"
	case QoSDefault:
		return "default"
	case QoSUtility:
		return "utility"
	case QoSBackground:
		return "background"
	default:
		return "unknown"
	}
}

// =============================================================================
// TaskTraits: scheduling attributes attached to a submitted task
// =============================================================================

type TaskTraits struct {
	QoS      QoS
	MayBlock bool
}

func DefaultTaskTraits() TaskTraits {
	return TaskTraits{QoS: QoSDefault}
}

func TraitsForQoS(qos QoS) TaskTraits {
	return TaskTraits{QoS: qos}
}

// =============================================================================
// ThreadPool: submission contract of the execution substrate
// =============================================================================

// ThreadPool is what queues dispatch into. Implementations own the worker
// goroutines and the timer subsystem; queues only route work to them.
type ThreadPool interface {
	PostInternal(task Task, traits TaskTraits)
	PostDelayedInternal(task Task, delay time.Duration, traits TaskTraits, target DelayTarget)
}

// DelayTarget receives a task back from the delay subsystem once its
// eligibility time arrives.
type DelayTarget interface {
	PostTaskWithTraits(task Task, traits TaskTraits)
}

// =============================================================================
// Context Helper
// =============================================================================

type currentQueueKeyType struct{}

var currentQueueKey currentQueueKeyType

// CurrentQueue returns the Queue whose task is presently executing on the
// calling goroutine, or nil if the code was not dispatched through a Queue.
func CurrentQueue(ctx context.Context) *Queue {
	if v := ctx.Value(currentQueueKey); v != nil {
		return v.(*Queue)
	}
	return nil
}

func withCurrentQueue(ctx context.Context, q *Queue) context.Context {
	return context.WithValue(ctx, currentQueueKey, q)
}
