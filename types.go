package dispatch

import "github.com/dispatchq/dispatch/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the dispatch package for most use cases.

// WorkItem is a cancellable, waitable unit of deferred work
type WorkItem = core.WorkItem

// WorkFunc is the action type submitted to queues
type WorkFunc = core.WorkFunc

// Queue is a named execution context with a scheduling policy
type Queue = core.Queue

// State describes a WorkItem's lifecycle position
type State = core.State

// WaitResult reports the outcome of a bounded wait
type WaitResult = core.WaitResult

// QoS is the quality-of-service class of a queue or task
type QoS = core.QoS

// TaskTraits carries scheduling attributes for the substrate
type TaskTraits = core.TaskTraits

// Task is the substrate-level unit of work
type Task = core.Task

// ThreadPool is re-exported for type compatibility
type ThreadPool = core.ThreadPool

// Logger is the structured logging integration point
type Logger = core.Logger

// State constants
const (
	StatePending   State = core.StatePending
	StateRunning   State = core.StateRunning
	StateCompleted State = core.StateCompleted
	StateCancelled State = core.StateCancelled
)

// Wait outcomes
const (
	WaitSuccess  WaitResult = core.WaitSuccess
	WaitTimedOut WaitResult = core.WaitTimedOut
)

// QoS classes, highest to lowest urgency
const (
	QoSUserInteractive QoS = core.QoSUserInteractive
	QoSUserInitiated   QoS = core.QoSUserInitiated
	QoSDefault         QoS = core.QoSDefault
	QoSUtility         QoS = core.QoSUtility
	QoSBackground      QoS = core.QoSBackground
)

// NewWorkItem creates a standalone pending WorkItem; submit it to a queue or
// drive it directly with Perform.
var NewWorkItem = core.NewWorkItem

// CurrentQueue returns the queue executing the calling task, if any.
var CurrentQueue = core.CurrentQueue

// Convenience re-exports for traits and logging
var (
	DefaultTaskTraits = core.DefaultTaskTraits
	TraitsForQoS      = core.TraitsForQoS
	F                 = core.F
)
