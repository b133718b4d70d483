package core

import (
	"container/heap"
	"sync"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

type TaskItem struct {
	Task   Task
	Traits TaskTraits
}

// ReadyQueue defines the interface for the scheduler's ready-task storage
type ReadyQueue interface {
	Push(t Task, traits TaskTraits)
	Pop() (TaskItem, bool)
	PeekTraits() (TaskTraits, bool)
	Len() int
	IsEmpty() bool
	MaybeCompact()
	Clear() // Clear all tasks from the queue
}

// =============================================================================
// FIFOReadyQueue: efficient slice-backed FIFO
// =============================================================================

type FIFOReadyQueue struct {
	mu    sync.Mutex
	tasks []TaskItem
}

func NewFIFOReadyQueue() *FIFOReadyQueue {
	return &FIFOReadyQueue{
		tasks: make([]TaskItem, 0, defaultQueueCap),
	}
}

func (q *FIFOReadyQueue) Push(t Task, traits TaskTraits) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, TaskItem{Task: t, Traits: traits})
}

func (q *FIFOReadyQueue) Pop() (TaskItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return TaskItem{}, false
	}

	item := q.tasks[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.tasks[0] = TaskItem{}
	q.tasks = q.tasks[1:]
	q.maybeCompactLocked()

	return item, true
}

func (q *FIFOReadyQueue) MaybeCompact() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.maybeCompactLocked()
}

func (q *FIFOReadyQueue) maybeCompactLocked() {
	n := len(q.tasks)
	c := cap(q.tasks)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.tasks = make([]TaskItem, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]TaskItem, n, newCap)
	copy(newSlice, q.tasks)
	q.tasks = newSlice
}

func (q *FIFOReadyQueue) PeekTraits() (TaskTraits, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tasks) == 0 {
		return TaskTraits{}, false
	}
	return q.tasks[0].Traits, true
}

func (q *FIFOReadyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *FIFOReadyQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear removes all tasks from the queue and releases references
func (q *FIFOReadyQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = make([]TaskItem, 0, defaultQueueCap)
}

// =============================================================================
// QoSReadyQueue: Min-Heap based queue with stability (FIFO within one class)
// =============================================================================

type qosItem struct {
	TaskItem
	sequence uint64 // For stability
	index    int    // For heap
}

// qosHeap implements heap.Interface
type qosHeap []*qosItem

func (h qosHeap) Len() int { return len(h) }

// Less orders by urgency: higher QoS first, then smaller sequence (FIFO)
func (h qosHeap) Less(i, j int) bool {
	if h[i].Traits.QoS > h[j].Traits.QoS {
		return true
	}
	if h[i].Traits.QoS < h[j].Traits.QoS {
		return false
	}
	return h[i].sequence < h[j].sequence
}

func (h qosHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *qosHeap) Push(x interface{}) {
	n := len(*h)
	item := x.(*qosItem)
	item.index = n
	*h = append(*h, item)
}

func (h *qosHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // Avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

type QoSReadyQueue struct {
	mu           sync.Mutex
	pq           qosHeap
	nextSequence uint64
}

func NewQoSReadyQueue() *QoSReadyQueue {
	return &QoSReadyQueue{
		pq: make(qosHeap, 0, defaultQueueCap),
	}
}

func (q *QoSReadyQueue) Push(t Task, traits TaskTraits) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item := &qosItem{
		TaskItem: TaskItem{Task: t, Traits: traits},
		sequence: q.nextSequence,
	}
	q.nextSequence++

	heap.Push(&q.pq, item)
}

func (q *QoSReadyQueue) Pop() (TaskItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pq) == 0 {
		return TaskItem{}, false
	}

	item := heap.Pop(&q.pq).(*qosItem)
	return item.TaskItem, true
}

func (q *QoSReadyQueue) PeekTraits() (TaskTraits, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pq) == 0 {
		return TaskTraits{}, false
	}
	// Index 0 is the most urgent item per Less.
	return q.pq[0].Traits, true
}

func (q *QoSReadyQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pq)
}

func (q *QoSReadyQueue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *QoSReadyQueue) MaybeCompact() {
	// Resetting capacity for a live heap means rebuilding it; not worth it
	// for container/heap usage patterns.
}

// Clear removes all tasks from the queue and releases references
func (q *QoSReadyQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pq = make(qosHeap, 0, defaultQueueCap)
	heap.Init(&q.pq)
	q.nextSequence = 0
}
