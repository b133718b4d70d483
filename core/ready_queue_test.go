package core

import (
	"context"
	"testing"
)

func noopTask(ctx context.Context) {}

// Given: tasks pushed to a FIFO ready queue
// When: popped
// Then: arrival order is preserved regardless of traits
func TestFIFOReadyQueueOrder(t *testing.T) {
	q := NewFIFOReadyQueue()

	seen := make([]int, 0, 3)
	push := func(n int, qos QoS) {
		q.Push(func(ctx context.Context) { seen = append(seen, n) }, TraitsForQoS(qos))
	}

	push(1, QoSBackground)
	push(2, QoSUserInteractive)
	push(3, QoSDefault)

	if q.Len() != 3 {
		t.Fatalf("Expected length 3, got %d", q.Len())
	}

	for i := 0; i < 3; i++ {
		item, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop %d failed", i)
		}
		item.Task(context.Background())
	}

	if seen[0] != 1 || seen[1] != 2 || seen[2] != 3 {
		t.Errorf("Expected FIFO order [1 2 3], got %v", seen)
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop on an empty queue should fail")
	}
}

// Given: tasks of mixed QoS classes in a QoS ready queue
// When: popped
// Then: higher classes come first, FIFO within one class
func TestQoSReadyQueueOrdering(t *testing.T) {
	q := NewQoSReadyQueue()

	var seen []string
	push := func(name string, qos QoS) {
		q.Push(func(ctx context.Context) { seen = append(seen, name) }, TraitsForQoS(qos))
	}

	push("bg1", QoSBackground)
	push("ui1", QoSUserInteractive)
	push("def1", QoSDefault)
	push("ui2", QoSUserInteractive)
	push("def2", QoSDefault)

	for {
		item, ok := q.Pop()
		if !ok {
			break
		}
		item.Task(context.Background())
	}

	want := []string{"ui1", "ui2", "def1", "def2", "bg1"}
	if len(seen) != len(want) {
		t.Fatalf("Expected %d tasks, got %d", len(want), len(seen))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("Position %d: expected %s, got %s (full order %v)", i, want[i], seen[i], seen)
			break
		}
	}
}

// Given: a QoS ready queue with queued tasks
// When: PeekTraits is called
// Then: it reports the most urgent class without consuming anything
func TestQoSReadyQueuePeekTraits(t *testing.T) {
	q := NewQoSReadyQueue()

	if _, ok := q.PeekTraits(); ok {
		t.Error("Peek on an empty queue should fail")
	}

	q.Push(noopTask, TraitsForQoS(QoSUtility))
	q.Push(noopTask, TraitsForQoS(QoSUserInitiated))

	traits, ok := q.PeekTraits()
	if !ok {
		t.Fatal("Peek should succeed on a non-empty queue")
	}
	if traits.QoS != QoSUserInitiated {
		t.Errorf("Expected peek at user-initiated, got %v", traits.QoS)
	}
	if q.Len() != 2 {
		t.Errorf("Peek must not consume, length is %d", q.Len())
	}
}

// Given: a populated queue
// When: Clear is called
// Then: it is empty and still usable
func TestReadyQueueClear(t *testing.T) {
	for _, q := range []ReadyQueue{NewFIFOReadyQueue(), NewQoSReadyQueue()} {
		q.Push(noopTask, DefaultTaskTraits())
		q.Push(noopTask, DefaultTaskTraits())

		q.Clear()

		if !q.IsEmpty() {
			t.Errorf("%T should be empty after Clear", q)
		}

		q.Push(noopTask, DefaultTaskTraits())
		if _, ok := q.Pop(); !ok {
			t.Errorf("%T should be usable after Clear", q)
		}
	}
}

// Given: a FIFO queue grown past the compaction threshold
// When: it drains below the shrink factor
// Then: compaction keeps behavior intact
func TestFIFOReadyQueueCompaction(t *testing.T) {
	q := NewFIFOReadyQueue()

	for i := 0; i < compactMinCap*2; i++ {
		q.Push(noopTask, DefaultTaskTraits())
	}
	for i := 0; i < compactMinCap*2-2; i++ {
		if _, ok := q.Pop(); !ok {
			t.Fatalf("Pop %d failed", i)
		}
	}
	q.MaybeCompact()

	if q.Len() != 2 {
		t.Errorf("Expected 2 remaining tasks after compaction, got %d", q.Len())
	}
	if _, ok := q.Pop(); !ok {
		t.Error("Queue should keep serving after compaction")
	}
}
