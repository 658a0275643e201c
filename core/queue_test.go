package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

type labelTask struct {
	label string
	ready bool
}

func (t *labelTask) IsReady() bool           { return t.ready }
func (t *labelTask) Run(ctx context.Context) {}

type panickingReadyTask struct{}

func (panickingReadyTask) IsReady() bool           { panic("readiness check failed") }
func (panickingReadyTask) Run(ctx context.Context) {}

// TestPendingQueue_PanickingPredicateIsNotReady verifies a failing IsReady does not escape the scan
// Given: A task whose IsReady panics, followed by a ready task
// When: TryPopReady is called twice
// Then: The ready task is returned, then nothing, and the panicking task stays queued
func TestPendingQueue_PanickingPredicateIsNotReady(t *testing.T) {
	// Arrange
	q := NewPendingQueue()
	q.Push(panickingReadyTask{})
	q.Push(&labelTask{label: "A", ready: true})

	// Act
	got, ok := q.TryPopReady()

	// Assert
	if !ok {
		t.Fatal("TryPopReady reported nothing ready, want A")
	}
	if l := got.(*labelTask).label; l != "A" {
		t.Errorf("got %s, want A", l)
	}
	if _, ok := q.TryPopReady(); ok {
		t.Error("TryPopReady returned a task whose IsReady panics")
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1", q.Len())
	}
}

// TestPendingQueue_FIFOAmongReady verifies insertion order among ready tasks
// Given: Three ready tasks pushed in order A, B, C
// When: TryPopReady is called repeatedly
// Then: Tasks come out as A, B, C and the queue ends empty
func TestPendingQueue_FIFOAmongReady(t *testing.T) {
	// Arrange
	q := NewPendingQueue()
	for _, l := range []string{"A", "B", "C"} {
		q.Push(&labelTask{label: l, ready: true})
	}

	// Act & Assert
	for i, want := range []string{"A", "B", "C"} {
		got, ok := q.TryPopReady()
		if !ok {
			t.Fatalf("Step %d: queue reported nothing ready, want %s", i, want)
		}
		if l := got.(*labelTask).label; l != want {
			t.Errorf("Step %d: got %s, want %s", i, l, want)
		}
	}
	if !q.IsEmpty() {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

// TestPendingQueue_SkipsNotReady verifies a blocked head does not block later tasks
// Given: A never-ready task followed by two ready tasks
// When: TryPopReady is called
// Then: The ready tasks are returned in order and the blocked task stays queued
func TestPendingQueue_SkipsNotReady(t *testing.T) {
	// Arrange
	q := NewPendingQueue()
	blocked := &labelTask{label: "blocked"}
	q.Push(blocked)
	q.Push(&labelTask{label: "A", ready: true})
	q.Push(&labelTask{label: "B", ready: true})

	// Act
	first, ok1 := q.TryPopReady()
	second, ok2 := q.TryPopReady()
	_, ok3 := q.TryPopReady()

	// Assert
	if !ok1 || first.(*labelTask).label != "A" {
		t.Errorf("first pop = %v, want A", first)
	}
	if !ok2 || second.(*labelTask).label != "B" {
		t.Errorf("second pop = %v, want B", second)
	}
	if ok3 {
		t.Error("third pop succeeded, want nothing ready")
	}
	if q.Len() != 1 {
		t.Errorf("Len() = %d, want 1 (blocked task retained)", q.Len())
	}

	// Act - blocked task becomes ready
	blocked.ready = true
	got, ok := q.TryPopReady()

	// Assert
	if !ok || got != blocked {
		t.Errorf("pop after ready = %v, want blocked task", got)
	}
}

// TestPendingQueue_PopFromMiddlePreservesOrder verifies removal from the middle keeps the rest ordered
func TestPendingQueue_PopFromMiddlePreservesOrder(t *testing.T) {
	q := NewPendingQueue()
	a := &labelTask{label: "A"}
	b := &labelTask{label: "B", ready: true}
	c := &labelTask{label: "C"}
	q.Push(a)
	q.Push(b)
	q.Push(c)

	if got, ok := q.TryPopReady(); !ok || got != b {
		t.Fatalf("pop = %v, want B", got)
	}

	a.ready, c.ready = true, true
	if got, _ := q.TryPopReady(); got != a {
		t.Errorf("pop = %v, want A", got)
	}
	if got, _ := q.TryPopReady(); got != c {
		t.Errorf("pop = %v, want C", got)
	}
}

// TestPendingQueue_EvictOlderThan verifies age-based eviction
// Given: Two tasks pushed 10 minutes apart on a fake clock
// When: EvictOlderThan(5m) runs after the second push
// Then: Only the older task is evicted
func TestPendingQueue_EvictOlderThan(t *testing.T) {
	// Arrange
	now := time.Unix(1_000, 0)
	q := NewPendingQueue()
	q.now = func() time.Time { return now }

	old := &labelTask{label: "old"}
	q.Push(old)
	now = now.Add(10 * time.Minute)
	young := &labelTask{label: "young"}
	q.Push(young)

	// Act
	evicted := q.EvictOlderThan(5 * time.Minute)

	// Assert
	if len(evicted) != 1 || evicted[0] != old {
		t.Fatalf("evicted = %v, want [old]", evicted)
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}
	young.ready = true
	if got, _ := q.TryPopReady(); got != young {
		t.Errorf("remaining task = %v, want young", got)
	}
}

func TestPendingQueue_EvictOlderThan_Empty(t *testing.T) {
	q := NewPendingQueue()
	if got := q.EvictOlderThan(time.Second); got != nil {
		t.Errorf("EvictOlderThan on empty queue = %v, want nil", got)
	}
}

// TestPendingQueue_Clear verifies Clear drops everything and reports the count
func TestPendingQueue_Clear(t *testing.T) {
	q := NewPendingQueue()
	for i := 0; i < 5; i++ {
		q.Push(&labelTask{ready: true})
	}

	if n := q.Clear(); n != 5 {
		t.Errorf("Clear() = %d, want 5", n)
	}
	if !q.IsEmpty() {
		t.Errorf("Len() = %d after Clear, want 0", q.Len())
	}
	if _, ok := q.TryPopReady(); ok {
		t.Error("TryPopReady succeeded after Clear")
	}
}

// TestPendingQueue_Compaction verifies capacity shrinks after draining
// Given: A queue grown to 1000 items
// When: All but a few are popped
// Then: The backing array is compacted below its peak capacity
func TestPendingQueue_Compaction(t *testing.T) {
	// Arrange
	q := NewPendingQueue()
	for i := 0; i < 1000; i++ {
		q.Push(&labelTask{ready: true})
	}
	peak := cap(q.items)

	// Act
	for i := 0; i < 990; i++ {
		if _, ok := q.TryPopReady(); !ok {
			t.Fatalf("pop %d failed", i)
		}
	}

	// Assert
	if q.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", q.Len())
	}
	if c := cap(q.items); c >= peak {
		t.Errorf("cap = %d, want < %d after compaction", c, peak)
	}
}

// TestPendingQueue_ConcurrentPushPop verifies no task is lost or duplicated
// Given: 8 producers pushing 500 tasks each and 8 consumers popping
// When: All goroutines finish
// Then: Every task was popped exactly once
func TestPendingQueue_ConcurrentPushPop(t *testing.T) {
	// Arrange
	const producers, perProducer, consumers = 8, 500, 8
	total := producers * perProducer
	q := NewPendingQueue()

	var mu sync.Mutex
	seen := make(map[Task]int, total)

	var produced sync.WaitGroup
	produced.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer produced.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(&labelTask{ready: true})
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		produced.Wait()
		close(done)
	}()

	// Act
	var consumed sync.WaitGroup
	consumed.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer consumed.Done()
			for {
				task, ok := q.TryPopReady()
				if ok {
					mu.Lock()
					seen[task]++
					mu.Unlock()
					continue
				}
				select {
				case <-done:
					if q.IsEmpty() {
						return
					}
				default:
				}
			}
		}()
	}
	consumed.Wait()

	// Assert
	if len(seen) != total {
		t.Fatalf("distinct tasks popped = %d, want %d", len(seen), total)
	}
	for task, n := range seen {
		if n != 1 {
			t.Fatalf("task %p popped %d times, want 1", task, n)
		}
	}
}
