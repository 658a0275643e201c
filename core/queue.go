package core

import (
	"sync"
	"time"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

type pendingItem struct {
	task       Task
	enqueuedAt time.Time
}

// PendingQueue is the order-preserving store of tasks awaiting execution.
//
// It is not a priority structure: TryPopReady scans in insertion order and
// takes the first ready task, so an earlier ready task always wins over a
// later one, while a not-yet-ready task never blocks those behind it.
type PendingQueue struct {
	mu    sync.Mutex
	items []pendingItem
	now   func() time.Time
}

func NewPendingQueue() *PendingQueue {
	return &PendingQueue{
		items: make([]pendingItem, 0, defaultQueueCap),
		now:   time.Now,
	}
}

// Push appends t to the end of the queue.
func (q *PendingQueue) Push(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, pendingItem{task: t, enqueuedAt: q.now()})
}

// TryPopReady removes and returns the first task whose IsReady reports true.
// The scan and the removal happen under one lock, so a task can be handed
// out at most once.
func (q *PendingQueue) TryPopReady() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.items {
		if !isReady(q.items[i].task) {
			continue
		}
		t := q.items[i].task
		q.removeLocked(i)
		return t, true
	}
	return nil, false
}

// isReady reports t.IsReady(), treating a panicking predicate as not ready.
func isReady(t Task) (ready bool) {
	defer func() {
		if recover() != nil {
			ready = false
		}
	}()
	return t.IsReady()
}

// removeLocked deletes index i preserving order.
func (q *PendingQueue) removeLocked(i int) {
	n := len(q.items)
	if i == 0 {
		// Zero out the element in the underlying array to prevent memory leak
		q.items[0] = pendingItem{}
		q.items = q.items[1:]
	} else {
		copy(q.items[i:], q.items[i+1:])
		q.items[n-1] = pendingItem{}
		q.items = q.items[:n-1]
	}
	q.maybeCompactLocked()
}

// EvictOlderThan removes every task that has been pending for longer than
// age and returns them in insertion order.
func (q *PendingQueue) EvictOlderThan(age time.Duration) []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}

	cutoff := q.now().Add(-age)
	var evicted []Task
	kept := q.items[:0]
	for _, item := range q.items {
		if item.enqueuedAt.Before(cutoff) {
			evicted = append(evicted, item.task)
			continue
		}
		kept = append(kept, item)
	}
	for i := len(kept); i < len(q.items); i++ {
		q.items[i] = pendingItem{}
	}
	q.items = kept
	q.maybeCompactLocked()

	return evicted
}

func (q *PendingQueue) maybeCompactLocked() {
	n := len(q.items)
	c := cap(q.items)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.items = make([]pendingItem, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]pendingItem, n, newCap)
	copy(newSlice, q.items)
	q.items = newSlice
}

func (q *PendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *PendingQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Clear drops all pending tasks and returns how many were discarded.
func (q *PendingQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	// Create a new slice to release all task references
	q.items = make([]pendingItem, 0, defaultQueueCap)
	return n
}
