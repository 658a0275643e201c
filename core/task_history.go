package core

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"
)

const defaultTaskHistoryCapacity = 100

// ringBuffer keeps the last cap values pushed. It is safe for concurrent use.
type ringBuffer[T any] struct {
	mu   sync.Mutex
	buf  []T
	next int
	full bool
}

func newRingBuffer[T any](capacity int) *ringBuffer[T] {
	if capacity < 1 {
		capacity = defaultTaskHistoryCapacity
	}
	return &ringBuffer[T]{buf: make([]T, capacity)}
}

// Push stores v, overwriting the oldest value once the buffer is full.
func (r *ringBuffer[T]) Push(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = v
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// Len returns the number of values held.
func (r *ringBuffer[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lenLocked()
}

func (r *ringBuffer[T]) lenLocked() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// Newest returns up to limit values, newest first. limit <= 0 means all.
func (r *ringBuffer[T]) Newest(limit int) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.lenLocked()
	if n == 0 {
		return nil
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]T, limit)
	idx := r.next
	for i := range out {
		idx--
		if idx < 0 {
			idx = len(r.buf) - 1
		}
		out[i] = r.buf[idx]
	}
	return out
}

// resolveTaskName picks a human-readable name for history records:
// the tracked name, then the function name for TaskFunc, then the type.
func resolveTaskName(task Task) string {
	switch t := task.(type) {
	case nil:
		return "anonymous"
	case *TrackedTask:
		if t.Name() != "" {
			return t.Name()
		}
		return resolveTaskName(t.inner)
	case TaskFunc:
		return funcName(t)
	default:
		return fmt.Sprintf("%T", task)
	}
}

func funcName(fn TaskFunc) string {
	if fn == nil {
		return "anonymous"
	}

	pc := reflect.ValueOf(fn).Pointer()
	if pc == 0 {
		return "anonymous"
	}

	f := runtime.FuncForPC(pc)
	if f == nil || f.Name() == "" {
		return "anonymous"
	}
	return f.Name()
}
