package core

import (
	"context"
	"sync/atomic"
)

// Task is a unit of deferred, possibly conditional work.
//
// IsReady must be free of side effects; it is called under the manager's queue
// lock, possibly many times, by any idle worker. Run is invoked at most once,
// by exactly one worker, after IsReady has returned true. A panic in IsReady
// is recovered and counts as not ready, so such a task stays queued.
type Task interface {
	IsReady() bool
	Run(ctx context.Context)
}

// TaskFunc adapts a plain function to Task. It is always ready.
type TaskFunc func(ctx context.Context)

// IsReady always returns true.
func (f TaskFunc) IsReady() bool { return true }

// Run calls f(ctx).
func (f TaskFunc) Run(ctx context.Context) { f(ctx) }

// =============================================================================
// Conditional tasks
// =============================================================================

type conditionalTask struct {
	ready func() bool
	fn    TaskFunc
}

// When returns a task that runs fn once ready reports true.
// A nil ready predicate means the task is always ready.
func When(ready func() bool, fn TaskFunc) Task {
	return &conditionalTask{ready: ready, fn: fn}
}

func (t *conditionalTask) IsReady() bool {
	if t.ready == nil {
		return true
	}
	return t.ready()
}

func (t *conditionalTask) Run(ctx context.Context) {
	if t.fn != nil {
		t.fn(ctx)
	}
}

// After returns a task that becomes ready only when every dependency has
// finished running.
func After(fn TaskFunc, deps ...*TrackedTask) Task {
	deps = append([]*TrackedTask(nil), deps...)
	return When(func() bool {
		for _, d := range deps {
			if d != nil && !d.IsDone() {
				return false
			}
		}
		return true
	}, fn)
}

// =============================================================================
// Flag: a readiness source for "run when resource Y is available"
// =============================================================================

// Flag is a one-way boolean that tasks can gate on.
// The zero value is unset and ready to use.
type Flag struct {
	set atomic.Bool
}

// Set marks the flag. Setting it more than once is harmless.
func (f *Flag) Set() { f.set.Store(true) }

// IsSet reports whether Set has been called.
func (f *Flag) IsSet() bool { return f.set.Load() }

// Ready returns a predicate suitable for When.
func (f *Flag) Ready() func() bool { return f.IsSet }
