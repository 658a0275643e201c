package core

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// TaskID uniquely identifies a tracked task.
type TaskID uuid.UUID

// GenerateTaskID returns a new random TaskID.
func GenerateTaskID() TaskID {
	return TaskID(uuid.New())
}

// String returns the canonical UUID form.
func (id TaskID) String() string {
	return uuid.UUID(id).String()
}

// TaskState describes where a tracked task is in its lifecycle.
type TaskState int32

const (
	TaskStatePending TaskState = iota
	TaskStateRunning
	TaskStateDone
)

func (s TaskState) String() string {
	switch s {
	case TaskStatePending:
		return "pending"
	case TaskStateRunning:
		return "running"
	case TaskStateDone:
		return "done"
	default:
		return "unknown"
	}
}

// TrackedTask wraps a Task so producers can inspect it after submission.
//
// The producer keeps the *TrackedTask and submits it to the manager; both
// share it. Status methods are safe to call concurrently with Run.
type TrackedTask struct {
	id    TaskID
	name  string
	inner Task

	state    atomic.Int32
	runs     atomic.Int32
	done     chan struct{}
	doneOnce sync.Once
}

// Track wraps t with an ID and completion tracking.
func Track(t Task) *TrackedTask {
	return TrackNamed("", t)
}

// TrackNamed wraps t with a name used in execution history.
func TrackNamed(name string, t Task) *TrackedTask {
	if t == nil {
		panic("core: Track called with nil Task")
	}
	return &TrackedTask{
		id:    GenerateTaskID(),
		name:  name,
		inner: t,
		done:  make(chan struct{}),
	}
}

// ID returns the task's unique identifier.
func (t *TrackedTask) ID() TaskID { return t.id }

// Name returns the name given at construction, if any.
func (t *TrackedTask) Name() string { return t.name }

// IsReady delegates to the wrapped task.
func (t *TrackedTask) IsReady() bool { return t.inner.IsReady() }

// Run executes the wrapped task and marks the task done, even if it panics.
func (t *TrackedTask) Run(ctx context.Context) {
	t.runs.Add(1)
	t.state.Store(int32(TaskStateRunning))
	defer func() {
		t.state.Store(int32(TaskStateDone))
		t.doneOnce.Do(func() { close(t.done) })
	}()
	t.inner.Run(ctx)
}

// State returns the current lifecycle state.
func (t *TrackedTask) State() TaskState { return TaskState(t.state.Load()) }

// IsDone reports whether Run has returned.
func (t *TrackedTask) IsDone() bool { return t.State() == TaskStateDone }

// Runs returns how many times Run has been invoked.
func (t *TrackedTask) Runs() int { return int(t.runs.Load()) }

// Done returns a channel closed once Run has returned.
func (t *TrackedTask) Done() <-chan struct{} { return t.done }

// Wait blocks until the task has run or ctx is done.
func (t *TrackedTask) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
