package taskmanager

import "github.com/Swind/go-task-manager/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the taskmanager package for most use cases.

// Task is a unit of deferred, possibly conditional work
type Task = core.Task

// TaskFunc adapts a function to an always-ready Task
type TaskFunc = core.TaskFunc

// TrackedTask lets a producer inspect a task after submitting it
type TrackedTask = core.TrackedTask

// TaskManager owns the worker pool and the pending queue
type TaskManager = core.TaskManager

// TaskManagerConfig configures a TaskManager
type TaskManagerConfig = core.TaskManagerConfig

// Flag is a one-way readiness source
type Flag = core.Flag

// Convenience constructors
var (
	NewTaskManager           = core.NewTaskManager
	NewTaskManagerWithConfig = core.NewTaskManagerWithConfig
	DefaultTaskManagerConfig = core.DefaultTaskManagerConfig
	When                     = core.When
	After                    = core.After
	Track                    = core.Track
	TrackNamed               = core.TrackNamed
)

// Errors
var (
	ErrNilTask        = core.ErrNilTask
	ErrAlreadyStarted = core.ErrAlreadyStarted
	ErrStopped        = core.ErrStopped
)
