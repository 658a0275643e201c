package core

import "time"

// TaskExecutionRecord captures a completed task execution event.
type TaskExecutionRecord struct {
	Name       string
	Manager    string
	WorkerID   int
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Panicked   bool
}

// ManagerStats represents runtime observability state for a task manager.
type ManagerStats struct {
	Name     string
	State    ManagerState
	Workers  int
	Pending  int
	Active   int
	Executed int64
	Panicked int64
	Rejected int64
	Evicted  int64
}

// Running reports whether the manager is dispatching tasks.
func (s ManagerStats) Running() bool {
	return s.State == ManagerRunning
}
