package core

import (
	"context"
	"runtime"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics during execution.
// This allows custom panic handling, logging, and recovery strategies.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The context the task was run with
	// - managerName: The name of the task manager whose worker ran the task
	// - workerID: The index of the worker goroutine
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, managerName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler reports panics through a Logger.
// A zero value logs with DefaultLogger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic value and stack trace at error level.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, managerName string, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("task panicked",
		F("manager", managerName),
		F("worker", workerID),
		F("panic", panicInfo),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting task execution metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast; they are called from worker
// goroutines and from AddTask.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	RecordTaskDuration(managerName string, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(managerName string, panicInfo any)

	// RecordQueueDepth records the current number of pending tasks.
	RecordQueueDepth(managerName string, depth int)

	// RecordTaskRejected records that a task was rejected or dropped
	// (e.g. submitted after stop, or evicted as expired).
	RecordTaskRejected(managerName string, reason string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(managerName string, duration time.Duration) {}
func (m *NilMetrics) RecordTaskPanic(managerName string, panicInfo any)             {}
func (m *NilMetrics) RecordQueueDepth(managerName string, depth int)                {}
func (m *NilMetrics) RecordTaskRejected(managerName string, reason string)          {}

// =============================================================================
// RejectedTaskHandler: Interface for handling rejected tasks
// =============================================================================

// Rejection reasons passed to RejectedTaskHandler and Metrics.
const (
	RejectReasonStopped = "stopped"
	RejectReasonExpired = "expired"
)

// RejectedTaskHandler is called when a task will never run. This happens when:
// - The task is submitted after Stop
// - The task sat in the queue past MaxPendingAge and was evicted
//
// Implementations should be thread-safe as they may be called concurrently.
type RejectedTaskHandler interface {
	HandleRejectedTask(managerName string, reason string)
}

// DefaultRejectedTaskHandler logs rejected tasks at warn level.
type DefaultRejectedTaskHandler struct {
	Logger Logger
}

// HandleRejectedTask logs the rejected task.
func (h *DefaultRejectedTaskHandler) HandleRejectedTask(managerName string, reason string) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Warn("task rejected", F("manager", managerName), F("reason", reason))
}

// =============================================================================
// TaskManagerConfig: Configuration for TaskManager
// =============================================================================

const (
	// DefaultWorkerCount is used when hardware concurrency cannot be detected.
	DefaultWorkerCount = 4

	// DefaultRecheckInterval bounds how long an idle worker waits before
	// re-scanning for tasks whose readiness changed without a Notify.
	DefaultRecheckInterval = 10 * time.Millisecond

	defaultManagerName = "task-manager"
)

// TaskManagerConfig holds configuration options for TaskManager.
// All fields are optional; zero values are replaced with defaults.
type TaskManagerConfig struct {
	// Name identifies the manager in logs and metrics. Defaults to "task-manager".
	Name string

	// Workers is the number of worker goroutines. Values < 1 mean
	// DetectWorkerCount().
	Workers int

	// RecheckInterval is the idle re-scan period. Defaults to DefaultRecheckInterval.
	RecheckInterval time.Duration

	// MaxPendingAge evicts tasks pending for longer than this. 0 disables eviction.
	MaxPendingAge time.Duration

	// HistoryCapacity is the number of execution records kept. Defaults to 100.
	HistoryCapacity int

	// PanicHandler is called when a task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record task execution metrics. Defaults to NilMetrics.
	Metrics Metrics

	// RejectedTaskHandler is called when a task is rejected. Defaults to DefaultRejectedTaskHandler.
	RejectedTaskHandler RejectedTaskHandler

	// Logger receives lifecycle logs. Defaults to DefaultLogger.
	Logger Logger
}

// DefaultTaskManagerConfig returns a config with default handlers.
func DefaultTaskManagerConfig() *TaskManagerConfig {
	logger := NewDefaultLogger()
	return &TaskManagerConfig{
		Name:                defaultManagerName,
		Workers:             DetectWorkerCount(),
		RecheckInterval:     DefaultRecheckInterval,
		HistoryCapacity:     defaultTaskHistoryCapacity,
		PanicHandler:        &DefaultPanicHandler{Logger: logger},
		Metrics:             &NilMetrics{},
		RejectedTaskHandler: &DefaultRejectedTaskHandler{Logger: logger},
		Logger:              logger,
	}
}

// withDefaults returns a copy of c with every unset field filled in.
func (c *TaskManagerConfig) withDefaults() TaskManagerConfig {
	var out TaskManagerConfig
	if c != nil {
		out = *c
	}
	if out.Name == "" {
		out.Name = defaultManagerName
	}
	if out.Workers < 1 {
		out.Workers = DetectWorkerCount()
	}
	if out.RecheckInterval <= 0 {
		out.RecheckInterval = DefaultRecheckInterval
	}
	if out.MaxPendingAge < 0 {
		out.MaxPendingAge = 0
	}
	if out.HistoryCapacity < 1 {
		out.HistoryCapacity = defaultTaskHistoryCapacity
	}
	if out.Logger == nil {
		out.Logger = NewDefaultLogger()
	}
	if out.PanicHandler == nil {
		out.PanicHandler = &DefaultPanicHandler{Logger: out.Logger}
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.RejectedTaskHandler == nil {
		out.RejectedTaskHandler = &DefaultRejectedTaskHandler{Logger: out.Logger}
	}
	return out
}

// DetectWorkerCount returns the hardware concurrency, or DefaultWorkerCount
// if it cannot be determined.
func DetectWorkerCount() int {
	return workerCountFrom(runtime.NumCPU())
}

func workerCountFrom(detected int) int {
	if detected < 1 {
		return DefaultWorkerCount
	}
	return detected
}
