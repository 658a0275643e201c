package core

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrNilTask is returned by AddTask when given a nil task.
	ErrNilTask = errors.New("taskmanager: nil task")

	// ErrAlreadyStarted is returned by Start when the manager is already running.
	ErrAlreadyStarted = errors.New("taskmanager: already started")

	// ErrStopped is returned by Start and AddTask once Stop has been called.
	ErrStopped = errors.New("taskmanager: stopped")
)

// ManagerState is the lifecycle state of a TaskManager.
type ManagerState int32

const (
	ManagerNotStarted ManagerState = iota
	ManagerRunning
	ManagerStopping
	ManagerJoined
)

func (s ManagerState) String() string {
	switch s {
	case ManagerNotStarted:
		return "not_started"
	case ManagerRunning:
		return "running"
	case ManagerStopping:
		return "stopping"
	case ManagerJoined:
		return "joined"
	default:
		return "unknown"
	}
}

// TaskManager owns a fixed pool of worker goroutines that share one pending
// queue. Each idle worker claims the earliest-submitted task whose IsReady
// reports true and runs it synchronously.
//
// Lifecycle: NotStarted -> Running (Start) -> Stopping (Stop) -> Joined (Join).
// There is no way back to Running.
type TaskManager struct {
	name            string
	workers         int
	recheckInterval time.Duration
	maxPendingAge   time.Duration

	queue  *PendingQueue
	signal chan struct{}

	state    atomic.Int32 // ManagerState
	startMu  sync.RWMutex // held for writing by Start and Stop, for reading by AddTask
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	active   atomic.Int32
	executed atomic.Int64
	panicked atomic.Int64
	rejected atomic.Int64
	evicted  atomic.Int64

	history *ringBuffer[TaskExecutionRecord]

	panicHandler        PanicHandler
	metrics             Metrics
	rejectedTaskHandler RejectedTaskHandler
	logger              Logger
}

// NewTaskManager creates a manager with the given worker count and default
// handlers. workers < 1 means one worker per detected CPU.
func NewTaskManager(workers int) *TaskManager {
	cfg := DefaultTaskManagerConfig()
	cfg.Workers = workers
	return NewTaskManagerWithConfig(cfg)
}

// NewTaskManagerWithConfig creates a manager from config. A nil config is
// equivalent to DefaultTaskManagerConfig().
func NewTaskManagerWithConfig(config *TaskManagerConfig) *TaskManager {
	cfg := config.withDefaults()

	return &TaskManager{
		name:                cfg.Name,
		workers:             cfg.Workers,
		recheckInterval:     cfg.RecheckInterval,
		maxPendingAge:       cfg.MaxPendingAge,
		queue:               NewPendingQueue(),
		signal:              make(chan struct{}, cfg.Workers*2),
		stopCh:              make(chan struct{}),
		history:             newRingBuffer[TaskExecutionRecord](cfg.HistoryCapacity),
		panicHandler:        cfg.PanicHandler,
		metrics:             cfg.Metrics,
		rejectedTaskHandler: cfg.RejectedTaskHandler,
		logger:              cfg.Logger,
	}
}

// Name returns the manager name used in logs and metrics.
func (m *TaskManager) Name() string { return m.name }

// AvailableThreads returns the configured worker count.
func (m *TaskManager) AvailableThreads() int { return m.workers }

// State returns the current lifecycle state.
func (m *TaskManager) State() ManagerState { return ManagerState(m.state.Load()) }

// IsRunning reports whether workers are dispatching tasks.
func (m *TaskManager) IsRunning() bool { return m.State() == ManagerRunning }

// Start spawns the workers and blocks until Stop is called or ctx is done.
// ctx is also the context passed to every task's Run. Once ctx is done,
// workers claim no further tasks.
//
// Start must be called from a dedicated goroutine, never from inside a task.
// It returns nil after Stop, ctx.Err() if ctx ended first, ErrAlreadyStarted
// if the manager is running, and ErrStopped if it was stopped before.
func (m *TaskManager) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m.startMu.Lock()
	if !m.state.CompareAndSwap(int32(ManagerNotStarted), int32(ManagerRunning)) {
		m.startMu.Unlock()
		if m.State() == ManagerRunning {
			return ErrAlreadyStarted
		}
		return ErrStopped
	}

	for i := 0; i < m.workers; i++ {
		m.wg.Add(1)
		go m.workerLoop(ctx, i)
	}
	if m.maxPendingAge > 0 {
		m.wg.Add(1)
		go m.evictLoop()
	}
	m.startMu.Unlock()

	m.logger.Info("task manager started", F("manager", m.name), F("workers", m.workers))

	select {
	case <-m.stopCh:
		return nil
	case <-ctx.Done():
		m.Stop()
		return ctx.Err()
	}
}

// Stop requests shutdown. Workers finish the task they are running and then
// exit; tasks still queued are not run. Stop does not wait; use Join.
// Stop is idempotent and may be called before Start.
func (m *TaskManager) Stop() {
	m.stopOnce.Do(func() {
		m.startMu.Lock()
		prev := ManagerState(m.state.Swap(int32(ManagerStopping)))
		close(m.stopCh)
		m.startMu.Unlock()

		m.logger.Info("task manager stopping",
			F("manager", m.name),
			F("previous_state", prev.String()),
			F("pending", m.queue.Len()),
		)
	})
}

// Join waits for every worker to exit. It only returns once Stop has been
// called, or immediately if Start never ran. Join must not race with Start.
//
// A task that never returns keeps its worker, and therefore Join, blocked.
func (m *TaskManager) Join() {
	if m.State() == ManagerNotStarted {
		return
	}
	m.wg.Wait()
	if m.state.CompareAndSwap(int32(ManagerStopping), int32(ManagerJoined)) {
		m.logger.Info("task manager joined", F("manager", m.name), F("executed", m.executed.Load()))
	}
}

// Close stops the manager, waits for the workers and discards queued tasks.
func (m *TaskManager) Close() {
	m.Stop()
	m.Join()
	if dropped := m.queue.Clear(); dropped > 0 {
		m.logger.Debug("discarded pending tasks", F("manager", m.name), F("count", dropped))
		m.metrics.RecordQueueDepth(m.name, 0)
	}
}

// AddTask appends t to the pending queue. The queue is unbounded.
// It returns ErrNilTask for a nil task and ErrStopped after Stop.
func (m *TaskManager) AddTask(t Task) error {
	if t == nil {
		return ErrNilTask
	}
	// The state check and the push must not straddle a Stop, or a task could
	// be queued after Close has cleared the queue.
	m.startMu.RLock()
	if m.State() >= ManagerStopping {
		m.startMu.RUnlock()
		m.reject(RejectReasonStopped)
		return ErrStopped
	}
	m.queue.Push(t)
	m.startMu.RUnlock()

	m.metrics.RecordQueueDepth(m.name, m.queue.Len())
	m.wake(1)
	return nil
}

// TryGetTask removes and returns the earliest-submitted task that is ready,
// or false if none is. The caller becomes responsible for running it.
func (m *TaskManager) TryGetTask() (Task, bool) {
	return m.queue.TryPopReady()
}

// Notify wakes idle workers to re-scan the queue. Call it after changing
// state that a queued task's IsReady depends on. Without it, the change is
// noticed within the recheck interval.
func (m *TaskManager) Notify() {
	m.wake(m.workers)
}

func (m *TaskManager) wake(n int) {
	for i := 0; i < n; i++ {
		select {
		case m.signal <- struct{}{}:
		default:
			// Signal channel full; enough workers are already awake.
			return
		}
	}
}

// workerLoop is the main loop for each worker
func (m *TaskManager) workerLoop(ctx context.Context, id int) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.recheckInterval)
	defer ticker.Stop()

	for m.IsRunning() && ctx.Err() == nil {
		if task, ok := m.TryGetTask(); ok {
			m.metrics.RecordQueueDepth(m.name, m.queue.Len())
			m.runTask(ctx, id, task)
			// A finished task may have made others ready.
			m.wake(1)
			continue
		}

		select {
		case <-m.signal:
		case <-ticker.C:
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *TaskManager) runTask(ctx context.Context, workerID int, task Task) {
	m.active.Add(1)
	startedAt := time.Now()
	panicked := false

	defer func() {
		if r := recover(); r != nil {
			panicked = true
			m.panicked.Add(1)
			m.panicHandler.HandlePanic(ctx, m.name, workerID, r, debug.Stack())
			m.metrics.RecordTaskPanic(m.name, r)
		}

		finishedAt := time.Now()
		duration := finishedAt.Sub(startedAt)
		m.history.Push(TaskExecutionRecord{
			Name:       resolveTaskName(task),
			Manager:    m.name,
			WorkerID:   workerID,
			StartedAt:  startedAt,
			FinishedAt: finishedAt,
			Duration:   duration,
			Panicked:   panicked,
		})
		m.metrics.RecordTaskDuration(m.name, duration)
		m.executed.Add(1)
		m.active.Add(-1)
	}()

	task.Run(ctx)
}

// evictLoop drops tasks that have waited longer than maxPendingAge.
func (m *TaskManager) evictLoop() {
	defer m.wg.Done()

	interval := max(m.maxPendingAge/2, time.Millisecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			expired := m.queue.EvictOlderThan(m.maxPendingAge)
			if len(expired) == 0 {
				continue
			}
			m.evicted.Add(int64(len(expired)))
			m.logger.Warn("evicted expired tasks",
				F("manager", m.name),
				F("count", len(expired)),
				F("max_pending_age", m.maxPendingAge),
			)
			for range expired {
				m.reject(RejectReasonExpired)
			}
			m.metrics.RecordQueueDepth(m.name, m.queue.Len())
		}
	}
}

func (m *TaskManager) reject(reason string) {
	m.rejected.Add(1)
	m.rejectedTaskHandler.HandleRejectedTask(m.name, reason)
	m.metrics.RecordTaskRejected(m.name, reason)
}

// PendingTaskCount returns the number of queued tasks, ready or not.
func (m *TaskManager) PendingTaskCount() int { return m.queue.Len() }

// ActiveTaskCount returns the number of tasks currently running.
func (m *TaskManager) ActiveTaskCount() int { return int(m.active.Load()) }

// ExecutedTaskCount returns the number of tasks that have finished running,
// including those that panicked.
func (m *TaskManager) ExecutedTaskCount() int64 { return m.executed.Load() }

// Stats returns current observability data for this manager.
func (m *TaskManager) Stats() ManagerStats {
	return ManagerStats{
		Name:     m.name,
		State:    m.State(),
		Workers:  m.workers,
		Pending:  m.PendingTaskCount(),
		Active:   m.ActiveTaskCount(),
		Executed: m.executed.Load(),
		Panicked: m.panicked.Load(),
		Rejected: m.rejected.Load(),
		Evicted:  m.evicted.Load(),
	}
}

// RecentExecutions returns up to limit execution records, newest first.
// limit <= 0 returns all retained records.
func (m *TaskManager) RecentExecutions(limit int) []TaskExecutionRecord {
	return m.history.Newest(limit)
}

// LastExecution returns the most recent execution record.
func (m *TaskManager) LastExecution() (TaskExecutionRecord, bool) {
	recent := m.history.Newest(1)
	if len(recent) == 0 {
		return TaskExecutionRecord{}, false
	}
	return recent[0], true
}
