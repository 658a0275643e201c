package taskmanager

import (
	"context"
	"sync"

	"github.com/Swind/go-task-manager/core"
)

// =============================================================================
// Global Task Manager Helper (Singleton)
// =============================================================================
//
// Components should prefer receiving a *core.TaskManager explicitly. The
// global manager exists for code that needs process-wide reach without
// threading the manager through every call site.

var (
	globalManager *core.TaskManager
	globalConfig  *core.TaskManagerConfig
	globalMu      sync.Mutex
)

// Instance returns the process-wide task manager, constructing it on first
// use. It is safe to call from any goroutine.
func Instance() *core.TaskManager {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager == nil {
		cfg := globalConfig
		if cfg == nil {
			cfg = core.DefaultTaskManagerConfig()
			cfg.Name = "global-task-manager"
		}
		globalManager = core.NewTaskManagerWithConfig(cfg)
	}
	return globalManager
}

// InitGlobalTaskManager configures the global manager with the given number
// of workers. It has no effect if the global manager already exists.
func InitGlobalTaskManager(workers int) {
	cfg := core.DefaultTaskManagerConfig()
	cfg.Name = "global-task-manager"
	cfg.Workers = workers
	InitGlobalTaskManagerWithConfig(cfg)
}

// InitGlobalTaskManagerWithConfig is like InitGlobalTaskManager with full
// configuration.
func InitGlobalTaskManagerWithConfig(cfg *core.TaskManagerConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalManager != nil {
		return // Already initialized
	}
	globalConfig = cfg
}

// StartGlobal starts the global manager in a new goroutine and returns a
// channel that receives Start's result once it returns.
func StartGlobal(ctx context.Context) <-chan error {
	m := Instance()
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.Start(ctx)
	}()
	return errCh
}

// AddTask submits t to the global manager.
func AddTask(t core.Task) error {
	return Instance().AddTask(t)
}

// StopGlobal requests shutdown of the global manager without waiting.
func StopGlobal() {
	globalMu.Lock()
	m := globalManager
	globalMu.Unlock()

	if m != nil {
		m.Stop()
	}
}

// ShutdownGlobalTaskManager stops and joins the global manager and discards
// it, so a later Instance call builds a fresh one.
func ShutdownGlobalTaskManager() {
	globalMu.Lock()
	m := globalManager
	globalManager = nil
	globalConfig = nil
	globalMu.Unlock()

	if m != nil {
		m.Close()
	}
}
