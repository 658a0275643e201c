// Package taskmanager provides a process-wide pool of worker goroutines that
// runs conditionally-ready tasks.
//
// A task is anything with IsReady and Run. Producers submit tasks to a
// TaskManager; idle workers scan the pending queue in submission order and
// claim the first task whose IsReady reports true. Tasks that are not ready
// stay queued and are re-examined on later passes, so they never block ready
// tasks submitted after them.
//
// # Quick Start
//
//	m := taskmanager.NewTaskManager(4)
//	go m.Start(context.Background()) // blocks until Stop
//
//	loaded := taskmanager.Track(taskmanager.TaskFunc(func(ctx context.Context) {
//		loadCompounds()
//	}))
//	_ = m.AddTask(loaded)
//	_ = m.AddTask(taskmanager.After(func(ctx context.Context) {
//		spawnCells()
//	}, loaded))
//
//	...
//	m.Stop()
//	m.Join()
//
// # Key Concepts
//
// Readiness: IsReady must be cheap and free of side effects; it runs under the
// queue lock. When state a predicate depends on changes, call Notify so idle
// workers re-scan at once; otherwise they notice within RecheckInterval.
//
// Execution: Run is called at most once per submission, on one worker. A panic
// inside Run is recovered, reported to the PanicHandler and Metrics, and the
// worker moves on. Tasks are never retried.
//
// Shutdown: Stop stops new claims. Tasks already running finish; queued tasks
// are abandoned. Join waits for the workers. A task that never returns keeps
// Join blocked.
//
// # Global Manager
//
// Instance returns a lazily constructed process-wide manager. Prefer passing
// a *TaskManager explicitly; the global exists for code that cannot.
package taskmanager
