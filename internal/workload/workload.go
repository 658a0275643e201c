// Package workload builds the demo task sets driven by the taskmanager CLI.
package workload

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Swind/go-task-manager/core"
)

// Spec describes a demo workload.
type Spec struct {
	// Tasks is the number of independent, always-ready tasks.
	Tasks int
	// Chain is the length of a dependency chain where each link runs After the previous one.
	Chain int
	// Work is how long each task sleeps to simulate work.
	Work time.Duration
}

// Result summarises a finished workload.
type Result struct {
	Submitted int
	Executed  int64
	Elapsed   time.Duration
	Stats     core.ManagerStats
}

// Workload is a set of tracked tasks ready to be submitted.
type Workload struct {
	tasks    []*core.TrackedTask
	executed atomic.Int64
}

// Build creates the tasks for spec. The chain is built in reverse submission
// order so that only readiness, not queue position, keeps it ordered.
func Build(spec Spec) (*Workload, error) {
	if spec.Tasks < 0 || spec.Chain < 0 {
		return nil, fmt.Errorf("workload: negative size (tasks=%d, chain=%d)", spec.Tasks, spec.Chain)
	}
	if spec.Tasks+spec.Chain == 0 {
		return nil, fmt.Errorf("workload: nothing to run")
	}

	w := &Workload{}
	// Work cut short by ctx does not count as executed.
	work := func(ctx context.Context) {
		if spec.Work > 0 {
			timer := time.NewTimer(spec.Work)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return
			}
		}
		w.executed.Add(1)
	}

	for i := 0; i < spec.Tasks; i++ {
		w.tasks = append(w.tasks, core.TrackNamed(fmt.Sprintf("task-%d", i), core.TaskFunc(work)))
	}

	chain := make([]*core.TrackedTask, spec.Chain)
	for i := range chain {
		var t core.Task = core.TaskFunc(work)
		if i > 0 {
			t = core.After(work, chain[i-1])
		}
		chain[i] = core.TrackNamed(fmt.Sprintf("chain-%d", i), t)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		w.tasks = append(w.tasks, chain[i])
	}

	return w, nil
}

// Tasks returns the tracked tasks in submission order.
func (w *Workload) Tasks() []*core.TrackedTask { return w.tasks }

// Executed returns how many tasks have completed their work.
func (w *Workload) Executed() int64 { return w.executed.Load() }

// Submit adds every task to m.
func (w *Workload) Submit(m *core.TaskManager) error {
	for _, t := range w.tasks {
		if err := m.AddTask(t); err != nil {
			return fmt.Errorf("submit %s: %w", t.Name(), err)
		}
	}
	return nil
}

// Wait blocks until every task has run or ctx is done.
func (w *Workload) Wait(ctx context.Context) error {
	for _, t := range w.tasks {
		if err := t.Wait(ctx); err != nil {
			return fmt.Errorf("wait for %s: %w", t.Name(), err)
		}
	}
	return nil
}

// Run submits the workload, drives m from its own goroutine, waits for every
// task, then stops and joins m.
func Run(ctx context.Context, m *core.TaskManager, spec Spec) (Result, error) {
	w, err := Build(spec)
	if err != nil {
		return Result{}, err
	}
	if err := w.Submit(m); err != nil {
		return Result{}, err
	}

	began := time.Now()
	startErr := make(chan error, 1)
	go func() { startErr <- m.Start(ctx) }()

	waitErr := w.Wait(ctx)
	m.Stop()
	m.Join()
	if err := <-startErr; err != nil && waitErr == nil {
		waitErr = err
	}

	res := Result{
		Submitted: len(w.tasks),
		Executed:  w.Executed(),
		Elapsed:   time.Since(began),
		Stats:     m.Stats(),
	}
	return res, waitErr
}
