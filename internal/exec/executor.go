// Package exec implements the Main-thread Executor (C11): a single-reader
// FIFO that lets I/O goroutines post work onto the simulation goroutine
// instead of touching main-thread-only state (the scene graph) directly.
//
// Grounded on original_source/.../Thread/MainThreadExecutor.hpp:
// EnqueueTask(holder, task) is idempotent when holder is non-nil (a second
// enqueue under the same holder is dropped while one is pending); Execute
// swaps the queue under lock and runs tasks outside the lock so a task can
// itself enqueue more work without deadlocking.
package exec

import "sync"

// Task is a unit of work run on the simulation goroutine.
type Task func()

type item struct {
	holder any
	task   Task
}

// Executor is the single-reader FIFO. The zero value is not usable; use New.
type Executor struct {
	mu      sync.Mutex
	tasks   []item
	pending map[any]struct{}
}

// New returns an empty Executor.
func New() *Executor {
	return &Executor{pending: make(map[any]struct{})}
}

// Enqueue appends task to the queue. If holder is non-nil and a task is
// already pending under that holder, the new task is dropped — this is how
// the Sender coalesces repeated flush requests into a single pending flush
// (spec.md §4.8 "Scheduling").
func (e *Executor) Enqueue(holder any, task Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if holder != nil {
		if _, exists := e.pending[holder]; exists {
			return
		}
		e.pending[holder] = struct{}{}
	}
	e.tasks = append(e.tasks, item{holder: holder, task: task})
}

// Cancel removes every pending task enqueued under holder.
func (e *Executor) Cancel(holder any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pending, holder)
	kept := e.tasks[:0]
	for _, it := range e.tasks {
		if it.holder == holder {
			continue
		}
		kept = append(kept, it)
	}
	e.tasks = kept
}

// Execute drains and runs every pending task, in FIFO order. The queue is
// swapped out under the lock so tasks run without holding it — a task may
// safely call Enqueue or Cancel.
func (e *Executor) Execute() {
	e.mu.Lock()
	local := e.tasks
	e.tasks = nil
	e.mu.Unlock()

	for _, it := range local {
		if it.holder != nil {
			e.mu.Lock()
			delete(e.pending, it.holder)
			e.mu.Unlock()
		}
		it.task()
	}
}
