// Package sched provides the cooperative task scheduler that drives
// emulator time forward. One task queue of runnable tasks and one timer
// heap keyed by absolute millisecond deadlines; the host event loop calls
// Tick between frames to advance both.
package sched

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrShutdown is returned by futures (Sleep, Yield) that were pending when
// the scheduler was shut down.
var ErrShutdown = fmt.Errorf("sched: scheduler shutdown")

type suspendKind int

const (
	suspendYield suspendKind = iota
	suspendSleep
	suspendDone
)

type suspension struct {
	kind     suspendKind
	deadline uint64
	err      error
}

// Task is the handle a running task body uses to cooperate with the
// scheduler. It is never shared across goroutines.
type Task struct {
	ID uuid.UUID

	resume    chan struct{}
	suspended chan suspension
	seq       uint64
}

// Yield suspends the task until the next Tick call.
func (t *Task) Yield() error {
	t.suspended <- suspension{kind: suspendYield}
	_, ok := <-t.resume
	if !ok {
		return ErrShutdown
	}
	return nil
}

// Sleep suspends the task until wall time reaches untilMs.
func (t *Task) Sleep(untilMs uint64) error {
	t.suspended <- suspension{kind: suspendSleep, deadline: untilMs}
	_, ok := <-t.resume
	if !ok {
		return ErrShutdown
	}
	return nil
}

// TaskFunc is the body of a spawned task.
type TaskFunc func(t *Task) error

type timerEntry struct {
	deadline uint64
	seq      uint64
	task     *Task
}

type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].deadline != h[j].deadline {
		return h[i].deadline < h[j].deadline
	}
	return h[i].seq < h[j].seq
}
func (h timerHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)        { *h = append(*h, x.(*timerEntry)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Scheduler is the single-threaded cooperative task runner described in
// spec §4.D. All methods are intended to be called from one goroutine (the
// host event loop); task bodies call back into Task.Sleep/Task.Yield from
// whatever goroutine they were spawned on, but only one task is ever
// runnable at a time: Tick hands out and waits for the resume token
// sequentially.
type Scheduler struct {
	mu       sync.Mutex
	now      uint64
	runnable []*Task
	timers   timerHeap
	seq      uint64
	shutdown bool
}

// New creates a scheduler with its virtual clock at 0.
func New() *Scheduler {
	return &Scheduler{}
}

// Now returns the scheduler's current virtual time in milliseconds.
func (s *Scheduler) Now() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Spawn enqueues an independent top-level task. Per spec §5, the task does
// not start running until the scheduler's next Tick.
func (s *Scheduler) Spawn(fn TaskFunc) *Task {
	s.mu.Lock()
	s.seq++
	t := &Task{
		ID:        uuid.New(),
		resume:    make(chan struct{}),
		suspended: make(chan suspension),
		seq:       s.seq,
	}
	s.runnable = append(s.runnable, t)
	s.mu.Unlock()

	go func() {
		_, ok := <-t.resume
		if !ok {
			return
		}
		err := fn(t)
		t.suspended <- suspension{kind: suspendDone, err: err}
	}()

	return t
}

// Tick advances the scheduler's virtual clock to nowMs and runs one round:
// (a) moves due timers into the runnable queue in deadline order (ties by
// insertion order), (b) polls runnable tasks round-robin until each yields,
// sleeps, or completes. Tasks re-enqueued by a yield/spawn during this round
// run on the next Tick, not this one.
func (s *Scheduler) Tick(nowMs uint64) {
	s.mu.Lock()
	s.now = nowMs

	var due []*Task
	for s.timers.Len() > 0 && s.timers[0].deadline <= nowMs {
		entry := heap.Pop(&s.timers).(*timerEntry)
		due = append(due, entry.task)
	}

	batch := append(due, s.runnable...)
	s.runnable = nil
	s.mu.Unlock()

	for _, t := range batch {
		t.resume <- struct{}{}
		sus := <-t.suspended

		switch sus.kind {
		case suspendYield:
			s.mu.Lock()
			s.runnable = append(s.runnable, t)
			s.mu.Unlock()
		case suspendSleep:
			s.mu.Lock()
			s.seq++
			heap.Push(&s.timers, &timerEntry{deadline: sus.deadline, seq: s.seq, task: t})
			s.mu.Unlock()
		case suspendDone:
			// task finished; nothing to requeue.
		}
	}
}

// Shutdown breaks every pending task out of Sleep/Yield with ErrShutdown.
// In-flight tasks are dropped, per spec §5.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown {
		return
	}
	s.shutdown = true

	for _, t := range s.runnable {
		close(t.resume)
	}
	for _, entry := range s.timers {
		close(entry.task.resume)
	}
	s.runnable = nil
	s.timers = nil
}

// Pending reports the number of tasks awaiting a future Tick (runnable or
// asleep). Useful for driver loops deciding whether to keep pumping.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runnable) + len(s.timers)
}
