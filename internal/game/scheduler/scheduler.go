// Package scheduler runs deferred engine actions at their due time, with
// a per-tick cap so a burst of due work cannot stall the tick.
package scheduler

import (
	"container/heap"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrCancelled aborts the current run and propagates to the caller.
// Any other action error is logged and the run continues.
var ErrCancelled = errors.New("scheduler: run cancelled")

// Action is a deferred unit of engine work. Actions run on the engine
// worker and must not block.
type Action func() error

type entry struct {
	dueAt time.Time
	seq   uint64
	name  string
	fn    Action
}

// entryHeap is a min-heap by due time, sequence-ordered within a tick.
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].dueAt.Equal(h[j].dueAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].dueAt.Before(h[j].dueAt)
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(*entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Scheduler holds the pending actions. Not safe for concurrent use; it is
// owned by the engine worker.
type Scheduler struct {
	future entryHeap
	due    entryHeap
	seq    uint64
	logger *zap.Logger
}

// New creates an empty Scheduler.
//
// Precondition: logger must be non-nil.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// ScheduleAt enqueues fn to run once now reaches dueAt.
//
// Precondition: fn must be non-nil. name identifies the action in logs.
func (s *Scheduler) ScheduleAt(dueAt time.Time, name string, fn Action) {
	s.seq++
	heap.Push(&s.future, &entry{dueAt: dueAt, seq: s.seq, name: name, fn: fn})
}

// ScheduleIn enqueues fn to run after delay from now.
func (s *Scheduler) ScheduleIn(now time.Time, delay time.Duration, name string, fn Action) {
	s.ScheduleAt(now.Add(delay), name, fn)
}

// RunDue moves due actions out of the future queue and runs up to
// maxActions of them.
//
// Postcondition: Returns how many actions ran and how many due actions
// were left for the next tick. Returns ErrCancelled if an action
// cancelled the run; the remaining due actions stay queued.
func (s *Scheduler) RunDue(now time.Time, maxActions int) (ran, overdue int, err error) {
	for s.future.Len() > 0 && !s.future[0].dueAt.After(now) {
		heap.Push(&s.due, heap.Pop(&s.future))
	}

	for s.due.Len() > 0 && ran < maxActions {
		e := heap.Pop(&s.due).(*entry)
		ran++
		if runErr := s.runOne(e); runErr != nil {
			return ran, s.due.Len(), runErr
		}
	}
	return ran, s.due.Len(), nil
}

func (s *Scheduler) runOne(e *entry) error {
	if err := e.fn(); err != nil {
		if errors.Is(err, ErrCancelled) {
			return fmt.Errorf("action %q: %w", e.name, err)
		}
		s.logger.Warn("scheduled action failed",
			zap.String("action", e.name),
			zap.Error(err))
	}
	return nil
}

// Len returns the number of pending actions, due and future combined.
func (s *Scheduler) Len() int {
	return s.future.Len() + s.due.Len()
}
