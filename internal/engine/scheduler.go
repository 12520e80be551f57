// Package engine provides the discrete-event scheduler that drives the trade
// simulation forward.
//
// The scheduler is logically single-threaded: exactly one action runs at a
// time, and an action that needs to "wait" schedules a new event for a later
// simulated time and returns. Events are totally ordered by
// (time, priority, sequence), which makes a run reproducible for a fixed
// random-draw stream.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zyedidia/generic/heap"
)

// Event priorities. Lower values run first among events at the same time.
const (
	PriorityEarly  int16 = -100
	PriorityNormal int16 = 0
	PriorityLate   int16 = 100
)

var (
	// ErrPastTime is returned when an event is scheduled before the current time.
	ErrPastTime = errors.New("engine: cannot schedule in the past")
	// ErrNegativeDelay is returned by ScheduleAfter for a delay below zero.
	ErrNegativeDelay = errors.New("engine: negative delay")
	// ErrNilAction is returned when an event has no action to run.
	ErrNilAction = errors.New("engine: nil action")
	// ErrNotPending is returned when cancelling an event that already fired
	// or was already cancelled.
	ErrNotPending = errors.New("engine: event is not pending")
)

type eventState uint8

const (
	statePending eventState = iota
	stateExecuted
	stateCancelled
)

// Event is one scheduled action. The pointer returned by the Schedule
// methods doubles as the handle used for cancellation.
type Event struct {
	time     Time
	priority int16
	seq      uint64
	name     string
	action   func()
	state    eventState
}

// Time returns the simulated time the event fires at.
func (e *Event) Time() Time { return e.time }

// Priority returns the event priority.
func (e *Event) Priority() int16 { return e.priority }

// Seq returns the insertion sequence number used as the final tie-breaker.
func (e *Event) Seq() uint64 { return e.seq }

// Name returns the descriptive name given at scheduling time.
func (e *Event) Name() string { return e.name }

// Pending reports whether the event is still waiting to fire.
func (e *Event) Pending() bool { return e.state == statePending }

// eventLess orders events by (time, priority, sequence) ascending.
func eventLess(a, b *Event) bool {
	if a.time != b.time {
		return a.time < b.time
	}
	if a.priority != b.priority {
		return a.priority < b.priority
	}
	return a.seq < b.seq
}

// Scheduler maintains simulated time and the pending event queue.
// It is not goroutine-safe; see Runner for shared access.
type Scheduler struct {
	now      Time
	start    time.Time
	queue    *heap.Heap[*Event]
	seq      uint64
	pending  int
	executed uint64
}

// NewScheduler creates a scheduler whose time zero corresponds to the
// calendar instant start.
func NewScheduler(start time.Time) *Scheduler {
	return &Scheduler{
		start: start,
		queue: heap.New(eventLess),
	}
}

// Now returns the current simulated time.
func (s *Scheduler) Now() Time { return s.now }

// AbsStartTime returns the calendar instant of simulated time zero.
func (s *Scheduler) AbsStartTime() time.Time { return s.start }

// Date converts a simulated time into a calendar time.
func (s *Scheduler) Date(t Time) time.Time {
	return s.start.Add(time.Duration(t))
}

// Pending returns the number of events still waiting to fire.
func (s *Scheduler) Pending() int { return s.pending }

// Executed returns the number of events that have fired so far.
func (s *Scheduler) Executed() uint64 { return s.executed }

// ScheduleAt schedules action to run at the absolute simulated time at.
func (s *Scheduler) ScheduleAt(at Time, priority int16, name string, action func()) (*Event, error) {
	if action == nil {
		return nil, fmt.Errorf("schedule %q: %w", name, ErrNilAction)
	}
	if at < s.now {
		return nil, fmt.Errorf("schedule %q at %s (now %s): %w", name, at, s.now, ErrPastTime)
	}
	s.seq++
	ev := &Event{
		time:     at,
		priority: priority,
		seq:      s.seq,
		name:     name,
		action:   action,
	}
	s.queue.Push(ev)
	s.pending++
	return ev, nil
}

// ScheduleAfter schedules action to run delay after the current time with
// normal priority. A zero delay still defers the action until the current
// one has returned.
func (s *Scheduler) ScheduleAfter(delay time.Duration, name string, action func()) (*Event, error) {
	if delay < 0 {
		return nil, fmt.Errorf("schedule %q after %s: %w", name, delay, ErrNegativeDelay)
	}
	return s.ScheduleAt(s.now.Add(delay), PriorityNormal, name, action)
}

// Cancel removes a pending event from the queue. Cancelling an event that
// already fired or was already cancelled returns ErrNotPending.
func (s *Scheduler) Cancel(ev *Event) error {
	if ev == nil || ev.state != statePending {
		return ErrNotPending
	}
	// Cancelled events stay in the heap and are skipped when they surface.
	ev.state = stateCancelled
	ev.action = nil
	s.pending--
	return nil
}

// next returns the lowest-ordered pending event without removing it.
func (s *Scheduler) next() (*Event, bool) {
	for {
		ev, ok := s.queue.Peek()
		if !ok {
			return nil, false
		}
		if ev.state == statePending {
			return ev, true
		}
		s.queue.Pop()
	}
}

// NextTime returns the time of the next pending event, if any.
func (s *Scheduler) NextTime() (Time, bool) {
	ev, ok := s.next()
	if !ok {
		return 0, false
	}
	return ev.time, true
}

// Advance pops and executes the lowest-ordered pending event, moving the
// clock to its time. It returns false when no event is pending.
func (s *Scheduler) Advance() bool {
	ev, ok := s.next()
	if !ok {
		return false
	}
	s.queue.Pop()
	s.pending--
	s.now = ev.time
	ev.state = stateExecuted
	action := ev.action
	ev.action = nil
	s.executed++
	action()
	return true
}

// RunUntil executes every event whose time is at or before until, then
// moves the clock to until.
func (s *Scheduler) RunUntil(until Time) error {
	if until < s.now {
		return fmt.Errorf("run until %s (now %s): %w", until, s.now, ErrPastTime)
	}
	for {
		t, ok := s.NextTime()
		if !ok || t > until {
			break
		}
		s.Advance()
	}
	s.now = until
	return nil
}

// Run executes events until the queue is empty or ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			slog.Debug("scheduler interrupted", "now", s.now, "pending", s.pending)
			return err
		}
		if !s.Advance() {
			return nil
		}
	}
}
