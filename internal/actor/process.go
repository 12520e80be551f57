package actor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/tradesim/internal/engine"
)

// minInterval replaces non-positive interval draws so a process cannot spin
// at a single instant.
const minInterval = time.Minute

// Process is an autonomous, self-rescheduling activity of a role, such as
// interest accrual or restocking checks.
type Process struct {
	name     string
	interval func() time.Duration
	first    time.Duration
	run      func()
	role     *Role
	next     *engine.Event
	runs     uint64
	stopped  bool
}

// NewProcess creates a process that calls run, then waits for a freshly
// drawn interval before running again.
func NewProcess(name string, interval func() time.Duration, run func()) (*Process, error) {
	if interval == nil || run == nil {
		return nil, fmt.Errorf("process %s: %w", name, engine.ErrNilAction)
	}
	return &Process{name: name, interval: interval, first: -1, run: run}, nil
}

// Every is a fixed-interval interval source.
func Every(d time.Duration) func() time.Duration {
	return func() time.Duration { return d }
}

// StartAfter sets the delay before the first run. By default the first run
// happens one drawn interval after start.
func (p *Process) StartAfter(d time.Duration) *Process {
	p.first = d
	return p
}

// Name returns the process name.
func (p *Process) Name() string { return p.name }

// Runs returns how many times the process ran.
func (p *Process) Runs() uint64 { return p.runs }

// Stop cancels the next run.
func (p *Process) Stop() {
	p.stopped = true
	if p.next != nil && p.next.Pending() {
		_ = p.role.actor.model.sched.Cancel(p.next)
	}
}

func (p *Process) start() error {
	if p.role == nil || p.role.actor == nil {
		return errors.New("actor: process not attached to an actor")
	}
	if p.next != nil {
		return nil
	}
	delay := p.first
	if delay < 0 {
		delay = p.draw()
	}
	return p.schedule(delay)
}

func (p *Process) draw() time.Duration {
	d := p.interval()
	if d <= 0 {
		return minInterval
	}
	return d
}

func (p *Process) schedule(delay time.Duration) error {
	ev, err := p.role.actor.After(delay, p.name, p.tick)
	if err != nil {
		return fmt.Errorf("schedule process %s: %w", p.name, err)
	}
	p.next = ev
	return nil
}

func (p *Process) tick() {
	if p.stopped {
		return
	}
	p.runs++
	p.run()
	if p.stopped {
		return
	}
	if err := p.schedule(p.draw()); err != nil {
		slog.Error("process stopped", "actor", p.role.actor.id, "process", p.name, "error", err)
	}
}
