package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner drives a Scheduler forward one simulated day at a time, pacing the
// days against the wall clock so observers (the HTTP API) can follow along.
type Runner struct {
	Sched    *Scheduler
	Speed    float64       // Multiplier: 1.0 = one sim-day per Interval, 0 = paused
	Interval time.Duration // Wall time per sim-day at speed 1 (0 = no pacing)
	Until    Time          // Stop after this simulated time (0 = run forever)

	// OnDay runs after each completed sim-day, under the write lock.
	OnDay func(day uint64, now Time)

	mu      sync.RWMutex
	running bool
	stop    chan struct{}
}

// NewRunner creates a runner with default settings.
func NewRunner(s *Scheduler) *Runner {
	return &Runner{
		Sched:    s,
		Speed:    1.0,
		Interval: 0,
		stop:     make(chan struct{}),
	}
}

// Run steps the simulation until Until is reached, Stop is called or ctx is
// cancelled. It blocks.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
	slog.Info("simulation runner started", "now", r.Sched.Now(), "speed", r.Speed, "until", r.Until)

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		slog.Info("simulation runner stopped", "now", r.Sched.Now(), "executed", r.Sched.Executed())
	}()

	for {
		if r.Until > 0 && r.Sched.Now() >= r.Until {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stop:
			return nil
		default:
		}

		speed := r.speed()
		if speed <= 0 {
			// Paused: sleep briefly and check again.
			if !r.sleep(ctx, 100*time.Millisecond) {
				return ctx.Err()
			}
			continue
		}

		start := time.Now()
		if err := r.step(); err != nil {
			return err
		}

		if r.Interval > 0 {
			elapsed := time.Since(start)
			target := time.Duration(float64(r.Interval) / speed)
			if elapsed < target && !r.sleep(ctx, target-elapsed) {
				return ctx.Err()
			}
		}
	}
}

// step advances the scheduler by one simulated day.
func (r *Runner) step() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	until := r.Sched.Now().Add(Day)
	if r.Until > 0 && until > r.Until {
		until = r.Until
	}
	if err := r.Sched.RunUntil(until); err != nil {
		return err
	}
	if r.OnDay != nil {
		r.OnDay(uint64(until.Days()), until)
	}
	return nil
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-r.stop:
		return true
	case <-t.C:
		return true
	}
}

// Stop halts the run loop. It is safe to call more than once.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.stop:
	default:
		close(r.stop)
	}
}

// SetSpeed changes the pacing multiplier; 0 pauses the run.
func (r *Runner) SetSpeed(speed float64) {
	r.mu.Lock()
	r.Speed = speed
	r.mu.Unlock()
}

func (r *Runner) speed() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Speed
}

// Running reports whether Run is active.
func (r *Runner) Running() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// View runs fn while no simulated day is being processed, giving readers a
// consistent snapshot of simulation state.
func (r *Runner) View(fn func()) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn()
}
