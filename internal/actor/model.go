// Package actor implements the actor/role registry and content dispatch.
//
// A Model is the arena owning every actor, the scheduler and the unique id
// source. Actors hold roles; roles hold content handlers keyed by kind and
// autonomous processes. Actors refer to each other by id only.
package actor

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/world"
)

var (
	// ErrDuplicateActor is returned when an actor id is registered twice.
	ErrDuplicateActor = errors.New("actor: duplicate actor id")
	// ErrUnknownActor is returned when content is addressed to an actor the
	// model does not know.
	ErrUnknownActor = errors.New("actor: unknown actor")
)

// Model owns the actors of one simulation run.
type Model struct {
	sched   *engine.Scheduler
	bus     engine.Bus
	actors  map[string]*Actor
	order   []string
	nextID  uint64
	started bool
}

// NewModel creates an empty model driven by s.
func NewModel(s *engine.Scheduler) *Model {
	return &Model{sched: s, actors: make(map[string]*Actor)}
}

// Scheduler returns the scheduler driving the model.
func (m *Model) Scheduler() *engine.Scheduler { return m.sched }

// Now returns the current simulated time.
func (m *Model) Now() engine.Time { return m.sched.Now() }

// NextID returns a new unique id. Ids are shared by content and grouping
// ids, start at 1 and increase monotonically.
func (m *Model) NextID() uint64 {
	m.nextID++
	return m.nextID
}

// Subscribe registers a notice listener.
func (m *Model) Subscribe(l engine.Listener) { m.bus.Subscribe(l) }

// Emit stamps n with the current time and publishes it.
func (m *Model) Emit(n engine.Notice) {
	n.At = m.Now()
	m.bus.Emit(n)
}

// NewActor creates and registers an actor. It starts without inventory or
// bank account.
func (m *Model) NewActor(id, name string, loc world.Location) (*Actor, error) {
	if id == "" {
		return nil, errors.New("actor: empty id")
	}
	if _, ok := m.actors[id]; ok {
		return nil, fmt.Errorf("register %q: %w", id, ErrDuplicateActor)
	}
	a := newActor(m, id, name, loc)
	m.actors[id] = a
	m.order = append(m.order, id)
	return a, nil
}

// Actor looks an actor up by id.
func (m *Model) Actor(id string) (*Actor, bool) {
	a, ok := m.actors[id]
	return a, ok
}

// Actors returns all actors in registration order.
func (m *Model) Actors() []*Actor {
	out := make([]*Actor, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.actors[id])
	}
	return out
}

// Started reports whether Start was called.
func (m *Model) Started() bool { return m.started }

// Start launches the autonomous processes of every role. Roles added after
// Start launch their processes immediately.
func (m *Model) Start() error {
	if m.started {
		return nil
	}
	m.started = true
	var errs *multierror.Error
	for _, a := range m.Actors() {
		for _, r := range a.Roles() {
			if err := r.start(); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("%s/%s: %w", a.id, r.kind, err))
			}
		}
	}
	slog.Info("model started", "actors", len(m.order), "pending", m.sched.Pending())
	return errs.ErrorOrNil()
}

// Transfer moves money directly from one actor's account to another's,
// bypassing the message protocol. It is the only sanctioned cross-actor
// mutation: penalties, overdue bills, refunds of late payments and bank
// interest go through it.
func (m *Model) Transfer(from, to string, amount economy.Money, reason string) error {
	payer, ok := m.actors[from]
	if !ok {
		return fmt.Errorf("transfer from %q: %w", from, ErrUnknownActor)
	}
	payee, ok := m.actors[to]
	if !ok {
		return fmt.Errorf("transfer to %q: %w", to, ErrUnknownActor)
	}
	if payer.account == nil || payee.account == nil {
		return fmt.Errorf("transfer %s -> %s: %w", from, to, ErrNoAccount)
	}
	if err := economy.ForceTransfer(payer.account, payee.account, amount, reason); err != nil {
		return fmt.Errorf("transfer %s -> %s: %w", from, to, err)
	}
	m.Emit(engine.Notice{
		Category:    engine.CategoryFinance,
		Kind:        "forced_transfer",
		Actor:       from,
		Description: fmt.Sprintf("%s paid %v to %s (%s)", from, amount, to, reason),
		Meta:        map[string]any{"to": to, "amount": float64(amount), "reason": reason},
	})
	return nil
}
