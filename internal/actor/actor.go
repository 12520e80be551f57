package actor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/tradesim/internal/content"
	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/world"
)

var (
	// ErrRoleAlreadyRegistered is returned when an actor gets a second role
	// for the same capability.
	ErrRoleAlreadyRegistered = errors.New("actor: role already registered")
	// ErrHandlerConflict is returned when two roles of an actor handle the
	// same content kind.
	ErrHandlerConflict = errors.New("actor: content kind handled by another role")
	// ErrRoleOwned is returned when a role is added to a second actor.
	ErrRoleOwned = errors.New("actor: role belongs to another actor")
	// ErrWrongSender is returned when an actor sends content whose header
	// names another sender.
	ErrWrongSender = errors.New("actor: content sender is not the sending actor")
	// ErrNoAccount is returned for money operations on an actor without a
	// bank account.
	ErrNoAccount = errors.New("actor: no bank account")
)

// Actor is a participant of the simulation. Its store, ledger and account
// are only mutated from its own handlers and processes.
type Actor struct {
	model    *Model
	id       string
	name     string
	location world.Location

	roles     map[string]*Role
	roleOrder []string
	handlers  map[content.Kind]*Handler

	store   *content.Store
	ledger  *economy.Ledger
	account *economy.BankAccount
}

func newActor(m *Model, id, name string, loc world.Location) *Actor {
	a := &Actor{
		model:    m,
		id:       id,
		name:     name,
		location: loc,
		roles:    make(map[string]*Role),
		handlers: make(map[content.Kind]*Handler),
		store:    content.NewStore(id),
		ledger:   economy.NewLedger(),
	}
	a.ledger.Observe(func(s economy.Stock) {
		m.Emit(engine.Notice{
			Category: engine.CategoryInventory,
			Kind:     "stock",
			Actor:    id,
			Meta: map[string]any{
				"product":  s.Product.Name,
				"actual":   s.Actual,
				"ordered":  s.Ordered,
				"reserved": s.Reserved,
			},
		})
	})
	return a
}

// ID returns the actor's unique id.
func (a *Actor) ID() string { return a.id }

// Name returns the display name.
func (a *Actor) Name() string { return a.name }

// Location returns where the actor sits on the map.
func (a *Actor) Location() world.Location { return a.location }

// Model returns the model the actor belongs to.
func (a *Actor) Model() *Model { return a.model }

// Store returns the actor's content log.
func (a *Actor) Store() *content.Store { return a.store }

// Ledger returns the actor's inventory.
func (a *Actor) Ledger() *economy.Ledger { return a.ledger }

// Account returns the bank account, or nil if the actor has none.
func (a *Actor) Account() *economy.BankAccount { return a.account }

// Now returns the current simulated time.
func (a *Actor) Now() engine.Time { return a.model.Now() }

// Scheduler returns the model's scheduler.
func (a *Actor) Scheduler() *engine.Scheduler { return a.model.sched }

func (a *Actor) String() string { return a.id }

// OpenAccount gives the actor a bank account at bank.
func (a *Actor) OpenAccount(bank string, initial economy.Money) *economy.BankAccount {
	acc := economy.NewBankAccount(a.id, bank, initial)
	acc.Observe(func(c economy.BalanceChange) {
		a.model.Emit(engine.Notice{
			Category:    engine.CategoryFinance,
			Kind:        "balance",
			Actor:       a.id,
			Description: c.Reason,
			Meta:        map[string]any{"old": float64(c.Old), "new": float64(c.New)},
		})
	})
	a.account = acc
	return acc
}

// AddRole hands r to the actor. An actor has at most one role per
// capability, and every content kind is handled by at most one role.
func (a *Actor) AddRole(r *Role) error {
	if r.actor != nil {
		return fmt.Errorf("%s: add role %s: %w", a.id, r.kind, ErrRoleOwned)
	}
	if _, ok := a.roles[r.kind]; ok {
		return fmt.Errorf("%s: add role %s: %w", a.id, r.kind, ErrRoleAlreadyRegistered)
	}
	for kind := range r.handlers {
		if other, ok := a.handlers[kind]; ok {
			return fmt.Errorf("%s: add role %s: %s already handled by %s: %w",
				a.id, r.kind, kind, other.role.kind, ErrHandlerConflict)
		}
	}

	r.actor = a
	a.roles[r.kind] = r
	a.roleOrder = append(a.roleOrder, r.kind)
	for kind, h := range r.handlers {
		a.handlers[kind] = h
	}
	if a.model.started {
		return r.start()
	}
	return nil
}

// Role returns the role registered for a capability.
func (a *Actor) Role(kind string) (*Role, bool) {
	r, ok := a.roles[kind]
	return r, ok
}

// Roles returns the actor's roles in registration order.
func (a *Actor) Roles() []*Role {
	out := make([]*Role, 0, len(a.roleOrder))
	for _, k := range a.roleOrder {
		out = append(out, a.roles[k])
	}
	return out
}

// Handles reports whether a role of the actor handles kind.
func (a *Actor) Handles(kind content.Kind) bool {
	_, ok := a.handlers[kind]
	return ok
}

// Receive routes c to the handler registered for its kind. It returns false
// when no handler accepts it; rejections are logged, never raised.
func (a *Actor) Receive(c content.Content) bool {
	h, ok := a.handlers[c.Kind()]
	if !ok {
		a.reject(c, "no handler")
		return false
	}
	return h.Handle(c)
}

func (a *Actor) reject(c content.Content, reason string) {
	hd := c.Head()
	slog.Warn("content rejected",
		"actor", a.id, "kind", c.Kind(), "id", hd.ID, "sender", hd.Sender, "reason", reason)
	a.model.Emit(engine.Notice{
		Category:    engine.CategoryContent,
		Kind:        "rejected",
		Actor:       a.id,
		Description: reason,
		Meta:        map[string]any{"content": string(c.Kind()), "id": hd.ID, "group": hd.GroupingID},
	})
}

// Send stamps c, records it in the actor's store and schedules its delivery
// to the receiver after delay. A zero delay still defers delivery to a later
// scheduler step.
func (a *Actor) Send(c content.Content, delay time.Duration) error {
	hd := c.Head()
	if hd.Sender != a.id {
		return fmt.Errorf("%s: send %s from %q: %w", a.id, c.Kind(), hd.Sender, ErrWrongSender)
	}
	receiver, ok := a.model.actors[hd.Receiver]
	if !ok {
		return fmt.Errorf("%s: send %s to %q: %w", a.id, c.Kind(), hd.Receiver, ErrUnknownActor)
	}
	if delay < 0 {
		return fmt.Errorf("%s: send %s: %w", a.id, c.Kind(), engine.ErrNegativeDelay)
	}
	if err := content.Stamp(c, a.model.NextID(), a.Now()); err != nil {
		return err
	}
	a.store.Append(c, content.Sent)

	kind := c.Kind()
	if _, err := a.model.sched.ScheduleAfter(delay, "deliver "+string(kind), func() {
		receiver.Receive(c)
	}); err != nil {
		return fmt.Errorf("%s: schedule delivery of %s: %w", a.id, kind, err)
	}

	hd = c.Head()
	slog.Debug("content sent", "from", a.id, "to", hd.Receiver, "kind", kind, "id", hd.ID, "group", hd.GroupingID)
	a.model.Emit(engine.Notice{
		Category: engine.CategoryContent,
		Kind:     "sent",
		Actor:    a.id,
		Meta: map[string]any{
			"content":  string(kind),
			"id":       hd.ID,
			"group":    hd.GroupingID,
			"receiver": hd.Receiver,
		},
	})
	return nil
}

// After schedules fn on behalf of the actor after delay.
func (a *Actor) After(delay time.Duration, name string, fn func()) (*engine.Event, error) {
	return a.model.sched.ScheduleAfter(delay, a.id+": "+name, fn)
}

// At schedules fn on behalf of the actor at t, or now if t has passed.
func (a *Actor) At(t engine.Time, name string, fn func()) (*engine.Event, error) {
	return a.AtPriority(t, engine.PriorityNormal, name, fn)
}

// AtPriority is At with an explicit priority. Deadline checks run at
// engine.PriorityLate so that anything else happening at the same instant,
// including message deliveries it triggers, is seen by the check.
func (a *Actor) AtPriority(t engine.Time, priority int16, name string, fn func()) (*engine.Event, error) {
	return a.model.sched.ScheduleAt(engine.Max(t, a.Now()), priority, a.id+": "+name, fn)
}

// Emit publishes a notice attributed to the actor.
func (a *Actor) Emit(category, kind, description string, meta map[string]any) {
	a.model.Emit(engine.Notice{
		Category:    category,
		Kind:        kind,
		Actor:       a.id,
		Description: description,
		Meta:        meta,
	})
}
