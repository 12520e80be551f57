package trade

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/content"
	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
)

// Accounting is the role paying the actor's bills and booking the payments
// it receives.
type Accounting struct {
	policy  PaymentPolicy
	a       *actor.Actor
	role    *actor.Role
	pending map[uint64]*engine.Event // Bill id -> next payment attempt
}

// NewAccounting gives a the accounting role. The actor needs a bank account.
func NewAccounting(a *actor.Actor, policy PaymentPolicy) (*Accounting, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if a.Account() == nil {
		return nil, fmt.Errorf("%s: accounting: %w", a.ID(), actor.ErrNoAccount)
	}
	ac := &Accounting{policy: policy, a: a, pending: make(map[uint64]*engine.Event)}
	role, err := actor.NewRole(RoleAccounting,
		[]content.Kind{content.KindBill, content.KindPayment},
		actor.On(ac.onBill),
		actor.On(ac.onPayment),
	)
	if err != nil {
		return nil, err
	}
	if err := a.AddRole(role); err != nil {
		return nil, err
	}
	ac.role = role
	return ac, nil
}

// Outstanding returns the number of bills awaiting a payment attempt.
func (ac *Accounting) Outstanding() int { return len(ac.pending) }

func (ac *Accounting) onBill(b *content.Bill) {
	if settled(ac.a, b) {
		return
	}
	target := ac.policy.Target(ac.a.Now(), b.DueDate)
	ac.schedule(b, target)
}

func (ac *Accounting) schedule(b *content.Bill, at engine.Time) {
	ev, err := ac.a.AtPriority(at, engine.PriorityEarly, "pay bill", func() { ac.pay(b) })
	if err != nil {
		slog.Error("payment not scheduled", "actor", ac.a.ID(), "bill", b.ID, "error", err)
		return
	}
	ac.pending[b.ID] = ev
}

// pay settles b, retrying daily for as long as funds are short.
func (ac *Accounting) pay(b *content.Bill) {
	delete(ac.pending, b.ID)
	if settled(ac.a, b) {
		return
	}
	err := ac.a.Account().Withdraw(b.Price, fmt.Sprintf("bill %d from %s", b.ID, b.Sender))
	if errors.Is(err, economy.ErrInsufficientFunds) {
		slog.Debug("insufficient funds, retrying payment", "actor", ac.a.ID(), "bill", b.ID, "price", b.Price)
		ac.schedule(b, ac.a.Now().Add(RetryDelay))
		return
	}
	if err != nil {
		slog.Error("payment failed", "actor", ac.a.ID(), "bill", b.ID, "error", err)
		return
	}
	p := &content.Payment{
		Header: content.Reply(b),
		BillID: b.ID,
		Amount: b.Price,
	}
	if err := ac.a.Send(p, 0); err != nil {
		slog.Error("payment not sent", "actor", ac.a.ID(), "error", err)
	}
}

func (ac *Accounting) onPayment(p *content.Payment) {
	b, ok := content.Lookup[*content.Bill](ac.a.Store(), p.BillID)
	if !ok {
		slog.Warn("payment for unknown bill", "actor", ac.a.ID(), "bill", p.BillID, "from", p.Sender)
		return
	}
	me := ac.a.ID()
	switch {
	case b.Sender == me && !p.Forced:
		if err := ac.a.Account().Deposit(p.Amount, fmt.Sprintf("payment for bill %d", b.ID)); err != nil {
			slog.Error("payment not booked", "actor", me, "error", err)
			return
		}
		if ac.forcedEarlier(b) {
			ac.refund(b, p)
			return
		}
		ac.a.Emit(engine.CategoryFinance, "paid",
			fmt.Sprintf("%s paid %v", p.Sender, p.Amount),
			map[string]any{"group": p.GroupingID, "bill": b.ID, "amount": float64(p.Amount)})
	case b.Receiver == me && p.Forced:
		if ev, ok := ac.pending[b.ID]; ok {
			_ = ac.a.Scheduler().Cancel(ev)
			delete(ac.pending, b.ID)
		}
		slog.Info("bill settled by force", "actor", me, "bill", b.ID, "issuer", p.Sender)
	default:
		slog.Warn("unexpected payment", "actor", me, "bill", b.ID, "from", p.Sender, "forced", p.Forced)
	}
}

func (ac *Accounting) forcedEarlier(b *content.Bill) bool {
	for _, p := range content.ListOf[*content.Payment](ac.a.Store(), b.GroupingID) {
		if p.BillID == b.ID && p.Forced {
			return true
		}
	}
	return false
}

// refund returns a payment that arrived after the bill was already
// collected by force.
func (ac *Accounting) refund(b *content.Bill, p *content.Payment) {
	me := ac.a.ID()
	if err := ac.a.Model().Transfer(me, p.Sender, p.Amount, fmt.Sprintf("refund for bill %d", b.ID)); err != nil {
		slog.Error("refund failed", "actor", me, "bill", b.ID, "to", p.Sender, "error", err)
		return
	}
	slog.Warn("payment after forced settlement refunded", "actor", me, "bill", b.ID, "to", p.Sender, "amount", p.Amount)
	ac.a.Emit(engine.CategoryFinance, "refunded",
		fmt.Sprintf("refunded %v to %s", p.Amount, p.Sender),
		map[string]any{"group": p.GroupingID, "bill": b.ID, "amount": float64(p.Amount)})
}
