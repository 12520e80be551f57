package trade

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/content"
	"github.com/talgya/tradesim/internal/engine"
)

// Penalty settlement is the one place where an actor's handler changes
// another actor's state: money is moved between bank accounts directly,
// through Model.Transfer, instead of by message.

// chargeLateDelivery fines a seller whose shipment for o did not appear by
// the deadline. It runs on the buyer.
func chargeLateDelivery(buyer *actor.Actor, seller string, o *content.Order, p *Penalty, late time.Duration) {
	fine := p.Fine.Amount(o.Price(), late)
	slog.Info("late delivery penalty", "buyer", buyer.ID(), "seller", seller, "group", o.GroupingID, "fine", fine)
	if fine > 0 {
		if err := buyer.Model().Transfer(seller, buyer.ID(), fine, "late delivery fine"); err != nil {
			slog.Error("late delivery fine not collected", "buyer", buyer.ID(), "error", err)
			return
		}
	}
	buyer.Emit(engine.CategoryPenalty, "late_delivery",
		fmt.Sprintf("%s fined %v", seller, fine),
		map[string]any{"group": o.GroupingID, "seller": seller, "fine": float64(fine)})
}

// settleOverdueBill collects an unpaid bill directly from the payer's
// account, charges the fine and records the forced Payment. It runs on the
// issuer of the bill.
func settleOverdueBill(issuer *actor.Actor, b *content.Bill, p *Penalty, late time.Duration) {
	payer := b.Receiver
	m := issuer.Model()
	if err := m.Transfer(payer, issuer.ID(), b.Price, "forced payment"); err != nil {
		slog.Error("overdue bill not collected", "issuer", issuer.ID(), "payer", payer, "error", err)
		return
	}
	fine := p.Fine.Amount(b.Price, late)
	if fine > 0 {
		if err := m.Transfer(payer, issuer.ID(), fine, "late payment fine"); err != nil {
			slog.Error("late payment fine not collected", "issuer", issuer.ID(), "error", err)
		}
	}
	slog.Info("overdue bill collected", "issuer", issuer.ID(), "payer", payer, "group", b.GroupingID, "price", b.Price, "fine", fine)
	issuer.Emit(engine.CategoryPenalty, "late_payment",
		fmt.Sprintf("%s forced to pay %v plus %v", payer, b.Price, fine),
		map[string]any{"group": b.GroupingID, "payer": payer, "price": float64(b.Price), "fine": float64(fine)})

	forced := &content.Payment{
		Header: content.NewHeader(issuer.ID(), payer, b.GroupingID),
		BillID: b.ID,
		Amount: b.Price,
		Forced: true,
	}
	if err := issuer.Send(forced, 0); err != nil {
		slog.Error("forced payment not recorded", "issuer", issuer.ID(), "error", err)
	}
}

// settled reports whether a Payment for the bill is in the actor's store.
func settled(a *actor.Actor, b *content.Bill) bool {
	for _, p := range content.ListOf[*content.Payment](a.Store(), b.GroupingID) {
		if p.BillID == b.ID {
			return true
		}
	}
	return false
}

// issueBill sends b and, when overdue is set, schedules the check that
// forces payment at the due date plus grace.
func issueBill(issuer *actor.Actor, b *content.Bill, overdue *Penalty) error {
	if err := issuer.Send(b, 0); err != nil {
		return err
	}
	if overdue == nil {
		return nil
	}
	_, err := issuer.AtPriority(b.DueDate.Add(overdue.Grace), engine.PriorityLate, "payment deadline", func() {
		if settled(issuer, b) {
			return
		}
		settleOverdueBill(issuer, b, overdue, issuer.Now().Sub(b.DueDate))
	})
	return err
}
