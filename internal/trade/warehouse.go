package trade

import (
	"errors"
	"log/slog"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/content"
	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/logistics"
)

// Warehouse is the warehousing role: it reserves stock for orders and
// releases it for shipping. Clients, when set, restricts who may use it.
type Warehouse struct {
	a       *actor.Actor
	role    *actor.Role
	retries int
}

// NewWarehouse gives a the warehousing role.
func NewWarehouse(a *actor.Actor, clients ...string) (*Warehouse, error) {
	w := &Warehouse{a: a}
	partners := actor.FromPartners(clients...)
	role, err := actor.NewRole(RoleWarehousing,
		[]content.Kind{content.KindInventoryReservationRequest, content.KindInventoryReleaseRequest},
		actor.On(w.onReserve, partners),
		actor.On(w.onRelease, partners),
	)
	if err != nil {
		return nil, err
	}
	if err := a.AddRole(role); err != nil {
		return nil, err
	}
	w.role = role
	return w, nil
}

// Retries returns how many release attempts were postponed for lack of stock.
func (w *Warehouse) Retries() int { return w.retries }

func (w *Warehouse) onReserve(r *content.InventoryReservationRequest) {
	if err := w.a.Ledger().Reserve(r.Product.Name, r.Amount); err != nil {
		slog.Error("reservation failed", "actor", w.a.ID(), "product", r.Product.Name, "error", err)
		return
	}
	reply := &content.InventoryReservation{
		Header:    content.Reply(r),
		RequestID: r.ID,
		OrderID:   r.OrderID,
		Product:   r.Product,
		Amount:    r.Amount,
	}
	if err := w.a.Send(reply, 0); err != nil {
		slog.Error("reservation not confirmed", "actor", w.a.ID(), "error", err)
	}
}

func (w *Warehouse) onRelease(r *content.InventoryReleaseRequest) {
	w.release(r)
}

// release takes the reserved amount out of stock, retrying daily while less
// is physically present.
func (w *Warehouse) release(r *content.InventoryReleaseRequest) {
	ledger := w.a.Ledger()
	err := ledger.Release(r.Product.Name, r.Amount)
	if errors.Is(err, economy.ErrInsufficientAmount) {
		w.retries++
		slog.Debug("insufficient stock, retrying release", "actor", w.a.ID(), "product", r.Product.Name, "amount", r.Amount)
		w.a.Emit(engine.CategoryInventory, "shortfall", r.Product.Name,
			map[string]any{"group": r.GroupingID, "amount": r.Amount})
		if _, err := w.a.After(RetryDelay, "retry release", func() { w.release(r) }); err != nil {
			slog.Error("release retry not scheduled", "actor", w.a.ID(), "error", err)
		}
		return
	}
	if err != nil {
		slog.Error("release failed", "actor", w.a.ID(), "product", r.Product.Name, "error", err)
		return
	}

	stock, _ := ledger.Get(r.Product.Name)
	goods := &logistics.Shipment{
		GroupingID:  r.GroupingID,
		Product:     r.Product,
		Amount:      r.Amount,
		Value:       stock.UnitCost.Scale(r.Amount),
		Sender:      r.Sender,
		Origin:      w.a.Location(),
		Destination: w.a.Location(),
	}
	reply := &content.InventoryRelease{
		Header:    content.Reply(r),
		RequestID: r.ID,
		OrderID:   r.OrderID,
		Product:   r.Product,
		Amount:    r.Amount,
		Goods:     goods,
	}
	if err := w.a.Send(reply, 0); err != nil {
		slog.Error("release not confirmed", "actor", w.a.ID(), "error", err)
	}
}
