package trade

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/content"
	"github.com/talgya/tradesim/internal/dist"
	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
)

// RestockPolicy raises a Demand whenever the virtual stock of a product
// falls below the reorder point, for enough to reach OrderUpTo.
type RestockPolicy struct {
	Product      *economy.Product
	ReorderPoint float64
	OrderUpTo    float64
	Window       time.Duration // Latest delivery date relative to the demand
	Interval     dist.Duration // Time between stock checks
}

// Validate checks the policy.
func (p RestockPolicy) Validate() error {
	switch {
	case p.Product == nil:
		return errors.New("restock: no product")
	case p.Interval == nil:
		return fmt.Errorf("restock %s: no check interval", p.Product.Name)
	case p.ReorderPoint < 0 || p.OrderUpTo <= p.ReorderPoint:
		return fmt.Errorf("restock %s: need 0 <= reorder point < order up to", p.Product.Name)
	case p.Window < 0:
		return fmt.Errorf("restock %s: negative window", p.Product.Name)
	}
	return nil
}

// Restock attaches a restocking process for one product to the buyer.
func (b *Buyer) Restock(p RestockPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	b.a.Ledger().Track(p.Product, 0, p.Product.UnitMarketPrice)
	proc, err := actor.NewProcess("restock "+p.Product.Name, p.Interval.Draw, func() { b.checkStock(p) })
	if err != nil {
		return err
	}
	return b.role.AddProcess(proc)
}

func (b *Buyer) checkStock(p RestockPolicy) {
	name := p.Product.Name
	if b.Open(name) {
		return
	}
	v := b.a.Ledger().Virtual(name)
	if v >= p.ReorderPoint {
		return
	}
	now := b.a.Now()
	d := &content.Demand{
		Header:       content.NewHeader(b.a.ID(), b.a.ID(), b.a.Model().NextID()),
		Product:      p.Product,
		Amount:       p.OrderUpTo - v,
		EarliestDate: now,
		LatestDate:   now.Add(p.Window),
	}
	if b.send(d) {
		b.open[name] = d.GroupingID
	}
}

// Consumption draws customer purchases of a product from stock. Customers
// pay Price per unit into the actor's account, if it has one.
type Consumption struct {
	Product  *economy.Product
	Amount   dist.Amount
	Interval dist.Duration
	Price    economy.Money
}

// Consumer is the role selling to end customers out of stock.
type Consumer struct {
	a    *actor.Actor
	role *actor.Role
	sold map[string]float64
	lost map[string]float64
}

// NewConsumer gives a the consuming role with one process per product.
func NewConsumer(a *actor.Actor, cs ...Consumption) (*Consumer, error) {
	c := &Consumer{a: a, sold: make(map[string]float64), lost: make(map[string]float64)}
	role, err := actor.NewRole(RoleConsuming, nil)
	if err != nil {
		return nil, err
	}
	if err := a.AddRole(role); err != nil {
		return nil, err
	}
	c.role = role
	for _, cons := range cs {
		if cons.Product == nil || cons.Amount == nil || cons.Interval == nil {
			return nil, fmt.Errorf("%s: incomplete consumption %+v", a.ID(), cons)
		}
		a.Ledger().Track(cons.Product, 0, cons.Product.UnitMarketPrice)
		p, err := actor.NewProcess("consume "+cons.Product.Name, cons.Interval.Draw, func() { c.consume(cons) })
		if err != nil {
			return nil, err
		}
		if err := role.AddProcess(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Sold returns the amount of a product handed to customers.
func (c *Consumer) Sold(product string) float64 { return c.sold[product] }

// Lost returns the amount customers wanted but stock could not cover.
func (c *Consumer) Lost(product string) float64 { return c.lost[product] }

func (c *Consumer) consume(cons Consumption) {
	name := cons.Product.Name
	want := cons.Amount.Draw()
	if want <= 0 {
		return
	}
	got := c.a.Ledger().RemoveFromActual(name, want)
	c.sold[name] += got
	if acc := c.a.Account(); acc != nil && got > 0 && cons.Price > 0 {
		if err := acc.Deposit(cons.Price.Scale(got), "sales"); err != nil {
			slog.Error("sales not booked", "actor", c.a.ID(), "error", err)
		}
	}
	if got < want {
		c.lost[name] += want - got
		slog.Debug("stock out", "actor", c.a.ID(), "product", name, "wanted", want, "sold", got)
	}
	c.a.Emit(engine.CategoryDemand, "consumed", name,
		map[string]any{"product": name, "wanted": want, "sold": got})
}

// Production adds finished goods to stock at a unit cost.
type Production struct {
	Product  *economy.Product
	Amount   dist.Amount
	Interval dist.Duration
	UnitCost economy.Money
}

// Producer is the role manufacturing goods into the actor's stock.
type Producer struct {
	a        *actor.Actor
	role     *actor.Role
	produced map[string]float64
}

// NewProducer gives a the producing role with one process per product.
func NewProducer(a *actor.Actor, ps ...Production) (*Producer, error) {
	pr := &Producer{a: a, produced: make(map[string]float64)}
	role, err := actor.NewRole(RoleProducing, nil)
	if err != nil {
		return nil, err
	}
	if err := a.AddRole(role); err != nil {
		return nil, err
	}
	pr.role = role
	for _, prod := range ps {
		if prod.Product == nil || prod.Amount == nil || prod.Interval == nil {
			return nil, fmt.Errorf("%s: incomplete production %+v", a.ID(), prod)
		}
		a.Ledger().Track(prod.Product, 0, prod.UnitCost)
		p, err := actor.NewProcess("produce "+prod.Product.Name, prod.Interval.Draw, func() { pr.produce(prod) })
		if err != nil {
			return nil, err
		}
		if err := role.AddProcess(p); err != nil {
			return nil, err
		}
	}
	return pr, nil
}

// Produced returns the amount of a product manufactured so far.
func (pr *Producer) Produced(product string) float64 { return pr.produced[product] }

func (pr *Producer) produce(p Production) {
	amount := p.Amount.Draw()
	if amount <= 0 {
		return
	}
	if err := pr.a.Ledger().AddToActual(p.Product.Name, amount, p.UnitCost); err != nil {
		slog.Error("production not stored", "actor", pr.a.ID(), "error", err)
		return
	}
	pr.produced[p.Product.Name] += amount
}
