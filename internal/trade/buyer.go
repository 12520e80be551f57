package trade

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/content"
	"github.com/talgya/tradesim/internal/engine"
)

// BuyerConfig parameterizes the buying role.
type BuyerConfig struct {
	Directory   string   // Actor answering SearchRequests; empty to use Suppliers
	Suppliers   []string // Asked directly when there is no directory
	MaxDistance int      // Search radius in hexes, 0 for unlimited
	MaxAnswers  int      // Suppliers asked per demand, 0 for all
	QuoteWindow time.Duration
	Criteria    Criteria
	Late        *Penalty // Charged to the seller when no Shipment arrives by delivery + grace
	Products    []string // Products the role buys, empty for any
}

// DefaultBuyerConfig returns the acceptance limits used unless configured.
func DefaultBuyerConfig() BuyerConfig {
	return BuyerConfig{
		QuoteWindow: engine.Day,
		Criteria: Criteria{
			MaxPriceMargin:  0.4,
			MinAmountMargin: 0.3,
			Compare:         ByPriceDateDistance,
		},
	}
}

// Validate checks the configuration.
func (c BuyerConfig) Validate() error {
	var errs *multierror.Error
	if c.Directory == "" && len(c.Suppliers) == 0 {
		errs = multierror.Append(errs, errors.New("buyer: neither directory nor suppliers"))
	}
	if c.MaxDistance < 0 || c.MaxAnswers < 0 {
		errs = multierror.Append(errs, errors.New("buyer: negative search limits"))
	}
	if c.QuoteWindow < 0 {
		errs = multierror.Append(errs, fmt.Errorf("buyer: negative quote window %v", c.QuoteWindow))
	}
	if c.Criteria.MaxPriceMargin < 0 || c.Criteria.MinAmountMargin < 0 || c.Criteria.MinAmountMargin > 1 {
		errs = multierror.Append(errs, fmt.Errorf("buyer: bad criteria %+v", c.Criteria))
	}
	if err := c.Late.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// Buyer is the buying role: it turns Demands into orders and receives the
// goods.
type Buyer struct {
	cfg  BuyerConfig
	a    *actor.Actor
	role *actor.Role

	answered map[uint64]bool          // Grouping ids whose quote cohort was decided
	cutoffs  map[uint64]*engine.Event // Pending quote cutoff checks
	open     map[string]uint64        // Product -> grouping id of the demand in negotiation
}

// NewBuyer gives a the buying role.
func NewBuyer(a *actor.Actor, cfg BuyerConfig) (*Buyer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Buyer{
		cfg:      cfg,
		a:        a,
		answered: make(map[uint64]bool),
		cutoffs:  make(map[uint64]*engine.Event),
		open:     make(map[string]uint64),
	}
	products := actor.ForProducts(cfg.Products...)
	role, err := actor.NewRole(RoleBuying,
		[]content.Kind{content.KindDemand, content.KindQuote, content.KindOrderConfirmation, content.KindTransportDelivery},
		actor.On(b.onDemand, products),
		actor.On(b.onSearchAnswer, products),
		actor.On(b.onQuote, products),
		actor.On(b.onConfirmation, products),
		actor.On(b.onShipment, products),
		actor.On(b.onDelivery, products),
	)
	if err != nil {
		return nil, err
	}
	if err := a.AddRole(role); err != nil {
		return nil, err
	}
	b.role = role
	return b, nil
}

// Role returns the underlying actor role.
func (b *Buyer) Role() *actor.Role { return b.role }

// Open reports whether a demand for the product is still being negotiated.
func (b *Buyer) Open(product string) bool {
	_, ok := b.open[product]
	return ok
}

func (b *Buyer) send(c content.Content) bool {
	if err := b.a.Send(c, 0); err != nil {
		slog.Error("buyer message not sent", "actor", b.a.ID(), "kind", c.Kind(), "error", err)
		return false
	}
	return true
}

func (b *Buyer) demand(gid uint64) (*content.Demand, bool) {
	ds := content.ListOf[*content.Demand](b.a.Store(), gid)
	if len(ds) == 0 {
		return nil, false
	}
	return ds[0], true
}

func (b *Buyer) onDemand(d *content.Demand) {
	b.open[d.Product.Name] = d.GroupingID
	b.a.Emit(engine.CategoryDemand, "demand",
		fmt.Sprintf("%v %s until %v", d.Amount, d.Product.Name, d.LatestDate),
		map[string]any{"product": d.Product.Name, "amount": d.Amount, "group": d.GroupingID})

	if b.cfg.Directory == "" {
		b.requestQuotes(d, b.cfg.Suppliers)
		return
	}
	b.send(&content.SearchRequest{
		Header:      content.NewHeader(b.a.ID(), b.cfg.Directory, d.GroupingID),
		Product:     d.Product,
		DemandID:    d.ID,
		Location:    b.a.Location(),
		MaxDistance: b.cfg.MaxDistance,
		MaxAnswers:  b.cfg.MaxAnswers,
	})
}

func (b *Buyer) onSearchAnswer(ans *content.SearchAnswer) {
	d, ok := b.demand(ans.GroupingID)
	if !ok {
		slog.Debug("search answer for discarded demand", "actor", b.a.ID(), "group", ans.GroupingID)
		return
	}
	b.requestQuotes(d, ans.Suppliers)
}

// requestQuotes sends one RequestForQuote per supplier.
func (b *Buyer) requestQuotes(d *content.Demand, suppliers []string) {
	sent := 0
	cutoff := b.a.Now().Add(b.cfg.QuoteWindow)
	for _, s := range suppliers {
		if s == b.a.ID() {
			continue
		}
		ok := b.send(&content.RequestForQuote{
			Header:       content.NewHeader(b.a.ID(), s, d.GroupingID),
			DemandID:     d.ID,
			Product:      d.Product,
			Amount:       d.Amount,
			Location:     b.a.Location(),
			EarliestDate: d.EarliestDate,
			LatestDate:   d.LatestDate,
			CutoffDate:   cutoff,
		})
		if ok {
			sent++
		}
	}
	if sent == 0 {
		b.fail(d, "no suppliers")
		return
	}
	gid := d.GroupingID
	ev, err := b.a.At(cutoff, "quote cutoff", func() { b.decide(gid) })
	if err != nil {
		slog.Error("quote cutoff not scheduled", "actor", b.a.ID(), "error", err)
		return
	}
	b.cutoffs[gid] = ev
}

// fail ends a negotiation without an order.
func (b *Buyer) fail(d *content.Demand, reason string) {
	slog.Info("demand not fulfilled", "actor", b.a.ID(), "product", d.Product.Name, "group", d.GroupingID, "reason", reason)
	if b.open[d.Product.Name] == d.GroupingID {
		delete(b.open, d.Product.Name)
	}
	b.a.Emit(engine.CategoryOrder, "unfulfilled", reason,
		map[string]any{"product": d.Product.Name, "group": d.GroupingID})
}

func (b *Buyer) onQuote(q *content.Quote) {
	gid := q.GroupingID
	if b.answered[gid] {
		slog.Debug("late quote ignored", "actor", b.a.ID(), "from", q.Sender, "group", gid)
		return
	}
	store := b.a.Store()
	if _, ok := content.Lookup[*content.RequestForQuote](store, q.RFQID); !ok {
		slog.Warn("quote for unknown request", "actor", b.a.ID(), "rfq", q.RFQID)
		return
	}
	if store.CountDir(gid, content.KindQuote, content.Received) >= store.CountDir(gid, content.KindRequestForQuote, content.Sent) {
		b.decide(gid)
	}
}

// decide evaluates the quote cohort of a grouping id exactly once, either
// when all quotes arrived or at the cutoff, and orders the best quote.
func (b *Buyer) decide(gid uint64) {
	if b.answered[gid] {
		return
	}
	b.answered[gid] = true
	if ev := b.cutoffs[gid]; ev != nil && ev.Pending() {
		_ = b.a.Scheduler().Cancel(ev)
	}
	delete(b.cutoffs, gid)

	d, ok := b.demand(gid)
	if !ok {
		return
	}
	store := b.a.Store()
	rfqs := make(map[uint64]*content.RequestForQuote)
	for _, r := range content.ListOf[*content.RequestForQuote](store, gid) {
		rfqs[r.ID] = r
	}
	quotes := content.ListOf[*content.Quote](store, gid)
	best, ok := b.cfg.Criteria.Select(b.a.Now(), b.a.Location(), rfqs, quotes)
	if !ok {
		b.fail(d, fmt.Sprintf("none of %d quotes acceptable", len(quotes)))
		return
	}

	o := &content.Order{
		Header:       content.Reply(best),
		QuoteID:      best.ID,
		Product:      best.Product,
		Amount:       best.Amount,
		UnitPrice:    best.UnitPrice,
		DeliveryDate: best.ProposedDeliveryDate,
		Location:     b.a.Location(),
	}
	if !b.send(o) {
		return
	}
	if err := b.a.Ledger().EnterOrdered(o.Product.Name, o.Amount, o.UnitPrice); err != nil {
		slog.Error("ordered amount not recorded", "actor", b.a.ID(), "error", err)
	}
	if b.open[d.Product.Name] == gid {
		delete(b.open, d.Product.Name)
	}
	b.a.Emit(engine.CategoryOrder, "ordered",
		fmt.Sprintf("%v %s from %s at %v", o.Amount, o.Product.Name, o.Receiver, o.UnitPrice),
		map[string]any{"product": o.Product.Name, "amount": o.Amount, "seller": o.Receiver, "group": gid})
}

func (b *Buyer) onConfirmation(c *content.OrderConfirmation) {
	o, ok := content.Lookup[*content.Order](b.a.Store(), c.OrderID)
	if !ok {
		slog.Warn("confirmation for unknown order", "actor", b.a.ID(), "order", c.OrderID)
		return
	}
	if c.Accepted {
		b.watchDelivery(o)
		return
	}
	b.restart(o, c.Reason)
}

// restart resubmits the originating demand under a new grouping id after an
// order was rejected, discarding the failed negotiation's trail.
func (b *Buyer) restart(o *content.Order, reason string) {
	old := o.GroupingID
	if err := b.a.Ledger().CancelOrdered(o.Product.Name, o.Amount); err != nil {
		slog.Error("ordered amount not cancelled", "actor", b.a.ID(), "error", err)
	}
	d, ok := b.demand(old)
	if !ok {
		return
	}
	slog.Info("order rejected, restarting demand", "actor", b.a.ID(), "seller", o.Receiver, "group", old, "reason", reason)
	b.a.Emit(engine.CategoryOrder, "rejected", reason, map[string]any{"group": old, "seller": o.Receiver})

	gid := b.a.Model().NextID()
	fresh := &content.Demand{
		Header:       content.NewHeader(b.a.ID(), b.a.ID(), gid),
		Product:      d.Product,
		Amount:       d.Amount,
		EarliestDate: d.EarliestDate,
		LatestDate:   d.LatestDate,
	}
	b.a.Store().RemoveAll(old)
	delete(b.answered, old)
	if b.send(fresh) {
		b.open[d.Product.Name] = gid
	}
}

// watchDelivery fines the seller if no Shipment arrived by the promised
// delivery date plus grace.
func (b *Buyer) watchDelivery(o *content.Order) {
	if b.cfg.Late == nil {
		return
	}
	gid := o.GroupingID
	seller := o.Receiver
	deadline := o.DeliveryDate.Add(b.cfg.Late.Grace)
	if _, err := b.a.AtPriority(deadline, engine.PriorityLate, "delivery deadline", func() {
		if b.a.Store().ContainsKind(gid, content.KindShipment) {
			return
		}
		chargeLateDelivery(b.a, seller, o, b.cfg.Late, b.a.Now().Sub(o.DeliveryDate))
	}); err != nil {
		slog.Error("delivery deadline not scheduled", "actor", b.a.ID(), "error", err)
	}
}

func (b *Buyer) onShipment(s *content.Shipment) {
	slog.Debug("shipment announced", "actor", b.a.ID(), "from", s.Sender, "group", s.GroupingID, "eta", s.EstimatedArrival)
}

func (b *Buyer) onDelivery(d *content.TransportDelivery) {
	g := d.Goods
	if g == nil || g.Product == nil {
		slog.Warn("delivery without goods", "actor", b.a.ID(), "group", d.GroupingID)
		return
	}
	if err := b.a.Ledger().ReceiveOrdered(g.Product.Name, g.Amount); err != nil {
		slog.Error("delivery not booked", "actor", b.a.ID(), "error", err)
		return
	}
	b.a.Emit(engine.CategoryOrder, "delivered",
		fmt.Sprintf("%v %s from %s", g.Amount, g.Product.Name, g.Sender),
		map[string]any{"product": g.Product.Name, "amount": g.Amount, "group": d.GroupingID})
}
