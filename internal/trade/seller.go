package trade

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/content"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/logistics"
	"github.com/talgya/tradesim/internal/transport"
)

// SellerConfig parameterizes the selling role.
type SellerConfig struct {
	ProfitMargin      float64       // Markup on the market price
	QuoteValidity     time.Duration // How long a quote can be ordered
	HandlingTime      time.Duration // Order processing before shipping
	QuoteWithoutStock bool          // Quote the requested amount regardless of stock
	Warehouse         string        // Actor keeping the stock; empty for the seller itself
	Transporters      []string      // Carriers asked for transport quotes
	Fleet             logistics.Mode
	TransportWindow   time.Duration // Wait for transport quotes before choosing
	PaymentTerm       time.Duration
	Overdue           *Penalty // Forced payment and fine for unpaid bills
	Products          []string
}

// DefaultSellerConfig returns the selling parameters used unless configured.
func DefaultSellerConfig() SellerConfig {
	return SellerConfig{
		ProfitMargin:  0.1,
		QuoteValidity: 2 * engine.Day,
		HandlingTime:  engine.Day,
		Fleet: logistics.Mode{
			Name:          "van",
			Speed:         8,
			LoadingTime:   15 * time.Minute,
			UnloadingTime: 15 * time.Minute,
			CostPerHex:    0.5,
		},
		TransportWindow: 6 * time.Hour,
		PaymentTerm:     14 * engine.Day,
	}
}

// Validate checks the configuration.
func (c SellerConfig) Validate() error {
	var errs *multierror.Error
	if c.ProfitMargin < 0 {
		errs = multierror.Append(errs, fmt.Errorf("seller: negative profit margin %v", c.ProfitMargin))
	}
	if c.QuoteValidity < 0 || c.HandlingTime < 0 || c.TransportWindow < 0 || c.PaymentTerm < 0 {
		errs = multierror.Append(errs, errors.New("seller: negative duration"))
	}
	if err := c.Fleet.Validate(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("seller fleet: %w", err))
	}
	if err := c.Overdue.Validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// Seller is the selling role: it quotes, accepts orders, ships and bills.
type Seller struct {
	cfg  SellerConfig
	a    *actor.Actor
	role *actor.Role

	goods    map[uint64]*content.InventoryRelease // Grouping id -> released goods awaiting transport
	decided  map[uint64]bool                      // Grouping ids whose transport was ordered
	shipping map[uint64]*engine.Event             // Grouping id -> scheduled release request
}

// NewSeller gives a the selling role.
func NewSeller(a *actor.Actor, cfg SellerConfig) (*Seller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Seller{
		cfg:      cfg,
		a:        a,
		goods:    make(map[uint64]*content.InventoryRelease),
		decided:  make(map[uint64]bool),
		shipping: make(map[uint64]*engine.Event),
	}
	products := actor.ForProducts(cfg.Products...)
	role, err := actor.NewRole(RoleSelling,
		[]content.Kind{content.KindRequestForQuote, content.KindOrder, content.KindInventoryRelease, content.KindTransportPickup},
		actor.On(s.onRFQ, products),
		actor.On(s.onOrder, products),
		actor.On(s.onReservation, products),
		actor.On(s.onRelease, products),
		actor.On(s.onTransportQuote, products),
		actor.On(s.onPickup, products),
	)
	if err != nil {
		return nil, err
	}
	if err := a.AddRole(role); err != nil {
		return nil, err
	}
	s.role = role
	return s, nil
}

// Role returns the underlying actor role.
func (s *Seller) Role() *actor.Role { return s.role }

func (s *Seller) warehouse() string {
	if s.cfg.Warehouse == "" {
		return s.a.ID()
	}
	return s.cfg.Warehouse
}

// available is the amount the seller can promise. Stock held by another
// actor is not visible to the seller, so it quotes what was requested.
func (s *Seller) available(product string, requested float64) float64 {
	if s.cfg.QuoteWithoutStock || s.warehouse() != s.a.ID() {
		return requested
	}
	return min(requested, s.a.Ledger().Virtual(product))
}

func (s *Seller) send(c content.Content) bool {
	if err := s.a.Send(c, 0); err != nil {
		slog.Error("seller message not sent", "actor", s.a.ID(), "kind", c.Kind(), "error", err)
		return false
	}
	return true
}

func (s *Seller) order(gid uint64) (*content.Order, bool) {
	orders := content.ListOf[*content.Order](s.a.Store(), gid)
	if len(orders) == 0 {
		return nil, false
	}
	return orders[len(orders)-1], true
}

func (s *Seller) onRFQ(r *content.RequestForQuote) {
	amount := s.available(r.Product.Name, r.Amount)
	if amount <= 0 {
		slog.Debug("no stock to quote", "actor", s.a.ID(), "product", r.Product.Name, "group", r.GroupingID)
		return
	}
	now := s.a.Now()
	estimate := logistics.Direct(s.a.Location(), r.Location, s.cfg.Fleet).Duration(r.Product)
	delivery := engine.Max(now.Add(s.cfg.HandlingTime+estimate), r.EarliestDate)
	s.send(&content.Quote{
		Header:               content.Reply(r),
		RFQID:                r.ID,
		Product:              r.Product,
		Amount:               amount,
		UnitPrice:            r.Product.UnitMarketPrice.Scale(1 + s.cfg.ProfitMargin),
		ProposedDeliveryDate: delivery,
		ValidUntil:           now.Add(s.cfg.QuoteValidity),
		Location:             s.a.Location(),
	})
}

// checkOrder returns why o cannot be accepted, or "" if it can.
func (s *Seller) checkOrder(o *content.Order) string {
	q, ok := content.Lookup[*content.Quote](s.a.Store(), o.QuoteID)
	switch {
	case !ok || q.Sender != s.a.ID():
		return "unknown quote"
	case q.ValidUntil < s.a.Now():
		return "quote expired"
	case o.Amount > q.Amount:
		return fmt.Sprintf("ordered %v exceeds quoted %v", o.Amount, q.Amount)
	case o.UnitPrice < q.UnitPrice:
		return "price below quote"
	case s.available(o.Product.Name, o.Amount) < o.Amount:
		return "insufficient stock"
	}
	return ""
}

func (s *Seller) onOrder(o *content.Order) {
	reason := s.checkOrder(o)
	conf := &content.OrderConfirmation{
		Header:       content.Reply(o),
		OrderID:      o.ID,
		Product:      o.Product,
		Accepted:     reason == "",
		Reason:       reason,
		DeliveryDate: o.DeliveryDate,
	}
	if !s.send(conf) {
		slog.Error("order dropped, confirmation not sent", "actor", s.a.ID(), "buyer", o.Sender, "group", o.GroupingID, "accepted", conf.Accepted)
		return
	}
	if !conf.Accepted {
		slog.Info("order rejected", "actor", s.a.ID(), "buyer", o.Sender, "group", o.GroupingID, "reason", reason)
		return
	}
	s.a.Emit(engine.CategoryOrder, "accepted",
		fmt.Sprintf("%v %s for %s", o.Amount, o.Product.Name, o.Sender),
		map[string]any{"product": o.Product.Name, "amount": o.Amount, "buyer": o.Sender, "group": o.GroupingID})
	s.send(&content.InventoryReservationRequest{
		Header:  content.NewHeader(s.a.ID(), s.warehouse(), o.GroupingID),
		OrderID: o.ID,
		Product: o.Product,
		Amount:  o.Amount,
	})
}

// onReservation schedules shipping so the goods arrive on the promised date.
func (s *Seller) onReservation(r *content.InventoryReservation) {
	o, ok := s.order(r.GroupingID)
	if !ok {
		slog.Warn("reservation for unknown order", "actor", s.a.ID(), "group", r.GroupingID)
		return
	}
	estimate := logistics.Direct(s.a.Location(), o.Location, s.cfg.Fleet).Duration(o.Product)
	shipAt := o.DeliveryDate.Add(-estimate)
	ev, err := s.a.At(shipAt, "ship order", func() {
		delete(s.shipping, o.GroupingID)
		s.send(&content.InventoryReleaseRequest{
			Header:  content.NewHeader(s.a.ID(), s.warehouse(), o.GroupingID),
			OrderID: o.ID,
			Product: o.Product,
			Amount:  o.Amount,
		})
	})
	if err != nil {
		slog.Error("shipping not scheduled", "actor", s.a.ID(), "error", err)
		return
	}
	s.shipping[o.GroupingID] = ev
}

// onRelease procures transport for released goods, or drives them with the
// seller's own fleet when no carrier is configured.
func (s *Seller) onRelease(r *content.InventoryRelease) {
	o, ok := s.order(r.GroupingID)
	if !ok || r.Goods == nil {
		slog.Warn("release for unknown order", "actor", s.a.ID(), "group", r.GroupingID)
		return
	}
	s.goods[o.GroupingID] = r
	if len(s.cfg.Transporters) == 0 {
		s.ownFleet(o, r)
		return
	}
	for _, t := range s.cfg.Transporters {
		s.send(&content.TransportQuoteRequest{
			Header:      content.NewHeader(s.a.ID(), t, o.GroupingID),
			OrderID:     o.ID,
			Product:     o.Product,
			Amount:      o.Amount,
			Origin:      r.Goods.Origin,
			Destination: o.Location,
			ShipDate:    s.a.Now(),
		})
	}
	gid := o.GroupingID
	if _, err := s.a.After(s.cfg.TransportWindow, "choose transport", func() { s.chooseTransport(gid) }); err != nil {
		slog.Error("transport choice not scheduled", "actor", s.a.ID(), "error", err)
	}
}

func (s *Seller) goodsFor(o *content.Order, r *content.InventoryRelease) logistics.Shipment {
	g := *r.Goods
	g.GroupingID = o.GroupingID
	g.Sender = s.a.ID()
	g.Receiver = o.Sender
	g.Value = o.Price()
	return g
}

func (s *Seller) ownFleet(o *content.Order, r *content.InventoryRelease) {
	s.decided[o.GroupingID] = true
	opt := logistics.Direct(r.Goods.Origin, o.Location, s.cfg.Fleet)
	_, err := transport.Execute(s.a, transport.Job{
		OrderID:    o.ID,
		GroupingID: o.GroupingID,
		Option:     opt,
		Goods:      s.goodsFor(o, r),
		Shipper:    s.a.ID(),
		Consignee:  o.Sender,
	})
	if err != nil {
		slog.Error("own transport failed", "actor", s.a.ID(), "group", o.GroupingID, "error", err)
	}
}

func (s *Seller) onTransportQuote(q *content.TransportQuote) {
	gid := q.GroupingID
	if s.decided[gid] {
		return
	}
	store := s.a.Store()
	if store.CountDir(gid, content.KindTransportQuote, content.Received) >= store.CountDir(gid, content.KindTransportQuoteRequest, content.Sent) {
		s.chooseTransport(gid)
	}
}

type quotedOffer struct {
	quote *content.TransportQuote
	offer content.TransportOffer
}

// chooseTransport orders the cheapest valid offer, then the fastest. Without
// any offer the goods go by the seller's own fleet.
func (s *Seller) chooseTransport(gid uint64) {
	if s.decided[gid] {
		return
	}
	o, ok := s.order(gid)
	r := s.goods[gid]
	if !ok || r == nil {
		return
	}
	now := s.a.Now()
	var offers []quotedOffer
	for _, q := range content.ListOf[*content.TransportQuote](s.a.Store(), gid) {
		if q.ValidUntil < now {
			continue
		}
		for _, off := range q.Offers {
			offers = append(offers, quotedOffer{quote: q, offer: off})
		}
	}
	if len(offers) == 0 {
		slog.Info("no transport offers, using own fleet", "actor", s.a.ID(), "group", gid)
		s.ownFleet(o, r)
		return
	}
	best := lo.MinBy(offers, func(a, b quotedOffer) bool {
		if a.offer.Price != b.offer.Price {
			return a.offer.Price < b.offer.Price
		}
		return a.offer.Duration < b.offer.Duration
	})
	s.decided[gid] = true
	goods := s.goodsFor(o, r)
	s.send(&content.TransportOrder{
		Header:    content.Reply(best.quote),
		QuoteID:   best.quote.ID,
		Offer:     best.offer,
		Goods:     &goods,
		Consignee: o.Sender,
	})
}

// onPickup announces the shipment to the buyer and bills it.
func (s *Seller) onPickup(p *content.TransportPickup) {
	o, ok := s.order(p.GroupingID)
	if !ok {
		slog.Warn("pickup for unknown order", "actor", s.a.ID(), "group", p.GroupingID)
		return
	}
	delete(s.goods, o.GroupingID)
	s.send(&content.Shipment{
		Header:           content.NewHeader(s.a.ID(), o.Sender, o.GroupingID),
		OrderID:          o.ID,
		Goods:            p.Goods,
		EstimatedArrival: p.EstimatedArrival,
	})
	b := &content.Bill{
		Header:  content.NewHeader(s.a.ID(), o.Sender, o.GroupingID),
		OrderID: o.ID,
		Product: o.Product,
		Amount:  o.Amount,
		Price:   o.Price(),
		DueDate: s.a.Now().Add(s.cfg.PaymentTerm),
	}
	if err := issueBill(s.a, b, s.cfg.Overdue); err != nil {
		slog.Error("bill not issued", "actor", s.a.ID(), "error", err)
	}
}
