package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/content"
	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/logistics"
	"github.com/talgya/tradesim/internal/world"
)

// RoleTransporting is the capability name of the carrier role.
const RoleTransporting = "transporting"

// CarrierConfig parameterizes a transport company.
type CarrierConfig struct {
	Modes         []logistics.Mode
	Hubs          []world.Location // Transshipment points offered as two-leg options
	Margin        float64          // Markup on the option cost
	QuoteValidity time.Duration
	PaymentTerm   time.Duration // Due date of the freight bill after delivery
}

// DefaultCarrierConfig returns a carrier with one road mode.
func DefaultCarrierConfig() CarrierConfig {
	return CarrierConfig{
		Modes: []logistics.Mode{{
			Name:          "truck",
			Speed:         10,
			LoadingTime:   30 * time.Minute,
			UnloadingTime: 30 * time.Minute,
			CostPerHex:    0.5,
			MinimumCost:   2,
		}},
		Margin:        0.1,
		QuoteValidity: 2 * engine.Day,
		PaymentTerm:   14 * engine.Day,
	}
}

// Validate checks the configuration.
func (c CarrierConfig) Validate() error {
	var errs *multierror.Error
	if len(c.Modes) == 0 {
		errs = multierror.Append(errs, errors.New("carrier: no transport modes"))
	}
	for _, m := range c.Modes {
		if err := m.Validate(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if c.Margin < 0 || c.QuoteValidity < 0 || c.PaymentTerm < 0 {
		errs = multierror.Append(errs, errors.New("carrier: negative margin, validity or payment term"))
	}
	return errs.ErrorOrNil()
}

// Carrier is the transporting role: it quotes options for moving goods and
// executes the ones ordered.
type Carrier struct {
	cfg      CarrierConfig
	a        *actor.Actor
	role     *actor.Role
	active   map[uint64]*Stepper
	executed int
}

// NewCarrier gives a the transporting role.
func NewCarrier(a *actor.Actor, cfg CarrierConfig) (*Carrier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Carrier{cfg: cfg, a: a, active: make(map[uint64]*Stepper)}
	role, err := actor.NewRole(RoleTransporting,
		[]content.Kind{content.KindTransportQuoteRequest, content.KindTransportOrder},
		actor.On(c.onQuoteRequest),
		actor.On(c.onOrder),
	)
	if err != nil {
		return nil, err
	}
	if err := a.AddRole(role); err != nil {
		return nil, err
	}
	c.role = role
	return c, nil
}

// Active returns the number of shipments in transit.
func (c *Carrier) Active() int { return len(c.active) }

// Executed returns the number of completed transports.
func (c *Carrier) Executed() int { return c.executed }

// Offers plans and prices every option the carrier can run between origin
// and destination: each mode directly, and each mode through each hub.
func (c *Carrier) Offers(p *economy.Product, amount float64, origin, destination world.Location) []content.TransportOffer {
	var options []logistics.Option
	for _, m := range c.cfg.Modes {
		options = append(options, logistics.Direct(origin, destination, m))
	}
	for _, hub := range c.cfg.Hubs {
		if hub.Coord == origin.Coord || hub.Coord == destination.Coord {
			continue
		}
		for _, m := range c.cfg.Modes {
			options = append(options, logistics.ViaHub(origin, hub, destination, m, m))
		}
	}
	return lo.Map(options, func(o logistics.Option, _ int) content.TransportOffer {
		return content.TransportOffer{
			Option:   o,
			Price:    o.Cost(amount).Scale(1 + c.cfg.Margin),
			Duration: o.Duration(p),
		}
	})
}

func (c *Carrier) onQuoteRequest(req *content.TransportQuoteRequest) {
	q := &content.TransportQuote{
		Header:     content.Reply(req),
		RequestID:  req.ID,
		Product:    req.Product,
		Offers:     c.Offers(req.Product, req.Amount, req.Origin, req.Destination),
		ValidUntil: c.a.Now().Add(c.cfg.QuoteValidity),
	}
	if err := c.a.Send(q, 0); err != nil {
		slog.Error("transport quote not sent", "carrier", c.a.ID(), "error", err)
	}
}

func (c *Carrier) onOrder(o *content.TransportOrder) {
	if err := c.checkOrder(o); err != nil {
		slog.Warn("transport order refused", "carrier", c.a.ID(), "shipper", o.Sender, "group", o.GroupingID, "reason", err)
		c.a.Emit(engine.CategoryTransport, "refused", err.Error(), map[string]any{"group": o.GroupingID})
		return
	}
	job := Job{
		OrderID:    o.ID,
		GroupingID: o.GroupingID,
		Option:     o.Offer.Option,
		Goods:      *o.Goods,
		Shipper:    o.Sender,
		Consignee:  o.Consignee,
	}
	s, err := Execute(c.a, job)
	if err != nil {
		slog.Error("transport not started", "carrier", c.a.ID(), "group", o.GroupingID, "error", err)
		return
	}
	c.active[o.ID] = s
	s.OnDelivered = func(s *Stepper) {
		delete(c.active, o.ID)
		c.executed++
		c.bill(o)
	}
}

func (c *Carrier) checkOrder(o *content.TransportOrder) error {
	if o.Goods == nil {
		return errors.New("no goods")
	}
	q, ok := content.Lookup[*content.TransportQuote](c.a.Store(), o.QuoteID)
	if !ok || q.Sender != c.a.ID() {
		return fmt.Errorf("unknown transport quote %d", o.QuoteID)
	}
	if q.ValidUntil < c.a.Now() {
		return fmt.Errorf("transport quote %d expired at %v", q.ID, q.ValidUntil)
	}
	_, offered := lo.Find(q.Offers, func(off content.TransportOffer) bool {
		return off.Option.Name == o.Offer.Option.Name && off.Price == o.Offer.Price
	})
	if !offered {
		return fmt.Errorf("offer %q not in quote %d", o.Offer.Option.Name, q.ID)
	}
	return nil
}

func (c *Carrier) bill(o *content.TransportOrder) {
	if o.Offer.Price <= 0 {
		return
	}
	b := &content.Bill{
		Header:  content.Reply(o),
		OrderID: o.ID,
		Product: o.Goods.Product,
		Amount:  o.Goods.Amount,
		Price:   o.Offer.Price,
		DueDate: c.a.Now().Add(c.cfg.PaymentTerm),
	}
	if err := c.a.Send(b, 0); err != nil {
		slog.Error("freight bill not sent", "carrier", c.a.ID(), "error", err)
	}
}
