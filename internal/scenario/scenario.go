// Package scenario builds a runnable model from a configuration: it creates
// the actors, opens their accounts and attaches the configured roles.
package scenario

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/bank"
	"github.com/talgya/tradesim/internal/config"
	"github.com/talgya/tradesim/internal/dist"
	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/logistics"
	"github.com/talgya/tradesim/internal/trade"
	"github.com/talgya/tradesim/internal/transport"
	"github.com/talgya/tradesim/internal/world"
)

// Scenario is a model assembled from a configuration, with handles on the
// roles that report statistics.
type Scenario struct {
	Config  *config.Config
	Model   *actor.Model
	Catalog *economy.Catalog

	Buyers     map[string]*trade.Buyer
	Sellers    map[string]*trade.Seller
	Warehouses map[string]*trade.Warehouse
	Consumers  map[string]*trade.Consumer
	Producers  map[string]*trade.Producer
	Carriers   map[string]*transport.Carrier
	Banks      map[string]*bank.Bank

	stream *dist.Stream
}

// Build assembles cfg into a model that has not been started yet.
func Build(cfg *config.Config) (*Scenario, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	products := make([]economy.Product, 0, len(cfg.Products))
	for _, p := range cfg.Products {
		products = append(products, economy.Product{
			Name:            p.Name,
			Unit:            p.Unit,
			UnitMarketPrice: economy.Money(p.Price),
			UnitVolume:      p.Volume,
		})
	}
	catalog, err := economy.NewCatalog(products...)
	if err != nil {
		return nil, err
	}

	s := &Scenario{
		Config:     cfg,
		Model:      actor.NewModel(engine.NewScheduler(cfg.Start)),
		Catalog:    catalog,
		Buyers:     make(map[string]*trade.Buyer),
		Sellers:    make(map[string]*trade.Seller),
		Warehouses: make(map[string]*trade.Warehouse),
		Consumers:  make(map[string]*trade.Consumer),
		Producers:  make(map[string]*trade.Producer),
		Carriers:   make(map[string]*transport.Carrier),
		Banks:      make(map[string]*bank.Bank),
		stream:     dist.NewStream(cfg.Seed),
	}

	for _, ac := range cfg.Actors {
		name := ac.Name
		if name == "" {
			name = ac.ID
		}
		loc := world.Location{Name: name, Coord: world.HexCoord{Q: ac.Q, R: ac.R}}
		if _, err := s.Model.NewActor(ac.ID, name, loc); err != nil {
			return nil, err
		}
	}
	if err := s.openAccounts(); err != nil {
		return nil, err
	}
	for i := range cfg.Actors {
		ac := &cfg.Actors[i]
		a, _ := s.Model.Actor(ac.ID)
		if err := s.attach(a, ac); err != nil {
			return nil, fmt.Errorf("actor %s: %w", ac.ID, err)
		}
	}
	slog.Info("scenario built", "actors", len(cfg.Actors), "products", len(products), "seed", cfg.Seed)
	return s, nil
}

// openAccounts creates the banks first, then the customer accounts.
func (s *Scenario) openAccounts() error {
	for _, ac := range s.Config.Actors {
		if ac.Banking == nil {
			continue
		}
		a, _ := s.Model.Actor(ac.ID)
		if ac.Bank == ac.ID {
			a.OpenAccount(ac.ID, economy.Money(ac.Balance))
		}
		rates := bank.DefaultRates()
		rates.Deposit = ac.Banking.DepositRate
		rates.Overdraft = ac.Banking.OverdraftRate
		if ac.Banking.Interval > 0 {
			rates.Interval = ac.Banking.Interval.Std()
		}
		b, err := bank.NewBank(a, rates)
		if err != nil {
			return fmt.Errorf("bank %s: %w", ac.ID, err)
		}
		s.Banks[ac.ID] = b
	}
	for _, ac := range s.Config.Actors {
		if ac.Bank == "" || ac.Bank == ac.ID {
			continue
		}
		a, _ := s.Model.Actor(ac.ID)
		if _, err := s.Banks[ac.Bank].Open(a, economy.Money(ac.Balance)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scenario) product(name string) *economy.Product {
	p, _ := s.Catalog.Get(name)
	return p
}

func (s *Scenario) row(name string) int {
	for i, n := range s.Catalog.Names() {
		if n == name {
			return i
		}
	}
	return 0
}

// draws returns a stream for one process, independent of all others.
func (s *Scenario) draws(parts ...string) *dist.Stream {
	return s.stream.Derive(strings.Join(parts, "/"))
}

func (s *Scenario) attach(a *actor.Actor, ac *config.Actor) error {
	for _, st := range ac.Stock {
		a.Ledger().Track(s.product(st.Product), st.Actual, economy.Money(st.UnitCost))
	}
	if ac.Buyer != nil || ac.Seller != nil || ac.Warehouse != nil {
		for _, name := range s.Catalog.Names() {
			p := s.product(name)
			a.Ledger().Track(p, 0, p.UnitMarketPrice)
		}
	}

	if ac.Accounting != nil {
		policy := trade.PaymentPolicy{Timing: trade.Timing(ac.Accounting.Timing)}
		if policy.Timing == "" {
			policy.Timing = trade.OnTime
		}
		if ac.Accounting.Delay != nil {
			d, err := ac.Accounting.Delay.Duration(s.draws(ac.ID, "payment"), engine.Day)
			if err != nil {
				return err
			}
			policy.Delay = d
		}
		if _, err := trade.NewAccounting(a, policy); err != nil {
			return err
		}
	}
	if ac.Warehouse != nil {
		w, err := trade.NewWarehouse(a, ac.Warehouse.Clients...)
		if err != nil {
			return err
		}
		s.Warehouses[ac.ID] = w
	}
	if ac.Directory != nil {
		if _, err := trade.NewDirectory(a, ac.Directory.Listings); err != nil {
			return err
		}
	}
	if ac.Carrier != nil {
		c, err := transport.NewCarrier(a, carrierConfig(ac.Carrier))
		if err != nil {
			return err
		}
		s.Carriers[ac.ID] = c
	}
	if ac.Seller != nil {
		sl, err := trade.NewSeller(a, sellerConfig(ac.Seller))
		if err != nil {
			return err
		}
		s.Sellers[ac.ID] = sl
	}
	if ac.Buyer != nil {
		if err := s.attachBuyer(a, ac); err != nil {
			return err
		}
	}
	if len(ac.Consumption) > 0 {
		if err := s.attachConsumer(a, ac); err != nil {
			return err
		}
	}
	if len(ac.Production) > 0 {
		if err := s.attachProducer(a, ac); err != nil {
			return err
		}
	}
	if len(ac.Costs) > 0 {
		costs := make([]bank.FixedCost, 0, len(ac.Costs))
		for _, c := range ac.Costs {
			costs = append(costs, bank.FixedCost{Name: c.Name, Amount: economy.Money(c.Amount), Interval: c.Interval.Std()})
		}
		if _, err := bank.NewCosts(a, costs...); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scenario) attachBuyer(a *actor.Actor, ac *config.Actor) error {
	c := ac.Buyer
	cfg := trade.DefaultBuyerConfig()
	cfg.Directory = c.Directory
	cfg.Suppliers = c.Suppliers
	cfg.MaxDistance = c.MaxDistance
	cfg.MaxAnswers = c.MaxAnswers
	cfg.Products = c.Products
	cfg.Late = penalty(c.Late)
	setDuration(&cfg.QuoteWindow, c.QuoteWindow)
	setFloat(&cfg.Criteria.MaxPriceMargin, c.MaxPriceMargin)
	setFloat(&cfg.Criteria.MinAmountMargin, c.MinAmountMargin)
	b, err := trade.NewBuyer(a, cfg)
	if err != nil {
		return err
	}
	for _, r := range ac.Restock {
		interval, err := r.Interval.Duration(s.draws(ac.ID, "restock", r.Product), engine.Day)
		if err != nil {
			return err
		}
		err = b.Restock(trade.RestockPolicy{
			Product:      s.product(r.Product),
			ReorderPoint: r.ReorderPoint,
			OrderUpTo:    r.OrderUpTo,
			Window:       r.Window.Std(),
			Interval:     interval,
		})
		if err != nil {
			return err
		}
	}
	s.Buyers[ac.ID] = b
	return nil
}

func (s *Scenario) attachConsumer(a *actor.Actor, ac *config.Actor) error {
	cs := make([]trade.Consumption, 0, len(ac.Consumption))
	for _, c := range ac.Consumption {
		amount, err := c.Amount.Amount(s.draws(ac.ID, "consume", c.Product))
		if err != nil {
			return err
		}
		if c.Noise != nil && c.Noise.Amplitude > 0 {
			amount = dist.Modulated{
				Base:  amount,
				Noise: dist.NewNoise(s.Config.Seed, c.Noise.Amplitude, c.Noise.Period),
				Row:   s.row(c.Product),
				Now:   s.Model.Now,
			}
		}
		interval, err := c.Interval.Duration(s.draws(ac.ID, "arrivals", c.Product), engine.Day)
		if err != nil {
			return err
		}
		cs = append(cs, trade.Consumption{
			Product:  s.product(c.Product),
			Amount:   amount,
			Interval: interval,
			Price:    economy.Money(c.Price),
		})
	}
	consumer, err := trade.NewConsumer(a, cs...)
	if err != nil {
		return err
	}
	s.Consumers[ac.ID] = consumer
	return nil
}

func (s *Scenario) attachProducer(a *actor.Actor, ac *config.Actor) error {
	ps := make([]trade.Production, 0, len(ac.Production))
	for _, p := range ac.Production {
		amount, err := p.Amount.Amount(s.draws(ac.ID, "produce", p.Product))
		if err != nil {
			return err
		}
		interval, err := p.Interval.Duration(s.draws(ac.ID, "batches", p.Product), engine.Day)
		if err != nil {
			return err
		}
		ps = append(ps, trade.Production{
			Product:  s.product(p.Product),
			Amount:   amount,
			Interval: interval,
			UnitCost: economy.Money(p.UnitCost),
		})
	}
	producer, err := trade.NewProducer(a, ps...)
	if err != nil {
		return err
	}
	s.Producers[ac.ID] = producer
	return nil
}

func sellerConfig(c *config.Seller) trade.SellerConfig {
	cfg := trade.DefaultSellerConfig()
	setFloat(&cfg.ProfitMargin, c.ProfitMargin)
	setDuration(&cfg.QuoteValidity, c.QuoteValidity)
	setDuration(&cfg.HandlingTime, c.HandlingTime)
	setDuration(&cfg.TransportWindow, c.TransportWindow)
	setDuration(&cfg.PaymentTerm, c.PaymentTerm)
	cfg.QuoteWithoutStock = c.QuoteWithoutStock
	cfg.Warehouse = c.Warehouse
	cfg.Transporters = c.Transporters
	cfg.Overdue = penalty(c.Overdue)
	cfg.Products = c.Products
	if c.Fleet != nil {
		cfg.Fleet = mode(*c.Fleet)
	}
	return cfg
}

func carrierConfig(c *config.Carrier) transport.CarrierConfig {
	cfg := transport.DefaultCarrierConfig()
	if len(c.Modes) > 0 {
		cfg.Modes = cfg.Modes[:0]
		for _, m := range c.Modes {
			cfg.Modes = append(cfg.Modes, mode(m))
		}
	}
	for _, h := range c.Hubs {
		cfg.Hubs = append(cfg.Hubs, world.Location{Name: h.Name, Coord: world.HexCoord{Q: h.Q, R: h.R}})
	}
	if c.Margin > 0 {
		cfg.Margin = c.Margin
	}
	setDuration(&cfg.QuoteValidity, c.QuoteValidity)
	setDuration(&cfg.PaymentTerm, c.PaymentTerm)
	return cfg
}

func mode(m config.Mode) logistics.Mode {
	return logistics.Mode{
		Name:          m.Name,
		Speed:         m.Speed,
		LoadingTime:   m.LoadingTime.Std(),
		UnloadingTime: m.UnloadingTime.Std(),
		CostPerHex:    economy.Money(m.CostPerHex),
		MinimumCost:   economy.Money(m.MinimumCost),
	}
}

func penalty(p *config.Penalty) *trade.Penalty {
	if p == nil {
		return nil
	}
	return &trade.Penalty{
		Grace: p.Grace.Std(),
		Fine:  trade.Fine{Fixed: economy.Money(p.Fixed), Margin: p.Margin, Prorated: p.Prorated},
	}
}

// setDuration overrides a default with a configured non-zero value.
func setDuration(dst *time.Duration, v config.Duration) {
	if v > 0 {
		*dst = v.Std()
	}
}

// setFloat overrides dst when v is configured, including an explicit zero.
func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}
