// Package config loads scenario descriptions from TOML: the product
// catalog, the actors with their locations and accounts, and the roles each
// actor plays.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/talgya/tradesim/internal/dist"
)

// Duration is a time.Duration written as text ("36h", "15m") in TOML.
type Duration time.Duration

// UnmarshalText implements interface for TOML decoding
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

const day = Duration(24 * time.Hour)

// Config is a complete scenario.
type Config struct {
	Seed     int64     `toml:"seed"`
	Start    time.Time `toml:"start"`
	Days     float64   `toml:"days"`
	Products []Product `toml:"products"`
	Actors   []Actor   `toml:"actors"`
}

// Product is a catalog entry.
type Product struct {
	Name   string  `toml:"name"`
	Unit   string  `toml:"unit"`
	Price  float64 `toml:"price"`
	Volume float64 `toml:"volume"`
}

// Actor describes one participant and its roles. A nil role section means
// the actor does not play that role.
type Actor struct {
	ID      string  `toml:"id"`
	Name    string  `toml:"name"`
	Q       int     `toml:"q"`
	R       int     `toml:"r"`
	Bank    string  `toml:"bank"` // Actor holding the account; empty for none
	Balance float64 `toml:"balance"`
	Stock   []Stock `toml:"stock"`

	Buyer       *Buyer        `toml:"buyer"`
	Restock     []Restock     `toml:"restock"`
	Seller      *Seller       `toml:"seller"`
	Warehouse   *Warehouse    `toml:"warehouse"`
	Directory   *Directory    `toml:"directory"`
	Carrier     *Carrier      `toml:"carrier"`
	Accounting  *Accounting   `toml:"accounting"`
	Consumption []Consumption `toml:"consumption"`
	Production  []Production  `toml:"production"`
	Banking     *Banking      `toml:"banking"`
	Costs       []Cost        `toml:"costs"`
}

// Stock is an initial inventory position.
type Stock struct {
	Product  string  `toml:"product"`
	Actual   float64 `toml:"actual"`
	UnitCost float64 `toml:"unit_cost"`
}

// Penalty is a deadline with a fine.
type Penalty struct {
	Grace    Duration `toml:"grace"`
	Fixed    float64  `toml:"fixed"`
	Margin   float64  `toml:"margin"`
	Prorated bool     `toml:"prorated"`
}

// Buyer configures the buying role.
type Buyer struct {
	Directory       string   `toml:"directory"`
	Suppliers       []string `toml:"suppliers"`
	MaxDistance     int      `toml:"max_distance"`
	MaxAnswers      int      `toml:"max_answers"`
	QuoteWindow     Duration `toml:"quote_window"`
	MaxPriceMargin  *float64 `toml:"max_price_margin"`  // Nil keeps the default, 0 accepts no markup
	MinAmountMargin *float64 `toml:"min_amount_margin"` // Nil keeps the default, 0 requires the full amount
	Late            *Penalty `toml:"late"`
	Products        []string `toml:"products"`
}

// Restock configures a restocking process of the buying role.
type Restock struct {
	Product      string    `toml:"product"`
	ReorderPoint float64   `toml:"reorder_point"`
	OrderUpTo    float64   `toml:"order_up_to"`
	Window       Duration  `toml:"window"`
	Interval     dist.Spec `toml:"interval"` // In days
}

// Mode is a transport mode.
type Mode struct {
	Name          string   `toml:"name"`
	Speed         float64  `toml:"speed"`
	LoadingTime   Duration `toml:"loading_time"`
	UnloadingTime Duration `toml:"unloading_time"`
	CostPerHex    float64  `toml:"cost_per_hex"`
	MinimumCost   float64  `toml:"minimum_cost"`
}

// Seller configures the selling role.
type Seller struct {
	ProfitMargin      *float64 `toml:"profit_margin"` // Nil keeps the default
	QuoteValidity     Duration `toml:"quote_validity"`
	HandlingTime      Duration `toml:"handling_time"`
	QuoteWithoutStock bool     `toml:"quote_without_stock"`
	Warehouse         string   `toml:"warehouse"`
	Transporters      []string `toml:"transporters"`
	Fleet             *Mode    `toml:"fleet"`
	TransportWindow   Duration `toml:"transport_window"`
	PaymentTerm       Duration `toml:"payment_term"`
	Overdue           *Penalty `toml:"overdue"`
	Products          []string `toml:"products"`
}

// Warehouse configures the warehousing role.
type Warehouse struct {
	Clients []string `toml:"clients"`
}

// Directory configures the directory role.
type Directory struct {
	Listings map[string][]string `toml:"listings"` // Product name to supplier ids
}

// Hub is a transshipment point.
type Hub struct {
	Name string `toml:"name"`
	Q    int    `toml:"q"`
	R    int    `toml:"r"`
}

// Carrier configures the transporting role.
type Carrier struct {
	Modes         []Mode   `toml:"modes"`
	Hubs          []Hub    `toml:"hubs"`
	Margin        float64  `toml:"margin"`
	QuoteValidity Duration `toml:"quote_validity"`
	PaymentTerm   Duration `toml:"payment_term"`
}

// Accounting configures when the actor pays its bills.
type Accounting struct {
	Timing string     `toml:"timing"`
	Delay  *dist.Spec `toml:"delay"` // In days
}

// Noise modulates an amount over time.
type Noise struct {
	Amplitude float64 `toml:"amplitude"`
	Period    float64 `toml:"period"` // Days
}

// Consumption configures a customer demand process.
type Consumption struct {
	Product  string    `toml:"product"`
	Amount   dist.Spec `toml:"amount"`
	Interval dist.Spec `toml:"interval"` // In days
	Price    float64   `toml:"price"`    // Paid by customers per unit
	Noise    *Noise    `toml:"noise"`
}

// Production configures a manufacturing process.
type Production struct {
	Product  string    `toml:"product"`
	Amount   dist.Spec `toml:"amount"`
	Interval dist.Spec `toml:"interval"` // In days
	UnitCost float64   `toml:"unit_cost"`
}

// Banking configures the banking role.
type Banking struct {
	DepositRate   float64  `toml:"deposit_rate"`
	OverdraftRate float64  `toml:"overdraft_rate"`
	Interval      Duration `toml:"interval"`
}

// Cost is a recurring fixed cost.
type Cost struct {
	Name     string   `toml:"name"`
	Amount   float64  `toml:"amount"`
	Interval Duration `toml:"interval"`
}

// Load reads and validates a scenario file. Seed, start and days default to
// 1, 2024-01-01 and 60 when omitted; zero role parameters are replaced by
// the role defaults when the scenario is built.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(string(data))
}

// Parse decodes and validates a scenario document.
func Parse(doc string) (*Config, error) {
	cfg := &Config{Seed: 1, Start: defaultStart, Days: 60}
	md, err := toml.Decode(doc, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode config: unknown keys %v", undecoded)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Encode renders cfg as TOML.
func (c *Config) Encode() (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Validate checks that the scenario is complete and self-consistent.
func (c *Config) Validate() error {
	var errs *multierror.Error
	add := func(format string, args ...any) {
		errs = multierror.Append(errs, fmt.Errorf(format, args...))
	}
	if c.Days <= 0 {
		add("days must be positive, got %v", c.Days)
	}

	products := make(map[string]bool)
	for _, p := range c.Products {
		switch {
		case p.Name == "":
			add("product without name")
		case products[p.Name]:
			add("duplicate product %q", p.Name)
		case p.Price < 0 || p.Volume < 0:
			add("product %s: negative price or volume", p.Name)
		}
		products[p.Name] = true
	}
	ids := make(map[string]*Actor)
	for i := range c.Actors {
		a := &c.Actors[i]
		if a.ID == "" {
			add("actor %d without id", i)
			continue
		}
		if ids[a.ID] != nil {
			add("duplicate actor %q", a.ID)
		}
		ids[a.ID] = a
	}
	if len(c.Actors) == 0 {
		errs = multierror.Append(errs, errors.New("no actors"))
	}

	for i := range c.Actors {
		a := &c.Actors[i]
		actorErrs := a.validate(products, ids)
		for _, err := range actorErrs {
			add("actor %s: %w", a.ID, err)
		}
	}
	return errs.ErrorOrNil()
}

func (a *Actor) validate(products map[string]bool, ids map[string]*Actor) []error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}
	product := func(where, name string) {
		if !products[name] {
			bad("%s: unknown product %q", where, name)
		}
	}
	actor := func(where, id string) {
		if id != "" && ids[id] == nil {
			bad("%s: unknown actor %q", where, id)
		}
	}
	spec := func(where string, s dist.Spec) {
		if err := s.Validate(); err != nil {
			bad("%s: %w", where, err)
		}
	}

	if a.Bank != "" && a.Bank != a.ID {
		actor("bank", a.Bank)
		if b := ids[a.Bank]; b != nil && b.Banking == nil {
			bad("bank %q has no banking role", a.Bank)
		}
	}
	for _, s := range a.Stock {
		product("stock", s.Product)
	}
	if a.Buyer != nil {
		actor("buyer directory", a.Buyer.Directory)
		for _, s := range a.Buyer.Suppliers {
			actor("buyer supplier", s)
		}
		if a.Buyer.Directory == "" && len(a.Buyer.Suppliers) == 0 {
			bad("buyer: neither directory nor suppliers")
		}
		for _, p := range a.Buyer.Products {
			product("buyer", p)
		}
	}
	for _, r := range a.Restock {
		product("restock", r.Product)
		spec("restock interval", r.Interval)
		if a.Buyer == nil {
			bad("restock of %s without buyer role", r.Product)
		}
		if r.OrderUpTo <= r.ReorderPoint {
			bad("restock %s: order_up_to must exceed reorder_point", r.Product)
		}
	}
	if a.Seller != nil {
		actor("seller warehouse", a.Seller.Warehouse)
		for _, t := range a.Seller.Transporters {
			actor("seller transporter", t)
			if c := ids[t]; c != nil && c.Carrier == nil {
				bad("transporter %q has no carrier role", t)
			}
		}
		if a.Seller.Warehouse == "" && a.Warehouse == nil {
			bad("seller without own or remote warehouse")
		}
		if a.Account() && a.Accounting == nil {
			bad("seller with account but no accounting role")
		}
	}
	if a.Directory != nil {
		for p, suppliers := range a.Directory.Listings {
			product("directory", p)
			for _, s := range suppliers {
				actor("directory listing", s)
			}
		}
	}
	if a.Carrier != nil && len(a.Carrier.Modes) == 0 {
		bad("carrier without modes")
	}
	if a.Accounting != nil {
		if !a.Account() {
			bad("accounting without bank account")
		}
		if a.Accounting.Delay != nil {
			spec("accounting delay", *a.Accounting.Delay)
		}
	}
	for _, cons := range a.Consumption {
		product("consumption", cons.Product)
		spec("consumption amount", cons.Amount)
		spec("consumption interval", cons.Interval)
	}
	for _, p := range a.Production {
		product("production", p.Product)
		spec("production amount", p.Amount)
		spec("production interval", p.Interval)
	}
	if len(a.Costs) > 0 && !a.Account() {
		bad("fixed costs without bank account")
	}
	for _, c := range a.Costs {
		if c.Amount < 0 || c.Interval <= 0 {
			bad("cost %q: need non-negative amount and positive interval", c.Name)
		}
	}
	return errs
}

// Account reports whether the actor holds a bank account.
func (a *Actor) Account() bool { return a.Bank != "" }
