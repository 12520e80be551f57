package economy

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientAmount signals that less stock is physically present
	// than a release asks for. Callers retry later rather than fail.
	ErrInsufficientAmount = errors.New("economy: insufficient amount in stock")
	// ErrUnknownProduct is returned for products the ledger does not track.
	ErrUnknownProduct = errors.New("economy: product not in ledger")
	// ErrNegativeAmount is returned for negative quantities.
	ErrNegativeAmount = errors.New("economy: negative amount")
)

// Stock is the quantity state of one product in one actor's inventory.
type Stock struct {
	Product  *Product `json:"product"`
	Actual   float64  `json:"actual"`   // Physically present
	Ordered  float64  `json:"ordered"`  // Expected inbound
	Reserved float64  `json:"reserved"` // Promised outbound
	UnitCost Money    `json:"unit_cost"`

	orderedValue Money
}

// Virtual is the figure restocking policies monitor: actual + ordered - reserved.
// It may be transiently negative between a reservation and its release.
func (s Stock) Virtual() float64 {
	return s.Actual + s.Ordered - s.Reserved
}

// Ledger tracks per-product stock for a single actor. Only the owning actor
// mutates it, from inside its own handlers.
type Ledger struct {
	stock    map[string]*Stock
	order    []string
	onChange func(Stock)
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{stock: make(map[string]*Stock)}
}

// Observe registers a callback invoked after every mutation.
func (l *Ledger) Observe(fn func(Stock)) {
	l.onChange = fn
}

// Track starts tracking p with the given initial physical amount.
// Tracking an already-tracked product is a no-op.
func (l *Ledger) Track(p *Product, actual float64, unitCost Money) {
	if _, ok := l.stock[p.Name]; ok {
		return
	}
	l.stock[p.Name] = &Stock{Product: p, Actual: actual, UnitCost: unitCost}
	l.order = append(l.order, p.Name)
}

// Get returns a copy of the stock record for the named product.
func (l *Ledger) Get(name string) (Stock, bool) {
	s, ok := l.stock[name]
	if !ok {
		return Stock{}, false
	}
	return *s, true
}

// Products returns tracked product names in tracking order.
func (l *Ledger) Products() []string {
	return append([]string(nil), l.order...)
}

// Virtual returns the virtual amount for the named product (0 if untracked).
func (l *Ledger) Virtual(name string) float64 {
	s, ok := l.stock[name]
	if !ok {
		return 0
	}
	return s.Virtual()
}

func (l *Ledger) lookup(name string, amount float64) (*Stock, error) {
	if amount < 0 {
		return nil, fmt.Errorf("%s %v: %w", name, amount, ErrNegativeAmount)
	}
	s, ok := l.stock[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownProduct)
	}
	return s, nil
}

func (l *Ledger) changed(s *Stock) {
	if l.onChange != nil {
		l.onChange(*s)
	}
}

// Reserve promises amount of the product to an outbound transaction.
func (l *Ledger) Reserve(name string, amount float64) error {
	s, err := l.lookup(name, amount)
	if err != nil {
		return err
	}
	s.Reserved += amount
	l.changed(s)
	return nil
}

// Unreserve withdraws a promise made with Reserve without shipping.
func (l *Ledger) Unreserve(name string, amount float64) error {
	s, err := l.lookup(name, amount)
	if err != nil {
		return err
	}
	s.Reserved -= amount
	l.changed(s)
	return nil
}

// Release takes a reserved amount out of physical stock for shipping.
// It fails with ErrInsufficientAmount, leaving the ledger untouched, when
// less than amount is physically present.
func (l *Ledger) Release(name string, amount float64) error {
	s, err := l.lookup(name, amount)
	if err != nil {
		return err
	}
	if s.Actual < amount {
		return fmt.Errorf("release %v %s (actual %v): %w", amount, name, s.Actual, ErrInsufficientAmount)
	}
	s.Actual -= amount
	s.Reserved -= amount
	l.changed(s)
	return nil
}

// EnterOrdered records amount as expected inbound at unitCost.
func (l *Ledger) EnterOrdered(name string, amount float64, unitCost Money) error {
	s, err := l.lookup(name, amount)
	if err != nil {
		return err
	}
	s.Ordered += amount
	s.orderedValue += unitCost.Scale(amount)
	l.changed(s)
	return nil
}

// CancelOrdered removes amount from the expected inbound quantity, e.g.
// after an order was rejected.
func (l *Ledger) CancelOrdered(name string, amount float64) error {
	s, err := l.lookup(name, amount)
	if err != nil {
		return err
	}
	l.takeOrdered(s, amount)
	l.changed(s)
	return nil
}

// ReceiveOrdered moves an arrived inbound amount from ordered to actual.
func (l *Ledger) ReceiveOrdered(name string, amount float64) error {
	s, err := l.lookup(name, amount)
	if err != nil {
		return err
	}
	value := l.takeOrdered(s, amount)
	l.addActual(s, amount, value)
	l.changed(s)
	return nil
}

// takeOrdered lowers ordered by at most amount and returns the value of the
// part taken, at the average ordered unit cost.
func (l *Ledger) takeOrdered(s *Stock, amount float64) Money {
	if s.Ordered <= 0 {
		return s.UnitCost.Scale(amount)
	}
	take := min(amount, s.Ordered)
	unit := s.orderedValue.Scale(1 / s.Ordered)
	s.Ordered -= take
	s.orderedValue -= unit.Scale(take)
	if s.Ordered <= 0 {
		s.Ordered = 0
		s.orderedValue = 0
	}
	return unit.Scale(take) + s.UnitCost.Scale(amount-take)
}

// AddToActual adds physically present stock, e.g. from production.
func (l *Ledger) AddToActual(name string, amount float64, unitCost Money) error {
	s, err := l.lookup(name, amount)
	if err != nil {
		return err
	}
	l.addActual(s, amount, unitCost.Scale(amount))
	l.changed(s)
	return nil
}

func (l *Ledger) addActual(s *Stock, amount float64, value Money) {
	total := s.Actual + amount
	if total > 0 && s.Actual >= 0 {
		s.UnitCost = (s.UnitCost.Scale(s.Actual) + value).Scale(1 / total)
	}
	s.Actual = total
}

// RemoveFromActual takes at most amount out of physical stock and returns
// how much was actually removed, which may be less than requested.
func (l *Ledger) RemoveFromActual(name string, amount float64) float64 {
	s, err := l.lookup(name, amount)
	if err != nil {
		return 0
	}
	removed := min(amount, max(s.Actual, 0))
	s.Actual -= removed
	if removed > 0 {
		l.changed(s)
	}
	return removed
}
