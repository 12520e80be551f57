// Package economy provides money, products, inventory ledgers and bank
// accounts: the per-actor state the trade protocol reads and mutates.
package economy

import (
	"github.com/dustin/go-humanize"
)

// Money is an amount of currency. Only comparison, addition and scalar
// multiplication are relied upon.
type Money float64

// Scale multiplies m by f.
func (m Money) Scale(f float64) Money {
	return Money(float64(m) * f)
}

// String formats m with thousands separators and two decimals.
func (m Money) String() string {
	return "$" + humanize.CommafWithDigits(float64(m), 2)
}
