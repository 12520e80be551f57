// Package trade implements the negotiation roles of the simulation: buying,
// selling, warehousing, directory search and accounting, plus the demand,
// consumption and production processes that feed them.
//
// A transaction is not one state machine but a chain of handlers owned by
// different actors, correlated by the grouping id of the originating Demand:
//
//	Demand -> SearchRequest/SearchAnswer -> RequestForQuote -> Quote -> Order
//	-> OrderConfirmation -> InventoryReservation -> InventoryRelease
//	-> TransportQuote/TransportOrder -> TransportPickup -> Shipment + Bill
//	-> TransportDelivery -> Payment
//
// Every handler consults the owning actor's content store to decide whether
// a step already happened. Shortfalls of stock or money are retried daily;
// missing follow-ups past their deadline are settled by penalty transfers.
package trade

import (
	"fmt"
	"time"

	"github.com/talgya/tradesim/internal/dist"
	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
)

// RetryDelay is the fixed delay before a stock or funds shortfall is retried.
// Retries are unbounded.
const RetryDelay = engine.Day

// Capability names of the trade roles.
const (
	RoleBuying      = "buying"
	RoleSelling     = "selling"
	RoleWarehousing = "warehousing"
	RoleDirectory   = "directory"
	RoleAccounting  = "accounting"
	RoleConsuming   = "consuming"
	RoleProducing   = "producing"
)

// Timing selects when a bill is paid relative to its due date.
type Timing string

const (
	OnTime    Timing = "on_time"
	Early     Timing = "early"
	Late      Timing = "late"
	Immediate Timing = "immediate"
)

// PaymentPolicy decides when an actor pays its bills.
type PaymentPolicy struct {
	Timing Timing
	Delay  dist.Duration // Offset for Early and Late; nil means zero
}

// Target returns when a bill due at due should be paid, never before now.
func (p PaymentPolicy) Target(now, due engine.Time) engine.Time {
	var delay time.Duration
	if p.Delay != nil {
		delay = p.Delay.Draw()
	}
	target := due
	switch p.Timing {
	case Early:
		target = due.Add(-delay)
	case Late:
		target = due.Add(delay)
	case Immediate:
		target = now
	}
	return engine.Max(target, now)
}

// Validate checks the timing name.
func (p PaymentPolicy) Validate() error {
	switch p.Timing {
	case OnTime, Early, Late, Immediate:
		return nil
	case "":
		return nil
	default:
		return fmt.Errorf("unknown payment timing %q", p.Timing)
	}
}

// Fine is a penalty of Fixed plus Margin times the principal. Prorated fines
// are multiplied by the number of started days late.
type Fine struct {
	Fixed    economy.Money
	Margin   float64
	Prorated bool
}

// Amount computes the fine for a principal that is late by the given time.
func (f Fine) Amount(principal economy.Money, late time.Duration) economy.Money {
	fine := f.Fixed + principal.Scale(f.Margin)
	if f.Prorated {
		days := max(float64((late+engine.Day-1)/engine.Day), 1)
		fine = fine.Scale(days)
	}
	return max(fine, 0)
}

// Penalty is a deadline check scheduled at a promised date plus Grace.
type Penalty struct {
	Grace time.Duration
	Fine  Fine
}

// Validate rejects negative parameters.
func (p *Penalty) Validate() error {
	if p == nil {
		return nil
	}
	if p.Grace < 0 {
		return fmt.Errorf("penalty: negative grace period %v", p.Grace)
	}
	if p.Fine.Fixed < 0 || p.Fine.Margin < 0 {
		return fmt.Errorf("penalty: negative fine %+v", p.Fine)
	}
	return nil
}
