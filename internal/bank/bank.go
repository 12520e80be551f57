// Package bank implements the banking role, which holds the accounts of
// other actors and accrues interest on them, and the fixed-cost role that
// debits an actor's account at a fixed interval.
package bank

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
)

const (
	RoleBanking = "banking"
	RoleCosts   = "costs"
)

const year = 365 * engine.Day

// ErrAccountExists is returned when a customer already holds an account.
var ErrAccountExists = errors.New("bank: customer already has an account")

// Rates are annual interest rates, applied pro rata every Interval.
type Rates struct {
	Deposit   float64
	Overdraft float64
	Interval  time.Duration
}

// DefaultRates accrues daily.
func DefaultRates() Rates {
	return Rates{Deposit: 0.02, Overdraft: 0.12, Interval: engine.Day}
}

// Validate checks the rates.
func (r Rates) Validate() error {
	if r.Deposit < 0 || r.Overdraft < 0 {
		return fmt.Errorf("bank: negative interest rate (deposit %v, overdraft %v)", r.Deposit, r.Overdraft)
	}
	if r.Interval <= 0 {
		return fmt.Errorf("bank: interest interval must be positive, got %v", r.Interval)
	}
	return nil
}

// Interest returns the interest for one interval on balance: positive when
// the bank pays the customer, negative when the customer pays the bank.
func (r Rates) Interest(balance economy.Money) economy.Money {
	share := float64(r.Interval) / float64(year)
	if balance >= 0 {
		return balance.Scale(r.Deposit * share)
	}
	return balance.Scale(r.Overdraft * share)
}

// Bank is the banking role. The bank is the counterparty of all interest.
type Bank struct {
	a         *actor.Actor
	rates     Rates
	role      *actor.Role
	customers []string
	paid      economy.Money
	earned    economy.Money
}

// NewBank gives a the banking role. The bank gets an account with itself
// when it has none.
func NewBank(a *actor.Actor, rates Rates) (*Bank, error) {
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	b := &Bank{a: a, rates: rates}
	role, err := actor.NewRole(RoleBanking, nil)
	if err != nil {
		return nil, err
	}
	if err := a.AddRole(role); err != nil {
		return nil, err
	}
	b.role = role
	if a.Account() == nil {
		a.OpenAccount(a.ID(), 0)
	}
	p, err := actor.NewProcess("accrue interest", actor.Every(rates.Interval), b.accrue)
	if err != nil {
		return nil, err
	}
	if err := role.AddProcess(p); err != nil {
		return nil, err
	}
	return b, nil
}

// Open opens an account for customer with an initial balance.
func (b *Bank) Open(customer *actor.Actor, initial economy.Money) (*economy.BankAccount, error) {
	if customer.Account() != nil {
		return nil, fmt.Errorf("%s at %s: %w", customer.ID(), b.a.ID(), ErrAccountExists)
	}
	acc := customer.OpenAccount(b.a.ID(), initial)
	b.customers = append(b.customers, customer.ID())
	return acc, nil
}

// Customers returns the ids of account holders in opening order.
func (b *Bank) Customers() []string { return append([]string(nil), b.customers...) }

// Paid returns the total interest paid out on deposits.
func (b *Bank) Paid() economy.Money { return b.paid }

// Earned returns the total overdraft interest collected.
func (b *Bank) Earned() economy.Money { return b.earned }

func (b *Bank) accrue() {
	m := b.a.Model()
	for _, id := range b.customers {
		c, ok := m.Actor(id)
		if !ok || c.Account() == nil {
			continue
		}
		interest := b.rates.Interest(c.Account().Balance())
		// Sub-cent amounts are not booked.
		if math.Abs(float64(interest)) < 0.01 {
			continue
		}
		from, to := b.a.ID(), id
		if interest < 0 {
			from, to = id, b.a.ID()
			interest = -interest
		}
		if err := m.Transfer(from, to, interest, "interest"); err != nil {
			slog.Error("interest not booked", "bank", b.a.ID(), "customer", id, "error", err)
			continue
		}
		if from == b.a.ID() {
			b.paid += interest
		} else {
			b.earned += interest
		}
		b.a.Emit(engine.CategoryFinance, "interest",
			fmt.Sprintf("%s paid %v to %s", from, interest, to),
			map[string]any{"customer": id, "amount": float64(interest), "from": from})
	}
}
