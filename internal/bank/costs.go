package bank

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
)

// FixedCost is a recurring expense such as rent or wages.
type FixedCost struct {
	Name     string
	Amount   economy.Money
	Interval time.Duration
}

// Costs debits an actor's own account for its fixed costs. The debit is
// forced and may overdraw the account.
type Costs struct {
	a    *actor.Actor
	role *actor.Role
	paid map[string]economy.Money
}

// NewCosts gives a the fixed-cost role with one process per cost.
func NewCosts(a *actor.Actor, costs ...FixedCost) (*Costs, error) {
	if a.Account() == nil {
		return nil, fmt.Errorf("%s: fixed costs: %w", a.ID(), actor.ErrNoAccount)
	}
	c := &Costs{a: a, paid: make(map[string]economy.Money)}
	role, err := actor.NewRole(RoleCosts, nil)
	if err != nil {
		return nil, err
	}
	if err := a.AddRole(role); err != nil {
		return nil, err
	}
	c.role = role
	for _, fc := range costs {
		if fc.Amount < 0 || fc.Interval <= 0 {
			return nil, errors.New("bank: fixed cost needs a non-negative amount and a positive interval")
		}
		p, err := actor.NewProcess("fixed cost "+fc.Name, actor.Every(fc.Interval), func() { c.charge(fc) })
		if err != nil {
			return nil, err
		}
		if err := role.AddProcess(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Paid returns the total charged for the named cost.
func (c *Costs) Paid(name string) economy.Money { return c.paid[name] }

func (c *Costs) charge(fc FixedCost) {
	if err := c.a.Account().ForceWithdraw(fc.Amount, fc.Name); err != nil {
		slog.Error("fixed cost not charged", "actor", c.a.ID(), "cost", fc.Name, "error", err)
		return
	}
	c.paid[fc.Name] += fc.Amount
	c.a.Emit(engine.CategoryFinance, "fixed_cost", fc.Name,
		map[string]any{"cost": fc.Name, "amount": float64(fc.Amount)})
}
