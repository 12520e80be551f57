// Package logistics describes how goods move between locations: transport
// modes, multi-leg transport options and the shipments travelling on them.
package logistics

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/world"
)

// ErrDisconnected is returned for options whose legs do not chain up.
var ErrDisconnected = errors.New("logistics: transport steps are not contiguous")

// Mode is a means of transport with its own speed, handling times and tariff.
type Mode struct {
	Name          string        `json:"name"`
	Speed         float64       `json:"speed"`          // Hexes per day
	LoadingTime   time.Duration `json:"loading_time"`   // Per unit of product volume
	UnloadingTime time.Duration `json:"unloading_time"` // Per unit of product volume
	CostPerHex    economy.Money `json:"cost_per_hex"`   // Per unit of product per hex
	MinimumCost   economy.Money `json:"minimum_cost"`   // Per unit of product per leg
}

// Validate checks that the mode can be used to plan steps.
func (m Mode) Validate() error {
	switch {
	case m.Name == "":
		return fmt.Errorf("transport mode without name")
	case m.Speed <= 0:
		return fmt.Errorf("mode %s: speed must be positive, got %v", m.Name, m.Speed)
	case m.LoadingTime < 0 || m.UnloadingTime < 0:
		return fmt.Errorf("mode %s: negative handling time", m.Name)
	case m.CostPerHex < 0 || m.MinimumCost < 0:
		return fmt.Errorf("mode %s: negative cost", m.Name)
	}
	return nil
}

// Step is one leg of a transport option.
type Step struct {
	Origin        world.Location `json:"origin"`
	Destination   world.Location `json:"destination"`
	Mode          Mode           `json:"mode"`
	LoadingTime   time.Duration  `json:"loading_time"`
	UnloadingTime time.Duration  `json:"unloading_time"`
	CostPerUnit   economy.Money  `json:"cost_per_unit"`
}

// NewStep plans a leg from origin to destination using mode's tariff.
func NewStep(origin, destination world.Location, mode Mode) Step {
	cost := mode.CostPerHex.Scale(float64(origin.DistanceTo(destination)))
	if cost < mode.MinimumCost {
		cost = mode.MinimumCost
	}
	return Step{
		Origin:        origin,
		Destination:   destination,
		Mode:          mode,
		LoadingTime:   mode.LoadingTime,
		UnloadingTime: mode.UnloadingTime,
		CostPerUnit:   cost,
	}
}

// EstimateTransport returns the travel time of the leg.
func (s Step) EstimateTransport(_ *economy.Product) time.Duration {
	if s.Mode.Speed <= 0 {
		return 0
	}
	days := float64(s.Origin.DistanceTo(s.Destination)) / s.Mode.Speed
	return time.Duration(days * float64(engine.Day))
}

// EstimateLoading returns the time to load p at the origin.
func (s Step) EstimateLoading(p *economy.Product) time.Duration {
	return scaleByVolume(s.LoadingTime, p)
}

// EstimateUnloading returns the time to unload p at the destination.
func (s Step) EstimateUnloading(p *economy.Product) time.Duration {
	return scaleByVolume(s.UnloadingTime, p)
}

// Duration is transport plus loading plus unloading for p.
func (s Step) Duration(p *economy.Product) time.Duration {
	return s.EstimateTransport(p) + s.EstimateLoading(p) + s.EstimateUnloading(p)
}

func scaleByVolume(d time.Duration, p *economy.Product) time.Duration {
	if p == nil || p.UnitVolume <= 0 {
		return d
	}
	return time.Duration(float64(d) * p.UnitVolume)
}

// Option is an ordered sequence of steps, traversed strictly in order.
type Option struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// Direct plans a single-leg option.
func Direct(origin, destination world.Location, mode Mode) Option {
	return Option{
		Name:  mode.Name,
		Steps: []Step{NewStep(origin, destination, mode)},
	}
}

// ViaHub plans a two-leg option through hub.
func ViaHub(origin, hub, destination world.Location, first, second Mode) Option {
	return Option{
		Name: fmt.Sprintf("%s+%s via %s", first.Name, second.Name, hub.Name),
		Steps: []Step{
			NewStep(origin, hub, first),
			NewStep(hub, destination, second),
		},
	}
}

// Validate checks that the option has steps and that each leg starts where
// the previous one ended.
func (o Option) Validate() error {
	if len(o.Steps) == 0 {
		return fmt.Errorf("option %q: no steps", o.Name)
	}
	for i := 1; i < len(o.Steps); i++ {
		if o.Steps[i].Origin.Coord != o.Steps[i-1].Destination.Coord {
			return fmt.Errorf("option %q step %d: %w", o.Name, i, ErrDisconnected)
		}
	}
	return nil
}

// Origin returns where the first leg starts.
func (o Option) Origin() world.Location {
	if len(o.Steps) == 0 {
		return world.Location{}
	}
	return o.Steps[0].Origin
}

// Destination returns where the last leg ends.
func (o Option) Destination() world.Location {
	if len(o.Steps) == 0 {
		return world.Location{}
	}
	return o.Steps[len(o.Steps)-1].Destination
}

// Duration sums the step durations for p.
func (o Option) Duration(p *economy.Product) time.Duration {
	var total time.Duration
	for _, s := range o.Steps {
		total += s.Duration(p)
	}
	return total
}

// Cost returns the price of moving amount units of product along the option.
func (o Option) Cost(amount float64) economy.Money {
	var total economy.Money
	for _, s := range o.Steps {
		total += s.CostPerUnit.Scale(amount)
	}
	return total
}

func (o Option) String() string {
	legs := make([]string, 0, len(o.Steps))
	for _, s := range o.Steps {
		legs = append(legs, fmt.Sprintf("%s->%s[%s]", s.Origin, s.Destination, s.Mode.Name))
	}
	return strings.Join(legs, " ")
}
