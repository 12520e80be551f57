package logistics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/world"
)

var (
	factory = world.Location{Name: "factory", Coord: world.HexCoord{Q: 0, R: 0}}
	hub     = world.Location{Name: "hub", Coord: world.HexCoord{Q: 4, R: 0}}
	shop    = world.Location{Name: "shop", Coord: world.HexCoord{Q: 4, R: 4}}

	truck = Mode{Name: "truck", Speed: 2, LoadingTime: time.Hour, UnloadingTime: 2 * time.Hour, CostPerHex: 1.5}
	train = Mode{Name: "train", Speed: 4, LoadingTime: 3 * time.Hour, UnloadingTime: 3 * time.Hour, CostPerHex: 0.5, MinimumCost: 3}
)

func TestStepDuration(t *testing.T) {
	p := &economy.Product{Name: "pc", UnitVolume: 2}
	s := NewStep(factory, hub, truck)

	assert.Equal(t, 2*engine.Day, s.EstimateTransport(p))
	assert.Equal(t, 2*time.Hour, s.EstimateLoading(p))
	assert.Equal(t, 4*time.Hour, s.EstimateUnloading(p))
	assert.Equal(t, 2*engine.Day+6*time.Hour, s.Duration(p))
	assert.Equal(t, economy.Money(6), s.CostPerUnit)
}

func TestOptionViaHub(t *testing.T) {
	p := &economy.Product{Name: "pc", UnitVolume: 1}
	o := ViaHub(factory, hub, shop, truck, train)
	require.NoError(t, o.Validate())

	assert.Equal(t, factory, o.Origin())
	assert.Equal(t, shop, o.Destination())
	// truck: 4 hexes / 2 = 2 days + 3h; train: 4 hexes / 4 = 1 day + 6h
	assert.Equal(t, 3*engine.Day+9*time.Hour, o.Duration(p))
	// truck 6/unit, train max(2, 3) = 3/unit
	assert.Equal(t, economy.Money(90), o.Cost(10))
}

func TestOptionValidate(t *testing.T) {
	require.Error(t, Option{Name: "empty"}.Validate())
	broken := Option{Name: "broken", Steps: []Step{NewStep(factory, hub, truck), NewStep(factory, shop, truck)}}
	require.ErrorIs(t, broken.Validate(), ErrDisconnected)
	require.Error(t, Mode{Name: "x"}.Validate())
	require.NoError(t, truck.Validate())
}

func TestShipmentLifecycle(t *testing.T) {
	o := ViaHub(factory, hub, shop, truck, train)
	s := &Shipment{Amount: 5}
	s.Depart(1, o.Steps[1])
	assert.True(t, s.InTransit)
	assert.Equal(t, hub, s.Origin)
	s.Arrive()
	assert.True(t, s.Delivered)
	assert.False(t, s.InTransit)
	assert.Equal(t, shop, s.Origin)
}
