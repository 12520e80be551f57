package trade

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/content"
	"github.com/talgya/tradesim/internal/dist"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/transport"
)

func TestFullTransactionKeepsGroupingID(t *testing.T) {
	m := newTestModel(t)
	shop := newTestActor(t, m, "shop", 0, 5000)
	factory := newTestActor(t, m, "factory", 5, 1000)
	truckco := newTestActor(t, m, "truckco", 2, 0)
	dir := newTestActor(t, m, "dir", 1, 0)

	_, err := NewDirectory(dir, map[string][]string{"pc": {"factory"}})
	require.NoError(t, err)

	bcfg := DefaultBuyerConfig()
	bcfg.Directory = "dir"
	bcfg.Late = &Penalty{Grace: engine.Day, Fine: Fine{Fixed: 100}}
	newTestBuyer(t, shop, bcfg)
	_, err = NewAccounting(shop, PaymentPolicy{Timing: OnTime})
	require.NoError(t, err)

	factory.Ledger().Track(pc, 100, 60)
	_, err = NewWarehouse(factory)
	require.NoError(t, err)
	scfg := DefaultSellerConfig()
	scfg.Transporters = []string{"truckco"}
	scfg.Overdue = &Penalty{Grace: 3 * engine.Day}
	_, err = NewSeller(factory, scfg)
	require.NoError(t, err)
	_, err = NewAccounting(factory, PaymentPolicy{Timing: Immediate})
	require.NoError(t, err)

	carrier, err := transport.NewCarrier(truckco, transport.DefaultCarrierConfig())
	require.NoError(t, err)
	_, err = NewAccounting(truckco, PaymentPolicy{Timing: OnTime})
	require.NoError(t, err)

	penalties := collect(m, engine.CategoryPenalty)
	require.NoError(t, m.Start())
	gid := sendDemand(t, shop, 10, 20)
	runUntil(t, m, 30)

	shopStock, _ := shop.Ledger().Get("pc")
	assert.Equal(t, 10.0, shopStock.Actual)
	assert.Equal(t, 0.0, shopStock.Ordered)
	factoryStock, _ := factory.Ledger().Get("pc")
	assert.Equal(t, 90.0, factoryStock.Actual)
	assert.Equal(t, 0.0, factoryStock.Reserved)

	assert.InDelta(t, 3900, float64(shop.Account().Balance()), 1e-6)
	assert.InDelta(t, 2072.5, float64(factory.Account().Balance()), 1e-6)
	assert.InDelta(t, 27.5, float64(truckco.Account().Balance()), 1e-6)
	assert.Equal(t, 1, carrier.Executed())
	assert.Empty(t, *penalties)

	for _, a := range []*actor.Actor{shop, factory, truckco, dir} {
		assert.Equal(t, []uint64{gid}, a.Store().Groups(), a.ID())
		for _, e := range a.Store().Entries() {
			assert.Equal(t, gid, e.Content.Head().GroupingID, "%s %s", a.ID(), e.Content.Kind())
		}
	}
	for _, k := range []content.Kind{
		content.KindDemand,
		content.KindSearchRequest,
		content.KindSearchAnswer,
		content.KindRequestForQuote,
		content.KindQuote,
		content.KindOrder,
		content.KindOrderConfirmation,
		content.KindShipment,
		content.KindTransportDelivery,
		content.KindBill,
		content.KindPayment,
	} {
		assert.True(t, shop.Store().ContainsKind(gid, k), k)
	}
	for _, k := range []content.Kind{
		content.KindInventoryReservationRequest,
		content.KindInventoryReservation,
		content.KindInventoryReleaseRequest,
		content.KindInventoryRelease,
		content.KindTransportQuoteRequest,
		content.KindTransportQuote,
		content.KindTransportOrder,
		content.KindTransportPickup,
	} {
		assert.True(t, factory.Store().ContainsKind(gid, k), k)
	}
}

// supplyChain builds a shop restocking from a producing factory that ships
// with its own fleet, with randomized customer demand.
func supplyChain(t *testing.T, seed int64) (*actor.Model, *Consumer) {
	t.Helper()
	m := newTestModel(t)
	stream := dist.NewStream(seed)
	shop := newTestActor(t, m, "shop", 0, 1e6)
	factory := newTestActor(t, m, "factory", 4, 0)

	bcfg := DefaultBuyerConfig()
	bcfg.Suppliers = []string{"factory"}
	b := newTestBuyer(t, shop, bcfg)
	require.NoError(t, b.Restock(RestockPolicy{
		Product:      pc,
		ReorderPoint: 10,
		OrderUpTo:    40,
		Window:       10 * engine.Day,
		Interval:     dist.Fixed(engine.Day),
	}))
	_, err := NewAccounting(shop, PaymentPolicy{Timing: Late, Delay: dist.Scaled{Of: dist.Uniform{Max: 3, S: stream.Derive("pay")}, Unit: engine.Day}})
	require.NoError(t, err)
	consumer, err := NewConsumer(shop, Consumption{
		Product:  pc,
		Amount:   dist.Uniform{Min: 0, Max: 4, S: stream.Derive("customers")},
		Interval: dist.Scaled{Of: dist.Exponential{Mean: 0.25, S: stream.Derive("arrivals")}, Unit: engine.Day},
	})
	require.NoError(t, err)

	_, err = NewProducer(factory, Production{
		Product:  pc,
		Amount:   dist.Constant(8),
		Interval: dist.Fixed(engine.Day),
		UnitCost: 50,
	})
	require.NoError(t, err)
	_, err = NewWarehouse(factory)
	require.NoError(t, err)
	_, err = NewSeller(factory, DefaultSellerConfig())
	require.NoError(t, err)
	_, err = NewAccounting(factory, PaymentPolicy{Timing: OnTime})
	require.NoError(t, err)

	require.NoError(t, m.Start())
	return m, consumer
}

func fingerprint(m *actor.Model) string {
	var s string
	for _, a := range m.Actors() {
		st, _ := a.Ledger().Get("pc")
		s += fmt.Sprintf("%s:%v/%v/%v:%v;", a.ID(), st.Actual, st.Ordered, st.Reserved, a.Account().Balance())
	}
	return s + fmt.Sprint(m.Scheduler().Executed())
}

func TestSupplyChainStockNeverNegative(t *testing.T) {
	m, consumer := supplyChain(t, 11)
	const eps = 1e-9
	var checked int
	m.Subscribe(func(n engine.Notice) {
		if n.Category != engine.CategoryInventory || n.Kind != "stock" {
			return
		}
		checked++
		for _, k := range []string{"actual", "ordered", "reserved"} {
			if v := n.Meta[k].(float64); v < -eps {
				t.Errorf("%s %s went negative at %v: %v", n.Actor, k, n.At, v)
			}
		}
	})
	runUntil(t, m, 60)

	assert.Positive(t, checked)
	assert.Positive(t, consumer.Sold("pc"))
	shop, _ := m.Actor("shop")
	assert.NotEmpty(t, shop.Store().ByKind(content.KindPayment))
	stock, _ := shop.Ledger().Get("pc")
	assert.GreaterOrEqual(t, stock.Actual, 0.0)
}

func TestSupplyChainIsDeterministic(t *testing.T) {
	run := func() string {
		m, _ := supplyChain(t, 5)
		runUntil(t, m, 45)
		return fingerprint(m)
	}
	first := run()
	assert.Equal(t, first, run())
}
