package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/content"
	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/world"
)

func TestObserveCountsNotices(t *testing.T) {
	c := New()
	for _, n := range []engine.Notice{
		{Category: engine.CategoryContent, Kind: "sent", Meta: map[string]any{"content": "Quote"}},
		{Category: engine.CategoryContent, Kind: "sent", Meta: map[string]any{"content": "Quote"}},
		{Category: engine.CategoryContent, Kind: "rejected", Meta: map[string]any{"content": "Order"}},
		{Category: engine.CategoryPenalty, Kind: "late_delivery"},
		{Category: engine.CategoryDemand, Kind: "demand", Meta: map[string]any{"product": "pc"}},
		{Category: engine.CategoryDemand, Kind: "consumed", Meta: map[string]any{"product": "pc"}},
		{Category: engine.CategoryOrder, Kind: "ordered"},
		{Category: engine.CategoryFinance, Kind: "balance", Actor: "shop", Meta: map[string]any{"old": 0.0, "new": 42.5}},
		{Category: engine.CategoryInventory, Kind: "stock", Actor: "shop", Meta: map[string]any{"product": "pc", "actual": 7.0}},
		{At: engine.At(3.5), Category: engine.CategoryTransport, Kind: "departed"},
	} {
		c.Observe(n)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(c.sent.WithLabelValues("Quote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejected.WithLabelValues("Order")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.penalties.WithLabelValues("late_delivery")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.demands.WithLabelValues("pc")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.orders.WithLabelValues("ordered")))
	assert.Equal(t, 42.5, testutil.ToFloat64(c.balance.WithLabelValues("shop")))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.stock.WithLabelValues("shop", "pc")))
	assert.Equal(t, 3.5, testutil.ToFloat64(c.days))
}

func TestCollectorFollowsModel(t *testing.T) {
	c := New()
	m := actor.NewModel(engine.NewScheduler(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	m.Subscribe(c.Observe)
	a, err := m.NewActor("a", "a", world.Location{})
	require.NoError(t, err)
	_, err = m.NewActor("b", "b", world.Location{})
	require.NoError(t, err)
	a.OpenAccount("bank", 0)
	require.NoError(t, a.Account().Deposit(economy.Money(10), "gift"))

	pc := &economy.Product{Name: "pc"}
	require.NoError(t, a.Send(&content.Demand{Header: content.NewHeader("a", "b", 1), Product: pc, Amount: 1}, 0))
	require.NoError(t, m.Scheduler().RunUntil(engine.At(1)))
	c.Tick(m.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(c.sent.WithLabelValues("Demand")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.rejected.WithLabelValues("Demand")))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.balance.WithLabelValues("a")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.days))

	expected := `
# HELP tradesim_content_rejected_total Messages rejected by their receiver, by content kind.
# TYPE tradesim_content_rejected_total counter
tradesim_content_rejected_total{kind="Demand"} 1
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected), "tradesim_content_rejected_total"))
}
