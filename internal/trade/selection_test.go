package trade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/tradesim/internal/content"
	"github.com/talgya/tradesim/internal/dist"
	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/world"
)

func quote(id, rfq uint64, price economy.Money, amount float64, deliveryDay float64, q int) *content.Quote {
	return &content.Quote{
		Header:               content.Header{ID: id, Sender: "s", Receiver: "b", GroupingID: 1},
		RFQID:                rfq,
		Product:              pc,
		Amount:               amount,
		UnitPrice:            price,
		ProposedDeliveryDate: engine.At(deliveryDay),
		ValidUntil:           engine.At(30),
		Location:             world.Location{Name: "s", Coord: world.HexCoord{Q: q}},
	}
}

func TestQuoteSelectionScenario(t *testing.T) {
	rfq := &content.RequestForQuote{
		Header:     content.Header{ID: 7, GroupingID: 1},
		Product:    pc,
		Amount:     10,
		LatestDate: engine.At(20),
	}
	q1 := quote(1, 7, 110, 10, 15, 1)
	q2 := quote(2, 7, 150, 10, 10, 1)
	q3 := quote(3, 7, 105, 8, 25, 1)
	c := Criteria{MaxPriceMargin: 0.4, MinAmountMargin: 0.3}

	assert.True(t, c.Acceptable(engine.At(1), rfq, q1))
	assert.False(t, c.Acceptable(engine.At(1), rfq, q2), "price above margin")
	assert.False(t, c.Acceptable(engine.At(1), rfq, q3), "delivery after latest date")

	best, ok := c.Select(engine.At(1), world.Location{}, map[uint64]*content.RequestForQuote{7: rfq}, []*content.Quote{q1, q2, q3})
	require.True(t, ok)
	assert.Same(t, q1, best)
}

func TestQuoteFilters(t *testing.T) {
	rfq := &content.RequestForQuote{Header: content.Header{ID: 7}, Product: pc, Amount: 10, LatestDate: engine.At(20)}
	c := Criteria{MaxPriceMargin: 0.4, MinAmountMargin: 0.3}
	for _, tc := range []struct {
		name string
		q    *content.Quote
		now  float64
		ok   bool
	}{
		{"below price limit", quote(1, 7, 139, 10, 5, 0), 1, true},
		{"amount within margin", quote(1, 7, 100, 7.5, 5, 0), 1, true},
		{"amount below margin", quote(1, 7, 100, 6.9, 5, 0), 1, false},
		{"delivery on latest date", quote(1, 7, 100, 10, 20, 0), 1, true},
		{"expired", quote(1, 7, 100, 10, 5, 0), 31, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.ok, c.Acceptable(engine.At(tc.now), rfq, tc.q))
		})
	}

	_, ok := c.Select(engine.At(1), world.Location{}, map[uint64]*content.RequestForQuote{7: rfq},
		[]*content.Quote{quote(1, 7, 200, 10, 5, 0), quote(2, 99, 100, 10, 5, 0)})
	assert.False(t, ok, "no survivors and unknown rfq")
}

func TestDefaultComparatorOrder(t *testing.T) {
	rfq := &content.RequestForQuote{Header: content.Header{ID: 7}, Product: pc, Amount: 10, LatestDate: engine.At(20)}
	rfqs := map[uint64]*content.RequestForQuote{7: rfq}
	c := Criteria{MaxPriceMargin: 1}
	at := engine.At(0)

	far := quote(1, 7, 100, 10, 5, 9)
	near := quote(2, 7, 100, 10, 5, 2)
	early := quote(3, 7, 100, 10, 4, 9)
	cheap := quote(4, 7, 99, 10, 9, 9)

	best, _ := c.Select(at, world.Location{}, rfqs, []*content.Quote{far, near})
	assert.Same(t, near, best)
	best, _ = c.Select(at, world.Location{}, rfqs, []*content.Quote{far, near, early})
	assert.Same(t, early, best)
	best, _ = c.Select(at, world.Location{}, rfqs, []*content.Quote{far, near, early, cheap})
	assert.Same(t, cheap, best)

	c.Compare = func(a, b Candidate) bool { return a.Distance < b.Distance }
	best, _ = c.Select(at, world.Location{}, rfqs, []*content.Quote{far, near, early, cheap})
	assert.Same(t, near, best)
}

func TestPaymentPolicyTarget(t *testing.T) {
	due := engine.At(10)
	delay := dist.Fixed(2 * engine.Day)
	for _, tc := range []struct {
		timing Timing
		now    float64
		want   float64
	}{
		{OnTime, 3, 10},
		{Early, 3, 8},
		{Late, 3, 12},
		{Immediate, 3, 3},
		{Early, 9, 9},
		{OnTime, 11, 11},
	} {
		t.Run(string(tc.timing), func(t *testing.T) {
			p := PaymentPolicy{Timing: tc.timing, Delay: delay}
			assert.Equal(t, engine.At(tc.want), p.Target(engine.At(tc.now), due))
		})
	}
	require.Error(t, PaymentPolicy{Timing: "whenever"}.Validate())
}

func TestFineAmount(t *testing.T) {
	f := Fine{Fixed: 10, Margin: 0.1}
	assert.InDelta(t, 110, float64(f.Amount(1000, 5*engine.Day)), 1e-9)

	f.Prorated = true
	assert.InDelta(t, 330, float64(f.Amount(1000, 60*time.Hour)), 1e-9)
	assert.InDelta(t, 110, float64(f.Amount(1000, 0)), 1e-9)
}
