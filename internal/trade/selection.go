package trade

import (
	"github.com/samber/lo"

	"github.com/talgya/tradesim/internal/content"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/world"
)

// Comparator orders two acceptable quotes; it reports whether a is better
// than b. Distances are measured from the buyer.
type Comparator func(a, b Candidate) bool

// Candidate is a quote under evaluation.
type Candidate struct {
	Quote    *content.Quote
	Distance int
}

// ByPriceDateDistance prefers the lower unit price, then the earlier
// delivery date, then the shorter distance.
func ByPriceDateDistance(a, b Candidate) bool {
	if a.Quote.UnitPrice != b.Quote.UnitPrice {
		return a.Quote.UnitPrice < b.Quote.UnitPrice
	}
	if a.Quote.ProposedDeliveryDate != b.Quote.ProposedDeliveryDate {
		return a.Quote.ProposedDeliveryDate < b.Quote.ProposedDeliveryDate
	}
	return a.Distance < b.Distance
}

// Criteria holds the buyer's quote acceptance limits.
type Criteria struct {
	MaxPriceMargin  float64 // Max unit price above market, as a fraction
	MinAmountMargin float64 // Max shortfall below the requested amount, as a fraction
	Compare         Comparator
}

// Acceptable reports whether q answers rfq within the criteria at time now.
func (c Criteria) Acceptable(now engine.Time, rfq *content.RequestForQuote, q *content.Quote) bool {
	switch {
	case q.ValidUntil < now:
		return false
	case q.UnitPrice > rfq.Product.UnitMarketPrice.Scale(1+c.MaxPriceMargin):
		return false
	case q.Amount < rfq.Amount*(1-c.MinAmountMargin):
		return false
	case q.ProposedDeliveryDate > rfq.LatestDate:
		return false
	}
	return true
}

// Select filters the quotes of one RFQ cohort and returns the best
// survivor. rfqs maps an RFQ id to the request; quotes whose RFQ is unknown
// are ignored.
func (c Criteria) Select(now engine.Time, from world.Location, rfqs map[uint64]*content.RequestForQuote, quotes []*content.Quote) (*content.Quote, bool) {
	candidates := lo.FilterMap(quotes, func(q *content.Quote, _ int) (Candidate, bool) {
		rfq, ok := rfqs[q.RFQID]
		if !ok || !c.Acceptable(now, rfq, q) {
			return Candidate{}, false
		}
		return Candidate{Quote: q, Distance: q.Location.DistanceTo(from)}, true
	})
	if len(candidates) == 0 {
		return nil, false
	}
	less := c.Compare
	if less == nil {
		less = ByPriceDateDistance
	}
	best := lo.MinBy(candidates, less)
	return best.Quote, true
}
