package content

import (
	"time"

	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/logistics"
	"github.com/talgya/tradesim/internal/world"
)

// Demand asks the receiving actor (usually the sender itself) to procure an
// amount of a product within a delivery window. Its grouping id names the
// whole transaction.
type Demand struct {
	Header
	Product      *economy.Product `json:"product"`
	Amount       float64          `json:"amount"`
	EarliestDate engine.Time      `json:"earliest_date"`
	LatestDate   engine.Time      `json:"latest_date"`
}

func (*Demand) Kind() Kind { return KindDemand }

// SearchRequest asks a directory for suppliers of a product.
type SearchRequest struct {
	Header
	Product     *economy.Product `json:"product"`
	DemandID    uint64           `json:"demand_id"`
	Location    world.Location   `json:"location"`
	MaxDistance int              `json:"max_distance"` // 0 means unlimited
	MaxAnswers  int              `json:"max_answers"`  // 0 means unlimited
}

func (*SearchRequest) Kind() Kind { return KindSearchRequest }

// SearchAnswer lists supplier actor ids, nearest first.
type SearchAnswer struct {
	Header
	RequestID uint64           `json:"request_id"`
	Product   *economy.Product `json:"product"`
	Suppliers []string         `json:"suppliers"`
}

func (*SearchAnswer) Kind() Kind { return KindSearchAnswer }

// RequestForQuote asks a supplier to offer an amount of a product.
type RequestForQuote struct {
	Header
	DemandID     uint64           `json:"demand_id"`
	Product      *economy.Product `json:"product"`
	Amount       float64          `json:"amount"`
	Location     world.Location   `json:"location"` // Delivery location
	EarliestDate engine.Time      `json:"earliest_date"`
	LatestDate   engine.Time      `json:"latest_date"`
	CutoffDate   engine.Time      `json:"cutoff_date"` // Quotes are evaluated no later than this
}

func (*RequestForQuote) Kind() Kind { return KindRequestForQuote }

// Quote answers a RequestForQuote.
type Quote struct {
	Header
	RFQID                uint64           `json:"rfq_id"`
	Product              *economy.Product `json:"product"`
	Amount               float64          `json:"amount"`
	UnitPrice            economy.Money    `json:"unit_price"`
	ProposedDeliveryDate engine.Time      `json:"proposed_delivery_date"`
	ValidUntil           engine.Time      `json:"valid_until"`
	Location             world.Location   `json:"location"` // Where the goods ship from
}

func (*Quote) Kind() Kind { return KindQuote }

// Price is the total price of the quoted amount.
func (q *Quote) Price() economy.Money { return q.UnitPrice.Scale(q.Amount) }

// Order accepts a Quote.
type Order struct {
	Header
	QuoteID      uint64           `json:"quote_id"`
	Product      *economy.Product `json:"product"`
	Amount       float64          `json:"amount"`
	UnitPrice    economy.Money    `json:"unit_price"`
	DeliveryDate engine.Time      `json:"delivery_date"`
	Location     world.Location   `json:"location"` // Delivery location
}

func (*Order) Kind() Kind { return KindOrder }

// Price is the total price of the order.
func (o *Order) Price() economy.Money { return o.UnitPrice.Scale(o.Amount) }

// OrderConfirmation accepts or rejects an Order.
type OrderConfirmation struct {
	Header
	OrderID      uint64           `json:"order_id"`
	Product      *economy.Product `json:"product"`
	Accepted     bool             `json:"accepted"`
	Reason       string           `json:"reason,omitempty"`
	DeliveryDate engine.Time      `json:"delivery_date"`
}

func (*OrderConfirmation) Kind() Kind { return KindOrderConfirmation }

// InventoryReservationRequest asks a warehouse to reserve stock for an order.
type InventoryReservationRequest struct {
	Header
	OrderID uint64           `json:"order_id"`
	Product *economy.Product `json:"product"`
	Amount  float64          `json:"amount"`
}

func (*InventoryReservationRequest) Kind() Kind { return KindInventoryReservationRequest }

// InventoryReservation confirms a reservation.
type InventoryReservation struct {
	Header
	RequestID uint64           `json:"request_id"`
	OrderID   uint64           `json:"order_id"`
	Product   *economy.Product `json:"product"`
	Amount    float64          `json:"amount"`
}

func (*InventoryReservation) Kind() Kind { return KindInventoryReservation }

// InventoryReleaseRequest asks a warehouse to take reserved stock out for
// shipping.
type InventoryReleaseRequest struct {
	Header
	OrderID uint64           `json:"order_id"`
	Product *economy.Product `json:"product"`
	Amount  float64          `json:"amount"`
}

func (*InventoryReleaseRequest) Kind() Kind { return KindInventoryReleaseRequest }

// InventoryRelease hands released stock over as a shipment.
type InventoryRelease struct {
	Header
	RequestID uint64              `json:"request_id"`
	OrderID   uint64              `json:"order_id"`
	Product   *economy.Product    `json:"product"`
	Amount    float64             `json:"amount"`
	Goods     *logistics.Shipment `json:"goods"`
}

func (*InventoryRelease) Kind() Kind { return KindInventoryRelease }

// TransportQuoteRequest asks a transporter to offer options for moving goods.
type TransportQuoteRequest struct {
	Header
	OrderID     uint64           `json:"order_id"`
	Product     *economy.Product `json:"product"`
	Amount      float64          `json:"amount"`
	Origin      world.Location   `json:"origin"`
	Destination world.Location   `json:"destination"`
	ShipDate    engine.Time      `json:"ship_date"`
}

func (*TransportQuoteRequest) Kind() Kind { return KindTransportQuoteRequest }

// TransportOffer is one priced transport option.
type TransportOffer struct {
	Option   logistics.Option `json:"option"`
	Price    economy.Money    `json:"price"`
	Duration time.Duration    `json:"duration"`
}

// TransportQuote answers a TransportQuoteRequest.
type TransportQuote struct {
	Header
	RequestID  uint64           `json:"request_id"`
	Product    *economy.Product `json:"product"`
	Offers     []TransportOffer `json:"offers"`
	ValidUntil engine.Time      `json:"valid_until"`
}

func (*TransportQuote) Kind() Kind { return KindTransportQuote }

// TransportOrder commissions a transporter to move goods along an offer.
type TransportOrder struct {
	Header
	QuoteID   uint64              `json:"quote_id"`
	Offer     TransportOffer      `json:"offer"`
	Goods     *logistics.Shipment `json:"goods"`
	Consignee string              `json:"consignee"` // Receives the TransportDelivery
}

func (*TransportOrder) Kind() Kind { return KindTransportOrder }

// TransportPickup tells the shipper its goods were picked up.
type TransportPickup struct {
	Header
	OrderID          uint64              `json:"order_id"`
	Goods            *logistics.Shipment `json:"goods"`
	EstimatedArrival engine.Time         `json:"estimated_arrival"`
}

func (*TransportPickup) Kind() Kind { return KindTransportPickup }

// TransportDelivery tells the consignee its goods arrived.
type TransportDelivery struct {
	Header
	OrderID uint64              `json:"order_id"`
	Goods   *logistics.Shipment `json:"goods"`
}

func (*TransportDelivery) Kind() Kind { return KindTransportDelivery }

// Shipment notifies a buyer that its order was dispatched.
type Shipment struct {
	Header
	OrderID          uint64              `json:"order_id"`
	Goods            *logistics.Shipment `json:"goods"`
	EstimatedArrival engine.Time         `json:"estimated_arrival"`
}

func (*Shipment) Kind() Kind { return KindShipment }

// Bill invoices a buyer for an order.
type Bill struct {
	Header
	OrderID uint64           `json:"order_id"`
	Product *economy.Product `json:"product"`
	Amount  float64          `json:"amount"`
	Price   economy.Money    `json:"price"`
	DueDate engine.Time      `json:"due_date"`
}

func (*Bill) Kind() Kind { return KindBill }

// Payment settles a Bill. Forced payments were collected directly from the
// payer's account after the bill went overdue.
type Payment struct {
	Header
	BillID uint64        `json:"bill_id"`
	Amount economy.Money `json:"amount"`
	Forced bool          `json:"forced"`
}

func (*Payment) Kind() Kind { return KindPayment }
