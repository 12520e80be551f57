// Package content defines the messages actors exchange and the per-actor
// store that records them.
//
// The set of content kinds is closed: every message type lives in this
// package and implements the sealed Content interface. Dispatch code matches
// on Kind (or on the concrete type) and ProductOf is the one exhaustive
// switch over all kinds.
package content

import (
	"errors"
	"fmt"

	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/engine"
)

// ErrAlreadyStamped is returned when content that was already sent is
// stamped a second time.
var ErrAlreadyStamped = errors.New("content: already stamped")

// Kind tags a content type.
type Kind string

const (
	KindDemand                      Kind = "Demand"
	KindSearchRequest               Kind = "SearchRequest"
	KindSearchAnswer                Kind = "SearchAnswer"
	KindRequestForQuote             Kind = "RequestForQuote"
	KindQuote                       Kind = "Quote"
	KindOrder                       Kind = "Order"
	KindOrderConfirmation           Kind = "OrderConfirmation"
	KindInventoryReservationRequest Kind = "InventoryReservationRequest"
	KindInventoryReservation        Kind = "InventoryReservation"
	KindInventoryReleaseRequest     Kind = "InventoryReleaseRequest"
	KindInventoryRelease            Kind = "InventoryRelease"
	KindTransportQuoteRequest       Kind = "TransportQuoteRequest"
	KindTransportQuote              Kind = "TransportQuote"
	KindTransportOrder              Kind = "TransportOrder"
	KindTransportPickup             Kind = "TransportPickup"
	KindTransportDelivery           Kind = "TransportDelivery"
	KindShipment                    Kind = "Shipment"
	KindBill                        Kind = "Bill"
	KindPayment                     Kind = "Payment"
)

// Kinds lists every content kind in protocol order.
var Kinds = []Kind{
	KindDemand,
	KindSearchRequest,
	KindSearchAnswer,
	KindRequestForQuote,
	KindQuote,
	KindOrder,
	KindOrderConfirmation,
	KindInventoryReservationRequest,
	KindInventoryReservation,
	KindInventoryReleaseRequest,
	KindInventoryRelease,
	KindTransportQuoteRequest,
	KindTransportQuote,
	KindTransportOrder,
	KindTransportPickup,
	KindTransportDelivery,
	KindShipment,
	KindBill,
	KindPayment,
}

// Header carries the addressing and correlation fields common to all
// content. ID and Timestamp are assigned when the content is sent.
type Header struct {
	ID         uint64      `json:"id"`
	Sender     string      `json:"sender"`
	Receiver   string      `json:"receiver"`
	Timestamp  engine.Time `json:"timestamp"`
	GroupingID uint64      `json:"grouping_id"`
}

// Head returns a copy of the header.
func (h *Header) Head() Header { return *h }

func (h *Header) header() *Header { return h }

// Content is an immutable message exchanged between actors.
type Content interface {
	Kind() Kind
	Head() Header
	header() *Header
}

// NewHeader builds the header for a message from sender to receiver in the
// transaction identified by groupingID.
func NewHeader(sender, receiver string, groupingID uint64) Header {
	return Header{Sender: sender, Receiver: receiver, GroupingID: groupingID}
}

// Reply builds a header addressed back to the sender of c, in the same
// transaction.
func Reply(c Content) Header {
	h := c.Head()
	return Header{Sender: h.Receiver, Receiver: h.Sender, GroupingID: h.GroupingID}
}

// Forward builds a header from the receiver of c to another actor, in the
// same transaction.
func Forward(c Content, to string) Header {
	h := c.Head()
	return Header{Sender: h.Receiver, Receiver: to, GroupingID: h.GroupingID}
}

// Stamp assigns the unique id and creation time. It is called exactly once,
// by the sending actor.
func Stamp(c Content, id uint64, at engine.Time) error {
	h := c.header()
	if h.ID != 0 {
		return fmt.Errorf("stamp %s %d: %w", c.Kind(), h.ID, ErrAlreadyStamped)
	}
	h.ID = id
	h.Timestamp = at
	return nil
}

// ProductOf returns the product a message is about, if any.
func ProductOf(c Content) (*economy.Product, bool) {
	var p *economy.Product
	switch m := c.(type) {
	case *Demand:
		p = m.Product
	case *SearchRequest:
		p = m.Product
	case *SearchAnswer:
		p = m.Product
	case *RequestForQuote:
		p = m.Product
	case *Quote:
		p = m.Product
	case *Order:
		p = m.Product
	case *OrderConfirmation:
		p = m.Product
	case *InventoryReservationRequest:
		p = m.Product
	case *InventoryReservation:
		p = m.Product
	case *InventoryReleaseRequest:
		p = m.Product
	case *InventoryRelease:
		p = m.Product
	case *TransportQuoteRequest:
		p = m.Product
	case *TransportQuote:
		p = m.Product
	case *TransportOrder:
		if m.Goods != nil {
			p = m.Goods.Product
		}
	case *TransportPickup:
		if m.Goods != nil {
			p = m.Goods.Product
		}
	case *TransportDelivery:
		if m.Goods != nil {
			p = m.Goods.Product
		}
	case *Shipment:
		if m.Goods != nil {
			p = m.Goods.Product
		}
	case *Bill:
		p = m.Product
	case *Payment:
		return nil, false
	default:
		panic(fmt.Sprintf("content: unhandled kind %T", c))
	}
	return p, p != nil
}
