package logistics

import (
	"github.com/talgya/tradesim/internal/economy"
	"github.com/talgya/tradesim/internal/world"
)

// Shipment is a physical consignment of goods. It belongs to one trade
// transaction (its grouping id) and is moved along a transport option.
type Shipment struct {
	GroupingID uint64           `json:"grouping_id"`
	Product    *economy.Product `json:"product"`
	Amount     float64          `json:"amount"`
	Value      economy.Money    `json:"value"`
	Sender     string           `json:"sender"`
	Receiver   string           `json:"receiver"`

	Origin      world.Location `json:"origin"`      // Origin of the current leg
	Destination world.Location `json:"destination"` // Destination of the current leg
	Leg         int            `json:"leg"`
	InTransit   bool           `json:"in_transit"`
	Delivered   bool           `json:"delivered"`
}

// Depart marks the shipment as travelling on leg i of step s.
func (s *Shipment) Depart(i int, step Step) {
	s.Leg = i
	s.Origin = step.Origin
	s.Destination = step.Destination
	s.InTransit = true
}

// Arrive marks the shipment as delivered at its final destination.
func (s *Shipment) Arrive() {
	s.Origin = s.Destination
	s.InTransit = false
	s.Delivered = true
}
