// Package transport moves shipments along transport options and implements
// the transporting role that quotes and executes transport orders.
package transport

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/content"
	"github.com/talgya/tradesim/internal/engine"
	"github.com/talgya/tradesim/internal/logistics"
)

// Job describes one consignment to move.
type Job struct {
	OrderID    uint64 // Order the movement fulfils, echoed in pickup and delivery
	GroupingID uint64
	Option     logistics.Option
	Goods      logistics.Shipment
	Shipper    string // Receives the TransportPickup
	Consignee  string // Receives the TransportDelivery
}

// Stepper executes a job one step per scheduler event. In-flight jobs cannot
// be recalled.
type Stepper struct {
	carrier *actor.Actor
	job     Job
	goods   logistics.Shipment
	next    int
	started engine.Time
	done    bool

	// OnDelivered runs after the delivery message was sent.
	OnDelivered func(*Stepper)
}

// Execute validates the job and schedules its first step at the current
// time. The carrier sends all pickup and delivery messages.
func Execute(carrier *actor.Actor, job Job) (*Stepper, error) {
	if err := job.Option.Validate(); err != nil {
		return nil, err
	}
	if job.Goods.Product == nil {
		return nil, errors.New("transport: job without product")
	}
	s := &Stepper{carrier: carrier, job: job, goods: job.Goods}
	s.goods.GroupingID = job.GroupingID
	if _, err := carrier.After(0, "transport step 0", s.step); err != nil {
		return nil, err
	}
	return s, nil
}

// Job returns the executed job.
func (s *Stepper) Job() Job { return s.job }

// Goods returns the current state of the moved shipment.
func (s *Stepper) Goods() logistics.Shipment { return s.goods }

// Done reports whether the goods were delivered.
func (s *Stepper) Done() bool { return s.done }

// snapshot copies the goods so messages never alias the moving shipment.
func (s *Stepper) snapshot() *logistics.Shipment {
	g := s.goods
	return &g
}

func (s *Stepper) step() {
	steps := s.job.Option.Steps
	if s.next == 0 {
		s.started = s.carrier.Now()
		eta := s.started.Add(s.job.Option.Duration(s.goods.Product))
		s.send(&content.TransportPickup{
			Header:           content.NewHeader(s.carrier.ID(), s.job.Shipper, s.job.GroupingID),
			OrderID:          s.job.OrderID,
			Goods:            s.snapshot(),
			EstimatedArrival: eta,
		})
	}
	if s.next == len(steps) {
		s.deliver()
		return
	}

	i := s.next
	step := steps[i]
	s.goods.Depart(i, step)
	s.next++
	d := step.Duration(s.goods.Product)
	s.carrier.Emit(engine.CategoryTransport, "departed",
		fmt.Sprintf("%v %s %s", s.goods.Amount, s.goods.Product.Name, step.Mode.Name),
		map[string]any{"group": s.job.GroupingID, "leg": i, "from": step.Origin.Name, "to": step.Destination.Name})
	if _, err := s.carrier.After(d, fmt.Sprintf("transport step %d", s.next), s.step); err != nil {
		slog.Error("transport stalled", "carrier", s.carrier.ID(), "group", s.job.GroupingID, "error", err)
	}
}

func (s *Stepper) deliver() {
	s.goods.Arrive()
	s.done = true
	s.send(&content.TransportDelivery{
		Header:  content.NewHeader(s.carrier.ID(), s.job.Consignee, s.job.GroupingID),
		OrderID: s.job.OrderID,
		Goods:   s.snapshot(),
	})
	s.carrier.Emit(engine.CategoryTransport, "delivered",
		fmt.Sprintf("%v %s to %s after %v", s.goods.Amount, s.goods.Product.Name, s.job.Consignee, s.carrier.Now().Sub(s.started)),
		map[string]any{"group": s.job.GroupingID, "consignee": s.job.Consignee})
	if s.OnDelivered != nil {
		s.OnDelivered(s)
	}
}

func (s *Stepper) send(c content.Content) {
	if err := s.carrier.Send(c, 0); err != nil {
		slog.Error("transport message not sent", "carrier", s.carrier.ID(), "kind", c.Kind(), "error", err)
	}
}
