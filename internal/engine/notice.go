package engine

// Notice categories emitted by the core.
const (
	CategoryContent   = "content"
	CategoryDemand    = "demand"
	CategoryInventory = "inventory"
	CategoryFinance   = "finance"
	CategoryPenalty   = "penalty"
	CategoryTransport = "transport"
	CategoryOrder     = "order"
)

// Notice is an observable domain occurrence (content sent, balance changed,
// demand generated, ...). Listeners such as the journal or the metrics
// collector subscribe to them; the simulation never depends on whether
// anyone is listening.
type Notice struct {
	At          Time           `json:"at"`
	Category    string         `json:"category"`
	Kind        string         `json:"kind"`
	Actor       string         `json:"actor,omitempty"`
	Description string         `json:"description,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Listener receives notices synchronously, in emission order.
type Listener func(Notice)

// Bus fans notices out to its listeners.
type Bus struct {
	listeners []Listener
}

// Subscribe adds a listener. Listeners are invoked in subscription order.
func (b *Bus) Subscribe(l Listener) {
	if l == nil {
		return
	}
	b.listeners = append(b.listeners, l)
}

// Emit delivers n to every listener.
func (b *Bus) Emit(n Notice) {
	for _, l := range b.listeners {
		l(n)
	}
}
