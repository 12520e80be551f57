package actor

import (
	"fmt"

	"github.com/talgya/tradesim/internal/content"
)

// Handler processes one content kind for the actor owning its role.
type Handler struct {
	kind     content.Kind
	role     *Role
	products map[string]bool
	partners map[string]bool
	fn       func(content.Content) bool
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// ForProducts restricts a handler to content about the named products.
func ForProducts(names ...string) HandlerOption {
	return func(h *Handler) {
		for _, n := range names {
			h.products[n] = true
		}
	}
}

// FromPartners restricts a handler to content sent by the given actors.
func FromPartners(ids ...string) HandlerOption {
	return func(h *Handler) {
		for _, id := range ids {
			h.partners[id] = true
		}
	}
}

// On builds a handler for content type C, which must be one of the concrete
// message pointer types of package content.
func On[C content.Content](fn func(C), opts ...HandlerOption) *Handler {
	var zero C
	h := &Handler{
		kind:     zero.Kind(),
		products: make(map[string]bool),
		partners: make(map[string]bool),
	}
	h.fn = func(c content.Content) bool {
		typed, ok := c.(C)
		if !ok {
			return false
		}
		fn(typed)
		return true
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Kind returns the content kind the handler accepts.
func (h *Handler) Kind() content.Kind { return h.kind }

// Check returns why c would be rejected, or nil if the handler accepts it.
func (h *Handler) Check(c content.Content) error {
	if h.role == nil || h.role.actor == nil {
		return fmt.Errorf("%s handler is not attached to an actor", h.kind)
	}
	hd := c.Head()
	switch {
	case c.Kind() != h.kind:
		return fmt.Errorf("kind %s, handler accepts %s", c.Kind(), h.kind)
	case hd.Receiver != h.role.actor.id:
		return fmt.Errorf("addressed to %q", hd.Receiver)
	}
	if len(h.products) > 0 {
		p, ok := content.ProductOf(c)
		if !ok {
			return fmt.Errorf("%s carries no product", c.Kind())
		}
		if !h.products[p.Name] {
			return fmt.Errorf("product %q not handled", p.Name)
		}
	}
	if len(h.partners) > 0 && !h.partners[hd.Sender] {
		return fmt.Errorf("sender %q is not a partner", hd.Sender)
	}
	return nil
}

// Handle validates c, records it in the actor's store and processes it. It
// returns false, after logging, when c is invalid or a duplicate delivery.
func (h *Handler) Handle(c content.Content) bool {
	if err := h.Check(c); err != nil {
		if h.role != nil && h.role.actor != nil {
			h.role.actor.reject(c, err.Error())
		}
		return false
	}
	a := h.role.actor
	if !a.store.Append(c, content.Received) {
		a.reject(c, "duplicate delivery")
		return false
	}
	return h.fn(c)
}
