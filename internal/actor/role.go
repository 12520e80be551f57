package actor

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/talgya/tradesim/internal/content"
)

var (
	// ErrMissingHandler is returned when a role lacks a handler its contract
	// requires.
	ErrMissingHandler = errors.New("actor: missing required handler")
	// ErrDuplicateHandler is returned when a role gets two handlers for one kind.
	ErrDuplicateHandler = errors.New("actor: duplicate handler")
)

// Role is a capability bundle (buying, selling, banking, ...) owned by
// exactly one actor.
type Role struct {
	kind      string
	actor     *Actor
	handlers  map[content.Kind]*Handler
	processes []*Process
}

// NewRole builds a role for a capability. Every kind in required must have a
// handler; all problems are reported together.
func NewRole(kind string, required []content.Kind, handlers ...*Handler) (*Role, error) {
	var errs *multierror.Error
	if kind == "" {
		errs = multierror.Append(errs, errors.New("actor: role without capability name"))
	}
	r := &Role{kind: kind, handlers: make(map[content.Kind]*Handler)}
	for _, h := range handlers {
		if h == nil {
			errs = multierror.Append(errs, fmt.Errorf("role %s: nil handler", kind))
			continue
		}
		if _, ok := r.handlers[h.kind]; ok {
			errs = multierror.Append(errs, fmt.Errorf("role %s: %s: %w", kind, h.kind, ErrDuplicateHandler))
			continue
		}
		h.role = r
		r.handlers[h.kind] = h
	}
	for _, k := range required {
		if _, ok := r.handlers[k]; !ok {
			errs = multierror.Append(errs, fmt.Errorf("role %s: %s: %w", kind, k, ErrMissingHandler))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return r, nil
}

// Kind returns the capability name.
func (r *Role) Kind() string { return r.kind }

// Actor returns the owning actor, or nil before the role is added to one.
func (r *Role) Actor() *Actor { return r.actor }

// Handler returns the role's handler for kind.
func (r *Role) Handler(kind content.Kind) (*Handler, bool) {
	h, ok := r.handlers[kind]
	return h, ok
}

// Kinds returns the handled content kinds, sorted.
func (r *Role) Kinds() []content.Kind {
	out := make([]content.Kind, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// AddProcess attaches an autonomous process. It starts with the model, or
// right away if the model is already running.
func (r *Role) AddProcess(p *Process) error {
	if p.role != nil {
		return fmt.Errorf("process %s already attached to role %s", p.name, p.role.kind)
	}
	p.role = r
	r.processes = append(r.processes, p)
	if r.actor != nil && r.actor.model.started {
		return p.start()
	}
	return nil
}

// Processes returns the role's autonomous processes.
func (r *Role) Processes() []*Process {
	return slices.Clone(r.processes)
}

func (r *Role) start() error {
	var errs *multierror.Error
	for _, p := range r.processes {
		if err := p.start(); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
