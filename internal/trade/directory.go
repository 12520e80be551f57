package trade

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/talgya/tradesim/internal/actor"
	"github.com/talgya/tradesim/internal/content"
)

// Directory is the role answering supplier searches from its listings.
type Directory struct {
	a        *actor.Actor
	role     *actor.Role
	listings map[string][]string
}

// NewDirectory gives a the directory role. listings maps a product name to
// the actors supplying it.
func NewDirectory(a *actor.Actor, listings map[string][]string) (*Directory, error) {
	d := &Directory{a: a, listings: make(map[string][]string)}
	for p, suppliers := range listings {
		d.List(p, suppliers...)
	}
	role, err := actor.NewRole(RoleDirectory,
		[]content.Kind{content.KindSearchRequest},
		actor.On(d.onSearch),
	)
	if err != nil {
		return nil, err
	}
	if err := a.AddRole(role); err != nil {
		return nil, err
	}
	d.role = role
	return d, nil
}

// List adds suppliers of a product.
func (d *Directory) List(product string, suppliers ...string) {
	for _, s := range suppliers {
		if !slices.Contains(d.listings[product], s) {
			d.listings[product] = append(d.listings[product], s)
		}
	}
}

type listing struct {
	id       string
	distance int
}

// Search returns the suppliers of a product nearest to the searcher first,
// limited by distance and count (0 for no limit).
func (d *Directory) Search(r *content.SearchRequest) []string {
	var found []listing
	for _, id := range d.listings[r.Product.Name] {
		if id == r.Sender {
			continue
		}
		s, ok := d.a.Model().Actor(id)
		if !ok {
			slog.Warn("listed supplier unknown", "directory", d.a.ID(), "supplier", id)
			continue
		}
		dist := s.Location().DistanceTo(r.Location)
		if r.MaxDistance > 0 && dist > r.MaxDistance {
			continue
		}
		found = append(found, listing{id: id, distance: dist})
	}
	slices.SortStableFunc(found, func(a, b listing) int {
		return cmp.Or(cmp.Compare(a.distance, b.distance), cmp.Compare(a.id, b.id))
	})
	if r.MaxAnswers > 0 && len(found) > r.MaxAnswers {
		found = found[:r.MaxAnswers]
	}
	out := make([]string, len(found))
	for i, l := range found {
		out[i] = l.id
	}
	return out
}

func (d *Directory) onSearch(r *content.SearchRequest) {
	ans := &content.SearchAnswer{
		Header:    content.Reply(r),
		RequestID: r.ID,
		Product:   r.Product,
		Suppliers: d.Search(r),
	}
	if err := d.a.Send(ans, 0); err != nil {
		slog.Error("search answer not sent", "directory", d.a.ID(), "error", err)
	}
}
