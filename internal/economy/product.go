package economy

import (
	"fmt"
	"sort"
)

// Product is a tradeable good. Products are shared by reference and never
// mutated after the catalog is built.
type Product struct {
	Name            string  `json:"name"`
	Unit            string  `json:"unit"`
	UnitMarketPrice Money   `json:"unit_market_price"` // Reference price buyers compare quotes with
	UnitVolume      float64 `json:"unit_volume"`       // Loading/unloading scales with volume
}

// Catalog holds every product known to a scenario.
type Catalog struct {
	products map[string]*Product
}

// NewCatalog builds a catalog, rejecting duplicate or unnamed products and
// negative prices.
func NewCatalog(products ...Product) (*Catalog, error) {
	c := &Catalog{products: make(map[string]*Product, len(products))}
	for _, p := range products {
		if p.Name == "" {
			return nil, fmt.Errorf("product without name")
		}
		if p.UnitMarketPrice < 0 {
			return nil, fmt.Errorf("product %q: negative market price %v", p.Name, p.UnitMarketPrice)
		}
		if _, dup := c.products[p.Name]; dup {
			return nil, fmt.Errorf("duplicate product %q", p.Name)
		}
		if p.UnitVolume <= 0 {
			p.UnitVolume = 1
		}
		p := p
		c.products[p.Name] = &p
	}
	return c, nil
}

// Get looks up a product by name.
func (c *Catalog) Get(name string) (*Product, bool) {
	p, ok := c.products[name]
	return p, ok
}

// Names returns all product names sorted alphabetically.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.products))
	for name := range c.products {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
