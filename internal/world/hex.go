// Package world provides actor locations on a hex grid.
// Uses axial coordinates (q, r); distances are measured in hexes.
package world

import "fmt"

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q" toml:"q"`
	R int `json:"r" toml:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// String renders the coordinate as "(q,r)".
func (h HexCoord) String() string {
	return fmt.Sprintf("(%d,%d)", h.Q, h.R)
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	// Max of the three absolute differences in cube coordinates.
	return max(dq, dr, ds)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Location is a named place on the grid: an actor's site, a hub or a port.
type Location struct {
	Name  string   `json:"name" toml:"name"`
	Coord HexCoord `json:"coord" toml:"coord"`
}

// DistanceTo returns the hex distance from l to other.
func (l Location) DistanceTo(other Location) int {
	return Distance(l.Coord, other.Coord)
}

func (l Location) String() string {
	if l.Name == "" {
		return l.Coord.String()
	}
	return l.Name + l.Coord.String()
}
