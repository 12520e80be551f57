package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b HexCoord
		want int
	}{
		{"same", HexCoord{0, 0}, HexCoord{0, 0}, 0},
		{"neighbor", HexCoord{0, 0}, HexCoord{1, -1}, 1},
		{"straight", HexCoord{0, 0}, HexCoord{3, 0}, 3},
		{"diagonal", HexCoord{-2, 1}, HexCoord{2, -1}, 4},
		{"symmetric", HexCoord{5, -3}, HexCoord{-1, 2}, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Distance(tt.a, tt.b))
			assert.Equal(t, tt.want, Distance(tt.b, tt.a))
		})
	}
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "Delft(1,-2)", Location{Name: "Delft", Coord: HexCoord{1, -2}}.String())
	assert.Equal(t, "(0,0)", Location{}.String())
	assert.Equal(t, 2, Location{Coord: HexCoord{2, 0}}.DistanceTo(Location{}))
}
