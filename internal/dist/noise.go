package dist

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/tradesim/internal/engine"
)

// Noise varies demand smoothly over simulated time. Each product gets its
// own row of a 2D simplex field so products fluctuate independently.
type Noise struct {
	field     opensimplex.Noise
	Amplitude float64 // 0 disables modulation; 1 lets the factor reach 0..2
	Period    float64 // Days per unit of noise space
	Octaves   int
}

// NewNoise creates a noise field for seed.
func NewNoise(seed int64, amplitude, period float64) *Noise {
	if period <= 0 {
		period = 30
	}
	return &Noise{
		field:     opensimplex.NewNormalized(seed),
		Amplitude: amplitude,
		Period:    period,
		Octaves:   3,
	}
}

// Factor returns the demand multiplier for row at simulated time t. It lies
// in [1-Amplitude, 1+Amplitude] and never below zero.
func (n *Noise) Factor(row int, t engine.Time) float64 {
	if n == nil || n.Amplitude == 0 {
		return 1
	}
	v := octave(n.field, t.Days()/n.Period, float64(row)*7.3, max(n.Octaves, 1), 1, 0.5)
	return max(1+n.Amplitude*(2*v-1), 0)
}

// octave layers several frequencies of the field. The result stays in [0, 1].
func octave(field opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	for i := 0; i < octaves; i++ {
		total += field.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}
	return total / maxVal
}

// Modulated scales a base amount by the noise factor at the current time.
type Modulated struct {
	Base  Amount
	Noise *Noise
	Row   int
	Now   func() engine.Time
}

func (m Modulated) Draw() float64 {
	return m.Base.Draw() * m.Noise.Factor(m.Row, m.Now())
}
