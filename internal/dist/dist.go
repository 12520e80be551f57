// Package dist supplies the random draws the simulation consumes: durations
// between events and amounts of product. Every draw comes from a seeded
// stream so a run is reproducible.
package dist

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"time"
)

// Stream is a seeded source of random numbers. Streams are not safe for
// concurrent use; the simulation is single-threaded.
type Stream struct {
	seed int64
	rng  *rand.Rand
}

// NewStream creates a stream for seed.
func NewStream(seed int64) *Stream {
	return &Stream{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Seed returns the stream's seed.
func (s *Stream) Seed() int64 { return s.seed }

// Derive returns an independent stream named label. Deriving the same label
// from the same seed always yields the same sequence, regardless of how many
// draws were taken from s.
func (s *Stream) Derive(label string) *Stream {
	h := fnv.New64a()
	h.Write([]byte(label))
	return NewStream(s.seed ^ int64(h.Sum64()))
}

// Float64 returns a value in [0, 1).
func (s *Stream) Float64() float64 { return s.rng.Float64() }

// Intn returns a value in [0, n).
func (s *Stream) Intn(n int) int { return s.rng.Intn(n) }

// Amount draws non-negative quantities.
type Amount interface {
	Draw() float64
}

// Duration draws non-negative durations.
type Duration interface {
	Draw() time.Duration
}

// Constant always yields the same amount.
type Constant float64

func (c Constant) Draw() float64 { return max(float64(c), 0) }

// Uniform draws amounts evenly from [Min, Max).
type Uniform struct {
	Min, Max float64
	S        *Stream
}

func (u Uniform) Draw() float64 {
	return max(u.Min+u.S.Float64()*(u.Max-u.Min), 0)
}

// Exponential draws amounts with the given mean.
type Exponential struct {
	Mean float64
	S    *Stream
}

func (e Exponential) Draw() float64 {
	return e.S.rng.ExpFloat64() * e.Mean
}

// Normal draws normally distributed amounts, truncated at zero.
type Normal struct {
	Mean, StdDev float64
	S            *Stream
}

func (n Normal) Draw() float64 {
	return max(n.Mean+n.S.rng.NormFloat64()*n.StdDev, 0)
}

// Scaled turns an amount distribution into a duration distribution counted
// in units of Unit.
type Scaled struct {
	Of   Amount
	Unit time.Duration
}

func (s Scaled) Draw() time.Duration {
	return time.Duration(math.Round(s.Of.Draw() * float64(s.Unit)))
}

// Fixed returns a duration distribution that always yields d.
func Fixed(d time.Duration) Duration {
	return Scaled{Of: Constant(1), Unit: d}
}

// Spec describes a distribution in configuration.
type Spec struct {
	Dist   string  `toml:"dist" json:"dist"` // constant, uniform, exponential or normal
	Value  float64 `toml:"value" json:"value,omitempty"`
	Min    float64 `toml:"min" json:"min,omitempty"`
	Max    float64 `toml:"max" json:"max,omitempty"`
	Mean   float64 `toml:"mean" json:"mean,omitempty"`
	StdDev float64 `toml:"stddev" json:"stddev,omitempty"`
}

// Validate checks the distribution parameters.
func (sp Spec) Validate() error {
	switch sp.Dist {
	case "", "constant":
		if sp.Value < 0 {
			return fmt.Errorf("constant: negative value %v", sp.Value)
		}
	case "uniform":
		if sp.Min < 0 || sp.Max < sp.Min {
			return fmt.Errorf("uniform: need 0 <= min <= max, got [%v, %v]", sp.Min, sp.Max)
		}
	case "exponential":
		if sp.Mean <= 0 {
			return fmt.Errorf("exponential: mean must be positive, got %v", sp.Mean)
		}
	case "normal":
		if sp.StdDev < 0 {
			return fmt.Errorf("normal: negative stddev %v", sp.StdDev)
		}
	default:
		return fmt.Errorf("unknown distribution %q", sp.Dist)
	}
	return nil
}

// Amount builds the amount distribution drawing from s.
func (sp Spec) Amount(s *Stream) (Amount, error) {
	if err := sp.Validate(); err != nil {
		return nil, err
	}
	switch sp.Dist {
	case "uniform":
		return Uniform{Min: sp.Min, Max: sp.Max, S: s}, nil
	case "exponential":
		return Exponential{Mean: sp.Mean, S: s}, nil
	case "normal":
		return Normal{Mean: sp.Mean, StdDev: sp.StdDev, S: s}, nil
	default:
		return Constant(sp.Value), nil
	}
}

// Duration builds a duration distribution whose values count unit.
func (sp Spec) Duration(s *Stream, unit time.Duration) (Duration, error) {
	a, err := sp.Amount(s)
	if err != nil {
		return nil, err
	}
	return Scaled{Of: a, Unit: unit}, nil
}
