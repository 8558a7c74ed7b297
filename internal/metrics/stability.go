package metrics

import (
	"math"

	"github.com/san-kum/gravsim/internal/sim"
)

// Stability is the fraction of samples whose energy stays within threshold
// of the first sample and is finite.
type Stability struct {
	threshold  float64
	initial    float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{threshold: threshold}
}

func (s *Stability) Name() string {
	return "stability"
}

func (s *Stability) Observe(st sim.Stats) {
	if !st.HasEnergy {
		return
	}
	e := st.Energy()
	if s.samples == 0 {
		s.initial = e
	}
	s.samples++
	if math.IsNaN(e) || math.IsInf(e, 0) {
		s.violations++
		return
	}
	if s.initial != 0 && math.Abs(e-s.initial)/math.Abs(s.initial) > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.initial = 0
	s.violations = 0
	s.samples = 0
}
