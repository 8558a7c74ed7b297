package metrics

import (
	"math"

	"github.com/san-kum/gravsim/internal/sim"
)

// Energy is the mean total energy over the samples that carry it.
type Energy struct {
	samples     int
	totalEnergy float64
}

func NewEnergy() *Energy { return &Energy{} }

func (e *Energy) Name() string { return "energy" }

func (e *Energy) Observe(s sim.Stats) {
	if !s.HasEnergy {
		return
	}
	e.totalEnergy += s.Energy()
	e.samples++
}

func (e *Energy) Value() float64 {
	if e.samples == 0 {
		return 0
	}
	return e.totalEnergy / float64(e.samples)
}

func (e *Energy) Reset() {
	e.totalEnergy = 0
	e.samples = 0
}

// drift tracks the largest relative departure of a quantity from its first
// observed value.
type drift struct {
	initial  float64
	maxDrift float64
	samples  int
}

func (d *drift) observe(v float64) {
	if d.samples == 0 {
		d.initial = v
	}
	d.samples++
	if d.initial != 0 {
		d.maxDrift = math.Max(d.maxDrift, math.Abs(v-d.initial)/math.Abs(d.initial))
	}
}

func (d *drift) reset() { *d = drift{} }

// EnergyDrift is the maximum relative energy error. Mergers, absorption and
// cleanup change the energy legitimately, so it is meaningful mainly for
// collisionless runs.
type EnergyDrift struct{ d drift }

func NewEnergyDrift() *EnergyDrift { return &EnergyDrift{} }

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(s sim.Stats) {
	if s.HasEnergy {
		e.d.observe(s.Energy())
	}
}

func (e *EnergyDrift) Value() float64 { return e.d.maxDrift }
func (e *EnergyDrift) Reset()         { e.d.reset() }

// MassDrift is the maximum relative change in total mass. It stays near
// zero unless bodies leave through the bounds radius.
type MassDrift struct{ d drift }

func NewMassDrift() *MassDrift { return &MassDrift{} }

func (m *MassDrift) Name() string        { return "mass_drift" }
func (m *MassDrift) Observe(s sim.Stats) { m.d.observe(s.Mass) }
func (m *MassDrift) Value() float64      { return m.d.maxDrift }
func (m *MassDrift) Reset()              { m.d.reset() }

// BodyCount reports the body count at the last sample.
type BodyCount struct {
	last int
}

func NewBodyCount() *BodyCount { return &BodyCount{} }

func (b *BodyCount) Name() string        { return "bodies" }
func (b *BodyCount) Observe(s sim.Stats) { b.last = s.Bodies }
func (b *BodyCount) Value() float64      { return float64(b.last) }
func (b *BodyCount) Reset()              { b.last = 0 }

// Standard returns the metrics attached to every CLI run.
func Standard() []sim.Metric {
	return []sim.Metric{NewEnergy(), NewEnergyDrift(), NewMassDrift(), NewBodyCount(), NewStability(0.05)}
}
