package metrics

import (
	"math"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/san-kum/gravsim/internal/events"
	"github.com/san-kum/gravsim/internal/sim"
)

func energyStats(ke, pe float64) sim.Stats {
	return sim.Stats{Kinetic: ke, Potential: pe, HasEnergy: true}
}

func TestEnergy(t *testing.T) {
	m := NewEnergy()
	m.Observe(energyStats(3, -5))
	m.Observe(energyStats(1, -5))
	m.Observe(sim.Stats{Kinetic: 100})

	if got := m.Value(); got != -3 {
		t.Errorf("Value() = %v, want -3", got)
	}
	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero energy after reset")
	}
}

func TestEnergyDrift(t *testing.T) {
	m := NewEnergyDrift()
	for _, e := range []float64{-10, -10.5, -9.8, -10.1} {
		m.Observe(energyStats(0, e))
	}
	if got := m.Value(); math.Abs(got-0.05) > 1e-12 {
		t.Errorf("Value() = %v, want 0.05", got)
	}
	m.Reset()
	m.Observe(energyStats(0, -2))
	if m.Value() != 0 {
		t.Errorf("Value() after reset = %v, want 0", m.Value())
	}
}

func TestMassDriftAndCount(t *testing.T) {
	md, bc := NewMassDrift(), NewBodyCount()
	for i, mass := range []float64{200, 200, 150} {
		s := sim.Stats{Mass: mass, Bodies: 3 - i}
		md.Observe(s)
		bc.Observe(s)
	}
	if got := md.Value(); got != 0.25 {
		t.Errorf("mass drift = %v, want 0.25", got)
	}
	if got := bc.Value(); got != 1 {
		t.Errorf("bodies = %v, want 1", got)
	}
}

func TestStability(t *testing.T) {
	tests := []struct {
		name     string
		energies []float64
		want     float64
	}{
		{"steady", []float64{-10, -10.1, -9.95}, 1},
		{"one excursion", []float64{-10, -12, -10}, 2.0 / 3.0},
		{"non-finite", []float64{-10, math.NaN()}, 0.5},
	}
	for _, tt := range tests {
		s := NewStability(0.05)
		for _, e := range tt.energies {
			s.Observe(energyStats(0, e))
		}
		if got := s.Value(); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s: Value() = %v, want %v", tt.name, got, tt.want)
		}
	}

	if v := NewStability(0.1).Value(); v != 1 {
		t.Errorf("empty stability = %v, want 1", v)
	}
}

func TestStandardNames(t *testing.T) {
	seen := make(map[string]bool)
	for _, m := range Standard() {
		if seen[m.Name()] {
			t.Errorf("duplicate metric %q", m.Name())
		}
		seen[m.Name()] = true
	}
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	c.OnStep(sim.Stats{
		Time:  0.5,
		Mass:  220,
		Types: map[string]int{"black_hole": 1, "planet": 2},
	}, []events.Event{{Kind: events.Merge}, {Kind: events.Absorption}, {Kind: events.Merge}})
	c.OnStep(sim.Stats{
		Time:  0.51,
		Mass:  220,
		Types: map[string]int{"black_hole": 1},
	}, nil)

	if got := testutil.ToFloat64(c.ticks); got != 2 {
		t.Errorf("ticks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.eventsTotal.WithLabelValues("merge")); got != 2 {
		t.Errorf("merge events = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.eventsTotal.WithLabelValues("tidal")); got != 0 {
		t.Errorf("tidal events = %v, want 0", got)
	}
	if got := testutil.ToFloat64(c.mass); got != 220 {
		t.Errorf("mass = %v, want 220", got)
	}

	want := `
# HELP gravsim_bodies Registered bodies by type
# TYPE gravsim_bodies gauge
gravsim_bodies{type="black_hole"} 1
`
	if err := testutil.CollectAndCompare(c.bodies, strings.NewReader(want)); err != nil {
		t.Errorf("bodies gauge: %v", err)
	}
	if n := testutil.CollectAndCount(c.eventsTotal); n != len(events.Kinds()) {
		t.Errorf("event series = %d, want %d", n, len(events.Kinds()))
	}
}
