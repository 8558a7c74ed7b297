package tidal

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/body"
)

func newDisruptor() *Disruptor {
	return NewDisruptor(DefaultParams(), rand.New(rand.NewSource(1)))
}

func totalMass(bs ...[]*body.Body) float64 {
	m := 0.0
	for _, list := range bs {
		for _, b := range list {
			if b.Alive {
				m += b.Mass
			}
		}
	}
	return m
}

func TestSusceptible(t *testing.T) {
	tests := []struct {
		typ  body.Type
		want bool
	}{
		{body.Planet, true},
		{body.GasGiant, true},
		{body.Asteroid, true},
		{body.Comet, true},
		{body.Star, true},
		{body.Debris, false},
		{body.NeutronStar, false},
		{body.BlackHole, false},
		{body.AccretionDiskParticle, false},
	}
	for _, tt := range tests {
		if got := Susceptible(tt.typ); got != tt.want {
			t.Errorf("Susceptible(%v) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestStep_OutsideTidalRadius(t *testing.T) {
	bh := body.New(1, body.BlackHole, r2.Vec{}, r2.Vec{}, 100) // radius 10, tidal radius 40
	p := body.New(2, body.Planet, r2.Vec{X: 50}, r2.Vec{}, 8)

	out := newDisruptor().Step([]*body.Body{p}, []*body.Body{bh}, 0.1)
	if len(out.Events) != 0 || len(out.Debris) != 0 || p.Mass != 8 {
		t.Errorf("unexpected disruption: %+v mass=%v", out, p.Mass)
	}
}

func TestStep_StripsAndConservesMass(t *testing.T) {
	bh := body.New(1, body.BlackHole, r2.Vec{}, r2.Vec{}, 100)
	p := body.New(2, body.Planet, r2.Vec{X: 20}, r2.Vec{Y: 5}, 8)
	d := newDisruptor()

	before := p.Mass
	var debris []*body.Body
	var onsets int
	for i := 0; i < 20 && p.Alive; i++ {
		out := d.Step([]*body.Body{p}, []*body.Body{bh}, 0.05)
		debris = append(debris, out.Debris...)
		for _, e := range out.Events {
			if e.Onset {
				onsets++
			}
		}
	}

	if onsets != 1 {
		t.Errorf("onset events = %d, want 1", onsets)
	}
	if p.Mass >= before {
		t.Errorf("mass %v not stripped from %v", p.Mass, before)
	}
	if len(debris) == 0 {
		t.Error("no debris shed")
	}
	if got := totalMass([]*body.Body{p}, debris); math.Abs(got-before) > 1e-9 {
		t.Errorf("mass %v -> %v, want conserved", before, got)
	}
}

func TestStep_DisintegratesBelowFloor(t *testing.T) {
	ns := body.New(1, body.NeutronStar, r2.Vec{}, r2.Vec{}, 140)
	a := body.New(2, body.Asteroid, r2.Vec{X: 1}, r2.Vec{}, 0.06)
	p := DefaultParams()
	p.MassRate = 10
	d := NewDisruptor(p, rand.New(rand.NewSource(2)))

	out := d.Step([]*body.Body{a}, []*body.Body{ns}, 0.1)

	if a.Alive || a.Intact {
		t.Errorf("asteroid alive=%v intact=%v, want both false", a.Alive, a.Intact)
	}
	if len(out.Debris) != p.BurstCount {
		t.Errorf("burst = %d debris, want %d", len(out.Debris), p.BurstCount)
	}
	var last Event
	for _, e := range out.Events {
		last = e
	}
	if !last.Disrupted || math.Abs(last.Mass-0.06) > 1e-12 {
		t.Errorf("final event = %+v, want disrupted carrying 0.06", last)
	}
	if got := totalMass(out.Debris); math.Abs(got-0.06) > 1e-12 {
		t.Errorf("burst mass = %v, want 0.06", got)
	}
}

func TestStep_NearestCompactOnly(t *testing.T) {
	far := body.New(1, body.WhiteDwarf, r2.Vec{X: -12}, r2.Vec{}, 100)
	near := body.New(2, body.NeutronStar, r2.Vec{X: 8}, r2.Vec{}, 140)
	s := body.New(3, body.Star, r2.Vec{}, r2.Vec{}, 50)

	out := newDisruptor().Step([]*body.Body{s}, []*body.Body{far, near}, 0.01)
	if len(out.Events) != 1 || out.Events[0].Source != near.ID {
		t.Errorf("events = %+v, want one onset from %d", out.Events, near.ID)
	}
}

func TestStep_SkipsInsideHorizon(t *testing.T) {
	bh := body.New(1, body.BlackHole, r2.Vec{}, r2.Vec{}, 100)
	p := body.New(2, body.Planet, r2.Vec{}, r2.Vec{}, 8)

	out := newDisruptor().Step([]*body.Body{p}, []*body.Body{bh}, 0.1)
	if len(out.Events) != 0 || p.Mass != 8 {
		t.Errorf("body inside horizon was stripped: %+v mass=%v", out, p.Mass)
	}
}

func TestStep_PendingStripStaysInMass(t *testing.T) {
	bh := body.New(1, body.BlackHole, r2.Vec{}, r2.Vec{}, 100)
	p := body.New(2, body.Planet, r2.Vec{X: 20}, r2.Vec{}, 8)

	out := newDisruptor().Step([]*body.Body{p}, []*body.Body{bh}, 0.01)
	if len(out.Debris) != 0 {
		t.Fatalf("debris = %d, want none after one short tick", len(out.Debris))
	}
	if p.Tidal.PendingMass <= 0 {
		t.Fatalf("pending mass = %v, want positive", p.Tidal.PendingMass)
	}
	if p.Mass != 8 {
		t.Errorf("mass = %v, want 8 until debris is shed", p.Mass)
	}
}

func TestStep_EscapeForgetsPendingStrip(t *testing.T) {
	bh := body.New(1, body.BlackHole, r2.Vec{}, r2.Vec{}, 100)
	p := body.New(2, body.GasGiant, r2.Vec{X: 30}, r2.Vec{}, 50)
	d := newDisruptor()

	d.Step([]*body.Body{p}, []*body.Body{bh}, 0.01)
	if !p.Tidal.Active {
		t.Fatal("tidal state not active")
	}
	before := p.Mass

	p.Pos = r2.Vec{X: 1000}
	d.Step([]*body.Body{p}, []*body.Body{bh}, 0.01)
	if p.Tidal.Active || p.Tidal.PendingMass != 0 {
		t.Errorf("tidal state = %+v, want reset", p.Tidal)
	}
	if math.Abs(p.Mass-before) > 1e-12 {
		t.Errorf("mass = %v, want %v", p.Mass, before)
	}
}
