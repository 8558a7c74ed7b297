// Package tidal strips mass from bodies that stray inside a compact
// object's tidal radius and sheds it as debris.
package tidal

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/body"
)

type Params struct {
	// MassRate is the fraction of mass lost per unit time at full proximity.
	MassRate float64
	// DebrisRate is debris bodies per unit time at full proximity.
	DebrisRate float64
	// Multipliers scale a compact object's radius into its tidal radius.
	Multipliers map[body.Type]float64
	// Floors is the per-type mass below which a body disintegrates.
	Floors     map[body.Type]float64
	BurstCount int
	// AbsorptionBuffer mirrors the absorber's horizon padding; bodies that
	// will be swallowed this tick are left whole.
	AbsorptionBuffer float64
	Spread           float64
}

func DefaultParams() Params {
	return Params{
		MassRate:   0.5,
		DebrisRate: 20,
		Multipliers: map[body.Type]float64{
			body.BlackHole:   4,
			body.NeutronStar: 8,
			body.WhiteDwarf:  5,
		},
		Floors: map[body.Type]float64{
			body.Planet:   0.2,
			body.GasGiant: 1,
			body.Asteroid: 0.05,
			body.Comet:    0.05,
			body.Star:     5,
		},
		BurstCount:       8,
		AbsorptionBuffer: 1,
		Spread:           0.3,
	}
}

// Susceptible reports whether t can be tidally stripped.
func Susceptible(t body.Type) bool {
	switch t {
	case body.Planet, body.GasGiant, body.Asteroid, body.Comet, body.Star:
		return true
	}
	return false
}

type Event struct {
	Body   int64
	Source int64
	Pos    r2.Vec
	// Mass is the body's mass at onset, or the mass released in the final burst.
	Mass      float64
	Fraction  float64
	Onset     bool
	Disrupted bool
}

type Outcome struct {
	Events []Event
	// Debris is not yet registered.
	Debris []*body.Body
}

type Disruptor struct {
	p   Params
	rng *rand.Rand
}

func NewDisruptor(p Params, rng *rand.Rand) *Disruptor {
	return &Disruptor{p: p, rng: rng}
}

// Step applies one tick of stripping. Only the nearest compact object acts
// on each body.
func (d *Disruptor) Step(bodies, compacts []*body.Body, dt float64) Outcome {
	var out Outcome
	for _, b := range bodies {
		if !b.Alive || !b.Intact || !Susceptible(b.Type) {
			continue
		}

		c, dist := nearest(b, compacts)
		if c == nil {
			d.release(b)
			continue
		}
		if c.Type == body.BlackHole && dist < c.Radius+d.p.AbsorptionBuffer {
			continue
		}

		threshold := c.Radius * d.p.Multipliers[c.Type]
		if dist >= threshold {
			d.release(b)
			continue
		}
		fraction := math.Max(0, (threshold-dist)/threshold)

		if !b.Tidal.Active {
			b.Tidal.Active = true
			out.Events = append(out.Events, Event{
				Body: b.ID, Source: c.ID, Pos: b.Pos, Mass: b.Mass, Fraction: fraction, Onset: true,
			})
		}

		// Stripped mass stays in b.Mass until it leaves as debris.
		remaining := b.Mass - b.Tidal.PendingMass
		loss := math.Min(remaining*fraction*d.p.MassRate*dt, remaining)
		b.Tidal.PendingMass += loss
		b.Tidal.PendingCount += fraction * d.p.DebrisRate * dt

		if left := remaining - loss; left <= 0 || left < d.p.Floors[b.Type] {
			released := b.Mass
			out.Debris = append(out.Debris, d.shed(b, c, released, max(d.p.BurstCount, 1))...)
			b.Tidal = body.TidalState{}
			b.Intact = false
			b.Kill()
			out.Events = append(out.Events, Event{
				Body: b.ID, Source: c.ID, Pos: b.Pos, Mass: released, Fraction: fraction, Disrupted: true,
			})
			continue
		}

		if k := int(b.Tidal.PendingCount); k >= 1 {
			out.Debris = append(out.Debris, d.shed(b, c, b.Tidal.PendingMass, k)...)
			b.SetMass(b.Mass - b.Tidal.PendingMass)
			b.Tidal.PendingMass = 0
			b.Tidal.PendingCount -= float64(k)
		}
	}
	return out
}

// release forgets a strip that never shed once a body escapes; the mass
// was never taken out of b.
func (d *Disruptor) release(b *body.Body) {
	if b.Tidal.Active {
		b.Tidal = body.TidalState{}
	}
}

func nearest(b *body.Body, compacts []*body.Body) (*body.Body, float64) {
	var best *body.Body
	bestDist := math.Inf(1)
	for _, c := range compacts {
		if !c.Alive || c == b {
			continue
		}
		if dist := body.Distance(b, c); dist < bestDist {
			best, bestDist = c, dist
		}
	}
	return best, bestDist
}

// shed splits mass evenly over n debris bodies launched along both tidal
// tails of b.
func (d *Disruptor) shed(b, c *body.Body, mass float64, n int) []*body.Body {
	if mass <= 0 || n <= 0 {
		return nil
	}

	axis := r2.Sub(b.Pos, c.Pos)
	if r2.Norm2(axis) == 0 {
		axis = r2.Vec{X: 1}
	}
	axis = r2.Unit(axis)

	each := mass / float64(n)
	out := make([]*body.Body, 0, n)
	for i := 0; i < n; i++ {
		dir := axis
		if i%2 == 1 {
			dir = r2.Scale(-1, axis)
		}
		jitter := (d.rng.Float64()*2 - 1) * d.p.Spread
		dir = rotate(dir, jitter)

		pos := r2.Add(b.Pos, r2.Scale(b.Radius*(1+d.rng.Float64()), dir))
		vel := r2.Add(b.Vel, r2.Scale(d.p.Spread*b.Speed()*d.rng.Float64(), dir))
		out = append(out, body.New(0, body.Debris, pos, vel, each))
	}
	return out
}

func rotate(v r2.Vec, angle float64) r2.Vec {
	s, c := math.Sincos(angle)
	return r2.Vec{X: v.X*c - v.Y*s, Y: v.X*s + v.Y*c}
}
