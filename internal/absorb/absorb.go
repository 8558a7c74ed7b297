// Package absorb handles event-horizon capture by black holes and the
// accretion disk that feeds them.
package absorb

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/body"
)

type Params struct {
	// Buffer pads the horizon radius for capture.
	Buffer float64
	// DiskCaptureFactor times the horizon radius bounds debris capture into the disk.
	DiskCaptureFactor float64
	ParticleLifetime  float64
}

func DefaultParams() Params {
	return Params{
		Buffer:            1,
		DiskCaptureFactor: 3,
		ParticleLifetime:  20,
	}
}

type Absorption struct {
	Hole   int64
	Body   int64
	Type   body.Type
	Mass   float64
	Pos    r2.Vec
	Energy float64
}

// Absorb moves b's mass into hole and kills b. The hole keeps its velocity
// and its radius follows the new mass. A dead body, a dead hole, or a body
// absorbing itself is a no-op.
func Absorb(hole, b *body.Body) (Absorption, bool) {
	if hole == b || !hole.Alive || !b.Alive || hole.Type != body.BlackHole {
		return Absorption{}, false
	}

	a := Absorption{Hole: hole.ID, Body: b.ID, Type: b.Type, Mass: b.Mass, Pos: b.Pos, Energy: b.KineticEnergy()}
	hole.SetMass(hole.Mass + b.Mass)
	b.Kill()
	return a, true
}

type Absorber struct {
	p Params
}

func NewAbsorber(p Params) *Absorber { return &Absorber{p: p} }

func (a *Absorber) Params() Params { return a.p }

// Horizon is the capture distance for hole.
func (a *Absorber) Horizon(hole *body.Body) float64 {
	return hole.Radius + a.p.Buffer
}

// Step absorbs every alive non-black-hole body inside a horizon. Holes are
// scanned in order so a body is taken by the first hole that reaches it.
func (a *Absorber) Step(holes, bodies []*body.Body) []Absorption {
	var out []Absorption
	for _, h := range holes {
		if !h.Alive {
			continue
		}
		reach := a.Horizon(h)
		for _, b := range bodies {
			if !b.Alive || b.Type == body.BlackHole || b.Type == body.AccretionDiskParticle {
				continue
			}
			if body.Distance(h, b) >= reach {
				continue
			}
			if abs, ok := Absorb(h, b); ok {
				out = append(out, abs)
			}
		}
	}
	return out
}
