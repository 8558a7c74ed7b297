package gravity

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/body"
)

// Energy returns the kinetic and pairwise potential energy of the alive bodies.
func Energy(p Params, bodies []*body.Body) (ke, pe float64) {
	floor := p.MinDist
	for i, a := range bodies {
		if !a.Alive {
			continue
		}
		ke += a.KineticEnergy()

		for _, b := range bodies[i+1:] {
			if !b.Alive {
				continue
			}
			r := math.Max(body.Distance(a, b), floor)
			if r == 0 {
				continue
			}
			pe -= p.G * a.Mass * b.Mass / r
		}
	}
	return ke, pe
}

// Momentum returns the total linear momentum of the alive bodies.
func Momentum(bodies []*body.Body) r2.Vec {
	var p r2.Vec
	for _, b := range bodies {
		if b.Alive {
			p = r2.Add(p, b.Momentum())
		}
	}
	return p
}

// AngularMomentum returns the z component about the origin.
func AngularMomentum(bodies []*body.Body) float64 {
	L := 0.0
	for _, b := range bodies {
		if b.Alive {
			L += b.Mass * (b.Pos.X*b.Vel.Y - b.Pos.Y*b.Vel.X)
		}
	}
	return L
}

// TotalMass sums the mass of the alive bodies.
func TotalMass(bodies []*body.Body) float64 {
	m := 0.0
	for _, b := range bodies {
		if b.Alive {
			m += b.Mass
		}
	}
	return m
}
