// Package gravity holds the direct pairwise force evaluator and the
// conserved-quantity diagnostics computed from it.
package gravity

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/body"
)

// Source is a point mass contributing to the field.
type Source struct {
	Pos  r2.Vec
	Mass float64
}

// Params are the evaluator constants shared by the direct and tree paths.
type Params struct {
	G       float64
	MinDist float64
}

func (p Params) floor2() float64 { return p.MinDist * p.MinDist }

// Sources copies the position and mass of every alive body.
func Sources(bodies []*body.Body) []Source {
	out := make([]Source, 0, len(bodies))
	for _, b := range bodies {
		if !b.Alive {
			continue
		}
		out = append(out, Source{Pos: b.Pos, Mass: b.Mass})
	}
	return out
}

// Accel returns the acceleration at target due to sources.
func Accel(p Params, target r2.Vec, sources []Source) r2.Vec {
	a, _ := accumulate(p, target, sources, false)
	return a
}

// AccelPotential returns the acceleration and the specific potential at target.
func AccelPotential(p Params, target r2.Vec, sources []Source) (r2.Vec, float64) {
	return accumulate(p, target, sources, true)
}

func accumulate(p Params, target r2.Vec, sources []Source, withPhi bool) (r2.Vec, float64) {
	var ax, ay, phi float64
	floor2 := p.floor2()

	for _, s := range sources {
		fx, fy, fphi := kernel(p.G, floor2, s.Pos.X-target.X, s.Pos.Y-target.Y, s.Mass, withPhi)
		ax += fx
		ay += fy
		phi += fphi
	}

	return r2.Vec{X: ax, Y: ay}, phi
}

// Contribution returns the acceleration and potential at the origin of the
// separation (rx, ry) due to mass m. Zero separation contributes nothing.
func Contribution(p Params, rx, ry, m float64) (ax, ay, phi float64) {
	return kernel(p.G, p.floor2(), rx, ry, m, true)
}

func kernel(g, floor2, rx, ry, m float64, withPhi bool) (ax, ay, phi float64) {
	d2 := rx*rx + ry*ry
	if d2 == 0 {
		return 0, 0, 0
	}

	dist2 := d2
	clamped := d2 < floor2
	if clamped {
		dist2 = floor2
	}

	rInv := 1.0 / math.Sqrt(dist2)
	f := g * m * rInv * rInv * rInv
	if clamped {
		// keep magnitude at G*m/floor² while pointing along the true separation
		f *= math.Sqrt(dist2 / d2)
	}
	if withPhi {
		phi = -g * m * rInv
	}
	return f * rx, f * ry, phi
}

// Mutual returns the all-pairs acceleration of every source due to the
// others, using the symmetric i<j sweep.
func Mutual(p Params, sources []Source) []r2.Vec {
	n := len(sources)
	acc := make([]r2.Vec, n)
	floor2 := p.floor2()

	for i := 0; i < n; i++ {
		xi, yi := sources[i].Pos.X, sources[i].Pos.Y

		for j := i + 1; j < n; j++ {
			rx := sources[j].Pos.X - xi
			ry := sources[j].Pos.Y - yi
			d2 := rx*rx + ry*ry
			if d2 == 0 {
				continue
			}

			dist2 := d2
			scale := 1.0
			if d2 < floor2 {
				dist2 = floor2
				scale = math.Sqrt(dist2 / d2)
			}

			rInv := 1.0 / math.Sqrt(dist2)
			r3Inv := rInv * rInv * rInv * scale

			fij := p.G * sources[j].Mass * r3Inv
			acc[i].X += fij * rx
			acc[i].Y += fij * ry

			fji := p.G * sources[i].Mass * r3Inv
			acc[j].X -= fji * rx
			acc[j].Y -= fji * ry
		}
	}

	return acc
}
