package integrators

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/body"
)

type Integrator interface {
	Name() string
	Step(b *body.Body, a r2.Vec, dt float64)
}

// Euler is the semi-implicit (symplectic) Euler step: velocity first, then
// position from the updated velocity.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string { return "euler" }

func (e *Euler) Step(b *body.Body, a r2.Vec, dt float64) {
	b.Vel = r2.Add(b.Vel, r2.Scale(dt, a))
	b.Pos = r2.Add(b.Pos, r2.Scale(dt, b.Vel))
}

// Advance steps every alive body with its acceleration and records the
// post-step position in its trail, stamped with now. acc is indexed like
// bodies; missing entries count as zero.
func Advance(in Integrator, bodies []*body.Body, acc []r2.Vec, dt, now float64, trailCap int) {
	for i, b := range bodies {
		if !b.Alive {
			continue
		}
		var a r2.Vec
		if i < len(acc) {
			a = acc[i]
		}
		in.Step(b, a, dt)
		b.Trail.Push(body.TrailSample{X: b.Pos.X, Y: b.Pos.Y, Time: now, Speed: b.Speed()}, trailCap)
	}
}
