package integrators

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/body"
)

func BenchmarkEuler(b *testing.B) {
	integrator := NewEuler()
	bd := body.New(1, body.Planet, r2.Vec{X: 1}, r2.Vec{Y: 1}, 1)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		integrator.Step(bd, r2.Scale(-1, bd.Pos), 0.01)
	}
}

func BenchmarkAdvance1000(b *testing.B) {
	bodies := make([]*body.Body, 1000)
	acc := make([]r2.Vec, 1000)
	for i := range bodies {
		bodies[i] = body.New(int64(i+1), body.Asteroid, r2.Vec{X: float64(i)}, r2.Vec{Y: 1}, 1)
		acc[i] = r2.Vec{X: -0.01}
	}
	integrator := NewEuler()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Advance(integrator, bodies, acc, 0.01, float64(i), 64)
	}
}
