package sim

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/body"
)

func benchWorld(b *testing.B, n int, mode ForceMode) *World {
	b.Helper()
	cfg := DefaultConfig()
	cfg.ForceMode = mode
	w, err := New(cfg)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(w.Close)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < n; i++ {
		w.Spawn(body.Asteroid, SpawnParams{
			Pos:  r2.Vec{X: rng.Float64() * 5000, Y: rng.Float64() * 5000},
			Vel:  r2.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64()},
			Mass: 1 + rng.Float64(),
		})
	}
	return w
}

func BenchmarkStep_Direct100(b *testing.B) {
	w := benchWorld(b, 100, ForceDirect)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Step(0.01)
	}
}

func BenchmarkStep_Direct500(b *testing.B) {
	w := benchWorld(b, 500, ForceDirect)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Step(0.01)
	}
}

func BenchmarkStep_Tree500(b *testing.B) {
	w := benchWorld(b, 500, ForceTree)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Step(0.01)
	}
}
