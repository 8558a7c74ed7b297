package compute

import (
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/barneshut"
	"github.com/san-kum/gravsim/internal/gravity"
)

const cpuMinChunk = 16

// CPUBackend is the authoritative direct sum.
type CPUBackend struct{}

func NewCPUBackend() *CPUBackend { return &CPUBackend{} }

func (c *CPUBackend) Name() string    { return "cpu" }
func (c *CPUBackend) Available() bool { return true }
func (c *CPUBackend) Cleanup()        {}

func (c *CPUBackend) Forces(req barneshut.Request) (barneshut.Response, error) {
	if err := req.Validate(); err != nil {
		return barneshut.Response{}, err
	}

	n := req.Targets.Len()
	resp := barneshut.Response{
		Type: barneshut.ResponseType,
		AX:   make([]float64, n),
		AY:   make([]float64, n),
		Phi:  make([]float64, n),
	}

	src := make([]gravity.Source, req.Sources.Len())
	for i := range src {
		src[i] = gravity.Source{
			Pos:  r2.Vec{X: req.Sources.X[i], Y: req.Sources.Y[i]},
			Mass: req.Sources.M[i],
		}
	}
	p := gravity.Params{G: req.G, MinDist: req.MinDist}

	ParallelFor(n, cpuMinChunk, func(start, end int) {
		for i := start; i < end; i++ {
			a, phi := gravity.AccelPotential(p, r2.Vec{X: req.Targets.X[i], Y: req.Targets.Y[i]}, src)
			resp.AX[i], resp.AY[i], resp.Phi[i] = a.X, a.Y, phi
		}
	})
	return resp, nil
}
