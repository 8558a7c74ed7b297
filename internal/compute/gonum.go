package compute

import (
	"gonum.org/v1/gonum/spatial/barneshut"
	"gonum.org/v1/gonum/spatial/r2"

	bh "github.com/san-kum/gravsim/internal/barneshut"
	"github.com/san-kum/gravsim/internal/gravity"
)

type particle struct {
	pos  r2.Vec
	mass float64
}

func (p particle) Coord2() r2.Vec { return p.pos }
func (p particle) Mass() float64  { return p.mass }

// GonumBackend delegates the tree to gonum's spatial/barneshut. It reports
// acceleration only; Phi is left zero.
type GonumBackend struct{}

func NewGonumBackend() *GonumBackend { return &GonumBackend{} }

func (g *GonumBackend) Name() string    { return "gonum" }
func (g *GonumBackend) Available() bool { return true }
func (g *GonumBackend) Cleanup()        {}

func (g *GonumBackend) Forces(req bh.Request) (bh.Response, error) {
	if err := req.Validate(); err != nil {
		return bh.Response{}, err
	}

	n := req.Targets.Len()
	resp := bh.Response{
		Type: bh.ResponseType,
		AX:   make([]float64, n),
		AY:   make([]float64, n),
		Phi:  make([]float64, n),
	}
	if req.Sources.Len() == 0 || n == 0 {
		return resp, nil
	}

	ps := make([]barneshut.Particle2, req.Sources.Len())
	for i := range ps {
		ps[i] = particle{pos: r2.Vec{X: req.Sources.X[i], Y: req.Sources.Y[i]}, mass: req.Sources.M[i]}
	}
	plane, err := barneshut.NewPlane(ps)
	if err != nil {
		// coordinates too close to separate in floating point
		return NewCPUBackend().Forces(req)
	}

	p := gravity.Params{G: req.G, MinDist: req.MinDist}
	force := func(_, _ barneshut.Particle2, _, m2 float64, v r2.Vec) r2.Vec {
		ax, ay, _ := gravity.Contribution(p, v.X, v.Y, m2)
		return r2.Vec{X: ax, Y: ay}
	}

	ParallelFor(n, treeMinChunk, func(start, end int) {
		for i := start; i < end; i++ {
			target := particle{pos: r2.Vec{X: req.Targets.X[i], Y: req.Targets.Y[i]}, mass: 1}
			a := plane.ForceOn(target, req.Theta, force)
			resp.AX[i], resp.AY[i] = a.X, a.Y
		}
	})
	return resp, nil
}
