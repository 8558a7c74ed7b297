package compute

import (
	"github.com/san-kum/gravsim/internal/barneshut"
	"github.com/san-kum/gravsim/internal/gravity"
)

const treeMinChunk = 64

// TreeBackend builds one quadtree per request and walks it for each
// target in parallel.
type TreeBackend struct{}

func NewTreeBackend() *TreeBackend { return &TreeBackend{} }

func (t *TreeBackend) Name() string    { return "tree" }
func (t *TreeBackend) Available() bool { return true }
func (t *TreeBackend) Cleanup()        {}

func (t *TreeBackend) Forces(req barneshut.Request) (barneshut.Response, error) {
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
	if req.Sources.Len() == 0 || n == 0 {
		return resp, nil
	}

	tree := barneshut.Build(req.Sources)
	p := gravity.Params{G: req.G, MinDist: req.MinDist}

	ParallelFor(n, treeMinChunk, func(start, end int) {
		for i := start; i < end; i++ {
			resp.AX[i], resp.AY[i], resp.Phi[i] = tree.Accel(p, req.Theta, req.Targets.X[i], req.Targets.Y[i])
		}
	})
	return resp, nil
}
