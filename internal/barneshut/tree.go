// Package barneshut implements the quadtree approximation of the
// gravitational field: build over the sources, aggregate bottom-up,
// walk per target with an opening-angle test.
package barneshut

import (
	"math"

	"github.com/san-kum/gravsim/internal/gravity"
)

const (
	boundsPad = 1.2
	// maxDepth stops subdivision so coincident sources share a leaf.
	maxDepth = 48
)

type node struct {
	cx, cy, half float64
	mass         float64
	comX, comY   float64
	// first child index; children are contiguous. Zero means leaf.
	child  int32
	bodies []int32
}

func (n *node) leaf() bool { return n.child == 0 }

// Tree is an arena quadtree over a fixed source set.
type Tree struct {
	nodes []node
	xs    []float64
	ys    []float64
	ms    []float64
}

// Build constructs the tree. Sources are inserted in slice order, so the
// result is deterministic for a given input.
func Build(s Sources) *Tree {
	t := &Tree{xs: s.X, ys: s.Y, ms: s.M}
	n := s.Len()
	if n == 0 {
		return t
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i < n; i++ {
		minX = math.Min(minX, s.X[i])
		maxX = math.Max(maxX, s.X[i])
		minY = math.Min(minY, s.Y[i])
		maxY = math.Max(maxY, s.Y[i])
	}
	half := math.Max(maxX-minX, maxY-minY) / 2 * boundsPad
	if half == 0 {
		half = 1
	}

	t.nodes = make([]node, 1, 4*n+1)
	t.nodes[0] = node{cx: (minX + maxX) / 2, cy: (minY + maxY) / 2, half: half}

	for i := 0; i < n; i++ {
		t.insert(int32(i))
	}
	t.aggregate()
	return t
}

func (t *Tree) insert(i int32) {
	ni, depth := int32(0), 0
	for {
		if !t.nodes[ni].leaf() {
			ni = t.nodes[ni].child + t.quadrant(ni, i)
			depth++
			continue
		}

		n := &t.nodes[ni]
		if len(n.bodies) == 0 || depth >= maxDepth {
			n.bodies = append(n.bodies, i)
			return
		}

		// occupied leaf: split and push the resident body down
		resident := n.bodies[0]
		n.bodies = nil
		t.split(ni)
		c := t.nodes[ni].child + t.quadrant(ni, resident)
		t.nodes[c].bodies = append(t.nodes[c].bodies, resident)
	}
}

func (t *Tree) split(ni int32) {
	p := t.nodes[ni]
	h := p.half / 2
	first := int32(len(t.nodes))
	t.nodes = append(t.nodes,
		node{cx: p.cx - h, cy: p.cy - h, half: h},
		node{cx: p.cx + h, cy: p.cy - h, half: h},
		node{cx: p.cx - h, cy: p.cy + h, half: h},
		node{cx: p.cx + h, cy: p.cy + h, half: h},
	)
	t.nodes[ni].child = first
}

func (t *Tree) quadrant(ni, i int32) int32 {
	n := &t.nodes[ni]
	q := int32(0)
	if t.xs[i] >= n.cx {
		q |= 1
	}
	if t.ys[i] >= n.cy {
		q |= 2
	}
	return q
}

// aggregate fills mass and centre of mass. Children always sit after their
// parent in the arena, so a reverse sweep is bottom-up.
func (t *Tree) aggregate() {
	for ni := len(t.nodes) - 1; ni >= 0; ni-- {
		n := &t.nodes[ni]
		var m, mx, my float64
		if n.leaf() {
			for _, i := range n.bodies {
				m += t.ms[i]
				mx += t.ms[i] * t.xs[i]
				my += t.ms[i] * t.ys[i]
			}
		} else {
			for c := n.child; c < n.child+4; c++ {
				cn := &t.nodes[c]
				m += cn.mass
				mx += cn.mass * cn.comX
				my += cn.mass * cn.comY
			}
		}
		n.mass = m
		if m > 0 {
			n.comX, n.comY = mx/m, my/m
		} else {
			n.comX, n.comY = n.cx, n.cy
		}
	}
}

// Len reports the number of sources.
func (t *Tree) Len() int { return len(t.ms) }

// Mass returns the aggregate mass at the root.
func (t *Tree) Mass() float64 {
	if len(t.nodes) == 0 {
		return 0
	}
	return t.nodes[0].mass
}

// Accel walks the tree for one target.
func (t *Tree) Accel(p gravity.Params, theta, x, y float64) (ax, ay, phi float64) {
	if len(t.nodes) == 0 {
		return 0, 0, 0
	}
	theta2 := theta * theta

	var stack [4*maxDepth + 8]int32
	sp := 0
	stack[sp] = 0
	sp++

	for sp > 0 {
		sp--
		n := &t.nodes[stack[sp]]
		if n.mass == 0 {
			continue
		}

		rx, ry := n.comX-x, n.comY-y
		if !n.leaf() {
			size := 2 * n.half
			far := size*size < theta2*(rx*rx+ry*ry) && !n.contains(x, y)
			if !far {
				for c := n.child; c < n.child+4; c++ {
					stack[sp] = c
					sp++
				}
				continue
			}
		}

		fx, fy, fphi := gravity.Contribution(p, rx, ry, n.mass)
		ax += fx
		ay += fy
		phi += fphi
	}
	return ax, ay, phi
}

func (n *node) contains(x, y float64) bool {
	return math.Abs(x-n.cx) <= n.half && math.Abs(y-n.cy) <= n.half
}

// Evaluate answers a worker request. Empty sources or targets yield empty
// (zero-filled) buffers rather than an error.
func Evaluate(req Request) (Response, error) {
	if err := req.Validate(); err != nil {
		return Response{}, err
	}

	resp := newResponse(req.Targets.Len())
	if req.Sources.Len() == 0 {
		return resp, nil
	}

	t := Build(req.Sources)
	p := gravity.Params{G: req.G, MinDist: req.MinDist}
	for i := range resp.AX {
		resp.AX[i], resp.AY[i], resp.Phi[i] = t.Accel(p, req.Theta, req.Targets.X[i], req.Targets.Y[i])
	}
	return resp, nil
}
