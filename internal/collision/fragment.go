package collision

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/body"
)

type Params struct {
	Restitution      float64
	RockyRestitution float64
	Slop             float64

	// Approaching rocky pairs whose relative speed exceeds FragmentSpeed
	// shed FragmentLoss of their mass as FragmentCount debris bodies.
	FragmentSpeed   float64
	FragmentLoss    float64
	FragmentCount   int
	MinFragmentMass float64
	// ConeAngle is the debris half-angle in radians.
	ConeAngle float64
}

func DefaultParams() Params {
	return Params{
		Restitution:      0.8,
		RockyRestitution: 0.3,
		Slop:             1e-6,
		FragmentSpeed:    30,
		FragmentLoss:     0.1,
		FragmentCount:    4,
		MinFragmentMass:  0.5,
		ConeAngle:        math.Pi / 6,
	}
}

// Impact describes a fragmenting rocky collision.
type Impact struct {
	A, B     int64
	Pos      r2.Vec
	Speed    float64
	MassLost float64
	Debris   []*body.Body
}

type Resolver struct {
	p   Params
	rng *rand.Rand
}

func NewResolver(p Params, rng *rand.Rand) *Resolver {
	return &Resolver{p: p, rng: rng}
}

func (r *Resolver) Params() Params { return r.p }

// Rocky resolves rocky bodies inelastically and fragments fast impacts.
// Returned debris is not yet registered.
func (r *Resolver) Rocky(bodies []*body.Body) []Impact {
	pass := Pass{Restitution: r.p.RockyRestitution, Slop: r.p.Slop}
	var impacts []Impact
	for _, c := range pass.Run(bodies) {
		if c.Approach <= 0 || c.Speed <= r.p.FragmentSpeed {
			continue
		}
		if imp, ok := r.fragment(c); ok {
			impacts = append(impacts, imp)
		}
	}
	return impacts
}

// General resolves every pair not excluded by skip with the general restitution.
func (r *Resolver) General(bodies []*body.Body, skip func(a, b *body.Body) bool) []Contact {
	pass := Pass{Restitution: r.p.Restitution, Slop: r.p.Slop, Skip: skip}
	return pass.Run(bodies)
}

func (r *Resolver) fragment(c Contact) (Impact, bool) {
	a, b := c.A, c.B
	if r.p.FragmentCount <= 0 || a.Mass < r.p.MinFragmentMass || b.Mass < r.p.MinFragmentMass {
		return Impact{}, false
	}

	lossA := a.Mass * r.p.FragmentLoss
	lossB := b.Mass * r.p.FragmentLoss
	a.SetMass(a.Mass - lossA)
	b.SetMass(b.Mass - lossB)
	lost := lossA + lossB

	mid := r2.Scale(0.5, r2.Add(a.Vel, b.Vel))
	heading := math.Atan2(mid.Y, mid.X)
	if r2.Norm2(mid) == 0 {
		heading = r.rng.Float64() * 2 * math.Pi
	}

	each := lost / float64(r.p.FragmentCount)
	debris := make([]*body.Body, 0, r.p.FragmentCount)
	for i := 0; i < r.p.FragmentCount; i++ {
		angle := heading + (r.rng.Float64()*2-1)*r.p.ConeAngle
		dir := r2.Vec{X: math.Cos(angle), Y: math.Sin(angle)}
		speed := c.Speed * (0.2 + 0.3*r.rng.Float64())

		d := body.New(0, body.Debris, c.Point, r2.Add(mid, r2.Scale(speed, dir)), each)
		d.Pos = r2.Add(c.Point, r2.Scale(d.Radius, dir))
		debris = append(debris, d)
	}

	return Impact{A: a.ID, B: b.ID, Pos: c.Point, Speed: c.Speed, MassLost: lost, Debris: debris}, true
}
