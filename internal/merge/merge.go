package merge

import (
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/body"
)

// Plan is a merger computed from its inputs without touching them.
type Plan struct {
	A, B     *body.Body
	Result   body.Type
	InPlace  bool
	Mass     float64
	Pos      r2.Vec
	Vel      r2.Vec
	Kilonova bool
	Strength float64
	Duration float64

	// Survivor and Absorbed are set for in-place plans.
	Survivor *body.Body
	Absorbed *body.Body
}

// Record is an applied merger.
type Record struct {
	Plan
	Inputs     [2]int64
	InputTypes [2]body.Type
	ResultID   int64
	Reparented int
}

type Merger struct {
	p   Params
	rng *rand.Rand
}

func NewMerger(p Params, rng *rand.Rand) *Merger {
	return &Merger{p: p, rng: rng}
}

func (m *Merger) Params() Params { return m.p }

// Overlapping reports whether a and b touch and may merge.
func Overlapping(a, b *body.Body) bool {
	if !a.Alive || !b.Alive || a == b || !Eligible(a.Type, b.Type) {
		return false
	}
	reach := a.Radius + b.Radius
	return r2.Norm2(r2.Sub(b.Pos, a.Pos)) < reach*reach
}

// PlanPair computes the merger of a and b: combined mass, centre of mass,
// momentum-conserving velocity and the classified product.
func (m *Merger) PlanPair(a, b *body.Body) Plan {
	mass := a.Mass + b.Mass
	pos := r2.Scale(1/mass, r2.Add(r2.Scale(a.Mass, a.Pos), r2.Scale(b.Mass, b.Pos)))
	vel := r2.Scale(1/mass, r2.Add(a.Momentum(), b.Momentum()))

	result, inPlace := m.p.Classify(a.Type, b.Type, mass)
	p := Plan{
		A: a, B: b,
		Result:   result,
		InPlace:  inPlace,
		Mass:     mass,
		Pos:      pos,
		Vel:      vel,
		Kilonova: Kilonova(a.Type, b.Type),
		Strength: mass / m.p.SolarMass,
		Duration: m.p.MergeDuration,
	}
	if p.Kilonova {
		p.Strength *= m.p.KilonovaBoost
		if result == body.BlackHole {
			p.Strength *= 2
		}
		p.Duration = m.p.KilonovaDuration
	}
	if inPlace {
		p.Survivor, p.Absorbed = survivor(a, b)
	}
	return p
}

// survivor picks the black hole that keeps its identity: the only one, or
// the heavier of two, ties going to the lower id.
func survivor(a, b *body.Body) (keep, drop *body.Body) {
	switch {
	case a.Type == body.BlackHole && b.Type != body.BlackHole:
		return a, b
	case b.Type == body.BlackHole && a.Type != body.BlackHole:
		return b, a
	case a.Mass > b.Mass, a.Mass == b.Mass && a.ID < b.ID:
		return a, b
	default:
		return b, a
	}
}

// Find plans every merger among bodies. Pairs are scanned in slice order
// and a body joins at most one merger.
func (m *Merger) Find(bodies []*body.Body) []Plan {
	used := make(map[*body.Body]bool)
	var plans []Plan
	for i, a := range bodies {
		if used[a] {
			continue
		}
		for _, b := range bodies[i+1:] {
			if used[b] || !Overlapping(a, b) {
				continue
			}
			plans = append(plans, m.PlanPair(a, b))
			used[a], used[b] = true, true
			break
		}
	}
	return plans
}

// Apply commits p to reg. In-place plans mutate the surviving black hole;
// the others retire both inputs and register one new body.
func (m *Merger) Apply(reg *body.Registry, p Plan) Record {
	rec := Record{
		Plan:       p,
		Inputs:     [2]int64{p.A.ID, p.B.ID},
		InputTypes: [2]body.Type{p.A.Type, p.B.Type},
	}

	if p.InPlace {
		s, d := p.Survivor, p.Absorbed
		if d.Type == body.BlackHole {
			rec.Reparented = reg.Reparent(d.ID, s.ID)
		}
		d.Kill()
		s.Pos = p.Pos
		s.Vel = p.Vel
		s.SetMass(p.Mass)
		rec.ResultID = s.ID
		return rec
	}

	p.A.Kill()
	p.B.Kill()
	out := body.New(0, p.Result, p.Pos, p.Vel, p.Mass)
	if p.Result == body.NeutronStar {
		out.Pulsar = m.rng.Float64() < m.p.PulsarChance
	}
	reg.Insert(out)
	rec.ResultID = out.ID
	return rec
}

// Step finds and applies every merger among bodies. All plans are computed
// before the first is applied.
func (m *Merger) Step(reg *body.Registry, bodies []*body.Body) []Record {
	plans := m.Find(bodies)
	records := make([]Record, 0, len(plans))
	for _, p := range plans {
		records = append(records, m.Apply(reg, p))
	}
	return records
}
