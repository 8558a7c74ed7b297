package body

import "gonum.org/v1/gonum/spatial/r2"

// TrailSample is one recorded point of a body's path.
type TrailSample struct {
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Time  float64 `json:"t" yaml:"t"`
	Speed float64 `json:"speed" yaml:"speed"`
}

// Trail is a bounded history; the oldest sample is evicted once the cap is exceeded.
type Trail struct {
	samples []TrailSample
}

func (t *Trail) Push(s TrailSample, limit int) {
	if limit <= 0 {
		t.samples = t.samples[:0]
		return
	}
	t.samples = append(t.samples, s)
	if over := len(t.samples) - limit; over > 0 {
		n := copy(t.samples, t.samples[over:])
		t.samples = t.samples[:n]
	}
}

func (t *Trail) Len() int { return len(t.samples) }

func (t *Trail) Samples() []TrailSample {
	out := make([]TrailSample, len(t.samples))
	copy(out, t.samples)
	return out
}

func (t *Trail) Reset(samples []TrailSample) {
	t.samples = append(t.samples[:0], samples...)
}

// Body is the common entity for every simulated object. Type-specific
// payload lives in the trailing field groups and is meaningful only for
// the matching Type.
type Body struct {
	ID     int64
	Type   Type
	Pos    r2.Vec
	Vel    r2.Vec
	Mass   float64
	Radius float64
	Alive  bool
	Intact bool
	Trail  Trail

	// radiusScale preserves an explicit radius override across mass changes.
	radiusScale float64

	// planets
	Density Density

	// neutron stars
	Pulsar bool

	// accretion disk particles reference their black hole by id only.
	OwnerID  int64
	Age      float64
	Lifetime float64

	Tidal TidalState
}

// TidalState is the bookkeeping for progressive disruption. PendingMass is
// still counted in Body.Mass until it is shed as debris.
type TidalState struct {
	Active       bool
	PendingMass  float64
	PendingCount float64
}

// New returns an alive, intact body whose radius follows its type's power law.
func New(id int64, t Type, pos, vel r2.Vec, mass float64) *Body {
	return &Body{
		ID:     id,
		Type:   t,
		Pos:    pos,
		Vel:    vel,
		Mass:   mass,
		Radius: t.Radius(mass),
		Alive:  true,
		Intact: true,
	}
}

// OverrideRadius pins the radius to r; later mass changes scale it
// proportionally to the type's law.
func (b *Body) OverrideRadius(r float64) {
	law := b.Type.Radius(b.Mass)
	if r <= 0 || law <= 0 {
		b.radiusScale = 0
		b.Radius = law
		return
	}
	b.radiusScale = r / law
	b.Radius = r
}

// SetMass updates mass and recomputes the radius.
func (b *Body) SetMass(m float64) {
	b.Mass = m
	b.Radius = b.Type.Radius(m)
	if b.radiusScale > 0 {
		b.Radius *= b.radiusScale
	}
}

func (b *Body) Kill() { b.Alive = false }

func (b *Body) Speed() float64 { return r2.Norm(b.Vel) }

func (b *Body) Momentum() r2.Vec { return r2.Scale(b.Mass, b.Vel) }

func (b *Body) KineticEnergy() float64 {
	return 0.5 * b.Mass * r2.Norm2(b.Vel)
}

// Distance returns the center separation of two bodies.
func Distance(a, b *Body) float64 { return r2.Norm(r2.Sub(b.Pos, a.Pos)) }
