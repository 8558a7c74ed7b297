package body

import "gonum.org/v1/gonum/spatial/r2"

// Snapshot is the serialisable state of one body, keyed by id for
// save/restore collaborators.
type Snapshot struct {
	ID       int64         `json:"id" yaml:"id"`
	Type     Type          `json:"type" yaml:"type"`
	X        float64       `json:"x" yaml:"x"`
	Y        float64       `json:"y" yaml:"y"`
	VX       float64       `json:"vx" yaml:"vx"`
	VY       float64       `json:"vy" yaml:"vy"`
	Mass     float64       `json:"mass" yaml:"mass"`
	Radius   float64       `json:"radius" yaml:"radius"`
	Alive    bool          `json:"alive" yaml:"alive"`
	Intact   bool          `json:"intact" yaml:"intact"`
	Density  Density       `json:"density,omitempty" yaml:"density,omitempty"`
	Pulsar   bool          `json:"pulsar,omitempty" yaml:"pulsar,omitempty"`
	OwnerID  int64         `json:"owner_id,omitempty" yaml:"owner_id,omitempty"`
	Age      float64       `json:"age,omitempty" yaml:"age,omitempty"`
	Lifetime float64       `json:"lifetime,omitempty" yaml:"lifetime,omitempty"`
	Trail    []TrailSample `json:"trail,omitempty" yaml:"trail,omitempty"`
}

func (b *Body) Snapshot() Snapshot {
	return Snapshot{
		ID:       b.ID,
		Type:     b.Type,
		X:        b.Pos.X,
		Y:        b.Pos.Y,
		VX:       b.Vel.X,
		VY:       b.Vel.Y,
		Mass:     b.Mass,
		Radius:   b.Radius,
		Alive:    b.Alive,
		Intact:   b.Intact,
		Density:  b.Density,
		Pulsar:   b.Pulsar,
		OwnerID:  b.OwnerID,
		Age:      b.Age,
		Lifetime: b.Lifetime,
		Trail:    b.Trail.Samples(),
	}
}

// Apply overwrites b with s. The id and type are left to the registry.
func (b *Body) Apply(s Snapshot) {
	b.Pos = r2.Vec{X: s.X, Y: s.Y}
	b.Vel = r2.Vec{X: s.VX, Y: s.VY}
	b.Mass = s.Mass
	b.OverrideRadius(s.Radius)
	b.Alive = s.Alive
	b.Intact = s.Intact
	b.Density = s.Density
	b.Pulsar = s.Pulsar
	b.OwnerID = s.OwnerID
	b.Age = s.Age
	b.Lifetime = s.Lifetime
	b.Trail.Reset(s.Trail)
	b.Tidal = TidalState{}
}

func FromSnapshot(s Snapshot) *Body {
	b := &Body{ID: s.ID, Type: s.Type}
	b.Apply(s)
	return b
}
