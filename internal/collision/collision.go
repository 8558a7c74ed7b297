// Package collision resolves overlap between bodies with positional
// correction and a restitution impulse along the contact normal.
package collision

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/body"
)

// minSeparation2 guards the normal against coincident centres.
const minSeparation2 = 1e-12

type Contact struct {
	A, B *body.Body
	// Normal points from A to B.
	Normal r2.Vec
	// Point is on A's surface along the normal.
	Point r2.Vec
	// Speed is the pre-impulse relative speed.
	Speed float64
	// Approach is the pre-impulse normal closing speed (positive when approaching).
	Approach float64
}

// ResolvePair separates a and b if they overlap and, when they approach,
// exchanges the impulse j = -(1+e)(v_rel·n)/(1/m_a + 1/m_b). slop is added
// to the correction so the pair ends strictly apart.
func ResolvePair(a, b *body.Body, e, slop float64) (Contact, bool) {
	d := r2.Sub(b.Pos, a.Pos)
	dist2 := r2.Norm2(d)
	reach := a.Radius + b.Radius
	if dist2 <= minSeparation2 || dist2 >= reach*reach {
		return Contact{}, false
	}

	dist := math.Sqrt(dist2)
	n := r2.Scale(1/dist, d)
	total := a.Mass + b.Mass

	overlap := reach - dist + slop
	a.Pos = r2.Sub(a.Pos, r2.Scale(overlap*b.Mass/total, n))
	b.Pos = r2.Add(b.Pos, r2.Scale(overlap*a.Mass/total, n))

	vrel := r2.Sub(b.Vel, a.Vel)
	vn := r2.Dot(vrel, n)
	c := Contact{
		A:        a,
		B:        b,
		Normal:   n,
		Point:    r2.Add(a.Pos, r2.Scale(a.Radius, n)),
		Speed:    r2.Norm(vrel),
		Approach: -vn,
	}

	if vn < 0 {
		j := -(1 + e) * vn / (1/a.Mass + 1/b.Mass)
		a.Vel = r2.Sub(a.Vel, r2.Scale(j/a.Mass, n))
		b.Vel = r2.Add(b.Vel, r2.Scale(j/b.Mass, n))
	}
	return c, true
}

// Pass resolves every overlapping pair in one list. The list is scanned in
// order, so each pass is deterministic.
type Pass struct {
	Restitution float64
	Slop        float64
	// Skip excludes pairs handled elsewhere.
	Skip func(a, b *body.Body) bool
}

func (p Pass) Run(bodies []*body.Body) []Contact {
	var contacts []Contact
	for i := 0; i < len(bodies); i++ {
		a := bodies[i]
		if !a.Alive {
			continue
		}
		for j := i + 1; j < len(bodies); j++ {
			b := bodies[j]
			if !b.Alive || (p.Skip != nil && p.Skip(a, b)) {
				continue
			}
			if c, ok := ResolvePair(a, b, p.Restitution, p.Slop); ok {
				contacts = append(contacts, c)
			}
		}
	}
	return contacts
}
