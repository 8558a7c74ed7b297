package viz

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/events"
)

// Camera maps world coordinates to canvas dots. Scale is world units per
// dot; y grows upwards in the world and downwards on screen.
type Camera struct {
	Center r2.Vec
	Scale  float64
}

func (cam Camera) Project(p r2.Vec, c *Canvas) (x, y int) {
	d := r2.Scale(1/cam.Scale, r2.Sub(p, cam.Center))
	return c.SubWidth()/2 + int(math.Round(d.X)), c.SubHeight()/2 - int(math.Round(d.Y))
}

// Fit returns a camera framing every non-particle body with a margin.
func Fit(snaps []body.Snapshot, c *Canvas) Camera {
	first := true
	var lo, hi r2.Vec
	for _, s := range snaps {
		if s.Type == body.AccretionDiskParticle {
			continue
		}
		if first {
			lo, hi = r2.Vec{X: s.X, Y: s.Y}, r2.Vec{X: s.X, Y: s.Y}
			first = false
			continue
		}
		lo = r2.Vec{X: math.Min(lo.X, s.X), Y: math.Min(lo.Y, s.Y)}
		hi = r2.Vec{X: math.Max(hi.X, s.X), Y: math.Max(hi.Y, s.Y)}
	}
	if first {
		return Camera{Scale: 1}
	}
	span := r2.Sub(hi, lo)
	scale := math.Max(span.X/float64(c.SubWidth()), span.Y/float64(c.SubHeight())) * 1.2
	if scale <= 0 {
		scale = 1
	}
	return Camera{Center: r2.Scale(0.5, r2.Add(lo, hi)), Scale: scale}
}

// draw priority: black holes over stars over everything else; event
// markers sit on top.
func priority(t body.Type) int {
	switch {
	case t == body.BlackHole:
		return 5
	case t.IsStellar():
		return 4
	case t == body.GasGiant || t == body.Planet:
		return 3
	case t == body.AccretionDiskParticle:
		return 1
	}
	return 2
}

const (
	trailPriority = 0
	eventPriority = 9
)

var eventGlyph = map[events.Kind]rune{
	events.Merge:      '*',
	events.Kilonova:   '✷',
	events.Absorption: '@',
	events.Tidal:      '~',
	events.Impact:     'x',
}

type Scene struct {
	Camera Camera
	Theme  Theme
	Trails bool
}

// Draw renders bodies and events active at time now onto c.
func (s Scene) Draw(c *Canvas, snaps []body.Snapshot, evs []events.Event, now float64) {
	c.Clear()
	if s.Trails {
		for _, b := range snaps {
			for _, p := range b.Trail {
				x, y := s.Camera.Project(r2.Vec{X: p.X, Y: p.Y}, c)
				c.Plot(x, y, s.Theme.Muted, trailPriority)
			}
		}
	}
	for _, b := range snaps {
		x, y := s.Camera.Project(r2.Vec{X: b.X, Y: b.Y}, c)
		r := int(b.Radius / s.Camera.Scale)
		c.Disc(x, y, r, s.Theme.Body(b.Type), priority(b.Type))
	}
	for _, e := range evs {
		if now-e.Time > e.Duration {
			continue
		}
		x, y := s.Camera.Project(e.Pos(), c)
		c.Mark(x, y, eventGlyph[e.Kind], s.Theme.Event(e.Kind), eventPriority)
	}
}
