package sim

import (
	"cmp"
	"math"
	"slices"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/events"
	"github.com/san-kum/gravsim/internal/gravity"
	"github.com/san-kum/gravsim/internal/integrators"
	"github.com/san-kum/gravsim/internal/merge"
)

// Step advances the world by dt: forces, integration, collisions, tidal
// stripping, mergers, absorption and the accretion disk, then cleanup.
// It returns a StepError only when ValidateState finds a non-finite body.
func (w *World) Step(dt float64) error {
	if w.closed {
		return ErrClosed
	}
	if dt <= 0 {
		return ErrInvalidDt
	}
	start := time.Now()
	w.tick++
	w.tickEvents = w.tickEvents[:0]

	bodies, acc := w.forces.accelerations(w.reg)
	w.time += dt
	w.integrate(bodies, acc, dt)

	w.collide()
	w.disrupt(dt)
	w.mergeBodies()
	w.absorb(dt)
	w.cleanup()

	stats := w.stats(false)
	stats.StepSeconds = time.Since(start).Seconds()
	for _, o := range w.observers {
		o.OnStep(stats, w.tickEvents)
	}

	if w.cfg.ValidateState {
		for _, b := range w.reg.All() {
			if !finite(b.Pos) || !finite(b.Vel) {
				return StepError{Step: w.tick, Time: w.time, Message: "non-finite state for body " + b.Type.String()}
			}
		}
	}
	return nil
}

func finite(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}

func (w *World) integrate(bodies []*body.Body, acc []r2.Vec, dt float64) {
	split := len(bodies)
	for i, b := range bodies {
		if b.Type == body.AccretionDiskParticle {
			split = i
			break
		}
	}
	integrators.Advance(w.integrator, bodies[:split], acc[:split], dt, w.time, w.cfg.TrailCap)
	integrators.Advance(w.integrator, bodies[split:], acc[split:], dt, w.time, 0)
}

// collide runs the rocky pass, then the general pass over everything that
// is neither a black hole nor a disk particle.
func (w *World) collide() {
	for _, imp := range w.resolver.Rocky(w.reg.Rocky()) {
		for _, d := range imp.Debris {
			w.reg.Insert(d)
		}
		e := eventAt(events.Impact, imp.Pos)
		e.Participants = []int64{imp.A, imp.B}
		e.ResultType = body.Debris
		e.Mass = imp.MassLost
		e.Strength = imp.Speed
		e.Duration = 0.5
		w.emit(e)
	}

	general := slices.Concat(w.reg.Rocky(), w.reg.Giants(), w.reg.Stellar())
	slices.SortFunc(general, func(a, b *body.Body) int { return cmp.Compare(a.ID, b.ID) })
	w.resolver.General(general, func(a, b *body.Body) bool {
		return (a.Type.IsRocky() && b.Type.IsRocky()) || merge.Eligible(a.Type, b.Type)
	})
}

func (w *World) disrupt(dt float64) {
	candidates := slices.Concat(w.reg.Rocky(), w.reg.Giants(), w.reg.Stellar())
	var compacts []*body.Body
	for _, b := range w.reg.Stellar() {
		if b.Type.IsCompact() {
			compacts = append(compacts, b)
		}
	}
	compacts = append(compacts, w.reg.BlackHoles()...)
	if len(compacts) == 0 {
		return
	}

	out := w.disruptor.Step(candidates, compacts, dt)
	for _, d := range out.Debris {
		w.reg.Insert(d)
	}
	for _, te := range out.Events {
		e := eventAt(events.Tidal, te.Pos)
		e.Participants = []int64{te.Body, te.Source}
		e.ResultID = te.Source
		e.Mass = te.Mass
		e.Strength = te.Fraction
		if src, ok := w.reg.Get(te.Source); ok {
			e.ResultType = src.Type
		}
		if te.Disrupted {
			e.Detail = "disrupted"
			e.Duration = 2
		} else {
			e.Detail = "onset"
			e.Duration = 1
		}
		w.emit(e)
		w.logger.Debug("tidal", "body", te.Body, "source", te.Source, "detail", e.Detail)
	}
}

func (w *World) mergeBodies() {
	var candidates []*body.Body
	for _, b := range w.reg.Bodies() {
		if b.Alive && (b.Type.IsStellar() || b.Type == body.GasGiant || b.Type == body.BlackHole) {
			candidates = append(candidates, b)
		}
	}

	for _, rec := range w.merger.Step(w.reg, candidates) {
		if rec.Kilonova {
			e := eventAt(events.Kilonova, rec.Pos)
			e.Participants = rec.Inputs[:]
			e.ResultID = rec.ResultID
			e.ResultType = rec.Result
			e.Mass = rec.Mass
			e.Strength = rec.Strength
			e.Duration = rec.Duration
			w.emit(e)
		}
		e := eventAt(events.Merge, rec.Pos)
		e.Participants = rec.Inputs[:]
		e.ResultID = rec.ResultID
		e.ResultType = rec.Result
		e.Mass = rec.Mass
		e.Strength = rec.Mass / w.cfg.Merge.SolarMass
		e.Duration = w.cfg.Merge.MergeDuration
		if rec.InPlace {
			e.Detail = "in_place"
		}
		w.emit(e)
		w.logger.Debug("merge", "inputs", rec.Inputs, "types", rec.InputTypes, "result", rec.Result, "id", rec.ResultID)
	}
}

func (w *World) absorb(dt float64) {
	holes := w.reg.BlackHoles()
	if len(holes) == 0 {
		return
	}

	for _, a := range w.absorber.Step(holes, w.reg.Bodies()) {
		e := eventAt(events.Absorption, a.Pos)
		e.Participants = []int64{a.Hole, a.Body}
		e.ResultID = a.Hole
		e.ResultType = body.BlackHole
		e.Mass = a.Mass
		e.Strength = a.Mass / w.cfg.Merge.SolarMass
		e.Duration = 1
		e.Detail = a.Type.String()
		w.emit(e)
	}

	var debris []*body.Body
	for _, b := range w.reg.Rocky() {
		if b.Type == body.Debris {
			debris = append(debris, b)
		}
	}
	for _, p := range w.absorber.Capture(holes, debris) {
		w.reg.Insert(p)
	}

	for _, h := range holes {
		if mass, retired := w.absorber.Feed(h, w.reg.Disk(h.ID), dt); retired > 0 {
			w.logger.Debug("disk feed", "hole", h.ID, "mass", mass, "retired", retired)
		}
	}
}

func (w *World) cleanup() {
	bound2 := w.cfg.BoundsRadius * w.cfg.BoundsRadius
	evicted := w.reg.Sweep(func(b *body.Body) bool {
		if !b.Alive {
			return false
		}
		return w.cfg.BoundsRadius <= 0 || r2.Norm2(b.Pos) <= bound2
	})
	for _, b := range evicted {
		b.Kill()
		w.forces.forget(b.ID)
	}
}

// Stats summarises the current world including energy.
func (w *World) Stats() Stats { return w.stats(true) }

func (w *World) stats(withEnergy bool) Stats {
	all := w.reg.All()
	s := Stats{
		Tick:          w.tick,
		Time:          w.time,
		Bodies:        w.reg.Len() - w.reg.DiskCount(),
		DiskParticles: w.reg.DiskCount(),
		Mass:          gravity.TotalMass(all),
		Events:        len(w.tickEvents),
		Types:         make(map[string]int),
	}
	p := gravity.Momentum(all)
	s.MomentumX, s.MomentumY = p.X, p.Y
	s.AngularMomentum = gravity.AngularMomentum(all)
	for _, b := range all {
		s.Types[b.Type.String()]++
	}
	if withEnergy {
		s.Kinetic, s.Potential = gravity.Energy(w.forces.params, w.reg.Bodies())
		s.HasEnergy = true
	}
	return s
}
