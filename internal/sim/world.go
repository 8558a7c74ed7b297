package sim

import (
	"fmt"
	"log/slog"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/absorb"
	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/collision"
	"github.com/san-kum/gravsim/internal/compute"
	"github.com/san-kum/gravsim/internal/events"
	"github.com/san-kum/gravsim/internal/integrators"
	"github.com/san-kum/gravsim/internal/merge"
	"github.com/san-kum/gravsim/internal/tidal"
)

// World owns every body and runs the tick pipeline. It is not safe for
// concurrent use; the async force worker only ever sees copies.
type World struct {
	cfg    Config
	reg    *body.Registry
	log    *events.Log
	rng    *rand.Rand
	logger *slog.Logger

	integrator integrators.Integrator
	resolver   *collision.Resolver
	disruptor  *tidal.Disruptor
	absorber   *absorb.Absorber
	merger     *merge.Merger

	forces *forceField

	metrics   []Metric
	observers []Observer

	tick       uint64
	time       float64
	tickEvents []events.Event
	closed     bool
}

type Option func(*World)

func WithLogger(l *slog.Logger) Option {
	return func(w *World) { w.logger = l }
}

func WithIntegrator(in integrators.Integrator) Option {
	return func(w *World) { w.integrator = in }
}

// WithBackend overrides the tree-mode backend, e.g. with a stream peer.
func WithBackend(b compute.Backend) Option {
	return func(w *World) { w.forces.backend = b }
}

func New(cfg Config, opts ...Option) (*World, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	w := &World{
		cfg:        cfg,
		reg:        body.NewRegistry(),
		log:        events.NewLog(cfg.EventLimit),
		rng:        rng,
		logger:     slog.New(slog.DiscardHandler),
		integrator: integrators.NewEuler(),
		resolver:   collision.NewResolver(cfg.Collision, rng),
		disruptor:  tidal.NewDisruptor(cfg.Tidal, rng),
		absorber:   absorb.NewAbsorber(cfg.Absorb),
		merger:     merge.NewMerger(cfg.Merge, rng),
		forces:     newForceField(cfg),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.forces.logger = w.logger
	return w, nil
}

func validateConfig(cfg Config) error {
	if cfg.Dt <= 0 {
		return fmt.Errorf("%w, got %f", ErrInvalidDt, cfg.Dt)
	}
	if cfg.Duration < 0 {
		return fmt.Errorf("duration must not be negative, got %f", cfg.Duration)
	}
	if cfg.Theta < 0 {
		return fmt.Errorf("theta must not be negative, got %f", cfg.Theta)
	}
	if _, err := ParseForceMode(string(cfg.ForceMode)); err != nil {
		return err
	}
	if cfg.Backend != "" {
		if _, err := compute.ByName(cfg.Backend); err != nil {
			return err
		}
	}
	return nil
}

// Reconfigure swaps the physics parameters of a running world. Bodies,
// the clock and the event log are kept. When gravity changes the force
// cache is dropped along with any tree result still in flight; a new
// backend replaces the force worker.
func (w *World) Reconfigure(cfg Config) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	old := w.cfg
	w.cfg = cfg
	w.resolver = collision.NewResolver(cfg.Collision, w.rng)
	w.disruptor = tidal.NewDisruptor(cfg.Tidal, w.rng)
	w.absorber = absorb.NewAbsorber(cfg.Absorb)
	w.merger = merge.NewMerger(cfg.Merge, w.rng)

	w.forces.reconfigure(old, cfg)
	w.logger.Info("reconfigured", "g", cfg.G, "theta", cfg.Theta, "mode", cfg.ForceMode)
	return nil
}

// Close stops the force worker. In-flight tree results are discarded.
func (w *World) Close() {
	if w.closed {
		return
	}
	w.closed = true
	w.forces.close()
}

func (w *World) AddMetric(m Metric)     { w.metrics = append(w.metrics, m) }
func (w *World) AddObserver(o Observer) { w.observers = append(w.observers, o) }

func (w *World) Config() Config           { return w.cfg }
func (w *World) Registry() *body.Registry { return w.reg }
func (w *World) EventLog() *events.Log    { return w.log }
func (w *World) Tick() uint64             { return w.tick }
func (w *World) Time() float64            { return w.time }

// Spawn registers a new body and returns its id.
func (w *World) Spawn(t body.Type, p SpawnParams) (int64, error) {
	if !t.Valid() {
		return 0, fmt.Errorf("%w: %d", body.ErrUnknownType, t)
	}
	b := body.New(0, t, p.Pos, p.Vel, p.Mass)
	if p.Radius > 0 {
		b.OverrideRadius(p.Radius)
	}
	b.Density = p.Density
	b.Pulsar = p.Pulsar
	if t == body.AccretionDiskParticle {
		b.OwnerID = p.OwnerID
		b.Lifetime = p.Lifetime
		if b.Lifetime <= 0 {
			b.Lifetime = w.cfg.Absorb.ParticleLifetime
		}
	}
	if !w.reg.Insert(b) {
		return 0, fmt.Errorf("%w: %d", ErrNoOwner, p.OwnerID)
	}
	w.logger.Debug("spawn", "id", b.ID, "type", t, "mass", b.Mass)
	return b.ID, nil
}

// Remove evicts a body immediately. Removing a black hole drops its disk.
func (w *World) Remove(id int64) error {
	b, orphans := w.reg.Remove(id)
	if b == nil {
		return fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	b.Kill()
	w.forces.forget(b.ID)
	for _, p := range orphans {
		p.Kill()
		w.forces.forget(p.ID)
	}
	return nil
}

func (w *World) GetState(id int64) (body.Snapshot, error) {
	b, ok := w.reg.Get(id)
	if !ok {
		return body.Snapshot{}, fmt.Errorf("%w: %d", ErrUnknownBody, id)
	}
	return b.Snapshot(), nil
}

// SetState overwrites the body with the given id, creating it if absent.
// A restored id advances the allocator so it is never handed out again.
func (w *World) SetState(id int64, s body.Snapshot) error {
	if !s.Type.Valid() {
		return fmt.Errorf("%w: %d", body.ErrUnknownType, s.Type)
	}
	s.ID = id

	if b, ok := w.reg.Get(id); ok && b.Type == s.Type && b.OwnerID == s.OwnerID {
		b.Apply(s)
		w.forces.forget(id)
		return nil
	} else if ok {
		w.Remove(id)
	}

	b := body.FromSnapshot(s)
	if !w.reg.Insert(b) {
		return fmt.Errorf("%w: %d", ErrNoOwner, s.OwnerID)
	}
	w.forces.forget(id)
	return nil
}

// Bodies returns snapshots of every registered body ordered by id.
func (w *World) Bodies() []body.Snapshot {
	all := w.reg.All()
	out := make([]body.Snapshot, 0, len(all))
	for _, b := range all {
		out = append(out, b.Snapshot())
	}
	return out
}

// Restore replaces the world's bodies with snaps. Black holes are inserted
// before their disk particles.
func (w *World) Restore(snaps []body.Snapshot) error {
	for _, b := range w.reg.All() {
		w.reg.Remove(b.ID)
	}
	w.forces.reset()

	ordered := slices.Clone(snaps)
	slices.SortStableFunc(ordered, func(a, b body.Snapshot) int {
		pa, pb := a.Type == body.AccretionDiskParticle, b.Type == body.AccretionDiskParticle
		switch {
		case pa == pb:
			return 0
		case pb:
			return -1
		default:
			return 1
		}
	})
	for _, s := range ordered {
		if err := w.SetState(s.ID, s); err != nil {
			return err
		}
	}
	return nil
}

// Events drains the event log.
func (w *World) Events() []events.Event { return w.log.Drain() }

func (w *World) emit(e events.Event) {
	e.Tick = w.tick
	e.Time = w.time
	e = w.log.Append(e)
	w.tickEvents = append(w.tickEvents, e)
	w.logger.Debug("event", "kind", e.Kind, "participants", e.Participants, "result", e.ResultID, "mass", e.Mass)
}

func eventAt(kind events.Kind, pos r2.Vec) events.Event {
	return events.Event{Kind: kind, X: pos.X, Y: pos.Y}
}
