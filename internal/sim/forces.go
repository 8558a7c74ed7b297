package sim

import (
	"log/slog"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/barneshut"
	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/compute"
	"github.com/san-kum/gravsim/internal/gravity"
)

const (
	// parallelDirect is the body count above which direct mode fans out.
	parallelDirect = 256
	stallAfter     = 2 * time.Second
)

// forceField evaluates accelerations for one tick. In tree mode it keeps a
// per-id cache filled by the async worker; a body without an entry falls
// back to the direct sum.
type forceField struct {
	params    gravity.Params
	theta     float64
	mode      ForceMode
	threshold int
	rate      float64

	backend compute.Backend
	worker  *compute.Worker
	direct  *compute.CPUBackend
	logger  *slog.Logger

	cache    map[int64]r2.Vec
	inflight barneshut.Request
	targets  []int64
	stalled  bool

	// gen counts gravity parameter changes; a result built under an older
	// gen is dropped.
	gen, inflightGen uint64

	version uint64
	bodies  []*body.Body
	src     []gravity.Source
	pool    *bufferPool

	hits, misses uint64
}

func newForceField(cfg Config) *forceField {
	f := &forceField{
		params:    gravity.Params{G: cfg.G, MinDist: cfg.MinDist},
		theta:     cfg.Theta,
		mode:      cfg.ForceMode,
		threshold: cfg.TreeThreshold,
		rate:      cfg.WorkerRate,
		direct:    compute.NewCPUBackend(),
		logger:    slog.New(slog.DiscardHandler),
		cache:     make(map[int64]r2.Vec),
		pool:      newBufferPool(),
	}
	if cfg.Backend != "" {
		f.backend, _ = compute.ByName(cfg.Backend)
	}
	return f
}

func (f *forceField) useTree(n int) bool {
	switch f.mode {
	case ForceTree:
		return true
	case ForceAuto:
		return n > f.threshold
	}
	return false
}

// refresh rebuilds the body list when the registry membership changed and
// reloads positions and masses every tick.
func (f *forceField) refresh(reg *body.Registry) {
	if v := reg.Version(); v != f.version || f.bodies == nil {
		f.bodies = reg.Bodies()
		f.src = make([]gravity.Source, len(f.bodies))
		f.version = v
	}
	for i, b := range f.bodies {
		f.src[i] = gravity.Source{Pos: b.Pos}
		if b.Alive {
			f.src[i].Mass = b.Mass
		}
	}
}

// accelerations returns the gravitating bodies and their accelerations,
// followed by disk particles, which feel only their owner.
func (f *forceField) accelerations(reg *body.Registry) ([]*body.Body, []r2.Vec) {
	f.refresh(reg)
	n := len(f.bodies)
	acc := make([]r2.Vec, n, n+reg.DiskCount())

	switch {
	case f.useTree(n):
		f.collect()
		f.submit()
		for i, b := range f.bodies {
			if a, ok := f.cache[b.ID]; ok {
				acc[i] = a
				f.hits++
				continue
			}
			acc[i] = gravity.Accel(f.params, b.Pos, f.src)
			f.misses++
		}
	case n >= parallelDirect:
		f.collect()
		resp, err := f.direct.Forces(f.request(f.bodies, false))
		if err == nil {
			for i := range acc {
				acc[i] = r2.Vec{X: resp.AX[i], Y: resp.AY[i]}
			}
		}
	default:
		f.collect()
		copy(acc, gravity.Mutual(f.params, f.src))
	}

	bodies := make([]*body.Body, n, n+reg.DiskCount())
	copy(bodies, f.bodies)
	for _, owner := range reg.DiskOwners() {
		hole, ok := reg.Get(owner)
		if !ok {
			continue
		}
		src := []gravity.Source{{Pos: hole.Pos, Mass: hole.Mass}}
		for _, p := range reg.Disk(owner) {
			bodies = append(bodies, p)
			acc = append(acc, gravity.Accel(f.params, p.Pos, src))
		}
	}
	return bodies, acc
}

// request copies the current sources and targets into fresh buffers.
func (f *forceField) request(bodies []*body.Body, pooled bool) barneshut.Request {
	n := len(bodies)
	get := func() []float64 { return make([]float64, n) }
	if pooled {
		get = func() []float64 { return f.pool.Get(n) }
	}

	req := barneshut.Request{
		Type:    barneshut.RequestType,
		G:       f.params.G,
		Theta:   f.theta,
		MinDist: f.params.MinDist,
		Sources: barneshut.Sources{X: get(), Y: get(), M: get()},
		Targets: barneshut.Targets{X: get(), Y: get()},
	}
	for i, s := range f.src {
		req.Sources.X[i], req.Sources.Y[i], req.Sources.M[i] = s.Pos.X, s.Pos.Y, s.Mass
		req.Targets.X[i], req.Targets.Y[i] = s.Pos.X, s.Pos.Y
	}
	return req
}

func (f *forceField) ensureWorker() *compute.Worker {
	if f.worker == nil {
		if f.backend == nil {
			f.backend = compute.NewTreeBackend()
		}
		f.worker = compute.NewWorker(f.backend, compute.WithRate(f.rate), compute.WithLogger(f.logger))
	}
	return f.worker
}

func (f *forceField) submit() {
	w := f.ensureWorker()
	if w.Busy() {
		if d := w.Pending(); d > stallAfter && !f.stalled {
			f.stalled = true
			f.logger.Warn("force worker stalled, using cached accelerations", "pending", d)
		}
		return
	}

	req := f.request(f.bodies, true)
	if !w.Submit(req) {
		f.recycle(req)
		return
	}
	f.inflight = req
	f.inflightGen = f.gen
	f.targets = f.targets[:0]
	for _, b := range f.bodies {
		f.targets = append(f.targets, b.ID)
	}
}

// collect installs a finished worker response as the new cache.
func (f *forceField) collect() {
	if f.worker == nil {
		return
	}
	res, ok := f.worker.Poll()
	if !ok {
		return
	}
	f.stalled = false
	f.recycle(f.inflight)
	f.inflight = barneshut.Request{}

	if f.inflightGen != f.gen {
		f.logger.Debug("discarding tree result from old parameters", "seq", res.Seq)
		return
	}
	if res.Err != nil || len(res.Response.AX) != len(f.targets) {
		f.logger.Warn("discarding tree result", "seq", res.Seq, "err", res.Err)
		return
	}
	cache := make(map[int64]r2.Vec, len(f.targets))
	for i, id := range f.targets {
		cache[id] = r2.Vec{X: res.Response.AX[i], Y: res.Response.AY[i]}
	}
	f.cache = cache
	f.logger.Debug("tree result applied", "seq", res.Seq, "targets", len(f.targets), "elapsed", res.Elapsed)
}

func (f *forceField) recycle(req barneshut.Request) {
	f.pool.Put(req.Sources.X, req.Sources.Y, req.Sources.M, req.Targets.X, req.Targets.Y)
}

// reconfigure applies new force parameters between ticks.
func (f *forceField) reconfigure(old, cfg Config) {
	f.mode, f.threshold = cfg.ForceMode, cfg.TreeThreshold
	if old.G != cfg.G || old.MinDist != cfg.MinDist || old.Theta != cfg.Theta {
		f.params = gravity.Params{G: cfg.G, MinDist: cfg.MinDist}
		f.theta = cfg.Theta
		f.cache = make(map[int64]r2.Vec)
		f.gen++
	}
	if cfg.WorkerRate != f.rate {
		f.rate = cfg.WorkerRate
		if f.worker != nil {
			f.worker.SetRate(f.rate)
		}
	}
	if cfg.Backend != old.Backend {
		var next compute.Backend
		if cfg.Backend != "" {
			next, _ = compute.ByName(cfg.Backend)
		}
		f.close()
		f.worker = nil
		f.inflight = barneshut.Request{}
		f.stalled = false
		f.backend = next
	}
}

func (f *forceField) forget(id int64) { delete(f.cache, id) }

func (f *forceField) reset() {
	f.cache = make(map[int64]r2.Vec)
	f.bodies = nil
}

func (f *forceField) close() {
	switch {
	case f.worker != nil:
		f.worker.Close()
	case f.backend != nil:
		f.backend.Cleanup()
	}
}
