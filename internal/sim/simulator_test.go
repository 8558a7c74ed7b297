package sim

import (
	"context"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/barneshut"
	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/events"
)

type countMetric struct {
	n int
}

func (m *countMetric) Name() string   { return "samples" }
func (m *countMetric) Observe(Stats)  { m.n++ }
func (m *countMetric) Value() float64 { return float64(m.n) }
func (m *countMetric) Reset()         { m.n = 0 }

type recordObserver struct {
	ticks  []uint64
	events int
}

func (o *recordObserver) OnStep(s Stats, evs []events.Event) {
	o.ticks = append(o.ticks, s.Tick)
	o.events += len(evs)
}

// spawnBinary places two stars on a circular orbit about the origin.
func spawnBinary(t testing.TB, w *World, m, sep float64) {
	t.Helper()
	v := math.Sqrt(w.Config().G * m / (2 * sep))
	for _, sign := range []float64{-1, 1} {
		_, err := w.Spawn(body.NeutronStar, SpawnParams{
			Pos:  r2.Vec{X: sign * sep / 2},
			Vel:  r2.Vec{Y: sign * v},
			Mass: m,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

func TestRun_BinaryOrbit(t *testing.T) {
	w := newWorld(t, func(c *Config) {
		c.Dt = 0.001
		c.Duration = 1
		c.MinDist = 0.01
	})
	spawnBinary(t, w, 100, 50)
	metric := &countMetric{}
	w.AddMetric(metric)
	obs := &recordObserver{}
	w.AddObserver(obs)

	result, err := w.Run(context.Background(), 100)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.StepsTaken != 1000 {
		t.Errorf("StepsTaken = %d, want 1000", result.StepsTaken)
	}
	if len(result.Samples) != 11 {
		t.Errorf("samples = %d, want 11", len(result.Samples))
	}
	if result.Metrics["samples"] != 11 {
		t.Errorf("metric samples = %v, want 11", result.Metrics["samples"])
	}
	if len(obs.ticks) != 1000 || obs.ticks[999] != 1000 {
		t.Errorf("observer saw %d ticks", len(obs.ticks))
	}
	if result.EnergyDrift > 1e-3 {
		t.Errorf("EnergyDrift = %v, want < 1e-3", result.EnergyDrift)
	}
	if len(result.Events) != 0 {
		t.Errorf("events = %v, want none", result.Events)
	}
	for _, s := range result.Samples {
		if !s.HasEnergy {
			t.Fatalf("sample at tick %d has no energy", s.Tick)
		}
	}
}

func TestRun_CollectsEvents(t *testing.T) {
	w := newWorld(t, func(c *Config) { c.Duration = 0.05 })
	w.Spawn(body.BlackHole, SpawnParams{Mass: 100})
	w.Spawn(body.Comet, SpawnParams{Pos: r2.Vec{X: 1}, Mass: 1})

	result, err := w.Run(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Events) != 1 || result.Events[0].Kind != events.Absorption {
		t.Errorf("events = %v, want one absorption", result.Events)
	}
	if w.EventLog().Len() != 0 {
		t.Errorf("log not drained: %d", w.EventLog().Len())
	}
}

func TestRun_ContextCanceled(t *testing.T) {
	w := newWorld(t)
	spawnBinary(t, w, 100, 50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := w.Run(ctx, 10)
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if result == nil || result.StepsTaken != 0 {
		t.Errorf("result = %+v, want zero steps", result)
	}
}

func TestRun_StopsOnNonFinite(t *testing.T) {
	w := newWorld(t, func(c *Config) { c.BoundsRadius = 0 })
	w.Spawn(body.Comet, SpawnParams{Vel: r2.Vec{X: math.Inf(1)}, Mass: 1})

	result, err := w.Run(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %v, want one", result.Errors)
	}
	if _, ok := result.Errors[0].(StepError); !ok {
		t.Errorf("error type = %T, want StepError", result.Errors[0])
	}
	if result.StepsTaken != 0 {
		t.Errorf("StepsTaken = %d, want 0", result.StepsTaken)
	}
}

func TestRunWithCallback(t *testing.T) {
	w := newWorld(t, func(c *Config) { c.Duration = 0 })
	spawnBinary(t, w, 100, 50)

	calls := 0
	err := w.RunWithCallback(context.Background(), func(s Stats, _ []events.Event) bool {
		calls++
		return s.Tick < 25
	})
	if err != nil {
		t.Fatal(err)
	}
	if calls != 25 || w.Tick() != 25 {
		t.Errorf("calls = %d tick = %d, want 25", calls, w.Tick())
	}
}

func TestStep_Closed(t *testing.T) {
	w := newWorld(t)
	w.Close()
	if err := w.Step(0.01); err != ErrClosed {
		t.Errorf("Step after Close = %v, want ErrClosed", err)
	}
	if err := w.Step(0); err != ErrClosed {
		t.Errorf("Step(0) after Close = %v, want ErrClosed", err)
	}
}

func TestForces_TreeFallsBackUntilResult(t *testing.T) {
	w := newWorld(t, func(c *Config) {
		c.ForceMode = ForceTree
		c.Theta = 0
	})
	for i := 0; i < 8; i++ {
		w.Spawn(body.Star, SpawnParams{
			Pos:  r2.Vec{X: float64(i) * 100, Y: float64(i%3) * 70},
			Mass: 10,
		})
	}

	if err := w.Step(0.001); err != nil {
		t.Fatal(err)
	}
	if w.forces.hits != 0 || w.forces.misses != 8 {
		t.Fatalf("first tick hits=%d misses=%d, want 0/8", w.forces.hits, w.forces.misses)
	}

	deadline := time.Now().Add(5 * time.Second)
	for w.forces.hits == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
		if err := w.Step(0.001); err != nil {
			t.Fatal(err)
		}
	}
	if w.forces.hits == 0 {
		t.Fatal("tree result never applied")
	}
	if len(w.forces.cache) != 8 {
		t.Errorf("cache size = %d, want 8", len(w.forces.cache))
	}
}

func TestForces_RemovedBodyLeavesCache(t *testing.T) {
	w := newWorld(t)
	id, _ := w.Spawn(body.Star, SpawnParams{Mass: 10})
	w.forces.cache[id] = r2.Vec{X: 1}

	if err := w.Remove(id); err != nil {
		t.Fatal(err)
	}
	if _, ok := w.forces.cache[id]; ok {
		t.Error("cache entry survived removal")
	}
}

// echoBackend answers every target with ax = G once gate, if set, opens.
type echoBackend struct {
	gate    chan struct{}
	cleaned atomic.Bool
}

func (e *echoBackend) Name() string    { return "echo" }
func (e *echoBackend) Available() bool { return true }
func (e *echoBackend) Cleanup()        { e.cleaned.Store(true) }
func (e *echoBackend) Forces(req barneshut.Request) (barneshut.Response, error) {
	if e.gate != nil {
		<-e.gate
	}
	n := req.Targets.Len()
	resp := barneshut.Response{
		Type: barneshut.ResponseType,
		AX:   make([]float64, n),
		AY:   make([]float64, n),
		Phi:  make([]float64, n),
	}
	for i := range resp.AX {
		resp.AX[i] = req.G
	}
	return resp, nil
}

func spawnRow(w *World, n int) {
	for i := 0; i < n; i++ {
		w.Spawn(body.Star, SpawnParams{Pos: r2.Vec{X: float64(i) * 100}, Mass: 10})
	}
}

func TestForces_ReconfigureDropsInflightResult(t *testing.T) {
	be := &echoBackend{gate: make(chan struct{})}
	cfg := DefaultConfig()
	cfg.ForceMode = ForceTree
	w, err := New(cfg, WithBackend(be))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	spawnRow(w, 4)

	if err := w.Step(0.001); err != nil {
		t.Fatal(err)
	}
	if !w.forces.worker.Busy() {
		t.Fatal("no tree request in flight")
	}

	next := w.Config()
	next.G = 2
	if err := w.Reconfigure(next); err != nil {
		t.Fatal(err)
	}
	close(be.gate)

	deadline := time.Now().Add(5 * time.Second)
	for len(w.forces.cache) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
		if err := w.Step(0.001); err != nil {
			t.Fatal(err)
		}
	}
	if len(w.forces.cache) == 0 {
		t.Fatal("tree result never applied")
	}
	for id, a := range w.forces.cache {
		if a.X != 2 {
			t.Errorf("cache[%d].X = %v, want 2 from the new G", id, a.X)
		}
	}
}

func TestWorld_ReconfigureSwapsBackend(t *testing.T) {
	be := &echoBackend{}
	cfg := DefaultConfig()
	cfg.ForceMode = ForceTree
	w, err := New(cfg, WithBackend(be))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	spawnRow(w, 4)
	if err := w.Step(0.001); err != nil {
		t.Fatal(err)
	}

	next := w.Config()
	next.Backend = "cpu"
	next.WorkerRate = 50
	if err := w.Reconfigure(next); err != nil {
		t.Fatal(err)
	}
	if !be.cleaned.Load() {
		t.Error("old backend not cleaned up")
	}
	if w.forces.rate != 50 {
		t.Errorf("worker rate = %v, want 50", w.forces.rate)
	}

	if err := w.Step(0.001); err != nil {
		t.Fatal(err)
	}
	if got := w.forces.worker.Backend().Name(); got != "cpu" {
		t.Errorf("backend = %q, want cpu", got)
	}
}
