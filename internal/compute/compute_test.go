package compute

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/san-kum/gravsim/internal/barneshut"
)

func testRequest(n int, theta float64) barneshut.Request {
	rng := rand.New(rand.NewSource(5))
	req := barneshut.Request{Type: barneshut.RequestType, G: 1, Theta: theta, MinDist: 0.05}
	for i := 0; i < n; i++ {
		x, y := rng.NormFloat64()*10, rng.NormFloat64()*10
		req.Sources.X = append(req.Sources.X, x)
		req.Sources.Y = append(req.Sources.Y, y)
		req.Sources.M = append(req.Sources.M, 1+rng.Float64())
		req.Targets.X = append(req.Targets.X, x)
		req.Targets.Y = append(req.Targets.Y, y)
	}
	return req
}

func TestBackends_AgreeAtZeroTheta(t *testing.T) {
	req := testRequest(300, 0)

	cpu, err := NewCPUBackend().Forces(req)
	if err != nil {
		t.Fatal(err)
	}
	tree, err := NewTreeBackend().Forces(req)
	if err != nil {
		t.Fatal(err)
	}

	opt := cmpopts.EquateApprox(1e-9, 1e-12)
	if diff := cmp.Diff(cpu, tree, opt); diff != "" {
		t.Errorf("cpu and tree differ (-cpu +tree):\n%s", diff)
	}
}

func TestByName(t *testing.T) {
	for _, name := range Names() {
		b, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
		if b.Name() != name {
			t.Errorf("ByName(%q).Name() = %q", name, b.Name())
		}
	}
	if _, err := ByName("cuda"); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("ByName(cuda) error = %v, want ErrUnknownBackend", err)
	}
}

func TestParallelFor_CoversRange(t *testing.T) {
	for _, n := range []int{0, 1, 15, 16, 17, 1000} {
		hits := make([]int32, n)
		ParallelFor(n, 16, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			if h != 1 {
				t.Fatalf("n=%d: index %d visited %d times", n, i, h)
			}
		}
	}
}

// gateBackend blocks every request until released.
type gateBackend struct {
	release chan struct{}
	calls   atomic.Int32
}

func (g *gateBackend) Name() string    { return "gate" }
func (g *gateBackend) Available() bool { return true }
func (g *gateBackend) Cleanup()        {}
func (g *gateBackend) Forces(req barneshut.Request) (barneshut.Response, error) {
	g.calls.Add(1)
	<-g.release
	return barneshut.Response{Type: barneshut.ResponseType, AX: []float64{1}}, nil
}

func TestWorker_OneOutstanding(t *testing.T) {
	g := &gateBackend{release: make(chan struct{})}
	w := NewWorker(g)
	defer w.Close()

	req := testRequest(1, 0.5)
	if !w.Submit(req) {
		t.Fatal("first Submit refused")
	}
	if w.Submit(req) {
		t.Error("second Submit accepted while busy")
	}
	if _, ok := w.Poll(); ok {
		t.Error("Poll returned a result before the backend finished")
	}
	if !w.Busy() {
		t.Error("Busy() = false with a request outstanding")
	}

	close(g.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := w.Await(ctx)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if res.Seq != 1 || res.Response.AX[0] != 1 {
		t.Errorf("result = %+v, want seq 1 with ax[0]=1", res)
	}
	if w.Busy() {
		t.Error("Busy() = true after the result was consumed")
	}
	if !w.Submit(req) {
		t.Error("Submit refused after the previous result was consumed")
	}
	if got := g.calls.Load(); got > 2 {
		t.Errorf("backend called %d times, want at most 2", got)
	}
}

func TestWorker_CloseDiscardsInFlight(t *testing.T) {
	g := &gateBackend{release: make(chan struct{})}
	w := NewWorker(g)

	w.Submit(testRequest(1, 0.5))
	done := make(chan struct{})
	go func() {
		w.Close()
		close(done)
	}()
	close(g.release)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	if w.Submit(testRequest(1, 0.5)) {
		t.Error("Submit accepted after Close")
	}
	if _, err := w.Await(context.Background()); !errors.Is(err, ErrWorkerClosed) {
		t.Errorf("Await after Close = %v, want ErrWorkerClosed", err)
	}
}

func TestWorker_RateLimited(t *testing.T) {
	w := NewWorker(NewTreeBackend(), WithRate(0.001))
	defer w.Close()

	req := testRequest(10, 0.5)
	if !w.Submit(req) {
		t.Fatal("first Submit refused")
	}
	if _, err := w.Await(context.Background()); err != nil {
		t.Fatal(err)
	}
	if w.Submit(req) {
		t.Error("Submit accepted beyond the rate limit")
	}
}

func TestWorker_SetRate(t *testing.T) {
	w := NewWorker(NewTreeBackend(), WithRate(0.001))
	defer w.Close()

	req := testRequest(10, 0.5)
	w.Submit(req)
	if _, err := w.Await(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.SetRate(0)
	if !w.Submit(req) {
		t.Error("Submit refused after the limit was lifted")
	}
	if _, err := w.Await(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestServe_StreamRoundTrip(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	served := make(chan error, 1)
	go func() {
		served <- Serve(context.Background(), reqR, respW, NewTreeBackend())
		respW.Close()
	}()

	remote := NewStreamBackend(respR, reqW, reqW)
	req := testRequest(64, 0.3)

	got, err := remote.Forces(req)
	if err != nil {
		t.Fatalf("Forces: %v", err)
	}
	want, _ := NewTreeBackend().Forces(req)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stream result differs (-local +remote):\n%s", diff)
	}

	_, err = remote.Forces(barneshut.Request{Type: "accel"})
	if err == nil {
		t.Error("bad request type did not produce an error")
	}

	remote.Cleanup()
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve returned %v, want nil at EOF", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop at EOF")
	}
}

func TestEncodeDecode(t *testing.T) {
	pr, pw := io.Pipe()
	want := testRequest(3, 0.5)
	go func() {
		Encode(pw, &want)
		pw.Close()
	}()

	var got barneshut.Request
	if err := Decode(pr, &got); err != nil {
		t.Fatal(err)
	}
	if got.Type != "bh" || got.Theta != 0.5 || got.Sources.Len() != 3 {
		t.Errorf("decoded %+v", got)
	}
	if math.Abs(got.Sources.X[2]-want.Sources.X[2]) != 0 {
		t.Errorf("x[2] = %v, want %v", got.Sources.X[2], want.Sources.X[2])
	}
}

func TestGonumBackend_MatchesTree(t *testing.T) {
	req := testRequest(200, 0)

	tree, err := NewTreeBackend().Forces(req)
	if err != nil {
		t.Fatal(err)
	}
	g, err := NewGonumBackend().Forces(req)
	if err != nil {
		t.Fatal(err)
	}

	for i := range tree.AX {
		dx, dy := g.AX[i]-tree.AX[i], g.AY[i]-tree.AY[i]
		mag := math.Hypot(tree.AX[i], tree.AY[i])
		if math.Hypot(dx, dy) > 1e-9*mag+1e-12 {
			t.Errorf("target %d: gonum (%v, %v), tree (%v, %v)", i, g.AX[i], g.AY[i], tree.AX[i], tree.AY[i])
		}
	}
}
