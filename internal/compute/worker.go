package compute

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/san-kum/gravsim/internal/barneshut"
)

var ErrWorkerClosed = errors.New("compute: worker closed")

// Result is one completed request.
type Result struct {
	Seq      uint64
	Response barneshut.Response
	Err      error
	Elapsed  time.Duration
}

type job struct {
	seq uint64
	req barneshut.Request
	at  time.Time
}

// Worker evaluates requests off the caller's goroutine. At most one request
// is outstanding; Submit and Poll never block. Worker methods other than
// Close must be called from a single goroutine.
type Worker struct {
	backend Backend
	limiter *rate.Limiter
	log     *slog.Logger

	jobs    chan job
	results chan Result
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	seq     uint64
	busy    bool
	since   time.Time
	stopped bool
}

type WorkerOption func(*Worker)

// WithRate caps submissions per second on top of the one-outstanding rule.
// Zero or negative leaves submissions unthrottled.
func WithRate(perSecond float64) WorkerOption {
	return func(w *Worker) {
		if perSecond > 0 {
			w.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func WithLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) { w.log = l }
}

func NewWorker(b Backend, opts ...WorkerOption) *Worker {
	w := &Worker{
		backend: b,
		log:     slog.New(slog.DiscardHandler),
		jobs:    make(chan job, 1),
		results: make(chan Result, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case j := <-w.jobs:
			resp, err := w.backend.Forces(j.req)
			if err == nil && resp.Error != "" {
				err = errors.New(resp.Error)
			}
			r := Result{Seq: j.seq, Response: resp, Err: err, Elapsed: time.Since(j.at)}
			select {
			case w.results <- r:
			case <-w.done:
				return
			}
		}
	}
}

// Submit hands req to the worker and returns true, or returns false without
// side effects when a request is outstanding, the limiter refuses, or the
// worker is closed. The caller must not modify req's buffers afterwards.
func (w *Worker) Submit(req barneshut.Request) bool {
	if w.stopped || w.busy {
		return false
	}
	if w.limiter != nil && !w.limiter.Allow() {
		return false
	}

	w.seq++
	w.busy = true
	w.since = time.Now()
	w.jobs <- job{seq: w.seq, req: req, at: w.since}
	w.log.Debug("worker request", "seq", w.seq, "backend", w.backend.Name(),
		"sources", req.Sources.Len(), "targets", req.Targets.Len())
	return true
}

// Poll returns the finished result if one is ready.
func (w *Worker) Poll() (Result, bool) {
	if !w.busy {
		return Result{}, false
	}
	select {
	case r := <-w.results:
		w.busy = false
		if r.Err != nil {
			w.log.Warn("worker request failed", "seq", r.Seq, "err", r.Err)
		}
		return r, true
	default:
		return Result{}, false
	}
}

// Await blocks until the outstanding request finishes or ctx ends.
func (w *Worker) Await(ctx context.Context) (Result, error) {
	if w.stopped {
		return Result{}, ErrWorkerClosed
	}
	if !w.busy {
		return Result{}, errors.New("compute: no request outstanding")
	}
	select {
	case r := <-w.results:
		w.busy = false
		return r, r.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// SetRate changes the submission cap. Zero or negative removes it.
func (w *Worker) SetRate(perSecond float64) {
	switch {
	case perSecond <= 0:
		w.limiter = nil
	case w.limiter == nil:
		w.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	default:
		w.limiter.SetLimit(rate.Limit(perSecond))
	}
}

func (w *Worker) Busy() bool { return w.busy }

// Pending reports how long the outstanding request has been in flight.
func (w *Worker) Pending() time.Duration {
	if !w.busy {
		return 0
	}
	return time.Since(w.since)
}

func (w *Worker) Backend() Backend { return w.backend }

// Close stops the worker. An in-flight response is discarded.
func (w *Worker) Close() {
	w.once.Do(func() {
		w.stopped = true
		close(w.done)
		w.backend.Cleanup()
		w.wg.Wait()
	})
}
