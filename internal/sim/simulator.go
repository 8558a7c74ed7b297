package sim

import (
	"context"
	"errors"
	"math"

	"github.com/san-kum/gravsim/internal/events"
)

// Run steps the world for the configured duration, sampling Stats (energy
// included) every sampleEvery ticks and at the start. Events still pending
// at the end are drained into the result.
func (w *World) Run(ctx context.Context, sampleEvery int) (*Result, error) {
	cfg := w.cfg
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.Duration <= 0 {
		return nil, errors.New("sim: duration must be positive to run")
	}

	steps := int(math.Round(cfg.Duration / cfg.Dt))
	result := &Result{
		Samples: make([]Stats, 0, 2+steps/max(sampleEvery, 1)),
		Metrics: make(map[string]float64),
	}

	for _, m := range w.metrics {
		m.Reset()
	}
	w.sample(result)

	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			w.finish(result)
			return result, ctx.Err()
		default:
		}

		if err := w.Step(cfg.Dt); err != nil {
			result.Errors = append(result.Errors, err)
			var se StepError
			if errors.As(err, &se) || errors.Is(err, ErrClosed) {
				break
			}
		}
		result.StepsTaken++

		if sampleEvery > 0 && result.StepsTaken%sampleEvery == 0 {
			w.sample(result)
		}
	}

	if last := result.Samples[len(result.Samples)-1]; last.Tick != w.tick {
		w.sample(result)
	}
	w.finish(result)
	w.logger.Info("run complete", "steps", result.StepsTaken, "time", w.time, "bodies", w.reg.Len(), "events", len(result.Events))
	return result, nil
}

func (w *World) sample(r *Result) {
	s := w.Stats()
	r.Samples = append(r.Samples, s)
	for _, m := range w.metrics {
		m.Observe(s)
	}
}

func (w *World) finish(r *Result) {
	if n := len(r.Samples); n > 1 {
		e0, e1 := r.Samples[0].Energy(), r.Samples[n-1].Energy()
		if e0 != 0 {
			r.EnergyDrift = math.Abs(e1-e0) / math.Abs(e0)
		}
	}
	for _, m := range w.metrics {
		r.Metrics[m.Name()] = m.Value()
	}
	r.Events = append(r.Events, w.log.Drain()...)
}

// RunWithCallback steps until ctx ends, the configured duration elapses
// (when positive), or callback returns false. The callback sees each tick's
// stats and events; events are not drained from the log.
func (w *World) RunWithCallback(ctx context.Context, callback func(Stats, []events.Event) bool) error {
	for w.cfg.Duration <= 0 || w.time < w.cfg.Duration {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := w.Step(w.cfg.Dt); err != nil {
			return err
		}
		if !callback(w.stats(false), w.tickEvents) {
			return nil
		}
	}
	return nil
}
