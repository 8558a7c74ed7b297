package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/san-kum/gravsim/internal/events"
	"github.com/san-kum/gravsim/internal/sim"
)

// Collector exports per-step world statistics to Prometheus. It is a
// sim.Observer and owns its registry so several worlds can coexist.
type Collector struct {
	registry *prometheus.Registry

	bodies       *prometheus.GaugeVec
	mass         prometheus.Gauge
	simTime      prometheus.Gauge
	ticks        prometheus.Counter
	eventsTotal  *prometheus.CounterVec
	stepDuration prometheus.Histogram
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		bodies: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gravsim_bodies",
				Help: "Registered bodies by type",
			},
			[]string{"type"},
		),
		mass: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gravsim_total_mass",
			Help: "Total mass of all registered bodies",
		}),
		simTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gravsim_sim_time",
			Help: "Simulated time",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gravsim_ticks_total",
			Help: "Completed simulation ticks",
		}),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gravsim_events_total",
				Help: "Physics events by kind",
			},
			[]string{"kind"},
		),
		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gravsim_step_duration_seconds",
			Help:    "Wall time spent in one tick",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
	}

	c.registry.MustRegister(c.bodies, c.mass, c.simTime, c.ticks, c.eventsTotal, c.stepDuration)
	for _, k := range events.Kinds() {
		c.eventsTotal.WithLabelValues(string(k))
	}
	return c
}

func (c *Collector) OnStep(s sim.Stats, evs []events.Event) {
	c.ticks.Inc()
	c.mass.Set(s.Mass)
	c.simTime.Set(s.Time)
	c.stepDuration.Observe(s.StepSeconds)

	c.bodies.Reset()
	for name, n := range s.Types {
		c.bodies.WithLabelValues(name).Set(float64(n))
	}
	for _, e := range evs {
		c.eventsTotal.WithLabelValues(string(e.Kind)).Inc()
	}
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
