package sim

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/san-kum/gravsim/internal/absorb"
	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/collision"
	"github.com/san-kum/gravsim/internal/events"
	"github.com/san-kum/gravsim/internal/merge"
	"github.com/san-kum/gravsim/internal/tidal"
)

type ForceMode string

const (
	ForceDirect ForceMode = "direct"
	ForceTree   ForceMode = "tree"
	ForceAuto   ForceMode = "auto"
)

func ParseForceMode(s string) (ForceMode, error) {
	switch m := ForceMode(strings.ToLower(s)); m {
	case ForceDirect, ForceTree, ForceAuto:
		return m, nil
	}
	return "", fmt.Errorf("sim: unknown force mode %q", s)
}

type Config struct {
	Dt       float64
	Duration float64
	Seed     int64

	G       float64
	MinDist float64
	Theta   float64

	ForceMode     ForceMode
	TreeThreshold int
	// Backend names the in-process compute backend used for tree mode.
	Backend    string
	WorkerRate float64

	TrailCap     int
	BoundsRadius float64
	EventLimit   int
	// ValidateState stops Run on non-finite positions.
	ValidateState bool

	Collision collision.Params
	Tidal     tidal.Params
	Absorb    absorb.Params
	Merge     merge.Params
}

func DefaultConfig() Config {
	tp := tidal.DefaultParams()
	ap := absorb.DefaultParams()
	tp.AbsorptionBuffer = ap.Buffer
	return Config{
		Dt:            0.01,
		Duration:      10,
		Seed:          1,
		G:             1,
		MinDist:       0.5,
		Theta:         0.5,
		ForceMode:     ForceAuto,
		TreeThreshold: 200,
		Backend:       "tree",
		WorkerRate:    0,
		TrailCap:      64,
		BoundsRadius:  1e5,
		EventLimit:    10000,
		ValidateState: true,
		Collision:     collision.DefaultParams(),
		Tidal:         tp,
		Absorb:        ap,
		Merge:         merge.DefaultParams(),
	}
}

// SpawnParams describes a new body. Zero Radius means the type's law.
type SpawnParams struct {
	Pos      r2.Vec
	Vel      r2.Vec
	Mass     float64
	Radius   float64
	Density  body.Density
	Pulsar   bool
	OwnerID  int64
	Lifetime float64
}

type Metric interface {
	Name() string
	Observe(s Stats)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s Stats, evs []events.Event)
}

// Stats summarises the world after a tick. Energy is filled only when
// HasEnergy is set since it is quadratic in the body count.
type Stats struct {
	Tick            uint64         `json:"tick"`
	Time            float64        `json:"time"`
	Bodies          int            `json:"bodies"`
	DiskParticles   int            `json:"disk_particles"`
	Mass            float64        `json:"mass"`
	MomentumX       float64        `json:"momentum_x"`
	MomentumY       float64        `json:"momentum_y"`
	AngularMomentum float64        `json:"angular_momentum"`
	Kinetic         float64        `json:"kinetic"`
	Potential       float64        `json:"potential"`
	HasEnergy       bool           `json:"has_energy"`
	Events          int            `json:"events"`
	StepSeconds     float64        `json:"step_seconds"`
	Types           map[string]int `json:"types"`
}

func (s Stats) Energy() float64 { return s.Kinetic + s.Potential }

type Result struct {
	Samples     []Stats
	Events      []events.Event
	Metrics     map[string]float64
	StepsTaken  int
	EnergyDrift float64
	Errors      []error
}
