package config

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/gravsim/internal/body"
	"github.com/san-kum/gravsim/internal/sim"
)

const (
	DefaultDt       = 0.01
	DefaultDuration = 10.0
	DefaultSeed     = 1
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Name     string  `yaml:"name" toml:"name"`
	Dt       float64 `yaml:"dt" toml:"dt"`
	Duration float64 `yaml:"duration" toml:"duration"`
	Seed     int64   `yaml:"seed" toml:"seed"`

	TrailCap     int     `yaml:"trail_cap" toml:"trail_cap"`
	BoundsRadius float64 `yaml:"bounds_radius" toml:"bounds_radius"`
	EventLimit   int     `yaml:"event_limit" toml:"event_limit"`

	Gravity   GravityConfig   `yaml:"gravity" toml:"gravity"`
	Collision CollisionConfig `yaml:"collision" toml:"collision"`
	Tidal     TidalConfig     `yaml:"tidal" toml:"tidal"`
	Absorb    AbsorbConfig    `yaml:"absorb" toml:"absorb"`
	Merge     MergeConfig     `yaml:"merge" toml:"merge"`

	Bodies []BodySpec `yaml:"bodies,omitempty" toml:"bodies,omitempty"`
	Groups []Group    `yaml:"groups,omitempty" toml:"groups,omitempty"`
}

type GravityConfig struct {
	G             float64 `yaml:"g" toml:"g"`
	MinDist       float64 `yaml:"min_dist" toml:"min_dist"`
	Theta         float64 `yaml:"theta" toml:"theta"`
	ForceMode     string  `yaml:"force_mode" toml:"force_mode"`
	TreeThreshold int     `yaml:"tree_threshold" toml:"tree_threshold"`
	Backend       string  `yaml:"backend" toml:"backend"`
	WorkerRate    float64 `yaml:"worker_rate" toml:"worker_rate"`
}

type CollisionConfig struct {
	Restitution      float64 `yaml:"restitution" toml:"restitution"`
	RockyRestitution float64 `yaml:"rocky_restitution" toml:"rocky_restitution"`
	FragmentSpeed    float64 `yaml:"fragment_speed" toml:"fragment_speed"`
	FragmentLoss     float64 `yaml:"fragment_loss" toml:"fragment_loss"`
	FragmentCount    int     `yaml:"fragment_count" toml:"fragment_count"`
	ConeDegrees      float64 `yaml:"cone_degrees" toml:"cone_degrees"`
}

type TidalConfig struct {
	MassRate   float64 `yaml:"mass_rate" toml:"mass_rate"`
	DebrisRate float64 `yaml:"debris_rate" toml:"debris_rate"`
	BurstCount int     `yaml:"burst_count" toml:"burst_count"`
	// Multipliers and Floors are keyed by body type name.
	Multipliers map[string]float64 `yaml:"multipliers" toml:"multipliers"`
	Floors      map[string]float64 `yaml:"floors" toml:"floors"`
}

type AbsorbConfig struct {
	Buffer            float64 `yaml:"buffer" toml:"buffer"`
	DiskCaptureFactor float64 `yaml:"disk_capture_factor" toml:"disk_capture_factor"`
	ParticleLifetime  float64 `yaml:"particle_lifetime" toml:"particle_lifetime"`
}

type MergeConfig struct {
	SolarMass          float64 `yaml:"solar_mass" toml:"solar_mass"`
	MaxStellarMass     float64 `yaml:"max_stellar_mass" toml:"max_stellar_mass"`
	TOVLimit           float64 `yaml:"tov_limit" toml:"tov_limit"`
	ChandrasekharLimit float64 `yaml:"chandrasekhar_limit" toml:"chandrasekhar_limit"`
	IntermediateMass   float64 `yaml:"intermediate_mass" toml:"intermediate_mass"`
	GiantToStarMass    float64 `yaml:"giant_to_star_mass" toml:"giant_to_star_mass"`
	PulsarChance       float64 `yaml:"pulsar_chance" toml:"pulsar_chance"`
}

// BodySpec is one initial body.
type BodySpec struct {
	Type    string  `yaml:"type" toml:"type"`
	X       float64 `yaml:"x" toml:"x"`
	Y       float64 `yaml:"y" toml:"y"`
	VX      float64 `yaml:"vx" toml:"vx"`
	VY      float64 `yaml:"vy" toml:"vy"`
	Mass    float64 `yaml:"mass" toml:"mass"`
	Radius  float64 `yaml:"radius,omitempty" toml:"radius,omitempty"`
	Density string  `yaml:"density,omitempty" toml:"density,omitempty"`
	Pulsar  bool    `yaml:"pulsar,omitempty" toml:"pulsar,omitempty"`
}

// Group scatters Count bodies of one type in an annulus around (X, Y).
// With Orbit set each member gets the circular speed about CentralMass.
type Group struct {
	Type        string  `yaml:"type" toml:"type"`
	Count       int     `yaml:"count" toml:"count"`
	X           float64 `yaml:"x" toml:"x"`
	Y           float64 `yaml:"y" toml:"y"`
	InnerRadius float64 `yaml:"inner_radius" toml:"inner_radius"`
	OuterRadius float64 `yaml:"outer_radius" toml:"outer_radius"`
	MinMass     float64 `yaml:"min_mass" toml:"min_mass"`
	MaxMass     float64 `yaml:"max_mass" toml:"max_mass"`
	Orbit       bool    `yaml:"orbit,omitempty" toml:"orbit,omitempty"`
	CentralMass float64 `yaml:"central_mass,omitempty" toml:"central_mass,omitempty"`
	// Dispersion adds a random velocity of this scale to each member.
	Dispersion float64 `yaml:"dispersion,omitempty" toml:"dispersion,omitempty"`
}

// Spawn is a resolved initial body ready for sim.World.Spawn.
type Spawn struct {
	Type   body.Type
	Params sim.SpawnParams
}

func DefaultConfig() *Config {
	d := sim.DefaultConfig()
	c := &Config{
		Dt:           DefaultDt,
		Duration:     DefaultDuration,
		Seed:         DefaultSeed,
		TrailCap:     d.TrailCap,
		BoundsRadius: d.BoundsRadius,
		EventLimit:   d.EventLimit,
		Gravity: GravityConfig{
			G:             d.G,
			MinDist:       d.MinDist,
			Theta:         d.Theta,
			ForceMode:     string(d.ForceMode),
			TreeThreshold: d.TreeThreshold,
			Backend:       d.Backend,
			WorkerRate:    d.WorkerRate,
		},
		Collision: CollisionConfig{
			Restitution:      d.Collision.Restitution,
			RockyRestitution: d.Collision.RockyRestitution,
			FragmentSpeed:    d.Collision.FragmentSpeed,
			FragmentLoss:     d.Collision.FragmentLoss,
			FragmentCount:    d.Collision.FragmentCount,
			ConeDegrees:      d.Collision.ConeAngle * 180 / math.Pi,
		},
		Tidal: TidalConfig{
			MassRate:    d.Tidal.MassRate,
			DebrisRate:  d.Tidal.DebrisRate,
			BurstCount:  d.Tidal.BurstCount,
			Multipliers: byName(d.Tidal.Multipliers),
			Floors:      byName(d.Tidal.Floors),
		},
		Absorb: AbsorbConfig{
			Buffer:            d.Absorb.Buffer,
			DiskCaptureFactor: d.Absorb.DiskCaptureFactor,
			ParticleLifetime:  d.Absorb.ParticleLifetime,
		},
		Merge: MergeConfig{
			SolarMass:          d.Merge.SolarMass,
			MaxStellarMass:     d.Merge.MaxStellarMass,
			TOVLimit:           d.Merge.TOVLimit,
			ChandrasekharLimit: d.Merge.ChandrasekharLimit,
			IntermediateMass:   d.Merge.IntermediateMass,
			GiantToStarMass:    d.Merge.GiantToStarMass,
			PulsarChance:       d.Merge.PulsarChance,
		},
	}
	return c
}

func byName(m map[body.Type]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for t, v := range m {
		out[t.String()] = v
	}
	return out
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load reads a YAML file, or TOML when the name ends in .toml. Fields not
// present keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if c.Dt <= 0 {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalid, c.Dt)
	}
	if c.Duration < 0 {
		return fmt.Errorf("%w: duration must not be negative, got %g", ErrInvalid, c.Duration)
	}
	if _, err := sim.ParseForceMode(c.Gravity.ForceMode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	for i, b := range c.Bodies {
		t, err := body.ParseType(b.Type)
		if err != nil {
			return fmt.Errorf("%w: bodies[%d]: %v", ErrInvalid, i, err)
		}
		if t == body.AccretionDiskParticle {
			return fmt.Errorf("%w: bodies[%d]: disk particles are created by black holes", ErrInvalid, i)
		}
		if b.Mass <= 0 {
			return fmt.Errorf("%w: bodies[%d]: mass must be positive", ErrInvalid, i)
		}
		if b.Density != "" {
			var d body.Density
			if err := d.UnmarshalText([]byte(b.Density)); err != nil {
				return fmt.Errorf("%w: bodies[%d]: %v", ErrInvalid, i, err)
			}
		}
	}
	for i, g := range c.Groups {
		t, err := body.ParseType(g.Type)
		if err != nil {
			return fmt.Errorf("%w: groups[%d]: %v", ErrInvalid, i, err)
		}
		if t == body.AccretionDiskParticle {
			return fmt.Errorf("%w: groups[%d]: disk particles are created by black holes", ErrInvalid, i)
		}
		if g.Count < 0 || g.MinMass <= 0 || g.MaxMass < g.MinMass || g.OuterRadius < g.InnerRadius {
			return fmt.Errorf("%w: groups[%d]: bad count, mass or radius range", ErrInvalid, i)
		}
	}
	for name := range c.Tidal.Multipliers {
		if _, err := body.ParseType(name); err != nil {
			return fmt.Errorf("%w: tidal.multipliers: %v", ErrInvalid, err)
		}
	}
	for name := range c.Tidal.Floors {
		if _, err := body.ParseType(name); err != nil {
			return fmt.Errorf("%w: tidal.floors: %v", ErrInvalid, err)
		}
	}
	return nil
}

// SimConfig converts c into the engine's parameters. Unset physics fields
// keep the engine defaults.
func (c *Config) SimConfig() (sim.Config, error) {
	if err := c.Validate(); err != nil {
		return sim.Config{}, err
	}
	s := sim.DefaultConfig()
	s.Dt = c.Dt
	s.Duration = c.Duration
	s.Seed = c.Seed
	if c.TrailCap > 0 {
		s.TrailCap = c.TrailCap
	}
	s.BoundsRadius = c.BoundsRadius
	if c.EventLimit > 0 {
		s.EventLimit = c.EventLimit
	}

	g := c.Gravity
	s.G = g.G
	s.MinDist = g.MinDist
	s.Theta = g.Theta
	s.ForceMode, _ = sim.ParseForceMode(g.ForceMode)
	if g.TreeThreshold > 0 {
		s.TreeThreshold = g.TreeThreshold
	}
	if g.Backend != "" {
		s.Backend = g.Backend
	}
	s.WorkerRate = g.WorkerRate

	col := c.Collision
	s.Collision.Restitution = col.Restitution
	s.Collision.RockyRestitution = col.RockyRestitution
	s.Collision.FragmentSpeed = col.FragmentSpeed
	s.Collision.FragmentLoss = col.FragmentLoss
	s.Collision.FragmentCount = col.FragmentCount
	s.Collision.ConeAngle = col.ConeDegrees * math.Pi / 180

	s.Tidal.MassRate = c.Tidal.MassRate
	s.Tidal.DebrisRate = c.Tidal.DebrisRate
	if c.Tidal.BurstCount > 0 {
		s.Tidal.BurstCount = c.Tidal.BurstCount
	}
	overlay(s.Tidal.Multipliers, c.Tidal.Multipliers)
	overlay(s.Tidal.Floors, c.Tidal.Floors)

	s.Absorb.Buffer = c.Absorb.Buffer
	s.Absorb.DiskCaptureFactor = c.Absorb.DiskCaptureFactor
	if c.Absorb.ParticleLifetime > 0 {
		s.Absorb.ParticleLifetime = c.Absorb.ParticleLifetime
	}
	s.Tidal.AbsorptionBuffer = s.Absorb.Buffer

	m := c.Merge
	if m.SolarMass > 0 {
		s.Merge.SolarMass = m.SolarMass
	}
	s.Merge.MaxStellarMass = m.MaxStellarMass
	s.Merge.TOVLimit = m.TOVLimit
	s.Merge.ChandrasekharLimit = m.ChandrasekharLimit
	s.Merge.IntermediateMass = m.IntermediateMass
	s.Merge.GiantToStarMass = m.GiantToStarMass
	s.Merge.PulsarChance = m.PulsarChance
	return s, nil
}

func overlay(dst map[body.Type]float64, src map[string]float64) {
	for name, v := range src {
		if t, err := body.ParseType(name); err == nil {
			dst[t] = v
		}
	}
}

// Spawns expands Bodies and Groups into concrete initial bodies. Groups are
// scattered with a generator seeded from Seed so the result is repeatable.
func (c *Config) Spawns() ([]Spawn, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	out := make([]Spawn, 0, len(c.Bodies))
	for _, b := range c.Bodies {
		t, _ := body.ParseType(b.Type)
		p := sim.SpawnParams{
			Pos:    r2.Vec{X: b.X, Y: b.Y},
			Vel:    r2.Vec{X: b.VX, Y: b.VY},
			Mass:   b.Mass,
			Radius: b.Radius,
			Pulsar: b.Pulsar,
		}
		if b.Density != "" {
			p.Density.UnmarshalText([]byte(b.Density))
		}
		out = append(out, Spawn{Type: t, Params: p})
	}

	rng := rand.New(rand.NewSource(c.Seed))
	for _, g := range c.Groups {
		t, _ := body.ParseType(g.Type)
		center := r2.Vec{X: g.X, Y: g.Y}
		for i := 0; i < g.Count; i++ {
			angle := rng.Float64() * 2 * math.Pi
			radius := g.InnerRadius + rng.Float64()*(g.OuterRadius-g.InnerRadius)
			dir := r2.Vec{X: math.Cos(angle), Y: math.Sin(angle)}

			var vel r2.Vec
			if g.Orbit && radius > 0 {
				speed := math.Sqrt(c.Gravity.G * g.CentralMass / radius)
				vel = r2.Scale(speed, r2.Vec{X: -dir.Y, Y: dir.X})
			}
			if g.Dispersion > 0 {
				vel = r2.Add(vel, r2.Vec{X: rng.NormFloat64() * g.Dispersion, Y: rng.NormFloat64() * g.Dispersion})
			}
			out = append(out, Spawn{Type: t, Params: sim.SpawnParams{
				Pos:  r2.Add(center, r2.Scale(radius, dir)),
				Vel:  vel,
				Mass: g.MinMass + rng.Float64()*(g.MaxMass-g.MinMass),
			}})
		}
	}
	return out, nil
}

// Build creates a World from c and spawns its initial bodies.
func (c *Config) Build(opts ...sim.Option) (*sim.World, error) {
	scfg, err := c.SimConfig()
	if err != nil {
		return nil, err
	}
	spawns, err := c.Spawns()
	if err != nil {
		return nil, err
	}
	w, err := sim.New(scfg, opts...)
	if err != nil {
		return nil, err
	}
	for _, s := range spawns {
		if _, err := w.Spawn(s.Type, s.Params); err != nil {
			w.Close()
			return nil, err
		}
	}
	return w, nil
}
