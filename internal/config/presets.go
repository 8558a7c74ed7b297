package config

import (
	"slices"
)

// Presets are named starting scenarios. Each is a full Config built on the
// defaults, so physics parameters can still be overridden per preset.
var Presets = map[string]func() *Config{
	"binary-bh": func() *Config {
		c := DefaultConfig()
		c.Name = "binary-bh"
		c.Duration = 60
		c.Bodies = []BodySpec{
			{Type: "black_hole", X: -60, VY: -0.9, Mass: 100},
			{Type: "black_hole", X: 60, VY: 0.9, Mass: 100},
		}
		c.Groups = []Group{
			{Type: "asteroid", Count: 60, InnerRadius: 250, OuterRadius: 320, MinMass: 0.1, MaxMass: 0.5, Orbit: true, CentralMass: 200},
		}
		return c
	},
	"tde": func() *Config {
		c := DefaultConfig()
		c.Name = "tde"
		c.Duration = 40
		c.Bodies = []BodySpec{
			{Type: "black_hole", Mass: 500},
			{Type: "star", X: -400, Y: 60, VX: 6, Mass: 40},
		}
		return c
	},
	"kilonova": func() *Config {
		c := DefaultConfig()
		c.Name = "kilonova"
		c.Duration = 30
		c.Bodies = []BodySpec{
			{Type: "neutron_star", X: -30, VY: -1.8, Mass: 140, Pulsar: true},
			{Type: "neutron_star", X: 30, VY: 1.6, Mass: 150},
		}
		return c
	},
	"belt": func() *Config {
		c := DefaultConfig()
		c.Name = "belt"
		c.Duration = 50
		c.Bodies = []BodySpec{
			{Type: "star", Mass: 1000},
			{Type: "planet", X: 300, VY: 1.826, Mass: 5, Density: "metallic"},
		}
		c.Groups = []Group{
			{Type: "asteroid", Count: 150, InnerRadius: 150, OuterRadius: 220, MinMass: 0.05, MaxMass: 0.4, Orbit: true, CentralMass: 1000},
			{Type: "comet", Count: 10, InnerRadius: 500, OuterRadius: 700, MinMass: 0.1, MaxMass: 0.3, Dispersion: 0.5},
		}
		return c
	},
	"cluster": func() *Config {
		c := DefaultConfig()
		c.Name = "cluster"
		c.Duration = 40
		c.Gravity.ForceMode = "auto"
		c.Groups = []Group{
			{Type: "star", Count: 250, OuterRadius: 1500, MinMass: 20, MaxMass: 80, Dispersion: 0.3},
			{Type: "white_dwarf", Count: 20, OuterRadius: 1500, MinMass: 60, MaxMass: 130, Dispersion: 0.3},
			{Type: "neutron_star", Count: 10, OuterRadius: 1500, MinMass: 140, MaxMass: 200, Dispersion: 0.3},
		}
		c.Bodies = []BodySpec{{Type: "black_hole", Mass: 800}}
		return c
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

// ListPresets returns preset names in sorted order.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
