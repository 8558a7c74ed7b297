package body

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownType is returned when a type name does not match any body category.
var ErrUnknownType = errors.New("body: unknown type")

type Type uint8

const (
	Planet Type = iota
	GasGiant
	Asteroid
	Comet
	Debris
	Star
	NeutronStar
	WhiteDwarf
	BlackHole
	AccretionDiskParticle
	numTypes
)

// Traits is the per-type dispatch entry: radius power law and category flags.
type Traits struct {
	Name       string
	RadiusBase float64
	RadiusExp  float64
	Rocky      bool
	Giant      bool
	Stellar    bool
	Compact    bool
}

var traits = [numTypes]Traits{
	Planet:                {Name: "planet", RadiusBase: 2.0, RadiusExp: 1.0 / 3.0, Rocky: true},
	GasGiant:              {Name: "gas_giant", RadiusBase: 3.0, RadiusExp: 1.0 / 3.0, Giant: true},
	Asteroid:              {Name: "asteroid", RadiusBase: 1.0, RadiusExp: 1.0 / 3.0, Rocky: true},
	Comet:                 {Name: "comet", RadiusBase: 0.8, RadiusExp: 1.0 / 3.0, Rocky: true},
	Debris:                {Name: "debris", RadiusBase: 0.5, RadiusExp: 1.0 / 3.0, Rocky: true},
	Star:                  {Name: "star", RadiusBase: 4.0, RadiusExp: 0.4, Stellar: true},
	NeutronStar:           {Name: "neutron_star", RadiusBase: 1.5, RadiusExp: 0.1, Stellar: true, Compact: true},
	WhiteDwarf:            {Name: "white_dwarf", RadiusBase: 2.5, RadiusExp: 0.1, Stellar: true, Compact: true},
	BlackHole:             {Name: "black_hole", RadiusBase: 0.1, RadiusExp: 1.0, Compact: true},
	AccretionDiskParticle: {Name: "disk_particle", RadiusBase: 0.3, RadiusExp: 0},
}

// Types lists every body category in declaration order.
func Types() []Type {
	out := make([]Type, 0, numTypes)
	for t := Type(0); t < numTypes; t++ {
		out = append(out, t)
	}
	return out
}

func (t Type) Valid() bool { return t < numTypes }

func (t Type) Traits() Traits {
	if !t.Valid() {
		return Traits{Name: "unknown"}
	}
	return traits[t]
}

func (t Type) String() string { return t.Traits().Name }

func (t Type) IsRocky() bool   { return t.Traits().Rocky }
func (t Type) IsCompact() bool { return t.Traits().Compact }

// IsStellar reports stars and stellar remnants other than black holes.
func (t Type) IsStellar() bool { return t.Traits().Stellar }

// Radius evaluates the type's power law base * mass^exp.
func (t Type) Radius(mass float64) float64 {
	tr := t.Traits()
	if tr.RadiusExp == 0 {
		return tr.RadiusBase
	}
	if mass <= 0 {
		return 0
	}
	return tr.RadiusBase * math.Pow(mass, tr.RadiusExp)
}

func ParseType(s string) (Type, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.ReplaceAll(name, "-", "_")
	for t := Type(0); t < numTypes; t++ {
		if traits[t].Name == name {
			return t, nil
		}
	}
	switch name {
	case "giant", "gasgiant":
		return GasGiant, nil
	case "ns", "neutronstar":
		return NeutronStar, nil
	case "wd", "whitedwarf":
		return WhiteDwarf, nil
	case "bh", "blackhole":
		return BlackHole, nil
	case "particle", "disk":
		return AccretionDiskParticle, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Density is the composition class carried by planets.
type Density uint8

const (
	Rocky Density = iota
	Icy
	Metallic
)

var densityNames = [...]string{"rocky", "icy", "metallic"}

func (d Density) String() string {
	if int(d) < len(densityNames) {
		return densityNames[d]
	}
	return "rocky"
}

func (d Density) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Density) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	if s == "" {
		*d = Rocky
		return nil
	}
	for i, name := range densityNames {
		if name == s {
			*d = Density(i)
			return nil
		}
	}
	return fmt.Errorf("body: unknown density %q", text)
}
