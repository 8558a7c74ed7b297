// Package merge is the type-transition state machine: it pairs overlapping
// stellar and compact bodies, classifies the merged product by mass
// thresholds, and applies the result to the registry.
package merge

import "github.com/san-kum/gravsim/internal/body"

// Params holds the collapse thresholds, in solar masses, and the event
// scaling used for emitted records.
type Params struct {
	SolarMass          float64
	MaxStellarMass     float64
	TOVLimit           float64
	ChandrasekharLimit float64
	IntermediateMass   float64
	GiantToStarMass    float64

	KilonovaBoost    float64
	MergeDuration    float64
	KilonovaDuration float64
	PulsarChance     float64
}

func DefaultParams() Params {
	return Params{
		SolarMass:          100,
		MaxStellarMass:     20,
		TOVLimit:           3.0,
		ChandrasekharLimit: 1.4,
		IntermediateMass:   8,
		GiantToStarMass:    0.08,
		KilonovaBoost:      3,
		MergeDuration:      1,
		KilonovaDuration:   3,
		PulsarChance:       0.3,
	}
}

type pairSet struct {
	star, ns, wd, bh, giant int
}

func members(a, b body.Type) pairSet {
	var s pairSet
	for _, t := range []body.Type{a, b} {
		switch t {
		case body.Star:
			s.star++
		case body.NeutronStar:
			s.ns++
		case body.WhiteDwarf:
			s.wd++
		case body.BlackHole:
			s.bh++
		case body.GasGiant:
			s.giant++
		}
	}
	return s
}

// Eligible reports whether overlapping bodies of types a and b merge
// rather than bounce.
func Eligible(a, b body.Type) bool {
	s := members(a, b)
	switch {
	case s.bh > 0:
		// a black hole takes any star-like partner
		return s.bh+s.star+s.ns+s.wd == 2
	case s.giant > 0:
		return s.giant+s.star == 2
	default:
		return s.star+s.ns+s.wd == 2
	}
}

// Kilonova reports whether a merger of a and b is a kilonova.
func Kilonova(a, b body.Type) bool {
	s := members(a, b)
	return s.ns == 2 || (s.ns == 1 && s.wd == 1)
}

// Classify returns the product type for a merger of a and b with the given
// combined mass. inPlace is true when an existing black hole absorbs its
// partner instead of a new body being spawned. Rules are tried in order:
// black hole present, collapse limit, Chandrasekhar, intermediate star
// mass, then the heavier surviving category.
func (p Params) Classify(a, b body.Type, mass float64) (result body.Type, inPlace bool) {
	s := members(a, b)
	m := mass / p.SolarMass

	if s.bh > 0 {
		return body.BlackHole, true
	}

	limit := p.MaxStellarMass
	if s.ns > 0 {
		limit = p.TOVLimit
	}
	if m > limit {
		return body.BlackHole, false
	}

	if s.ns+s.wd > 0 && m > p.ChandrasekharLimit {
		return body.NeutronStar, false
	}
	if s.star > 0 && m > p.IntermediateMass {
		return body.NeutronStar, false
	}

	switch {
	case s.ns > 0:
		return body.NeutronStar, false
	case s.star > 0:
		return body.Star, false
	case s.wd > 0:
		return body.WhiteDwarf, false
	case m > p.GiantToStarMass:
		return body.Star, false
	default:
		return body.GasGiant, false
	}
}
