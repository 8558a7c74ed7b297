package absorb

import (
	"github.com/san-kum/gravsim/internal/body"
)

// Capture converts debris orbiting close to a hole into disk particles.
// Each captured debris body is killed and replaced by an unregistered
// particle carrying its mass, position and velocity.
func (a *Absorber) Capture(holes, debris []*body.Body) []*body.Body {
	var particles []*body.Body
	for _, d := range debris {
		if !d.Alive || d.Type != body.Debris {
			continue
		}
		for _, h := range holes {
			if !h.Alive {
				continue
			}
			dist := body.Distance(h, d)
			if dist < a.Horizon(h) || dist >= h.Radius*a.p.DiskCaptureFactor {
				continue
			}

			p := body.New(0, body.AccretionDiskParticle, d.Pos, d.Vel, d.Mass)
			p.OwnerID = h.ID
			p.Lifetime = a.p.ParticleLifetime
			particles = append(particles, p)
			d.Kill()
			break
		}
	}
	return particles
}

// Feed ages the disk of hole by dt. Each particle passes a share of its
// mass to the hole every tick and hands over the remainder when it reaches
// its lifetime or crosses the horizon. It returns the mass transferred and
// the number of retired particles.
func (a *Absorber) Feed(hole *body.Body, disk []*body.Body, dt float64) (mass float64, retired int) {
	if !hole.Alive {
		return 0, 0
	}
	for _, p := range disk {
		if !p.Alive || p.OwnerID != hole.ID {
			continue
		}
		p.Age += dt

		if p.Age >= p.Lifetime || body.Distance(hole, p) < hole.Radius {
			mass += p.Mass
			p.Kill()
			retired++
			continue
		}

		share := p.Mass * dt / (p.Lifetime - p.Age + dt)
		p.SetMass(p.Mass - share)
		mass += share
	}
	if mass > 0 {
		hole.SetMass(hole.Mass + mass)
	}
	return mass, retired
}
