package constraint

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/talusphys/talus/actor"
)

// Params are the solver tunables, fixed at construction
type Params struct {
	// Beta is the Baumgarte error-reduction parameter, in [0, 1]
	Beta float64
	// Slop is the tolerated penetration below which no bias is applied
	Slop float64
	// Iterations is the number of Gauss-Seidel sweeps per step
	Iterations int

	WarmStart bool
	// WarmStartTolerance is the maximum lever-arm distance for matching a
	// contact to the previous step's cache
	WarmStartTolerance float64

	// MaxCorrections caps how many contacts receive positional pre-correction
	MaxCorrections int

	// RestitutionThreshold is the minimum approach speed for a bounce;
	// slower impacts are treated as inelastic to keep resting contacts calm
	RestitutionThreshold float64
	// StickThreshold is the tangential speed below which static friction
	// applies instead of kinetic friction
	StickThreshold float64
}

func (p Params) Validate() error {
	if p.Beta < 0 || p.Beta > 1 {
		return fmt.Errorf("solver params: beta %g outside [0, 1]", p.Beta)
	}
	if p.Slop < 0 {
		return fmt.Errorf("solver params: negative slop %g", p.Slop)
	}
	if p.Iterations < 1 {
		return fmt.Errorf("solver params: iterations %d < 1", p.Iterations)
	}
	if p.WarmStartTolerance <= 0 {
		return fmt.Errorf("solver params: warm-start tolerance %g must be positive", p.WarmStartTolerance)
	}
	if p.MaxCorrections < 0 {
		return fmt.Errorf("solver params: negative max corrections %d", p.MaxCorrections)
	}
	if p.RestitutionThreshold < 0 {
		return fmt.Errorf("solver params: negative restitution threshold %g", p.RestitutionThreshold)
	}
	if p.StickThreshold < 0 {
		return fmt.Errorf("solver params: negative stick threshold %g", p.StickThreshold)
	}
	return nil
}

// cachedImpulse keys the previous step's accumulated impulses by lever arm.
// There is no persistent contact identity across steps; nearest-lever-arm
// matching within WarmStartTolerance stands in for one.
type cachedImpulse struct {
	r        mgl64.Vec3
	normal   float64
	tangent1 float64
	tangent2 float64
	used     bool
}

// Solver resolves non-penetration and Coulomb friction for all contacts of
// one body against the plane, by warm-started sequential impulses.
type Solver struct {
	params Params
	cache  []cachedImpulse
}

func NewSolver(params Params) (*Solver, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &Solver{params: params}, nil
}

// Solve runs one step of the contact solver: positional pre-correction,
// per-contact precomputation, warm start, then the Gauss-Seidel sweeps.
// Contacts must all share the same normal (one plane). The body's velocity
// state is mutated in place; its accumulated impulses are cached for the
// next step's warm start.
func (s *Solver) Solve(body *actor.RigidBody, contacts []*Contact, dt float64) {
	if body.IsSleeping {
		return
	}
	if len(contacts) == 0 {
		s.cache = s.cache[:0]
		return
	}

	s.correctPosition(body, contacts)

	invMass := 1.0 / body.Material.GetMass()
	invInertia := body.GetInverseInertiaWorld()

	s.prepare(body, contacts, dt, invMass, invInertia)

	if s.params.WarmStart {
		s.applyWarmStart(body, contacts, invMass, invInertia)
	}

	for i := 0; i < s.params.Iterations; i++ {
		s.sweep(body, contacts, invMass, invInertia)
	}

	s.store(contacts)
}

// correctPosition nudges the body out of deep overlap before the velocity
// solve, so large initial penetrations are not resolved purely through
// impulses (which would inject energy). The beyond-slop excess is averaged
// over at most MaxCorrections of the deepest contacts; with a single plane
// normal the average never exceeds the deepest excess.
func (s *Solver) correctPosition(body *actor.RigidBody, contacts []*Contact) {
	if s.params.MaxCorrections == 0 {
		return
	}

	deepest := make([]*Contact, len(contacts))
	copy(deepest, contacts)
	sort.Slice(deepest, func(i, j int) bool {
		return deepest[i].Depth > deepest[j].Depth
	})

	var total float64
	var corrected int
	for _, c := range deepest {
		if corrected >= s.params.MaxCorrections {
			break
		}
		excess := c.Depth - s.params.Slop
		if excess <= 0 {
			break
		}
		total += excess
		corrected++
	}

	if corrected == 0 {
		return
	}

	normal := contacts[0].Normal
	shift := total / float64(corrected)
	body.Transform.Position = body.Transform.Position.Add(normal.Mul(shift))

	for _, c := range contacts {
		c.Position = c.Position.Add(normal.Mul(shift))
		c.Depth = math.Max(0, c.Depth-shift)
	}
}

// prepare computes the tangent basis, effective masses and velocity bias of
// each contact, and matches the warm-start cache. Restitution is folded into
// the bias once, only for contacts with no previous-step match that approach
// faster than the threshold; it is never recomputed inside the iteration.
func (s *Solver) prepare(body *actor.RigidBody, contacts []*Contact, dt float64, invMass float64, invInertia mgl64.Mat3) {
	for i := range s.cache {
		s.cache[i].used = false
	}

	for _, c := range contacts {
		relVel := c.RelativeVelocity(body)
		c.Tangent1, c.Tangent2 = tangentBasis(c.Normal, relVel)

		c.MassNormal = effectiveMass(invMass, invInertia, c.R, c.Normal)
		c.MassTangent1 = effectiveMass(invMass, invInertia, c.R, c.Tangent1)
		c.MassTangent2 = effectiveMass(invMass, invInertia, c.R, c.Tangent2)

		c.VelocityBias = s.params.Beta / dt * math.Max(0, c.Depth-s.params.Slop)

		matched := false
		if s.params.WarmStart {
			if cached := s.match(c); cached != nil {
				c.NormalImpulse = cached.normal
				c.TangentImpulse1 = cached.tangent1
				c.TangentImpulse2 = cached.tangent2
				matched = true
			}
		}

		if !matched {
			// Genuine first impact: target a rebound of e·|vn|
			vn := relVel.Dot(c.Normal)
			if vn < -s.params.RestitutionThreshold {
				c.VelocityBias += -body.Material.Restitution * vn
			}
		}
	}
}

// match finds the nearest unused cache entry within tolerance
func (s *Solver) match(c *Contact) *cachedImpulse {
	best := -1
	bestDist := s.params.WarmStartTolerance

	for i := range s.cache {
		if s.cache[i].used {
			continue
		}
		if d := c.R.Sub(s.cache[i].r).Len(); d < bestDist {
			bestDist = d
			best = i
		}
	}

	if best == -1 {
		return nil
	}
	s.cache[best].used = true
	return &s.cache[best]
}

// applyWarmStart reapplies the previous step's accumulated impulses in full,
// so persistent resting/sliding contacts converge in few sweeps
func (s *Solver) applyWarmStart(body *actor.RigidBody, contacts []*Contact, invMass float64, invInertia mgl64.Mat3) {
	for _, c := range contacts {
		impulse := c.Normal.Mul(c.NormalImpulse).
			Add(c.Tangent1.Mul(c.TangentImpulse1)).
			Add(c.Tangent2.Mul(c.TangentImpulse2))
		applyImpulse(body, c.R, impulse, invMass, invInertia)
	}
}

// sweep runs one Gauss-Seidel pass: for each contact the normal constraint,
// then both friction axes. Only the increment of the accumulated impulse is
// applied, immediately, so later contacts see the updated velocities.
func (s *Solver) sweep(body *actor.RigidBody, contacts []*Contact, invMass float64, invInertia mgl64.Mat3) {
	for _, c := range contacts {
		// A malformed configuration could make the effective mass vanish;
		// skip rather than divide
		if c.MassNormal <= 1e-12 {
			continue
		}

		// ========== NORMAL IMPULSE ==========
		vn := c.RelativeVelocity(body).Dot(c.Normal)
		lambda := -(vn - c.VelocityBias) / c.MassNormal

		// Clamp the accumulated impulse, never attractive
		next := math.Max(c.NormalImpulse+lambda, 0.0)
		applyImpulse(body, c.R, c.Normal.Mul(next-c.NormalImpulse), invMass, invInertia)
		c.NormalImpulse = next

		// ========== FRICTION IMPULSES ==========
		relVel := c.RelativeVelocity(body)
		tangentVel := relVel.Sub(c.Normal.Mul(relVel.Dot(c.Normal)))

		// Coulomb's law: |λ_t| ≤ μ·λ_n, μ switching on the sticking regime
		mu := body.Material.KineticFriction
		if tangentVel.Len() < s.params.StickThreshold {
			mu = body.Material.StaticFriction
		}
		maxFriction := mu * c.NormalImpulse

		if c.MassTangent1 > 1e-12 {
			vt := c.RelativeVelocity(body).Dot(c.Tangent1)
			lambda := -vt / c.MassTangent1

			next := mgl64.Clamp(c.TangentImpulse1+lambda, -maxFriction, maxFriction)
			applyImpulse(body, c.R, c.Tangent1.Mul(next-c.TangentImpulse1), invMass, invInertia)
			c.TangentImpulse1 = next
		}

		if c.MassTangent2 > 1e-12 {
			vt := c.RelativeVelocity(body).Dot(c.Tangent2)
			lambda := -vt / c.MassTangent2

			next := mgl64.Clamp(c.TangentImpulse2+lambda, -maxFriction, maxFriction)
			applyImpulse(body, c.R, c.Tangent2.Mul(next-c.TangentImpulse2), invMass, invInertia)
			c.TangentImpulse2 = next
		}
	}
}

// store caches the accumulated impulses for the next step's warm start
func (s *Solver) store(contacts []*Contact) {
	s.cache = s.cache[:0]
	for _, c := range contacts {
		s.cache = append(s.cache, cachedImpulse{
			r:        c.R,
			normal:   c.NormalImpulse,
			tangent1: c.TangentImpulse1,
			tangent2: c.TangentImpulse2,
		})
	}
}

func applyImpulse(body *actor.RigidBody, r, impulse mgl64.Vec3, invMass float64, invInertia mgl64.Mat3) {
	body.Velocity = body.Velocity.Add(impulse.Mul(invMass))
	body.AngularVelocity = body.AngularVelocity.Add(invInertia.Mul3x1(r.Cross(impulse)))
}
