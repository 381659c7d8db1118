package constraint

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/talusphys/talus/actor"
)

// Contact is one penetrating or touching cube corner against the plane.
// Contacts are rebuilt every step; the accumulated impulses survive between
// steps only through the solver's warm-start cache.
type Contact struct {
	Position mgl64.Vec3 // world-space contact point
	R        mgl64.Vec3 // lever arm from the center of mass to the contact
	Normal   mgl64.Vec3 // plane normal, unit length
	Depth    float64    // penetration depth, > 0 strictly inside

	Tangent1 mgl64.Vec3
	Tangent2 mgl64.Vec3

	// Effective masses: K(d) = 1/m + (I⁻¹(r×d))·(r×d) for d = N, t1, t2
	MassNormal   float64
	MassTangent1 float64
	MassTangent2 float64

	// Baumgarte push-out plus the one-shot restitution target, both ≥ 0
	VelocityBias float64

	// Accumulated impulse magnitudes
	NormalImpulse   float64
	TangentImpulse1 float64
	TangentImpulse2 float64
}

// RelativeVelocity of the contact point on the body
func (c *Contact) RelativeVelocity(body *actor.RigidBody) mgl64.Vec3 {
	return body.Velocity.Add(body.AngularVelocity.Cross(c.R))
}

// effectiveMass is the scalar resistance to an impulse along direction d,
// accounting for the angular coupling through the lever arm r
func effectiveMass(invMass float64, invInertiaWorld mgl64.Mat3, r, d mgl64.Vec3) float64 {
	rCrossD := r.Cross(d)
	return invMass + invInertiaWorld.Mul3x1(rCrossD).Dot(rCrossD)
}

// tangentBasis builds an orthonormal basis (t1, t2) spanning the contact
// plane. If the relative velocity has a usable tangential component, t1
// points along the slip direction; otherwise an arbitrary axis is
// orthogonalized against the normal (never divide by a zero-length tangent).
func tangentBasis(normal, relativeVelocity mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	tangentVel := relativeVelocity.Sub(normal.Mul(relativeVelocity.Dot(normal)))
	if speed := tangentVel.Len(); speed > 1e-8 {
		t1 := tangentVel.Mul(1.0 / speed)
		return t1, normal.Cross(t1)
	}

	var t1 mgl64.Vec3
	if math.Abs(normal.X()) > 0.9 {
		t1 = mgl64.Vec3{0, 1, 0}
	} else {
		t1 = mgl64.Vec3{1, 0, 0}
	}

	t1 = t1.Sub(normal.Mul(t1.Dot(normal))).Normalize()
	return t1, normal.Cross(t1)
}
