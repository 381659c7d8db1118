package actor

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrNonPositiveDensity = errors.New("density must be strictly positive")
	ErrNonPositiveEdge    = errors.New("cube edge must be strictly positive")
)

type Material struct {
	Density     float64
	mass        float64
	Restitution float64 // 0= no rebound, 1= perfect restitution

	StaticFriction  float64
	KineticFriction float64
	LinearDamping   float64 // 0.0 - 1.0, applied once per step
	AngularDamping  float64 // 0.0 - 1.0, applied once per step
}

func (material Material) GetMass() float64 {
	return material.mass
}

// RigidBody represents a rigid body in the physics simulation
type RigidBody struct {
	// Spatial properties
	Transform Transform

	// Linear motion
	Velocity mgl64.Vec3 // Linear velocity (m/s)

	// Angular motion, world frame (rad/s)
	AngularVelocity mgl64.Vec3

	// Body-frame principal inertia and its reciprocal
	InertiaLocal        mgl64.Vec3
	InverseInertiaLocal mgl64.Vec3

	accumulatedForce  mgl64.Vec3
	accumulatedTorque mgl64.Vec3

	IsSleeping bool
	SleepTimer float64

	// Physical properties
	Material Material

	// Collision shape
	Shape Cube
}

// NewRigidBody creates a new rigid body with the given properties.
// Mass and inertia are computed from the shape and density; non-positive
// density or edge length is a precondition violation and returns an error.
func NewRigidBody(transform Transform, shape Cube, density float64) (*RigidBody, error) {
	if shape.Edge <= 0 {
		return nil, fmt.Errorf("new rigid body: %w (edge=%g)", ErrNonPositiveEdge, shape.Edge)
	}
	if density <= 0 {
		return nil, fmt.Errorf("new rigid body: %w (density=%g)", ErrNonPositiveDensity, density)
	}

	rb := &RigidBody{
		Transform: NewTransform(transform.Position, transform.Rotation),
		Shape:     shape,
		Material: Material{
			Density: density,
			mass:    shape.ComputeMass(density),
		},
	}

	rb.InertiaLocal = shape.ComputeInertia(rb.Material.mass)
	rb.InverseInertiaLocal = mgl64.Vec3{
		1.0 / rb.InertiaLocal.X(),
		1.0 / rb.InertiaLocal.Y(),
		1.0 / rb.InertiaLocal.Z(),
	}

	return rb, nil
}

func (rb *RigidBody) TrySleep(dt float64, timeThreshold float64, velocityThreshold float64) {
	if rb.Velocity.Len() < velocityThreshold && rb.AngularVelocity.Len() < velocityThreshold {
		rb.SleepTimer += dt
		if rb.SleepTimer >= timeThreshold {
			rb.Sleep()
		}
	} else {
		rb.Awake()
	}
}

func (rb *RigidBody) Sleep() {
	rb.IsSleeping = true
	rb.SleepTimer = 0.0

	rb.ClearForces()
	rb.Velocity = mgl64.Vec3{}
	rb.AngularVelocity = mgl64.Vec3{}
}

func (rb *RigidBody) Awake() {
	rb.IsSleeping = false
	rb.SleepTimer = 0.0
}

// Integrate advances the body by one fixed timestep: semi-implicit Euler
// for the linear state, quaternion derivative for the orientation.
func (rb *RigidBody) Integrate(dt float64, gravity mgl64.Vec3) {
	if rb.IsSleeping {
		return
	}

	invMass := 1.0 / rb.Material.GetMass()

	// ========== LINEAR INTEGRATION ==========
	rb.Velocity = rb.Velocity.Add(gravity.Mul(dt))
	rb.Velocity = rb.Velocity.Add(rb.accumulatedForce.Mul(invMass * dt))

	// ========== LINEAR DAMPING ==========
	rb.Velocity = rb.Velocity.Mul(1.0 - rb.Material.LinearDamping)
	rb.Transform.Position = rb.Transform.Position.Add(rb.Velocity.Mul(dt))

	// ========== ANGULAR INTEGRATION ==========
	iInv := rb.GetInverseInertiaWorld()
	rb.AngularVelocity = rb.AngularVelocity.Add(iInv.Mul3x1(rb.accumulatedTorque).Mul(dt))

	// ========== ANGULAR DAMPING ==========
	rb.AngularVelocity = rb.AngularVelocity.Mul(1.0 - rb.Material.AngularDamping)

	// ========== UPDATE QUATERNION ==========
	omegaQuat := mgl64.Quat{V: rb.AngularVelocity, W: 0}
	qDot := omegaQuat.Mul(rb.Transform.Rotation).Scale(0.5)
	rb.Transform.Rotation = rb.Transform.Rotation.Add(qDot.Scale(dt)).Normalize()
	rb.Transform.InverseRotation = rb.Transform.Rotation.Inverse()

	rb.ClearForces()
}

// ResetIfNonFinite substitutes a safe fallback state when integration has
// produced NaN or Inf anywhere in the kinematic state. It reports whether a
// reset happened. This keeps the step loop alive; it is not a physical event.
func (rb *RigidBody) ResetIfNonFinite(fallback mgl64.Vec3) bool {
	if finiteVec(rb.Transform.Position) && finiteVec(rb.Velocity) &&
		finiteVec(rb.AngularVelocity) && finiteQuat(rb.Transform.Rotation) {
		return false
	}

	rb.Transform = NewTransform(fallback, mgl64.QuatIdent())
	rb.Velocity = mgl64.Vec3{}
	rb.AngularVelocity = mgl64.Vec3{}
	rb.ClearForces()

	return true
}

// AddForce in N (kg⋅m/s²), consumed by the next Integrate
func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	rb.Awake()
	rb.accumulatedForce = rb.accumulatedForce.Add(force)
}

// AddTorque in N⋅m, consumed by the next Integrate
func (rb *RigidBody) AddTorque(torque mgl64.Vec3) {
	rb.Awake()
	rb.accumulatedTorque = rb.accumulatedTorque.Add(torque)
}

func (rb *RigidBody) ClearForces() {
	rb.accumulatedForce = mgl64.Vec3{}
	rb.accumulatedTorque = mgl64.Vec3{}
}

// Setters for the external host (UI, scene setup). They wake the body so a
// sleeping cube reacts to the change on the next step.
func (rb *RigidBody) SetPosition(position mgl64.Vec3) {
	rb.Awake()
	rb.Transform.Position = position
}

func (rb *RigidBody) SetVelocity(velocity mgl64.Vec3) {
	rb.Awake()
	rb.Velocity = velocity
}

func (rb *RigidBody) SetAngularVelocity(angularVelocity mgl64.Vec3) {
	rb.Awake()
	rb.AngularVelocity = angularVelocity
}

// Inertia in world space
func (rb *RigidBody) GetInertiaWorld() mgl64.Mat3 {
	// I_world = R * I_local * R^T
	r := rb.Transform.Rotation.Mat4().Mat3()
	return r.Mul3(mgl64.Diag3(rb.InertiaLocal)).Mul3(r.Transpose())
}

// Inverse of the inertia in world space
func (rb *RigidBody) GetInverseInertiaWorld() mgl64.Mat3 {
	// I_world^(-1) = R * I_local^(-1) * R^T
	r := rb.Transform.Rotation.Mat4().Mat3()
	return r.Mul3(mgl64.Diag3(rb.InverseInertiaLocal)).Mul3(r.Transpose())
}

func finiteVec(v mgl64.Vec3) bool {
	for i := 0; i < 3; i++ {
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			return false
		}
	}
	return true
}

func finiteQuat(q mgl64.Quat) bool {
	return finiteVec(q.V) && !math.IsNaN(q.W) && !math.IsInf(q.W, 0)
}
