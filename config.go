package talus

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/talusphys/talus/actor"
	"github.com/talusphys/talus/constraint"
)

// Config is the full tunable surface of a simulation, fixed at construction.
// Material coefficients (restitution, friction, damping) live on the body.
type Config struct {
	// Timestep is the fixed dt of one Step, in seconds
	Timestep float64    `json:"timestep"`
	Gravity  mgl64.Vec3 `json:"gravity"`

	// Beta is the Baumgarte error-reduction parameter, in [0, 1]
	Beta float64 `json:"beta"`
	// Slop is the tolerated penetration, in length units
	Slop float64 `json:"slop"`
	// Iterations is the Gauss-Seidel sweep count per step
	Iterations int `json:"iterations"`

	WarmStart          bool    `json:"warm_start"`
	WarmStartTolerance float64 `json:"warm_start_tolerance"`

	// MaxCorrections caps how many contacts receive positional pre-correction
	MaxCorrections int `json:"max_corrections"`

	RestitutionThreshold float64 `json:"restitution_threshold"`
	StickThreshold       float64 `json:"stick_threshold"`

	SleepTime              float64 `json:"sleep_time"`
	SleepVelocityThreshold float64 `json:"sleep_velocity_threshold"`

	// FallbackPosition replaces the body position when integration produces
	// a non-finite state
	FallbackPosition mgl64.Vec3 `json:"fallback_position"`
}

func DefaultConfig() Config {
	return Config{
		Timestep:               1.0 / 60.0,
		Gravity:                mgl64.Vec3{0, -9.81, 0},
		Beta:                   0.2,
		Slop:                   0.005,
		Iterations:             10,
		WarmStart:              true,
		WarmStartTolerance:     0.05,
		MaxCorrections:         4,
		RestitutionThreshold:   1.0,
		StickThreshold:         0.05,
		SleepTime:              0.5,
		SleepVelocityThreshold: 0.05,
		FallbackPosition:       mgl64.Vec3{0, 1, 0},
	}
}

func (c Config) Validate() error {
	if c.Timestep <= 0 {
		return fmt.Errorf("config: timestep %g must be positive", c.Timestep)
	}
	if c.SleepTime < 0 || c.SleepVelocityThreshold < 0 {
		return fmt.Errorf("config: negative sleep thresholds (%g, %g)", c.SleepTime, c.SleepVelocityThreshold)
	}
	return c.solverParams().Validate()
}

func (c Config) solverParams() constraint.Params {
	return constraint.Params{
		Beta:                 c.Beta,
		Slop:                 c.Slop,
		Iterations:           c.Iterations,
		WarmStart:            c.WarmStart,
		WarmStartTolerance:   c.WarmStartTolerance,
		MaxCorrections:       c.MaxCorrections,
		RestitutionThreshold: c.RestitutionThreshold,
		StickThreshold:       c.StickThreshold,
	}
}

// --- Scene file ---

// SceneConfig describes a whole simulation in one JSON file: the solver
// configuration, one cube body and one static plane. Omitted config fields
// keep their defaults.
type SceneConfig struct {
	Name   string      `json:"name"`
	Config Config      `json:"config"`
	Body   BodyConfig  `json:"body"`
	Plane  PlaneConfig `json:"plane"`
}

type BodyConfig struct {
	Position        [3]float64 `json:"position"`
	Velocity        [3]float64 `json:"velocity"`
	AngularVelocity [3]float64 `json:"angular_velocity"`
	// Orientation as (w, x, y, z); identity when omitted
	Orientation [4]float64 `json:"orientation"`

	Edge    float64 `json:"edge"`
	Density float64 `json:"density"`

	Restitution     float64 `json:"restitution"`
	StaticFriction  float64 `json:"static_friction"`
	KineticFriction float64 `json:"kinetic_friction"`
	LinearDamping   float64 `json:"linear_damping"`
	AngularDamping  float64 `json:"angular_damping"`
}

type PlaneConfig struct {
	Normal [3]float64 `json:"normal"`
	Point  [3]float64 `json:"point"`
}

// LoadScene reads a JSON scene file and builds a ready-to-step simulation
func LoadScene(path string) (*Simulation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load scene: %w", err)
	}

	scene := SceneConfig{Config: DefaultConfig()}
	if err := json.Unmarshal(data, &scene); err != nil {
		return nil, fmt.Errorf("load scene %q: %w", path, err)
	}

	return scene.Build()
}

// Build turns the parsed scene into a simulation, reporting any
// precondition violation (bad plane normal, non-positive edge/density, ...)
func (scene SceneConfig) Build() (*Simulation, error) {
	rotation := mgl64.QuatIdent()
	if o := scene.Body.Orientation; o != [4]float64{} {
		rotation = mgl64.Quat{W: o[0], V: mgl64.Vec3{o[1], o[2], o[3]}}
	}

	body, err := actor.NewRigidBody(
		actor.NewTransform(vec3(scene.Body.Position), rotation),
		actor.Cube{Edge: scene.Body.Edge},
		scene.Body.Density,
	)
	if err != nil {
		return nil, fmt.Errorf("scene %q: %w", scene.Name, err)
	}

	body.Velocity = vec3(scene.Body.Velocity)
	body.AngularVelocity = vec3(scene.Body.AngularVelocity)
	body.Material.Restitution = scene.Body.Restitution
	body.Material.StaticFriction = scene.Body.StaticFriction
	body.Material.KineticFriction = scene.Body.KineticFriction
	body.Material.LinearDamping = scene.Body.LinearDamping
	body.Material.AngularDamping = scene.Body.AngularDamping

	plane, err := actor.NewPlane(vec3(scene.Plane.Normal), vec3(scene.Plane.Point))
	if err != nil {
		return nil, fmt.Errorf("scene %q: %w", scene.Name, err)
	}

	return NewSimulation(body, plane, scene.Config)
}

func vec3(a [3]float64) mgl64.Vec3 {
	return mgl64.Vec3{a[0], a[1], a[2]}
}
