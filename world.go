package talus

import (
	"errors"
	"log/slog"

	"github.com/talusphys/talus/actor"
	"github.com/talusphys/talus/constraint"
)

var ErrNilBody = errors.New("simulation requires a body")

// Simulation owns one dynamic cube, one static plane and the contact solver.
// It is single-threaded by contract: one Step fully detects, solves and
// integrates before returning, and nothing else may mutate the body state
// while a step runs.
type Simulation struct {
	Body  *actor.RigidBody
	Plane actor.Plane

	Config Config
	Logger *slog.Logger

	solver *constraint.Solver
}

func NewSimulation(body *actor.RigidBody, plane actor.Plane, config Config) (*Simulation, error) {
	if body == nil {
		return nil, ErrNilBody
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	solver, err := constraint.NewSolver(config.solverParams())
	if err != nil {
		return nil, err
	}

	return &Simulation{
		Body:   body,
		Plane:  plane,
		Config: config,
		Logger: slog.Default(),
		solver: solver,
	}, nil
}

// Step advances the simulation by one fixed timestep:
// contact detection, impulse solve, sleep check, integration.
// Pausing is simply not calling Step.
func (s *Simulation) Step() {
	dt := s.Config.Timestep

	contacts := DetectContacts(s.Body, s.Plane)
	s.solver.Solve(s.Body, contacts, dt)

	// The sleep check reads the post-solve velocity; after integration the
	// per-step gravity kick would keep a resting body awake forever
	s.Body.TrySleep(dt, s.Config.SleepTime, s.Config.SleepVelocityThreshold)

	s.Body.Integrate(dt, s.Config.Gravity)

	if s.Body.ResetIfNonFinite(s.Config.FallbackPosition) {
		s.Logger.Warn("non-finite body state after integration, teleporting to fallback",
			"fallback", s.Config.FallbackPosition)
	}
}

// SetPlane swaps the static plane (e.g. a host UI tilting the incline) and
// wakes the body so the change takes effect even on a sleeping cube
func (s *Simulation) SetPlane(plane actor.Plane) {
	s.Plane = plane
	s.Body.Awake()
}
