package constraint

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/talusphys/talus/actor"
	"gonum.org/v1/gonum/floats/scalar"
)

func testParams() Params {
	return Params{
		Beta:                 0.2,
		Slop:                 0.005,
		Iterations:           10,
		WarmStart:            true,
		WarmStartTolerance:   0.05,
		MaxCorrections:       4,
		RestitutionThreshold: 0.2,
		StickThreshold:       0.05,
	}
}

// Helper to create a unit cube body (mass 1, I = 1/6) with a velocity
func newSolverBody(t *testing.T, velocity mgl64.Vec3) *actor.RigidBody {
	t.Helper()

	rb, err := actor.NewRigidBody(
		actor.NewTransform(mgl64.Vec3{0, 0.5, 0}, mgl64.QuatIdent()),
		actor.Cube{Edge: 1.0},
		1.0,
	)
	if err != nil {
		t.Fatalf("NewRigidBody: %v", err)
	}

	rb.Velocity = velocity
	return rb
}

// A contact straight under the center of mass: r×N = 0, so the effective
// mass along the normal is exactly 1/invMass
func centralContact(depth float64) *Contact {
	return &Contact{
		Position: mgl64.Vec3{0, 0, 0},
		R:        mgl64.Vec3{0, -0.5, 0},
		Normal:   mgl64.Vec3{0, 1, 0},
		Depth:    depth,
	}
}

func bottomFaceContacts(depth float64) []*Contact {
	var contacts []*Contact
	for _, x := range []float64{-0.5, 0.5} {
		for _, z := range []float64{-0.5, 0.5} {
			contacts = append(contacts, &Contact{
				Position: mgl64.Vec3{x, 0, z},
				R:        mgl64.Vec3{x, -0.5, z},
				Normal:   mgl64.Vec3{0, 1, 0},
				Depth:    depth,
			})
		}
	}
	return contacts
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Params)
		wantErr bool
	}{
		{"defaults", func(p *Params) {}, false},
		{"beta above one", func(p *Params) { p.Beta = 1.5 }, true},
		{"negative beta", func(p *Params) { p.Beta = -0.1 }, true},
		{"negative slop", func(p *Params) { p.Slop = -1 }, true},
		{"zero iterations", func(p *Params) { p.Iterations = 0 }, true},
		{"zero warm-start tolerance", func(p *Params) { p.WarmStartTolerance = 0 }, true},
		{"negative corrections", func(p *Params) { p.MaxCorrections = -1 }, true},
		{"negative restitution threshold", func(p *Params) { p.RestitutionThreshold = -1 }, true},
		{"negative stick threshold", func(p *Params) { p.StickThreshold = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := testParams()
			tt.mutate(&params)

			_, err := NewSolver(params)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSolver error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSolve_RestitutionOnFirstImpact(t *testing.T) {
	params := testParams()
	params.Beta = 0 // isolate the restitution path
	solver, err := NewSolver(params)
	if err != nil {
		t.Fatal(err)
	}

	body := newSolverBody(t, mgl64.Vec3{0, -1, 0})
	body.Material.Restitution = 0.5

	solver.Solve(body, []*Contact{centralContact(0)}, 1.0/60.0)

	// Head-on central hit: λ = (1+e)·|vn| = 1.5, rebound at e·|vn|
	if !scalar.EqualWithinAbs(body.Velocity.Y(), 0.5, 1e-6) {
		t.Errorf("rebound velocity = %v, want 0.5", body.Velocity.Y())
	}
	if body.AngularVelocity.Len() > 1e-9 {
		t.Errorf("central impact spun the body: %v", body.AngularVelocity)
	}
}

func TestSolve_SlowImpactIsInelastic(t *testing.T) {
	params := testParams()
	params.Beta = 0
	solver, err := NewSolver(params)
	if err != nil {
		t.Fatal(err)
	}

	// Approach below the restitution threshold: no bounce, vn driven to zero
	body := newSolverBody(t, mgl64.Vec3{0, -0.1, 0})
	body.Material.Restitution = 0.9

	solver.Solve(body, []*Contact{centralContact(0)}, 1.0/60.0)

	if math.Abs(body.Velocity.Y()) > 1e-6 {
		t.Errorf("velocity.y = %v, want 0 for a slow impact", body.Velocity.Y())
	}
}

func TestSolve_ImpulseInvariants(t *testing.T) {
	solver, err := NewSolver(testParams())
	if err != nil {
		t.Fatal(err)
	}

	body := newSolverBody(t, mgl64.Vec3{2, -1, 0})
	body.Material.StaticFriction = 0.5
	body.Material.KineticFriction = 0.5

	contacts := bottomFaceContacts(0.002)
	solver.Solve(body, contacts, 1.0/60.0)

	for i, c := range contacts {
		if c.NormalImpulse < 0 {
			t.Errorf("contact %d: negative normal impulse %v", i, c.NormalImpulse)
		}

		cone := 0.5*c.NormalImpulse + 1e-9
		if math.Abs(c.TangentImpulse1) > cone || math.Abs(c.TangentImpulse2) > cone {
			t.Errorf("contact %d: friction (%v, %v) outside cone %v",
				i, c.TangentImpulse1, c.TangentImpulse2, cone)
		}
	}

	if body.Velocity.X() >= 2 {
		t.Errorf("friction did not decelerate the slide: vx = %v", body.Velocity.X())
	}
	if body.Velocity.Y() < -1e-3 {
		t.Errorf("normal constraint left approach velocity: vy = %v", body.Velocity.Y())
	}
}

func TestSolve_RestingContactsConverge(t *testing.T) {
	solver, err := NewSolver(testParams())
	if err != nil {
		t.Fatal(err)
	}

	// One step of gravity on a resting cube
	gdt := 9.81 / 60.0
	body := newSolverBody(t, mgl64.Vec3{0, -gdt, 0})

	contacts := bottomFaceContacts(0)
	solver.Solve(body, contacts, 1.0/60.0)

	if math.Abs(body.Velocity.Y()) > 1e-5 {
		t.Errorf("resting cube keeps vertical velocity %v", body.Velocity.Y())
	}

	// Four symmetric corners share the load; the per-contact split is only
	// determined up to the hyperstatic null direction, so it gets a looser
	// tolerance than the total
	var total float64
	for _, c := range contacts {
		total += c.NormalImpulse
	}
	if !scalar.EqualWithinAbs(total, gdt, 1e-5) {
		t.Errorf("total normal impulse = %v, want m·g·dt = %v", total, gdt)
	}
	for i, c := range contacts {
		if !scalar.EqualWithinAbs(c.NormalImpulse, gdt/4, 1e-3) {
			t.Errorf("contact %d carries %v, want %v", i, c.NormalImpulse, gdt/4)
		}
	}
}

func TestPrepare_WarmStartMatching(t *testing.T) {
	solver, err := NewSolver(testParams())
	if err != nil {
		t.Fatal(err)
	}
	body := newSolverBody(t, mgl64.Vec3{})

	solver.cache = []cachedImpulse{
		{r: mgl64.Vec3{0, -0.5, 0}, normal: 1.2, tangent1: 0.3},
		{r: mgl64.Vec3{0.5, -0.5, 0.5}, normal: 0.7},
	}

	near := &Contact{R: mgl64.Vec3{0.01, -0.5, 0}, Normal: mgl64.Vec3{0, 1, 0}}
	far := &Contact{R: mgl64.Vec3{0.5, 0.5, 0.5}, Normal: mgl64.Vec3{0, 1, 0}}

	invMass := 1.0 / body.Material.GetMass()
	solver.prepare(body, []*Contact{near, far}, 1.0/60.0, invMass, body.GetInverseInertiaWorld())

	if near.NormalImpulse != 1.2 || near.TangentImpulse1 != 0.3 {
		t.Errorf("near contact did not inherit cached impulses: λn=%v λt1=%v",
			near.NormalImpulse, near.TangentImpulse1)
	}
	if far.NormalImpulse != 0 {
		t.Errorf("far contact matched outside tolerance: λn=%v", far.NormalImpulse)
	}
}

func TestPrepare_EachCacheEntryUsedOnce(t *testing.T) {
	solver, err := NewSolver(testParams())
	if err != nil {
		t.Fatal(err)
	}
	body := newSolverBody(t, mgl64.Vec3{})

	solver.cache = []cachedImpulse{
		{r: mgl64.Vec3{0, -0.5, 0}, normal: 2.0},
	}

	a := &Contact{R: mgl64.Vec3{0, -0.5, 0}, Normal: mgl64.Vec3{0, 1, 0}}
	b := &Contact{R: mgl64.Vec3{0.01, -0.5, 0}, Normal: mgl64.Vec3{0, 1, 0}}

	invMass := 1.0 / body.Material.GetMass()
	solver.prepare(body, []*Contact{a, b}, 1.0/60.0, invMass, body.GetInverseInertiaWorld())

	if a.NormalImpulse != 2.0 {
		t.Errorf("exact-match contact missed the cache: λn=%v", a.NormalImpulse)
	}
	if b.NormalImpulse != 0 {
		t.Errorf("cache entry consumed twice: λn=%v", b.NormalImpulse)
	}
}

func TestSolve_EmptyContactsClearCache(t *testing.T) {
	solver, err := NewSolver(testParams())
	if err != nil {
		t.Fatal(err)
	}
	body := newSolverBody(t, mgl64.Vec3{})

	solver.cache = []cachedImpulse{{r: mgl64.Vec3{0, -0.5, 0}, normal: 1.0}}
	solver.Solve(body, nil, 1.0/60.0)

	if len(solver.cache) != 0 {
		t.Errorf("cache kept %d stale entries after a contact-free step", len(solver.cache))
	}
}

func TestSolve_SleepingBodySkipped(t *testing.T) {
	solver, err := NewSolver(testParams())
	if err != nil {
		t.Fatal(err)
	}
	body := newSolverBody(t, mgl64.Vec3{})
	body.Sleep()

	solver.cache = []cachedImpulse{{r: mgl64.Vec3{0, -0.5, 0}, normal: 1.0}}
	solver.Solve(body, []*Contact{centralContact(0.1)}, 1.0/60.0)

	if body.Velocity.Len() != 0 {
		t.Errorf("solver moved a sleeping body: %v", body.Velocity)
	}
	if len(solver.cache) != 1 {
		t.Error("solver touched the cache of a sleeping body")
	}
}

func TestCorrectPosition(t *testing.T) {
	solver, err := NewSolver(testParams())
	if err != nil {
		t.Fatal(err)
	}
	body := newSolverBody(t, mgl64.Vec3{})
	startY := body.Transform.Position.Y()

	deep := centralContact(0.1)
	shallow := &Contact{
		Position: mgl64.Vec3{0.5, 0, 0.5},
		R:        mgl64.Vec3{0.5, -0.5, 0.5},
		Normal:   mgl64.Vec3{0, 1, 0},
		Depth:    0.05,
	}

	solver.correctPosition(body, []*Contact{shallow, deep})

	// Average beyond-slop excess: ((0.1-0.005) + (0.05-0.005)) / 2 = 0.07
	if got := body.Transform.Position.Y() - startY; !scalar.EqualWithinAbs(got, 0.07, 1e-9) {
		t.Errorf("position shift = %v, want 0.07", got)
	}
	if !scalar.EqualWithinAbs(deep.Depth, 0.03, 1e-9) {
		t.Errorf("deep contact depth = %v, want 0.03", deep.Depth)
	}
	if shallow.Depth != 0 {
		t.Errorf("shallow contact depth = %v, want clamped to 0", shallow.Depth)
	}
}

func TestCorrectPosition_WithinSlopUntouched(t *testing.T) {
	solver, err := NewSolver(testParams())
	if err != nil {
		t.Fatal(err)
	}
	body := newSolverBody(t, mgl64.Vec3{})
	start := body.Transform.Position

	solver.correctPosition(body, bottomFaceContacts(0.004))

	if !body.Transform.Position.ApproxEqualThreshold(start, 1e-12) {
		t.Errorf("position moved for sub-slop penetration: %v", body.Transform.Position)
	}
}
