package talus

import (
	"github.com/talusphys/talus/actor"
	"github.com/talusphys/talus/constraint"
)

// DetectContacts enumerates the 8 cube corners in body space, transforms
// them to world space and keeps every corner on or below the plane. All
// simultaneously penetrating corners are returned, not just the deepest:
// multi-contact resolution needs the full set. An empty set is not an error.
func DetectContacts(body *actor.RigidBody, plane actor.Plane) []*constraint.Contact {
	var contacts []*constraint.Contact

	for _, corner := range body.Shape.Corners() {
		world := body.Transform.Rotation.Rotate(corner).Add(body.Transform.Position)

		phi := plane.SignedDistance(world)
		if phi > 0 {
			continue
		}

		contacts = append(contacts, &constraint.Contact{
			Position: world,
			R:        world.Sub(body.Transform.Position),
			Normal:   plane.Normal,
			Depth:    -phi,
		})
	}

	return contacts
}
