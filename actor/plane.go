package actor

import (
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Plane represents an infinite static plane defined by a unit normal
// and a point on the plane. The half-space behind the normal is solid.
type Plane struct {
	Normal mgl64.Vec3
	Point  mgl64.Vec3
}

var ErrDegenerateNormal = errors.New("plane normal has near-zero length")

// NewPlane creates a plane, normalizing the given normal
func NewPlane(normal, point mgl64.Vec3) (Plane, error) {
	if normal.Len() < 1e-12 {
		return Plane{}, ErrDegenerateNormal
	}

	return Plane{
		Normal: normal.Normalize(),
		Point:  point,
	}, nil
}

// SignedDistance is positive on the open side of the plane,
// negative inside the solid half-space
func (p Plane) SignedDistance(point mgl64.Vec3) float64 {
	return point.Sub(p.Point).Dot(p.Normal)
}

// NewInclinedPlane creates a plane through the origin, tilted by angle
// radians about the Z axis. angle = 0 leaves the normal pointing up (+Y).
func NewInclinedPlane(angle float64) Plane {
	return Plane{
		Normal: mgl64.Vec3{-math.Sin(angle), math.Cos(angle), 0},
		Point:  mgl64.Vec3{0, 0, 0},
	}
}
