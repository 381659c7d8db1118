package actor

import "github.com/go-gl/mathgl/mgl64"

// Transform represents a position and orientation in 3D space
type Transform struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	InverseRotation mgl64.Quat
}

// NewTransform creates a transform with a normalized rotation and its cached inverse
func NewTransform(position mgl64.Vec3, rotation mgl64.Quat) Transform {
	rotation = rotation.Normalize()

	return Transform{
		Position:        position,
		Rotation:        rotation,
		InverseRotation: rotation.Inverse(),
	}
}
