package actor

import "github.com/go-gl/mathgl/mgl64"

// Cube is an axis-aligned cube collision shape in body space,
// defined by its edge length.
type Cube struct {
	Edge float64
}

func (c Cube) HalfExtent() float64 {
	return c.Edge / 2.0
}

// Corners returns the 8 corners of the cube in body space
func (c Cube) Corners() [8]mgl64.Vec3 {
	h := c.HalfExtent()

	return [8]mgl64.Vec3{
		{-h, -h, -h},
		{+h, -h, -h},
		{-h, +h, -h},
		{+h, +h, -h},
		{-h, -h, +h},
		{+h, -h, +h},
		{-h, +h, +h},
		{+h, +h, +h},
	}
}

// ComputeMass calculates mass data for the cube
func (c Cube) ComputeMass(density float64) float64 {
	volume := c.Edge * c.Edge * c.Edge

	return density * volume
}

// ComputeInertia returns the body-frame principal inertia.
// For a cube: I = (m/6) * edge² on every axis.
func (c Cube) ComputeInertia(mass float64) mgl64.Vec3 {
	i := mass * c.Edge * c.Edge / 6.0

	return mgl64.Vec3{i, i, i}
}
