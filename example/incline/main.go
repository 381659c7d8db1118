// Drops a cube onto a 20° incline and prints its trajectory while it
// bounces, slides and finally comes to rest.
package main

import (
	"fmt"
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/talusphys/talus"
	"github.com/talusphys/talus/actor"
)

func main() {
	body, err := actor.NewRigidBody(
		actor.NewTransform(mgl64.Vec3{0, 3, 0}, mgl64.QuatIdent()),
		actor.Cube{Edge: 1},
		1.0, // density, kg/m³
	)
	if err != nil {
		log.Fatal(err)
	}

	body.Material.Restitution = 0.3
	body.Material.StaticFriction = 0.6
	body.Material.KineticFriction = 0.4

	sim, err := talus.NewSimulation(body, actor.NewInclinedPlane(20*math.Pi/180), talus.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}

	for i := 0; i <= 600; i++ {
		if i%30 == 0 {
			p := body.Transform.Position
			state := "awake"
			if body.IsSleeping {
				state = "asleep"
			}
			fmt.Printf("t=%5.2fs  position=(%7.3f %7.3f %7.3f)  |v|=%6.3f  %s\n",
				float64(i)*sim.Config.Timestep, p.X(), p.Y(), p.Z(), body.Velocity.Len(), state)
		}
		sim.Step()
	}
}
