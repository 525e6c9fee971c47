package mobility

import (
	"math/rand"

	"github.com/miretskiy/handovertrace/correlator"
)

// Area is an axis-aligned rectangle in meters
type Area struct {
	MinX float64 `json:"minX" yaml:"minX"`
	MaxX float64 `json:"maxX" yaml:"maxX"`
	MinY float64 `json:"minY" yaml:"minY"`
	MaxY float64 `json:"maxY" yaml:"maxY"`
}

// Contains reports whether p lies inside the area, borders included
func (a Area) Contains(p correlator.Vector2) bool {
	return p.X >= a.MinX && p.X <= a.MaxX && p.Y >= a.MinY && p.Y <= a.MaxY
}

func (a Area) sample(rng *rand.Rand) correlator.Vector2 {
	return correlator.Vector2{
		X: a.MinX + rng.Float64()*(a.MaxX-a.MinX),
		Y: a.MinY + rng.Float64()*(a.MaxY-a.MinY),
	}
}

// RandomWaypoint picks a uniform destination in the area, travels there at a
// sampled speed, pauses for a sampled time and repeats. Legs are generated
// lazily as later times are queried, so queries must not go backwards past
// the generated horizon more than once per leg.
type RandomWaypoint struct {
	area  Area
	speed Draw
	pause Draw
	rng   *rand.Rand

	model   *WaypointModel
	horizon float64 // legs exist up to this time
}

// NewRandomWaypoint creates a node at a uniform random spot in area
func NewRandomWaypoint(area Area, speed, pause Draw, rng *rand.Rand) *RandomWaypoint {
	rw := &RandomWaypoint{
		area:  area,
		speed: speed,
		pause: pause,
		rng:   rng,
		model: NewWaypointModel(area.sample(rng)),
	}
	rw.extend(0)
	return rw
}

// extend generates legs until the node is busy past t
func (rw *RandomWaypoint) extend(t float64) {
	for rw.horizon <= t {
		from := rw.model.Position(rw.horizon)
		to := rw.area.sample(rw.rng)
		speed := rw.speed.Sample(rw.rng)
		if speed <= 0 || to == from {
			// Degenerate leg, pause in place for one second to guarantee progress
			rw.model.Teleport(rw.horizon, from)
			rw.horizon++
			continue
		}
		rw.model.SetDestination(rw.horizon, to, speed)
		dist := correlator.Vector2{X: to.X - from.X, Y: to.Y - from.Y}.Norm()
		rw.horizon += dist/speed + rw.pause.Sample(rw.rng)
	}
}

// Position returns the node position at time t
func (rw *RandomWaypoint) Position(t float64) correlator.Vector2 {
	rw.extend(t)
	return rw.model.Position(t)
}

// Velocity returns the node velocity at time t
func (rw *RandomWaypoint) Velocity(t float64) correlator.Vector2 {
	rw.extend(t)
	return rw.model.Velocity(t)
}
