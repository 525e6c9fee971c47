package mobility

import (
	"sort"

	"github.com/miretskiy/handovertrace/correlator"
)

// Model gives position and velocity of one node at simulated time t
type Model interface {
	Position(t float64) correlator.Vector2
	Velocity(t float64) correlator.Vector2
}

// segment is straight-line motion at constant speed starting at start.
// The node rests at to from arrive until the next segment begins.
type segment struct {
	start  float64
	arrive float64
	from   correlator.Vector2
	to     correlator.Vector2
	speed  float64
}

func (s segment) position(t float64) correlator.Vector2 {
	if t >= s.arrive || s.arrive <= s.start {
		return s.to
	}
	frac := (t - s.start) / (s.arrive - s.start)
	return correlator.Vector2{
		X: s.from.X + (s.to.X-s.from.X)*frac,
		Y: s.from.Y + (s.to.Y-s.from.Y)*frac,
	}
}

func (s segment) velocity(t float64) correlator.Vector2 {
	if t < s.start || t >= s.arrive || s.arrive <= s.start {
		return correlator.Vector2{}
	}
	dt := s.arrive - s.start
	return correlator.Vector2{X: (s.to.X - s.from.X) / dt, Y: (s.to.Y - s.from.Y) / dt}
}

// newSegment heads from `from` toward `to` at speed, starting at start.
// A non-positive speed leaves the node where it is.
func newSegment(start float64, from, to correlator.Vector2, speed float64) segment {
	if speed <= 0 {
		return segment{start: start, arrive: start, from: from, to: from}
	}
	dist := correlator.Vector2{X: to.X - from.X, Y: to.Y - from.Y}.Norm()
	return segment{start: start, arrive: start + dist/speed, from: from, to: to, speed: speed}
}

// WaypointModel is piecewise-linear motion through a list of destinations.
// A new destination interrupts the current leg from wherever the node is.
type WaypointModel struct {
	initial  correlator.Vector2
	segments []segment // sorted by start
}

// NewWaypointModel creates a stationary model at initial
func NewWaypointModel(initial correlator.Vector2) *WaypointModel {
	return &WaypointModel{initial: initial}
}

// SetDestination starts a new leg at time t. Legs must be added in time order.
func (m *WaypointModel) SetDestination(t float64, dest correlator.Vector2, speed float64) {
	m.segments = append(m.segments, newSegment(t, m.Position(t), dest, speed))
}

// Teleport moves the node to p at time t without travel
func (m *WaypointModel) Teleport(t float64, p correlator.Vector2) {
	m.segments = append(m.segments, segment{start: t, arrive: t, from: p, to: p})
}

func (m *WaypointModel) active(t float64) (segment, bool) {
	// First segment starting after t, the one before it is active
	i := sort.Search(len(m.segments), func(i int) bool { return m.segments[i].start > t })
	if i == 0 {
		return segment{}, false
	}
	return m.segments[i-1], true
}

// Position returns where the node is at time t
func (m *WaypointModel) Position(t float64) correlator.Vector2 {
	s, ok := m.active(t)
	if !ok {
		return m.initial
	}
	return s.position(t)
}

// Velocity returns the node's velocity at time t
func (m *WaypointModel) Velocity(t float64) correlator.Vector2 {
	s, ok := m.active(t)
	if !ok {
		return correlator.Vector2{}
	}
	return s.velocity(t)
}

// Legs returns the number of recorded legs
func (m *WaypointModel) Legs() int { return len(m.segments) }
