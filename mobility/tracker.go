package mobility

import (
	"math/rand"
	"sort"

	"github.com/miretskiy/handovertrace/correlator"
)

// Tracker maps mobility models to entities. It implements
// correlator.MobilitySource.
type Tracker struct {
	models map[correlator.EntityID]Model
	ids    []correlator.EntityID // sorted
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{models: make(map[correlator.EntityID]Model)}
}

// Add tracks m as entity id, replacing any earlier model for it
func (t *Tracker) Add(id correlator.EntityID, m Model) {
	if _, ok := t.models[id]; !ok {
		t.ids = append(t.ids, id)
		sort.Slice(t.ids, func(i, j int) bool { return t.ids[i] < t.ids[j] })
	}
	t.models[id] = m
}

// Len returns the number of tracked entities
func (t *Tracker) Len() int { return len(t.ids) }

// Kinematics returns position and velocity of every tracked entity at time
// now, ordered by entity ID
func (t *Tracker) Kinematics(now float64) []correlator.Kinematics {
	out := make([]correlator.Kinematics, 0, len(t.ids))
	for _, id := range t.ids {
		m := t.models[id]
		out = append(out, correlator.Kinematics{
			Entity:   id,
			Position: m.Position(now),
			Velocity: m.Velocity(now),
		})
	}
	return out
}

// EntityForNode maps a node index to its entity ID. Entities are numbered
// from 1 in node order.
func EntityForNode(node int) correlator.EntityID {
	return correlator.EntityID(node + 1)
}

// FromTrace tracks the first numEntities nodes of tr. Nodes beyond that
// (base stations, spare vehicles) are ignored.
func FromTrace(tr *Trace, numEntities int) *Tracker {
	t := NewTracker()
	for _, node := range tr.Nodes() {
		if node < 0 || node >= numEntities {
			continue
		}
		m, _ := tr.Node(node)
		t.Add(EntityForNode(node), m)
	}
	return t
}

// RandomTracker creates numEntities random waypoint nodes from cfg
func RandomTracker(cfg Config, numEntities int) *Tracker {
	rng := rand.New(rand.NewSource(cfg.Seed))
	t := NewTracker()
	for node := 0; node < numEntities; node++ {
		t.Add(EntityForNode(node), NewRandomWaypoint(cfg.Area, cfg.Speed, cfg.Pause, rng))
	}
	return t
}

// Build creates the mobility source described by cfg. It returns nil for
// ModelNone.
func Build(cfg Config, numEntities int) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Model {
	case ModelTrace:
		tr, err := LoadNS2File(cfg.TracePath)
		if err != nil {
			return nil, err
		}
		return FromTrace(tr, numEntities), nil
	case ModelNone:
		return nil, nil
	default:
		return RandomTracker(cfg, numEntities), nil
	}
}
