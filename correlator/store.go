package correlator

import "sort"

// Field names one independently observed entity attribute
type Field int

const (
	FieldServingCell Field = iota
	FieldX
	FieldY
	FieldSpeed
	FieldThroughputDL
	FieldThroughputUL
	FieldRSRP
	FieldRSRQ
	FieldSINR
	numFields
)

func (f Field) String() string {
	switch f {
	case FieldServingCell:
		return "serving_cell"
	case FieldX:
		return "x"
	case FieldY:
		return "y"
	case FieldSpeed:
		return "speed"
	case FieldThroughputDL:
		return "throughput_dl"
	case FieldThroughputUL:
		return "throughput_ul"
	case FieldRSRP:
		return "rsrp"
	case FieldRSRQ:
		return "rsrq"
	case FieldSINR:
		return "sinr"
	default:
		return "unknown"
	}
}

// defaultValue is what a snapshot reports for a field never observed
func (f Field) defaultValue() float64 {
	switch f {
	case FieldRSRP:
		return DefaultRSRP
	case FieldRSRQ:
		return DefaultRSRQ
	case FieldSINR:
		return DefaultSINR
	default:
		return 0
	}
}

// FieldSet is a bitset of fields
type FieldSet uint16

// Has reports whether f is in the set
func (fs FieldSet) Has(f Field) bool { return fs&(1<<uint(f)) != 0 }

type observation struct {
	value float64
	at    float64
	known bool
}

type entityRecord struct {
	fields [numFields]observation
}

type cellRecord struct {
	rsrp observation
	sinr observation
}

// EntitySnapshot is a point-in-time copy of one entity, defaults filled in
type EntitySnapshot struct {
	ID           EntityID `json:"id"`
	ServingCell  CellID   `json:"servingCell"`
	Position     Vector2  `json:"position"`
	Speed        float64  `json:"speed"`
	ThroughputDL float64  `json:"throughputDL"`
	ThroughputUL float64  `json:"throughputUL"`
	RSRP         float64  `json:"rsrp"`
	RSRQ         float64  `json:"rsrq"`
	SINR         float64  `json:"sinr"`
	Known        FieldSet `json:"known"`
}

// CellSnapshot is the latest broadcast link quality seen at a cell
type CellSnapshot struct {
	ID        CellID  `json:"id"`
	RSRP      float64 `json:"rsrp"`
	SINR      float64 `json:"sinr"`
	HasRSRP   bool    `json:"hasRsrp"`
	HasSINR   bool    `json:"hasSinr"`
	UpdatedAt float64 `json:"updatedAt"`
}

// Store holds per-entity and per-cell state for one run.
// It is NOT safe for concurrent use: the engine runs every handler to
// completion before the next one starts.
type Store struct {
	entities map[EntityID]*entityRecord
	cells    map[CellID]*cellRecord
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		entities: make(map[EntityID]*entityRecord),
		cells:    make(map[CellID]*cellRecord),
	}
}

// Ensure creates the entity with defaults if it is not tracked yet
func (s *Store) Ensure(id EntityID) {
	s.entity(id)
}

func (s *Store) entity(id EntityID) *entityRecord {
	rec, ok := s.entities[id]
	if !ok {
		rec = &entityRecord{}
		s.entities[id] = rec
	}
	return rec
}

// Observe writes one field of one entity, creating the entity if needed.
// Last write wins per field; an observation older than the stored one is
// dropped and Observe returns false. Equal timestamps overwrite, which makes
// replaying the same observation a no-op.
func (s *Store) Observe(id EntityID, f Field, value, at float64) bool {
	rec := s.entity(id)
	obs := &rec.fields[f]
	if obs.known && at < obs.at {
		return false
	}
	*obs = observation{value: value, at: at, known: true}
	return true
}

// ObserveServingCell is Observe for the serving cell field
func (s *Store) ObserveServingCell(id EntityID, cell CellID, at float64) bool {
	return s.Observe(id, FieldServingCell, float64(cell), at)
}

// Value returns a field and whether it was ever observed
func (s *Store) Value(id EntityID, f Field) (float64, bool) {
	rec, ok := s.entities[id]
	if !ok || !rec.fields[f].known {
		return f.defaultValue(), false
	}
	return rec.fields[f].value, true
}

// ServingCell returns the tracked serving cell, if any
func (s *Store) ServingCell(id EntityID) (CellID, bool) {
	v, ok := s.Value(id, FieldServingCell)
	if !ok {
		return UnassignedCell, false
	}
	return CellID(v), true
}

// Has reports whether the entity exists
func (s *Store) Has(id EntityID) bool {
	_, ok := s.entities[id]
	return ok
}

// Snapshot returns a copy of everything known about id. Unknown entities
// and unobserved fields report their defaults. Snapshot never creates.
func (s *Store) Snapshot(id EntityID) EntitySnapshot {
	snap := EntitySnapshot{
		ID:   id,
		RSRP: DefaultRSRP,
		RSRQ: DefaultRSRQ,
		SINR: DefaultSINR,
	}
	rec, ok := s.entities[id]
	if !ok {
		return snap
	}
	for f := Field(0); f < numFields; f++ {
		obs := rec.fields[f]
		if !obs.known {
			continue
		}
		snap.Known |= 1 << uint(f)
		switch f {
		case FieldServingCell:
			snap.ServingCell = CellID(obs.value)
		case FieldX:
			snap.Position.X = obs.value
		case FieldY:
			snap.Position.Y = obs.value
		case FieldSpeed:
			snap.Speed = obs.value
		case FieldThroughputDL:
			snap.ThroughputDL = obs.value
		case FieldThroughputUL:
			snap.ThroughputUL = obs.value
		case FieldRSRP:
			snap.RSRP = obs.value
		case FieldRSRQ:
			snap.RSRQ = obs.value
		case FieldSINR:
			snap.SINR = obs.value
		}
	}
	return snap
}

// Entities returns all tracked entity IDs in ascending order
func (s *Store) Entities() []EntityID {
	ids := make([]EntityID, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ObserveCell records a PHY-level sample broadcast at a cell
func (s *Store) ObserveCell(cell CellID, rsrp, sinr, at float64) {
	rec, ok := s.cells[cell]
	if !ok {
		rec = &cellRecord{}
		s.cells[cell] = rec
	}
	if !rec.rsrp.known || at >= rec.rsrp.at {
		rec.rsrp = observation{value: rsrp, at: at, known: true}
	}
	if !rec.sinr.known || at >= rec.sinr.at {
		rec.sinr = observation{value: sinr, at: at, known: true}
	}
}

// Cell returns the latest broadcast values for a cell
func (s *Store) Cell(cell CellID) (CellSnapshot, bool) {
	rec, ok := s.cells[cell]
	if !ok {
		return CellSnapshot{ID: cell, RSRP: DefaultRSRP, SINR: DefaultSINR}, false
	}
	return CellSnapshot{
		ID:        cell,
		RSRP:      rec.rsrp.value,
		SINR:      rec.sinr.value,
		HasRSRP:   rec.rsrp.known,
		HasSINR:   rec.sinr.known,
		UpdatedAt: max(rec.rsrp.at, rec.sinr.at),
	}, true
}

// Cells returns all observed cells in ascending order
func (s *Store) Cells() []CellSnapshot {
	ids := make([]CellID, 0, len(s.cells))
	for id := range s.cells {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]CellSnapshot, 0, len(ids))
	for _, id := range ids {
		c, _ := s.Cell(id)
		out = append(out, c)
	}
	return out
}
