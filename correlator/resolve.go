package correlator

import "net/netip"

// QualitySource says which link of a fallback chain produced a value
type QualitySource int

const (
	SourceEntity QualitySource = iota
	SourceCell
	SourceDefault
)

func (qs QualitySource) String() string {
	switch qs {
	case SourceEntity:
		return "entity"
	case SourceCell:
		return "cell"
	case SourceDefault:
		return "default"
	default:
		return "unknown"
	}
}

// DecodeRSRP maps a 3GPP RSRP report code to dBm
func DecodeRSRP(code uint8) float64 {
	return float64(code) - 140.0
}

// DecodeRSRQ maps a 3GPP RSRQ report code to dB
func DecodeRSRQ(code uint8) float64 {
	return -19.5 + float64(code)/2.0
}

// ResolveRSRP: entity sample, then the cell's broadcast, then DefaultRSRP.
// The cell is only consulted when it is assigned.
func ResolveRSRP(s *Store, id EntityID, cell CellID) (float64, QualitySource) {
	if v, ok := s.Value(id, FieldRSRP); ok {
		return v, SourceEntity
	}
	if cell != UnassignedCell {
		if c, ok := s.Cell(cell); ok && c.HasRSRP {
			return c.RSRP, SourceCell
		}
	}
	return DefaultRSRP, SourceDefault
}

// ResolveSINR: entity sample, then the cell's broadcast, then DefaultSINR
func ResolveSINR(s *Store, id EntityID, cell CellID) (float64, QualitySource) {
	if v, ok := s.Value(id, FieldSINR); ok {
		return v, SourceEntity
	}
	if cell != UnassignedCell {
		if c, ok := s.Cell(cell); ok && c.HasSINR {
			return c.SINR, SourceCell
		}
	}
	return DefaultSINR, SourceDefault
}

// ResolveRSRQ: entity sample, then DefaultRSRQ. Cells never broadcast RSRQ.
func ResolveRSRQ(s *Store, id EntityID) (float64, QualitySource) {
	if v, ok := s.Value(id, FieldRSRQ); ok {
		return v, SourceEntity
	}
	return DefaultRSRQ, SourceDefault
}

// ResolveLinkQuality runs all three chains for one entity
func ResolveLinkQuality(s *Store, id EntityID, cell CellID) LinkQuality {
	rsrp, _ := ResolveRSRP(s, id, cell)
	rsrq, _ := ResolveRSRQ(s, id)
	sinr, _ := ResolveSINR(s, id, cell)
	return LinkQuality{RSRP: rsrp, RSRQ: rsrq, SINR: sinr}
}

// FlowResolver maps flow endpoint addresses to entities.
// It is rebuilt from scratch on every traffic pass.
type FlowResolver struct {
	byAddr map[netip.Addr]EntityID
}

// NewFlowResolver creates an empty resolver
func NewFlowResolver() *FlowResolver {
	return &FlowResolver{byAddr: make(map[netip.Addr]EntityID)}
}

// Rebuild replaces all bindings. A later assignment of the same address wins.
func (r *FlowResolver) Rebuild(assignments []AddressAssignment) {
	clear(r.byAddr)
	for _, a := range assignments {
		if !a.Addr.IsValid() {
			continue
		}
		r.byAddr[a.Addr.Unmap()] = a.Entity
	}
}

// Resolve returns the entity bound to addr
func (r *FlowResolver) Resolve(addr netip.Addr) (EntityID, bool) {
	if !addr.IsValid() {
		return 0, false
	}
	id, ok := r.byAddr[addr.Unmap()]
	return id, ok
}

// Len returns the number of bindings
func (r *FlowResolver) Len() int { return len(r.byAddr) }
