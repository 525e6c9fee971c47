package correlator

import (
	"fmt"
	"math"
	"net/netip"
)

// EntityID identifies a mobile client (IMSI numbering, starting at 1)
type EntityID uint64

// CellID identifies an access point. Zero means "unassigned".
type CellID uint16

// UnassignedCell is the serving cell reported before any attach
const UnassignedCell CellID = 0

// Hardcoded link-quality defaults used when nothing better is known
const (
	DefaultRSRP = -100.0 // dBm
	DefaultRSRQ = -20.0  // dB
	DefaultSINR = 0.0    // dB
)

// Vector2 is a 2D coordinate or velocity in meters (per second)
type Vector2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Norm returns the vector magnitude
func (v Vector2) Norm() float64 { return math.Hypot(v.X, v.Y) }

// Kinematics is one mobility reading for one entity
type Kinematics struct {
	Entity   EntityID
	Position Vector2
	Velocity Vector2
}

// FiveTuple identifies a transport flow
type FiveTuple struct {
	Source          netip.Addr `json:"source"`
	Destination     netip.Addr `json:"destination"`
	SourcePort      uint16     `json:"sourcePort"`
	DestinationPort uint16     `json:"destinationPort"`
	Protocol        uint8      `json:"protocol"`
}

func (ft FiveTuple) String() string {
	return fmt.Sprintf("%s:%d->%s:%d/%d", ft.Source, ft.SourcePort, ft.Destination, ft.DestinationPort, ft.Protocol)
}

// FlowStats holds cumulative counters for one flow as of some instant.
// Delay and jitter sums are in seconds.
type FlowStats struct {
	FlowID      uint32
	Tuple       FiveTuple
	TxBytes     uint64
	RxBytes     uint64
	TxPackets   uint64
	RxPackets   uint64
	LostPackets uint64
	DelaySum    float64
	JitterSum   float64
}

// AddressAssignment binds a network address to an entity
type AddressAssignment struct {
	Entity EntityID
	Addr   netip.Addr
}

// RecordKind distinguishes event log rows
type RecordKind int

const (
	RecordHandover RecordKind = iota
	RecordMeasurement
)

func (k RecordKind) String() string {
	switch k {
	case RecordHandover:
		return "HANDOVER"
	case RecordMeasurement:
		return "MEASUREMENT"
	default:
		return "UNKNOWN"
	}
}

// MarshalText lets records serialize the kind by name
func (k RecordKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// LinkQuality is one RSRP/RSRQ/SINR triple
type LinkQuality struct {
	RSRP float64 `json:"rsrp"`
	RSRQ float64 `json:"rsrq"`
	SINR float64 `json:"sinr"`
}

// EventRecord is an immutable event log row.
// Old link quality is only meaningful when HasOld is set (HANDOVER rows).
type EventRecord struct {
	Time         float64     `json:"time"`
	Entity       EntityID    `json:"entity"`
	Kind         RecordKind  `json:"kind"`
	OldCell      CellID      `json:"oldCell"`
	NewCell      CellID      `json:"newCell"`
	Old          LinkQuality `json:"old"`
	New          LinkQuality `json:"new"`
	HasOld       bool        `json:"hasOld"`
	ThroughputDL float64     `json:"throughputDL"`
	ThroughputUL float64     `json:"throughputUL"`
	Position     Vector2     `json:"position"`
	Speed        float64     `json:"speed"`
}

// FlowSummary is one row of the end-of-run traffic summary
type FlowSummary struct {
	FlowID           uint32
	Source           netip.Addr
	Destination      netip.Addr
	ThroughputDLMbps float64
	ThroughputULMbps float64
	PacketsSent      uint64
	PacketsReceived  uint64
	PacketsLost      uint64
	DelayMeanMs      float64
	JitterMeanMs     float64
}

// SummarizeFlows derives the summary rows from final cumulative counters.
// duration is the run length used for the average throughput.
func SummarizeFlows(stats []FlowStats, duration float64) []FlowSummary {
	rows := make([]FlowSummary, 0, len(stats))
	for _, fs := range stats {
		row := FlowSummary{
			FlowID:          fs.FlowID,
			Source:          fs.Tuple.Source,
			Destination:     fs.Tuple.Destination,
			PacketsSent:     fs.TxPackets,
			PacketsReceived: fs.RxPackets,
			PacketsLost:     fs.LostPackets,
		}
		if duration > 0 {
			row.ThroughputDLMbps = bytesToMbps(fs.RxBytes, duration)
			row.ThroughputULMbps = bytesToMbps(fs.TxBytes, duration)
		}
		if fs.RxPackets > 0 {
			row.DelayMeanMs = fs.DelaySum / float64(fs.RxPackets) * 1000
		}
		// Jitter is measured between consecutive packets, so n packets give n-1 samples
		if fs.RxPackets > 1 {
			row.JitterMeanMs = fs.JitterSum / float64(fs.RxPackets-1) * 1000
		}
		rows = append(rows, row)
	}
	return rows
}

func bytesToMbps(bytes uint64, seconds float64) float64 {
	return float64(bytes) * 8.0 / (seconds * 1e6)
}
