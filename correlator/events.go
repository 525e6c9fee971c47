package correlator

import "fmt"

// EventType represents the type of engine event
type EventType int

const (
	EventTypeHandoverStart EventType = iota
	EventTypeHandoverComplete
	EventTypeConnectionEstablished
	EventTypeLinkQualitySample
	EventTypeMeasurementReport
	EventTypeSamplerTick
)

func (et EventType) String() string {
	switch et {
	case EventTypeHandoverStart:
		return "handover_start"
	case EventTypeHandoverComplete:
		return "handover_complete"
	case EventTypeConnectionEstablished:
		return "connection_established"
	case EventTypeLinkQualitySample:
		return "link_quality_sample"
	case EventTypeMeasurementReport:
		return "measurement_report"
	case EventTypeSamplerTick:
		return "sampler_tick"
	default:
		return "unknown"
	}
}

// Event is the base interface for everything the engine schedules
type Event interface {
	Timestamp() float64 // Simulated time in seconds
	Type() EventType
	String() string
}

// Notification is an event delivered by the host framework.
// The set of notifications is closed: only this package implements it.
type Notification interface {
	Event
	notification()
}

// HandoverStartEvent: the entity begins leaving cell toward targetCell
type HandoverStartEvent struct {
	timestamp  float64
	entity     EntityID
	cell       CellID
	rnti       uint16
	targetCell CellID
}

func NewHandoverStartEvent(timestamp float64, entity EntityID, cell CellID, rnti uint16, targetCell CellID) *HandoverStartEvent {
	return &HandoverStartEvent{timestamp: timestamp, entity: entity, cell: cell, rnti: rnti, targetCell: targetCell}
}

func (e *HandoverStartEvent) Timestamp() float64 { return e.timestamp }
func (e *HandoverStartEvent) Type() EventType    { return EventTypeHandoverStart }
func (e *HandoverStartEvent) Entity() EntityID   { return e.entity }
func (e *HandoverStartEvent) Cell() CellID       { return e.cell }
func (e *HandoverStartEvent) RNTI() uint16       { return e.rnti }
func (e *HandoverStartEvent) TargetCell() CellID { return e.targetCell }
func (e *HandoverStartEvent) notification()      {}
func (e *HandoverStartEvent) String() string {
	return fmt.Sprintf("HandoverStart(t=%.3fs, entity=%d, cell=%d->%d)", e.timestamp, e.entity, e.cell, e.targetCell)
}

// HandoverCompleteEvent carries only the post-handover cell
type HandoverCompleteEvent struct {
	timestamp float64
	entity    EntityID
	cell      CellID
	rnti      uint16
}

func NewHandoverCompleteEvent(timestamp float64, entity EntityID, cell CellID, rnti uint16) *HandoverCompleteEvent {
	return &HandoverCompleteEvent{timestamp: timestamp, entity: entity, cell: cell, rnti: rnti}
}

func (e *HandoverCompleteEvent) Timestamp() float64 { return e.timestamp }
func (e *HandoverCompleteEvent) Type() EventType    { return EventTypeHandoverComplete }
func (e *HandoverCompleteEvent) Entity() EntityID   { return e.entity }
func (e *HandoverCompleteEvent) Cell() CellID       { return e.cell }
func (e *HandoverCompleteEvent) RNTI() uint16       { return e.rnti }
func (e *HandoverCompleteEvent) notification()      {}
func (e *HandoverCompleteEvent) String() string {
	return fmt.Sprintf("HandoverComplete(t=%.3fs, entity=%d, cell=%d)", e.timestamp, e.entity, e.cell)
}

// ConnectionEstablishedEvent: the entity attached to cell
type ConnectionEstablishedEvent struct {
	timestamp float64
	entity    EntityID
	cell      CellID
	rnti      uint16
}

func NewConnectionEstablishedEvent(timestamp float64, entity EntityID, cell CellID, rnti uint16) *ConnectionEstablishedEvent {
	return &ConnectionEstablishedEvent{timestamp: timestamp, entity: entity, cell: cell, rnti: rnti}
}

func (e *ConnectionEstablishedEvent) Timestamp() float64 { return e.timestamp }
func (e *ConnectionEstablishedEvent) Type() EventType    { return EventTypeConnectionEstablished }
func (e *ConnectionEstablishedEvent) Entity() EntityID   { return e.entity }
func (e *ConnectionEstablishedEvent) Cell() CellID       { return e.cell }
func (e *ConnectionEstablishedEvent) RNTI() uint16       { return e.rnti }
func (e *ConnectionEstablishedEvent) notification()      {}
func (e *ConnectionEstablishedEvent) String() string {
	return fmt.Sprintf("ConnectionEstablished(t=%.3fs, entity=%d, cell=%d)", e.timestamp, e.entity, e.cell)
}

// LinkQualitySampleEvent is a PHY report keyed by cell, not by entity
type LinkQualitySampleEvent struct {
	timestamp        float64
	cell             CellID
	rnti             uint16
	rsrp             float64 // dBm
	sinr             float64 // dB
	componentCarrier uint8
}

func NewLinkQualitySampleEvent(timestamp float64, cell CellID, rnti uint16, rsrp, sinr float64, componentCarrier uint8) *LinkQualitySampleEvent {
	return &LinkQualitySampleEvent{
		timestamp:        timestamp,
		cell:             cell,
		rnti:             rnti,
		rsrp:             rsrp,
		sinr:             sinr,
		componentCarrier: componentCarrier,
	}
}

func (e *LinkQualitySampleEvent) Timestamp() float64      { return e.timestamp }
func (e *LinkQualitySampleEvent) Type() EventType         { return EventTypeLinkQualitySample }
func (e *LinkQualitySampleEvent) Cell() CellID            { return e.cell }
func (e *LinkQualitySampleEvent) RNTI() uint16            { return e.rnti }
func (e *LinkQualitySampleEvent) RSRP() float64           { return e.rsrp }
func (e *LinkQualitySampleEvent) SINR() float64           { return e.sinr }
func (e *LinkQualitySampleEvent) ComponentCarrier() uint8 { return e.componentCarrier }
func (e *LinkQualitySampleEvent) notification()           {}
func (e *LinkQualitySampleEvent) String() string {
	return fmt.Sprintf("LinkQualitySample(t=%.3fs, cell=%d, rsrp=%.2f, sinr=%.2f)", e.timestamp, e.cell, e.rsrp, e.sinr)
}

// MeasurementReportEvent carries 3GPP-coded RSRP/RSRQ for the serving cell
type MeasurementReportEvent struct {
	timestamp  float64
	entity     EntityID
	cell       CellID
	rnti       uint16
	measID     uint8
	rsrpResult uint8
	rsrqResult uint8
}

func NewMeasurementReportEvent(timestamp float64, entity EntityID, cell CellID, rnti uint16, measID, rsrpResult, rsrqResult uint8) *MeasurementReportEvent {
	return &MeasurementReportEvent{
		timestamp:  timestamp,
		entity:     entity,
		cell:       cell,
		rnti:       rnti,
		measID:     measID,
		rsrpResult: rsrpResult,
		rsrqResult: rsrqResult,
	}
}

func (e *MeasurementReportEvent) Timestamp() float64 { return e.timestamp }
func (e *MeasurementReportEvent) Type() EventType    { return EventTypeMeasurementReport }
func (e *MeasurementReportEvent) Entity() EntityID   { return e.entity }
func (e *MeasurementReportEvent) Cell() CellID       { return e.cell }
func (e *MeasurementReportEvent) RNTI() uint16       { return e.rnti }
func (e *MeasurementReportEvent) MeasID() uint8      { return e.measID }
func (e *MeasurementReportEvent) RSRPResult() uint8  { return e.rsrpResult }
func (e *MeasurementReportEvent) RSRQResult() uint8  { return e.rsrqResult }
func (e *MeasurementReportEvent) notification()      {}
func (e *MeasurementReportEvent) String() string {
	return fmt.Sprintf("MeasurementReport(t=%.3fs, entity=%d, cell=%d, rsrp=%d, rsrq=%d)",
		e.timestamp, e.entity, e.cell, e.rsrpResult, e.rsrqResult)
}

// SamplerKind selects one of the periodic samplers
type SamplerKind int

const (
	SamplerTraffic SamplerKind = iota
	SamplerSnapshot
)

func (k SamplerKind) String() string {
	switch k {
	case SamplerTraffic:
		return "traffic"
	case SamplerSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// SamplerTickEvent is self-perpetuating: each tick re-arms the next one
// with the same sampler and interval.
type SamplerTickEvent struct {
	timestamp float64
	sampler   SamplerKind
	interval  float64
}

func NewSamplerTickEvent(timestamp float64, sampler SamplerKind, interval float64) *SamplerTickEvent {
	return &SamplerTickEvent{timestamp: timestamp, sampler: sampler, interval: interval}
}

func (e *SamplerTickEvent) Timestamp() float64   { return e.timestamp }
func (e *SamplerTickEvent) Type() EventType      { return EventTypeSamplerTick }
func (e *SamplerTickEvent) Sampler() SamplerKind { return e.sampler }
func (e *SamplerTickEvent) Interval() float64    { return e.interval }
func (e *SamplerTickEvent) String() string {
	return fmt.Sprintf("SamplerTick(t=%.3fs, sampler=%s, interval=%.3fs)", e.timestamp, e.sampler, e.interval)
}
