package correlator

import "github.com/miretskiy/handovertrace/internal/logging"

// handleHandoverStart remembers the source cell if nothing is tracked yet.
// An already tracked cell is never overwritten here. No record.
func (e *Engine) handleHandoverStart(ev *HandoverStartEvent) error {
	e.metrics.HandoverStarts++
	id := ev.Entity()
	e.store.Ensure(id)
	if _, ok := e.store.ServingCell(id); !ok && ev.Cell() != UnassignedCell {
		e.observe(id, FieldServingCell, float64(ev.Cell()), ev.Timestamp())
	}
	e.logEvent("[t=%.3fs] handover start entity=%d cell=%d->%d", e.virtualTime, id, ev.Cell(), ev.TargetCell())
	return nil
}

// handleHandoverComplete emits the HANDOVER record and moves the entity to
// the new cell. The notification does not carry the source cell, so it
// comes from the store; without one the record degrades to old = new.
func (e *Engine) handleHandoverComplete(ev *HandoverCompleteEvent) error {
	e.metrics.HandoversCompleted++
	id := ev.Entity()
	newCell := ev.Cell()

	oldCell, ok := e.store.ServingCell(id)
	if !ok || oldCell == UnassignedCell {
		oldCell = newCell
		e.metrics.DegradedHandovers++
		e.logger.Info("handover completed without a tracked source cell; recording same-cell handover",
			logging.Uint64("entity", uint64(id)),
			logging.Int("cell", int(newCell)),
			logging.Float64("t", e.virtualTime))
	}
	e.store.Ensure(id)

	// Before/after history is not retained, so both sides carry the same values
	quality := ResolveLinkQuality(e.store, id, oldCell)
	snap := e.store.Snapshot(id)
	rec := EventRecord{
		Time:         e.virtualTime,
		Entity:       id,
		Kind:         RecordHandover,
		OldCell:      oldCell,
		NewCell:      newCell,
		Old:          quality,
		New:          quality,
		HasOld:       true,
		ThroughputDL: snap.ThroughputDL,
		ThroughputUL: snap.ThroughputUL,
		Position:     snap.Position,
		Speed:        snap.Speed,
	}
	if err := e.emit(rec); err != nil {
		return err
	}

	e.observe(id, FieldServingCell, float64(newCell), ev.Timestamp())
	e.logEvent("[t=%.3fs] handover complete entity=%d cell=%d->%d", e.virtualTime, id, oldCell, newCell)
	return nil
}

// handleConnectionEstablished sets the serving cell on attach. No record.
func (e *Engine) handleConnectionEstablished(ev *ConnectionEstablishedEvent) error {
	e.metrics.ConnectionsEstablished++
	e.store.Ensure(ev.Entity())
	e.observe(ev.Entity(), FieldServingCell, float64(ev.Cell()), ev.Timestamp())
	return nil
}

// handleLinkQualitySample updates the cell broadcast values only.
// Entities pick these up lazily through the resolution chains.
func (e *Engine) handleLinkQualitySample(ev *LinkQualitySampleEvent) error {
	e.metrics.LinkQualitySamples++
	e.store.ObserveCell(ev.Cell(), ev.RSRP(), ev.SINR(), ev.Timestamp())
	return nil
}

// handleMeasurementReport decodes the report, stores it and emits one
// MEASUREMENT record carrying exactly the decoded values.
func (e *Engine) handleMeasurementReport(ev *MeasurementReportEvent) error {
	e.metrics.MeasurementReports++
	id := ev.Entity()
	cell := ev.Cell()
	at := ev.Timestamp()
	e.store.Ensure(id)

	rsrp := DecodeRSRP(ev.RSRPResult())
	rsrq := DecodeRSRQ(ev.RSRQResult())
	sinr, source := ResolveSINR(e.store, id, cell)

	e.observe(id, FieldRSRP, rsrp, at)
	e.observe(id, FieldRSRQ, rsrq, at)
	if source == SourceCell {
		e.observe(id, FieldSINR, sinr, at)
	}

	snap := e.store.Snapshot(id)
	return e.emit(EventRecord{
		Time:         e.virtualTime,
		Entity:       id,
		Kind:         RecordMeasurement,
		OldCell:      cell,
		NewCell:      cell,
		New:          LinkQuality{RSRP: rsrp, RSRQ: rsrq, SINR: sinr},
		ThroughputDL: snap.ThroughputDL,
		ThroughputUL: snap.ThroughputUL,
		Position:     snap.Position,
		Speed:        snap.Speed,
	})
}
