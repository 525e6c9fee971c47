package correlator

import "github.com/miretskiy/handovertrace/internal/logging"

// processSamplerTick re-arms the sampler and then runs it.
// CRITICAL: the next tick is scheduled from the current virtualTime, never
// from the event timestamp, so a late tick never schedules into the past.
func (e *Engine) processSamplerTick(ev *SamplerTickEvent) error {
	e.queue.Push(NewSamplerTickEvent(e.virtualTime+ev.Interval(), ev.Sampler(), ev.Interval()))

	switch ev.Sampler() {
	case SamplerTraffic:
		e.sampleTraffic()
		return nil
	case SamplerSnapshot:
		return e.sampleSnapshots()
	default:
		return nil
	}
}

// sampleTraffic recomputes per-entity throughput from cumulative counters
func (e *Engine) sampleTraffic() {
	e.metrics.TrafficPasses++
	if e.flows == nil {
		return
	}
	now := e.virtualTime
	if now <= 0 {
		return
	}
	e.attributeTraffic(e.flows.FlowStats(now), now, e.config.ThroughputMode)
}

// attributeTraffic rebuilds the address bindings, sums DL over flows that
// terminate at an entity and UL over flows that originate at one, and
// overwrites throughput for every entity that has at least one flow.
// Entities without flows keep their previous values.
func (e *Engine) attributeTraffic(stats []FlowStats, now float64, mode ThroughputMode) {
	var assignments []AddressAssignment
	if e.addresses != nil {
		assignments = e.addresses.Assignments(now)
	}
	e.resolver.Rebuild(assignments)

	dl := make(map[EntityID]float64)
	ul := make(map[EntityID]float64)
	attributed := 0
	for _, fs := range stats {
		dlRate, ulRate := e.flowRates(fs, now, mode)
		if id, ok := e.resolver.Resolve(fs.Tuple.Destination); ok {
			dl[id] += dlRate
			attributed++
		}
		if id, ok := e.resolver.Resolve(fs.Tuple.Source); ok {
			ul[id] += ulRate
			attributed++
		}
	}
	e.metrics.FlowsAttributed = attributed

	for id, rate := range dl {
		e.observe(id, FieldThroughputDL, rate, now)
	}
	for id, rate := range ul {
		e.observe(id, FieldThroughputUL, rate, now)
	}
}

// flowRates converts one flow's counters to Mbps.
// Running average: cumulative bytes over total elapsed time.
// Interval: bytes since the previous pass over time since the previous pass.
func (e *Engine) flowRates(fs FlowStats, now float64, mode ThroughputMode) (dl, ul float64) {
	if mode != ThroughputInterval {
		return bytesToMbps(fs.RxBytes, now), bytesToMbps(fs.TxBytes, now)
	}

	prev, ok := e.prevFlows[fs.FlowID]
	e.prevFlows[fs.FlowID] = flowCheckpoint{at: now, txBytes: fs.TxBytes, rxBytes: fs.RxBytes}
	if !ok {
		// First pass: the interval starts at time zero with empty counters
		return bytesToMbps(fs.RxBytes, now), bytesToMbps(fs.TxBytes, now)
	}
	elapsed := now - prev.at
	if elapsed <= 0 {
		return 0, 0
	}
	// Counters are cumulative; a reset shows up as a decrease and counts from zero
	rx := fs.RxBytes
	if rx >= prev.rxBytes {
		rx -= prev.rxBytes
	}
	tx := fs.TxBytes
	if tx >= prev.txBytes {
		tx -= prev.txBytes
	}
	return bytesToMbps(rx, elapsed), bytesToMbps(tx, elapsed)
}

// sampleSnapshots writes kinematics into the store and emits one
// MEASUREMENT row per moving entity. Link quality goes through the
// fallback chains; fallback values are not written back to the entity.
func (e *Engine) sampleSnapshots() error {
	e.metrics.SnapshotPasses++
	if e.mobility == nil {
		return nil
	}
	now := e.virtualTime
	for _, k := range e.mobility.Kinematics(now) {
		id := k.Entity
		speed := k.Velocity.Norm()
		e.observe(id, FieldX, k.Position.X, now)
		e.observe(id, FieldY, k.Position.Y, now)
		e.observe(id, FieldSpeed, speed, now)

		cell, _ := e.store.ServingCell(id)
		rsrp, rsrpSrc := ResolveRSRP(e.store, id, cell)
		rsrq, rsrqSrc := ResolveRSRQ(e.store, id)
		sinr, sinrSrc := ResolveSINR(e.store, id, cell)
		if rsrpSrc == SourceDefault || rsrqSrc == SourceDefault || sinrSrc == SourceDefault {
			e.metrics.DefaultedQualityUse++
		}

		snap := e.store.Snapshot(id)
		err := e.emit(EventRecord{
			Time:         now,
			Entity:       id,
			Kind:         RecordMeasurement,
			OldCell:      cell,
			NewCell:      cell,
			New:          LinkQuality{RSRP: rsrp, RSRQ: rsrq, SINR: sinr},
			ThroughputDL: snap.ThroughputDL,
			ThroughputUL: snap.ThroughputUL,
			Position:     k.Position,
			Speed:        speed,
		})
		if err != nil {
			return err
		}
	}
	e.logger.Debug("snapshot pass", logging.Float64("t", now), logging.Int("records", e.metrics.MeasurementRecords))
	return nil
}
