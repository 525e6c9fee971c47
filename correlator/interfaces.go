package correlator

// RecordSink receives event log rows. Each call must append exactly one row
// and make it durable before returning.
type RecordSink interface {
	WriteHandover(rec EventRecord) error
	WriteMeasurement(rec EventRecord) error
}

// SummarySink receives the end-of-run traffic summary. Sinks that do not
// implement it simply get no summary.
type SummarySink interface {
	WriteFlowSummary(rows []FlowSummary) error
}

// MobilitySource reports position and velocity of every entity it moves
type MobilitySource interface {
	Kinematics(t float64) []Kinematics
}

// FlowMonitor reports cumulative per-flow counters as of time t
type FlowMonitor interface {
	FlowStats(t float64) []FlowStats
}

// AddressBook reports the address assignments active at time t
type AddressBook interface {
	Assignments(t float64) []AddressAssignment
}
