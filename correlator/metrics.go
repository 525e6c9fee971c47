package correlator

// Metrics tracks engine activity for results output and live dashboards
type Metrics struct {
	Timestamp float64 `json:"timestamp"` // Virtual time

	// Notifications processed, per kind
	HandoverStarts         int `json:"handoverStarts"`
	HandoversCompleted     int `json:"handoversCompleted"`
	ConnectionsEstablished int `json:"connectionsEstablished"`
	LinkQualitySamples     int `json:"linkQualitySamples"`
	MeasurementReports     int `json:"measurementReports"`

	// Degraded or out-of-order input
	DegradedHandovers   int `json:"degradedHandovers"`   // Handover-complete with no tracked prior cell (old = new)
	LateNotifications   int `json:"lateNotifications"`   // Delivered with a timestamp behind the clock
	StaleObservations   int `json:"staleObservations"`   // Dropped by last-write-wins
	DefaultedQualityUse int `json:"defaultedQualityUse"` // Snapshot rows that fell back to a hardcoded default

	// Sampler passes
	TrafficPasses   int `json:"trafficPasses"`
	SnapshotPasses  int `json:"snapshotPasses"`
	FlowsAttributed int `json:"flowsAttributed"` // Flow endpoints resolved to an entity on the last traffic pass

	// Records emitted
	HandoverRecords    int `json:"handoverRecords"`
	MeasurementRecords int `json:"measurementRecords"`

	// Population
	TrackedEntities int `json:"trackedEntities"`
	TrackedCells    int `json:"trackedCells"`

	// Stop state
	IsStopped bool   `json:"isStopped"` // A fatal error stopped the run
	StopError string `json:"stopError,omitempty"`
}

// NewMetrics creates a zeroed metrics tracker
func NewMetrics() *Metrics {
	return &Metrics{}
}

// TotalRecords returns the number of rows written to the event log
func (m *Metrics) TotalRecords() int {
	return m.HandoverRecords + m.MeasurementRecords
}

// Clone creates a deep copy of the metrics
func (m *Metrics) Clone() *Metrics {
	clone := *m
	return &clone
}
