package sink

import (
	"sync"

	"github.com/miretskiy/handovertrace/correlator"
)

// Memory keeps records in memory. It is safe for concurrent use so a
// viewer goroutine can drain it while the engine writes.
type Memory struct {
	mu      sync.Mutex
	records []correlator.EventRecord
	drained int
	summary []correlator.FlowSummary
}

// NewMemory creates an empty in-memory sink
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) WriteHandover(rec correlator.EventRecord) error {
	return m.append(rec)
}

func (m *Memory) WriteMeasurement(rec correlator.EventRecord) error {
	return m.append(rec)
}

func (m *Memory) append(rec correlator.EventRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

// WriteFlowSummary keeps the summary rows
func (m *Memory) WriteFlowSummary(rows []correlator.FlowSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summary = append([]correlator.FlowSummary(nil), rows...)
	return nil
}

// Records returns a copy of every record written so far
func (m *Memory) Records() []correlator.EventRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]correlator.EventRecord(nil), m.records...)
}

// Drain returns the records written since the previous Drain
func (m *Memory) Drain() []correlator.EventRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]correlator.EventRecord(nil), m.records[m.drained:]...)
	m.drained = len(m.records)
	return out
}

// Summary returns the flow summary, nil before the run finished
func (m *Memory) Summary() []correlator.FlowSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]correlator.FlowSummary(nil), m.summary...)
}

// Len returns the number of records written
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
