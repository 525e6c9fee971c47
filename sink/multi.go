package sink

import (
	"io"

	"github.com/miretskiy/handovertrace/correlator"
)

// MultiSink fans records out to several sinks
type MultiSink struct {
	sinks []correlator.RecordSink
}

// Multi creates a sink that forwards every call to all non-nil sinks.
// Every sink sees every record; the first error is returned.
func Multi(sinks ...correlator.RecordSink) *MultiSink {
	out := &MultiSink{sinks: make([]correlator.RecordSink, 0, len(sinks))}
	for _, s := range sinks {
		if s != nil {
			out.sinks = append(out.sinks, s)
		}
	}
	return out
}

func (m *MultiSink) WriteHandover(rec correlator.EventRecord) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.WriteHandover(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *MultiSink) WriteMeasurement(rec correlator.EventRecord) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.WriteMeasurement(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// WriteFlowSummary forwards to the sinks that accept a summary
func (m *MultiSink) WriteFlowSummary(rows []correlator.FlowSummary) error {
	var firstErr error
	for _, s := range m.sinks {
		ss, ok := s.(correlator.SummarySink)
		if !ok {
			continue
		}
		if err := ss.WriteFlowSummary(rows); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes the sinks that can be closed
func (m *MultiSink) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		c, ok := s.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
