// Package flowmon holds the traffic side of a run: cumulative per-flow
// counters sampled over time and the IP address assigned to each entity.
package flowmon

import (
	"fmt"
	"sort"

	"github.com/miretskiy/handovertrace/correlator"
)

// Sample is the cumulative state of one flow at time At
type Sample struct {
	At    float64
	Stats correlator.FlowStats
}

type flowSeries struct {
	tuple   correlator.FiveTuple
	samples []Sample // sorted by At
}

// Monitor stores cumulative flow counters in time order and answers
// "what did the flow monitor say at time t". It implements
// correlator.FlowMonitor.
type Monitor struct {
	flows map[uint32]*flowSeries
	ids   []uint32 // sorted
}

// NewMonitor creates an empty monitor
func NewMonitor() *Monitor {
	return &Monitor{flows: make(map[uint32]*flowSeries)}
}

// Record adds a sample. Samples for one flow may arrive in any order but a
// flow keeps the five-tuple it was first seen with, and its counters must
// not go backwards in time.
func (m *Monitor) Record(s Sample) error {
	id := s.Stats.FlowID
	series, ok := m.flows[id]
	if !ok {
		series = &flowSeries{tuple: s.Stats.Tuple}
		m.flows[id] = series
		m.ids = append(m.ids, id)
		sort.Slice(m.ids, func(i, j int) bool { return m.ids[i] < m.ids[j] })
	} else if series.tuple != s.Stats.Tuple {
		return fmt.Errorf("flow %d: tuple changed from %s to %s", id, series.tuple, s.Stats.Tuple)
	}

	i := sort.Search(len(series.samples), func(i int) bool { return series.samples[i].At > s.At })
	if i > 0 && counterDecreased(series.samples[i-1].Stats, s.Stats) {
		return fmt.Errorf("flow %d: counters decrease at t=%v", id, s.At)
	}
	if i < len(series.samples) && counterDecreased(s.Stats, series.samples[i].Stats) {
		return fmt.Errorf("flow %d: counters decrease after t=%v", id, s.At)
	}
	series.samples = append(series.samples, Sample{})
	copy(series.samples[i+1:], series.samples[i:])
	series.samples[i] = s
	return nil
}

func counterDecreased(before, after correlator.FlowStats) bool {
	return after.TxBytes < before.TxBytes || after.RxBytes < before.RxBytes ||
		after.TxPackets < before.TxPackets || after.RxPackets < before.RxPackets
}

// FlowStats returns the latest sample of every flow at or before t.
// Flows with no sample yet are omitted.
func (m *Monitor) FlowStats(t float64) []correlator.FlowStats {
	out := make([]correlator.FlowStats, 0, len(m.ids))
	for _, id := range m.ids {
		series := m.flows[id]
		i := sort.Search(len(series.samples), func(i int) bool { return series.samples[i].At > t })
		if i == 0 {
			continue
		}
		out = append(out, series.samples[i-1].Stats)
	}
	return out
}

// Final returns the last sample of every flow
func (m *Monitor) Final() []correlator.FlowStats {
	out := make([]correlator.FlowStats, 0, len(m.ids))
	for _, id := range m.ids {
		series := m.flows[id]
		if len(series.samples) == 0 {
			continue
		}
		out = append(out, series.samples[len(series.samples)-1].Stats)
	}
	return out
}

// Len returns the number of flows seen
func (m *Monitor) Len() int { return len(m.ids) }
