package sink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"

	"github.com/miretskiy/handovertrace/correlator"
)

// EventLogHeader is the fixed column order of the event log
var EventLogHeader = []string{
	"Time", "EntityID", "OldCellID", "NewCellID",
	"RSRP_Old", "RSRP_New", "RSRQ_Old", "RSRQ_New", "SINR_Old", "SINR_New",
	"Throughput_DL", "Throughput_UL", "X", "Y", "Speed", "RecordType",
}

// FlowSummaryHeader is the fixed column order of the traffic summary
var FlowSummaryHeader = []string{
	"FlowID", "Source", "Destination", "Throughput_DL_Mbps", "Throughput_UL_Mbps",
	"PacketsSent", "PacketsReceived", "PacketsLost", "DelayMean_ms", "JitterMean_ms",
}

// EventLog appends HANDOVER and MEASUREMENT rows. Every row is flushed to the
// file before the write returns; with durable set it is also fsynced.
type EventLog struct {
	f       *os.File // nil when writing to a caller-owned io.Writer
	w       *csv.Writer
	durable bool
}

// NewEventLog creates (or truncates) path, creating parent directories, and
// writes the header.
func NewEventLog(path string, durable bool) (*EventLog, error) {
	f, err := create(path)
	if err != nil {
		return nil, err
	}
	l := &EventLog{f: f, w: csv.NewWriter(f), durable: durable}
	if err := l.write(EventLogHeader); err != nil {
		_ = f.Close()
		return nil, correlator.ErrSinkFailure(fmt.Sprintf("write header to %q", path), err)
	}
	return l, nil
}

// NewEventLogWriter writes the log to w. Close does not close w.
func NewEventLogWriter(w io.Writer) (*EventLog, error) {
	l := &EventLog{w: csv.NewWriter(w)}
	if err := l.write(EventLogHeader); err != nil {
		return nil, err
	}
	return l, nil
}

// WriteHandover appends one HANDOVER row
func (l *EventLog) WriteHandover(rec correlator.EventRecord) error {
	return l.write([]string{
		ff(rec.Time),
		strconv.FormatUint(uint64(rec.Entity), 10),
		cellID(rec.OldCell),
		cellID(rec.NewCell),
		ff(rec.Old.RSRP), ff(rec.New.RSRP),
		ff(rec.Old.RSRQ), ff(rec.New.RSRQ),
		ff(rec.Old.SINR), ff(rec.New.SINR),
		ff(rec.ThroughputDL), ff(rec.ThroughputUL),
		ff(rec.Position.X), ff(rec.Position.Y), ff(rec.Speed),
		correlator.RecordHandover.String(),
	})
}

// WriteMeasurement appends one MEASUREMENT row. The serving cell goes in
// both cell columns and the _Old quality columns stay empty.
func (l *EventLog) WriteMeasurement(rec correlator.EventRecord) error {
	return l.write([]string{
		ff(rec.Time),
		strconv.FormatUint(uint64(rec.Entity), 10),
		cellID(rec.NewCell),
		cellID(rec.NewCell),
		"", ff(rec.New.RSRP),
		"", ff(rec.New.RSRQ),
		"", ff(rec.New.SINR),
		ff(rec.ThroughputDL), ff(rec.ThroughputUL),
		ff(rec.Position.X), ff(rec.Position.Y), ff(rec.Speed),
		correlator.RecordMeasurement.String(),
	})
}

func (l *EventLog) write(row []string) error {
	if err := l.w.Write(row); err != nil {
		return err
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return err
	}
	if l.durable && l.f != nil {
		return l.f.Sync()
	}
	return nil
}

// Close flushes and closes the underlying file
func (l *EventLog) Close() error {
	l.w.Flush()
	err := l.w.Error()
	if l.f != nil {
		err = errors.Join(err, l.f.Close())
		l.f = nil
	}
	return err
}

// FlowSummaryFile writes the end-of-run traffic summary
type FlowSummaryFile struct {
	f *os.File
	w *csv.Writer
}

// NewFlowSummaryFile opens the summary destination up front so an
// unwritable path fails the run before it starts. The header and rows are
// written together by WriteFlowSummary.
func NewFlowSummaryFile(path string) (*FlowSummaryFile, error) {
	f, err := create(path)
	if err != nil {
		return nil, err
	}
	return &FlowSummaryFile{f: f, w: csv.NewWriter(f)}, nil
}

// NewFlowSummaryWriter writes the summary to w
func NewFlowSummaryWriter(w io.Writer) *FlowSummaryFile {
	return &FlowSummaryFile{w: csv.NewWriter(w)}
}

// WriteFlowSummary writes the header and one row per flow
func (s *FlowSummaryFile) WriteFlowSummary(rows []correlator.FlowSummary) error {
	if err := s.w.Write(FlowSummaryHeader); err != nil {
		return err
	}
	for _, r := range rows {
		row := []string{
			strconv.FormatUint(uint64(r.FlowID), 10),
			addr(r.Source),
			addr(r.Destination),
			ff(r.ThroughputDLMbps),
			ff(r.ThroughputULMbps),
			strconv.FormatUint(r.PacketsSent, 10),
			strconv.FormatUint(r.PacketsReceived, 10),
			strconv.FormatUint(r.PacketsLost, 10),
			ff(r.DelayMeanMs),
			ff(r.JitterMeanMs),
		}
		if err := s.w.Write(row); err != nil {
			return err
		}
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes and closes the underlying file
func (s *FlowSummaryFile) Close() error {
	s.w.Flush()
	err := s.w.Error()
	if s.f != nil {
		err = errors.Join(err, s.f.Close())
		s.f = nil
	}
	return err
}

// CSV bundles the event log and the flow summary into one sink
type CSV struct {
	*EventLog
	*FlowSummaryFile
}

// OpenCSV opens both outputs. Failure to open either is a sink failure.
func OpenCSV(eventLogPath, flowSummaryPath string, durable bool) (*CSV, error) {
	log, err := NewEventLog(eventLogPath, durable)
	if err != nil {
		return nil, err
	}
	summary, err := NewFlowSummaryFile(flowSummaryPath)
	if err != nil {
		_ = log.Close()
		return nil, err
	}
	return &CSV{EventLog: log, FlowSummaryFile: summary}, nil
}

// Close closes both outputs and reports the first error
func (c *CSV) Close() error {
	return errors.Join(c.EventLog.Close(), c.FlowSummaryFile.Close())
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, correlator.ErrSinkFailure(fmt.Sprintf("create directory for %q", path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, correlator.ErrSinkFailure(fmt.Sprintf("open %q", path), err)
	}
	return f, nil
}

func ff(v float64) string { return fmt.Sprintf("%.6f", v) }

func cellID(c correlator.CellID) string { return strconv.FormatUint(uint64(c), 10) }

func addr(a netip.Addr) string {
	if !a.IsValid() {
		return ""
	}
	return a.String()
}
