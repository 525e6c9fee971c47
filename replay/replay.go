// Package replay loads a recorded notification stream (JSON Lines) and feeds
// it to a correlator engine together with the flow counters and address
// assignments recorded alongside it.
package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"os"
	"sort"

	"github.com/miretskiy/handovertrace/correlator"
	"github.com/miretskiy/handovertrace/flowmon"
)

// Kind names one line type of the trace
type Kind string

const (
	KindHandoverStart         Kind = "handover_start"
	KindHandoverEndOK         Kind = "handover_end_ok"
	KindConnectionEstablished Kind = "connection_established"
	KindPhyRsrpSinr           Kind = "phy_rsrp_sinr"
	KindMeasurementReport     Kind = "measurement_report"
	KindFlowCounters          Kind = "flow_counters"
	KindAddress               Kind = "address"
)

// line is one JSON object of the trace. Fields not used by a kind are ignored.
type line struct {
	T    *float64 `json:"t"`
	Kind Kind     `json:"kind"`

	IMSI       uint64 `json:"imsi"`
	Cell       uint16 `json:"cell"`
	TargetCell uint16 `json:"target_cell"`
	RNTI       uint16 `json:"rnti"`

	RSRP       *float64 `json:"rsrp"`
	SINR       *float64 `json:"sinr"`
	CC         uint8    `json:"cc"`
	MeasID     uint8    `json:"meas_id"`
	RSRPResult *uint8   `json:"rsrp_result"`
	RSRQResult *uint8   `json:"rsrq_result"`

	Flow      uint32  `json:"flow"`
	Src       string  `json:"src"`
	Dst       string  `json:"dst"`
	SrcPort   uint16  `json:"src_port"`
	DstPort   uint16  `json:"dst_port"`
	Protocol  uint8   `json:"protocol"`
	TxBytes   uint64  `json:"tx_bytes"`
	RxBytes   uint64  `json:"rx_bytes"`
	TxPackets uint64  `json:"tx_packets"`
	RxPackets uint64  `json:"rx_packets"`
	Lost      uint64  `json:"lost_packets"`
	DelaySum  float64 `json:"delay_sum"`
	JitterSum float64 `json:"jitter_sum"`

	Addr string `json:"addr"`
}

// Assignment binds an address to an entity from At onwards
type Assignment struct {
	At     float64
	Entity correlator.EntityID
	Addr   netip.Addr
}

// Trace is a parsed notification stream
type Trace struct {
	Notifications []correlator.Notification // sorted by timestamp, file order on ties
	Flows         []flowmon.Sample
	Addresses     []Assignment
}

// Load parses a JSON Lines trace. Blank lines are skipped; an unknown kind
// or a line missing a required field is an error naming the line.
func Load(r io.Reader) (*Trace, error) {
	tr := &Trace{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var l line
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if err := tr.add(l); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading trace: %w", err)
	}
	sort.SliceStable(tr.Notifications, func(i, j int) bool {
		return tr.Notifications[i].Timestamp() < tr.Notifications[j].Timestamp()
	})
	return tr, nil
}

// LoadFile parses the trace at path. A missing file is a missing-resource
// error naming the path.
func LoadFile(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, correlator.ErrMissingResource(path, err)
	}
	defer f.Close()

	tr, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tr, nil
}

func (tr *Trace) add(l line) error {
	if l.T == nil {
		return fmt.Errorf("missing \"t\"")
	}
	t := *l.T
	if t < 0 {
		return fmt.Errorf("negative time %v", t)
	}
	entity := correlator.EntityID(l.IMSI)
	cell := correlator.CellID(l.Cell)

	switch l.Kind {
	case KindHandoverStart:
		tr.Notifications = append(tr.Notifications,
			correlator.NewHandoverStartEvent(t, entity, cell, l.RNTI, correlator.CellID(l.TargetCell)))
	case KindHandoverEndOK:
		tr.Notifications = append(tr.Notifications,
			correlator.NewHandoverCompleteEvent(t, entity, cell, l.RNTI))
	case KindConnectionEstablished:
		tr.Notifications = append(tr.Notifications,
			correlator.NewConnectionEstablishedEvent(t, entity, cell, l.RNTI))
	case KindPhyRsrpSinr:
		if l.RSRP == nil || l.SINR == nil {
			return fmt.Errorf("%s requires rsrp and sinr", l.Kind)
		}
		tr.Notifications = append(tr.Notifications,
			correlator.NewLinkQualitySampleEvent(t, cell, l.RNTI, *l.RSRP, *l.SINR, l.CC))
	case KindMeasurementReport:
		if l.RSRPResult == nil || l.RSRQResult == nil {
			return fmt.Errorf("%s requires rsrp_result and rsrq_result", l.Kind)
		}
		tr.Notifications = append(tr.Notifications,
			correlator.NewMeasurementReportEvent(t, entity, cell, l.RNTI, l.MeasID, *l.RSRPResult, *l.RSRQResult))
	case KindFlowCounters:
		src, err := netip.ParseAddr(l.Src)
		if err != nil {
			return fmt.Errorf("flow %d: bad src: %w", l.Flow, err)
		}
		dst, err := netip.ParseAddr(l.Dst)
		if err != nil {
			return fmt.Errorf("flow %d: bad dst: %w", l.Flow, err)
		}
		tr.Flows = append(tr.Flows, flowmon.Sample{At: t, Stats: correlator.FlowStats{
			FlowID: l.Flow,
			Tuple: correlator.FiveTuple{
				Source:          src,
				Destination:     dst,
				SourcePort:      l.SrcPort,
				DestinationPort: l.DstPort,
				Protocol:        l.Protocol,
			},
			TxBytes:     l.TxBytes,
			RxBytes:     l.RxBytes,
			TxPackets:   l.TxPackets,
			RxPackets:   l.RxPackets,
			LostPackets: l.Lost,
			DelaySum:    l.DelaySum,
			JitterSum:   l.JitterSum,
		}})
	case KindAddress:
		addr, err := netip.ParseAddr(l.Addr)
		if err != nil {
			return fmt.Errorf("bad addr: %w", err)
		}
		tr.Addresses = append(tr.Addresses, Assignment{At: t, Entity: entity, Addr: addr})
	default:
		return fmt.Errorf("unknown kind %q", l.Kind)
	}
	return nil
}

// Install records the trace's flow samples in monitor, its address
// assignments in book, and delivers every notification to engine. Either
// collaborator may be nil when the trace carries none of its data.
func (tr *Trace) Install(engine *correlator.Engine, monitor *flowmon.Monitor, book *flowmon.AddressBook) error {
	if len(tr.Flows) > 0 {
		if monitor == nil {
			return fmt.Errorf("trace has %d flow samples but no flow monitor", len(tr.Flows))
		}
		for _, s := range tr.Flows {
			if err := monitor.Record(s); err != nil {
				return err
			}
		}
	}
	if len(tr.Addresses) > 0 {
		if book == nil {
			return fmt.Errorf("trace has %d address assignments but no address book", len(tr.Addresses))
		}
		for _, a := range tr.Addresses {
			book.Assign(a.Entity, a.Addr, a.At)
		}
	}
	for _, n := range tr.Notifications {
		if err := engine.Deliver(n); err != nil {
			return err
		}
	}
	return nil
}

// Counts reports how many lines of each broad category the trace holds
func (tr *Trace) Counts() (notifications, flowSamples, addresses int) {
	return len(tr.Notifications), len(tr.Flows), len(tr.Addresses)
}
