package replay

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/miretskiy/handovertrace/correlator"
	"github.com/miretskiy/handovertrace/flowmon"
	"github.com/miretskiy/handovertrace/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTrace = `
{"t":0.1,"kind":"address","imsi":1,"addr":"7.0.0.2"}
{"t":0.2,"kind":"connection_established","imsi":1,"cell":1,"rnti":3}
{"t":0.3,"kind":"phy_rsrp_sinr","cell":1,"rnti":3,"rsrp":-85,"sinr":12,"cc":0}
{"t":0.7,"kind":"measurement_report","imsi":1,"cell":2,"rnti":4,"meas_id":1,"rsrp_result":60,"rsrq_result":21}
{"t":0.5,"kind":"handover_start","imsi":1,"cell":1,"target_cell":2,"rnti":3}
{"t":0.6,"kind":"handover_end_ok","imsi":1,"cell":2,"rnti":4}
{"t":1.0,"kind":"flow_counters","flow":1,"src":"1.0.0.2","dst":"7.0.0.2","src_port":49153,"dst_port":1234,"protocol":17,"tx_bytes":125000,"rx_bytes":125000,"tx_packets":100,"rx_packets":100}
{"t":1.0,"kind":"flow_counters","flow":2,"src":"7.0.0.2","dst":"1.0.0.2","src_port":49154,"dst_port":1235,"protocol":17,"tx_bytes":250000,"rx_bytes":250000,"tx_packets":200,"rx_packets":200}
`

func TestLoad(t *testing.T) {
	tr, err := Load(strings.NewReader(sampleTrace))
	require.NoError(t, err)

	n, flows, addrs := tr.Counts()
	assert.Equal(t, 5, n)
	assert.Equal(t, 2, flows)
	assert.Equal(t, 1, addrs)

	// Sorted by time regardless of file order
	var types []correlator.EventType
	for _, n := range tr.Notifications {
		types = append(types, n.Type())
	}
	require.Equal(t, []correlator.EventType{
		correlator.EventTypeConnectionEstablished,
		correlator.EventTypeLinkQualitySample,
		correlator.EventTypeHandoverStart,
		correlator.EventTypeHandoverComplete,
		correlator.EventTypeMeasurementReport,
	}, types)

	start := tr.Notifications[2].(*correlator.HandoverStartEvent)
	assert.Equal(t, correlator.CellID(2), start.TargetCell())
	assert.Equal(t, uint16(3), start.RNTI())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"unknown kind", `{"t":1,"kind":"rrc_reconfig"}`, "unknown kind"},
		{"missing time", `{"kind":"handover_start","imsi":1}`, `missing "t"`},
		{"negative time", `{"t":-1,"kind":"handover_start","imsi":1}`, "negative time"},
		{"phy without sinr", `{"t":1,"kind":"phy_rsrp_sinr","cell":1,"rsrp":-80}`, "requires rsrp and sinr"},
		{"report without codes", `{"t":1,"kind":"measurement_report","imsi":1,"cell":1}`, "requires rsrp_result"},
		{"bad flow address", `{"t":1,"kind":"flow_counters","flow":1,"src":"nope","dst":"7.0.0.2"}`, "bad src"},
		{"bad json", `{"t":1,"kind":`, "line 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := `{"t":0,"kind":"connection_established","imsi":1,"cell":1}` + "\n" + tt.input + "\n"
			_, err := Load(strings.NewReader(input))
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
			require.Contains(t, err.Error(), "line 2")
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "notifications.jsonl"))
	require.Error(t, err)
	require.True(t, correlator.IsKind(err, correlator.KindMissingResource))
	require.Contains(t, err.Error(), "notifications.jsonl")
}

func TestInstall_DrivesEngine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notifications.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sampleTrace), 0o644))
	tr, err := LoadFile(path)
	require.NoError(t, err)

	cfg := correlator.DefaultConfig()
	cfg.DurationSec = 5
	monitor := flowmon.NewMonitor()
	book := flowmon.NewAddressBook()
	mem := sink.NewMemory()
	engine, err := correlator.NewEngine(cfg, correlator.Collaborators{
		Sink:      mem,
		Flows:     monitor,
		Addresses: book,
	})
	require.NoError(t, err)
	require.NoError(t, tr.Install(engine, monitor, book))

	engine.StepUntil(1.0)
	records := mem.Records()
	require.Len(t, records, 2)

	ho := records[0]
	assert.Equal(t, correlator.RecordHandover, ho.Kind)
	assert.InDelta(t, 0.6, ho.Time, 1e-9)
	assert.Equal(t, correlator.CellID(1), ho.OldCell)
	assert.Equal(t, correlator.CellID(2), ho.NewCell)
	// Entity has no own values yet: RSRP/SINR from the old cell broadcast
	assert.Equal(t, -85.0, ho.Old.RSRP)
	assert.Equal(t, 12.0, ho.Old.SINR)
	assert.Equal(t, correlator.DefaultRSRQ, ho.Old.RSRQ)

	mr := records[1]
	assert.Equal(t, correlator.RecordMeasurement, mr.Kind)
	assert.Equal(t, -80.0, mr.New.RSRP)
	assert.Equal(t, -9.0, mr.New.RSRQ)
	// Cell 2 never broadcast SINR
	assert.Equal(t, correlator.DefaultSINR, mr.New.SINR)

	snap := engine.Snapshot(1)
	assert.InDelta(t, 1.0, snap.ThroughputDL, 1e-9)
	assert.InDelta(t, 2.0, snap.ThroughputUL, 1e-9)
	assert.Equal(t, correlator.CellID(2), snap.ServingCell)
}

func TestInstall_RequiresCollaborators(t *testing.T) {
	tr, err := Load(strings.NewReader(sampleTrace))
	require.NoError(t, err)

	engine, err := correlator.NewEngine(correlator.DefaultConfig(), correlator.Collaborators{Sink: sink.NewMemory()})
	require.NoError(t, err)
	require.Error(t, tr.Install(engine, nil, flowmon.NewAddressBook()))
	require.Error(t, tr.Install(engine, flowmon.NewMonitor(), nil))
}
