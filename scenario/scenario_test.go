package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/miretskiy/handovertrace/correlator"
	"github.com/miretskiy/handovertrace/mobility"
	"github.com/miretskiy/handovertrace/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const notifications = `{"t":0.1,"kind":"address","imsi":1,"addr":"7.0.0.2"}
{"t":0.2,"kind":"connection_established","imsi":1,"cell":1,"rnti":1}
{"t":0.3,"kind":"phy_rsrp_sinr","cell":1,"rnti":1,"rsrp":-90,"sinr":8}
{"t":1.6,"kind":"handover_start","imsi":1,"cell":1,"target_cell":2,"rnti":1}
{"t":1.7,"kind":"handover_end_ok","imsi":1,"cell":2,"rnti":9}
{"t":2.5,"kind":"measurement_report","imsi":1,"cell":2,"rnti":9,"meas_id":1,"rsrp_result":50,"rsrq_result":20}
{"t":1.0,"kind":"flow_counters","flow":1,"src":"1.0.0.2","dst":"7.0.0.2","src_port":49153,"dst_port":1234,"protocol":17,"tx_bytes":100000,"rx_bytes":100000,"tx_packets":100,"rx_packets":100,"delay_sum":1.0,"jitter_sum":0.099}
{"t":3.0,"kind":"flow_counters","flow":1,"src":"1.0.0.2","dst":"7.0.0.2","src_port":49153,"dst_port":1234,"protocol":17,"tx_bytes":300000,"rx_bytes":300000,"tx_packets":300,"rx_packets":298,"lost_packets":2,"delay_sum":2.98,"jitter_sum":0.297}
`

const mobilityTrace = `$node_(0) set X_ 0.0
$node_(0) set Y_ 0.0
$node_(1) set X_ 500.0
$node_(1) set Y_ 0.0
$ns_ at 0.0 "$node_(0) setdest 1000.0 0.0 20.0"
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testScenario(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := Default()
	cfg.Engine.NumEntities = 2
	cfg.Engine.DurationSec = 4
	cfg.Mobility = mobility.Config{Model: mobility.ModelTrace, TracePath: writeFile(t, dir, "mobility.tcl", mobilityTrace)}
	cfg.TracePath = writeFile(t, dir, "notifications.jsonl", notifications)
	cfg.Output.EventLogPath = filepath.Join(dir, "out", DefaultEventLogPath)
	cfg.Output.FlowSummaryPath = filepath.Join(dir, "out", DefaultFlowSummaryPath)
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "handover_dataset.csv", cfg.Output.EventLogPath)
	assert.Equal(t, "flow_statistics.csv", cfg.Output.FlowSummaryPath)
	assert.Equal(t, mobility.ModelRandomWaypoint, cfg.Mobility.Model)
	assert.Equal(t, 10, cfg.Engine.NumEntities)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"engine", func(c *Config) { c.Engine.DurationSec = 0 }},
		{"mobility", func(c *Config) { c.Mobility.Model = mobility.ModelTrace }},
		{"no event log", func(c *Config) { c.Output.EventLogPath = "" }},
		{"no summary", func(c *Config) { c.Output.FlowSummaryPath = "" }},
		{"same file", func(c *Config) { c.Output.FlowSummaryPath = c.Output.EventLogPath }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, correlator.IsKind(err, correlator.KindInvalidConfig))
		})
	}
}

func TestLoad_YAMLKeepsDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "run.yaml", `
engine:
  durationSec: 30
  throughputMode: interval
mobility:
  model: none
output:
  durable: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30.0, cfg.Engine.DurationSec)
	assert.Equal(t, correlator.ThroughputInterval, cfg.Engine.ThroughputMode)
	assert.Equal(t, 10, cfg.Engine.NumEntities)
	assert.Equal(t, 0.5, cfg.Engine.TrafficIntervalSec)
	assert.Equal(t, mobility.ModelNone, cfg.Mobility.Model)
	assert.True(t, cfg.Output.Durable)
	assert.Equal(t, DefaultEventLogPath, cfg.Output.EventLogPath)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "run.json", `{"engine":{"numEntities":3},"tracePath":"n.jsonl"}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Engine.NumEntities)
	assert.Equal(t, "n.jsonl", cfg.TracePath)
	assert.Equal(t, correlator.ThroughputRunningAverage, cfg.Engine.ThroughputMode)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "missing.json"))
	require.True(t, correlator.IsKind(err, correlator.KindMissingResource))

	_, err = Load(writeFile(t, dir, "bad.json", `{"engine":`))
	require.True(t, correlator.IsKind(err, correlator.KindInvalidConfig))

	_, err = Load(writeFile(t, dir, "bad.yaml", "engine:\n  throughputMode: hourly\n"))
	require.True(t, correlator.IsKind(err, correlator.KindInvalidConfig))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Engine.ThroughputMode = correlator.ThroughputInterval
	cfg.Mobility.Seed = 99

	for _, name := range []string{"run.json", "run.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, cfg))
		loaded, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, cfg, loaded, name)
	}
}

func TestBuild_EndToEnd(t *testing.T) {
	cfg := testScenario(t)
	mem := sink.NewMemory()
	run, err := Build(cfg, Options{ExtraSinks: []correlator.RecordSink{mem}})
	require.NoError(t, err)
	require.NotEmpty(t, run.RunID)
	require.NotNil(t, run.Files)
	require.Equal(t, 2, run.Mobility.Len())

	require.NoError(t, run.Engine.Run())
	require.NoError(t, run.Finish())
	require.NoError(t, run.Close()) // idempotent

	m := run.Engine.Metrics()
	assert.Equal(t, 1, m.HandoverRecords)
	assert.Equal(t, 1, m.MeasurementRecords)
	assert.Equal(t, 0, m.DegradedHandovers)

	// 3 snapshot ticks (t=1,2,3) x 2 entities + 1 report + 1 handover
	records := mem.Records()
	require.Len(t, records, 8)

	ho := records[2]
	require.Equal(t, correlator.RecordHandover, ho.Kind)
	assert.Equal(t, correlator.CellID(1), ho.OldCell)
	assert.Equal(t, correlator.CellID(2), ho.NewCell)
	assert.Equal(t, -90.0, ho.Old.RSRP)
	assert.Equal(t, 8.0, ho.Old.SINR)
	// Entity 1 moved 20 m/s from the origin and was sampled at t=1
	assert.InDelta(t, 20.0, ho.Position.X, 1e-9)
	assert.InDelta(t, 20.0, ho.Speed, 1e-9)
	// 100000 bytes over 1.5 s of running average at the t=1.5 pass
	assert.InDelta(t, 100000*8/1.5/1e6, ho.ThroughputDL, 1e-9)

	data, err := os.ReadFile(cfg.Output.EventLogPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 9)
	require.True(t, strings.HasPrefix(lines[0], "Time,EntityID"))

	summary, err := os.ReadFile(cfg.Output.FlowSummaryPath)
	require.NoError(t, err)
	rows := strings.Split(strings.TrimSpace(string(summary)), "\n")
	require.Len(t, rows, 2)
	// 300000 bytes over the 4 s run is 0.6 Mbps
	require.Equal(t, "1,1.0.0.2,7.0.0.2,0.600000,0.600000,300,298,2,10.000000,1.000000", rows[1])
}

func TestBuild_NoFiles(t *testing.T) {
	cfg := testScenario(t)
	cfg.Mobility = mobility.Config{Model: mobility.ModelNone}
	mem := sink.NewMemory()
	run, err := Build(cfg, Options{NoFiles: true, ExtraSinks: []correlator.RecordSink{mem}})
	require.NoError(t, err)
	require.Nil(t, run.Files)
	require.Nil(t, run.Mobility)

	require.NoError(t, run.Engine.Run())
	require.NoError(t, run.Finish())
	// Without mobility only the handover and the report are written
	require.Len(t, mem.Records(), 2)
	require.Len(t, mem.Summary(), 1)

	_, err = os.Stat(cfg.Output.EventLogPath)
	require.True(t, os.IsNotExist(err))
}

func TestBuild_MissingInputs(t *testing.T) {
	cfg := testScenario(t)
	cfg.TracePath = filepath.Join(t.TempDir(), "gone.jsonl")
	_, err := Build(cfg, Options{NoFiles: true})
	require.True(t, correlator.IsKind(err, correlator.KindMissingResource))
	require.Contains(t, err.Error(), "gone.jsonl")

	cfg = testScenario(t)
	cfg.Mobility.TracePath = filepath.Join(t.TempDir(), "gone.tcl")
	_, err = Build(cfg, Options{NoFiles: true})
	require.True(t, correlator.IsKind(err, correlator.KindMissingResource))
}

func TestBuild_SyntheticTraffic(t *testing.T) {
	cfg := testScenario(t)
	dir := t.TempDir()
	cfg.TracePath = writeFile(t, dir, "no_flows.jsonl",
		`{"t":0.2,"kind":"connection_established","imsi":1,"cell":1,"rnti":1}`+"\n")
	mem := sink.NewMemory()
	run, err := Build(cfg, Options{NoFiles: true, ExtraSinks: []correlator.RecordSink{mem}})
	require.NoError(t, err)
	require.True(t, run.Traffic)
	require.Equal(t, 4, run.Monitor.Len())
	require.Equal(t, 2, run.Book.Len())

	require.NoError(t, run.Engine.Run())
	require.NoError(t, run.Finish())

	summary := mem.Summary()
	require.Len(t, summary, 4)
	for _, row := range summary {
		assert.InDelta(t, 1.0, row.ThroughputULMbps, 0.05)
		assert.InDelta(t, 10.0, row.DelayMeanMs, 1e-6)
	}
	// Once a traffic pass has run, snapshot rows carry the downlink rate
	for _, rec := range mem.Records() {
		if rec.Time >= 2 {
			assert.Greater(t, rec.ThroughputDL, 0.0)
		}
	}

	// A trace with its own flow samples suppresses the generator
	cfg = testScenario(t)
	run, err = Build(cfg, Options{NoFiles: true})
	require.NoError(t, err)
	require.False(t, run.Traffic)
	require.Equal(t, 1, run.Monitor.Len())

	cfg.Traffic.Enabled = false
	cfg.TracePath = ""
	run, err = Build(cfg, Options{NoFiles: true})
	require.NoError(t, err)
	require.False(t, run.Traffic)
	require.Zero(t, run.Monitor.Len())
}
