package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/miretskiy/handovertrace/correlator"
	"github.com/miretskiy/handovertrace/flowmon"
	"github.com/stretchr/testify/require"
)

const trace = `{"t":0.5,"kind":"connection_established","imsi":1,"cell":3,"rnti":1}
{"t":1.2,"kind":"handover_end_ok","imsi":1,"cell":4,"rnti":2}
{"t":1.4,"kind":"handover_end_ok","imsi":2,"cell":4,"rnti":3}
`

func writeScenario(t *testing.T) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	tracePath := filepath.Join(dir, "notifications.jsonl")
	require.NoError(t, os.WriteFile(tracePath, []byte(trace), 0o644))

	path = filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  numEntities: 2
  durationSec: 3
mobility:
  model: random_waypoint
  seed: 3
tracePath: `+tracePath+`
output:
  eventLogPath: `+filepath.Join(dir, "events.csv")+`
  flowSummaryPath: `+filepath.Join(dir, "flows.csv")+`
`), 0o644))
	return dir, path
}

func TestRun_WritesResultsAndCSV(t *testing.T) {
	dir, path := writeScenario(t)
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"-config", path, "-step", "0.5"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var res results
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	require.NotEmpty(t, res.RunID)
	require.Equal(t, 3.0, res.VirtualTime)
	require.False(t, res.Interrupted)
	require.Equal(t, 2, res.Metrics.HandoverRecords)
	require.Equal(t, 1, res.Metrics.DegradedHandovers)
	require.Len(t, res.Entities, 2)

	data, err := os.ReadFile(filepath.Join(dir, "events.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// Header, 2 snapshot ticks x 2 entities, 2 handovers
	require.Len(t, lines, 7)
	require.FileExists(t, filepath.Join(dir, "flows.csv"))
}

func TestRun_Overrides(t *testing.T) {
	dir, path := writeScenario(t)
	out := filepath.Join(dir, "results.json")
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{
		"-config", path,
		"-duration", "2",
		"-throughput", "interval",
		"-traffic", "on_off",
		"-seed", "11",
		"-events", filepath.Join(dir, "other.csv"),
		"-output", out,
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	require.Empty(t, stdout.String())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var res results
	require.NoError(t, json.Unmarshal(data, &res))
	require.Equal(t, 2.0, res.Config.Engine.DurationSec)
	require.Equal(t, correlator.ThroughputInterval, res.Config.Engine.ThroughputMode)
	require.Equal(t, flowmon.TrafficOnOff, res.Config.Traffic.Model)
	require.Equal(t, int64(11), res.Config.Traffic.Seed)
	require.Equal(t, int64(11), res.Config.Mobility.Seed)
	require.FileExists(t, filepath.Join(dir, "other.csv"))
}

func TestRun_Interrupted(t *testing.T) {
	_, path := writeScenario(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"-config", path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	var res results
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	require.True(t, res.Interrupted)
	require.Equal(t, 0.0, res.VirtualTime)
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{"bad flag", []string{"-nope"}, 2, "flag provided but not defined"},
		{"bad step", []string{"-step", "0"}, 2, "-step must be > 0"},
		{"missing config", []string{"-config", filepath.Join(dir, "absent.json")}, 1, "absent.json"},
		{"missing trace", []string{"-trace", filepath.Join(dir, "absent.jsonl"), "-events", filepath.Join(dir, "e.csv"), "-flows", filepath.Join(dir, "f.csv")}, 1, "absent.jsonl"},
		{"missing mobility", []string{"-mobility", filepath.Join(dir, "absent.tcl")}, 1, "absent.tcl"},
		{"bad mode", []string{"-throughput", "hourly"}, 1, "invalid throughput mode"},
		{"bad traffic", []string{"-traffic", "bursty"}, 1, "invalid TrafficModel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(context.Background(), tt.args, &stdout, &stderr)
			require.Equal(t, tt.code, code)
			require.Contains(t, stderr.String(), tt.want)
			require.Empty(t, stdout.String())
		})
	}
}
