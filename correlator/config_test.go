package correlator

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestConfig_DefaultIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 10, cfg.NumEntities)
	require.Equal(t, 8, cfg.NumCells)
	require.Equal(t, 100.0, cfg.DurationSec)
	require.Equal(t, 0.5, cfg.TrafficIntervalSec)
	require.Equal(t, 1.0, cfg.SnapshotIntervalSec)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero duration", func(c *Config) { c.DurationSec = 0 }},
		{"negative entities", func(c *Config) { c.NumEntities = -1 }},
		{"negative cells", func(c *Config) { c.NumCells = -1 }},
		{"zero traffic interval", func(c *Config) { c.TrafficIntervalSec = 0 }},
		{"zero snapshot interval", func(c *Config) { c.SnapshotIntervalSec = 0 }},
		{"negative hysteresis", func(c *Config) { c.HysteresisDB = -1 }},
		{"negative time to trigger", func(c *Config) { c.TimeToTriggerMs = -1 }},
		{"negative start", func(c *Config) { c.SnapshotStartSec = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, IsKind(err, KindInvalidConfig))
		})
	}
}

func TestThroughputMode_JSON(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThroughputMode = ThroughputInterval
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.Contains(t, string(data), `"throughputMode":"interval"`)

	var decoded Config
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, cfg, decoded)

	require.Error(t, json.Unmarshal([]byte(`{"throughputMode":"ewma"}`), &decoded))
}

func TestThroughputMode_YAML(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte("durationSec: 20\nthroughputMode: interval\n"), &cfg))
	require.Equal(t, ThroughputInterval, cfg.ThroughputMode)
	require.Equal(t, 20.0, cfg.DurationSec)

	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	require.Contains(t, string(out), "throughputMode: interval")
}

func TestSimError_Wrapping(t *testing.T) {
	cause := errors.New("no such file")
	err := fmt.Errorf("load trace: %w", ErrMissingResource("mobility.tcl", cause))

	require.True(t, IsKind(err, KindMissingResource))
	require.False(t, IsKind(err, KindSinkFailure))
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "mobility.tcl")
}
