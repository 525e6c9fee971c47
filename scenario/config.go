// Package scenario describes one correlation run (engine parameters, inputs
// and outputs) and wires the collaborators into a runnable engine.
package scenario

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/miretskiy/handovertrace/correlator"
	"github.com/miretskiy/handovertrace/flowmon"
	"github.com/miretskiy/handovertrace/internal/logging"
	"github.com/miretskiy/handovertrace/internal/observability"
	"github.com/miretskiy/handovertrace/mobility"
	"gopkg.in/yaml.v3"
)

// Default output file names, written to the working directory
const (
	DefaultEventLogPath    = "handover_dataset.csv"
	DefaultFlowSummaryPath = "flow_statistics.csv"
)

// OutputConfig names the CSV outputs
type OutputConfig struct {
	EventLogPath    string `json:"eventLogPath" yaml:"eventLogPath"`
	FlowSummaryPath string `json:"flowSummaryPath" yaml:"flowSummaryPath"`
	Durable         bool   `json:"durable" yaml:"durable"` // fsync every event log row
}

// Config is everything needed to reproduce one run
type Config struct {
	Engine    correlator.Config           `json:"engine" yaml:"engine"`
	Mobility  mobility.Config             `json:"mobility" yaml:"mobility"`
	Output    OutputConfig                `json:"output" yaml:"output"`
	TracePath string                      `json:"tracePath,omitempty" yaml:"tracePath,omitempty"` // JSONL notification trace
	Traffic   flowmon.TrafficConfig       `json:"traffic" yaml:"traffic"`                         // used when the trace has no flow samples
	Logging   logging.Config              `json:"logging" yaml:"logging"`
	Tracing   observability.TracingConfig `json:"tracing" yaml:"tracing"`
}

// Default returns the reference scenario: default engine parameters, random
// waypoint mobility, 1 Mbps flows per entity and the standard output names
func Default() Config {
	return Config{
		Engine:   correlator.DefaultConfig(),
		Mobility: mobility.DefaultConfig(),
		Traffic:  flowmon.DefaultTrafficConfig(),
		Output: OutputConfig{
			EventLogPath:    DefaultEventLogPath,
			FlowSummaryPath: DefaultFlowSummaryPath,
		},
		Logging: logging.Config{Level: "info", Format: "text"},
		Tracing: observability.TracingConfig{Exporter: "stdout", SampleRatio: 1.0},
	}
}

// Validate checks every section
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Mobility.Validate(); err != nil {
		return err
	}
	if err := c.Traffic.Validate(); err != nil {
		return err
	}
	if c.Output.EventLogPath == "" {
		return correlator.ErrInvalidConfig("output eventLogPath is required")
	}
	if c.Output.FlowSummaryPath == "" {
		return correlator.ErrInvalidConfig("output flowSummaryPath is required")
	}
	if c.Output.EventLogPath == c.Output.FlowSummaryPath {
		return correlator.ErrInvalidConfig("event log and flow summary must be different files")
	}
	return nil
}

// Load reads a scenario file over the defaults. Files ending in .yaml or
// .yml are YAML, anything else is JSON. Fields absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, correlator.ErrMissingResource(path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, correlator.ErrInvalidConfig(fmt.Sprintf("parse %s: %v", path, err))
	}
	return cfg, nil
}

// Save writes cfg to path in the format implied by its extension
func Save(path string, cfg Config) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
