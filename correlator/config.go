package correlator

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ThroughputMode selects how the traffic sampler turns cumulative counters into a rate
type ThroughputMode int

const (
	ThroughputRunningAverage ThroughputMode = iota // cumulative bytes / total elapsed time
	ThroughputInterval                             // bytes since previous pass / time since previous pass
)

// String returns the string representation of ThroughputMode
func (tm ThroughputMode) String() string {
	switch tm {
	case ThroughputRunningAverage:
		return "running_average"
	case ThroughputInterval:
		return "interval"
	default:
		return "running_average"
	}
}

// ParseThroughputMode parses a string into ThroughputMode
func ParseThroughputMode(s string) (ThroughputMode, error) {
	switch s {
	case "running_average", "":
		return ThroughputRunningAverage, nil
	case "interval":
		return ThroughputInterval, nil
	default:
		return ThroughputRunningAverage, fmt.Errorf("invalid throughput mode: %s (must be 'running_average' or 'interval')", s)
	}
}

// MarshalJSON implements json.Marshaler for ThroughputMode
func (tm ThroughputMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(tm.String())
}

// UnmarshalJSON implements json.Unmarshaler for ThroughputMode
func (tm *ThroughputMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseThroughputMode(s)
	if err != nil {
		return err
	}
	*tm = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler for ThroughputMode
func (tm ThroughputMode) MarshalYAML() (interface{}, error) {
	return tm.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for ThroughputMode
func (tm *ThroughputMode) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseThroughputMode(s)
	if err != nil {
		return err
	}
	*tm = parsed
	return nil
}

// Config holds the engine parameters. Cell count, hysteresis and
// time-to-trigger describe the scenario that produced the notifications;
// the engine carries them through to results but makes no radio decisions.
type Config struct {
	NumEntities         int            `json:"numEntities" yaml:"numEntities"`                 // Mobile clients tracked by the snapshot sampler
	NumCells            int            `json:"numCells" yaml:"numCells"`                       // Access points in the scenario
	DurationSec         float64        `json:"durationSec" yaml:"durationSec"`                 // Run length; events at or after this are not processed
	HysteresisDB        float64        `json:"hysteresisDB" yaml:"hysteresisDB"`               // A3 measurement hysteresis
	TimeToTriggerMs     int            `json:"timeToTriggerMs" yaml:"timeToTriggerMs"`         // A3 time-to-trigger
	TrafficIntervalSec  float64        `json:"trafficIntervalSec" yaml:"trafficIntervalSec"`   // Traffic sampler period
	TrafficStartSec     float64        `json:"trafficStartSec" yaml:"trafficStartSec"`         // First traffic sampler tick
	SnapshotIntervalSec float64        `json:"snapshotIntervalSec" yaml:"snapshotIntervalSec"` // Snapshot sampler period
	SnapshotStartSec    float64        `json:"snapshotStartSec" yaml:"snapshotStartSec"`       // First snapshot sampler tick
	ThroughputMode      ThroughputMode `json:"throughputMode" yaml:"throughputMode"`           // Rate conversion for the traffic sampler
}

// DefaultConfig returns the parameters of the reference scenario
func DefaultConfig() Config {
	return Config{
		NumEntities:         10,    // 10 UEs
		NumCells:            8,     // 8 gNBs along the road
		DurationSec:         100.0, // 100 s run
		HysteresisDB:        3.0,   // 3 dB
		TimeToTriggerMs:     256,   // 256 ms
		TrafficIntervalSec:  0.5,   // 2 passes per second
		TrafficStartSec:     1.0,   // Let flows start before the first pass
		SnapshotIntervalSec: 1.0,   // One record per entity per second
		SnapshotStartSec:    1.0,
		ThroughputMode:      ThroughputRunningAverage,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.NumEntities < 0 {
		return ErrInvalidConfig("numEntities must be >= 0")
	}
	if c.NumCells < 0 {
		return ErrInvalidConfig("numCells must be >= 0")
	}
	if c.DurationSec <= 0 {
		return ErrInvalidConfig("durationSec must be > 0")
	}
	if c.HysteresisDB < 0 {
		return ErrInvalidConfig("hysteresisDB must be >= 0")
	}
	if c.TimeToTriggerMs < 0 {
		return ErrInvalidConfig("timeToTriggerMs must be >= 0")
	}
	if c.TrafficIntervalSec <= 0 {
		return ErrInvalidConfig("trafficIntervalSec must be > 0")
	}
	if c.SnapshotIntervalSec <= 0 {
		return ErrInvalidConfig("snapshotIntervalSec must be > 0")
	}
	if c.TrafficStartSec < 0 || c.SnapshotStartSec < 0 {
		return ErrInvalidConfig("sampler start times must be >= 0")
	}
	return nil
}
