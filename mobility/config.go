package mobility

import (
	"encoding/json"
	"fmt"

	"github.com/miretskiy/handovertrace/correlator"
)

// ModelKind selects where entity motion comes from
type ModelKind int

const (
	ModelRandomWaypoint ModelKind = iota // Generated motion, used when no trace is configured
	ModelTrace                           // ns-2 TCL trace file
	ModelNone                            // No mobility source; positions are never observed
)

// String returns the string representation of ModelKind
func (k ModelKind) String() string {
	switch k {
	case ModelRandomWaypoint:
		return "random_waypoint"
	case ModelTrace:
		return "trace"
	case ModelNone:
		return "none"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseModelKind parses a string into a ModelKind
func ParseModelKind(s string) (ModelKind, error) {
	switch s {
	case "random_waypoint", "":
		return ModelRandomWaypoint, nil
	case "trace":
		return ModelTrace, nil
	case "none":
		return ModelNone, nil
	default:
		return ModelRandomWaypoint, fmt.Errorf("invalid ModelKind: %s (must be 'random_waypoint', 'trace', or 'none')", s)
	}
}

// MarshalText lets JSON and YAML encode the kind by name
func (k ModelKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText lets JSON and YAML decode the kind by name
func (k *ModelKind) UnmarshalText(data []byte) error {
	parsed, err := ParseModelKind(string(data))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Config describes the mobility source for a run
type Config struct {
	Model     ModelKind `json:"model" yaml:"model"`
	TracePath string    `json:"tracePath,omitempty" yaml:"tracePath,omitempty"` // ns-2 trace, required for "trace"
	Area      Area      `json:"area" yaml:"area"`
	Speed     Draw      `json:"speed" yaml:"speed"` // m/s
	Pause     Draw      `json:"pause" yaml:"pause"` // seconds
	Seed      int64     `json:"seed" yaml:"seed"`
}

// DefaultConfig returns the random waypoint setup used when no trace is given
func DefaultConfig() Config {
	return Config{
		Model: ModelRandomWaypoint,
		Area:  Area{MinX: -5, MaxX: 3230, MinY: -5, MaxY: 1210},
		Speed: Draw{Shape: ShapeUniform, Min: 10, Max: 60},
		Pause: Draw{Shape: ShapeFixed},
		Seed:  1,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	switch c.Model {
	case ModelTrace:
		if c.TracePath == "" {
			return correlator.ErrInvalidConfig("mobility tracePath is required for the trace model")
		}
	case ModelRandomWaypoint:
		if c.Area.MaxX < c.Area.MinX || c.Area.MaxY < c.Area.MinY {
			return correlator.ErrInvalidConfig("mobility area bounds are inverted")
		}
		if err := c.Speed.Validate("mobility speed"); err != nil {
			return correlator.ErrInvalidConfig(err.Error())
		}
		if err := c.Pause.Validate("mobility pause"); err != nil {
			return correlator.ErrInvalidConfig(err.Error())
		}
	case ModelNone:
	default:
		return correlator.ErrInvalidConfig(fmt.Sprintf("unknown mobility model %d", int(c.Model)))
	}
	return nil
}

// String renders the config as JSON for logs
func (c Config) String() string {
	data, _ := json.Marshal(c)
	return string(data)
}
