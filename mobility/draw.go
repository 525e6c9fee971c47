package mobility

import (
	"fmt"
	"math"
	"math/rand"
)

// Shape selects how a Draw spreads its values over [Min, Max]
type Shape int

const (
	ShapeUniform     Shape = iota
	ShapeExponential       // most values near Min
	ShapeFixed             // always Min
)

var shapeNames = [...]string{"uniform", "exponential", "fixed"}

func (s Shape) String() string {
	if s < 0 || int(s) >= len(shapeNames) {
		return fmt.Sprintf("unknown(%d)", int(s))
	}
	return shapeNames[s]
}

// ParseShape maps a name to a Shape. Empty means uniform.
func ParseShape(name string) (Shape, error) {
	if name == "" {
		return ShapeUniform, nil
	}
	for i, n := range shapeNames {
		if n == name {
			return Shape(i), nil
		}
	}
	return ShapeUniform, fmt.Errorf("invalid shape %q (want uniform, exponential or fixed)", name)
}

func (s Shape) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Shape) UnmarshalText(text []byte) error {
	parsed, err := ParseShape(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// expScale maps an Exp(1) draw onto the unit interval. About 0.25% of
// draws land past it and are clamped to Max.
const expScale = 6.0

// Draw is a random quantity confined to [Min, Max], used for leg speeds
// and pause times
type Draw struct {
	Shape Shape   `json:"shape" yaml:"shape"`
	Min   float64 `json:"min" yaml:"min"`
	Max   float64 `json:"max" yaml:"max"`
}

// Sample draws one value. An empty or inverted range yields Min.
func (d Draw) Sample(rng *rand.Rand) float64 {
	if d.Shape == ShapeFixed || d.Max <= d.Min {
		return d.Min
	}
	span := d.Max - d.Min
	if d.Shape == ShapeExponential {
		return d.Min + math.Min(rng.ExpFloat64()/expScale, 1)*span
	}
	return d.Min + rng.Float64()*span
}

// Validate rejects negative or inverted ranges
func (d Draw) Validate(what string) error {
	if d.Min < 0 || d.Max < d.Min {
		return fmt.Errorf("%s range [%v, %v] must satisfy 0 <= min <= max", what, d.Min, d.Max)
	}
	return nil
}
