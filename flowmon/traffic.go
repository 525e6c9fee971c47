package flowmon

import (
	"fmt"
	"math"
	"math/rand"
	"net/netip"

	"github.com/miretskiy/handovertrace/correlator"
)

// RemoteHostAddr is the traffic peer of every entity
var RemoteHostAddr = netip.MustParseAddr("1.0.0.2")

// EntityAddr returns the address of the i-th entity (0-based): 7.0.0.2, 7.0.0.3, ...
func EntityAddr(i int) netip.Addr {
	n := uint32(i) + 2
	return netip.AddrFrom4([4]byte{7, byte(n >> 16), byte(n >> 8), byte(n)})
}

// TrafficModel selects how packet send times are generated
type TrafficModel int

const (
	TrafficConstant TrafficModel = iota // Constant bit rate
	TrafficOnOff                        // Erlang ON periods at full rate, exponential OFF periods
)

// String returns the string representation of TrafficModel
func (m TrafficModel) String() string {
	switch m {
	case TrafficConstant:
		return "constant"
	case TrafficOnOff:
		return "on_off"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseTrafficModel parses a string into a TrafficModel
func ParseTrafficModel(s string) (TrafficModel, error) {
	switch s {
	case "constant", "":
		return TrafficConstant, nil
	case "on_off":
		return TrafficOnOff, nil
	default:
		return TrafficConstant, fmt.Errorf("invalid TrafficModel: %s (must be 'constant' or 'on_off')", s)
	}
}

// MarshalText lets JSON and YAML encode the model by name
func (m TrafficModel) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText lets JSON and YAML decode the model by name
func (m *TrafficModel) UnmarshalText(data []byte) error {
	parsed, err := ParseTrafficModel(string(data))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// TrafficConfig describes synthetic UDP traffic: one downlink flow from the
// remote host to each entity and one uplink flow back
type TrafficConfig struct {
	Enabled           bool         `json:"enabled" yaml:"enabled"`
	Model             TrafficModel `json:"model" yaml:"model"`
	RateBps           float64      `json:"rateBps" yaml:"rateBps"`                     // Sending rate while active
	PacketSize        int          `json:"packetSize" yaml:"packetSize"`               // Bytes
	StartSec          float64      `json:"startSec" yaml:"startSec"`                   // First packet
	DelayMs           float64      `json:"delayMs" yaml:"delayMs"`                     // Mean one-way delay
	JitterMs          float64      `json:"jitterMs" yaml:"jitterMs"`                   // Delay varies uniformly by +/- this
	LossRate          float64      `json:"lossRate" yaml:"lossRate"`                   // Probability a packet is lost
	OnMeanSec         float64      `json:"onMeanSec" yaml:"onMeanSec"`                 // on_off only
	OffMeanSec        float64      `json:"offMeanSec" yaml:"offMeanSec"`               // on_off only
	ErlangK           int          `json:"erlangK" yaml:"erlangK"`                     // on_off only: ON period shape
	SampleIntervalSec float64      `json:"sampleIntervalSec" yaml:"sampleIntervalSec"` // Flow monitor sampling period
	Seed              int64        `json:"seed" yaml:"seed"`
}

// DefaultTrafficConfig returns 1 Mbps CBR with 1024 byte packets in both
// directions for every entity
func DefaultTrafficConfig() TrafficConfig {
	return TrafficConfig{
		Enabled:           true,
		Model:             TrafficConstant,
		RateBps:           1_000_000, // 1 Mbps
		PacketSize:        1024,
		StartSec:          0.01,
		DelayMs:           10,
		OnMeanSec:         1.0,
		OffMeanSec:        1.0,
		ErlangK:           2,
		SampleIntervalSec: 0.1,
		Seed:              1,
	}
}

// Validate checks the configuration
func (c TrafficConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.RateBps <= 0 {
		return correlator.ErrInvalidConfig("traffic rateBps must be > 0")
	}
	if c.PacketSize <= 0 {
		return correlator.ErrInvalidConfig("traffic packetSize must be > 0")
	}
	if c.StartSec < 0 || c.DelayMs < 0 || c.JitterMs < 0 {
		return correlator.ErrInvalidConfig("traffic startSec, delayMs and jitterMs must be >= 0")
	}
	if c.JitterMs > c.DelayMs {
		return correlator.ErrInvalidConfig("traffic jitterMs must not exceed delayMs")
	}
	if c.LossRate < 0 || c.LossRate > 1 {
		return correlator.ErrInvalidConfig("traffic lossRate must be in [0, 1]")
	}
	if c.SampleIntervalSec <= 0 {
		return correlator.ErrInvalidConfig("traffic sampleIntervalSec must be > 0")
	}
	if c.Model == TrafficOnOff && (c.OnMeanSec <= 0 || c.OffMeanSec < 0 || c.ErlangK < 1) {
		return correlator.ErrInvalidConfig("traffic on_off needs onMeanSec > 0, offMeanSec >= 0 and erlangK >= 1")
	}
	return nil
}

// packetSource yields the gap before the next packet
type packetSource interface {
	nextGap() float64
}

type constantSource struct {
	gap float64
}

func (s *constantSource) nextGap() float64 { return s.gap }

// onOffSource sends at full rate for an Erlang distributed ON period, then
// stays silent for an exponential OFF period
type onOffSource struct {
	gap     float64
	onLeft  float64
	onMean  float64
	offMean float64
	erlangK int
	rng     *rand.Rand
}

func (s *onOffSource) nextGap() float64 {
	s.onLeft -= s.gap
	if s.onLeft > 0 {
		return s.gap
	}
	off := exponentialSample(s.rng, s.offMean)
	s.onLeft = erlangSample(s.rng, s.erlangK, s.onMean)
	return s.gap + off
}

func (c TrafficConfig) newSource(rng *rand.Rand) packetSource {
	gap := float64(c.PacketSize*8) / c.RateBps
	if c.Model == TrafficOnOff {
		return &onOffSource{
			gap:     gap,
			onLeft:  erlangSample(rng, c.ErlangK, c.OnMeanSec),
			onMean:  c.OnMeanSec,
			offMean: c.OffMeanSec,
			erlangK: c.ErlangK,
			rng:     rng,
		}
	}
	return &constantSource{gap: gap}
}

// Install assigns an address to each of numEntities entities and records
// the cumulative counters of their downlink and uplink flows in monitor,
// sampled every SampleIntervalSec up to durationSec. Flow IDs are 2i+1
// (downlink) and 2i+2 (uplink) for the i-th entity.
func (c TrafficConfig) Install(numEntities int, durationSec float64, monitor *Monitor, book *AddressBook) error {
	if !c.Enabled {
		return nil
	}
	if err := c.Validate(); err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(c.Seed))
	for i := 0; i < numEntities; i++ {
		ue := EntityAddr(i)
		book.Assign(correlator.EntityID(i+1), ue, 0)

		dl := correlator.FiveTuple{Source: RemoteHostAddr, Destination: ue, SourcePort: 49153, DestinationPort: uint16(1235 + i), Protocol: 17}
		ul := correlator.FiveTuple{Source: ue, Destination: RemoteHostAddr, SourcePort: 49153, DestinationPort: uint16(2001 + i), Protocol: 17}
		if err := c.synthesize(uint32(2*i+1), dl, durationSec, rng, monitor); err != nil {
			return err
		}
		if err := c.synthesize(uint32(2*i+2), ul, durationSec, rng, monitor); err != nil {
			return err
		}
	}
	return nil
}

type inflight struct {
	arrive float64
	delay  float64
}

func (c TrafficConfig) synthesize(id uint32, tuple correlator.FiveTuple, durationSec float64, rng *rand.Rand, monitor *Monitor) error {
	src := c.newSource(rng)
	size := uint64(c.PacketSize)
	st := correlator.FlowStats{FlowID: id, Tuple: tuple}

	var pending []inflight
	prevDelay := math.NaN()
	next := c.StartSec
	for k := 1; ; k++ {
		at := float64(k) * c.SampleIntervalSec
		if at > durationSec+1e-9 {
			break
		}
		at = math.Min(at, durationSec)

		// Nothing is sent at or after the end of the run
		for next <= at && next < durationSec {
			st.TxPackets++
			st.TxBytes += size
			if c.LossRate > 0 && rng.Float64() < c.LossRate {
				st.LostPackets++
			} else {
				d := c.sampleDelay(rng)
				pending = append(pending, inflight{arrive: next + d, delay: d})
			}
			next += src.nextGap()
		}

		kept := pending[:0]
		for _, p := range pending {
			if p.arrive > at {
				kept = append(kept, p)
				continue
			}
			st.RxPackets++
			st.RxBytes += size
			st.DelaySum += p.delay
			if !math.IsNaN(prevDelay) {
				st.JitterSum += math.Abs(p.delay - prevDelay)
			}
			prevDelay = p.delay
		}
		pending = kept

		if err := monitor.Record(Sample{At: at, Stats: st}); err != nil {
			return err
		}
	}
	return nil
}

// sampleDelay returns a one-way delay in seconds
func (c TrafficConfig) sampleDelay(rng *rand.Rand) float64 {
	d := c.DelayMs
	if c.JitterMs > 0 {
		d += (rng.Float64()*2 - 1) * c.JitterMs
	}
	return d / 1000
}

// exponentialSample generates an exponential random variable
func exponentialSample(rng *rand.Rand, mean float64) float64 {
	if mean <= 0 {
		return 0
	}
	u := rng.Float64()
	if u == 0 {
		u = 1e-10 // Avoid log(0)
	}
	return -mean * math.Log(u)
}

// erlangSample generates an Erlang(k, λ) random variable
// Mean = k/λ, so λ = k/mean
func erlangSample(rng *rand.Rand, k int, mean float64) float64 {
	if mean <= 0 || k <= 0 {
		return 0
	}
	lambda := float64(k) / mean
	// Erlang(k, λ) is sum of k independent exponentials with rate λ
	sum := 0.0
	for i := 0; i < k; i++ {
		sum += exponentialSample(rng, 1.0/lambda)
	}
	return sum
}
