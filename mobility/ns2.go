package mobility

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/miretskiy/handovertrace/correlator"
)

var (
	// $node_(3) set X_ 120.5
	ns2SetRe = regexp.MustCompile(`^\$node_\((\d+)\)\s+set\s+([XYZ])_\s+(\S+)$`)
	// $ns_ at 12.0 "$node_(3) setdest 10.0 20.0 13.9"
	ns2AtRe = regexp.MustCompile(`^\$ns_\s+at\s+(\S+)\s+"\$node_\((\d+)\)\s+(.*)"$`)
	// setdest 10.0 20.0 13.9
	ns2SetdestRe = regexp.MustCompile(`^setdest\s+(\S+)\s+(\S+)\s+(\S+)$`)
	// set X_ 10.0 (timed teleport)
	ns2TimedSetRe = regexp.MustCompile(`^set\s+([XYZ])_\s+(\S+)$`)
)

// Trace is a parsed ns-2 mobility trace: one waypoint model per node index
type Trace struct {
	nodes map[int]*WaypointModel
}

// Node returns the model for node index i
func (tr *Trace) Node(i int) (*WaypointModel, bool) {
	m, ok := tr.nodes[i]
	return m, ok
}

// Nodes returns the node indices in ascending order
func (tr *Trace) Nodes() []int {
	out := make([]int, 0, len(tr.nodes))
	for i := range tr.nodes {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of nodes in the trace
func (tr *Trace) Len() int { return len(tr.nodes) }

type ns2Command struct {
	at       float64
	node     int
	teleport bool
	axis     string
	value    float64
	dest     correlator.Vector2
	speed    float64
}

// ParseNS2 reads an ns-2 TCL mobility trace. Comments, blank lines and
// commands other than "set" and "setdest" are ignored. A recognized command
// with an unparsable number is an error naming the line.
func ParseNS2(r io.Reader) (*Trace, error) {
	initial := make(map[int]*correlator.Vector2)
	var cmds []ns2Command

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := ns2SetRe.FindStringSubmatch(line); m != nil {
			node, _ := strconv.Atoi(m[1])
			v, err := strconv.ParseFloat(m[3], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad coordinate %q: %w", lineNo, m[3], err)
			}
			p := initial[node]
			if p == nil {
				p = &correlator.Vector2{}
				initial[node] = p
			}
			switch m[2] {
			case "X":
				p.X = v
			case "Y":
				p.Y = v
			}
			continue
		}

		m := ns2AtRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		at, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad time %q: %w", lineNo, m[1], err)
		}
		node, _ := strconv.Atoi(m[2])
		body := strings.TrimSpace(m[3])

		if d := ns2SetdestRe.FindStringSubmatch(body); d != nil {
			var vals [3]float64
			for i := range vals {
				if vals[i], err = strconv.ParseFloat(d[i+1], 64); err != nil {
					return nil, fmt.Errorf("line %d: bad setdest argument %q: %w", lineNo, d[i+1], err)
				}
			}
			cmds = append(cmds, ns2Command{
				at:    at,
				node:  node,
				dest:  correlator.Vector2{X: vals[0], Y: vals[1]},
				speed: vals[2],
			})
			continue
		}
		if s := ns2TimedSetRe.FindStringSubmatch(body); s != nil {
			v, err := strconv.ParseFloat(s[2], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad coordinate %q: %w", lineNo, s[2], err)
			}
			cmds = append(cmds, ns2Command{at: at, node: node, teleport: true, axis: s[1], value: v})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading mobility trace: %w", err)
	}

	tr := &Trace{nodes: make(map[int]*WaypointModel)}
	for node, p := range initial {
		tr.nodes[node] = NewWaypointModel(*p)
	}

	// Stable so same-time commands keep file order
	sort.SliceStable(cmds, func(i, j int) bool { return cmds[i].at < cmds[j].at })
	for _, c := range cmds {
		m := tr.nodes[c.node]
		if m == nil {
			m = NewWaypointModel(correlator.Vector2{})
			tr.nodes[c.node] = m
		}
		if c.teleport {
			p := m.Position(c.at)
			switch c.axis {
			case "X":
				p.X = c.value
			case "Y":
				p.Y = c.value
			default:
				continue
			}
			m.Teleport(c.at, p)
			continue
		}
		m.SetDestination(c.at, c.dest, c.speed)
	}
	return tr, nil
}

// LoadNS2File parses the trace at path. A missing or unreadable file is a
// missing-resource error naming the path.
func LoadNS2File(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, correlator.ErrMissingResource(path, err)
	}
	defer f.Close()

	tr, err := ParseNS2(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tr, nil
}
