package main

import (
	"fmt"
	"sync"

	"github.com/miretskiy/handovertrace/correlator"
	"github.com/miretskiy/handovertrace/internal/logging"
	"github.com/miretskiy/handovertrace/scenario"
	"github.com/miretskiy/handovertrace/sink"
)

// phase is where a session's run stands
type phase int

const (
	phaseIdle     phase = iota // built, not started
	phaseRunning               // advanced on every UI tick
	phasePaused                // keeps its place, ignores ticks
	phaseFinished              // reached its duration, summary sent
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseRunning:
		return "running"
	case phasePaused:
		return "paused"
	case phaseFinished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// session is one viewer's private run. The engine is single-threaded, so
// the tick loop and the command reader serialize on mu.
type session struct {
	mu     sync.Mutex
	base   scenario.Config
	logger logging.Logger
	run    *scenario.Run
	mem    *sink.Memory
	phase  phase
}

func newSession(base scenario.Config, logger logging.Logger) (*session, error) {
	s := &session{base: base, logger: logger}
	if err := s.rebuildLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// rebuildLocked swaps in a fresh run built from base; on failure the
// current run is left alone
func (s *session) rebuildLocked() error {
	mem := sink.NewMemory()
	r, err := scenario.Build(s.base, scenario.Options{
		Logger:     s.logger,
		ExtraSinks: []correlator.RecordSink{mem},
		NoFiles:    true,
	})
	if err != nil {
		return err
	}
	if s.run != nil {
		_ = s.run.Close()
	}
	s.run, s.mem, s.phase = r, mem, phaseIdle
	return nil
}

// apply executes one client command
func (s *session) apply(msg ClientMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Type {
	case "start":
		// A finished run stays finished until reset
		if s.phase != phaseFinished {
			s.phase = phaseRunning
		}
	case "pause":
		if s.phase == phaseRunning {
			s.phase = phasePaused
		}
	case "reset":
		return s.rebuildLocked()
	case "config_update":
		if msg.Config == nil {
			return fmt.Errorf("config_update without config")
		}
		if err := msg.Config.Validate(); err != nil {
			return err
		}
		prev := s.base
		s.base.Engine = *msg.Config
		if err := s.rebuildLocked(); err != nil {
			s.base = prev
			return err
		}
	default:
		return fmt.Errorf("unknown command %q", msg.Type)
	}
	return nil
}

// status describes the session for a "status" message
func (s *session) status() ServerMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	running := s.phase == phaseRunning
	cfg := s.run.Engine.Config()
	return ServerMessage{Type: "status", Running: &running, Config: &cfg}
}

// tickUpdate is what one UI tick pushes to the client
type tickUpdate struct {
	metrics  *correlator.Metrics
	records  []correlator.EventRecord
	entities []correlator.EntitySnapshot
	cells    []correlator.CellSnapshot
	summary  []correlator.FlowSummary
	finished bool
	err      error
}

// advance moves a running session forward by delta virtual seconds. The
// tick that reaches the duration also finishes the run.
func (s *session) advance(delta float64) (tickUpdate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != phaseRunning {
		return tickUpdate{}, false
	}

	engine := s.run.Engine
	engine.StepByDelta(delta)

	u := tickUpdate{
		records:  s.mem.Drain(),
		entities: engine.Entities(),
		cells:    engine.Cells(),
	}
	if engine.Done() {
		u.err = s.run.Finish()
		u.finished = true
		u.summary = s.mem.Summary()
		s.phase = phaseFinished
		s.logger.Info("viewer run finished",
			logging.String("run_id", s.run.RunID),
			logging.Float64("virtual_time", engine.Now()))
	}
	u.metrics = engine.Metrics()
	return u, true
}

// close releases the run's outputs. Later ticks are ignored.
func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phaseIdle
	_ = s.run.Close()
}
