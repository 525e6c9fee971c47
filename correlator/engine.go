package correlator

import (
	"errors"
	"fmt"

	"github.com/miretskiy/handovertrace/internal/logging"
)

// baseStepSeconds is how much virtual time one Step() covers
const baseStepSeconds = 1.0

// Collaborators are the external pieces the engine reads from and writes to.
// Only Sink is required; a missing mobility source means no snapshot rows,
// missing flow data means throughput stays at its default.
type Collaborators struct {
	Sink      RecordSink
	Mobility  MobilitySource
	Flows     FlowMonitor
	Addresses AddressBook
	Logger    logging.Logger
}

// flowCheckpoint is the previous traffic pass for one flow (interval mode only)
type flowCheckpoint struct {
	at      float64
	txBytes uint64
	rxBytes uint64
}

// Engine is a PURE discrete event correlator with NO concurrency primitives.
// Host notifications and self-scheduled sampler ticks share one queue and
// one clock; every handler runs to completion before the next event.
// The caller (cmd/server, cmd/handover_runner) manages pacing and threading.
type Engine struct {
	config      Config
	store       *Store
	resolver    *FlowResolver
	queue       *EventQueue
	metrics     *Metrics
	virtualTime float64
	started     bool // Samplers armed
	finished    bool // End-of-run summary written
	err         error

	sink      RecordSink
	mobility  MobilitySource
	flows     FlowMonitor
	addresses AddressBook
	logger    logging.Logger
	prevFlows map[uint32]flowCheckpoint // Keyed by flow ID, interval throughput mode only

	// Event logging callback (optional, for UI/debugging)
	LogEvent func(msg string)
}

// NewEngine creates an engine. Nothing is scheduled until Start (or the
// first Step) arms the samplers.
func NewEngine(config Config, c Collaborators) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if c.Sink == nil {
		return nil, ErrInvalidConfig("a record sink is required")
	}
	logger := c.Logger
	if logger == nil {
		logger = logging.Noop()
	}
	return &Engine{
		config:    config,
		store:     NewStore(),
		resolver:  NewFlowResolver(),
		queue:     NewEventQueue(),
		metrics:   NewMetrics(),
		sink:      c.Sink,
		mobility:  c.Mobility,
		flows:     c.Flows,
		addresses: c.Addresses,
		logger:    logger,
		prevFlows: make(map[uint32]flowCheckpoint),
	}, nil
}

// Start arms both periodic samplers. Calling it again is a no-op.
func (e *Engine) Start() {
	if e.started {
		return
	}
	e.started = true
	e.queue.Push(NewSamplerTickEvent(e.config.TrafficStartSec, SamplerTraffic, e.config.TrafficIntervalSec))
	e.queue.Push(NewSamplerTickEvent(e.config.SnapshotStartSec, SamplerSnapshot, e.config.SnapshotIntervalSec))
}

// Deliver hands a host notification to the engine. It is processed when the
// clock reaches its timestamp. A notification older than the clock is
// processed at the current time; its observations keep their own timestamp,
// so newer state already in the store wins.
func (e *Engine) Deliver(n Notification) error {
	if n == nil {
		return errors.New("nil notification")
	}
	if e.err != nil {
		return e.err
	}
	at := n.Timestamp()
	if at < e.virtualTime {
		e.metrics.LateNotifications++
		e.logger.Debug("late notification",
			logging.String("event", n.String()),
			logging.Float64("now", e.virtualTime))
		at = e.virtualTime
	}
	e.queue.PushAt(n, at)
	return nil
}

// Step advances the clock by one virtual second
func (e *Engine) Step() {
	e.StepUntil(e.virtualTime + baseStepSeconds)
}

// StepByDelta advances the clock by the specified time delta (in seconds)
func (e *Engine) StepByDelta(deltaSeconds float64) float64 {
	return e.StepUntil(e.virtualTime + deltaSeconds)
}

// StepUntil processes every event scheduled at or before target and leaves
// the clock at target. Nothing at or past the configured duration is ever
// processed; the clock stops there.
func (e *Engine) StepUntil(target float64) float64 {
	if e.err != nil {
		return e.virtualTime
	}
	e.Start()

	stop := e.config.DurationSec
	limit := min(target, stop)
	for !e.queue.IsEmpty() {
		at := e.queue.NextTime()
		if at > limit || at >= stop {
			break
		}
		event := e.queue.Pop()
		// Virtual time must NEVER go backwards
		e.virtualTime = max(e.virtualTime, at)
		if err := e.processEvent(event); err != nil {
			e.fail(err)
			return e.virtualTime
		}
	}
	e.virtualTime = max(e.virtualTime, limit)
	e.refreshMetrics()
	return e.virtualTime
}

// Run processes the whole configured duration
func (e *Engine) Run() error {
	e.StepUntil(e.config.DurationSec)
	return e.err
}

// Finish runs the end-of-run traffic pass and writes the flow summary.
// It is idempotent and does nothing after a fatal error.
func (e *Engine) Finish() error {
	if e.err != nil {
		return e.err
	}
	if e.finished {
		return nil
	}
	e.finished = true
	if e.flows == nil {
		return nil
	}

	duration := e.config.DurationSec
	final := e.flows.FlowStats(duration)
	e.attributeTraffic(final, duration, ThroughputRunningAverage)

	summarySink, ok := e.sink.(SummarySink)
	if !ok {
		return nil
	}
	rows := SummarizeFlows(final, duration)
	if err := summarySink.WriteFlowSummary(rows); err != nil {
		e.fail(ErrSinkFailure("write flow summary", err))
		return e.err
	}
	e.logger.Info("flow summary written", logging.Int("flows", len(rows)))
	return nil
}

// Done reports whether the run reached its duration or stopped on error
func (e *Engine) Done() bool {
	return e.err != nil || e.virtualTime >= e.config.DurationSec
}

// Err returns the fatal error that stopped the run, if any
func (e *Engine) Err() error { return e.err }

// Config returns a copy of the current configuration
func (e *Engine) Config() Config { return e.config }

// Now returns the current virtual time
func (e *Engine) Now() float64 { return e.virtualTime }

// Metrics returns a copy of current metrics
func (e *Engine) Metrics() *Metrics { return e.metrics.Clone() }

// IsQueueEmpty returns true if the event queue is empty
func (e *Engine) IsQueueEmpty() bool { return e.queue.IsEmpty() }

// Snapshot returns the current state of one entity
func (e *Engine) Snapshot(id EntityID) EntitySnapshot { return e.store.Snapshot(id) }

// Entities returns a snapshot of every tracked entity
func (e *Engine) Entities() []EntitySnapshot {
	ids := e.store.Entities()
	out := make([]EntitySnapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.store.Snapshot(id))
	}
	return out
}

// Cells returns the latest broadcast values of every observed cell
func (e *Engine) Cells() []CellSnapshot { return e.store.Cells() }

// processEvent dispatches a single event to its handler
func (e *Engine) processEvent(event Event) error {
	switch ev := event.(type) {
	case *HandoverStartEvent:
		return e.handleHandoverStart(ev)
	case *HandoverCompleteEvent:
		return e.handleHandoverComplete(ev)
	case *ConnectionEstablishedEvent:
		return e.handleConnectionEstablished(ev)
	case *LinkQualitySampleEvent:
		return e.handleLinkQualitySample(ev)
	case *MeasurementReportEvent:
		return e.handleMeasurementReport(ev)
	case *SamplerTickEvent:
		return e.processSamplerTick(ev)
	default:
		panic(fmt.Sprintf("unknown event type: %T", ev))
	}
}

// fail stops the run: no further events are processed
func (e *Engine) fail(err error) {
	e.err = err
	e.queue.Clear()
	e.metrics.IsStopped = true
	e.metrics.StopError = err.Error()
	e.logger.Error("run stopped", logging.Err(err), logging.Float64("t", e.virtualTime))
	e.logEvent("[t=%.3fs] STOPPED: %v", e.virtualTime, err)
}

// observe writes one entity field and counts drops
func (e *Engine) observe(id EntityID, f Field, value, at float64) {
	if !e.store.Observe(id, f, value, at) {
		e.metrics.StaleObservations++
		e.logger.Debug("stale observation dropped",
			logging.Uint64("entity", uint64(id)),
			logging.String("field", f.String()),
			logging.Float64("at", at))
	}
}

// emit writes one record. A sink error is fatal for the run.
func (e *Engine) emit(rec EventRecord) error {
	var err error
	switch rec.Kind {
	case RecordHandover:
		err = e.sink.WriteHandover(rec)
	default:
		err = e.sink.WriteMeasurement(rec)
	}
	if err != nil {
		return ErrSinkFailure(fmt.Sprintf("write %s record for entity %d", rec.Kind, rec.Entity), err)
	}
	if rec.Kind == RecordHandover {
		e.metrics.HandoverRecords++
	} else {
		e.metrics.MeasurementRecords++
	}
	return nil
}

func (e *Engine) refreshMetrics() {
	e.metrics.Timestamp = e.virtualTime
	e.metrics.TrackedEntities = len(e.store.entities)
	e.metrics.TrackedCells = len(e.store.cells)
}

// logEvent sends a log message to the structured logger and the UI (if callback is set)
func (e *Engine) logEvent(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	e.logger.Debug(msg)
	if e.LogEvent != nil {
		e.LogEvent(msg)
	}
}
