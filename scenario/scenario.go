package scenario

import (
	"errors"

	"github.com/miretskiy/handovertrace/correlator"
	"github.com/miretskiy/handovertrace/flowmon"
	"github.com/miretskiy/handovertrace/internal/logging"
	"github.com/miretskiy/handovertrace/mobility"
	"github.com/miretskiy/handovertrace/replay"
	"github.com/miretskiy/handovertrace/sink"
)

// Options adjusts how Build wires a run
type Options struct {
	Logger     logging.Logger          // defaults to Noop
	ExtraSinks []correlator.RecordSink // receive every record next to the CSV files
	NoFiles    bool                    // skip the CSV outputs (live viewer)
}

// Run is a wired engine plus the collaborators it reads from and the
// outputs it writes to
type Run struct {
	Config   Config
	RunID    string
	Engine   *correlator.Engine
	Monitor  *flowmon.Monitor
	Book     *flowmon.AddressBook
	Mobility *mobility.Tracker // nil for the "none" model
	Trace    *replay.Trace     // nil without a trace path
	Traffic  bool              // synthetic flows were generated
	Files    *sink.CSV         // nil with NoFiles
	Logger   logging.Logger

	sink   *sink.MultiSink
	closed bool
}

// Build validates cfg, loads the mobility and notification inputs, opens
// the outputs and returns an engine with the trace already delivered.
func Build(cfg Config, opts Options) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger, runID := logging.WithRunID(opts.Logger)

	tracker, err := mobility.Build(cfg.Mobility, cfg.Engine.NumEntities)
	if err != nil {
		return nil, err
	}

	var trace *replay.Trace
	if cfg.TracePath != "" {
		if trace, err = replay.LoadFile(cfg.TracePath); err != nil {
			return nil, err
		}
	}

	run := &Run{
		Config:   cfg,
		RunID:    runID,
		Monitor:  flowmon.NewMonitor(),
		Book:     flowmon.NewAddressBook(),
		Mobility: tracker,
		Trace:    trace,
		Logger:   logger,
	}

	sinks := append([]correlator.RecordSink(nil), opts.ExtraSinks...)
	if !opts.NoFiles {
		files, err := sink.OpenCSV(cfg.Output.EventLogPath, cfg.Output.FlowSummaryPath, cfg.Output.Durable)
		if err != nil {
			return nil, err
		}
		run.Files = files
		sinks = append(sinks, files)
	}
	run.sink = sink.Multi(sinks...)

	collab := correlator.Collaborators{
		Sink:      run.sink,
		Flows:     run.Monitor,
		Addresses: run.Book,
		Logger:    logger,
	}
	// A typed nil would make the engine call into a nil tracker
	if tracker != nil {
		collab.Mobility = tracker
	}

	run.Engine, err = correlator.NewEngine(cfg.Engine, collab)
	if err != nil {
		_ = run.Close()
		return nil, err
	}

	if trace != nil {
		if err := trace.Install(run.Engine, run.Monitor, run.Book); err != nil {
			_ = run.Close()
			return nil, err
		}
		notifications, flows, addrs := trace.Counts()
		logger.Info("notification trace loaded",
			logging.String("path", cfg.TracePath),
			logging.Int("notifications", notifications),
			logging.Int("flow_samples", flows),
			logging.Int("addresses", addrs))
	}

	if run.wantsTraffic() {
		if err := cfg.Traffic.Install(cfg.Engine.NumEntities, cfg.Engine.DurationSec, run.Monitor, run.Book); err != nil {
			_ = run.Close()
			return nil, err
		}
		run.Traffic = true
		logger.Info("synthetic traffic generated",
			logging.String("model", cfg.Traffic.Model.String()),
			logging.Float64("rate_bps", cfg.Traffic.RateBps),
			logging.Int("flows", run.Monitor.Len()))
	}

	entities := 0
	if tracker != nil {
		entities = tracker.Len()
	}
	logger.Info("scenario ready",
		logging.Int("entities", cfg.Engine.NumEntities),
		logging.Int("tracked_entities", entities),
		logging.String("mobility", cfg.Mobility.Model.String()),
		logging.Float64("duration_s", cfg.Engine.DurationSec),
		logging.String("throughput_mode", cfg.Engine.ThroughputMode.String()))
	return run, nil
}

// wantsTraffic reports whether flows must be synthesized: a trace carrying
// flow samples supplies its own
func (r *Run) wantsTraffic() bool {
	if !r.Config.Traffic.Enabled {
		return false
	}
	if r.Trace == nil {
		return true
	}
	_, flows, _ := r.Trace.Counts()
	return flows == 0
}

// Finish runs the end-of-run pass, writes the flow summary and closes the
// outputs. Outputs are closed even when the summary fails.
func (r *Run) Finish() error {
	err := r.Engine.Finish()
	return errors.Join(err, r.Close())
}

// Close closes the outputs. It is safe to call more than once.
func (r *Run) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.sink == nil {
		return nil
	}
	return r.sink.Close()
}
