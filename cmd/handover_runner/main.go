package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/miretskiy/handovertrace/correlator"
	"github.com/miretskiy/handovertrace/flowmon"
	"github.com/miretskiy/handovertrace/internal/logging"
	"github.com/miretskiy/handovertrace/internal/observability"
	"github.com/miretskiy/handovertrace/mobility"
	"github.com/miretskiy/handovertrace/scenario"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

type flags struct {
	configFile   string
	tracePath    string
	mobilityPath string
	eventLog     string
	flowSummary  string
	outputFile   string
	mode         string
	traffic      string
	duration     float64
	step         float64
	seed         int64
	durable      bool
	verbose      bool
}

func parseFlags(args []string, stderr io.Writer) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("handover_runner", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.configFile, "config", "", "Path to scenario file (.json, .yaml); defaults are used when empty")
	fs.StringVar(&f.tracePath, "trace", "", "Path to JSONL notification trace (overrides config)")
	fs.StringVar(&f.mobilityPath, "mobility", "", "Path to ns-2 mobility trace (overrides config, selects the trace model)")
	fs.StringVar(&f.eventLog, "events", "", "Event log CSV path (overrides config)")
	fs.StringVar(&f.flowSummary, "flows", "", "Flow summary CSV path (overrides config)")
	fs.StringVar(&f.outputFile, "output", "", "Path to output JSON file (optional, prints to stdout if not specified)")
	fs.StringVar(&f.mode, "throughput", "", "Throughput mode: running_average or interval (overrides config)")
	fs.StringVar(&f.traffic, "traffic", "", "Synthetic traffic model: constant, on_off or off (overrides config)")
	fs.Float64Var(&f.duration, "duration", 0, "Run duration in virtual seconds (overrides config)")
	fs.Float64Var(&f.step, "step", 1.0, "Virtual seconds processed per step")
	fs.Int64Var(&f.seed, "seed", 0, "Random waypoint and traffic seed (overrides config when non-zero)")
	fs.BoolVar(&f.durable, "durable", false, "fsync every event log row")
	fs.BoolVar(&f.verbose, "verbose", false, "Enable per-event logging from the engine")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if f.step <= 0 {
		return f, fmt.Errorf("-step must be > 0")
	}
	return f, nil
}

// loadScenario reads the config file (or defaults) and applies flag overrides
func loadScenario(f flags) (scenario.Config, error) {
	cfg := scenario.Default()
	if f.configFile != "" {
		loaded, err := scenario.Load(f.configFile)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if f.tracePath != "" {
		cfg.TracePath = f.tracePath
	}
	if f.mobilityPath != "" {
		cfg.Mobility.Model = mobility.ModelTrace
		cfg.Mobility.TracePath = f.mobilityPath
	}
	if f.eventLog != "" {
		cfg.Output.EventLogPath = f.eventLog
	}
	if f.flowSummary != "" {
		cfg.Output.FlowSummaryPath = f.flowSummary
	}
	if f.mode != "" {
		mode, err := correlator.ParseThroughputMode(f.mode)
		if err != nil {
			return cfg, correlator.ErrInvalidConfig(err.Error())
		}
		cfg.Engine.ThroughputMode = mode
	}
	if f.duration > 0 {
		cfg.Engine.DurationSec = f.duration
	}
	switch f.traffic {
	case "":
	case "off":
		cfg.Traffic.Enabled = false
	default:
		model, err := flowmon.ParseTrafficModel(f.traffic)
		if err != nil {
			return cfg, correlator.ErrInvalidConfig(err.Error())
		}
		cfg.Traffic.Enabled = true
		cfg.Traffic.Model = model
	}
	if f.seed != 0 {
		cfg.Mobility.Seed = f.seed
		cfg.Traffic.Seed = f.seed
	}
	if f.durable {
		cfg.Output.Durable = true
	}
	if f.verbose {
		cfg.Logging.Level = "debug"
	}
	cfg.Logging = logging.ConfigFromEnv(cfg.Logging)
	cfg.Tracing = observability.TracingConfigFromEnv(cfg.Tracing)
	return cfg, nil
}

// results is the JSON document printed at the end of a run
type results struct {
	RunID       string                      `json:"runId"`
	Config      scenario.Config             `json:"config"`
	VirtualTime float64                     `json:"virtualTime"`
	RealTime    float64                     `json:"realTime"`
	Interrupted bool                        `json:"interrupted"`
	Metrics     *correlator.Metrics         `json:"metrics"`
	Entities    []correlator.EntitySnapshot `json:"entities"`
	Cells       []correlator.CellSnapshot   `json:"cells"`
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(stderr, "Error parsing flags: %v\n", err)
		return 2
	}

	cfg, err := loadScenario(f)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading scenario: %v\n", err)
		return 1
	}

	logger := logging.NewWithWriter(stderr, cfg.Logging)
	shutdown, err := observability.InitTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error initialising tracing: %v\n", err)
		return 1
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, logger)
	tracer := observability.Tracer()

	ctx, span := tracer.Start(ctx, "scenario.build")
	r, err := scenario.Build(cfg, scenario.Options{Logger: logger})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		fmt.Fprintf(stderr, "Error building scenario: %v\n", err)
		return 1
	}
	span.SetAttributes(attribute.String("run.id", r.RunID))
	span.End()

	if f.verbose {
		r.Engine.LogEvent = func(msg string) {
			fmt.Fprintf(stderr, "[ENGINE] %s\n", msg)
		}
	}

	r.Logger.Info("starting run",
		logging.Float64("duration_s", cfg.Engine.DurationSec),
		logging.Float64("step_s", f.step))
	startTime := time.Now()

	_, span = tracer.Start(ctx, "scenario.run")
	interrupted := false
	for !r.Engine.Done() {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		r.Engine.StepByDelta(f.step)
	}
	span.SetAttributes(
		attribute.Float64("virtual_time", r.Engine.Now()),
		attribute.Bool("interrupted", interrupted))
	if err := r.Engine.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()

	_, span = tracer.Start(ctx, "scenario.finish")
	finishErr := r.Finish()
	if finishErr != nil {
		span.RecordError(finishErr)
		span.SetStatus(codes.Error, finishErr.Error())
	}
	span.End()

	elapsed := time.Since(startTime)
	metrics := r.Engine.Metrics()
	r.Logger.Info("run completed",
		logging.Float64("virtual_time", r.Engine.Now()),
		logging.String("real_time", elapsed.String()),
		logging.Int("records", metrics.TotalRecords()),
		logging.Bool("interrupted", interrupted))

	if finishErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", finishErr)
		return 1
	}

	output, err := json.MarshalIndent(results{
		RunID:       r.RunID,
		Config:      cfg,
		VirtualTime: r.Engine.Now(),
		RealTime:    elapsed.Seconds(),
		Interrupted: interrupted,
		Metrics:     metrics,
		Entities:    r.Engine.Entities(),
		Cells:       r.Engine.Cells(),
	}, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "Error marshaling results: %v\n", err)
		return 1
	}

	if f.outputFile != "" {
		if err := os.WriteFile(f.outputFile, output, 0644); err != nil {
			fmt.Fprintf(stderr, "Error writing output file: %v\n", err)
			return 1
		}
		fmt.Fprintf(stderr, "Results written to %s\n", f.outputFile)
		return 0
	}
	fmt.Fprintln(stdout, string(output))
	return 0
}
