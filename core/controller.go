package core

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/aerobench/flightpath/internal/flightlog"
	"github.com/aerobench/flightpath/internal/logging"
	"github.com/aerobench/flightpath/internal/observability"
	"github.com/aerobench/flightpath/model"
	"github.com/aerobench/flightpath/timectrl"
)

const (
	// defaultPollInterval is the fixed command cadence: one absolute
	// position command and one telemetry poll per interval.
	defaultPollInterval = 50 * time.Millisecond
	// defaultDwell is the pause used by the unverified simple path and
	// the takeoff sequence.
	defaultDwell = 5 * time.Second
	// defaultCompletionFraction is the share of the intended displacement
	// that must be covered on every axis before a move counts as arrived.
	defaultCompletionFraction = 0.75
	// defaultTelemetryFailureLimit bounds consecutive telemetry fetch
	// failures before a move aborts.
	defaultTelemetryFailureLimit = 20
	// holdSpeed is the speed sent while re-asserting position in a hold.
	holdSpeed = 0.1
)

// Config assembles a Controller. Telemetry and Motion are required; every
// other collaborator has a working default.
type Config struct {
	Telemetry TelemetryPort
	Motion    MotionSink
	Power     PowerSink // required only for Calibrate

	Clock     timectrl.Clock                 // defaults to the wall clock
	Logger    logging.Logger                 // defaults to Noop
	FlightLog flightlog.Sink                 // defaults to Discard
	Metrics   *observability.FlightCollector // optional; nil disables metrics
	Rand      *rand.Rand                     // defaults to a time-seeded source

	PollInterval          time.Duration // defaults to 50ms
	Dwell                 time.Duration // defaults to 5s
	TelemetryFailureLimit int           // defaults to 20
	Note                  bool          // write note fields to the flight log
}

// Controller owns one vehicle link and drives it through verified moves,
// holds, calibration, and patterns. It is strictly single-threaded: every
// wait is a blocking sleep, and no two motion operations may be in flight at
// once. The calibration profile and flight state are owned exclusively by
// this instance.
type Controller struct {
	telemetry TelemetryPort
	motion    MotionSink
	power     PowerSink

	clock   timectrl.Clock
	log     logging.Logger
	sink    flightlog.Sink
	metrics *observability.FlightCollector
	rng     *rand.Rand
	tracer  trace.Tracer

	profile model.CalibrationProfile
	state   model.FlightState

	pollInterval time.Duration
	dwell        time.Duration
	failureLimit int
	note         bool
}

// NewController validates the config and applies defaults.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Telemetry == nil {
		return nil, fmt.Errorf("controller: Telemetry is required")
	}
	if cfg.Motion == nil {
		return nil, fmt.Errorf("controller: Motion is required")
	}

	c := &Controller{
		telemetry:    cfg.Telemetry,
		motion:       cfg.Motion,
		power:        cfg.Power,
		clock:        cfg.Clock,
		log:          cfg.Logger,
		sink:         cfg.FlightLog,
		metrics:      cfg.Metrics,
		rng:          cfg.Rand,
		tracer:       otel.Tracer("github.com/aerobench/flightpath/core"),
		profile:      model.DefaultCalibration(),
		pollInterval: cfg.PollInterval,
		dwell:        cfg.Dwell,
		failureLimit: cfg.TelemetryFailureLimit,
		note:         cfg.Note,
	}
	if c.clock == nil {
		c.clock = timectrl.Wall{}
	}
	if c.log == nil {
		c.log = logging.Noop()
	}
	if c.sink == nil {
		c.sink = flightlog.Discard()
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	if c.dwell <= 0 {
		c.dwell = defaultDwell
	}
	if c.failureLimit <= 0 {
		c.failureLimit = defaultTelemetryFailureLimit
	}
	return c, nil
}

// Profile returns a copy of the current calibration profile.
func (c *Controller) Profile() model.CalibrationProfile { return c.profile }

// State returns the current flight state.
func (c *Controller) State() model.FlightState { return c.state }

// position fetches a telemetry snapshot, retrying failed fetches at the poll
// cadence and giving up after the consecutive-failure limit.
func (c *Controller) position(ctx context.Context) (model.Position, error) {
	var lastErr error
	for i := 0; i < c.failureLimit; i++ {
		pos, err := c.telemetry.Position()
		if err == nil {
			return pos, nil
		}
		lastErr = err
		c.metrics.IncTelemetryFailure()
		c.log.Warn(ctx, "telemetry fetch failed", logging.Int("attempt", i+1), logging.Err(err))
		c.clock.Sleep(c.pollInterval)
	}
	return model.Position{}, fmt.Errorf("%w: %v", ErrTelemetryUnavailable, lastErr)
}

// record writes one flight log row. Write failures are logged and swallowed;
// persistence problems must never abort a move.
func (c *Controller) record(ctx context.Context, rec flightlog.Record) {
	if rec.Time.IsZero() {
		rec.Time = c.clock.Now()
	}
	if err := c.sink.Write(rec); err != nil {
		c.log.Warn(ctx, "flight log write failed", logging.Err(err))
	}
}

// recordTelemetry writes the standard per-iteration row, with note fields
// when note mode is on.
func (c *Controller) recordTelemetry(ctx context.Context, pattern string, pos model.Position, note string, iteration int, start, target Vec3) {
	rec := flightlog.Record{Pattern: pattern, Telemetry: pos}
	if c.note {
		rec.Note = note
		rec.Iteration = iteration
		rec.Start = []float64{start.X, start.Y, start.Z}
		rec.Target = []float64{target.X, target.Y, target.Z}
	}
	c.record(ctx, rec)
}
