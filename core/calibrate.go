package core

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/aerobench/flightpath/internal/flightlog"
	"github.com/aerobench/flightpath/internal/logging"
	"github.com/aerobench/flightpath/model"
)

// CalibrationOptions selects which axes to probe and how hard. The forward
// direction of each axis is the reference (factor fixed at 1.0); the probe
// measures how far the opposing direction travels for the same commanded
// power and duration.
type CalibrationOptions struct {
	PowerLevel    int           // nominal probe power, default 20
	ProbeDuration time.Duration // per-direction probe time, default 2s
	Trials        int           // probe repetitions averaged, default 2
	NoiseFloor    float64       // metres; a trial below this is excluded, default 0.02

	// Per-axis enables. The shipped vehicle only has the pitch probe
	// proven out; roll and throttle follow the identical pattern but are
	// off by default. Yaw cannot be calibrated from position telemetry
	// and always keeps factor 1.0.
	Pitch    bool
	Roll     bool
	Throttle bool
}

// DefaultCalibrationOptions enables the pitch probe only.
func DefaultCalibrationOptions() CalibrationOptions {
	return CalibrationOptions{
		PowerLevel:    20,
		ProbeDuration: 2 * time.Second,
		Trials:        2,
		NoiseFloor:    0.02,
		Pitch:         true,
	}
}

// axisProbe describes one calibration axis in terms of the power primitive
// that drives it and the telemetry coordinate it displaces.
type axisProbe struct {
	name     string
	setPower func(int)
	read     func(Vec3) float64
}

// Calibrate flies paired forward/backward probes on each enabled axis and
// derives the opposing-direction scale factor as the mean over trials of
// |forward displacement| / |backward displacement|. The profile is updated
// and marked calibrated only if every enabled axis produced at least one
// valid trial; on any error the profile is left exactly as it was.
//
// Preconditions: the vehicle must be paired and airborne, and the
// controller must have been built with a PowerSink.
func (c *Controller) Calibrate(ctx context.Context, opts CalibrationOptions) (model.CalibrationProfile, error) {
	if !c.state.Paired {
		return c.profile, fmt.Errorf("calibrate: %w", ErrNotPaired)
	}
	if !c.state.Airborne {
		return c.profile, fmt.Errorf("calibrate: %w", ErrNotAirborne)
	}
	if c.power == nil {
		return c.profile, fmt.Errorf("calibrate: controller has no power sink")
	}
	if opts.Trials <= 0 {
		opts.Trials = 2
	}
	if opts.PowerLevel <= 0 {
		opts.PowerLevel = 20
	}
	if opts.ProbeDuration <= 0 {
		opts.ProbeDuration = 2 * time.Second
	}
	if opts.NoiseFloor <= 0 {
		opts.NoiseFloor = 0.02
	}

	ctx, span := c.tracer.Start(ctx, "flight.calibrate")
	defer span.End()

	probes := c.enabledProbes(opts)
	if len(probes) == 0 {
		return c.profile, fmt.Errorf("calibrate: no axes enabled")
	}

	factors := make(map[string]float64, len(probes))
	for _, probe := range probes {
		samples := make([]float64, 0, opts.Trials)
		for trial := 0; trial < opts.Trials; trial++ {
			sample, err := c.runProbeTrial(ctx, probe, opts)
			if err != nil {
				return c.profile, fmt.Errorf("calibrate %s trial %d: %w", probe.name, trial+1, err)
			}
			if math.IsNaN(sample) {
				// Displacement below the noise floor; the trial is
				// excluded rather than poisoning the mean.
				c.log.Warn(ctx, "calibration trial excluded",
					logging.String("axis", probe.name),
					logging.Int("trial", trial+1),
				)
				continue
			}
			samples = append(samples, sample)
		}
		if len(samples) == 0 {
			return c.profile, fmt.Errorf("calibrate %s: %w", probe.name, ErrInvalidCalibrationSample)
		}
		factors[probe.name] = stat.Mean(samples, nil)
	}

	updated := c.profile
	if f, ok := factors["pitch"]; ok {
		updated.PitchForward = 1.0
		updated.PitchBack = f
		c.metrics.SetCalibrationFactor("pitch", "back", f)
	}
	if f, ok := factors["roll"]; ok {
		updated.RollRight = 1.0
		updated.RollLeft = f
		c.metrics.SetCalibrationFactor("roll", "left", f)
	}
	if f, ok := factors["throttle"]; ok {
		updated.ThrottleUp = 1.0
		updated.ThrottleDown = f
		c.metrics.SetCalibrationFactor("throttle", "down", f)
	}
	updated.Calibrated = true
	if err := updated.Validate(); err != nil {
		return c.profile, fmt.Errorf("calibrate: %w", err)
	}
	c.profile = updated

	c.log.Info(ctx, "calibration complete",
		logging.Float64("pitch_back", updated.PitchBack),
		logging.Float64("roll_left", updated.RollLeft),
		logging.Float64("throttle_down", updated.ThrottleDown),
	)
	c.record(ctx, flightlog.Record{
		Pattern: "Calibration",
		Extra: []string{
			formatFactor(updated.PitchForward), formatFactor(updated.PitchBack),
			formatFactor(updated.RollRight), formatFactor(updated.RollLeft),
			formatFactor(updated.ThrottleUp), formatFactor(updated.ThrottleDown),
			formatFactor(updated.YawCW), formatFactor(updated.YawCCW),
		},
	})
	return c.profile, nil
}

func (c *Controller) enabledProbes(opts CalibrationOptions) []axisProbe {
	var probes []axisProbe
	if opts.Pitch {
		probes = append(probes, axisProbe{
			name:     "pitch",
			setPower: c.power.SetPitch,
			read:     func(v Vec3) float64 { return v.X },
		})
	}
	if opts.Roll {
		probes = append(probes, axisProbe{
			name:     "roll",
			setPower: c.power.SetRoll,
			read:     func(v Vec3) float64 { return v.Y },
		})
	}
	if opts.Throttle {
		probes = append(probes, axisProbe{
			name:     "throttle",
			setPower: c.power.SetThrottle,
			read:     func(v Vec3) float64 { return v.Z },
		})
	}
	return probes
}

// runProbeTrial flies one forward/backward probe pair and returns
// |forward| / |backward|, or NaN when either displacement is below the noise
// floor (the trial must be excluded, never divided through).
func (c *Controller) runProbeTrial(ctx context.Context, probe axisProbe, opts CalibrationOptions) (float64, error) {
	// Zero the other axes so the probe displacement is attributable.
	c.power.SetPitch(0)
	c.power.SetRoll(0)
	c.power.SetThrottle(0)

	probe.setPower(opts.PowerLevel)
	c.motion.Hover(2 * time.Second)
	p0, err := c.position(ctx)
	if err != nil {
		return 0, err
	}
	c.clock.Sleep(time.Second)
	c.log.Info(ctx, "calibration probe forward", logging.String("axis", probe.name))
	c.power.Move(opts.ProbeDuration)
	c.motion.Hover(2 * time.Second)
	p1, err := c.position(ctx)
	if err != nil {
		return 0, err
	}
	forward := probe.read(VecOf(p1)) - probe.read(VecOf(p0))

	probe.setPower(-opts.PowerLevel)
	c.clock.Sleep(time.Second)
	c.log.Info(ctx, "calibration probe backward", logging.String("axis", probe.name))
	c.power.Move(opts.ProbeDuration)
	c.motion.Hover(2 * time.Second)
	p2, err := c.position(ctx)
	if err != nil {
		return 0, err
	}
	back := probe.read(VecOf(p2)) - probe.read(VecOf(p1))

	probe.setPower(0)

	c.log.Info(ctx, "calibration probe displacements",
		logging.String("axis", probe.name),
		logging.Float64("forward", forward),
		logging.Float64("back", back),
	)
	if math.Abs(forward) < opts.NoiseFloor || math.Abs(back) < opts.NoiseFloor {
		return math.NaN(), nil
	}
	// Factors are ratios of magnitudes; the backward displacement is
	// negative by construction and must not flip the factor's sign.
	return math.Abs(forward) / math.Abs(back), nil
}

func formatFactor(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}
