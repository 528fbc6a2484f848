package core

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aerobench/flightpath/timectrl"
)

// calOpts returns fast pitch-only options for scripted trials.
func calOpts(trials int) CalibrationOptions {
	return CalibrationOptions{
		PowerLevel:    20,
		ProbeDuration: 100 * time.Millisecond,
		Trials:        trials,
		NoiseFloor:    0.02,
		Pitch:         true,
	}
}

func airborneController(v *scriptVehicle, clock timectrl.Clock) *Controller {
	c := newTestController(v, clock)
	c.state.Paired = true
	c.state.Airborne = true
	return c
}

func TestCalibratePitchFactorFromScriptedTrials(t *testing.T) {
	clock := timectrl.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	v := newScriptVehicle(clock, Vec3{Z: 1})
	// Each trial reads three positions: before the forward probe, after it,
	// and after the backward probe. Forward travels 2m, backward only 1m,
	// so the back factor is 2.0 in both trials.
	v.posQueue = []Vec3{
		{X: 0, Z: 1}, {X: 2, Z: 1}, {X: 1, Z: 1},
		{X: 1, Z: 1}, {X: 3, Z: 1}, {X: 2, Z: 1},
	}
	c := airborneController(v, clock)

	profile, err := c.Calibrate(context.Background(), calOpts(2))
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if profile.PitchBack != 2.0 {
		t.Errorf("PitchBack = %v, want 2.0", profile.PitchBack)
	}
	if profile.PitchForward != 1.0 {
		t.Errorf("PitchForward = %v, want 1.0 (reference direction)", profile.PitchForward)
	}
	if !profile.Calibrated {
		t.Error("profile must be marked calibrated")
	}
	// Two power moves per trial, two trials.
	if got := len(v.moves); got != 4 {
		t.Errorf("power moves = %d, want 4", got)
	}
	if v.pitch != 0 {
		t.Errorf("pitch power left at %d after calibration, want 0", v.pitch)
	}
}

func TestCalibrateExcludesNoiseFloorTrials(t *testing.T) {
	clock := timectrl.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	v := newScriptVehicle(clock, Vec3{Z: 1})
	// Trial 1 measures zero backward displacement and must be excluded
	// instead of dividing by zero. Trial 2 is clean.
	v.posQueue = []Vec3{
		{X: 0, Z: 1}, {X: 2, Z: 1}, {X: 2, Z: 1},
		{X: 2, Z: 1}, {X: 4, Z: 1}, {X: 3, Z: 1},
	}
	c := airborneController(v, clock)

	profile, err := c.Calibrate(context.Background(), calOpts(2))
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if profile.PitchBack != 2.0 {
		t.Errorf("PitchBack = %v, want 2.0 from the single valid trial", profile.PitchBack)
	}
	if math.IsNaN(profile.PitchBack) || math.IsInf(profile.PitchBack, 0) {
		t.Errorf("excluded trial leaked into the factor: %v", profile.PitchBack)
	}
}

func TestCalibrateFailsWhenEveryTrialExcluded(t *testing.T) {
	clock := timectrl.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	v := newScriptVehicle(clock, Vec3{Z: 1})
	// Both trials: the vehicle never moves backward.
	v.posQueue = []Vec3{
		{X: 0, Z: 1}, {X: 2, Z: 1}, {X: 2, Z: 1},
		{X: 2, Z: 1}, {X: 4, Z: 1}, {X: 4, Z: 1},
	}
	c := airborneController(v, clock)
	before := c.Profile()

	_, err := c.Calibrate(context.Background(), calOpts(2))
	if !errors.Is(err, ErrInvalidCalibrationSample) {
		t.Fatalf("Calibrate error = %v, want ErrInvalidCalibrationSample", err)
	}
	if got := c.Profile(); got != before {
		t.Errorf("failed calibration mutated the profile: %+v", got)
	}
	if c.Profile().Calibrated {
		t.Error("failed calibration must not mark the profile calibrated")
	}
}

func TestCalibratePreconditions(t *testing.T) {
	clock := timectrl.NewFake(time.Now())
	v := newScriptVehicle(clock, Vec3{})

	c := newTestController(v, clock)
	if _, err := c.Calibrate(context.Background(), calOpts(1)); !errors.Is(err, ErrNotPaired) {
		t.Errorf("unpaired calibrate error = %v, want ErrNotPaired", err)
	}

	c.state.Paired = true
	if _, err := c.Calibrate(context.Background(), calOpts(1)); !errors.Is(err, ErrNotAirborne) {
		t.Errorf("grounded calibrate error = %v, want ErrNotAirborne", err)
	}

	noPower, err := NewController(Config{Telemetry: v, Motion: v, Clock: clock})
	if err != nil {
		t.Fatal(err)
	}
	noPower.state.Paired = true
	noPower.state.Airborne = true
	if _, err := noPower.Calibrate(context.Background(), calOpts(1)); err == nil {
		t.Error("calibrate without a power sink must fail")
	}

	full := airborneController(v, clock)
	if _, err := full.Calibrate(context.Background(), CalibrationOptions{Trials: 1}); err == nil {
		t.Error("calibrate with no axes enabled must fail")
	}
}

func TestCalibrateAgainstSimVehicle(t *testing.T) {
	clock := timectrl.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	sim := NewSimVehicle(SimVehicleConfig{
		Clock:          clock,
		Start:          Vec3{Z: 1},
		PitchBackRatio: 0.5, // backward probes travel half as far
	})
	c, err := NewController(Config{
		Telemetry:    sim,
		Motion:       sim,
		Power:        sim,
		Clock:        clock,
		PollInterval: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	c.state.Paired = true
	c.state.Airborne = true

	profile, err := c.Calibrate(context.Background(), DefaultCalibrationOptions())
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if math.Abs(profile.PitchBack-2.0) > 1e-9 {
		t.Errorf("PitchBack = %v, want 2.0 from the asymmetric simulation", profile.PitchBack)
	}
}
