package core

import (
	"sync"
	"time"

	"github.com/aerobench/flightpath/model"
	"github.com/aerobench/flightpath/timectrl"
)

// SimVehicleConfig configures the simulated vehicle.
type SimVehicleConfig struct {
	Clock timectrl.Clock // defaults to the wall clock
	Start Vec3

	TakeoffHeight float64 // metres, default 1.0
	PowerGain     float64 // m/s per unit of raw power, default 0.01

	// Per-direction response ratios relative to the positive direction.
	// A PitchBackRatio of 0.5 makes backward probes travel half as far as
	// forward ones, so calibration measures a back factor of 2.0.
	// Zero means 1.0 (symmetric).
	PitchBackRatio    float64
	RollLeftRatio     float64
	ThrottleDownRatio float64
}

// SimVehicle is a first-order kinematic stand-in for the real vehicle link.
// It implements TelemetryPort, MotionSink, and PowerSink: position tracks
// the last commanded target at the commanded speed, and raw power moves
// displace it through the configured per-direction gains. Safe for use from
// a single controller goroutine plus test inspection.
type SimVehicle struct {
	mu    sync.Mutex
	clock timectrl.Clock
	cfg   SimVehicleConfig

	pos      Vec3
	target   Vec3
	speed    float64
	tracking bool
	lastStep time.Time

	pitch, roll, throttle int
	trimRoll, trimPitch   int
	paired                bool
	battery               float64
}

// NewSimVehicle constructs a grounded, unpaired vehicle at cfg.Start.
func NewSimVehicle(cfg SimVehicleConfig) *SimVehicle {
	if cfg.Clock == nil {
		cfg.Clock = timectrl.Wall{}
	}
	if cfg.TakeoffHeight == 0 {
		cfg.TakeoffHeight = 1.0
	}
	if cfg.PowerGain == 0 {
		cfg.PowerGain = 0.01
	}
	if cfg.PitchBackRatio == 0 {
		cfg.PitchBackRatio = 1.0
	}
	if cfg.RollLeftRatio == 0 {
		cfg.RollLeftRatio = 1.0
	}
	if cfg.ThrottleDownRatio == 0 {
		cfg.ThrottleDownRatio = 1.0
	}
	return &SimVehicle{
		clock:    cfg.Clock,
		cfg:      cfg,
		pos:      cfg.Start,
		lastStep: cfg.Clock.Now(),
		battery:  87.0,
	}
}

// advance integrates position toward the tracked target. Callers hold mu.
func (v *SimVehicle) advance() {
	now := v.clock.Now()
	dt := now.Sub(v.lastStep).Seconds()
	v.lastStep = now
	if !v.tracking || dt <= 0 {
		return
	}
	remaining := v.target.Sub(v.pos)
	dist := remaining.Norm()
	step := v.speed * dt
	if step >= dist || dist == 0 {
		v.pos = v.target
		v.tracking = false
		return
	}
	v.pos = v.pos.Add(remaining.Scale(step / dist))
}

// Position implements TelemetryPort.
func (v *SimVehicle) Position() (model.Position, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.advance()
	return model.Position{Time: v.clock.Now(), X: v.pos.X, Y: v.pos.Y, Z: v.pos.Z}, nil
}

// Battery implements TelemetryPort.
func (v *SimVehicle) Battery() (float64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.battery, nil
}

// Temperature implements TelemetryPort.
func (v *SimVehicle) Temperature(unit string) (float64, error) {
	if unit == "F" {
		return 77.0, nil
	}
	return 25.0, nil
}

// SendAbsolutePosition implements MotionSink.
func (v *SimVehicle) SendAbsolutePosition(target Vec3, speed, auxPitch, auxRoll float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.advance()
	v.target = target
	v.speed = speed
	v.tracking = true
}

// Hover implements MotionSink: the simulated vehicle holds position
// perfectly for the duration.
func (v *SimVehicle) Hover(d time.Duration) {
	v.mu.Lock()
	v.advance()
	v.tracking = false
	v.mu.Unlock()
	v.clock.Sleep(d)
	v.mu.Lock()
	v.lastStep = v.clock.Now()
	v.mu.Unlock()
}

// Takeoff implements MotionSink.
func (v *SimVehicle) Takeoff() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.advance()
	v.tracking = false
	v.pos.Z = v.cfg.TakeoffHeight
}

// Land implements MotionSink.
func (v *SimVehicle) Land() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.advance()
	v.tracking = false
	v.pos.Z = 0
}

// SetTrim implements MotionSink.
func (v *SimVehicle) SetTrim(roll, pitch int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.trimRoll, v.trimPitch = roll, pitch
}

// Pair implements MotionSink.
func (v *SimVehicle) Pair() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paired = true
	return nil
}

// SetPitch implements PowerSink.
func (v *SimVehicle) SetPitch(power int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pitch = power
}

// SetRoll implements PowerSink.
func (v *SimVehicle) SetRoll(power int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.roll = power
}

// SetThrottle implements PowerSink.
func (v *SimVehicle) SetThrottle(power int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.throttle = power
}

// Move implements PowerSink: the set power levels displace the vehicle for
// d through the per-direction gains.
func (v *SimVehicle) Move(d time.Duration) {
	v.mu.Lock()
	v.advance()
	v.tracking = false
	secs := d.Seconds()
	v.pos.X += v.directional(v.pitch, v.cfg.PitchBackRatio) * secs
	v.pos.Y += v.directional(v.roll, v.cfg.RollLeftRatio) * secs
	v.pos.Z += v.directional(v.throttle, v.cfg.ThrottleDownRatio) * secs
	v.mu.Unlock()
	v.clock.Sleep(d)
	v.mu.Lock()
	v.lastStep = v.clock.Now()
	v.mu.Unlock()
}

// directional converts a raw power level into a velocity, attenuating the
// negative direction by the configured ratio.
func (v *SimVehicle) directional(power int, negRatio float64) float64 {
	vel := float64(power) * v.cfg.PowerGain
	if power < 0 {
		vel *= negRatio
	}
	return vel
}

// At returns the current simulated position for test assertions.
func (v *SimVehicle) At() Vec3 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.advance()
	return v.pos
}
