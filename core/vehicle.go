package core

import (
	"time"

	"github.com/aerobench/flightpath/model"
)

// TelemetryPort supplies vehicle state snapshots. Implementations must be
// callable at the polling cadence (>= 20 Hz) without blocking for more than
// the cadence interval.
type TelemetryPort interface {
	// Position returns the current timestamped position.
	Position() (model.Position, error)
	// Battery returns the remaining charge in percent.
	Battery() (float64, error)
	// Temperature returns the vehicle temperature in the given unit ("C" or "F").
	Temperature(unit string) (float64, error)
}

// MotionSink accepts motion commands. Commands are fire-and-forget: no
// acknowledgement is assumed, arrival must be inferred from telemetry.
type MotionSink interface {
	// SendAbsolutePosition commands the vehicle toward target at speed
	// (m/s). auxPitch and auxRoll bias the secondary axes; both are zero
	// for plain translations.
	SendAbsolutePosition(target Vec3, speed, auxPitch, auxRoll float64)
	// Hover asks the vehicle's own loop to hold position for d.
	Hover(d time.Duration)
	// Takeoff starts a standard ascent to the vehicle's default height.
	Takeoff()
	// Land descends and disarms.
	Land()
	// SetTrim adjusts the neutral roll/pitch offsets.
	SetTrim(roll, pitch int)
	// Pair establishes the link.
	Pair() error
}

// PowerSink drives raw per-axis power levels. Only the calibration estimator
// uses it; everything else flies absolute-position commands.
type PowerSink interface {
	SetPitch(power int)
	SetRoll(power int)
	SetThrottle(power int)
	// Move applies the currently set power levels for the duration d.
	Move(d time.Duration)
}
