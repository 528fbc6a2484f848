package core

import "errors"

// Sentinel errors returned by controller operations. Callers match them with
// errors.Is; wrapped messages carry the operation context.
var (
	// ErrNotPaired is returned when an operation requires a paired link.
	ErrNotPaired = errors.New("vehicle not paired")
	// ErrNotAirborne is returned when an operation requires the vehicle to
	// be flying, e.g. calibration probes.
	ErrNotAirborne = errors.New("vehicle not airborne")
	// ErrInvalidCalibrationSample is returned when every calibration trial
	// measured a displacement below the noise floor, so no finite scale
	// factor can be derived.
	ErrInvalidCalibrationSample = errors.New("invalid calibration sample")
	// ErrTelemetryUnavailable is returned after a bounded number of
	// consecutive telemetry fetch failures.
	ErrTelemetryUnavailable = errors.New("telemetry unavailable")
)
