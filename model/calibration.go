package model

import (
	"fmt"
	"math"
)

// CalibrationProfile holds per-direction power scale factors derived from
// measured displacement asymmetries. The forward direction of each axis is
// the reference and stays at 1.0; the opposing direction carries the
// measured ratio. Factors are always strictly positive and finite.
//
// A profile is owned by exactly one controller instance and is mutated only
// by its calibration estimator.
type CalibrationProfile struct {
	PitchForward float64
	PitchBack    float64
	RollRight    float64
	RollLeft     float64
	ThrottleUp   float64
	ThrottleDown float64
	YawCW        float64
	YawCCW       float64

	Calibrated bool
}

// DefaultCalibration returns the uncalibrated profile with every factor 1.0.
func DefaultCalibration() CalibrationProfile {
	return CalibrationProfile{
		PitchForward: 1.0,
		PitchBack:    1.0,
		RollRight:    1.0,
		RollLeft:     1.0,
		ThrottleUp:   1.0,
		ThrottleDown: 1.0,
		YawCW:        1.0,
		YawCCW:       1.0,
	}
}

// Validate rejects profiles carrying a non-positive or non-finite factor.
func (p CalibrationProfile) Validate() error {
	factors := map[string]float64{
		"pitch_forward": p.PitchForward,
		"pitch_back":    p.PitchBack,
		"roll_right":    p.RollRight,
		"roll_left":     p.RollLeft,
		"throttle_up":   p.ThrottleUp,
		"throttle_down": p.ThrottleDown,
		"yaw_cw":        p.YawCW,
		"yaw_ccw":       p.YawCCW,
	}
	for name, f := range factors {
		if f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
			return fmt.Errorf("calibration factor %s = %v out of range", name, f)
		}
	}
	return nil
}
