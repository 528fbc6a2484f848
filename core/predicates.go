package core

import (
	"math"
	"time"
)

// arrived reports whether telemetry shows the intended displacement
// substantially complete. Every axis must independently cover at least
// fraction of its intended displacement; an axis with zero intended
// displacement satisfies the test trivially (0 >= 0).
//
// Arrival is defined operationally from displacement rather than from
// command acknowledgement: the vehicle's own tracking loop is noisy and slow
// relative to the polling interval, so "the command was accepted" says
// nothing about where the vehicle is.
func arrived(start, target, current Vec3, fraction float64) bool {
	return axisArrived(start.X, target.X, current.X, fraction) &&
		axisArrived(start.Y, target.Y, current.Y, fraction) &&
		axisArrived(start.Z, target.Z, current.Z, fraction)
}

func axisArrived(start, target, current, fraction float64) bool {
	return math.Abs(current-start) >= fraction*math.Abs(target-start)
}

// deadlineExpired reports whether at least minDelay has elapsed since start.
// minDelay is a floor, not a ceiling: a move keeps re-issuing its command
// until both this and arrived hold on the same iteration.
func deadlineExpired(start, now time.Time, minDelay time.Duration) bool {
	return now.Sub(start) >= minDelay
}
