package model

import "time"

// Position is a timestamped telemetry snapshot in the vehicle's local frame.
// Coordinates are metres: X forward, Y left, Z up. A Position is immutable;
// the controller fetches a fresh one before and after every commanded step.
type Position struct {
	Time time.Time
	X    float64
	Y    float64
	Z    float64
}
