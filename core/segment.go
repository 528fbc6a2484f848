package core

import (
	"context"
	"fmt"
	"math"
	"time"
)

// segmentInterval is the fixed cadence of the streaming planner: each
// segment of a measured path occupies one interval at the requested speed.
const segmentInterval = 50 * time.Millisecond

// PlanSegments splits the straight-line displacement from start to target
// into equal sub-displacements, one per cadence interval at the given speed.
// The returned slice holds the absolute waypoint of each segment; the final
// waypoint is exactly target, so the emitted per-segment displacements sum
// to target - start with no rounding drift.
//
// A zero displacement plans nothing. A displacement short enough to round to
// zero segments plans the target as a single direct command.
func PlanSegments(start, target Vec3, speed float64) []Vec3 {
	dist := start.DistanceTo(target)
	if dist == 0 {
		return nil
	}
	n := int(math.Round(dist / speed / segmentInterval.Seconds()))
	if n <= 1 {
		return []Vec3{target}
	}
	delta := target.Sub(start)
	waypoints := make([]Vec3, n)
	for i := 1; i < n; i++ {
		waypoints[i-1] = start.Add(delta.Scale(float64(i) / float64(n)))
	}
	waypoints[n-1] = target
	return waypoints
}

// StreamSegments issues the planned waypoints at the fixed cadence without
// arrival verification. This is the fire-and-forget smoothing variant used
// by the measured path; it trades confirmation for a steadier command
// stream on long translations.
func (c *Controller) StreamSegments(ctx context.Context, start, target Vec3, speed float64, pattern string) error {
	if speed <= 0 {
		return fmt.Errorf("stream segments: speed must be positive, got %v", speed)
	}
	if pattern == "" {
		pattern = "Movement"
	}
	for i, wp := range PlanSegments(start, target, speed) {
		c.issue(pattern, wp, speed)
		pos, err := c.telemetry.Position()
		if err != nil {
			c.metrics.IncTelemetryFailure()
		} else {
			c.recordTelemetry(ctx, pattern, pos, "segment", i+1, start, target)
		}
		c.clock.Sleep(segmentInterval)
	}
	return nil
}
