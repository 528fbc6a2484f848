package core

import (
	"context"
	"fmt"
	"time"

	"github.com/aerobench/flightpath/internal/flightlog"
)

// MeasuredPath flies out-and-back excursions on the Z, Y, and X axes using
// the streaming segment planner. No arrival verification: each excursion is
// a smoothed command stream with a telemetry row per segment.
func (c *Controller) MeasuredPath(ctx context.Context, limit, speed float64, repeats int) error {
	if speed <= 0 {
		return fmt.Errorf("measured path: speed must be positive, got %v", speed)
	}
	if repeats <= 0 {
		repeats = 2
	}
	const pattern = "XYZ_abs"

	ctx, span := c.tracer.Start(ctx, "flight.measured_path")
	defer span.End()

	refPos, err := c.position(ctx)
	if err != nil {
		return fmt.Errorf("measured path: %w", err)
	}
	ref := VecOf(refPos)

	axes := []Axis{AxisZ, AxisY, AxisX}
	for i := 0; i < repeats; i++ {
		for _, axis := range axes {
			if err := ctx.Err(); err != nil {
				return err
			}
			unit := axis.unit()
			stops := []float64{limit, -limit, 0}
			current := 0.0
			for _, next := range stops {
				start := ref.Add(unit.Scale(current))
				target := ref.Add(unit.Scale(next))
				if err := c.StreamSegments(ctx, start, target, speed, pattern); err != nil {
					return err
				}
				c.motion.Hover(time.Second)
				current = next
			}
		}
	}
	return nil
}

// SimplePath flies out-and-back legs on the X, Y, and Z axes with single
// direct commands and fixed dwell sleeps, logging position after each leg.
// This is the crudest motion primitive; it exists mostly as a baseline to
// compare the verified and measured variants against.
func (c *Controller) SimplePath(ctx context.Context, dist, speed float64, repeats int) error {
	if speed <= 0 {
		return fmt.Errorf("simple path: speed must be positive, got %v", speed)
	}
	if repeats <= 0 {
		repeats = 2
	}
	const pattern = "XYZ_simple"

	ctx, span := c.tracer.Start(ctx, "flight.simple_path")
	defer span.End()

	refPos, err := c.position(ctx)
	if err != nil {
		return fmt.Errorf("simple path: %w", err)
	}
	ref := VecOf(refPos)
	c.record(ctx, flightlog.Record{Pattern: pattern, Telemetry: refPos})

	dwell := c.dwell + time.Duration(dist/speed*float64(time.Second))
	axes := []Axis{AxisX, AxisY, AxisZ}
	for i := 0; i < repeats; i++ {
		for _, axis := range axes {
			if err := ctx.Err(); err != nil {
				return err
			}
			unit := axis.unit()
			for _, offset := range []float64{dist, -dist, 0} {
				c.issue(pattern, ref.Add(unit.Scale(offset)), speed)
				c.clock.Sleep(dwell)
				if pos, err := c.position(ctx); err == nil {
					c.record(ctx, flightlog.Record{Pattern: pattern, Telemetry: pos})
				}
			}
		}
	}
	return nil
}
