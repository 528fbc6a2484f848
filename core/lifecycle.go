package core

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aerobench/flightpath/internal/flightlog"
	"github.com/aerobench/flightpath/internal/logging"
)

// Pair establishes the vehicle link and records battery and temperature.
func (c *Controller) Pair(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "flight.pair")
	defer span.End()

	c.log.Info(ctx, "pairing vehicle")
	if err := c.motion.Pair(); err != nil {
		return fmt.Errorf("pair: %w", err)
	}
	c.state.Paired = true

	extra := c.healthExtra(ctx)
	pos, err := c.position(ctx)
	if err != nil {
		// Pairing succeeded; the health row is best-effort.
		c.log.Warn(ctx, "no telemetry after pairing", logging.Err(err))
		c.record(ctx, flightlog.Record{Pattern: "Pairing", Extra: extra})
		return nil
	}
	c.record(ctx, flightlog.Record{Pattern: "Pairing", Telemetry: pos, Extra: extra})
	return nil
}

// Takeoff launches the vehicle and climbs by deltaZ with a verified move.
// The trim offsets are zeroed first and given a moment to take effect.
func (c *Controller) Takeoff(ctx context.Context, deltaZ float64) error {
	if !c.state.Paired {
		return fmt.Errorf("takeoff: %w", ErrNotPaired)
	}
	ctx, span := c.tracer.Start(ctx, "flight.takeoff")
	defer span.End()

	c.motion.SetTrim(0, 0)
	c.clock.Sleep(time.Second)
	c.motion.Takeoff()
	c.state.Airborne = true

	pos, err := c.position(ctx)
	if err != nil {
		return fmt.Errorf("takeoff: %w", err)
	}
	c.clock.Sleep(c.dwell)

	if deltaZ != 0 {
		c.log.Info(ctx, "adjusting launch height",
			logging.Float64("from", pos.Z),
			logging.Float64("to", pos.Z+deltaZ),
		)
		start := VecOf(pos)
		req := MotionRequest{
			Start:    start,
			Target:   start.Add(Vec3{Z: deltaZ}),
			Speed:    0.2,
			MinDelay: 500 * time.Millisecond,
			Pattern:  "Takeoff",
		}
		if err := c.VerifiedMove(ctx, req); err != nil {
			return fmt.Errorf("takeoff climb: %w", err)
		}
	}

	after, err := c.position(ctx)
	if err != nil {
		return fmt.Errorf("takeoff: %w", err)
	}
	c.clock.Sleep(c.dwell)
	c.record(ctx, flightlog.Record{Pattern: "Takeoff", Telemetry: after, Extra: c.healthExtra(ctx)})
	c.motion.Hover(3 * time.Second)
	return nil
}

// Land stabilises in a hold, then issues the landing command twice (the
// link is fire-and-forget, so a single command can be lost).
func (c *Controller) Land(ctx context.Context) error {
	if !c.state.Airborne {
		return fmt.Errorf("land: %w", ErrNotAirborne)
	}
	ctx, span := c.tracer.Start(ctx, "flight.land")
	defer span.End()

	if err := c.Hold(ctx, 2*time.Second, time.Second, "Landing"); err != nil {
		return fmt.Errorf("land: %w", err)
	}

	c.log.Info(ctx, "landing")
	extra := c.healthExtra(ctx)
	pos, posErr := c.position(ctx)

	for i := 0; i < 2; i++ {
		c.motion.Land()
	}
	c.state.Airborne = false

	rec := flightlog.Record{Pattern: "Landing", Extra: extra}
	if posErr == nil {
		rec.Telemetry = pos
	}
	c.record(ctx, rec)
	return nil
}

// healthExtra reads battery and temperature for a lifecycle log row. Sensor
// failures degrade to an empty annotation rather than blocking the flight.
func (c *Controller) healthExtra(ctx context.Context) []string {
	var extra []string
	if batt, err := c.telemetry.Battery(); err == nil {
		extra = append(extra, "battery", strconv.FormatFloat(batt, 'f', 2, 64))
	} else {
		c.log.Warn(ctx, "battery read failed", logging.Err(err))
	}
	if temp, err := c.telemetry.Temperature("C"); err == nil {
		extra = append(extra, "temp", strconv.FormatFloat(temp, 'f', 2, 64))
	} else {
		c.log.Warn(ctx, "temperature read failed", logging.Err(err))
	}
	return extra
}
