package core

import (
	"context"
	"fmt"
	"time"

	"github.com/aerobench/flightpath/internal/logging"
	"github.com/aerobench/flightpath/internal/observability"
)

// MotionRequest fully specifies one verified move.
type MotionRequest struct {
	// Start is the reference the arrival predicate measures displacement
	// from. It is captured by the caller, not re-read from telemetry, so
	// each pattern leg verifies against its own intended frame.
	Start Vec3
	// Target is the absolute position to command.
	Target Vec3
	// Speed is the commanded speed in m/s. Must be positive.
	Speed float64
	// CompletionFraction is the share of |Target-Start| that must be
	// covered on every axis, in (0, 1]. Zero selects the default 0.75.
	CompletionFraction float64
	// MinDelay is a floor on the move's duration: even an instant arrival
	// keeps re-issuing the command (settling) until MinDelay has elapsed.
	MinDelay time.Duration
	// Pattern labels flight log rows and metrics for this move.
	Pattern string
}

// VerifiedMove repeatedly issues the absolute-position command and polls
// telemetry until, on the same iteration, the minimum delay has elapsed AND
// the displacement fraction is reached on every axis.
//
// There is no hard upper bound: a move that reaches MinDelay before arriving
// keeps retrying until arrival is detected. That prioritises arrival
// confirmation over wall-clock determinism; callers needing a hard ceiling
// must wrap this with an external watchdog. The only errors returned are a
// bad request and exhausted telemetry retries.
func (c *Controller) VerifiedMove(ctx context.Context, req MotionRequest) error {
	if req.Speed <= 0 {
		return fmt.Errorf("verified move: speed must be positive, got %v", req.Speed)
	}
	fraction := req.CompletionFraction
	if fraction == 0 {
		fraction = defaultCompletionFraction
	}
	if fraction < 0 || fraction > 1 {
		return fmt.Errorf("verified move: completion fraction %v outside (0, 1]", req.CompletionFraction)
	}
	pattern := req.Pattern
	if pattern == "" {
		pattern = "Movement"
	}

	c.log.Debug(ctx, "verified move start",
		logging.String("pattern", pattern),
		logging.Float64("target_x", req.Target.X),
		logging.Float64("target_y", req.Target.Y),
		logging.Float64("target_z", req.Target.Z),
		logging.Float64("speed", req.Speed),
	)

	start := c.clock.Now()
	iteration := 0
	failures := 0
	for {
		iteration++
		c.issue(pattern, req.Target, req.Speed)

		pos, err := c.telemetry.Position()
		if err != nil {
			failures++
			c.metrics.IncTelemetryFailure()
			c.log.Warn(ctx, "telemetry fetch failed mid-move",
				logging.String("pattern", pattern),
				logging.Int("consecutive", failures),
				logging.Err(err),
			)
			if failures >= c.failureLimit {
				// Leave the vehicle holding rather than chasing a
				// target we can no longer verify.
				c.motion.Hover(2 * time.Second)
				c.metrics.ObserveMove(pattern, iteration, observability.OutcomeAborted)
				return fmt.Errorf("verified move %s: %w after %d consecutive failures",
					pattern, ErrTelemetryUnavailable, failures)
			}
			c.clock.Sleep(c.pollInterval)
			continue
		}
		failures = 0

		c.recordTelemetry(ctx, pattern, pos, "send_abs_pos", iteration, req.Start, req.Target)

		timeExpired := deadlineExpired(start, c.clock.Now(), req.MinDelay)
		movementComplete := arrived(req.Start, req.Target, VecOf(pos), fraction)
		if timeExpired && movementComplete {
			c.metrics.ObserveMove(pattern, iteration, observability.OutcomeArrived)
			c.log.Debug(ctx, "verified move arrived",
				logging.String("pattern", pattern),
				logging.Int("iterations", iteration),
			)
			return nil
		}
		c.clock.Sleep(c.pollInterval)
	}
}

// Hold re-issues the entry position as the command target for
// holdTime + settleTime, polling and logging every iteration. The exit is
// strictly elapsed-time: holding is not "arrival", it is "don't drift".
//
// Used standalone to pause between pattern legs and before landing to let
// the vehicle stabilise.
func (c *Controller) Hold(ctx context.Context, holdTime, settleTime time.Duration, pattern string) error {
	if pattern == "" {
		pattern = "Hover"
	}
	anchorPos, err := c.position(ctx)
	if err != nil {
		return fmt.Errorf("hold %s: %w", pattern, err)
	}
	anchor := VecOf(anchorPos)

	start := c.clock.Now()
	total := holdTime + settleTime
	iteration := 0
	for {
		iteration++
		c.issue(pattern, anchor, holdSpeed)

		pos, err := c.telemetry.Position()
		if err != nil {
			// Holding is time-based; a missed snapshot only loses a
			// log row.
			c.metrics.IncTelemetryFailure()
			c.log.Warn(ctx, "telemetry fetch failed mid-hold",
				logging.String("pattern", pattern), logging.Err(err))
		} else {
			c.recordTelemetry(ctx, pattern, pos, "hover", iteration, anchor, anchor)
		}

		if deadlineExpired(start, c.clock.Now(), total) {
			return nil
		}
		c.clock.Sleep(c.pollInterval)
	}
}

// issue sends one absolute-position command and counts it.
func (c *Controller) issue(pattern string, target Vec3, speed float64) {
	c.motion.SendAbsolutePosition(target, speed, 0, 0)
	c.metrics.ObserveCommand(pattern)
}
