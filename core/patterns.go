package core

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/aerobench/flightpath/internal/logging"
)

// SafetyBox bounds pattern motion relative to the pattern's initial
// reference position. The Neg fields are signed offsets (normally <= 0), the
// Pos fields normally >= 0: the permitted X range is
// [ref.X + XNeg, ref.X + XPos], and likewise for Y and Z.
type SafetyBox struct {
	XNeg, XPos float64
	YNeg, YPos float64
	ZNeg, ZPos float64
}

// Clamp post-processes a sampled displacement so the predicted next position
// stays inside the box: an axis that would cross the negative bound has its
// delta forced positive, one that would cross the positive bound forced
// negative, and an in-bounds axis keeps its sampled sign.
func (b SafetyBox) Clamp(ref, cur, delta Vec3) Vec3 {
	if cur.X+delta.X < ref.X+b.XNeg {
		delta.X = math.Abs(delta.X)
	} else if cur.X+delta.X > ref.X+b.XPos {
		delta.X = -math.Abs(delta.X)
	}
	if cur.Y+delta.Y < ref.Y+b.YNeg {
		delta.Y = math.Abs(delta.Y)
	} else if cur.Y+delta.Y > ref.Y+b.YPos {
		delta.Y = -math.Abs(delta.Y)
	}
	if cur.Z+delta.Z < ref.Z+b.ZNeg {
		delta.Z = math.Abs(delta.Z)
	} else if cur.Z+delta.Z > ref.Z+b.ZPos {
		delta.Z = -math.Abs(delta.Z)
	}
	return delta
}

// Contains reports whether p lies inside the box around ref.
func (b SafetyBox) Contains(ref, p Vec3) bool {
	return p.X >= ref.X+b.XNeg && p.X <= ref.X+b.XPos &&
		p.Y >= ref.Y+b.YNeg && p.Y <= ref.Y+b.YPos &&
		p.Z >= ref.Z+b.ZNeg && p.Z <= ref.Z+b.ZPos
}

// Axis names a translation axis of the local frame.
type Axis int

const (
	AxisX Axis = iota // forward / backward
	AxisY             // left / right
	AxisZ             // up / down
)

// String returns the axis letter.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	default:
		return "?"
	}
}

func (a Axis) unit() Vec3 {
	switch a {
	case AxisX:
		return Vec3{X: 1}
	case AxisY:
		return Vec3{Y: 1}
	default:
		return Vec3{Z: 1}
	}
}

// SweepParams configures a single- or dual-axis sweep.
type SweepParams struct {
	Delta      float64       // sweep amplitude in metres (per axis; DeltaZ overrides for Z in SweepYZ)
	DeltaZ     float64       // vertical amplitude for SweepYZ; ignored elsewhere
	Speed      float64       // commanded speed, m/s
	MinDelay   time.Duration // per-leg minimum duration
	Repeats    int           // sweep cycles, default 2
	HoldTime   time.Duration // hold between legs, default 2s
	SettleTime time.Duration // settle appended to each hold, default 1s
}

func (p *SweepParams) applyDefaults() {
	if p.Repeats <= 0 {
		p.Repeats = 2
	}
	if p.HoldTime <= 0 {
		p.HoldTime = 2 * time.Second
	}
	if p.SettleTime <= 0 {
		p.SettleTime = time.Second
	}
}

// maxVerticalDrop caps how far below the launch height a vertical sweep may
// command: the downward amplitude never exceeds this fraction of the
// reference height.
const maxVerticalDrop = 0.75

// clampVertical reduces a requested vertical amplitude so the vehicle is
// never commanded below (1 - maxVerticalDrop) of its reference height.
func clampVertical(delta, z0 float64) float64 {
	if delta < maxVerticalDrop*z0 {
		return delta
	}
	return maxVerticalDrop * z0
}

// SweepAxis flies repeated out-and-back legs along one axis: +delta, back to
// centre, -delta, back to centre, holding after every leg. The reference
// frame is captured once at entry, so drift across legs does not compound
// the intended shape.
func (c *Controller) SweepAxis(ctx context.Context, axis Axis, params SweepParams) error {
	params.applyDefaults()
	if params.Speed <= 0 {
		return fmt.Errorf("sweep %s: speed must be positive, got %v", axis, params.Speed)
	}
	pattern := "Simple_" + axis.String()

	ctx, span := c.tracer.Start(ctx, "flight.sweep",
		trace.WithAttributes(attribute.String("axis", axis.String())))
	defer span.End()

	refPos, err := c.position(ctx)
	if err != nil {
		return fmt.Errorf("sweep %s: %w", axis, err)
	}
	ref := VecOf(refPos)

	delta := params.Delta
	if axis == AxisZ {
		delta = clampVertical(delta, refPos.Z)
	}

	for i := 0; i < params.Repeats; i++ {
		if err := c.sweepCycle(ctx, ref, axis, delta, pattern, params); err != nil {
			return err
		}
	}
	return nil
}

// SweepYZ interleaves the Y sweep legs and the Z sweep legs within each
// repeat cycle. Delta drives Y, DeltaZ drives Z (clamped to the launch
// height like any vertical sweep).
func (c *Controller) SweepYZ(ctx context.Context, params SweepParams) error {
	params.applyDefaults()
	if params.Speed <= 0 {
		return fmt.Errorf("sweep YZ: speed must be positive, got %v", params.Speed)
	}
	const pattern = "Simple_YZ"

	ctx, span := c.tracer.Start(ctx, "flight.sweep", trace.WithAttributes(attribute.String("axis", "YZ")))
	defer span.End()

	refPos, err := c.position(ctx)
	if err != nil {
		return fmt.Errorf("sweep YZ: %w", err)
	}
	ref := VecOf(refPos)
	deltaZ := clampVertical(params.DeltaZ, refPos.Z)

	for i := 0; i < params.Repeats; i++ {
		if err := c.sweepCycle(ctx, ref, AxisY, params.Delta, pattern, params); err != nil {
			return err
		}
		if err := c.sweepCycle(ctx, ref, AxisZ, deltaZ, pattern, params); err != nil {
			return err
		}
	}
	return nil
}

// sweepCycle flies one out-and-back cycle: +delta, centre, -delta, centre,
// each leg a verified move followed by a hold.
func (c *Controller) sweepCycle(ctx context.Context, ref Vec3, axis Axis, delta float64, pattern string, params SweepParams) error {
	unit := axis.unit()
	offsets := []float64{delta, 0, -delta, 0}
	current := 0.0
	for _, next := range offsets {
		if err := ctx.Err(); err != nil {
			return err
		}
		req := MotionRequest{
			Start:    ref.Add(unit.Scale(current)),
			Target:   ref.Add(unit.Scale(next)),
			Speed:    params.Speed,
			MinDelay: params.MinDelay,
			Pattern:  pattern,
		}
		if err := c.VerifiedMove(ctx, req); err != nil {
			return err
		}
		if err := c.Hold(ctx, params.HoldTime, params.SettleTime, pattern); err != nil {
			return err
		}
		current = next
	}
	return nil
}

// Sampler selects how RandomWalk draws per-segment displacements.
type Sampler int

const (
	// SamplerBox draws each axis independently and uniformly from
	// [-max, max].
	SamplerBox Sampler = iota
	// SamplerSpherical draws a radius in [maxRadius/2, maxRadius] and a
	// uniform direction in spherical coordinates.
	SamplerSpherical
)

// RandomWalkParams configures a bounded random walk.
type RandomWalkParams struct {
	Box        SafetyBox
	Sampler    Sampler
	MaxStep    Vec3          // per-axis step bounds, SamplerBox
	MaxRadius  float64       // step radius bound, SamplerSpherical
	Speed      float64       // commanded speed, m/s
	MinDelay   time.Duration // per-segment minimum duration
	Segments   int           // number of random segments, default 10
	HoldTime   time.Duration // hold between segments, default 1s
	SettleTime time.Duration // settle appended to each hold, default 1s
}

// RandomWalk flies a calibration leg on the Y axis (left, right, centre) and
// then Segments random displacements, each clamped so the predicted next
// position stays inside the safety box around the walk's initial reference.
// The clamp is evaluated against live telemetry, not the dead-reckoned
// frame, so accumulated drift cannot walk the vehicle out of the box.
func (c *Controller) RandomWalk(ctx context.Context, params RandomWalkParams) error {
	if params.Speed <= 0 {
		return fmt.Errorf("random walk: speed must be positive, got %v", params.Speed)
	}
	if params.Segments <= 0 {
		params.Segments = 10
	}
	if params.HoldTime <= 0 {
		params.HoldTime = time.Second
	}
	if params.SettleTime <= 0 {
		params.SettleTime = time.Second
	}
	const pattern = "Random_Limits"

	ctx, span := c.tracer.Start(ctx, "flight.random_walk",
		trace.WithAttributes(attribute.Int("segments", params.Segments)))
	defer span.End()

	refPos, err := c.position(ctx)
	if err != nil {
		return fmt.Errorf("random walk: %w", err)
	}
	ref := VecOf(refPos)

	if err := c.yCalibrationLeg(ctx, ref, pattern, params); err != nil {
		return err
	}

	for seg := 0; seg < params.Segments; seg++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		curPos, err := c.position(ctx)
		if err != nil {
			return fmt.Errorf("random walk segment %d: %w", seg+1, err)
		}
		cur := VecOf(curPos)

		delta := c.sampleStep(params)
		delta = params.Box.Clamp(ref, cur, delta)

		c.log.Debug(ctx, "random walk segment",
			logging.Int("segment", seg+1),
			logging.Float64("dx", delta.X),
			logging.Float64("dy", delta.Y),
			logging.Float64("dz", delta.Z),
		)
		req := MotionRequest{
			Start:    cur,
			Target:   cur.Add(delta),
			Speed:    params.Speed,
			MinDelay: params.MinDelay,
			Pattern:  pattern,
		}
		if err := c.VerifiedMove(ctx, req); err != nil {
			return err
		}
		if err := c.Hold(ctx, params.HoldTime, params.SettleTime, pattern); err != nil {
			return err
		}
	}
	return nil
}

// yCalibrationLeg flies left to the positive Y bound, across to the negative
// bound, and back to centre before the random segments start.
func (c *Controller) yCalibrationLeg(ctx context.Context, ref Vec3, pattern string, params RandomWalkParams) error {
	stops := []float64{params.Box.YPos, params.Box.YNeg, 0}
	current := 0.0
	for _, next := range stops {
		req := MotionRequest{
			Start:    ref.Add(Vec3{Y: current}),
			Target:   ref.Add(Vec3{Y: next}),
			Speed:    params.Speed,
			MinDelay: params.MinDelay,
			Pattern:  pattern,
		}
		if err := c.VerifiedMove(ctx, req); err != nil {
			return err
		}
		if err := c.Hold(ctx, time.Second, params.SettleTime, pattern); err != nil {
			return err
		}
		current = next
	}
	return nil
}

func (c *Controller) sampleStep(params RandomWalkParams) Vec3 {
	switch params.Sampler {
	case SamplerSpherical:
		r := uniform(c.rng, 0.5*params.MaxRadius, params.MaxRadius)
		theta := uniform(c.rng, 0, math.Pi)
		phi := uniform(c.rng, 0, 2*math.Pi)
		return Vec3{
			X: r * math.Sin(theta) * math.Sin(phi),
			Y: r * math.Sin(theta) * math.Cos(phi),
			Z: r * math.Cos(theta),
		}
	default:
		return Vec3{
			X: uniform(c.rng, -params.MaxStep.X, params.MaxStep.X),
			Y: uniform(c.rng, -params.MaxStep.Y, params.MaxStep.Y),
			Z: uniform(c.rng, -params.MaxStep.Z, params.MaxStep.Z),
		}
	}
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + (hi-lo)*rng.Float64()
}
