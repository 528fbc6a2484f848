package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// FlightPlan is a JSON-selectable pattern run: which generator to fly and
// its numeric parameters. It exists so the front end can keep pattern
// configuration in a file instead of a wall of flags.
type FlightPlan struct {
	Pattern string `json:"pattern"` // simple_x|simple_y|simple_z|simple_yz|random_box|random_sphere|measured|simple

	Delta     float64 `json:"delta"`
	DeltaZ    float64 `json:"delta_z"`
	Speed     float64 `json:"speed"`
	MinDelayS float64 `json:"min_delay_s"`
	Repeats   int     `json:"repeats"`

	// Random walk parameters.
	Segments  int        `json:"segments"`
	MaxStep   [3]float64 `json:"max_step"`   // x, y, z
	MaxRadius float64    `json:"max_radius"` // spherical sampler
	Limits    [6]float64 `json:"limits"`     // xNeg, xPos, yNeg, yPos, zNeg, zPos
}

// LoadFlightPlan decodes and validates a plan from r.
func LoadFlightPlan(r io.Reader) (*FlightPlan, error) {
	var plan FlightPlan
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&plan); err != nil {
		return nil, fmt.Errorf("flight plan: decode failed: %w", err)
	}
	if err := plan.validate(); err != nil {
		return nil, fmt.Errorf("flight plan: %w", err)
	}
	return &plan, nil
}

func (p *FlightPlan) validate() error {
	switch p.Pattern {
	case "simple_x", "simple_y", "simple_z", "simple_yz",
		"random_box", "random_sphere", "measured", "simple":
	default:
		return fmt.Errorf("unknown pattern %q", p.Pattern)
	}
	if p.Speed <= 0 {
		return fmt.Errorf("speed must be positive, got %v", p.Speed)
	}
	if p.MinDelayS < 0 {
		return fmt.Errorf("min_delay_s must be non-negative, got %v", p.MinDelayS)
	}
	return nil
}

// Box converts the limits array into a SafetyBox.
func (p *FlightPlan) Box() SafetyBox {
	return SafetyBox{
		XNeg: p.Limits[0], XPos: p.Limits[1],
		YNeg: p.Limits[2], YPos: p.Limits[3],
		ZNeg: p.Limits[4], ZPos: p.Limits[5],
	}
}

// Run dispatches the plan to the matching pattern generator.
func (p *FlightPlan) Run(ctx context.Context, c *Controller) error {
	minDelay := time.Duration(p.MinDelayS * float64(time.Second))
	sweep := SweepParams{
		Delta:    p.Delta,
		DeltaZ:   p.DeltaZ,
		Speed:    p.Speed,
		MinDelay: minDelay,
		Repeats:  p.Repeats,
	}
	walk := RandomWalkParams{
		Box:       p.Box(),
		MaxStep:   Vec3{X: p.MaxStep[0], Y: p.MaxStep[1], Z: p.MaxStep[2]},
		MaxRadius: p.MaxRadius,
		Speed:     p.Speed,
		MinDelay:  minDelay,
		Segments:  p.Segments,
	}

	switch p.Pattern {
	case "simple_x":
		return c.SweepAxis(ctx, AxisX, sweep)
	case "simple_y":
		return c.SweepAxis(ctx, AxisY, sweep)
	case "simple_z":
		return c.SweepAxis(ctx, AxisZ, sweep)
	case "simple_yz":
		return c.SweepYZ(ctx, sweep)
	case "random_box":
		walk.Sampler = SamplerBox
		return c.RandomWalk(ctx, walk)
	case "random_sphere":
		walk.Sampler = SamplerSpherical
		return c.RandomWalk(ctx, walk)
	case "measured":
		return c.MeasuredPath(ctx, p.Delta, p.Speed, p.Repeats)
	case "simple":
		return c.SimplePath(ctx, p.Delta, p.Speed, p.Repeats)
	default:
		return fmt.Errorf("unknown pattern %q", p.Pattern)
	}
}
