package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aerobench/flightpath/timectrl"
)

func TestTakeoffRequiresPairing(t *testing.T) {
	clock := timectrl.NewFake(time.Now())
	v := newScriptVehicle(clock, Vec3{})
	c := newTestController(v, clock)

	if err := c.Takeoff(context.Background(), 0); !errors.Is(err, ErrNotPaired) {
		t.Errorf("Takeoff error = %v, want ErrNotPaired", err)
	}
	if v.takeoffs != 0 {
		t.Error("unpaired takeoff must not command the vehicle")
	}
}

func TestLandRequiresAirborne(t *testing.T) {
	clock := timectrl.NewFake(time.Now())
	v := newScriptVehicle(clock, Vec3{})
	c := newTestController(v, clock)

	if err := c.Land(context.Background()); !errors.Is(err, ErrNotAirborne) {
		t.Errorf("Land error = %v, want ErrNotAirborne", err)
	}
	if v.landings != 0 {
		t.Error("grounded land must not command the vehicle")
	}
}

func TestPairTakeoffLandSequence(t *testing.T) {
	clock := timectrl.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	v := newScriptVehicle(clock, Vec3{})
	v.teleport = true
	c := newTestController(v, clock)

	ctx := context.Background()
	if err := c.Pair(ctx); err != nil {
		t.Fatalf("Pair: %v", err)
	}
	if !v.paired || !c.State().Paired {
		t.Fatal("pairing did not stick")
	}

	if err := c.Takeoff(ctx, 0.5); err != nil {
		t.Fatalf("Takeoff: %v", err)
	}
	if !c.State().Airborne {
		t.Error("takeoff did not mark the controller airborne")
	}
	if v.takeoffs != 1 {
		t.Errorf("takeoff commands = %d, want 1", v.takeoffs)
	}
	// Launch puts the vehicle at 1m; the verified climb adds the delta.
	if got := v.pos.Z; got != 1.5 {
		t.Errorf("height after takeoff = %v, want 1.5", got)
	}

	if err := c.Land(ctx); err != nil {
		t.Fatalf("Land: %v", err)
	}
	if c.State().Airborne {
		t.Error("landing did not clear the airborne state")
	}
	// The land command is sent twice against a lossy link.
	if v.landings != 2 {
		t.Errorf("land commands = %d, want 2", v.landings)
	}
}

func TestTakeoffWithoutClimb(t *testing.T) {
	clock := timectrl.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	v := newScriptVehicle(clock, Vec3{})
	v.teleport = true
	c := newTestController(v, clock)
	c.state.Paired = true

	if err := c.Takeoff(context.Background(), 0); err != nil {
		t.Fatalf("Takeoff: %v", err)
	}
	if got := len(v.commands); got != 0 {
		t.Errorf("zero-delta takeoff issued %d position commands, want 0", got)
	}
	if got := v.pos.Z; got != 1.0 {
		t.Errorf("height after takeoff = %v, want launch height 1.0", got)
	}
}
