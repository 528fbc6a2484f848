package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aerobench/flightpath/timectrl"
)

func TestVerifiedMoveImmediateArrival(t *testing.T) {
	clock := timectrl.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	v := newScriptVehicle(clock, Vec3{Z: 1})
	v.teleport = true
	c := newTestController(v, clock)

	req := MotionRequest{
		Start:   Vec3{Z: 1},
		Target:  Vec3{X: 0.5, Z: 1},
		Speed:   0.5,
		Pattern: "Simple_X",
	}
	if err := c.VerifiedMove(context.Background(), req); err != nil {
		t.Fatalf("VerifiedMove: %v", err)
	}
	if got := len(v.commands); got != 1 {
		t.Errorf("issued %d commands, want 1 (arrival on first poll, no MinDelay)", got)
	}
	if v.commands[0].target != req.Target {
		t.Errorf("commanded %+v, want %+v", v.commands[0].target, req.Target)
	}
	if v.commands[0].speed != req.Speed {
		t.Errorf("commanded speed %v, want %v", v.commands[0].speed, req.Speed)
	}
}

func TestVerifiedMoveMinDelayFloor(t *testing.T) {
	clock := timectrl.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	v := newScriptVehicle(clock, Vec3{Z: 1})
	v.teleport = true
	c := newTestController(v, clock) // 50ms poll

	req := MotionRequest{
		Start:    Vec3{Z: 1},
		Target:   Vec3{X: 0.5, Z: 1},
		Speed:    0.5,
		MinDelay: 200 * time.Millisecond,
	}
	if err := c.VerifiedMove(context.Background(), req); err != nil {
		t.Fatalf("VerifiedMove: %v", err)
	}
	// Arrival is instant, so the loop is paced purely by the delay floor:
	// the k-th check sees (k-1) poll intervals elapsed.
	if got := len(v.commands); got != 5 {
		t.Errorf("issued %d commands, want 5 for a 200ms floor at 50ms cadence", got)
	}
}

func TestVerifiedMoveWaitsForDisplacement(t *testing.T) {
	clock := timectrl.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	v := newScriptVehicle(clock, Vec3{})
	// The vehicle sits still for nine polls and only then reaches the
	// target, long after any time floor has passed.
	for i := 0; i < 9; i++ {
		v.posQueue = append(v.posQueue, Vec3{})
	}
	v.posQueue = append(v.posQueue, Vec3{X: 1})
	c := newTestController(v, clock)

	req := MotionRequest{
		Target: Vec3{X: 1},
		Speed:  0.5,
	}
	if err := c.VerifiedMove(context.Background(), req); err != nil {
		t.Fatalf("VerifiedMove: %v", err)
	}
	if got := len(v.commands); got != 10 {
		t.Errorf("issued %d commands, want 10 (retry until displacement confirms)", got)
	}
}

func TestVerifiedMoveAbortsAfterTelemetryFailures(t *testing.T) {
	clock := timectrl.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	v := newScriptVehicle(clock, Vec3{})
	v.failAfter = 1 // first poll succeeds, everything after fails
	c, err := NewController(Config{
		Telemetry:             v,
		Motion:                v,
		Clock:                 clock,
		PollInterval:          50 * time.Millisecond,
		TelemetryFailureLimit: 5,
	})
	if err != nil {
		t.Fatal(err)
	}

	moveErr := c.VerifiedMove(context.Background(), MotionRequest{Target: Vec3{X: 1}, Speed: 0.5})
	if !errors.Is(moveErr, ErrTelemetryUnavailable) {
		t.Fatalf("VerifiedMove error = %v, want ErrTelemetryUnavailable", moveErr)
	}
	// 1 successful poll + 5 consecutive failures.
	if got := len(v.commands); got != 6 {
		t.Errorf("issued %d commands, want 6", got)
	}
	// The abort path must leave the vehicle holding, not chasing the target.
	if len(v.hovers) != 1 || v.hovers[0] != 2*time.Second {
		t.Errorf("hovers = %v, want one 2s hold after abort", v.hovers)
	}
}

func TestVerifiedMoveRejectsBadRequests(t *testing.T) {
	clock := timectrl.NewFake(time.Now())
	v := newScriptVehicle(clock, Vec3{})
	c := newTestController(v, clock)

	if err := c.VerifiedMove(context.Background(), MotionRequest{Target: Vec3{X: 1}}); err == nil {
		t.Error("zero speed must be rejected")
	}
	req := MotionRequest{Target: Vec3{X: 1}, Speed: 0.5, CompletionFraction: 1.5}
	if err := c.VerifiedMove(context.Background(), req); err == nil {
		t.Error("completion fraction above 1 must be rejected")
	}
	if got := len(v.commands); got != 0 {
		t.Errorf("rejected requests must not command the vehicle, got %d commands", got)
	}
}

func TestHoldReassertsAnchorUntilElapsed(t *testing.T) {
	clock := timectrl.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	anchor := Vec3{X: 0.2, Y: -0.1, Z: 1}
	v := newScriptVehicle(clock, anchor)
	c := newTestController(v, clock)

	if err := c.Hold(context.Background(), 200*time.Millisecond, 100*time.Millisecond, "Hover"); err != nil {
		t.Fatalf("Hold: %v", err)
	}
	// 300ms total at 50ms cadence: the 7th check sees 300ms elapsed.
	if got := len(v.commands); got != 7 {
		t.Errorf("issued %d commands, want 7", got)
	}
	for i, cmd := range v.commands {
		if cmd.target != anchor {
			t.Fatalf("command %d targeted %+v, want anchor %+v", i, cmd.target, anchor)
		}
		if cmd.speed != holdSpeed {
			t.Fatalf("command %d speed %v, want hold speed %v", i, cmd.speed, holdSpeed)
		}
	}
}

func TestHoldToleratesTelemetryDropouts(t *testing.T) {
	clock := timectrl.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	v := newScriptVehicle(clock, Vec3{Z: 1})
	c := newTestController(v, clock)

	// Anchor fetch succeeds, then the link drops for the whole hold.
	v.failAfter = 1
	if err := c.Hold(context.Background(), 100*time.Millisecond, 0, "Hover"); err != nil {
		t.Fatalf("Hold must ride out dropouts, got %v", err)
	}
	if got := len(v.commands); got == 0 {
		t.Error("hold issued no commands")
	}
}
