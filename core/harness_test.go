package core

import (
	"errors"
	"sync"
	"time"

	"github.com/aerobench/flightpath/model"
	"github.com/aerobench/flightpath/timectrl"
)

var errNoTelemetry = errors.New("link dropout")

// issuedCommand captures one absolute-position command for assertions.
type issuedCommand struct {
	target Vec3
	speed  float64
}

// scriptVehicle is a scripted test double implementing TelemetryPort,
// MotionSink, and PowerSink. In teleport mode every commanded target is
// reached instantly; otherwise the position only changes through posQueue
// or direct assignment.
type scriptVehicle struct {
	mu sync.Mutex

	pos      Vec3
	teleport bool

	// posQueue, when non-empty, overrides pos: each Position call pops
	// the next entry.
	posQueue []Vec3
	// failAfter > 0 makes Position return errNoTelemetry once that many
	// successful calls have been served.
	failAfter int
	posCalls  int

	clock timectrl.Clock

	commands []issuedCommand
	hovers   []time.Duration
	takeoffs int
	landings int
	paired   bool

	pitch, roll, throttle int
	moves                 []time.Duration
}

func newScriptVehicle(clock timectrl.Clock, start Vec3) *scriptVehicle {
	return &scriptVehicle{pos: start, clock: clock}
}

func (v *scriptVehicle) now() time.Time {
	if v.clock != nil {
		return v.clock.Now()
	}
	return time.Now()
}

func (v *scriptVehicle) Position() (model.Position, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.failAfter > 0 && v.posCalls >= v.failAfter {
		return model.Position{}, errNoTelemetry
	}
	v.posCalls++
	if len(v.posQueue) > 0 {
		v.pos = v.posQueue[0]
		v.posQueue = v.posQueue[1:]
	}
	return model.Position{Time: v.now(), X: v.pos.X, Y: v.pos.Y, Z: v.pos.Z}, nil
}

func (v *scriptVehicle) Battery() (float64, error)           { return 87.0, nil }
func (v *scriptVehicle) Temperature(string) (float64, error) { return 25.0, nil }

func (v *scriptVehicle) SendAbsolutePosition(target Vec3, speed, auxPitch, auxRoll float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.commands = append(v.commands, issuedCommand{target: target, speed: speed})
	if v.teleport {
		v.pos = target
	}
}

func (v *scriptVehicle) Hover(d time.Duration) {
	v.mu.Lock()
	v.hovers = append(v.hovers, d)
	v.mu.Unlock()
	if v.clock != nil {
		v.clock.Sleep(d)
	}
}

func (v *scriptVehicle) Takeoff() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.takeoffs++
	v.pos.Z = 1.0
}

func (v *scriptVehicle) Land() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.landings++
	v.pos.Z = 0
}

func (v *scriptVehicle) SetTrim(roll, pitch int) {}

func (v *scriptVehicle) Pair() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.paired = true
	return nil
}

func (v *scriptVehicle) SetPitch(power int)    { v.pitch = power }
func (v *scriptVehicle) SetRoll(power int)     { v.roll = power }
func (v *scriptVehicle) SetThrottle(power int) { v.throttle = power }

func (v *scriptVehicle) Move(d time.Duration) {
	v.mu.Lock()
	v.moves = append(v.moves, d)
	v.mu.Unlock()
	if v.clock != nil {
		v.clock.Sleep(d)
	}
}

// commandTargets returns the targets of every issued command.
func (v *scriptVehicle) commandTargets() []Vec3 {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Vec3, len(v.commands))
	for i, cmd := range v.commands {
		out[i] = cmd.target
	}
	return out
}

// distinctTargets collapses consecutive duplicate command targets, turning a
// re-issued command stream into the sequence of intended waypoints.
func distinctTargets(targets []Vec3) []Vec3 {
	var out []Vec3
	for _, tgt := range targets {
		if len(out) == 0 || out[len(out)-1] != tgt {
			out = append(out, tgt)
		}
	}
	return out
}

// newTestController builds a controller around a scripted vehicle and a fake
// clock with fast test-friendly defaults.
func newTestController(v *scriptVehicle, clock timectrl.Clock) *Controller {
	c, err := NewController(Config{
		Telemetry:    v,
		Motion:       v,
		Power:        v,
		Clock:        clock,
		PollInterval: 50 * time.Millisecond,
		Dwell:        100 * time.Millisecond,
	})
	if err != nil {
		panic(err)
	}
	return c
}
