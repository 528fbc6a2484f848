package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/aerobench/flightpath/core"
	"github.com/aerobench/flightpath/internal/flightlog"
	"github.com/aerobench/flightpath/internal/logging"
	"github.com/aerobench/flightpath/internal/observability"
	"github.com/aerobench/flightpath/timectrl"
)

func main() {
	planPath := flag.String("plan", "", "Path to a JSON flight plan; runs it non-interactively and lands")
	logDir := flag.String("log-dir", "", "Directory for the CSV flight log (empty disables CSV logging)")
	sqlitePath := flag.String("sqlite", "", "Path to a SQLite flight log database (empty disables)")
	note := flag.Bool("note", false, "Write per-iteration note fields to the flight log")
	metricsAddr := flag.String("metrics-addr", ":9090", "HTTP address for Prometheus /metrics")

	delta := flag.Float64("delta", 0.5, "Sweep amplitude in metres")
	deltaZ := flag.Float64("delta-z", 0.3, "Vertical sweep amplitude in metres")
	speed := flag.Float64("speed", 0.5, "Commanded speed in m/s")
	minDelay := flag.Duration("min-delay", 200*time.Millisecond, "Minimum duration of each verified leg")
	repeats := flag.Int("repeats", 2, "Sweep and path repeat count")
	segments := flag.Int("segments", 10, "Random walk segment count")
	maxStep := flag.Float64("max-step", 0.4, "Random walk per-axis step bound in metres")
	extent := flag.Float64("extent", 1.0, "Half-extent of the random walk safety box in metres")
	takeoffDelta := flag.Float64("takeoff-delta", 0.5, "Extra climb after launch in metres")

	backRatio := flag.Float64("sim-back-ratio", 0.5, "Simulated backward pitch response relative to forward")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	collector, err := observability.NewFlightCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(*metricsAddr, collector, log)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialise tracing", logging.Err(err))
		os.Exit(1)
	}

	sink := openFlightLog(ctx, *logDir, *sqlitePath, log)
	defer sink.Close()

	vehicle := core.NewSimVehicle(core.SimVehicleConfig{
		PitchBackRatio: *backRatio,
	})
	ctrl, err := core.NewController(core.Config{
		Telemetry: vehicle,
		Motion:    vehicle,
		Power:     vehicle,
		Clock:     timectrl.Wall{},
		Logger:    log,
		FlightLog: sink,
		Metrics:   collector,
		Note:      *note,
	})
	if err != nil {
		log.Error(ctx, "failed to build controller", logging.Err(err))
		os.Exit(1)
	}

	s := &session{
		ctrl: ctrl,
		log:  log,
		out:  os.Stdout,
		params: patternParams{
			Delta:        *delta,
			DeltaZ:       *deltaZ,
			Speed:        *speed,
			MinDelay:     *minDelay,
			Repeats:      *repeats,
			Segments:     *segments,
			MaxStep:      *maxStep,
			Extent:       *extent,
			TakeoffDelta: *takeoffDelta,
		},
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if *planPath != "" {
		err = runPlan(runCtx, s, *planPath)
	} else {
		err = runMenu(runCtx, s, os.Stdin)
	}
	if err != nil {
		log.Error(ctx, "flight session failed", logging.Err(err))
	}

	observability.ShutdownWithTimeout(ctx, shutdownTracing, log)
	httpCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(httpCtx)
	}
	if err != nil {
		os.Exit(1)
	}
}

// patternParams carries the flag-configured numbers shared by every pattern.
type patternParams struct {
	Delta        float64
	DeltaZ       float64
	Speed        float64
	MinDelay     time.Duration
	Repeats      int
	Segments     int
	MaxStep      float64
	Extent       float64
	TakeoffDelta float64
}

func (p patternParams) sweep() core.SweepParams {
	return core.SweepParams{
		Delta:    p.Delta,
		DeltaZ:   p.DeltaZ,
		Speed:    p.Speed,
		MinDelay: p.MinDelay,
		Repeats:  p.Repeats,
	}
}

func (p patternParams) walk(sampler core.Sampler) core.RandomWalkParams {
	return core.RandomWalkParams{
		Box: core.SafetyBox{
			XNeg: -p.Extent, XPos: p.Extent,
			YNeg: -p.Extent, YPos: p.Extent,
			ZNeg: -p.Extent / 2, ZPos: p.Extent,
		},
		Sampler:   sampler,
		MaxStep:   core.Vec3{X: p.MaxStep, Y: p.MaxStep, Z: p.MaxStep},
		MaxRadius: p.MaxStep,
		Speed:     p.Speed,
		MinDelay:  p.MinDelay,
		Segments:  p.Segments,
	}
}

// session binds the controller to the interactive front end.
type session struct {
	ctrl   *core.Controller
	params patternParams
	log    logging.Logger
	out    io.Writer
}

const menu = `
 1) pair
 2) takeoff
 3) calibrate
 4) measured path (streamed XYZ excursions)
 5) simple path (unverified XYZ excursions)
 6) sweep X
 7) sweep Y
 8) sweep Z
 9) sweep YZ
10) random walk (box sampler)
11) random walk (spherical sampler)
 l) land
 q) land and quit
`

// runMenu drives the controller from an interactive prompt until the operator
// quits or input ends. The vehicle is always landed on the way out.
func runMenu(ctx context.Context, s *session, in io.Reader) error {
	fmt.Fprintf(s.out, "%s\n", menu)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		choice := strings.TrimSpace(scanner.Text())
		if choice == "" {
			continue
		}
		done, err := s.dispatch(ctx, choice)
		if err != nil {
			// Operator errors are reported and the menu continues; only
			// input exhaustion or quitting ends the session.
			fmt.Fprintf(s.out, "error: %v\n", err)
			s.log.Warn(ctx, "menu action failed", logging.String("choice", choice), logging.Err(err))
		}
		if done {
			return nil
		}
	}
	return s.landIfAirborne(ctx)
}

// dispatch runs one menu action. done is true once the session should end.
func (s *session) dispatch(ctx context.Context, choice string) (bool, error) {
	switch choice {
	case "1":
		return false, s.ctrl.Pair(ctx)
	case "2":
		return false, s.ctrl.Takeoff(ctx, s.params.TakeoffDelta)
	case "3":
		profile, err := s.ctrl.Calibrate(ctx, core.DefaultCalibrationOptions())
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "pitch back factor: %.3f\n", profile.PitchBack)
		return false, nil
	case "4":
		return false, s.ctrl.MeasuredPath(ctx, s.params.Delta, s.params.Speed, s.params.Repeats)
	case "5":
		return false, s.ctrl.SimplePath(ctx, s.params.Delta, s.params.Speed, s.params.Repeats)
	case "6":
		return false, s.ctrl.SweepAxis(ctx, core.AxisX, s.params.sweep())
	case "7":
		return false, s.ctrl.SweepAxis(ctx, core.AxisY, s.params.sweep())
	case "8":
		return false, s.ctrl.SweepAxis(ctx, core.AxisZ, s.params.sweep())
	case "9":
		return false, s.ctrl.SweepYZ(ctx, s.params.sweep())
	case "10":
		return false, s.ctrl.RandomWalk(ctx, s.params.walk(core.SamplerBox))
	case "11":
		return false, s.ctrl.RandomWalk(ctx, s.params.walk(core.SamplerSpherical))
	case "l", "L":
		return false, s.ctrl.Land(ctx)
	case "q", "Q":
		return true, s.landIfAirborne(ctx)
	case "?", "h":
		fmt.Fprintf(s.out, "%s\n", menu)
		return false, nil
	default:
		return false, fmt.Errorf("unknown choice %q", choice)
	}
}

func (s *session) landIfAirborne(ctx context.Context) error {
	if !s.ctrl.State().Airborne {
		return nil
	}
	return s.ctrl.Land(ctx)
}

// runPlan flies one full non-interactive session: pair, takeoff, plan, land.
func runPlan(ctx context.Context, s *session, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open flight plan: %w", err)
	}
	plan, err := core.LoadFlightPlan(f)
	f.Close()
	if err != nil {
		return err
	}

	if err := s.ctrl.Pair(ctx); err != nil {
		return err
	}
	if err := s.ctrl.Takeoff(ctx, s.params.TakeoffDelta); err != nil {
		return err
	}
	runErr := plan.Run(ctx, s.ctrl)
	if err := s.landIfAirborne(context.WithoutCancel(ctx)); err != nil {
		s.log.Warn(ctx, "landing after plan failed", logging.Err(err))
	}
	return runErr
}

// openFlightLog picks the configured sink: SQLite wins over CSV, and with
// neither the session flies unlogged.
func openFlightLog(ctx context.Context, logDir, sqlitePath string, log logging.Logger) flightlog.Sink {
	if sqlitePath != "" {
		sink, err := flightlog.NewSQLite(sqlitePath)
		if err != nil {
			log.Error(ctx, "failed to open SQLite flight log", logging.String("path", sqlitePath), logging.Err(err))
			os.Exit(1)
		}
		log.Info(ctx, "logging flights to SQLite", logging.String("path", sqlitePath), logging.String("session", sink.Session()))
		return sink
	}
	if logDir != "" {
		sink, name, err := flightlog.CreateCSVFile(logDir, "flight_", time.Now())
		if err != nil {
			log.Error(ctx, "failed to create CSV flight log", logging.String("dir", logDir), logging.Err(err))
			os.Exit(1)
		}
		log.Info(ctx, "logging flights to CSV", logging.String("file", name))
		return sink
	}
	return flightlog.Discard()
}

func serveMetrics(addr string, collector *observability.FlightCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
