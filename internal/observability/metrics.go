package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FlightCollector bundles Prometheus metrics for the motion controller. All
// recording methods are nil-safe so a controller built without metrics pays
// only a nil check per poll iteration.
type FlightCollector struct {
	gatherer prometheus.Gatherer

	CommandsIssued     *prometheus.CounterVec
	MoveIterations     *prometheus.HistogramVec
	Moves              *prometheus.CounterVec
	TelemetryFailures  prometheus.Counter
	CalibrationFactors *prometheus.GaugeVec
}

// Move outcomes recorded on flight_moves_total.
const (
	OutcomeArrived = "arrived"
	OutcomeAborted = "aborted"
)

// NewFlightCollector registers flight metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewFlightCollector(reg prometheus.Registerer) (*FlightCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_commands_issued_total",
		Help: "Absolute-position commands sent to the vehicle, labeled by pattern.",
	}, []string{"pattern"})
	commands, err := registerCounterVec(reg, commands, "flight_commands_issued_total")
	if err != nil {
		return nil, err
	}

	iterations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flight_move_iterations",
		Help:    "Poll iterations needed for a verified move to confirm arrival.",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
	}, []string{"pattern"})
	iterations, err = registerHistogramVec(reg, iterations, "flight_move_iterations")
	if err != nil {
		return nil, err
	}

	moves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flight_moves_total",
		Help: "Completed verified moves, labeled by pattern and outcome.",
	}, []string{"pattern", "outcome"})
	moves, err = registerCounterVec(reg, moves, "flight_moves_total")
	if err != nil {
		return nil, err
	}

	failures, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flight_telemetry_failures_total",
		Help: "Telemetry snapshots that could not be fetched.",
	}), "flight_telemetry_failures_total")
	if err != nil {
		return nil, err
	}

	factors := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "flight_calibration_factor",
		Help: "Most recent calibration scale factor, labeled by axis and direction.",
	}, []string{"axis", "direction"})
	factors, err = registerGaugeVec(reg, factors, "flight_calibration_factor")
	if err != nil {
		return nil, err
	}

	return &FlightCollector{
		gatherer:           gatherer,
		CommandsIssued:     commands,
		MoveIterations:     iterations,
		Moves:              moves,
		TelemetryFailures:  failures,
		CalibrationFactors: factors,
	}, nil
}

// ObserveCommand counts one absolute-position command.
func (c *FlightCollector) ObserveCommand(pattern string) {
	if c == nil || c.CommandsIssued == nil {
		return
	}
	c.CommandsIssued.WithLabelValues(pattern).Inc()
}

// ObserveMove records a finished verified move.
func (c *FlightCollector) ObserveMove(pattern string, iterations int, outcome string) {
	if c == nil {
		return
	}
	if c.MoveIterations != nil {
		c.MoveIterations.WithLabelValues(pattern).Observe(float64(iterations))
	}
	if c.Moves != nil {
		c.Moves.WithLabelValues(pattern, outcome).Inc()
	}
}

// IncTelemetryFailure counts one failed telemetry fetch.
func (c *FlightCollector) IncTelemetryFailure() {
	if c == nil || c.TelemetryFailures == nil {
		return
	}
	c.TelemetryFailures.Inc()
}

// SetCalibrationFactor publishes a computed scale factor.
func (c *FlightCollector) SetCalibrationFactor(axis, direction string, v float64) {
	if c == nil || c.CalibrationFactors == nil {
		return
	}
	c.CalibrationFactors.WithLabelValues(axis, direction).Set(v)
}

// Handler exposes a ready-to-use /metrics handler.
func (c *FlightCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
