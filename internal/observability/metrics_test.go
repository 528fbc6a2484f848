package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveMoveRecordsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewFlightCollector(reg)
	if err != nil {
		t.Fatalf("NewFlightCollector: %v", err)
	}

	collector.ObserveMove("Simple_Y", 12, OutcomeArrived)
	collector.ObserveMove("Simple_Y", 40, OutcomeArrived)

	if got := testutil.ToFloat64(collector.Moves.WithLabelValues("Simple_Y", OutcomeArrived)); got != 2 {
		t.Fatalf("flight_moves_total = %v, want 2", got)
	}

	if count := histogramSampleCount(t, reg, "flight_move_iterations", map[string]string{
		"pattern": "Simple_Y",
	}); count != 2 {
		t.Fatalf("flight_move_iterations sample_count = %d, want 2", count)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var collector *FlightCollector
	collector.ObserveCommand("Hover")
	collector.ObserveMove("Hover", 1, OutcomeAborted)
	collector.IncTelemetryFailure()
	collector.SetCalibrationFactor("pitch", "back", 1.2)
}

func TestDoubleRegistrationReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewFlightCollector(reg)
	if err != nil {
		t.Fatalf("first NewFlightCollector: %v", err)
	}
	second, err := NewFlightCollector(reg)
	if err != nil {
		t.Fatalf("second NewFlightCollector: %v", err)
	}

	first.ObserveCommand("Random_Limits")
	second.ObserveCommand("Random_Limits")

	if got := testutil.ToFloat64(first.CommandsIssued.WithLabelValues("Random_Limits")); got != 2 {
		t.Fatalf("flight_commands_issued_total = %v, want 2 (shared collector)", got)
	}
}

func TestHandlerExposesCalibrationGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewFlightCollector(reg)
	if err != nil {
		t.Fatalf("NewFlightCollector: %v", err)
	}
	collector.SetCalibrationFactor("pitch", "back", 2.0)

	srv := httptest.NewServer(collector.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), `flight_calibration_factor{axis="pitch",direction="back"} 2`) {
		t.Fatalf("metrics output missing calibration gauge:\n%s", body)
	}
}

func histogramSampleCount(t *testing.T, g prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()
	families, err := g.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			if !labelsMatch(m, labels) {
				continue
			}
			return m.GetHistogram().GetSampleCount()
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}
