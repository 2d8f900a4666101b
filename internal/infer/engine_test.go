package infer

import (
	"errors"
	"testing"
	"time"

	"quakewatch/internal/events"
	"quakewatch/internal/features"
	"quakewatch/internal/ml"
)

// mockMetrics counts engine metric calls.
type mockMetrics struct {
	predictions int
	failures    int
	latencies   int
	oovWarnings int
	modelAge    float64
}

func (m *mockMetrics) PredictionsInc()                  { m.predictions++ }
func (m *mockMetrics) PredictionFailuresInc()           { m.failures++ }
func (m *mockMetrics) PredictionLatencyObserve(float64) { m.latencies++ }
func (m *mockMetrics) OOVWarningsInc()                  { m.oovWarnings++ }
func (m *mockMetrics) ModelAgeSet(s float64)            { m.modelAge = s }

func trainingRecords() []events.Record {
	mag, depth, lat, lon, sig := 6.5, 10.0, -3.5, 100.2, 600.0
	hour, month := 3, 6
	magType, eventType, alert := "mww", "earthquake", "green"
	return []events.Record{{
		Magnitude:    &mag,
		DepthKm:      &depth,
		Latitude:     &lat,
		Longitude:    &lon,
		Significance: &sig,
		Hour:         &hour,
		Month:        &month,
		MagType:      &magType,
		EventType:    &eventType,
		Alert:        &alert,
	}}
}

// testArtifact wires a magnitude-threshold model: class 1 when magnitude
// exceeds 5, everything else ignored. The scaler passes all columns through.
func testArtifact(t testing.TB) *ml.Artifact {
	t.Helper()

	names := features.Names()
	weights := make([]float64, len(names))
	for i, name := range names {
		if name == events.FieldMagnitude {
			weights[i] = 2
		}
	}

	scaler := &ml.RobustScaler{
		Centers: make([]float64, len(names)),
		Scales:  make([]float64, len(names)),
		Scaled:  make([]bool, len(names)),
	}
	for i := range scaler.Scales {
		scaler.Scales[i] = 1
	}

	return &ml.Artifact{
		Version:      "test-1",
		TrainedAt:    time.Now().UTC().Add(-time.Hour),
		FeatureOrder: names,
		Encoders:     features.FitEncoders(trainingRecords()),
		Target:       features.FitOrdered(ml.TargetLabels),
		Scaler:       scaler,
		Predictor:    &ml.LogisticRegression{Weights: weights, Bias: -10},
	}
}

func TestPredictWithoutArtifact(t *testing.T) {
	t.Parallel()

	m := &mockMetrics{}
	e := New(m)

	if e.Ready() {
		t.Error("engine reports ready with no artifact")
	}
	_, err := e.Predict(map[string]any{"magnitude": 6.5})
	if !errors.Is(err, ErrModelUnavailable) {
		t.Fatalf("err = %v, want ErrModelUnavailable", err)
	}
	if m.failures != 1 {
		t.Errorf("failures = %d, want 1", m.failures)
	}
	if m.latencies != 1 {
		t.Errorf("latency observations = %d, want 1", m.latencies)
	}
}

func TestPredictNilInput(t *testing.T) {
	t.Parallel()

	e := New(nil)
	e.SetArtifact(testArtifact(t))

	if _, err := e.Predict(nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestPredictHighRisk(t *testing.T) {
	t.Parallel()

	m := &mockMetrics{}
	e := New(m)
	e.SetArtifact(testArtifact(t))

	result, err := e.Predict(map[string]any{
		"magnitude":  8.0,
		"depth_km":   10.0,
		"event_type": "earthquake",
	})
	if err != nil {
		t.Fatal(err)
	}

	if result.Label != ml.TargetLabels[1] || result.Class != 1 {
		t.Errorf("prediction = %q class %d, want high risk", result.Label, result.Class)
	}
	if result.ModelVersion != "test-1" {
		t.Errorf("model version = %q", result.ModelVersion)
	}
	if len(result.Probabilities) != 2 {
		t.Fatalf("probabilities = %v", result.Probabilities)
	}
	if result.Probabilities[ml.TargetLabels[1]] <= result.Probabilities[ml.TargetLabels[0]] {
		t.Errorf("probabilities inverted: %v", result.Probabilities)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
	if m.predictions != 1 {
		t.Errorf("predictions = %d, want 1", m.predictions)
	}
}

func TestPredictLowRisk(t *testing.T) {
	t.Parallel()

	e := New(nil)
	e.SetArtifact(testArtifact(t))

	result, err := e.Predict(map[string]any{"magnitude": 2.0})
	if err != nil {
		t.Fatal(err)
	}
	if result.Label != ml.TargetLabels[0] || result.Class != 0 {
		t.Errorf("prediction = %q class %d, want low risk", result.Label, result.Class)
	}
}

// A payload missing most fields still predicts: absent numerics take their
// defaults, absent categoricals the reserved code.
func TestPredictPartialPayload(t *testing.T) {
	t.Parallel()

	e := New(nil)
	e.SetArtifact(testArtifact(t))

	result, err := e.Predict(map[string]any{"magnitude": 6.5})
	if err != nil {
		t.Fatal(err)
	}
	if result.Label == "" {
		t.Error("empty label")
	}

	// Even a fully empty object predicts.
	if _, err := e.Predict(map[string]any{}); err != nil {
		t.Fatalf("empty payload rejected: %v", err)
	}
}

func TestPredictUnseenCategoryWarns(t *testing.T) {
	t.Parallel()

	m := &mockMetrics{}
	e := New(m)
	e.SetArtifact(testArtifact(t))

	result, err := e.Predict(map[string]any{
		"magnitude":  6.5,
		"event_type": "quarry blast",
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", result.Warnings)
	}
	if m.oovWarnings != 1 {
		t.Errorf("oov metric = %d, want 1", m.oovWarnings)
	}
}

func TestPredictIllTypedFieldWarns(t *testing.T) {
	t.Parallel()

	e := New(nil)
	e.SetArtifact(testArtifact(t))

	result, err := e.Predict(map[string]any{
		"magnitude": "not a number",
		"depth_km":  10.0,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", result.Warnings)
	}
}

func BenchmarkPredict(b *testing.B) {
	e := New(nil)
	e.SetArtifact(testArtifact(b))
	input := map[string]any{"magnitude": 6.5, "depth_km": 10.0, "event_type": "earthquake"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Predict(input); err != nil {
			b.Fatal(err)
		}
	}
}

func TestSetArtifactHotSwap(t *testing.T) {
	t.Parallel()

	m := &mockMetrics{}
	e := New(m)

	a := testArtifact(t)
	e.SetArtifact(a)
	if !e.Ready() || e.Artifact() != a {
		t.Fatal("artifact not installed")
	}
	if m.modelAge <= 0 {
		t.Errorf("model age = %v, want the artifact's age", m.modelAge)
	}

	b := testArtifact(t)
	b.Version = "test-2"
	e.SetArtifact(b)
	if e.Artifact().Version != "test-2" {
		t.Error("swap did not take effect")
	}
}
