package ml

import (
	"encoding/json"
	"math"
	"testing"
)

// constantPredictor always reports the given class-1 probability. Backed by a
// logistic model so it survives serialization.
func constantPredictor(p1 float64) *LogisticRegression {
	return &LogisticRegression{Weights: []float64{0}, Bias: math.Log(p1 / (1 - p1))}
}

func resultWithAUC(name string, auc float64, p1 float64) FamilyResult {
	return FamilyResult{
		Name:      name,
		Predictor: constantPredictor(p1),
		Eval:      Evaluation{ROCAUC: auc},
	}
}

func TestSelectBestPicksHighestAUC(t *testing.T) {
	t.Parallel()

	report := &Report{Results: []FamilyResult{
		resultWithAUC(FamilyBoosting, 0.82, 0.5),
		resultWithAUC(FamilyForest, 0.91, 0.5),
		resultWithAUC(FamilyLogistic, 0.77, 0.5),
	}}

	_, winner, err := SelectBest(report)
	if err != nil {
		t.Fatal(err)
	}
	if winner.Name != FamilyForest {
		t.Errorf("winner = %s, want %s", winner.Name, FamilyForest)
	}
}

func TestSelectBestTieBreaksByPriority(t *testing.T) {
	t.Parallel()

	report := &Report{Results: []FamilyResult{
		resultWithAUC(FamilyLogistic, 0.9, 0.5),
		resultWithAUC(FamilyBoosting, 0.9, 0.5),
		resultWithAUC(FamilyForest, 0.9, 0.5),
	}}

	_, winner, err := SelectBest(report)
	if err != nil {
		t.Fatal(err)
	}
	if winner.Name != FamilyBoosting {
		t.Errorf("tie broke to %s, want %s", winner.Name, FamilyBoosting)
	}
}

func TestSelectBestExcludesFailedFamilies(t *testing.T) {
	t.Parallel()

	failed := resultWithAUC(FamilyBoosting, 0.99, 0.5)
	failed.Err = errFake

	report := &Report{Results: []FamilyResult{
		failed,
		resultWithAUC(FamilyLogistic, 0.7, 0.5),
	}}

	_, winner, err := SelectBest(report)
	if err != nil {
		t.Fatal(err)
	}
	if winner.Name != FamilyLogistic {
		t.Errorf("winner = %s, a failed family was selected", winner.Name)
	}

	if _, _, err := SelectBest(&Report{Results: []FamilyResult{failed}}); err == nil {
		t.Error("report with no successful family accepted")
	}
}

func TestBuildEnsembleWeights(t *testing.T) {
	t.Parallel()

	report := &Report{Results: []FamilyResult{
		resultWithAUC(FamilyBoosting, 0.80, 0.2),
		resultWithAUC(FamilyForest, 0.85, 0.5),
		resultWithAUC(FamilyLogistic, 0.90, 0.8),
	}}

	e, err := BuildEnsemble(report)
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Members) != 3 {
		t.Fatalf("got %d members, want 3", len(e.Members))
	}

	total := 0.80 + 0.85 + 0.90
	want := map[string]float64{
		FamilyBoosting: 0.80 / total,
		FamilyForest:   0.85 / total,
		FamilyLogistic: 0.90 / total,
	}
	var sum float64
	for _, m := range e.Members {
		if math.Abs(m.Weight-want[m.Name]) > 1e-12 {
			t.Errorf("member %s weight = %v, want %v", m.Name, m.Weight, want[m.Name])
		}
		sum += m.Weight
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("weights sum to %v, want 1", sum)
	}
}

func TestEnsemblePredictProba(t *testing.T) {
	t.Parallel()

	report := &Report{Results: []FamilyResult{
		resultWithAUC(FamilyBoosting, 0.80, 0.2),
		resultWithAUC(FamilyForest, 0.85, 0.5),
		resultWithAUC(FamilyLogistic, 0.90, 0.8),
	}}

	e, err := BuildEnsemble(report)
	if err != nil {
		t.Fatal(err)
	}

	probe := []float64{0}
	var want float64
	for _, m := range e.Members {
		want += m.Weight * m.Predictor.PredictProba(probe)[1]
	}

	probs := e.PredictProba(probe)
	if math.Abs(probs[1]-want) > 1e-12 {
		t.Errorf("ensemble p1 = %v, want weighted average %v", probs[1], want)
	}
	if math.Abs(probs[0]+probs[1]-1) > 1e-12 {
		t.Errorf("probabilities sum to %v", probs[0]+probs[1])
	}
}

func TestBuildEnsembleDegenerateScores(t *testing.T) {
	t.Parallel()

	report := &Report{Results: []FamilyResult{
		resultWithAUC(FamilyLogistic, 0, 0.5),
	}}
	if _, err := BuildEnsemble(report); err == nil {
		t.Error("all-zero scores accepted")
	}
}

func TestEnsembleJSONRoundtrip(t *testing.T) {
	t.Parallel()

	report := &Report{Results: []FamilyResult{
		resultWithAUC(FamilyBoosting, 0.8, 0.3),
		resultWithAUC(FamilyLogistic, 0.9, 0.7),
	}}
	e, err := BuildEnsemble(report)
	if err != nil {
		t.Fatal(err)
	}

	kind, blob, err := MarshalPredictor(e)
	if err != nil {
		t.Fatal(err)
	}
	if kind != KindEnsemble {
		t.Fatalf("kind = %q", kind)
	}

	restored, err := UnmarshalPredictor(kind, blob)
	if err != nil {
		t.Fatal(err)
	}

	probe := []float64{0}
	if got, want := restored.PredictProba(probe)[1], e.PredictProba(probe)[1]; math.Abs(got-want) > 1e-12 {
		t.Errorf("restored ensemble p1 = %v, want %v", got, want)
	}

	// The wire form carries each member's kind tag and payload.
	var raw struct {
		Members []map[string]json.RawMessage `json:"members"`
	}
	if err := json.Unmarshal(blob, &raw); err != nil {
		t.Fatal(err)
	}
	for i, m := range raw.Members {
		if _, ok := m["kind"]; !ok {
			t.Errorf("member %d missing kind tag", i)
		}
		if _, ok := m["model"]; !ok {
			t.Errorf("member %d missing model payload", i)
		}
	}
}
