package ml

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
)

var errFake = errors.New("fit failed")

// trainingDataset builds a three-feature separable dataset: two informative
// columns on very different scales plus one pure-noise column.
func trainingDataset(n int, seed int64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, 0, n)
	y := make([]int, 0, n)
	for i := 0; i < n; i++ {
		class := i % 2
		shift := 0.0
		if class == 1 {
			shift = 5
		}
		x = append(x, []float64{
			shift + rng.Float64(),
			1000 * (shift + rng.Float64()),
			rng.Float64(),
		})
		y = append(y, class)
	}
	return x, y
}

func testConfig() Config {
	return Config{Seed: 42, TestFraction: 0.25, CVFolds: 5}
}

func TestTrainAllFamilies(t *testing.T) {
	t.Parallel()

	x, y := trainingDataset(120, 1)
	trainer := NewTrainer(testConfig(), []string{"a", "b", "noise"}, []bool{true, true, true})

	report, err := trainer.Train(x, y)
	if err != nil {
		t.Fatal(err)
	}

	if report.TrainRows+report.TestRows != 120 {
		t.Errorf("rows: %d train + %d test != 120", report.TrainRows, report.TestRows)
	}
	if len(report.Results) != 3 {
		t.Fatalf("got %d family results, want 3", len(report.Results))
	}

	names := map[string]bool{}
	for _, res := range report.Results {
		names[res.Name] = true
		if res.Err != nil {
			t.Errorf("family %s failed: %v", res.Name, res.Err)
			continue
		}
		if res.Predictor == nil {
			t.Errorf("family %s has no predictor", res.Name)
		}
		if res.Eval.ROCAUC < 0.9 {
			t.Errorf("family %s roc auc = %v on separable data", res.Name, res.Eval.ROCAUC)
		}
		if res.Params == nil {
			t.Errorf("family %s recorded no hyperparameters", res.Name)
		}
		if res.CVScore <= 0 {
			t.Errorf("family %s cv score = %v", res.Name, res.CVScore)
		}
	}
	for _, want := range PriorityOrder {
		if !names[want] {
			t.Errorf("family %s missing from the report", want)
		}
	}
	if report.Scaler == nil {
		t.Fatal("report carries no scaler")
	}
}

func TestTrainDeterministicUnderSeed(t *testing.T) {
	t.Parallel()

	x, y := trainingDataset(120, 2)
	names := []string{"a", "b", "noise"}
	mask := []bool{true, true, true}

	r1, err := NewTrainer(testConfig(), names, mask).Train(x, y)
	if err != nil {
		t.Fatal(err)
	}
	r2, err := NewTrainer(testConfig(), names, mask).Train(x, y)
	if err != nil {
		t.Fatal(err)
	}

	for i := range r1.Results {
		a, b := r1.Results[i], r2.Results[i]
		if a.Eval != b.Eval {
			t.Errorf("family %s: evaluations differ across identical runs", a.Name)
		}
		if a.CVScore != b.CVScore {
			t.Errorf("family %s: cv scores differ across identical runs", a.Name)
		}
		if !reflect.DeepEqual(a.Params, b.Params) {
			t.Errorf("family %s: selected params differ across identical runs", a.Name)
		}
	}
}

func TestTrainNamedImportances(t *testing.T) {
	t.Parallel()

	x, y := trainingDataset(120, 3)
	names := []string{"a", "b", "noise"}
	trainer := NewTrainer(testConfig(), names, []bool{true, true, true})

	report, err := trainer.Train(x, y)
	if err != nil {
		t.Fatal(err)
	}

	for _, res := range report.Succeeded() {
		if res.Importances == nil {
			t.Errorf("family %s has no importances", res.Name)
			continue
		}
		for _, name := range names {
			if _, ok := res.Importances[name]; !ok {
				t.Errorf("family %s: feature %s missing from importances", res.Name, name)
			}
		}
		// The informative columns must outrank pure noise.
		if res.Importances["noise"] > res.Importances["a"]+res.Importances["b"] {
			t.Errorf("family %s: noise dominates (%v)", res.Name, res.Importances)
		}
	}
}

func TestTrainScalesOnTrainPartitionOnly(t *testing.T) {
	t.Parallel()

	x, y := trainingDataset(120, 4)
	trainer := NewTrainer(testConfig(), []string{"a", "b", "noise"}, []bool{true, true, true})

	report, err := trainer.Train(x, y)
	if err != nil {
		t.Fatal(err)
	}

	// The scaler must be fitted, and the wildly scaled second column brought
	// into the same range as the first.
	s := report.Scaler
	if len(s.Centers) != 3 {
		t.Fatalf("scaler has %d columns, want 3", len(s.Centers))
	}
	if s.Scales[1] < 100 {
		t.Errorf("column 1 scale = %v, expected the IQR of a x1000 column", s.Scales[1])
	}
}

func TestTrainRejectsBadSplit(t *testing.T) {
	t.Parallel()

	trainer := NewTrainer(Config{Seed: 1, TestFraction: 0.25, CVFolds: 5}, nil, nil)
	if _, err := trainer.Train([][]float64{{1}, {2}}, []int{0, 1}); err == nil {
		t.Error("tiny dataset accepted")
	}
}

func TestReportSucceededFiltersFailures(t *testing.T) {
	t.Parallel()

	report := &Report{Results: []FamilyResult{
		{Name: FamilyForest},
		{Name: FamilyLogistic, Err: errFake},
	}}

	ok := report.Succeeded()
	if len(ok) != 1 || ok[0].Name != FamilyForest {
		t.Errorf("Succeeded() = %v", ok)
	}
}
