package ml

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Evaluation is the fixed metric set computed once per family on held-out
// data.
type Evaluation struct {
	Accuracy float64 `json:"accuracy"`
	ROCAUC   float64 `json:"roc_auc"`
	// Confusion is indexed [actual][predicted].
	Confusion [2][2]int `json:"confusion"`
}

// Evaluate scores a predictor on a labeled matrix.
func Evaluate(p Predictor, x [][]float64, y []int) (Evaluation, error) {
	if len(x) == 0 || len(x) != len(y) {
		return Evaluation{}, fmt.Errorf("evaluate: %d rows vs %d labels", len(x), len(y))
	}

	scores := make([]float64, len(x))
	var ev Evaluation
	correct := 0
	for i, row := range x {
		probs := p.PredictProba(row)
		scores[i] = probs[1]
		pred := 0
		if probs[1] >= probs[0] {
			pred = 1
		}
		ev.Confusion[y[i]][pred]++
		if pred == y[i] {
			correct++
		}
	}
	ev.Accuracy = float64(correct) / float64(len(y))
	ev.ROCAUC = AUC(scores, y)
	return ev, nil
}

// AUC computes the area under the ROC curve for class-1 scores. Degenerate
// label sets (a single class) score 0.5.
func AUC(scores []float64, y []int) float64 {
	pos := 0
	for _, v := range y {
		pos += v
	}
	if pos == 0 || pos == len(y) {
		return 0.5
	}

	type pair struct {
		score float64
		pos   bool
	}
	pairs := make([]pair, len(scores))
	for i, s := range scores {
		pairs[i] = pair{s, y[i] == 1}
	}
	sort.Slice(pairs, func(a, b int) bool { return pairs[a].score < pairs[b].score })

	sorted := make([]float64, len(pairs))
	classes := make([]bool, len(pairs))
	for i, p := range pairs {
		sorted[i] = p.score
		classes[i] = p.pos
	}

	tpr, fpr, _ := stat.ROC(nil, sorted, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}
