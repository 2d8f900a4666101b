package ml

import (
	"fmt"
	"math"
)

// LogisticRegression is a binary linear classifier trained by full-batch
// gradient descent with L2 regularization. Inputs are expected pre-scaled.
type LogisticRegression struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

// LogisticParams are the tunable hyperparameters.
type LogisticParams struct {
	LearningRate float64
	L2           float64
	Epochs       int
}

// FitLogistic trains a logistic regression over the matrix. Deterministic:
// weights start at zero, so no seed is involved.
func FitLogistic(x [][]float64, y []int, p LogisticParams) (*LogisticRegression, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("logistic: empty training set")
	}
	if p.Epochs <= 0 || p.LearningRate <= 0 {
		return nil, fmt.Errorf("logistic: bad hyperparameters %+v", p)
	}

	dims := len(x[0])
	m := &LogisticRegression{Weights: make([]float64, dims)}
	n := float64(len(x))

	gradW := make([]float64, dims)
	for epoch := 0; epoch < p.Epochs; epoch++ {
		for j := range gradW {
			gradW[j] = 0
		}
		gradB := 0.0

		for i, row := range x {
			err := sigmoid(m.raw(row)) - float64(y[i])
			for j, v := range row {
				gradW[j] += err * v
			}
			gradB += err
		}

		for j := range m.Weights {
			m.Weights[j] -= p.LearningRate * (gradW[j]/n + p.L2*m.Weights[j])
		}
		m.Bias -= p.LearningRate * gradB / n
	}
	return m, nil
}

func (m *LogisticRegression) raw(x []float64) float64 {
	z := m.Bias
	for j, w := range m.Weights {
		if j < len(x) {
			z += w * x[j]
		}
	}
	return z
}

// PredictProba implements Predictor.
func (m *LogisticRegression) PredictProba(x []float64) []float64 {
	p1 := sigmoid(m.raw(x))
	return []float64{1 - p1, p1}
}

// Kind implements Predictor.
func (m *LogisticRegression) Kind() string { return KindLogistic }

// Importances reports |weight| per feature, normalized to sum 1.
func (m *LogisticRegression) Importances() []float64 {
	out := make([]float64, len(m.Weights))
	var total float64
	for j, w := range m.Weights {
		out[j] = math.Abs(w)
		total += out[j]
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

func sigmoid(z float64) float64 {
	// Clamp to keep exp from overflowing on extreme margins.
	if z > 35 {
		return 1
	}
	if z < -35 {
		return 0
	}
	return 1 / (1 + math.Exp(-z))
}
