// Package ml trains, evaluates, selects and serializes the tsunami-risk
// classifiers. All estimators run in-process and are deterministic under a
// fixed seed; the package exposes a single Predictor contract so the serving
// side never knows which family (or ensemble) it is talking to.
package ml

import (
	"encoding/json"
	"fmt"
)

// Predictor is the opaque contract every trained model satisfies.
type Predictor interface {
	// PredictProba returns class probabilities [P(class 0), P(class 1)]
	// for a scaled feature vector.
	PredictProba(x []float64) []float64

	// Kind identifies the concrete family for serialization.
	Kind() string
}

// PredictClass resolves the hard label from a predictor's probabilities.
func PredictClass(p Predictor, x []float64) int {
	probs := p.PredictProba(x)
	if probs[1] >= probs[0] {
		return 1
	}
	return 0
}

// Predictor kinds used in serialized artifacts.
const (
	KindLogistic = "logistic_regression"
	KindForest   = "random_forest"
	KindBoosting = "gradient_boosting"
	KindEnsemble = "soft_voting_ensemble"
)

// MarshalPredictor encodes a predictor with its kind tag.
func MarshalPredictor(p Predictor) (string, json.RawMessage, error) {
	blob, err := json.Marshal(p)
	if err != nil {
		return "", nil, fmt.Errorf("marshal %s predictor: %w", p.Kind(), err)
	}
	return p.Kind(), blob, nil
}

// UnmarshalPredictor decodes a predictor from its kind tag and payload.
func UnmarshalPredictor(kind string, blob json.RawMessage) (Predictor, error) {
	var p Predictor
	switch kind {
	case KindLogistic:
		p = &LogisticRegression{}
	case KindForest:
		p = &RandomForest{}
	case KindBoosting:
		p = &GradientBoosting{}
	case KindEnsemble:
		p = &SoftVotingEnsemble{}
	default:
		return nil, fmt.Errorf("unknown predictor kind %q", kind)
	}
	if err := json.Unmarshal(blob, p); err != nil {
		return nil, fmt.Errorf("unmarshal %s predictor: %w", kind, err)
	}
	return p, nil
}
