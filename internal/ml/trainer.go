package ml

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Family names, in declared priority order. The order breaks metric ties
// during selection, so it is part of the training contract.
const (
	FamilyBoosting = "GradientBoosting"
	FamilyForest   = "RandomForest"
	FamilyLogistic = "LogisticRegression"
)

// PriorityOrder lists the families from most to least preferred on ties.
var PriorityOrder = []string{FamilyBoosting, FamilyForest, FamilyLogistic}

// Config controls the shared evaluation protocol.
type Config struct {
	Seed         int64
	TestFraction float64
	CVFolds      int
}

// Params is a named hyperparameter assignment, kept as a flat map so it
// serializes readably into the training report.
type Params map[string]float64

func (p Params) get(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// FamilyResult is the outcome for one model family. Err is set when the
// family failed to fit or search; a failed family is excluded from selection
// but never aborts its siblings.
type FamilyResult struct {
	Name        string
	Predictor   Predictor
	Params      Params
	CVScore     float64
	Eval        Evaluation
	Importances map[string]float64
	Elapsed     time.Duration
	Err         error
}

// Report is the complete outcome of a training run.
type Report struct {
	Results   []FamilyResult
	Scaler    *RobustScaler
	TrainRows int
	TestRows  int
}

// Succeeded returns the families that trained without error.
func (r *Report) Succeeded() []FamilyResult {
	var ok []FamilyResult
	for _, res := range r.Results {
		if res.Err == nil {
			ok = append(ok, res)
		}
	}
	return ok
}

type family struct {
	name string
	grid []Params
	fit  func(x [][]float64, y []int, p Params, seed int64) (Predictor, error)
}

func allFamilies() []family {
	return []family{
		{
			name: FamilyBoosting,
			grid: []Params{
				{"trees": 100, "max_depth": 3, "learning_rate": 0.1},
				{"trees": 200, "max_depth": 3, "learning_rate": 0.1},
				{"trees": 200, "max_depth": 5, "learning_rate": 0.05},
			},
			fit: func(x [][]float64, y []int, p Params, seed int64) (Predictor, error) {
				return FitBoosting(x, y, BoostingParams{
					Trees:        int(p.get("trees", 100)),
					MaxDepth:     int(p.get("max_depth", 3)),
					LearningRate: p.get("learning_rate", 0.1),
					MinLeaf:      int(p.get("min_leaf", 2)),
				}, seed)
			},
		},
		{
			name: FamilyForest,
			grid: []Params{
				{"trees": 100, "max_depth": 8},
				{"trees": 200, "max_depth": 10},
				{"trees": 200, "max_depth": 14},
			},
			fit: func(x [][]float64, y []int, p Params, seed int64) (Predictor, error) {
				return FitForest(x, y, ForestParams{
					Trees:    int(p.get("trees", 200)),
					MaxDepth: int(p.get("max_depth", 10)),
					MinLeaf:  int(p.get("min_leaf", 2)),
				}, seed)
			},
		},
		{
			name: FamilyLogistic,
			grid: []Params{
				{"learning_rate": 0.1, "l2": 0.001, "epochs": 300},
				{"learning_rate": 0.1, "l2": 0.01, "epochs": 300},
				{"learning_rate": 0.3, "l2": 0.001, "epochs": 500},
			},
			fit: func(x [][]float64, y []int, p Params, _ int64) (Predictor, error) {
				return FitLogistic(x, y, LogisticParams{
					LearningRate: p.get("learning_rate", 0.1),
					L2:           p.get("l2", 0.001),
					Epochs:       int(p.get("epochs", 300)),
				})
			},
		},
	}
}

// Trainer runs the shared train/evaluate protocol over every model family.
type Trainer struct {
	cfg          Config
	featureNames []string
	scaleMask    []bool
}

// NewTrainer builds a trainer. scaleMask marks which feature columns the
// robust scaler applies to (numeric features; categorical codes and binary
// indicators pass through).
func NewTrainer(cfg Config, featureNames []string, scaleMask []bool) *Trainer {
	return &Trainer{cfg: cfg, featureNames: featureNames, scaleMask: scaleMask}
}

// Train splits once, scales on the training partition only, then searches
// and evaluates every family under the same protocol. It fails only when no
// family succeeds.
func (t *Trainer) Train(x [][]float64, y []int) (*Report, error) {
	trainIdx, testIdx, err := StratifiedSplit(y, t.cfg.TestFraction, t.cfg.Seed)
	if err != nil {
		return nil, err
	}
	xTrain, yTrain := gather(x, y, trainIdx)
	xTest, yTest := gather(x, y, testIdx)

	scaler, err := FitScaler(xTrain, t.scaleMask)
	if err != nil {
		return nil, err
	}
	xTrain = scaler.TransformAll(xTrain)
	xTest = scaler.TransformAll(xTest)

	report := &Report{
		Scaler:    scaler,
		TrainRows: len(xTrain),
		TestRows:  len(xTest),
	}

	for i, fam := range allFamilies() {
		seed := t.cfg.Seed + int64(i+1)
		res := t.trainFamily(fam, xTrain, yTrain, xTest, yTest, seed)
		if res.Err != nil {
			log.Error().Err(res.Err).Str("family", fam.name).Msg("model family failed, excluded from selection")
		} else {
			log.Info().
				Str("family", fam.name).
				Float64("roc_auc", res.Eval.ROCAUC).
				Float64("accuracy", res.Eval.Accuracy).
				Dur("elapsed", res.Elapsed).
				Msg("model family evaluated")
		}
		report.Results = append(report.Results, res)
	}

	if len(report.Succeeded()) == 0 {
		return nil, fmt.Errorf("training failed: no model family succeeded")
	}
	return report, nil
}

func (t *Trainer) trainFamily(fam family, xTrain [][]float64, yTrain []int, xTest [][]float64, yTest []int, seed int64) (res FamilyResult) {
	res.Name = fam.name
	start := time.Now()
	defer func() {
		res.Elapsed = time.Since(start)
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("family %s panicked: %v", fam.name, r)
		}
	}()

	best, score, err := t.searchGrid(fam, xTrain, yTrain, seed)
	if err != nil {
		res.Err = err
		return res
	}
	res.Params = best
	res.CVScore = score

	predictor, err := fam.fit(xTrain, yTrain, best, seed)
	if err != nil {
		res.Err = fmt.Errorf("refit %s: %w", fam.name, err)
		return res
	}
	res.Predictor = predictor

	eval, err := Evaluate(predictor, xTest, yTest)
	if err != nil {
		res.Err = fmt.Errorf("evaluate %s: %w", fam.name, err)
		return res
	}
	res.Eval = eval
	res.Importances = t.namedImportances(predictor)
	return res
}

// searchGrid picks the hyperparameter assignment with the best mean
// cross-validated ROC-AUC on the training partition.
func (t *Trainer) searchGrid(fam family, x [][]float64, y []int, seed int64) (Params, float64, error) {
	folds, err := StratifiedKFold(y, t.cfg.CVFolds, t.cfg.Seed)
	if err != nil {
		return nil, 0, err
	}

	var best Params
	bestScore := -1.0
	for _, params := range fam.grid {
		var total float64
		valid := 0
		for f, holdout := range folds {
			var fitIdx []int
			for g, fold := range folds {
				if g != f {
					fitIdx = append(fitIdx, fold...)
				}
			}
			xFit, yFit := gather(x, y, fitIdx)
			xVal, yVal := gather(x, y, holdout)

			p, err := fam.fit(xFit, yFit, params, seed)
			if err != nil {
				return nil, 0, fmt.Errorf("cv fit %s %v: %w", fam.name, params, err)
			}
			scores := make([]float64, len(xVal))
			for i, row := range xVal {
				scores[i] = p.PredictProba(row)[1]
			}
			total += AUC(scores, yVal)
			valid++
		}
		score := total / float64(valid)
		if score > bestScore {
			bestScore = score
			best = params
		}
	}
	if best == nil {
		return nil, 0, fmt.Errorf("grid search for %s produced no candidate", fam.name)
	}
	return best, bestScore, nil
}

type importer interface {
	Importances() []float64
}

func (t *Trainer) namedImportances(p Predictor) map[string]float64 {
	imp, ok := p.(importer)
	if !ok {
		return nil
	}
	values := imp.Importances()
	out := make(map[string]float64, len(values))
	for i, v := range values {
		if i < len(t.featureNames) {
			out[t.featureNames[i]] = v
		}
	}
	return out
}
