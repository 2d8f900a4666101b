package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// GradientBoosting is a stagewise ensemble of shallow regression trees fit to
// the log-loss pseudo-residuals, starting from the base-rate log-odds.
type GradientBoosting struct {
	Base         float64     `json:"base"`
	LearningRate float64     `json:"learning_rate"`
	Trees        []*treeNode `json:"trees"`

	importances []float64
}

// BoostingParams are the tunable hyperparameters.
type BoostingParams struct {
	Trees        int
	MaxDepth     int
	LearningRate float64
	MinLeaf      int
}

// FitBoosting trains a gradient-boosted classifier. The seed only feeds the
// per-split feature ordering; boosting itself is inherently sequential.
func FitBoosting(x [][]float64, y []int, p BoostingParams, seed int64) (*GradientBoosting, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("boosting: empty training set")
	}
	if p.Trees <= 0 || p.MaxDepth <= 0 || p.LearningRate <= 0 {
		return nil, fmt.Errorf("boosting: bad hyperparameters %+v", p)
	}
	if p.MinLeaf <= 0 {
		p.MinLeaf = 1
	}

	rng := rand.New(rand.NewSource(seed))
	dims := len(x[0])

	pos := 0
	for _, v := range y {
		pos += v
	}
	base := logOdds(float64(pos) / float64(len(y)))

	g := &GradientBoosting{
		Base:         base,
		LearningRate: p.LearningRate,
		Trees:        make([]*treeNode, 0, p.Trees),
		importances:  make([]float64, dims),
	}

	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	margin := make([]float64, len(x))
	for i := range margin {
		margin[i] = base
	}
	residual := make([]float64, len(x))

	for t := 0; t < p.Trees; t++ {
		for i := range x {
			residual[i] = float64(y[i]) - sigmoid(margin[i])
		}
		tree := growTree(x, residual, idx, 0, treeConfig{
			maxDepth:   p.MaxDepth,
			minLeaf:    p.MinLeaf,
			rng:        rng,
			importance: g.importances,
		})
		g.Trees = append(g.Trees, tree)
		for i, row := range x {
			margin[i] += p.LearningRate * tree.predict(row)
		}
	}
	normalize(g.importances)
	return g, nil
}

// PredictProba implements Predictor.
func (g *GradientBoosting) PredictProba(x []float64) []float64 {
	margin := g.Base
	for _, t := range g.Trees {
		margin += g.LearningRate * t.predict(x)
	}
	p1 := sigmoid(margin)
	return []float64{1 - p1, p1}
}

// Kind implements Predictor.
func (g *GradientBoosting) Kind() string { return KindBoosting }

// Importances reports normalized impurity-gain importances. Only populated on
// freshly trained models, not on deserialized ones.
func (g *GradientBoosting) Importances() []float64 { return g.importances }

func logOdds(p float64) float64 {
	const eps = 1e-6
	p = math.Min(1-eps, math.Max(eps, p))
	return math.Log(p / (1 - p))
}
