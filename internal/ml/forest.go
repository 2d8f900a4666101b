package ml

import (
	"fmt"
	"math"
	"math/rand"
)

// RandomForest is a bagged ensemble of regression trees over the 0/1 target.
// The class-1 probability is the mean leaf value across trees.
type RandomForest struct {
	Trees []*treeNode `json:"trees"`

	importances []float64
}

// ForestParams are the tunable hyperparameters.
type ForestParams struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
}

// FitForest trains a random forest. Each tree sees a bootstrap sample and
// sqrt(d) candidate features per split; the seed fixes both.
func FitForest(x [][]float64, y []int, p ForestParams, seed int64) (*RandomForest, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("forest: empty training set")
	}
	if p.Trees <= 0 || p.MaxDepth <= 0 {
		return nil, fmt.Errorf("forest: bad hyperparameters %+v", p)
	}
	if p.MinLeaf <= 0 {
		p.MinLeaf = 1
	}

	rng := rand.New(rand.NewSource(seed))
	dims := len(x[0])
	mtry := int(math.Ceil(math.Sqrt(float64(dims))))

	target := make([]float64, len(y))
	for i, v := range y {
		target[i] = float64(v)
	}

	f := &RandomForest{
		Trees:       make([]*treeNode, 0, p.Trees),
		importances: make([]float64, dims),
	}
	for t := 0; t < p.Trees; t++ {
		idx := make([]int, len(x))
		for i := range idx {
			idx[i] = rng.Intn(len(x))
		}
		tree := growTree(x, target, idx, 0, treeConfig{
			maxDepth:   p.MaxDepth,
			minLeaf:    p.MinLeaf,
			mtry:       mtry,
			rng:        rng,
			importance: f.importances,
		})
		f.Trees = append(f.Trees, tree)
	}
	normalize(f.importances)
	return f, nil
}

// PredictProba implements Predictor.
func (f *RandomForest) PredictProba(x []float64) []float64 {
	var sum float64
	for _, t := range f.Trees {
		sum += t.predict(x)
	}
	p1 := clampProb(sum / float64(len(f.Trees)))
	return []float64{1 - p1, p1}
}

// Kind implements Predictor.
func (f *RandomForest) Kind() string { return KindForest }

// Importances reports normalized impurity-gain importances. Only populated on
// freshly trained forests, not on deserialized ones.
func (f *RandomForest) Importances() []float64 { return f.importances }

func normalize(v []float64) {
	var total float64
	for _, x := range v {
		total += x
	}
	if total <= 0 {
		return
	}
	for i := range v {
		v[i] /= total
	}
}
