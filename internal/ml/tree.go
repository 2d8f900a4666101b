package ml

import (
	"math"
	"math/rand"
	"sort"
)

// treeNode is one node of a CART regression tree. Trees are grown on 0/1
// targets (forest) or pseudo-residuals (boosting); either way a leaf carries
// the mean target of its samples.
type treeNode struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t"`
	Left      *treeNode `json:"l,omitempty"`
	Right     *treeNode `json:"r,omitempty"`
	Value     float64   `json:"v"`
	IsLeaf    bool      `json:"leaf,omitempty"`
}

type treeConfig struct {
	maxDepth int
	minLeaf  int
	// mtry is the number of candidate features per split; 0 means all.
	mtry int
	rng  *rand.Rand
	// importance accumulates weighted variance reduction per feature.
	importance []float64
}

func growTree(x [][]float64, y []float64, idx []int, depth int, cfg treeConfig) *treeNode {
	node := &treeNode{Value: mean(y, idx), IsLeaf: true}
	if depth >= cfg.maxDepth || len(idx) < 2*cfg.minLeaf {
		return node
	}
	parentVar := variance(y, idx)
	if parentVar <= 1e-12 {
		return node
	}

	feature, threshold, gain := bestSplit(x, y, idx, cfg)
	if feature < 0 {
		return node
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < cfg.minLeaf || len(right) < cfg.minLeaf {
		return node
	}

	if cfg.importance != nil {
		cfg.importance[feature] += gain * float64(len(idx))
	}

	node.IsLeaf = false
	node.Feature = feature
	node.Threshold = threshold
	node.Left = growTree(x, y, left, depth+1, cfg)
	node.Right = growTree(x, y, right, depth+1, cfg)
	return node
}

// bestSplit scans candidate features for the threshold with the highest
// variance reduction. Returns feature -1 when no split improves on the
// parent.
func bestSplit(x [][]float64, y []float64, idx []int, cfg treeConfig) (int, float64, float64) {
	dims := len(x[idx[0]])
	candidates := make([]int, dims)
	for j := range candidates {
		candidates[j] = j
	}
	if cfg.mtry > 0 && cfg.mtry < dims {
		cfg.rng.Shuffle(dims, func(a, b int) { candidates[a], candidates[b] = candidates[b], candidates[a] })
		candidates = candidates[:cfg.mtry]
		sort.Ints(candidates)
	}

	parent := variance(y, idx) * float64(len(idx))

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	sorted := make([]int, len(idx))

	for _, j := range candidates {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return x[sorted[a]][j] < x[sorted[b]][j] })

		// Prefix sums over the sorted order let each threshold be scored in
		// constant time.
		var sumL, sumSqL float64
		var sumR, sumSqR float64
		for _, i := range sorted {
			sumR += y[i]
			sumSqR += y[i] * y[i]
		}

		for k := 0; k < len(sorted)-1; k++ {
			i := sorted[k]
			sumL += y[i]
			sumSqL += y[i] * y[i]
			sumR -= y[i]
			sumSqR -= y[i] * y[i]

			vi, vn := x[i][j], x[sorted[k+1]][j]
			if vi == vn {
				continue
			}
			nL, nR := float64(k+1), float64(len(sorted)-k-1)
			if int(nL) < cfg.minLeaf || int(nR) < cfg.minLeaf {
				continue
			}

			sseL := sumSqL - sumL*sumL/nL
			sseR := sumSqR - sumR*sumR/nR
			gain := parent - (sseL + sseR)
			if gain > bestGain {
				bestGain = gain
				bestFeature = j
				bestThreshold = (vi + vn) / 2
			}
		}
	}

	if bestFeature < 0 {
		return -1, 0, 0
	}
	return bestFeature, bestThreshold, bestGain / float64(len(idx))
}

func (n *treeNode) predict(x []float64) float64 {
	for !n.IsLeaf {
		if n.Feature < len(x) && x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n.Value
}

func mean(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var s float64
	for _, i := range idx {
		s += y[i]
	}
	return s / float64(len(idx))
}

func variance(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	m := mean(y, idx)
	var s float64
	for _, i := range idx {
		d := y[i] - m
		s += d * d
	}
	return s / float64(len(idx))
}

func clampProb(p float64) float64 {
	return math.Min(1, math.Max(0, p))
}
