package ml

import (
	"fmt"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions indices into train and test sets while
// preserving the class proportions of y in both partitions. The same seed
// always yields the same partition.
func StratifiedSplit(y []int, testFraction float64, seed int64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction must be in (0,1), got %v", testFraction)
	}
	rng := rand.New(rand.NewSource(seed))

	for _, class := range []int{0, 1} {
		var idx []int
		for i, label := range y {
			if label == class {
				idx = append(idx, i)
			}
		}
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })

		nTest := int(float64(len(idx)) * testFraction)
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}

	if len(train) == 0 || len(test) == 0 {
		return nil, nil, fmt.Errorf("split produced an empty partition (%d train, %d test)", len(train), len(test))
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

// StratifiedKFold assigns every index to one of k folds, keeping class
// proportions roughly equal across folds. Fold f's slice holds its held-out
// indices.
func StratifiedKFold(y []int, k int, seed int64) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("k-fold requires k >= 2, got %d", k)
	}
	if k > len(y) {
		return nil, fmt.Errorf("k=%d exceeds %d samples", k, len(y))
	}
	rng := rand.New(rand.NewSource(seed))

	folds := make([][]int, k)
	for _, class := range []int{0, 1} {
		var idx []int
		for i, label := range y {
			if label == class {
				idx = append(idx, i)
			}
		}
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		for pos, i := range idx {
			f := pos % k
			folds[f] = append(folds[f], i)
		}
	}

	for _, fold := range folds {
		sort.Ints(fold)
	}
	return folds, nil
}

// gather selects rows of x and y by index.
func gather(x [][]float64, y []int, idx []int) ([][]float64, []int) {
	gx := make([][]float64, len(idx))
	gy := make([]int, len(idx))
	for i, j := range idx {
		gx[i] = x[j]
		gy[i] = y[j]
	}
	return gx, gy
}
