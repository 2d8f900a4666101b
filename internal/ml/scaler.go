package ml

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// RobustScaler centers on the median and scales by the interquartile range,
// so outlier magnitudes and energies do not dominate the linear family. It is
// fitted on the training partition only and reused verbatim everywhere else;
// it travels inside the persisted artifact for that reason.
type RobustScaler struct {
	// Centers and Scales are per-column; columns with Scaled[i] == false
	// (categorical codes, indicator features) pass through untouched.
	Centers []float64 `json:"centers"`
	Scales  []float64 `json:"scales"`
	Scaled  []bool    `json:"scaled"`
}

// FitScaler computes robust statistics over the training matrix. The mask
// selects which columns are scaled.
func FitScaler(x [][]float64, mask []bool) (*RobustScaler, error) {
	if len(x) == 0 {
		return nil, fmt.Errorf("fit scaler: empty training matrix")
	}
	cols := len(x[0])
	if len(mask) != cols {
		return nil, fmt.Errorf("fit scaler: mask length %d != %d columns", len(mask), cols)
	}

	s := &RobustScaler{
		Centers: make([]float64, cols),
		Scales:  make([]float64, cols),
		Scaled:  append([]bool(nil), mask...),
	}

	column := make([]float64, len(x))
	for j := 0; j < cols; j++ {
		s.Scales[j] = 1
		if !mask[j] {
			continue
		}
		for i := range x {
			column[i] = x[i][j]
		}
		sort.Float64s(column)
		s.Centers[j] = stat.Quantile(0.5, stat.Empirical, column, nil)
		iqr := stat.Quantile(0.75, stat.Empirical, column, nil) - stat.Quantile(0.25, stat.Empirical, column, nil)
		if iqr > 0 {
			s.Scales[j] = iqr
		}
	}
	return s, nil
}

// Transform scales one vector, returning a new slice.
func (s *RobustScaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for j, v := range x {
		if j < len(s.Scaled) && s.Scaled[j] {
			out[j] = (v - s.Centers[j]) / s.Scales[j]
		} else {
			out[j] = v
		}
	}
	return out
}

// TransformAll scales a matrix row by row.
func (s *RobustScaler) TransformAll(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = s.Transform(row)
	}
	return out
}
