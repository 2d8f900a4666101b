package features

import (
	"fmt"
	"math"

	"quakewatch/internal/events"
)

// Deriver computes the full feature vector for a record. It is a pure
// function of the record and the encoder set: same inputs, same vector,
// whether called from the training pipeline or the serving path.
type Deriver struct {
	spec []Entry
}

// NewDeriver returns a deriver over the declared feature spec.
func NewDeriver() *Deriver {
	return &Deriver{spec: Spec()}
}

// Names returns the feature order the deriver emits.
func (d *Deriver) Names() []string {
	names := make([]string, len(d.spec))
	for i, e := range d.spec {
		names[i] = e.Name
	}
	return names
}

// Len returns the vector length.
func (d *Deriver) Len() int { return len(d.spec) }

// Derive produces the vector in declared order. Missing or ill-formed
// dependencies substitute the entry default; unseen categorical labels encode
// to the reserved code. Neither is an error: the warnings slice reports
// out-of-vocabulary labels so callers can log them.
func (d *Deriver) Derive(rec events.Record, enc EncoderSet) ([]float64, []string) {
	vec := make([]float64, len(d.spec))
	var warnings []string

	for i, entry := range d.spec {
		switch entry.Domain {
		case Categorical:
			vec[i] = float64(OOVCode)
			label, ok := rec.Category(entry.Source)
			if !ok {
				// Missing categorical fields take the reserved code, the
				// same path as an unseen label.
				continue
			}
			e := enc[entry.Name]
			if e == nil {
				continue
			}
			code, known := e.Encode(label)
			if !known {
				warnings = append(warnings, fmt.Sprintf("feature %s: label %q not seen during training", entry.Name, label))
			}
			vec[i] = float64(code)
		default:
			vec[i] = entry.Default
			v, ok := entry.Derive(rec)
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			vec[i] = v
		}
	}
	return vec, warnings
}

// DeriveMatrix builds the labeled feature table for training. Records without
// a label are skipped.
func DeriveMatrix(records []events.Record, d *Deriver, enc EncoderSet) (x [][]float64, y []int) {
	for _, rec := range records {
		if rec.Tsunami == nil {
			continue
		}
		vec, _ := d.Derive(rec, enc)
		x = append(x, vec)
		y = append(y, *rec.Tsunami)
	}
	return x, y
}
