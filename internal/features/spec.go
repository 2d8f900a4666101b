// Package features holds the declarative feature specification, the deriver
// that turns an event record into a model input vector, and the categorical
// encoder. Training and serving both go through this package, so the derived
// values cannot drift between the two paths.
package features

import (
	"math"

	"quakewatch/internal/events"
)

// Domain classifies how a feature value is produced.
type Domain int

const (
	Numeric Domain = iota
	Categorical
)

// Entry describes one derived feature: its dependencies on raw record fields,
// the derivation itself, and the default substituted when a dependency is
// missing. Derivation never errors; a false second return means "use Default".
type Entry struct {
	Name    string
	Deps    []string
	Domain  Domain
	Default float64

	// Derive computes a numeric feature. Only set for Numeric entries.
	Derive func(rec events.Record) (float64, bool)

	// Source names the record field supplying a categorical label.
	// Only set for Categorical entries.
	Source string

	// NoScale marks numeric features that are already bounded (indicators,
	// unit-circle encodings) and must bypass the robust scaler.
	NoScale bool
}

// shallow depth threshold for the coastal indicator, in kilometers.
const coastalDepthKm = 50.0

// Spec returns the feature table in its declared order. The order is part of
// the persisted artifact contract and must never change between releases
// without retraining.
func Spec() []Entry {
	return []Entry{
		passthrough(events.FieldMagnitude),
		passthrough(events.FieldDepthKm),
		passthrough(events.FieldLatitude),
		passthrough(events.FieldLongitude),
		passthrough(events.FieldSignificance),
		{
			Name: "distance_from_equator",
			Deps: []string{events.FieldLatitude},
			Derive: func(rec events.Record) (float64, bool) {
				lat, ok := rec.Float(events.FieldLatitude)
				return math.Abs(lat), ok
			},
		},
		{
			// Gutenberg-Richter energy proxy.
			Name: "seismic_energy",
			Deps: []string{events.FieldMagnitude},
			Derive: func(rec events.Record) (float64, bool) {
				m, ok := rec.Float(events.FieldMagnitude)
				if !ok {
					return 0, false
				}
				return math.Pow(10, 1.5*m+4.8), true
			},
		},
		{
			Name: "magnitude_depth_ratio",
			Deps: []string{events.FieldMagnitude, events.FieldDepthKm},
			Derive: func(rec events.Record) (float64, bool) {
				m, okM := rec.Float(events.FieldMagnitude)
				d, okD := rec.Float(events.FieldDepthKm)
				// Zero depth falls back to the default, never to +Inf.
				if !okM || !okD || d == 0 {
					return 0, false
				}
				return m / d, true
			},
		},
		{
			Name:    "is_coastal",
			Deps:    []string{events.FieldDepthKm},
			NoScale: true,
			Derive: func(rec events.Record) (float64, bool) {
				d, ok := rec.Float(events.FieldDepthKm)
				if !ok {
					return 0, false
				}
				if d < coastalDepthKm {
					return 1, true
				}
				return 0, true
			},
		},
		cyclic("hour_sin", events.FieldHour, 24, math.Sin),
		cyclic("hour_cos", events.FieldHour, 24, math.Cos),
		cyclic("month_sin", events.FieldMonth, 12, math.Sin),
		cyclic("month_cos", events.FieldMonth, 12, math.Cos),
		{Name: events.FieldMagType, Deps: []string{events.FieldMagType}, Domain: Categorical, Source: events.FieldMagType},
		{Name: events.FieldEventType, Deps: []string{events.FieldEventType}, Domain: Categorical, Source: events.FieldEventType},
		{Name: events.FieldAlert, Deps: []string{events.FieldAlert}, Domain: Categorical, Source: events.FieldAlert},
	}
}

// Names returns the declared feature order.
func Names() []string {
	spec := Spec()
	names := make([]string, len(spec))
	for i, e := range spec {
		names[i] = e.Name
	}
	return names
}

// CategoricalNames returns the categorical subset of the spec, in order.
func CategoricalNames() []string {
	var names []string
	for _, e := range Spec() {
		if e.Domain == Categorical {
			names = append(names, e.Name)
		}
	}
	return names
}

// ScaleMask reports, per feature column, whether the robust scaler applies.
// Categorical codes and bounded numeric features pass through unscaled.
func ScaleMask() []bool {
	spec := Spec()
	mask := make([]bool, len(spec))
	for i, e := range spec {
		mask[i] = e.Domain == Numeric && !e.NoScale
	}
	return mask
}

func passthrough(field string) Entry {
	return Entry{
		Name: field,
		Deps: []string{field},
		Derive: func(rec events.Record) (float64, bool) {
			return rec.Float(field)
		},
	}
}

// cyclic encodes a periodic integer field as a point on the unit circle so
// that values adjacent across the period boundary stay adjacent in feature
// space (hour 23 next to hour 0).
func cyclic(name, field string, period float64, fn func(float64) float64) Entry {
	return Entry{
		Name:    name,
		Deps:    []string{field},
		NoScale: true,
		Derive: func(rec events.Record) (float64, bool) {
			v, ok := rec.Float(field)
			if !ok {
				return 0, false
			}
			return fn(2 * math.Pi * v / period), true
		},
	}
}
