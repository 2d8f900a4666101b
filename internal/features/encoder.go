package features

import (
	"sort"

	"quakewatch/internal/events"
)

// OOVCode is the reserved code for labels not seen during training. Known
// labels always get contiguous non-negative codes, so -1 can never collide.
const OOVCode = -1

// OOVLabel is the sentinel returned when decoding the reserved code.
const OOVLabel = "Unknown"

// Encoder is a bidirectional mapping between categorical labels and integer
// codes. State is fixed at fit time; encoding at inference never mutates it.
type Encoder struct {
	Labels []string `json:"labels"`

	codes map[string]int
}

// Fit builds an encoder over the distinct labels in the input. Codes are
// assigned in sorted label order so the persisted artifact is byte-for-byte
// reproducible regardless of dataset row order.
func Fit(labels []string) *Encoder {
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if l == "" {
			continue
		}
		seen[l] = struct{}{}
	}
	distinct := make([]string, 0, len(seen))
	for l := range seen {
		distinct = append(distinct, l)
	}
	sort.Strings(distinct)
	return FitOrdered(distinct)
}

// FitOrdered builds an encoder whose codes follow the given label order
// exactly. Used for the target, where codes 0 and 1 must line up with the
// class indices the classifiers are trained against.
func FitOrdered(labels []string) *Encoder {
	e := &Encoder{Labels: labels}
	e.buildIndex()
	return e
}

func (e *Encoder) buildIndex() {
	e.codes = make(map[string]int, len(e.Labels))
	for i, l := range e.Labels {
		e.codes[l] = i
	}
}

// Encode maps a label to its code. The second return reports whether the
// label was seen at fit time; unseen labels get OOVCode, never an error.
func (e *Encoder) Encode(label string) (int, bool) {
	if e.codes == nil {
		e.buildIndex()
	}
	if code, ok := e.codes[label]; ok {
		return code, true
	}
	return OOVCode, false
}

// Decode is the inverse of Encode for known codes; the reserved code and any
// out-of-range value decode to the sentinel label.
func (e *Encoder) Decode(code int) string {
	if code < 0 || code >= len(e.Labels) {
		return OOVLabel
	}
	return e.Labels[code]
}

// Size returns the number of known labels.
func (e *Encoder) Size() int { return len(e.Labels) }

// EncoderSet holds one encoder per categorical feature.
type EncoderSet map[string]*Encoder

// FitEncoders builds the encoder set for every categorical feature over the
// observed training records.
func FitEncoders(records []events.Record) EncoderSet {
	set := make(EncoderSet)
	for _, entry := range Spec() {
		if entry.Domain != Categorical {
			continue
		}
		var labels []string
		for _, rec := range records {
			if l, ok := rec.Category(entry.Source); ok {
				labels = append(labels, l)
			}
		}
		set[entry.Name] = Fit(labels)
	}
	return set
}
