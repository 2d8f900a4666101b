package ml

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
)

// Selection policies.
const (
	PolicyBest     = "best"
	PolicyEnsemble = "ensemble"
)

// SelectBest picks the single family with the highest held-out ROC-AUC.
// Ties break by the declared priority order, never randomly.
func SelectBest(report *Report) (Predictor, *FamilyResult, error) {
	ok := report.Succeeded()
	if len(ok) == 0 {
		return nil, nil, fmt.Errorf("select: no successful family")
	}

	rank := make(map[string]int, len(PriorityOrder))
	for i, name := range PriorityOrder {
		rank[name] = i
	}

	best := 0
	for i := 1; i < len(ok); i++ {
		a, b := ok[i], ok[best]
		if a.Eval.ROCAUC > b.Eval.ROCAUC ||
			(a.Eval.ROCAUC == b.Eval.ROCAUC && rank[a.Name] < rank[b.Name]) {
			best = i
		}
	}

	winner := ok[best]
	log.Info().
		Str("family", winner.Name).
		Float64("roc_auc", winner.Eval.ROCAUC).
		Msg("selected best model family")
	return winner.Predictor, &winner, nil
}

// ensembleMember pairs a serializable predictor with its vote weight.
type ensembleMember struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`

	Predictor Predictor       `json:"-"`
	Kind      string          `json:"kind"`
	Blob      json.RawMessage `json:"model"`
}

// SoftVotingEnsemble combines family probabilities by weighted average. The
// weights are the held-out metric scores, normalized to sum 1 at build time.
type SoftVotingEnsemble struct {
	Members []*ensembleMember `json:"members"`
}

// BuildEnsemble constructs a soft-voting combiner over every successful
// family, weighting each vote by its held-out ROC-AUC.
func BuildEnsemble(report *Report) (*SoftVotingEnsemble, error) {
	ok := report.Succeeded()
	if len(ok) == 0 {
		return nil, fmt.Errorf("ensemble: no successful family")
	}

	var total float64
	for _, res := range ok {
		total += res.Eval.ROCAUC
	}
	if total <= 0 {
		return nil, fmt.Errorf("ensemble: degenerate family scores")
	}

	e := &SoftVotingEnsemble{}
	for _, res := range ok {
		kind, blob, err := MarshalPredictor(res.Predictor)
		if err != nil {
			return nil, err
		}
		e.Members = append(e.Members, &ensembleMember{
			Name:      res.Name,
			Weight:    res.Eval.ROCAUC / total,
			Predictor: res.Predictor,
			Kind:      kind,
			Blob:      blob,
		})
	}
	sort.Slice(e.Members, func(i, j int) bool { return e.Members[i].Name < e.Members[j].Name })

	log.Info().Int("members", len(e.Members)).Msg("built soft-voting ensemble")
	return e, nil
}

// PredictProba implements Predictor: the weighted average of member
// probabilities, renormalized to sum 1.
func (e *SoftVotingEnsemble) PredictProba(x []float64) []float64 {
	out := []float64{0, 0}
	for _, m := range e.Members {
		probs := m.Predictor.PredictProba(x)
		out[0] += m.Weight * probs[0]
		out[1] += m.Weight * probs[1]
	}
	if sum := out[0] + out[1]; sum > 0 {
		out[0] /= sum
		out[1] /= sum
	}
	return out
}

// Kind implements Predictor.
func (e *SoftVotingEnsemble) Kind() string { return KindEnsemble }

// UnmarshalJSON restores member predictors from their kind tags.
func (e *SoftVotingEnsemble) UnmarshalJSON(data []byte) error {
	type alias SoftVotingEnsemble
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	for _, m := range a.Members {
		p, err := UnmarshalPredictor(m.Kind, m.Blob)
		if err != nil {
			return fmt.Errorf("ensemble member %s: %w", m.Name, err)
		}
		m.Predictor = p
	}
	*e = SoftVotingEnsemble(a)
	return nil
}
