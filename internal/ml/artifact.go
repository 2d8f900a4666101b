package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"quakewatch/internal/features"
)

// External forms of the binary target, indexed by class.
var TargetLabels = []string{"Low Risk", "High Risk"}

// ErrFeatureOrderMismatch means the persisted feature order disagrees with
// the current feature spec. Loading such an artifact would silently corrupt
// every prediction, so it is fatal.
var ErrFeatureOrderMismatch = errors.New("artifact feature order does not match feature spec")

// Artifact is the immutable bundle produced by a training run and consumed
// wholesale by the serving process.
type Artifact struct {
	Version       string                `json:"version"`
	TrainedAt     time.Time             `json:"trained_at"`
	Policy        string                `json:"policy"`
	FeatureOrder  []string              `json:"feature_order"`
	Encoders      features.EncoderSet   `json:"categorical_encoders"`
	Target        *features.Encoder     `json:"target_encoder"`
	Scaler        *RobustScaler         `json:"scaler"`
	PredictorKind string                `json:"predictor_kind"`
	PredictorBlob json.RawMessage       `json:"predictor"`
	Metrics       map[string]Evaluation `json:"metrics"`
	Importances   map[string]float64    `json:"importances,omitempty"`

	Predictor Predictor `json:"-"`
}

// NewArtifact assembles an artifact from a finished training run.
func NewArtifact(policy string, predictor Predictor, report *Report, enc features.EncoderSet, featureOrder []string, importances map[string]float64) (*Artifact, error) {
	kind, blob, err := MarshalPredictor(predictor)
	if err != nil {
		return nil, err
	}

	metrics := make(map[string]Evaluation)
	for _, res := range report.Succeeded() {
		metrics[res.Name] = res.Eval
	}

	now := time.Now().UTC()
	return &Artifact{
		Version:       now.Format("20060102-150405"),
		TrainedAt:     now,
		Policy:        policy,
		FeatureOrder:  append([]string(nil), featureOrder...),
		Encoders:      enc,
		Target:        features.FitOrdered(TargetLabels),
		Scaler:        report.Scaler,
		PredictorKind: kind,
		PredictorBlob: blob,
		Metrics:       metrics,
		Importances:   importances,
		Predictor:     predictor,
	}, nil
}

// Save writes the artifact under dir and records it in the versions index.
// The written file is never modified afterwards.
func (a *Artifact) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create models dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("artifact-%s.json", a.Version))
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal artifact: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	mgr, err := NewManager(dir)
	if err != nil {
		return "", err
	}
	if err := mgr.AddVersion(a.Version, path); err != nil {
		return "", err
	}

	log.Info().Str("path", path).Str("version", a.Version).Msg("artifact saved")
	return path, nil
}

// LoadArtifact reads an artifact, restores its predictor, and enforces the
// feature-order contract against the current spec.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse artifact: %w", err)
	}

	current := features.Names()
	if len(a.FeatureOrder) != len(current) {
		return nil, fmt.Errorf("%w: artifact has %d features, spec has %d", ErrFeatureOrderMismatch, len(a.FeatureOrder), len(current))
	}
	for i, name := range current {
		if a.FeatureOrder[i] != name {
			return nil, fmt.Errorf("%w: position %d is %q, spec declares %q", ErrFeatureOrderMismatch, i, a.FeatureOrder[i], name)
		}
	}

	a.Predictor, err = UnmarshalPredictor(a.PredictorKind, a.PredictorBlob)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("path", path).
		Str("version", a.Version).
		Str("kind", a.PredictorKind).
		Time("trained_at", a.TrainedAt).
		Msg("artifact loaded")
	return &a, nil
}

// Version is one entry in the on-disk artifact index.
type Version struct {
	Version   string    `json:"version"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	IsActive  bool      `json:"is_active"`
}

// Manager tracks saved artifact versions and which one serving should load.
type Manager struct {
	dir          string
	versionsFile string
	versions     []Version
}

// NewManager opens (or initializes) the versions index under dir.
func NewManager(dir string) (*Manager, error) {
	m := &Manager{
		dir:          dir,
		versionsFile: filepath.Join(dir, "versions.json"),
	}
	data, err := os.ReadFile(m.versionsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("read versions index: %w", err)
	}
	if err := json.Unmarshal(data, &m.versions); err != nil {
		return nil, fmt.Errorf("parse versions index: %w", err)
	}
	return m, nil
}

// AddVersion records a new artifact and marks it active.
func (m *Manager) AddVersion(version, path string) error {
	for i := range m.versions {
		m.versions[i].IsActive = false
	}
	m.versions = append(m.versions, Version{
		Version:   version,
		Path:      path,
		CreatedAt: time.Now().UTC(),
		IsActive:  true,
	})
	return m.save()
}

// ActivePath returns the path of the active artifact, or an error when the
// index is empty.
func (m *Manager) ActivePath() (string, error) {
	for i := len(m.versions) - 1; i >= 0; i-- {
		if m.versions[i].IsActive {
			return m.versions[i].Path, nil
		}
	}
	return "", fmt.Errorf("no active artifact in %s", m.dir)
}

// Versions lists the recorded artifact versions.
func (m *Manager) Versions() []Version {
	return append([]Version(nil), m.versions...)
}

func (m *Manager) save() error {
	data, err := json.MarshalIndent(m.versions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal versions index: %w", err)
	}
	return os.WriteFile(m.versionsFile, data, 0o600)
}
