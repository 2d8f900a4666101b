// Package infer serves risk predictions from a loaded model artifact. The
// engine is safe for unlimited concurrent readers: the artifact lives behind
// an atomic pointer, so a hot reload swaps it in one step and in-flight
// requests finish against the artifact they started with.
package infer

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"quakewatch/internal/events"
	"quakewatch/internal/features"
	"quakewatch/internal/ml"
)

// ErrModelUnavailable means no artifact is loaded; the request is rejected
// cleanly rather than crashing.
var ErrModelUnavailable = errors.New("model artifact not loaded")

// ErrInvalidInput means the request payload is not a well-formed key/value
// structure.
var ErrInvalidInput = errors.New("invalid prediction input")

// MetricsInterface defines the metrics methods the engine needs.
type MetricsInterface interface {
	PredictionsInc()
	PredictionFailuresInc()
	PredictionLatencyObserve(float64)
	OOVWarningsInc()
	ModelAgeSet(float64)
}

// Result is a served prediction.
type Result struct {
	Label         string             `json:"prediction"`
	Class         int                `json:"class"`
	Probabilities map[string]float64 `json:"probabilities"`
	Warnings      []string           `json:"warnings,omitempty"`
	ModelVersion  string             `json:"model_version"`
}

// Engine reconstructs a full feature vector from partial input and feeds it
// to the loaded artifact.
type Engine struct {
	deriver  *features.Deriver
	artifact atomic.Pointer[ml.Artifact]
	metrics  MetricsInterface
}

// New builds an engine with no artifact loaded. metrics may be nil.
func New(metrics MetricsInterface) *Engine {
	return &Engine{deriver: features.NewDeriver(), metrics: metrics}
}

// SetArtifact swaps the served artifact atomically.
func (e *Engine) SetArtifact(a *ml.Artifact) {
	e.artifact.Store(a)
	if e.metrics != nil && a != nil {
		e.metrics.ModelAgeSet(time.Since(a.TrainedAt).Seconds())
	}
}

// Artifact returns the currently served artifact, or nil.
func (e *Engine) Artifact() *ml.Artifact {
	return e.artifact.Load()
}

// Ready reports whether an artifact is loaded.
func (e *Engine) Ready() bool {
	return e.artifact.Load() != nil
}

// Predict derives the feature vector from whatever fields are present,
// applies the artifact's scaler and predictor, and decodes the label. Missing
// fields follow the default policy; only a structurally malformed payload or
// a missing artifact produce an error.
func (e *Engine) Predict(input map[string]any) (*Result, error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.PredictionLatencyObserve(time.Since(start).Seconds())
		}
	}()

	artifact := e.artifact.Load()
	if artifact == nil {
		e.fail()
		return nil, ErrModelUnavailable
	}
	if input == nil {
		e.fail()
		return nil, ErrInvalidInput
	}

	rec, warnings := events.FromMap(input)
	vec, oov := e.deriver.Derive(rec, artifact.Encoders)
	for _, w := range oov {
		log.Warn().Str("model_version", artifact.Version).Msg(w)
		if e.metrics != nil {
			e.metrics.OOVWarningsInc()
		}
	}
	warnings = append(warnings, oov...)

	scaled := artifact.Scaler.Transform(vec)
	probs := artifact.Predictor.PredictProba(scaled)
	class := 0
	if probs[1] >= probs[0] {
		class = 1
	}

	if e.metrics != nil {
		e.metrics.PredictionsInc()
	}

	return &Result{
		Label: artifact.Target.Decode(class),
		Class: class,
		Probabilities: map[string]float64{
			artifact.Target.Decode(0): probs[0],
			artifact.Target.Decode(1): probs[1],
		},
		Warnings:     warnings,
		ModelVersion: artifact.Version,
	}, nil
}

func (e *Engine) fail() {
	if e.metrics != nil {
		e.metrics.PredictionFailuresInc()
	}
}
