// Package api exposes the prediction service over HTTP: a predict endpoint,
// the historical dataset, and model metadata. Failures come back as
// structured JSON envelopes; the HTTP layer only maps them to status codes.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"quakewatch/internal/cfg"
	"quakewatch/internal/infer"
	"quakewatch/internal/metrics"
	"quakewatch/internal/ml"
	"quakewatch/internal/storage"
)

const defaultDataLimit = 1000

// Server bundles router and dependencies for the REST API.
type Server struct {
	cfg     cfg.Settings
	store   *storage.Store
	infer   *infer.Engine
	metrics *metrics.Metrics
	engine  *gin.Engine
}

// New constructs a server with routes and middleware. store and m may be nil
// in tests.
func New(settings cfg.Settings, store *storage.Store, eng *infer.Engine, m *metrics.Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{cfg: settings, store: store, infer: eng, metrics: m, engine: engine}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().Str("addr", s.cfg.ListenAddr).Msg("API server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.POST("/api/predict", s.handlePredict)
	s.engine.GET("/api/data", s.handleData)
	s.engine.GET("/api/model", s.handleModel)
}

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{"status": "ok", "model_loaded": s.infer.Ready()}
	c.JSON(http.StatusOK, status)
}

// handlePredict serves a risk prediction for a partial event description.
// POST /api/predict
func (s *Server) handlePredict(c *gin.Context) {
	requestID := uuid.NewString()

	var input map[string]any
	if err := c.ShouldBindJSON(&input); err != nil {
		if s.metrics != nil {
			s.metrics.PredictionFailures.Inc()
		}
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "request body must be a JSON object"})
		return
	}

	result, err := s.infer.Predict(input)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, infer.ErrModelUnavailable):
			status = http.StatusServiceUnavailable
		case errors.Is(err, infer.ErrInvalidInput):
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Str("request_id", requestID).Msg("prediction failed")
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	if s.metrics != nil {
		s.metrics.PredictionScores.Observe(result.Probabilities[ml.TargetLabels[1]])
	}
	s.audit(requestID, input, result)

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"request_id":    requestID,
		"prediction":    result.Label,
		"probabilities": result.Probabilities,
		"warnings":      result.Warnings,
	})
}

// handleData serves the stored historical dataset.
// GET /api/data?limit=N
func (s *Server) handleData(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dataset storage not configured"})
		return
	}

	limit := defaultDataLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	records, err := s.store.Events(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(records), "events": records})
}

// handleModel serves metadata about the loaded artifact.
// GET /api/model
func (s *Server) handleModel(c *gin.Context) {
	artifact := s.infer.Artifact()
	if artifact == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no model loaded"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"version":       artifact.Version,
		"trained_at":    artifact.TrainedAt,
		"policy":        artifact.Policy,
		"kind":          artifact.PredictorKind,
		"feature_order": artifact.FeatureOrder,
		"metrics":       artifact.Metrics,
		"importances":   artifact.Importances,
	})
}

// audit appends the served prediction to the store. Best effort: an audit
// failure never fails the request.
func (s *Server) audit(requestID string, input map[string]any, result *infer.Result) {
	if s.store == nil {
		return
	}
	err := s.store.StorePrediction(storage.PredictionRecord{
		RequestID:     requestID,
		At:            time.Now().UTC(),
		Input:         input,
		Label:         result.Label,
		Probabilities: result.Probabilities,
		Warnings:      result.Warnings,
		ModelVersion:  result.ModelVersion,
	})
	if err != nil {
		log.Warn().Err(err).Str("request_id", requestID).Msg("failed to store prediction audit record")
	}
}
