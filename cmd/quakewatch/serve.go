package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"quakewatch/internal/api"
	"quakewatch/internal/cfg"
	"quakewatch/internal/infer"
	"quakewatch/internal/metrics"
	"quakewatch/internal/ml"
	"quakewatch/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve risk predictions over HTTP from the active model artifact",
	RunE:  runServe,
}

// Compile-time check that the prometheus metrics satisfy the engine's needs.
var _ infer.MetricsInterface = (*metrics.Metrics)(nil)

func runServe(cmd *cobra.Command, args []string) error {
	c, err := cfg.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()

	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage unavailable, /api/data and audit logging disabled")
		store = nil
	} else {
		defer store.Close()
	}

	engine := infer.New(m)
	if err := loadActiveArtifact(c, engine); err != nil {
		if errors.Is(err, ml.ErrFeatureOrderMismatch) {
			// A stale feature order would corrupt every prediction.
			return err
		}
		log.Warn().Err(err).Msg("no model artifact loaded, predictions will be rejected until one is trained")
	}

	startReloadHandler(ctx, c, engine)
	startMetricsServer(ctx, c)

	server := api.New(c, store, engine, m)
	if err := server.Run(ctx); err != nil {
		return fmt.Errorf("API server failed: %w", err)
	}

	log.Info().Msg("shutdown complete")
	return nil
}

func loadActiveArtifact(c cfg.Settings, engine *infer.Engine) error {
	mgr, err := ml.NewManager(c.ModelsDir)
	if err != nil {
		return err
	}
	path, err := mgr.ActivePath()
	if err != nil {
		return err
	}
	artifact, err := ml.LoadArtifact(path)
	if err != nil {
		return err
	}
	engine.SetArtifact(artifact)
	return nil
}

// startReloadHandler hot-swaps the artifact on SIGHUP. The swap is atomic:
// in-flight requests finish against the artifact they started with.
func startReloadHandler(ctx context.Context, c cfg.Settings, engine *infer.Engine) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-ctx.Done():
				signal.Stop(sig)
				return
			case <-sig:
				if err := loadActiveArtifact(c, engine); err != nil {
					log.Error().Err(err).Msg("artifact reload failed, keeping current model")
					continue
				}
				log.Info().Msg("artifact reloaded")
			}
		}
	}()
}

func startMetricsServer(ctx context.Context, c cfg.Settings) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", c.MetricsPort),
		Handler: mux,
	}

	go func() {
		log.Info().Int("port", c.MetricsPort).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
