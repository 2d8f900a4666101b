package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"quakewatch/internal/cfg"
	"quakewatch/internal/events"
	"quakewatch/internal/features"
	"quakewatch/internal/ingest"
	"quakewatch/internal/metrics"
	"quakewatch/internal/ml"
	"quakewatch/internal/storage"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the classifiers and persist the selected model artifact",
	RunE:  runTrain,
}

func runTrain(cmd *cobra.Command, args []string) error {
	c, err := cfg.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	m := metrics.New()

	records, err := loadDataset(cmd.Context(), c)
	if err != nil {
		return err
	}
	m.EventsLoaded.Set(float64(len(records)))

	if err := persistDataset(c, records); err != nil {
		log.Warn().Err(err).Msg("failed to persist dataset, /api/data will be empty")
	}

	deriver := features.NewDeriver()
	encoders := features.FitEncoders(records)
	x, y := features.DeriveMatrix(records, deriver, encoders)

	trainer := ml.NewTrainer(ml.Config{
		Seed:         c.Seed,
		TestFraction: c.TestFraction,
		CVFolds:      c.CVFolds,
	}, deriver.Names(), features.ScaleMask())

	report, err := trainer.Train(x, y)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	m.TrainingRuns.Inc()
	for _, res := range report.Results {
		if res.Err != nil {
			m.FamilyFailures.Inc()
		}
	}

	predictor, importances, err := selectPredictor(c.Policy, report)
	if err != nil {
		return err
	}

	artifact, err := ml.NewArtifact(c.Policy, predictor, report, encoders, deriver.Names(), importances)
	if err != nil {
		return fmt.Errorf("assemble artifact: %w", err)
	}
	path, err := artifact.Save(c.ModelsDir)
	if err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}

	// Round-trip through the loader so order validation runs before the
	// artifact is ever served.
	if _, err := ml.LoadArtifact(path); err != nil {
		return fmt.Errorf("verify artifact: %w", err)
	}

	log.Info().Str("path", path).Str("policy", c.Policy).Msg("training run complete")
	return nil
}

func loadDataset(ctx context.Context, c cfg.Settings) ([]events.Record, error) {
	if c.DatasetURL != "" {
		client := ingest.NewClient(c.FetchTimeout)
		records, err := client.FetchDataset(ctx, c.DatasetURL)
		if err == nil {
			return records, nil
		}
		log.Warn().Err(err).Str("url", c.DatasetURL).Msg("dataset fetch failed, falling back to local file")
	}
	return events.LoadCSV(c.DatasetPath)
}

func persistDataset(c cfg.Settings, records []events.Record) error {
	store, err := storage.New(c.DataPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.ReplaceEvents(records)
}

func selectPredictor(policy string, report *ml.Report) (ml.Predictor, map[string]float64, error) {
	if policy == ml.PolicyEnsemble {
		ensemble, err := ml.BuildEnsemble(report)
		if err != nil {
			return nil, nil, err
		}
		return ensemble, nil, nil
	}
	predictor, winner, err := ml.SelectBest(report)
	if err != nil {
		return nil, nil, err
	}
	return predictor, winner.Importances, nil
}
