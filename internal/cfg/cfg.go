// Package cfg loads service configuration from a YAML file (selected by
// CONFIG_FILE) with environment-variable overrides, falling back to
// environment variables alone.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	DataPath     string
	ModelsDir    string
	DatasetPath  string
	DatasetURL   string
	ListenAddr   string
	MetricsPort  int
	Seed         int64
	TestFraction float64
	CVFolds      int
	Policy       string
	FetchTimeout time.Duration
}

// ConfigFile mirrors the YAML layout.
type ConfigFile struct {
	Dataset struct {
		Path string `yaml:"path"`
		URL  string `yaml:"url"`
	} `yaml:"dataset"`

	Training struct {
		Seed         int64   `yaml:"seed"`
		TestFraction float64 `yaml:"testFraction"`
		CVFolds      int     `yaml:"cvFolds"`
		Policy       string  `yaml:"policy"`
	} `yaml:"training"`

	System struct {
		DataPath     string `yaml:"dataPath"`
		ModelsDir    string `yaml:"modelsDir"`
		ListenAddr   string `yaml:"listenAddr"`
		MetricsPort  int    `yaml:"metricsPort"`
		FetchTimeout string `yaml:"fetchTimeout"`
	} `yaml:"system"`
}

// Load resolves settings from the YAML file named by CONFIG_FILE, or from
// environment variables when no file is configured.
func Load() (Settings, error) {
	var config ConfigFile
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	fetchTimeout, err := time.ParseDuration(config.System.FetchTimeout)
	if err != nil {
		fetchTimeout = 30 * time.Second
	}

	settings := Settings{
		DataPath:     getEnvOrDefault("DATA_PATH", defaultString(config.System.DataPath, "data")),
		ModelsDir:    getEnvOrDefault("MODELS_DIR", defaultString(config.System.ModelsDir, "models")),
		DatasetPath:  getEnvOrDefault("DATASET_PATH", defaultString(config.Dataset.Path, "data/earthquakes.csv")),
		DatasetURL:   getEnvOrDefault("DATASET_URL", config.Dataset.URL),
		ListenAddr:   getEnvOrDefault("LISTEN_ADDR", defaultString(config.System.ListenAddr, ":8080")),
		MetricsPort:  getIntOrDefault("METRICS_PORT", defaultInt(config.System.MetricsPort, 9090)),
		Seed:         int64(getIntOrDefault("TRAIN_SEED", defaultInt(int(config.Training.Seed), 42))),
		TestFraction: getFloatOrDefault("TEST_FRACTION", defaultFloat(config.Training.TestFraction, 0.25)),
		CVFolds:      getIntOrDefault("CV_FOLDS", defaultInt(config.Training.CVFolds, 5)),
		Policy:       getEnvOrDefault("SELECT_POLICY", defaultString(config.Training.Policy, "best")),
		FetchTimeout: getDurationOrDefault("FETCH_TIMEOUT", fetchTimeout),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func validateSettings(s *Settings) error {
	if s.TestFraction <= 0 || s.TestFraction >= 0.5 {
		return fmt.Errorf("test fraction must be between 0 and 0.5, got %f", s.TestFraction)
	}
	if s.CVFolds < 2 || s.CVFolds > 20 {
		return fmt.Errorf("cv folds must be between 2 and 20, got %d", s.CVFolds)
	}
	if s.Policy != "best" && s.Policy != "ensemble" {
		return fmt.Errorf("policy must be \"best\" or \"ensemble\", got %q", s.Policy)
	}
	if s.MetricsPort < 1024 || s.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", s.MetricsPort)
	}
	if s.ListenAddr == "" {
		return fmt.Errorf("listen address cannot be empty")
	}
	if s.FetchTimeout < time.Second || s.FetchTimeout > 5*time.Minute {
		return fmt.Errorf("fetch timeout must be between 1s and 5m, got %v", s.FetchTimeout)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func defaultString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func defaultInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func defaultFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}
