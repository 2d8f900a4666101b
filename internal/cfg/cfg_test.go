package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONFIG_FILE", "DATA_PATH", "MODELS_DIR", "DATASET_PATH", "DATASET_URL",
		"LISTEN_ADDR", "METRICS_PORT", "TRAIN_SEED", "TEST_FRACTION",
		"CV_FOLDS", "SELECT_POLICY", "FETCH_TIMEOUT",
	} {
		// Empty values read as unset.
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	s, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if s.ListenAddr != ":8080" {
		t.Errorf("listen addr = %q", s.ListenAddr)
	}
	if s.Seed != 42 || s.TestFraction != 0.25 || s.CVFolds != 5 {
		t.Errorf("training defaults wrong: %+v", s)
	}
	if s.Policy != "best" {
		t.Errorf("policy = %q", s.Policy)
	}
	if s.DatasetPath != "data/earthquakes.csv" {
		t.Errorf("dataset path = %q", s.DatasetPath)
	}
	if s.FetchTimeout != 30*time.Second {
		t.Errorf("fetch timeout = %v", s.FetchTimeout)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("TRAIN_SEED", "7")
	t.Setenv("TEST_FRACTION", "0.3")
	t.Setenv("SELECT_POLICY", "ensemble")
	t.Setenv("FETCH_TIMEOUT", "10s")

	s, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.ListenAddr != ":9999" || s.Seed != 7 || s.TestFraction != 0.3 {
		t.Errorf("overrides not applied: %+v", s)
	}
	if s.Policy != "ensemble" {
		t.Errorf("policy = %q", s.Policy)
	}
	if s.FetchTimeout != 10*time.Second {
		t.Errorf("fetch timeout = %v", s.FetchTimeout)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearConfigEnv(t)

	content := `
dataset:
  path: /srv/earthquakes.csv
training:
  seed: 99
  testFraction: 0.2
  cvFolds: 4
  policy: ensemble
system:
  listenAddr: ":7070"
  metricsPort: 9191
  fetchTimeout: 45s
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)

	s, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.DatasetPath != "/srv/earthquakes.csv" {
		t.Errorf("dataset path = %q", s.DatasetPath)
	}
	if s.Seed != 99 || s.TestFraction != 0.2 || s.CVFolds != 4 {
		t.Errorf("training section not applied: %+v", s)
	}
	if s.ListenAddr != ":7070" || s.MetricsPort != 9191 {
		t.Errorf("system section not applied: %+v", s)
	}
	if s.FetchTimeout != 45*time.Second {
		t.Errorf("fetch timeout = %v", s.FetchTimeout)
	}
}

func TestLoadEnvBeatsFile(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("system:\n  listenAddr: \":7070\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("LISTEN_ADDR", ":6060")

	s, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if s.ListenAddr != ":6060" {
		t.Errorf("listen addr = %q, env must win over the file", s.ListenAddr)
	}
}

func TestLoadMissingConfigFile(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("missing config file accepted")
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]struct {
		key, value string
	}{
		"test fraction too large": {"TEST_FRACTION", "0.7"},
		"test fraction zero":      {"TEST_FRACTION", "-1"},
		"cv folds too small":      {"CV_FOLDS", "1"},
		"cv folds too large":      {"CV_FOLDS", "50"},
		"unknown policy":          {"SELECT_POLICY", "newest"},
		"privileged metrics port": {"METRICS_PORT", "80"},
		"fetch timeout too long":  {"FETCH_TIMEOUT", "1h"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Errorf("%s=%s accepted", tc.key, tc.value)
			}
		})
	}
}
