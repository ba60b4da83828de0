package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.ServerPort != 8000 {
					t.Errorf("expected default ServerPort 8000, got %d", settings.ServerPort)
				}
				if settings.MetricsPort != 9090 {
					t.Errorf("expected default MetricsPort 9090, got %d", settings.MetricsPort)
				}
				if settings.RequestTimeout != 30*time.Second {
					t.Errorf("expected default RequestTimeout 30s, got %v", settings.RequestTimeout)
				}
				if settings.StoreBucket != "ml-model-artifacts" {
					t.Errorf("expected default bucket, got %s", settings.StoreBucket)
				}
				if settings.ModelKey != "models/house_price_random_forest_model.json" {
					t.Errorf("unexpected default model key %s", settings.ModelKey)
				}
				if settings.Training.Trees != 100 || settings.Training.MaxDepth != 10 {
					t.Errorf("unexpected training defaults %+v", settings.Training)
				}
				if len(settings.AllowedOrigins) != 1 || settings.AllowedOrigins[0] != "*" {
					t.Errorf("expected default origins [*], got %v", settings.AllowedOrigins)
				}
			},
		},
		{
			name: "custom values",
			envVars: map[string]string{
				"SERVER_PORT":      "8080",
				"METRICS_PORT":     "9091",
				"REQUEST_TIMEOUT":  "10s",
				"AWS_ENDPOINT_URL": "http://localhost:4566",
				"MODEL_BUCKET":     "artifacts",
				"TRAIN_TREES":      "25",
				"TRAIN_TEST_SPLIT": "0.3",
				"ALLOWED_ORIGINS":  "https://a.example,https://b.example",
			},
			wantErr: false,
			validate: func(t *testing.T, settings Settings) {
				if settings.ServerPort != 8080 {
					t.Errorf("expected ServerPort 8080, got %d", settings.ServerPort)
				}
				if settings.RequestTimeout != 10*time.Second {
					t.Errorf("expected RequestTimeout 10s, got %v", settings.RequestTimeout)
				}
				if settings.StoreEndpoint != "http://localhost:4566" {
					t.Errorf("expected endpoint override, got %s", settings.StoreEndpoint)
				}
				if settings.Training.Trees != 25 {
					t.Errorf("expected 25 trees, got %d", settings.Training.Trees)
				}
				if settings.Training.TestSplit != 0.3 {
					t.Errorf("expected test split 0.3, got %f", settings.Training.TestSplit)
				}
				if len(settings.AllowedOrigins) != 2 {
					t.Errorf("expected 2 origins, got %v", settings.AllowedOrigins)
				}
			},
		},
		{
			name: "invalid port",
			envVars: map[string]string{
				"SERVER_PORT": "70000",
			},
			wantErr: true,
		},
		{
			name: "colliding ports",
			envVars: map[string]string{
				"SERVER_PORT":  "9090",
				"METRICS_PORT": "9090",
			},
			wantErr: true,
		},
		{
			name: "invalid test split",
			envVars: map[string]string{
				"TRAIN_TEST_SPLIT": "1.5",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Unsetenv("CONFIG_FILE")
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			settings, err := Load()
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
server:
  port: 8500
  requestTimeout: 15s
  allowedOrigins:
    - "https://dashboard.example"
store:
  endpoint: "http://localhost:4566"
  bucket: "artifacts"
  modelKey: "models/model.json"
  scalerKey: "models/scaler.json"
training:
  trees: 50
  maxDepth: 8
  minLeaf: 3
  testSplit: 0.25
  seed: 7
system:
  metricsPort: 9191
  modelDir: "out/models"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)

	settings, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if settings.ServerPort != 8500 {
		t.Errorf("expected ServerPort 8500, got %d", settings.ServerPort)
	}
	if settings.RequestTimeout != 15*time.Second {
		t.Errorf("expected RequestTimeout 15s, got %v", settings.RequestTimeout)
	}
	if settings.MetricsPort != 9191 {
		t.Errorf("expected MetricsPort 9191, got %d", settings.MetricsPort)
	}
	if settings.ModelDir != "out/models" {
		t.Errorf("expected ModelDir out/models, got %s", settings.ModelDir)
	}
	if settings.Training.Seed != 7 {
		t.Errorf("expected seed 7, got %d", settings.Training.Seed)
	}
	if len(settings.AllowedOrigins) != 1 || settings.AllowedOrigins[0] != "https://dashboard.example" {
		t.Errorf("unexpected origins %v", settings.AllowedOrigins)
	}
}

func TestLoadFromYAML_EnvOverride(t *testing.T) {
	yamlContent := `
server:
  port: 8500
  requestTimeout: 15s
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_PORT", "8600")
	t.Setenv("REQUEST_TIMEOUT", "45s")

	settings, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.ServerPort != 8600 {
		t.Errorf("env override should win: expected 8600, got %d", settings.ServerPort)
	}
	if settings.RequestTimeout != 45*time.Second {
		t.Errorf("env override should win: expected RequestTimeout 45s, got %v", settings.RequestTimeout)
	}
}

func TestLoadFromYAML_Missing(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.yaml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing config file")
	}
}
