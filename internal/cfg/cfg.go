// Package cfg loads service configuration from a YAML file with environment
// overrides, falling back to pure environment variables when no file is
// given. Defaults target a local LocalStack/MinIO setup.
package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	ServerPort     int
	MetricsPort    int
	RequestTimeout time.Duration
	AllowedOrigins []string

	DataPath    string // bbolt directory, optional
	DatasetPath string // training CSV
	ModelDir    string // local artifact directory

	ModelKey  string // object key of the serving model
	ScalerKey string // object key of the fitted scaler

	StoreEndpoint string // S3-compatible endpoint, empty disables remote artifacts
	StoreBucket   string
	StoreAccess   string
	StoreSecret   string
	StoreRegion   string

	Training TrainingConfig
}

type TrainingConfig struct {
	Trees     int     `yaml:"trees"`
	MaxDepth  int     `yaml:"maxDepth"`
	MinLeaf   int     `yaml:"minLeaf"`
	TestSplit float64 `yaml:"testSplit"`
	Seed      int64   `yaml:"seed"`
}

type ConfigFile struct {
	Server struct {
		Port           int      `yaml:"port"`
		RequestTimeout string   `yaml:"requestTimeout"`
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"server"`

	Store struct {
		Endpoint  string `yaml:"endpoint"`
		Bucket    string `yaml:"bucket"`
		AccessKey string `yaml:"accessKey"`
		SecretKey string `yaml:"secretKey"`
		Region    string `yaml:"region"`
		ModelKey  string `yaml:"modelKey"`
		ScalerKey string `yaml:"scalerKey"`
	} `yaml:"store"`

	Training TrainingConfig `yaml:"training"`

	System struct {
		DataPath    string `yaml:"dataPath"`
		DatasetPath string `yaml:"datasetPath"`
		ModelDir    string `yaml:"modelDir"`
		MetricsPort int    `yaml:"metricsPort"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	fileTimeout := 30 * time.Second
	if d, err := time.ParseDuration(config.Server.RequestTimeout); err == nil {
		fileTimeout = d
	}
	requestTimeout := getDurationOrDefault("REQUEST_TIMEOUT", fileTimeout)

	settings := Settings{
		ServerPort:     getIntFromEnvOrConfig("SERVER_PORT", config.Server.Port, 8000),
		MetricsPort:    getIntFromEnvOrConfig("METRICS_PORT", config.System.MetricsPort, 9090),
		RequestTimeout: requestTimeout,
		AllowedOrigins: originsFromEnvOrConfig(config.Server.AllowedOrigins),
		DataPath:       getEnvOrDefault("DATA_PATH", config.System.DataPath),
		DatasetPath:    getEnvOrDefault("DATASET_PATH", config.System.DatasetPath),
		ModelDir:       stringOrDefault(getEnvOrDefault("MODEL_DIR", config.System.ModelDir), "models"),
		ModelKey:       stringOrDefault(getEnvOrDefault("MODEL_KEY", config.Store.ModelKey), "models/house_price_random_forest_model.json"),
		ScalerKey:      stringOrDefault(getEnvOrDefault("SCALER_KEY", config.Store.ScalerKey), "models/scaler.json"),
		StoreEndpoint:  getEnvOrDefault("AWS_ENDPOINT_URL", config.Store.Endpoint),
		StoreBucket:    stringOrDefault(getEnvOrDefault("MODEL_BUCKET", config.Store.Bucket), "ml-model-artifacts"),
		StoreAccess:    stringOrDefault(getEnvOrDefault("AWS_ACCESS_KEY_ID", config.Store.AccessKey), "test"),
		StoreSecret:    stringOrDefault(getEnvOrDefault("AWS_SECRET_ACCESS_KEY", config.Store.SecretKey), "test"),
		StoreRegion:    stringOrDefault(getEnvOrDefault("AWS_DEFAULT_REGION", config.Store.Region), "us-east-1"),
		Training:       trainingWithDefaults(config.Training),
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		ServerPort:     getIntOrDefault("SERVER_PORT", 8000),
		MetricsPort:    getIntOrDefault("METRICS_PORT", 9090),
		RequestTimeout: getDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		AllowedOrigins: splitOrDefault(os.Getenv("ALLOWED_ORIGINS"), []string{"*"}),
		DataPath:       os.Getenv("DATA_PATH"), // optional
		DatasetPath:    os.Getenv("DATASET_PATH"),
		ModelDir:       getEnvOrDefault("MODEL_DIR", "models"),
		ModelKey:       getEnvOrDefault("MODEL_KEY", "models/house_price_random_forest_model.json"),
		ScalerKey:      getEnvOrDefault("SCALER_KEY", "models/scaler.json"),
		StoreEndpoint:  os.Getenv("AWS_ENDPOINT_URL"), // empty disables remote artifacts
		StoreBucket:    getEnvOrDefault("MODEL_BUCKET", "ml-model-artifacts"),
		StoreAccess:    getEnvOrDefault("AWS_ACCESS_KEY_ID", "test"),
		StoreSecret:    getEnvOrDefault("AWS_SECRET_ACCESS_KEY", "test"),
		StoreRegion:    getEnvOrDefault("AWS_DEFAULT_REGION", "us-east-1"),
		Training: TrainingConfig{
			Trees:     getIntOrDefault("TRAIN_TREES", 100),
			MaxDepth:  getIntOrDefault("TRAIN_MAX_DEPTH", 10),
			MinLeaf:   getIntOrDefault("TRAIN_MIN_LEAF", 2),
			TestSplit: getFloatOrDefault("TRAIN_TEST_SPLIT", 0.2),
			Seed:      int64(getIntOrDefault("TRAIN_SEED", 42)),
		},
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

func trainingWithDefaults(t TrainingConfig) TrainingConfig {
	if t.Trees == 0 {
		t.Trees = getIntOrDefault("TRAIN_TREES", 100)
	}
	if t.MaxDepth == 0 {
		t.MaxDepth = getIntOrDefault("TRAIN_MAX_DEPTH", 10)
	}
	if t.MinLeaf == 0 {
		t.MinLeaf = getIntOrDefault("TRAIN_MIN_LEAF", 2)
	}
	if t.TestSplit == 0 {
		t.TestSplit = getFloatOrDefault("TRAIN_TEST_SPLIT", 0.2)
	}
	if t.Seed == 0 {
		t.Seed = int64(getIntOrDefault("TRAIN_SEED", 42))
	}
	return t
}

func originsFromEnvOrConfig(configOrigins []string) []string {
	if env := os.Getenv("ALLOWED_ORIGINS"); env != "" {
		return strings.Split(env, ",")
	}
	if len(configOrigins) > 0 {
		return configOrigins
	}
	return []string{"*"}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func stringOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
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

func getIntFromEnvOrConfig(key string, configValue, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return defaultValue
}

func splitOrDefault(v string, def []string) []string {
	if v == "" {
		return def
	}
	return strings.Split(v, ",")
}

// validateSettings performs validation of configuration values.
func validateSettings(settings *Settings) error {
	if settings.ServerPort < 1 || settings.ServerPort > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", settings.ServerPort)
	}
	if settings.MetricsPort < 1 || settings.MetricsPort > 65535 {
		return fmt.Errorf("metrics port must be between 1 and 65535, got %d", settings.MetricsPort)
	}
	if settings.ServerPort == settings.MetricsPort {
		return fmt.Errorf("server and metrics ports must differ, both are %d", settings.ServerPort)
	}
	if settings.RequestTimeout < time.Second || settings.RequestTimeout > 5*time.Minute {
		return fmt.Errorf("request timeout must be between 1s and 5m, got %v", settings.RequestTimeout)
	}
	if settings.ModelKey == "" || settings.ScalerKey == "" {
		return fmt.Errorf("model and scaler keys cannot be empty")
	}
	if settings.StoreEndpoint != "" && settings.StoreBucket == "" {
		return fmt.Errorf("store bucket is required when an endpoint is configured")
	}

	t := settings.Training
	if t.Trees < 1 || t.Trees > 1000 {
		return fmt.Errorf("training trees must be between 1 and 1000, got %d", t.Trees)
	}
	if t.MaxDepth < 1 || t.MaxDepth > 64 {
		return fmt.Errorf("training max depth must be between 1 and 64, got %d", t.MaxDepth)
	}
	if t.MinLeaf < 1 || t.MinLeaf > 1000 {
		return fmt.Errorf("training min leaf must be between 1 and 1000, got %d", t.MinLeaf)
	}
	if t.TestSplit <= 0 || t.TestSplit >= 1 {
		return fmt.Errorf("test split must be between 0 and 1 exclusive, got %f", t.TestSplit)
	}
	return nil
}
