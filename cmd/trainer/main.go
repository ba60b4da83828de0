package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"housecast/internal/artifact"
	"housecast/internal/cfg"
	"housecast/internal/registry"
	"housecast/internal/train"
)

func main() {
	var (
		datasetPath = flag.String("dataset", "", "Path to housing CSV (overrides config)")
		modelDir    = flag.String("model-dir", "", "Local artifact directory (overrides config)")
		trees       = flag.Int("trees", 0, "Forest size (overrides config)")
		maxDepth    = flag.Int("max-depth", 0, "Tree depth limit (overrides config)")
		seed        = flag.Int64("seed", 0, "Split and bootstrap seed (overrides config)")
		skipUpload  = flag.Bool("skip-upload", false, "Train locally without uploading artifacts")
		logLevel    = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	)
	flag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg(".env load failed")
	}

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if *datasetPath != "" {
		config.DatasetPath = *datasetPath
	}
	if *modelDir != "" {
		config.ModelDir = *modelDir
	}
	if *trees > 0 {
		config.Training.Trees = *trees
	}
	if *maxDepth > 0 {
		config.Training.MaxDepth = *maxDepth
	}
	if *seed != 0 {
		config.Training.Seed = *seed
	}
	if config.DatasetPath == "" {
		log.Fatal().Msg("No dataset configured, pass -dataset or set DATASET_PATH")
	}
	if err := os.MkdirAll(config.ModelDir, 0o750); err != nil {
		log.Fatal().Err(err).Msg("Failed to create model directory")
	}

	var store *artifact.Client
	if config.StoreEndpoint != "" && !*skipUpload {
		store = artifact.NewClient(config.StoreEndpoint, config.StoreBucket,
			config.StoreAccess, config.StoreSecret, config.StoreRegion, config.RequestTimeout)
	}

	reg, err := registry.New(config.ModelDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open run registry")
	}

	trainer := train.New(train.Config{
		DatasetPath: config.DatasetPath,
		ModelDir:    config.ModelDir,
		ModelKey:    config.ModelKey,
		ScalerKey:   config.ScalerKey,
		Trees:       config.Training.Trees,
		MaxDepth:    config.Training.MaxDepth,
		MinLeaf:     config.Training.MinLeaf,
		TestSplit:   config.Training.TestSplit,
		Seed:        config.Training.Seed,
	}, store, reg)

	log.Info().
		Str("dataset", config.DatasetPath).
		Int("trees", config.Training.Trees).
		Int("max_depth", config.Training.MaxDepth).
		Int64("seed", config.Training.Seed).
		Msg("Starting training run")

	report, err := trainer.Run(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Training failed")
	}

	printSummary(report)
}

func printSummary(report *train.Report) {
	fmt.Println("=== Training Run ===")
	if report.Run.ID != "" {
		fmt.Printf("Run ID:        %s\n", report.Run.ID)
	}
	fmt.Printf("Train samples: %d\n", report.TrainSamples)
	fmt.Printf("Test samples:  %d\n", report.TestSamples)
	fmt.Printf("Duration:      %s\n", report.Duration)
	fmt.Println("--- Held-out evaluation ---")
	for _, eval := range []train.Evaluation{report.Forest, report.Linear} {
		fmt.Printf("%-18s RMSE=%.4f  MAE=%.4f  R2=%.4f\n", eval.Kind, eval.RMSE, eval.MAE, eval.R2)
	}
}
