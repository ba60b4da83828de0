// Package train builds house-price models from a CSV housing dataset:
// feature engineering, scaler fitting, a deterministic train/test
// split, model fitting, held-out evaluation, and artifact persistence.
package train

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"

	"housecast/internal/artifact"
	"housecast/internal/model"
	"housecast/internal/registry"
	"housecast/internal/scaler"
)

// Config carries the trainer's hyperparameters and artifact locations.
type Config struct {
	DatasetPath string
	ModelDir    string
	ModelKey    string
	ScalerKey   string

	Trees     int
	MaxDepth  int
	MinLeaf   int
	TestSplit float64
	Seed      int64
}

// Evaluation holds held-out regression scores for one model.
type Evaluation struct {
	Kind string  `json:"kind"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
}

// Report summarizes a completed training run.
type Report struct {
	Run          registry.Run
	Forest       Evaluation
	Linear       Evaluation
	TrainSamples int
	TestSamples  int
	Duration     time.Duration
}

// Trainer runs the full pipeline. The object-store client and run
// registry are optional; a nil client trains local-only.
type Trainer struct {
	cfg   Config
	store *artifact.Client
	reg   *registry.Registry
}

func New(cfg Config, store *artifact.Client, reg *registry.Registry) *Trainer {
	return &Trainer{cfg: cfg, store: store, reg: reg}
}

// Run trains both model kinds, evaluates them on the held-out split,
// persists the forest and scaler as the serving artifacts, and records
// the run. The forest is the serving model; the linear fit is trained
// as a baseline for the report.
func (t *Trainer) Run(ctx context.Context) (*Report, error) {
	start := time.Now()

	ds, err := LoadCSV(t.cfg.DatasetPath)
	if err != nil {
		return nil, err
	}
	engineered, err := ds.Engineer()
	if err != nil {
		return nil, err
	}
	log.Info().Int("samples", ds.Len()).Int("dropped", ds.Dropped).Msg("Dataset loaded")

	trainIdx, testIdx := splitIndices(ds.Len(), t.cfg.TestSplit, t.cfg.Seed)
	trainX, trainY := gather(engineered, ds.Targets, trainIdx)
	testX, testY := gather(engineered, ds.Targets, testIdx)

	var sc scaler.StandardScaler
	if err := sc.Fit(trainX); err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	scaledTrain, err := sc.TransformMatrix(trainX)
	if err != nil {
		return nil, err
	}
	scaledTest, err := sc.TransformMatrix(testX)
	if err != nil {
		return nil, err
	}

	var forest model.Forest
	forestCfg := model.ForestConfig{
		Trees:    t.cfg.Trees,
		MaxDepth: t.cfg.MaxDepth,
		MinLeaf:  t.cfg.MinLeaf,
		Seed:     t.cfg.Seed,
	}
	if err := forest.Fit(scaledTrain, trainY, forestCfg); err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	var linear model.Linear
	if err := linear.Fit(scaledTrain, trainY); err != nil {
		return nil, fmt.Errorf("fit linear: %w", err)
	}

	forestEval, err := evaluate(&forest, scaledTest, testY)
	if err != nil {
		return nil, err
	}
	linearEval, err := evaluate(&linear, scaledTest, testY)
	if err != nil {
		return nil, err
	}
	log.Info().
		Float64("forest_rmse", forestEval.RMSE).
		Float64("forest_r2", forestEval.R2).
		Float64("linear_rmse", linearEval.RMSE).
		Msg("Held-out evaluation")

	modelPath, scalerPath, err := t.persist(ctx, &forest, &sc)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Forest:       forestEval,
		Linear:       linearEval,
		TrainSamples: len(trainIdx),
		TestSamples:  len(testIdx),
		Duration:     time.Since(start),
	}

	if t.reg != nil {
		params := registry.RunParams{
			ModelKind:   model.KindForest,
			Trees:       t.cfg.Trees,
			MaxDepth:    t.cfg.MaxDepth,
			MinLeaf:     t.cfg.MinLeaf,
			TestSplit:   t.cfg.TestSplit,
			Seed:        t.cfg.Seed,
			DatasetPath: t.cfg.DatasetPath,
		}
		metrics := registry.RunMetrics{
			RMSE:            forestEval.RMSE,
			MAE:             forestEval.MAE,
			R2:              forestEval.R2,
			TrainingSamples: len(trainIdx),
			TestSamples:     len(testIdx),
		}
		run, err := t.reg.Record(modelPath, scalerPath, params, metrics)
		if err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
		report.Run = run
	}

	return report, nil
}

func (t *Trainer) persist(ctx context.Context, forest *model.Forest, sc *scaler.StandardScaler) (string, string, error) {
	modelPath := filepath.Join(t.cfg.ModelDir, filepath.Base(t.cfg.ModelKey))
	scalerPath := filepath.Join(t.cfg.ModelDir, filepath.Base(t.cfg.ScalerKey))

	if err := model.Save(modelPath, forest); err != nil {
		return "", "", fmt.Errorf("save model: %w", err)
	}
	if err := sc.Save(scalerPath); err != nil {
		return "", "", fmt.Errorf("save scaler: %w", err)
	}

	if t.store != nil {
		if err := t.upload(ctx, forest, sc); err != nil {
			return "", "", err
		}
	}
	return modelPath, scalerPath, nil
}

func (t *Trainer) upload(ctx context.Context, forest *model.Forest, sc *scaler.StandardScaler) error {
	if err := t.store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	modelData, err := model.Marshal(forest)
	if err != nil {
		return err
	}
	if err := t.store.Upload(ctx, t.cfg.ModelKey, modelData); err != nil {
		return fmt.Errorf("upload model: %w", err)
	}

	scalerData, err := sc.JSON()
	if err != nil {
		return err
	}
	if err := t.store.Upload(ctx, t.cfg.ScalerKey, scalerData); err != nil {
		return fmt.Errorf("upload scaler: %w", err)
	}
	return nil
}

func evaluate(m model.Regressor, rows [][]float64, targets []float64) (Evaluation, error) {
	preds := make([]float64, len(rows))
	for i, row := range rows {
		p, err := m.Predict(row)
		if err != nil {
			return Evaluation{}, fmt.Errorf("evaluate %s: %w", m.Kind(), err)
		}
		preds[i] = p
	}

	var sqSum, absSum float64
	for i, p := range preds {
		diff := p - targets[i]
		sqSum += diff * diff
		absSum += math.Abs(diff)
	}
	n := float64(len(preds))

	return Evaluation{
		Kind: m.Kind(),
		RMSE: math.Sqrt(sqSum / n),
		MAE:  absSum / n,
		R2:   stat.RSquaredFrom(preds, targets, nil),
	}, nil
}

// splitIndices shuffles sample indices with the run's seed and carves
// off the tail as the test set. Both halves are always non-empty.
func splitIndices(n int, testSplit float64, seed int64) (trainIdx, testIdx []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n)

	testN := int(math.Round(float64(n) * testSplit))
	if testN < 1 {
		testN = 1
	}
	if testN >= n {
		testN = n - 1
	}

	return perm[testN:], perm[:testN]
}

func gather(rows [][]float64, targets []float64, idx []int) ([][]float64, []float64) {
	x := make([][]float64, len(idx))
	y := make([]float64, len(idx))
	for i, j := range idx {
		x[i] = rows[j]
		y[i] = targets[j]
	}
	return x, y
}
