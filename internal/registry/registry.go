// Package registry tracks training runs and which trained model is
// active. Each run records its hyperparameters and evaluation metrics
// so a bad deployment can be rolled back to the previous run.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RunMetrics holds the held-out evaluation scores of a training run.
type RunMetrics struct {
	RMSE            float64 `json:"rmse"`
	MAE             float64 `json:"mae"`
	R2              float64 `json:"r2"`
	TrainingSamples int     `json:"training_samples"`
	TestSamples     int     `json:"test_samples"`
}

// RunParams holds the hyperparameters a run was trained with.
type RunParams struct {
	ModelKind   string  `json:"model_kind"`
	Trees       int     `json:"trees,omitempty"`
	MaxDepth    int     `json:"max_depth,omitempty"`
	MinLeaf     int     `json:"min_leaf,omitempty"`
	TestSplit   float64 `json:"test_split"`
	Seed        int64   `json:"seed"`
	DatasetPath string  `json:"dataset_path"`
}

// Run is one recorded training run.
type Run struct {
	ID         string     `json:"id"`
	CreatedAt  time.Time  `json:"created_at"`
	ModelPath  string     `json:"model_path"`
	ScalerPath string     `json:"scaler_path"`
	Params     RunParams  `json:"params"`
	Metrics    RunMetrics `json:"metrics"`
	IsActive   bool       `json:"is_active"`
}

// Registry persists training runs as a JSON file next to the model
// artifacts. Runs are kept newest first.
type Registry struct {
	mu       sync.Mutex
	runsFile string
	runs     []Run
}

// New opens (or creates) the run registry under dir.
func New(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create registry dir: %w", err)
	}

	r := &Registry{runsFile: filepath.Join(dir, "training_runs.json")}
	if err := r.load(); err != nil {
		log.Warn().Err(err).Msg("Failed to load training runs, starting fresh")
	}
	return r, nil
}

// Record appends a run and activates it. The previously active run is
// deactivated but kept for rollback.
func (r *Registry) Record(modelPath, scalerPath string, params RunParams, metrics RunMetrics) (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	run := Run{
		ID:         fmt.Sprintf("%s-%03d", now.Format("20060102-150405"), len(r.runs)+1),
		CreatedAt:  now,
		ModelPath:  modelPath,
		ScalerPath: scalerPath,
		Params:     params,
		Metrics:    metrics,
		IsActive:   true,
	}

	for i := range r.runs {
		r.runs[i].IsActive = false
	}
	r.runs = append(r.runs, run)
	sort.Slice(r.runs, func(i, j int) bool {
		return r.runs[i].CreatedAt.After(r.runs[j].CreatedAt)
	})

	return run, r.save()
}

// Activate marks the run with the given ID as active.
func (r *Registry) Activate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activateLocked(id)
}

func (r *Registry) activateLocked(id string) error {
	found := false
	for i := range r.runs {
		if r.runs[i].ID == id {
			r.runs[i].IsActive = true
			found = true
		} else {
			r.runs[i].IsActive = false
		}
	}
	if !found {
		return fmt.Errorf("run %s not found", id)
	}
	return r.save()
}

// Rollback activates the run recorded immediately before the active
// one. Finding the predecessor and activating it happen under one
// lock, so a concurrent Record cannot slip between them.
func (r *Registry) Rollback() (Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.runs) < 2 {
		return Run{}, fmt.Errorf("no previous run available for rollback")
	}

	currentIdx := -1
	for i, run := range r.runs {
		if run.IsActive {
			currentIdx = i
			break
		}
	}
	if currentIdx == -1 || currentIdx+1 >= len(r.runs) {
		return Run{}, fmt.Errorf("no previous run available for rollback")
	}

	target := r.runs[currentIdx+1]
	if err := r.activateLocked(target.ID); err != nil {
		return Run{}, err
	}
	log.Info().Str("run", target.ID).Msg("Rolled back to previous training run")
	return r.runs[currentIdx+1], nil
}

// Active returns the currently active run, if any.
func (r *Registry) Active() (Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, run := range r.runs {
		if run.IsActive {
			return run, true
		}
	}
	return Run{}, false
}

// Runs returns all recorded runs, newest first.
func (r *Registry) Runs() []Run {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Run, len(r.runs))
	copy(out, r.runs)
	return out
}

func (r *Registry) load() error {
	data, err := os.ReadFile(r.runsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &r.runs)
}

func (r *Registry) save() error {
	data, err := json.MarshalIndent(r.runs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.runsFile, data, 0o600)
}
