package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// Forest is a bagged ensemble of regression trees. Each member trains on a
// bootstrap sample with per-split feature subsampling, and the forest
// prediction is the mean of the member predictions.
type Forest struct {
	Trees []*Tree `json:"trees"`
}

// ForestConfig controls forest training.
type ForestConfig struct {
	Trees    int
	MaxDepth int
	MinLeaf  int
	Seed     int64
}

func (c *ForestConfig) normalize() {
	if c.Trees <= 0 {
		c.Trees = 100
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = 10
	}
	if c.MinLeaf <= 0 {
		c.MinLeaf = 2
	}
}

// Fit trains the ensemble. Training is deterministic for a given seed.
func (f *Forest) Fit(features [][]float64, targets []float64, cfg ForestConfig) error {
	if len(features) == 0 || len(targets) == 0 {
		return errors.New("model: empty training data")
	}
	if len(features) != len(targets) {
		return fmt.Errorf("model: %d feature rows vs %d targets", len(features), len(targets))
	}
	cfg.normalize()

	cols := len(features[0])
	featureSample := int(math.Ceil(math.Sqrt(float64(cols))))
	rng := rand.New(rand.NewSource(cfg.Seed))

	treeCfg := TreeConfig{
		MaxDepth:      cfg.MaxDepth,
		MinLeaf:       cfg.MinLeaf,
		FeatureSample: featureSample,
	}

	n := len(features)
	f.Trees = make([]*Tree, cfg.Trees)
	for i := range f.Trees {
		bootF := make([][]float64, n)
		bootT := make([]float64, n)
		for j := 0; j < n; j++ {
			k := rng.Intn(n)
			bootF[j] = features[k]
			bootT[j] = targets[k]
		}

		tree := &Tree{}
		if err := tree.Fit(bootF, bootT, treeCfg, rng); err != nil {
			return fmt.Errorf("model: tree %d: %w", i, err)
		}
		f.Trees[i] = tree
	}
	return nil
}

func (f *Forest) Predict(features []float64) (float64, error) {
	if len(f.Trees) == 0 {
		return 0, ErrNotTrained
	}
	var sum float64
	for i, tree := range f.Trees {
		p, err := tree.Predict(features)
		if err != nil {
			return 0, fmt.Errorf("model: tree %d: %w", i, err)
		}
		sum += p
	}
	return sum / float64(len(f.Trees)), nil
}

// Estimators exposes the trained members for ensemble-aware callers.
func (f *Forest) Estimators() []Regressor {
	out := make([]Regressor, len(f.Trees))
	for i, t := range f.Trees {
		out[i] = t
	}
	return out
}

func (f *Forest) Kind() string { return KindForest }
