// Package model defines the regression model kinds served by housecast and
// their JSON persistence. Models are fitted once by the trainer, serialized,
// and loaded read-only by the serving paths; they are never mutated after
// training.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Model kind tags used in the persistence envelope and run registry.
const (
	KindLinear = "linear_regression"
	KindTree   = "regression_tree"
	KindForest = "random_forest"
)

// ErrNotTrained is returned when Predict is called on an unfitted model.
var ErrNotTrained = errors.New("model: not trained")

// Regressor produces a point estimate from a scaled feature vector.
type Regressor interface {
	Predict(features []float64) (float64, error)
	Kind() string
}

// Ensemble is a Regressor composed of independently trained members whose
// individual predictions can be aggregated. The confidence estimator
// dispatches on this interface instead of probing model internals.
type Ensemble interface {
	Regressor
	Estimators() []Regressor
}

type envelope struct {
	Kind  string          `json:"kind"`
	Model json.RawMessage `json:"model"`
}

// Marshal serializes a model into a kind-tagged JSON envelope.
func Marshal(r Regressor) ([]byte, error) {
	inner, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("model: marshal %s: %w", r.Kind(), err)
	}
	return json.Marshal(envelope{Kind: r.Kind(), Model: inner})
}

// Unmarshal decodes a model from its kind-tagged JSON envelope.
func Unmarshal(data []byte) (Regressor, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("model: unmarshal envelope: %w", err)
	}

	var r Regressor
	switch env.Kind {
	case KindLinear:
		r = &Linear{}
	case KindTree:
		r = &Tree{}
	case KindForest:
		r = &Forest{}
	default:
		return nil, fmt.Errorf("model: unknown kind %q", env.Kind)
	}

	if err := json.Unmarshal(env.Model, r); err != nil {
		return nil, fmt.Errorf("model: unmarshal %s: %w", env.Kind, err)
	}
	return r, nil
}

// Save writes a model envelope to disk.
func Save(path string, r Regressor) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Load reads a model envelope from disk.
func Load(path string) (Regressor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("model: read %s: %w", path, err)
	}
	return Unmarshal(data)
}
