// Package scaler implements the per-column standardization transform that
// sits between feature engineering and the model. Statistics are captured
// once during training and then applied read-only by every serving path, so
// a value scaled at inference time is numerically identical to the same
// value scaled at training time.
package scaler

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/stat"
)

// ErrNotFitted is returned when Transform is called before Fit or Load.
var ErrNotFitted = errors.New("scaler: not fitted")

// StandardScaler standardizes columns to zero mean and unit variance using
// statistics stored at fit time. It is immutable after fitting and safe for
// concurrent readers.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Fit computes and stores per-column mean and population standard deviation
// from the training matrix. Columns with zero variance get std 1 so that
// transforming them is the identity shift, matching common scaler behavior.
func (s *StandardScaler) Fit(matrix [][]float64) error {
	if len(matrix) == 0 {
		return errors.New("scaler: empty training matrix")
	}
	cols := len(matrix[0])
	if cols == 0 {
		return errors.New("scaler: training matrix has no columns")
	}
	for i, row := range matrix {
		if len(row) != cols {
			return fmt.Errorf("scaler: row %d has %d columns, expected %d", i, len(row), cols)
		}
	}

	mean := make([]float64, cols)
	std := make([]float64, cols)
	col := make([]float64, len(matrix))

	for c := 0; c < cols; c++ {
		for r := range matrix {
			col[r] = matrix[r][c]
		}
		m := stat.Mean(col, nil)

		var ss float64
		for _, v := range col {
			d := v - m
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(len(col)))
		if sd == 0 {
			sd = 1
		}

		mean[c] = m
		std[c] = sd
	}

	s.Mean = mean
	s.Std = std
	return nil
}

// Fitted reports whether the scaler carries statistics.
func (s *StandardScaler) Fitted() bool {
	return len(s.Mean) > 0 && len(s.Mean) == len(s.Std)
}

// Columns returns the number of columns the scaler was fitted on.
func (s *StandardScaler) Columns() int {
	return len(s.Mean)
}

// Transform applies (x - mean) / std per column using the stored statistics.
// The input is not modified.
func (s *StandardScaler) Transform(v []float64) ([]float64, error) {
	if !s.Fitted() {
		return nil, ErrNotFitted
	}
	if len(v) != len(s.Mean) {
		return nil, fmt.Errorf("scaler: input has %d columns, fitted on %d", len(v), len(s.Mean))
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = (x - s.Mean[i]) / s.Std[i]
	}
	return out, nil
}

// TransformMatrix applies Transform to every row.
func (s *StandardScaler) TransformMatrix(matrix [][]float64) ([][]float64, error) {
	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		t, err := s.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("scaler: row %d: %w", i, err)
		}
		out[i] = t
	}
	return out, nil
}

// JSON encodes the fitted statistics.
func (s *StandardScaler) JSON() ([]byte, error) {
	if !s.Fitted() {
		return nil, ErrNotFitted
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("scaler: marshal: %w", err)
	}
	return data, nil
}

// Save persists the fitted statistics as JSON.
func (s *StandardScaler) Save(path string) error {
	data, err := s.JSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Load restores a scaler persisted with Save.
func Load(path string) (*StandardScaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scaler: read %s: %w", path, err)
	}
	return FromJSON(data)
}

// FromJSON decodes a scaler from its JSON representation.
func FromJSON(data []byte) (*StandardScaler, error) {
	var s StandardScaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("scaler: unmarshal: %w", err)
	}
	if !s.Fitted() {
		return nil, fmt.Errorf("scaler: persisted statistics are incomplete (%d means, %d stds)", len(s.Mean), len(s.Std))
	}
	return &s, nil
}
