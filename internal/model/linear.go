package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Linear is an ordinary least squares regression model.
type Linear struct {
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

// Fit solves the least squares problem via QR factorization of the design
// matrix with an intercept column.
func (l *Linear) Fit(features [][]float64, targets []float64) error {
	if len(features) == 0 || len(targets) == 0 {
		return errors.New("model: empty training data")
	}
	if len(features) != len(targets) {
		return fmt.Errorf("model: %d feature rows vs %d targets", len(features), len(targets))
	}

	rows := len(features)
	cols := len(features[0])
	if rows <= cols {
		return fmt.Errorf("model: need more than %d rows to fit %d coefficients", cols, cols)
	}

	x := mat.NewDense(rows, cols+1, nil)
	for i, row := range features {
		if len(row) != cols {
			return fmt.Errorf("model: row %d has %d columns, expected %d", i, len(row), cols)
		}
		x.Set(i, 0, 1)
		for j, v := range row {
			x.Set(i, j+1, v)
		}
	}
	y := mat.NewDense(rows, 1, targets)

	var qr mat.QR
	qr.Factorize(x)

	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, y); err != nil {
		return fmt.Errorf("model: least squares solve: %w", err)
	}

	l.Intercept = beta.At(0, 0)
	l.Coef = make([]float64, cols)
	for j := 0; j < cols; j++ {
		l.Coef[j] = beta.At(j+1, 0)
	}
	return nil
}

func (l *Linear) Predict(features []float64) (float64, error) {
	if len(l.Coef) == 0 {
		return 0, ErrNotTrained
	}
	if len(features) != len(l.Coef) {
		return 0, fmt.Errorf("model: input has %d columns, fitted on %d", len(features), len(l.Coef))
	}
	out := l.Intercept
	for i, c := range l.Coef {
		out += c * features[i]
	}
	return out, nil
}

func (l *Linear) Kind() string { return KindLinear }
