// Package predict composes feature engineering, the fitted scaler, and a
// trained model into the prediction pipeline shared by the HTTP API and the
// function handler. The loaded Bundle is immutable, so a single Predictor is
// safe for concurrent requests.
package predict

import (
	"errors"
	"fmt"
	"math"
	"time"

	"housecast/internal/features"
	"housecast/internal/model"
	"housecast/internal/scaler"
)

// zScore95 is the normal-approximation multiplier for a 95% interval.
const zScore95 = 1.96

// WarnNoConfidence is returned in place of an interval when the loaded model
// has no enumerable sub-estimators. This is a degraded response, not an error.
const WarnNoConfidence = "Confidence interval not available for non-ensemble models"

// ErrMissingArtifact is returned when the predictor is built without a
// loaded scaler or model.
var ErrMissingArtifact = errors.New("predict: scaler or model not loaded")

// MetricsInterface defines the metrics methods the predictor needs.
type MetricsInterface interface {
	PredictionsInc()
	PredictionFailuresInc()
	PredictionLatencyObserve(time.Duration)
	PredictionValueObserve(float64)
	ConfidenceWidthObserve(float64)
	ConfidenceRequestsInc()
}

// Bundle is the immutable pair of fitted artifacts established at process
// start. It is never mutated after construction.
type Bundle struct {
	Scaler *scaler.StandardScaler
	Model  model.Regressor
}

// ConfidenceInterval is a symmetric 95% interval around the ensemble mean,
// derived from the spread of per-member predictions.
type ConfidenceInterval struct {
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
	StdDev     float64 `json:"std_dev"`
}

// Result carries a point estimate plus an optional interval. Warning is set
// instead of Interval when the model lacks ensemble capability.
type Result struct {
	Prediction float64
	Interval   *ConfidenceInterval
	Warning    string
}

// Predictor runs raw features through engineering, scaling, and the model.
type Predictor struct {
	bundle  Bundle
	metrics MetricsInterface
}

// New builds a Predictor around a loaded bundle. It fails fast when an
// artifact is missing or the scaler does not match the engineered layout, so
// a misconfigured deployment is caught at startup rather than per request.
func New(bundle Bundle, m MetricsInterface) (*Predictor, error) {
	if bundle.Scaler == nil || bundle.Model == nil {
		return nil, ErrMissingArtifact
	}
	if !bundle.Scaler.Fitted() {
		return nil, fmt.Errorf("predict: %w", scaler.ErrNotFitted)
	}
	if got := bundle.Scaler.Columns(); got != features.EngineeredCount {
		return nil, fmt.Errorf("predict: scaler fitted on %d columns, pipeline produces %d", got, features.EngineeredCount)
	}
	return &Predictor{bundle: bundle, metrics: m}, nil
}

// ModelKind returns the kind tag of the loaded model.
func (p *Predictor) ModelKind() string {
	return p.bundle.Model.Kind()
}

// IsEnsemble reports whether the loaded model supports confidence intervals.
func (p *Predictor) IsEnsemble() bool {
	_, ok := p.bundle.Model.(model.Ensemble)
	return ok
}

// Predict returns a point estimate for a single housing block.
func (p *Predictor) Predict(raw features.RawFeatures) (float64, error) {
	start := time.Now()

	scaled, err := p.scale(raw)
	if err != nil {
		p.observeFailure()
		return 0, err
	}

	estimate, err := p.bundle.Model.Predict(scaled)
	if err != nil {
		p.observeFailure()
		return 0, fmt.Errorf("predict: model: %w", err)
	}

	p.observeSuccess(estimate, time.Since(start))
	return estimate, nil
}

// PredictBatch predicts each row independently; any failing row fails the
// batch with no partial result.
func (p *Predictor) PredictBatch(rows []features.RawFeatures) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, raw := range rows {
		estimate, err := p.Predict(raw)
		if err != nil {
			return nil, fmt.Errorf("predict: row %d: %w", i, err)
		}
		out[i] = estimate
	}
	return out, nil
}

// PredictWithConfidence returns the point estimate plus a 95% interval when
// the model is an ensemble. Every member sees the identically-scaled vector;
// the point estimate is the member mean and the interval is mean ± 1.96·std
// using the population standard deviation of the member predictions.
func (p *Predictor) PredictWithConfidence(raw features.RawFeatures) (Result, error) {
	if p.metrics != nil {
		p.metrics.ConfidenceRequestsInc()
	}

	ensemble, ok := p.bundle.Model.(model.Ensemble)
	if !ok {
		estimate, err := p.Predict(raw)
		if err != nil {
			return Result{}, err
		}
		return Result{Prediction: estimate, Warning: WarnNoConfidence}, nil
	}

	start := time.Now()

	scaled, err := p.scale(raw)
	if err != nil {
		p.observeFailure()
		return Result{}, err
	}

	members := ensemble.Estimators()
	preds := make([]float64, len(members))
	for i, m := range members {
		preds[i], err = m.Predict(scaled)
		if err != nil {
			p.observeFailure()
			return Result{}, fmt.Errorf("predict: estimator %d: %w", i, err)
		}
	}

	mean, std := meanStd(preds)
	margin := zScore95 * std
	interval := &ConfidenceInterval{
		LowerBound: mean - margin,
		UpperBound: mean + margin,
		StdDev:     std,
	}

	p.observeSuccess(mean, time.Since(start))
	if p.metrics != nil {
		p.metrics.ConfidenceWidthObserve(interval.UpperBound - interval.LowerBound)
	}

	return Result{Prediction: mean, Interval: interval}, nil
}

func (p *Predictor) scale(raw features.RawFeatures) ([]float64, error) {
	scaled, err := p.bundle.Scaler.Transform(raw.Vector())
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	return scaled, nil
}

func (p *Predictor) observeSuccess(value float64, elapsed time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.PredictionsInc()
	p.metrics.PredictionValueObserve(value)
	p.metrics.PredictionLatencyObserve(elapsed)
}

func (p *Predictor) observeFailure() {
	if p.metrics != nil {
		p.metrics.PredictionFailuresInc()
	}
}

// meanStd returns the mean and population standard deviation.
func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(values)))
}
