// Package metrics provides Prometheus metrics collection for the housecast
// prediction service. It defines the counters, gauges, and histograms
// exposed on the metrics endpoint for monitoring predictions, artifact
// loading, and feature engineering health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the prediction service.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal   prometheus.Counter   // Total number of predictions served
	PredictionFailures prometheus.Counter   // Total number of failed predictions
	PredictionLatency  prometheus.Histogram // End-to-end prediction latency in seconds
	PredictionValues   prometheus.Histogram // Distribution of predicted values
	ConfidenceWidth    prometheus.Histogram // Width of returned confidence intervals
	ConfidenceRequests prometheus.Counter   // Predictions requested with a confidence interval

	// Artifact metrics
	ModelLoaded       prometheus.Gauge   // 1 when the model bundle is loaded
	ModelAge          prometheus.Gauge   // Age of the loaded model artifact in seconds
	ArtifactDownloads prometheus.Counter // Artifact downloads from the object store

	// Feature metrics
	FeatureErrors prometheus.Counter // Feature engineering / validation errors

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// This allows for isolated metric collection in tests without affecting
// the global Prometheus registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of predictions served",
		}),
		PredictionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_failures_total",
			Help: "Total number of failed predictions",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "End-to-end prediction latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		PredictionValues: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_values",
			Help:    "Distribution of predicted median house values (hundreds of thousands)",
			Buckets: prometheus.LinearBuckets(0, 0.5, 12),
		}),
		ConfidenceWidth: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "confidence_interval_width",
			Help:    "Width of returned 95% confidence intervals",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		ConfidenceRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "confidence_requests_total",
			Help: "Predictions requested with a confidence interval",
		}),
		ModelLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_loaded",
			Help: "1 when the model bundle is loaded and serving",
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}),
		ArtifactDownloads: factory.NewCounter(prometheus.CounterOpts{
			Name: "artifact_downloads_total",
			Help: "Total number of artifact downloads from the object store",
		}),
		FeatureErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "feature_errors_total",
			Help: "Total number of feature engineering errors",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}
