package metrics

import "time"

// Wrapper adapts Metrics to the narrow observer interface the predictor
// consumes, keeping prometheus types out of the prediction packages.
type Wrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *Wrapper {
	return &Wrapper{m: m}
}

func (w *Wrapper) PredictionsInc() {
	w.m.PredictionsTotal.Inc()
}

func (w *Wrapper) PredictionFailuresInc() {
	w.m.PredictionFailures.Inc()
}

func (w *Wrapper) PredictionLatencyObserve(d time.Duration) {
	w.m.PredictionLatency.Observe(d.Seconds())
}

func (w *Wrapper) PredictionValueObserve(v float64) {
	w.m.PredictionValues.Observe(v)
}

func (w *Wrapper) ConfidenceWidthObserve(width float64) {
	w.m.ConfidenceWidth.Observe(width)
}

func (w *Wrapper) ConfidenceRequestsInc() {
	w.m.ConfidenceRequests.Inc()
}

func (w *Wrapper) ModelLoadedSet(loaded bool) {
	if loaded {
		w.m.ModelLoaded.Set(1)
	} else {
		w.m.ModelLoaded.Set(0)
	}
}

func (w *Wrapper) ModelAgeSet(seconds float64) {
	w.m.ModelAge.Set(seconds)
}

func (w *Wrapper) ArtifactDownloadsInc() {
	w.m.ArtifactDownloads.Inc()
}

func (w *Wrapper) FeatureErrorsInc() {
	w.m.FeatureErrors.Inc()
}

func (w *Wrapper) ErrorsInc() {
	w.m.ErrorsTotal.Inc()
}
