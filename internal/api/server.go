// Package api exposes the prediction service over HTTP: health and
// prediction endpoints, recent-prediction queries, model info, and a
// websocket stream of served predictions.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"housecast/internal/features"
	"housecast/internal/predict"
	"housecast/internal/registry"
	"housecast/internal/storage"
)

const apiVersion = "1.0.0"

// Config carries the server's listen and CORS settings.
type Config struct {
	Port           int
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// MetricsInterface defines the error counters the serving layer owns.
// The predictor observes its own prediction metrics; these cover
// rejections and failures that never reach it.
type MetricsInterface interface {
	FeatureErrorsInc()
	ErrorsInc()
}

// Server serves predictions from a loaded bundle. A nil predictor is
// allowed: the endpoints answer 503 until artifacts are available,
// mirroring a deployment whose model upload lagged the rollout.
type Server struct {
	predictor *predict.Predictor
	store     *storage.Store
	reg       *registry.Registry
	hub       *Hub
	metrics   MetricsInterface
	srv       *http.Server
	origins   []string
}

// New wires the routes. store, reg, hub, and m may be nil; the
// matching endpoints degrade gracefully.
func New(cfg Config, predictor *predict.Predictor, store *storage.Store, reg *registry.Registry, hub *Hub, m MetricsInterface) *Server {
	s := &Server{
		predictor: predictor,
		store:     store,
		reg:       reg,
		hub:       hub,
		metrics:   m,
		origins:   cfg.AllowedOrigins,
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/predict", s.handlePredict)
	mux.HandleFunc("/predict/confidence", s.handlePredictConfidence)
	mux.HandleFunc("/model/info", s.handleModelInfo)
	mux.HandleFunc("/predictions/recent", s.handleRecent)
	if s.hub != nil {
		mux.HandleFunc("/ws/predictions", s.hub.ServeWS)
	}
	return s.recoverMiddleware(s.corsMiddleware(s.logMiddleware(mux)))
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	log.Info().Str("addr", s.srv.Addr).Msg("starting prediction server")
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// parsePredictBody accepts either the positional {"features": [...]}
// form or the named-field object. The named form requires all eight
// raw fields to be present; a partial object is rejected rather than
// silently predicted over zero-valued gaps.
func parsePredictBody(data []byte) (features.RawFeatures, []float64, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return features.RawFeatures{}, nil, fmt.Errorf("invalid request: %w", err)
	}

	if rawArr, ok := fields["features"]; ok {
		var vec []float64
		if err := json.Unmarshal(rawArr, &vec); err != nil {
			return features.RawFeatures{}, nil, fmt.Errorf("features must be an array of numbers: %w", err)
		}
		raw, err := features.FromVector(vec)
		if err != nil {
			return features.RawFeatures{}, nil, err
		}
		return raw, vec, nil
	}

	var missing []string
	for _, name := range features.Names()[:features.RawCount] {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return features.RawFeatures{}, nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	var raw features.RawFeatures
	if err := json.Unmarshal(data, &raw); err != nil {
		return features.RawFeatures{}, nil, fmt.Errorf("invalid request: %w", err)
	}
	return raw, raw.RawVector(), nil
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "House Price Prediction API is running!",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.predictor == nil {
		writeError(w, http.StatusServiceUnavailable, "Predictor not initialized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"model_loaded": true,
		"model_kind":   s.predictor.ModelKind(),
		"api_version":  apiVersion,
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	raw, received, ok := s.decodePrediction(w, r)
	if !ok {
		return
	}

	value, err := s.predictor.Predict(raw)
	if err != nil {
		log.Error().Err(err).Msg("Prediction failed")
		s.errorsInc()
		writeError(w, http.StatusInternalServerError, "Prediction failed: "+err.Error())
		return
	}

	s.record(raw, value, nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"prediction":        value,
		"status":            "success",
		"features_received": received,
	})
}

func (s *Server) handlePredictConfidence(w http.ResponseWriter, r *http.Request) {
	raw, received, ok := s.decodePrediction(w, r)
	if !ok {
		return
	}

	result, err := s.predictor.PredictWithConfidence(raw)
	if err != nil {
		log.Error().Err(err).Msg("Prediction with confidence failed")
		s.errorsInc()
		writeError(w, http.StatusInternalServerError, "Prediction failed: "+err.Error())
		return
	}

	resp := map[string]any{
		"prediction":        result.Prediction,
		"status":            "success",
		"features_received": received,
	}
	if result.Interval != nil {
		resp["confidence_interval"] = result.Interval
	}
	if result.Warning != "" {
		resp["warning"] = result.Warning
	}

	s.record(raw, result.Prediction, result.Interval)
	writeJSON(w, http.StatusOK, resp)
}

// decodePrediction handles the shared method/availability/body checks
// of the two prediction endpoints.
func (s *Server) decodePrediction(w http.ResponseWriter, r *http.Request) (features.RawFeatures, []float64, bool) {
	var zero features.RawFeatures
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return zero, nil, false
	}
	if s.predictor == nil {
		writeError(w, http.StatusServiceUnavailable, "Predictor not initialized")
		return zero, nil, false
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return zero, nil, false
	}
	raw, received, err := parsePredictBody(data)
	if err != nil {
		if s.metrics != nil {
			s.metrics.FeatureErrorsInc()
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return zero, nil, false
	}
	return raw, received, true
}

// record logs the served prediction and publishes it to the websocket
// stream. Both are best-effort.
func (s *Server) record(raw features.RawFeatures, value float64, interval *predict.ConfidenceInterval) {
	now := time.Now()
	if s.store != nil {
		err := s.store.StorePrediction(storage.PredictionRecord{
			Model:      s.predictor.ModelKind(),
			Timestamp:  now,
			Features:   raw,
			Prediction: value,
			Interval:   interval,
			Source:     "api",
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to log prediction")
		}
	}
	if s.hub != nil {
		s.hub.Publish(PredictionEvent{
			Model:      s.predictor.ModelKind(),
			Prediction: value,
			Timestamp:  now,
			Source:     "api",
		})
	}
}

func (s *Server) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	if s.predictor == nil {
		writeError(w, http.StatusServiceUnavailable, "Predictor not initialized")
		return
	}

	info := map[string]any{
		"model_kind":  s.predictor.ModelKind(),
		"ensemble":    s.predictor.IsEnsemble(),
		"features":    features.Names(),
		"api_version": apiVersion,
	}
	if s.reg != nil {
		if run, ok := s.reg.Active(); ok {
			info["version"] = run.ID
			info["trained_at"] = run.CreatedAt
			info["metrics"] = run.Metrics
			info["params"] = run.Params
		}
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "prediction log not configured")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.store.RecentPredictions(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read prediction log")
		s.errorsInc()
		writeError(w, http.StatusInternalServerError, "failed to read prediction log")
		return
	}
	if records == nil {
		records = []storage.PredictionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"predictions": records,
		"count":       len(records),
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowed := "*"
	if len(s.origins) > 0 {
		allowed = strings.Join(s.origins, ", ")
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("Handler panicked")
				s.errorsInc()
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("Request served")
	})
}

func (s *Server) errorsInc() {
	if s.metrics != nil {
		s.metrics.ErrorsInc()
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
