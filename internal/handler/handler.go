// Package handler serves predictions behind an API-gateway-style
// function runtime: a single entry point receiving a routed event and
// returning a statusCode/headers/body response. The artifact bundle is
// resolved once per process and reused across invocations.
package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"housecast/internal/artifact"
	"housecast/internal/features"
	"housecast/internal/predict"
)

// Event is the gateway-proxy request shape.
type Event struct {
	HTTPMethod string            `json:"httpMethod"`
	Path       string            `json:"path"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       string            `json:"body,omitempty"`
}

// Response is the gateway-proxy response shape.
type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

// Handler resolves its predictor lazily through the artifact loader so
// a cold start only pays for the download once.
type Handler struct {
	loader  *artifact.Loader
	metrics predict.MetricsInterface
}

func New(loader *artifact.Loader, m predict.MetricsInterface) *Handler {
	return &Handler{loader: loader, metrics: m}
}

type predictBody struct {
	Features []float64 `json:"features"`
}

// Handle routes a gateway event. Every response carries CORS headers,
// OPTIONS short-circuits as a preflight, and unknown routes return the
// endpoint catalog.
func (h *Handler) Handle(ctx context.Context, event Event) Response {
	method := event.HTTPMethod
	if method == "" {
		method = "GET"
	}
	path := event.Path
	if path == "" {
		path = "/"
	}

	if method == "OPTIONS" {
		return respond(200, map[string]any{"message": "OK"})
	}

	if path == "/health" && method == "GET" {
		return h.health(ctx)
	}
	if (path == "/predict" || path == "/predict/confidence") && method == "POST" {
		return h.predict(ctx, event, path == "/predict/confidence")
	}

	return respond(404, map[string]any{
		"error":  "Not found",
		"path":   path,
		"method": method,
		"available_endpoints": map[string]string{
			"GET /health":              "Health check",
			"POST /predict":            "Single prediction",
			"POST /predict/confidence": "Prediction with confidence interval",
		},
	})
}

func (h *Handler) health(ctx context.Context) Response {
	if _, err := h.predictor(ctx); err != nil {
		return respond(503, map[string]any{
			"status":       "unhealthy",
			"model_loaded": false,
			"error":        err.Error(),
		})
	}
	return respond(200, map[string]any{
		"status":       "healthy",
		"model_loaded": true,
		"message":      "ML Inference service is running",
	})
}

func (h *Handler) predict(ctx context.Context, event Event, withConfidence bool) Response {
	if event.Body == "" {
		return respond(400, map[string]any{"error": "Missing request body"})
	}

	var body map[string]json.RawMessage
	if err := json.Unmarshal([]byte(event.Body), &body); err != nil {
		return respond(400, map[string]any{"error": "Invalid JSON in request body"})
	}
	rawFeatures, ok := body["features"]
	if !ok {
		return respond(400, map[string]any{
			"error":           "Missing features in request body",
			"expected_format": map[string]any{"features": features.Names()[:features.RawCount]},
		})
	}

	var vec []float64
	if err := json.Unmarshal(rawFeatures, &vec); err != nil {
		return respond(400, map[string]any{
			"error":    "Features must be a list of 8 numbers",
			"received": "not a list",
		})
	}
	if len(vec) != features.RawCount {
		return respond(400, map[string]any{
			"error":    "Features must be a list of 8 numbers",
			"received": len(vec),
		})
	}

	predictor, err := h.predictor(ctx)
	if err != nil {
		return respond(500, map[string]any{
			"error":   "Internal server error during prediction",
			"details": err.Error(),
		})
	}

	raw, err := features.FromVector(vec)
	if err != nil {
		return respond(400, map[string]any{"error": err.Error()})
	}

	var result predict.Result
	if withConfidence {
		result, err = predictor.PredictWithConfidence(raw)
	} else {
		result.Prediction, err = predictor.Predict(raw)
	}
	if err != nil {
		log.Error().Err(err).Msg("Prediction error")
		return respond(500, map[string]any{
			"error":   "Internal server error during prediction",
			"details": err.Error(),
		})
	}

	responseData := map[string]any{
		"prediction":             result.Prediction,
		"prediction_description": dollarDescription(result.Prediction),
		"features_received":      vec,
	}
	if withConfidence {
		if result.Interval != nil {
			responseData["confidence_interval"] = result.Interval
			responseData["confidence_interval_description"] = fmt.Sprintf(
				"95%% confidence: $%.2f - $%.2f",
				result.Interval.LowerBound*100000,
				result.Interval.UpperBound*100000,
			)
		} else {
			responseData["warning"] = predict.WarnNoConfidence
		}
	}
	return respond(200, responseData)
}

func (h *Handler) predictor(ctx context.Context) (*predict.Predictor, error) {
	bundle, err := h.loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	return predict.New(bundle, h.metrics)
}

// dollarDescription renders the model output, which is in units of
// $100,000, as a dollar figure.
func dollarDescription(prediction float64) string {
	return fmt.Sprintf("Predicted median house value: $%.2f", prediction*100000)
}

func respond(statusCode int, body map[string]any) Response {
	data, err := json.Marshal(body)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode handler response")
		data = []byte(`{"error":"Internal server error"}`)
		statusCode = 500
	}
	return Response{
		StatusCode: statusCode,
		Headers: map[string]string{
			"Content-Type":                 "application/json",
			"Access-Control-Allow-Origin":  "*",
			"Access-Control-Allow-Headers": "Content-Type,Authorization",
			"Access-Control-Allow-Methods": "GET,POST,OPTIONS",
		},
		Body: string(data),
	}
}
