package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housecast/internal/artifact"
	"housecast/internal/features"
	"housecast/internal/model"
	"housecast/internal/predict"
	"housecast/internal/scaler"
)

const featuresBody = `{"features":[8.3252,41.0,6.984,1.024,322.0,2.555,37.88,-122.23]}`

// newHandler writes serving artifacts to a local model dir and builds
// a handler whose loader resolves them without an object store.
func newHandler(t *testing.T, ensemble bool) *Handler {
	t.Helper()

	matrix := make([][]float64, 30)
	targets := make([]float64, 30)
	for i := range matrix {
		row := make([]float64, features.EngineeredCount)
		for j := range row {
			row[j] = float64((i*7+j*3)%13) + float64(j)
		}
		matrix[i] = row
		targets[i] = 1 + float64(i%5)
	}

	var s scaler.StandardScaler
	require.NoError(t, s.Fit(matrix))

	var m model.Regressor
	if ensemble {
		var forest model.Forest
		require.NoError(t, forest.Fit(matrix, targets, model.ForestConfig{Trees: 5, MaxDepth: 4, MinLeaf: 2, Seed: 3}))
		m = &forest
	} else {
		var linear model.Linear
		require.NoError(t, linear.Fit(matrix, targets))
		m = &linear
	}

	dir := t.TempDir()
	require.NoError(t, s.Save(filepath.Join(dir, "scaler.json")))
	require.NoError(t, model.Save(filepath.Join(dir, "model.json"), m))

	loader := artifact.NewLoader(nil, dir, "models/model.json", "models/scaler.json", nil)
	return New(loader, nil)
}

func decodeBody(t *testing.T, resp Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &body))
	return body
}

func assertCORS(t *testing.T, resp Response) {
	t.Helper()
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
	assert.Contains(t, resp.Headers["Access-Control-Allow-Methods"], "OPTIONS")
}

func TestHandle_Preflight(t *testing.T) {
	h := newHandler(t, true)

	resp := h.Handle(context.Background(), Event{HTTPMethod: "OPTIONS", Path: "/predict"})
	assert.Equal(t, 200, resp.StatusCode)
	assertCORS(t, resp)
	assert.Equal(t, "OK", decodeBody(t, resp)["message"])
}

func TestHandle_Health(t *testing.T) {
	h := newHandler(t, true)

	resp := h.Handle(context.Background(), Event{HTTPMethod: "GET", Path: "/health"})
	assert.Equal(t, 200, resp.StatusCode)
	assertCORS(t, resp)

	body := decodeBody(t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["model_loaded"])
}

func TestHandle_HealthUnavailableArtifacts(t *testing.T) {
	loader := artifact.NewLoader(nil, t.TempDir(), "models/model.json", "models/scaler.json", nil)
	h := New(loader, nil)

	resp := h.Handle(context.Background(), Event{HTTPMethod: "GET", Path: "/health"})
	assert.Equal(t, 503, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "unhealthy", body["status"])
	assert.Equal(t, false, body["model_loaded"])
	assert.NotEmpty(t, body["error"])
}

func TestHandle_Predict(t *testing.T) {
	h := newHandler(t, true)

	resp := h.Handle(context.Background(), Event{HTTPMethod: "POST", Path: "/predict", Body: featuresBody})
	assert.Equal(t, 200, resp.StatusCode)
	assertCORS(t, resp)

	body := decodeBody(t, resp)
	prediction, ok := body["prediction"].(float64)
	require.True(t, ok)

	desc := body["prediction_description"].(string)
	assert.Equal(t, fmt.Sprintf("Predicted median house value: $%.2f", prediction*100000), desc)

	received := body["features_received"].([]any)
	assert.Len(t, received, 8)
	assert.Nil(t, body["confidence_interval"], "plain predict carries no interval")
}

func TestHandle_PredictConfidenceEnsemble(t *testing.T) {
	h := newHandler(t, true)

	resp := h.Handle(context.Background(), Event{HTTPMethod: "POST", Path: "/predict/confidence", Body: featuresBody})
	assert.Equal(t, 200, resp.StatusCode)

	body := decodeBody(t, resp)
	prediction := body["prediction"].(float64)

	ci, ok := body["confidence_interval"].(map[string]any)
	require.True(t, ok)
	lower := ci["lower_bound"].(float64)
	upper := ci["upper_bound"].(float64)
	assert.LessOrEqual(t, lower, prediction)
	assert.GreaterOrEqual(t, upper, prediction)
	assert.GreaterOrEqual(t, ci["std_dev"].(float64), 0.0)

	desc := body["confidence_interval_description"].(string)
	assert.Equal(t, fmt.Sprintf("95%% confidence: $%.2f - $%.2f", lower*100000, upper*100000), desc)
	assert.Nil(t, body["warning"])
}

func TestHandle_PredictConfidenceNonEnsemble(t *testing.T) {
	h := newHandler(t, false)

	resp := h.Handle(context.Background(), Event{HTTPMethod: "POST", Path: "/predict/confidence", Body: featuresBody})
	assert.Equal(t, 200, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, predict.WarnNoConfidence, body["warning"])
	assert.Nil(t, body["confidence_interval"])
}

func TestHandle_PredictValidation(t *testing.T) {
	h := newHandler(t, true)
	ctx := context.Background()

	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{"missing body", "", "Missing request body"},
		{"invalid json", "{not json", "Invalid JSON in request body"},
		{"missing features", `{"MedInc": 8.3}`, "Missing features in request body"},
		{"not a list", `{"features": "eight"}`, "Features must be a list of 8 numbers"},
		{"too few", `{"features": [1,2,3]}`, "Features must be a list of 8 numbers"},
		{"too many", `{"features": [1,2,3,4,5,6,7,8,9]}`, "Features must be a list of 8 numbers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := h.Handle(ctx, Event{HTTPMethod: "POST", Path: "/predict", Body: tt.body})
			assert.Equal(t, 400, resp.StatusCode)
			assertCORS(t, resp)
			assert.Equal(t, tt.wantError, decodeBody(t, resp)["error"])
		})
	}

	t.Run("arity detail reports count", func(t *testing.T) {
		resp := h.Handle(ctx, Event{HTTPMethod: "POST", Path: "/predict", Body: `{"features": [1,2,3]}`})
		assert.Equal(t, float64(3), decodeBody(t, resp)["received"])
	})
}

func TestHandle_UnknownRoute(t *testing.T) {
	h := newHandler(t, true)

	resp := h.Handle(context.Background(), Event{HTTPMethod: "GET", Path: "/nope"})
	assert.Equal(t, 404, resp.StatusCode)
	assertCORS(t, resp)

	body := decodeBody(t, resp)
	assert.Equal(t, "Not found", body["error"])
	assert.Equal(t, "/nope", body["path"])

	catalog := body["available_endpoints"].(map[string]any)
	assert.Contains(t, catalog, "GET /health")
	assert.Contains(t, catalog, "POST /predict")
	assert.Contains(t, catalog, "POST /predict/confidence")
}

func TestHandle_DefaultsToRoot(t *testing.T) {
	h := newHandler(t, true)

	resp := h.Handle(context.Background(), Event{})
	assert.Equal(t, 404, resp.StatusCode)
	assert.Equal(t, "/", decodeBody(t, resp)["path"])
}
