package storage

import (
	"testing"
	"time"

	"housecast/internal/features"
	"housecast/internal/model"
	"housecast/internal/predict"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecord(ts time.Time) PredictionRecord {
	return PredictionRecord{
		Model:     model.KindForest,
		Timestamp: ts,
		Features: features.RawFeatures{
			MedInc: 8.3252, HouseAge: 41, AveRooms: 6.984, AveBedrms: 1.024,
			Population: 322, AveOccup: 2.555, Latitude: 37.88, Longitude: -122.23,
		},
		Prediction: 4.15,
		Interval: &predict.ConfidenceInterval{
			LowerBound: 3.9,
			UpperBound: 4.4,
			StdDev:     0.127,
		},
		Source: "api",
	}
}

func TestStoreAndRecentPredictions(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := sampleRecord(base.Add(time.Duration(i) * time.Second))
		rec.Prediction = float64(i)
		if err := store.StorePrediction(rec); err != nil {
			t.Fatalf("StorePrediction: %v", err)
		}
	}

	recent, err := store.RecentPredictions(3)
	if err != nil {
		t.Fatalf("RecentPredictions: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recent))
	}
	// Newest first.
	if recent[0].Prediction != 4 || recent[2].Prediction != 2 {
		t.Errorf("unexpected ordering: %v, %v, %v", recent[0].Prediction, recent[1].Prediction, recent[2].Prediction)
	}
	if recent[0].Interval == nil || recent[0].Interval.StdDev != 0.127 {
		t.Errorf("interval not round-tripped: %+v", recent[0].Interval)
	}
	if recent[0].Features.MedInc != 8.3252 {
		t.Errorf("features not round-tripped: %+v", recent[0].Features)
	}
}

func TestRecentPredictions_DefaultLimit(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	if err := store.StorePrediction(sampleRecord(time.Now())); err != nil {
		t.Fatalf("StorePrediction: %v", err)
	}
	recent, err := store.RecentPredictions(0)
	if err != nil {
		t.Fatalf("RecentPredictions: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("expected 1 record with default limit, got %d", len(recent))
	}
}

func TestPredictionsInRange(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		rec := sampleRecord(base.Add(time.Duration(i) * time.Minute))
		rec.Prediction = float64(i)
		if err := store.StorePrediction(rec); err != nil {
			t.Fatalf("StorePrediction: %v", err)
		}
	}

	got, err := store.PredictionsInRange(base.Add(2*time.Minute), base.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("PredictionsInRange: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 records in range, got %d", len(got))
	}
	// Oldest first.
	if got[0].Prediction != 2 || got[3].Prediction != 5 {
		t.Errorf("unexpected range contents: first=%v last=%v", got[0].Prediction, got[3].Prediction)
	}
}

func TestNew_BadPath(t *testing.T) {
	t.Parallel()
	if _, err := New("/nonexistent/deeply/nested/path"); err == nil {
		t.Error("expected error for unwritable path")
	}
}
