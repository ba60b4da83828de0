package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"housecast/internal/model"
	"housecast/internal/predict"
	"housecast/internal/scaler"
)

// MetricsInterface defines the metrics methods the loader needs.
type MetricsInterface interface {
	ArtifactDownloadsInc()
	ModelLoadedSet(bool)
	ModelAgeSet(float64)
}

// Loader resolves the scaler/model pair into an immutable bundle. Local
// files win over the object store, and the result is cached for the process
// lifetime: loading happens at most once no matter how many goroutines ask.
type Loader struct {
	client    *Client // nil disables remote resolution
	modelDir  string
	modelKey  string
	scalerKey string
	metrics   MetricsInterface

	once   sync.Once
	bundle predict.Bundle
	err    error
}

// NewLoader builds a loader. client may be nil for local-only deployments.
func NewLoader(client *Client, modelDir, modelKey, scalerKey string, m MetricsInterface) *Loader {
	return &Loader{
		client:    client,
		modelDir:  modelDir,
		modelKey:  modelKey,
		scalerKey: scalerKey,
		metrics:   m,
	}
}

// Load returns the cached bundle, resolving it on first call. A failed load
// is also cached: a deployment without artifacts keeps failing fast instead
// of hammering the object store on every request.
func (l *Loader) Load(ctx context.Context) (predict.Bundle, error) {
	l.once.Do(func() {
		l.bundle, l.err = l.resolve(ctx)
		if l.metrics != nil {
			l.metrics.ModelLoadedSet(l.err == nil)
		}
	})
	return l.bundle, l.err
}

func (l *Loader) resolve(ctx context.Context) (predict.Bundle, error) {
	scalerData, err := l.fetch(ctx, l.scalerKey)
	if err != nil {
		return predict.Bundle{}, fmt.Errorf("artifact: scaler: %w", err)
	}
	sc, err := scaler.FromJSON(scalerData)
	if err != nil {
		return predict.Bundle{}, err
	}

	modelData, err := l.fetch(ctx, l.modelKey)
	if err != nil {
		return predict.Bundle{}, fmt.Errorf("artifact: model: %w", err)
	}
	mdl, err := model.Unmarshal(modelData)
	if err != nil {
		return predict.Bundle{}, err
	}

	log.Info().
		Str("model_kind", mdl.Kind()).
		Str("model_key", l.modelKey).
		Str("scaler_key", l.scalerKey).
		Msg("artifact bundle loaded")

	return predict.Bundle{Scaler: sc, Model: mdl}, nil
}

// fetch reads the artifact from the local model dir first, then falls back
// to the object store.
func (l *Loader) fetch(ctx context.Context, key string) ([]byte, error) {
	localPath := filepath.Join(l.modelDir, filepath.Base(key))
	if data, err := os.ReadFile(localPath); err == nil {
		if l.metrics != nil {
			if info, statErr := os.Stat(localPath); statErr == nil {
				l.metrics.ModelAgeSet(time.Since(info.ModTime()).Seconds())
			}
		}
		log.Debug().Str("path", localPath).Msg("artifact resolved locally")
		return data, nil
	}

	if l.client == nil {
		return nil, fmt.Errorf("%s not found locally and no object store configured", key)
	}

	data, err := l.client.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	if l.metrics != nil {
		l.metrics.ArtifactDownloadsInc()
	}
	return data, nil
}
