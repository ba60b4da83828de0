package artifact

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housecast/internal/model"
	"housecast/internal/scaler"
)

// fakeStore is a minimal in-memory S3-compatible endpoint.
type fakeStore struct {
	objects map[string][]byte
	gets    int64
}

func (f *fakeStore) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			if r.URL.Path == "/test-bucket" {
				w.WriteHeader(http.StatusOK)
				return
			}
			body, _ := io.ReadAll(r.Body)
			f.objects[r.URL.Path] = body
			w.WriteHeader(http.StatusOK)
		case http.MethodGet:
			atomic.AddInt64(&f.gets, 1)
			data, ok := f.objects[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(data)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func newFakeStore(t *testing.T) (*fakeStore, *Client) {
	t.Helper()
	fs := &fakeStore{objects: make(map[string][]byte)}
	srv := httptest.NewServer(fs.handler())
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, "test-bucket", "test", "test", "us-east-1", 5*time.Second)
	return fs, client
}

func fittedArtifacts(t *testing.T) ([]byte, []byte) {
	t.Helper()

	matrix := make([][]float64, 20)
	targets := make([]float64, 20)
	for i := range matrix {
		row := make([]float64, 11)
		for j := range row {
			row[j] = float64(i + j)
		}
		matrix[i] = row
		targets[i] = float64(i)
	}

	var s scaler.StandardScaler
	require.NoError(t, s.Fit(matrix))
	scalerData, err := os.ReadFile(saveScaler(t, &s))
	require.NoError(t, err)

	var forest model.Forest
	require.NoError(t, forest.Fit(matrix, targets, model.ForestConfig{Trees: 3, MaxDepth: 4, MinLeaf: 2, Seed: 1}))
	modelData, err := model.Marshal(&forest)
	require.NoError(t, err)

	return scalerData, modelData
}

func saveScaler(t *testing.T, s *scaler.StandardScaler) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scaler.json")
	require.NoError(t, s.Save(path))
	return path
}

func TestClient_UploadDownload(t *testing.T) {
	t.Parallel()
	_, client := newFakeStore(t)
	ctx := context.Background()

	require.NoError(t, client.EnsureBucket(ctx))
	require.NoError(t, client.Upload(ctx, "models/scaler.json", []byte(`{"mean":[0],"std":[1]}`)))

	data, err := client.Download(ctx, "models/scaler.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"mean":[0],"std":[1]}`, string(data))
}

func TestClient_DownloadMissing(t *testing.T) {
	t.Parallel()
	_, client := newFakeStore(t)

	_, err := client.Download(context.Background(), "models/nope.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoader_RemoteResolution(t *testing.T) {
	t.Parallel()
	fs, client := newFakeStore(t)
	scalerData, modelData := fittedArtifacts(t)
	fs.objects["/test-bucket/models/scaler.json"] = scalerData
	fs.objects["/test-bucket/models/model.json"] = modelData

	loader := NewLoader(client, t.TempDir(), "models/model.json", "models/scaler.json", nil)
	bundle, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, bundle.Scaler)
	require.NotNil(t, bundle.Model)
	assert.Equal(t, model.KindForest, bundle.Model.Kind())
}

func TestLoader_LoadsAtMostOnce(t *testing.T) {
	t.Parallel()
	fs, client := newFakeStore(t)
	scalerData, modelData := fittedArtifacts(t)
	fs.objects["/test-bucket/models/scaler.json"] = scalerData
	fs.objects["/test-bucket/models/model.json"] = modelData

	loader := NewLoader(client, t.TempDir(), "models/model.json", "models/scaler.json", nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := loader.Load(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), atomic.LoadInt64(&fs.gets), "artifacts should download exactly once each")
}

func TestLoader_LocalWinsOverRemote(t *testing.T) {
	t.Parallel()
	fs, client := newFakeStore(t)
	scalerData, modelData := fittedArtifacts(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scaler.json"), scalerData, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), modelData, 0o600))

	loader := NewLoader(client, dir, "models/model.json", "models/scaler.json", nil)
	_, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, atomic.LoadInt64(&fs.gets), "no remote fetch expected when local files exist")
}

func TestLoader_MissingEverywhere(t *testing.T) {
	t.Parallel()

	loader := NewLoader(nil, t.TempDir(), "models/model.json", "models/scaler.json", nil)
	_, err := loader.Load(context.Background())
	require.Error(t, err)

	// The failure is cached too.
	_, err2 := loader.Load(context.Background())
	assert.Equal(t, err, err2)
}
