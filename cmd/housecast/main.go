package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"housecast/internal/api"
	"housecast/internal/artifact"
	"housecast/internal/cfg"
	"housecast/internal/metrics"
	"housecast/internal/predict"
	"housecast/internal/registry"
	"housecast/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg(".env load failed")
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	reg, err := registry.New(c.ModelDir)
	if err != nil {
		log.Warn().Err(err).Msg("run registry unavailable")
		reg = nil
	}

	predictor := initializePredictor(ctx, c, mw)

	hub := api.NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	startMetricsServer(ctx, c.MetricsPort)

	server := api.New(api.Config{
		Port:           c.ServerPort,
		RequestTimeout: c.RequestTimeout,
		AllowedOrigins: c.AllowedOrigins,
	}, predictor, store, reg, hub, mw)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("prediction server failed")
			cancel()
		}
	}()

	waitForShutdown(ctx, server)
}

// initializeStorage opens the prediction log if DATA_PATH is configured.
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without prediction log")
		return nil
	}
	return store
}

// initializePredictor resolves the serving artifacts once. A failed
// load leaves the API answering 503 rather than crashing the process,
// so a model upload can complete after the rollout.
func initializePredictor(ctx context.Context, c cfg.Settings, mw *metrics.Wrapper) *predict.Predictor {
	var client *artifact.Client
	if c.StoreEndpoint != "" {
		client = artifact.NewClient(c.StoreEndpoint, c.StoreBucket, c.StoreAccess, c.StoreSecret, c.StoreRegion, c.RequestTimeout)
	}

	loader := artifact.NewLoader(client, c.ModelDir, c.ModelKey, c.ScalerKey, mw)
	bundle, err := loader.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("artifact bundle unavailable, serving 503 until restart")
		return nil
	}

	predictor, err := predict.New(bundle, mw)
	if err != nil {
		log.Error().Err(err).Msg("predictor init failed")
		return nil
	}
	log.Info().Str("model", predictor.ModelKind()).Bool("ensemble", predictor.IsEnsemble()).Msg("predictor ready")
	return predictor
}

// startMetricsServer serves Prometheus metrics and a liveness probe.
func startMetricsServer(ctx context.Context, port int) {
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func waitForShutdown(ctx context.Context, server *api.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
	}
}
