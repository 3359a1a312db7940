package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mealog/internal/blobstore"
	"mealog/internal/config"
	"mealog/internal/imaging"
	"mealog/internal/media"
	"mealog/internal/store"
)

// localRuntime holds the collaborators shared by the server and the
// commands that operate on the database directly.
type localRuntime struct {
	store     *store.Store
	blobs     blobstore.BlobStore
	paths     media.Paths
	ingest    *media.IngestService
	lifecycle *media.Coordinator
	metrics   *media.Metrics
	registry  *prometheus.Registry
}

func openRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*localRuntime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not initialized")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	transcoder, err := imaging.NewTranscoder(cfg.Images.TranscoderOptions(), logger.With("component", "imaging"))
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := media.NewMetrics(registry)
	if err != nil {
		return nil, err
	}

	logger.Debug("opening database", "path", cfg.DBPath)
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	paths := media.NewPaths(cfg.Storage.PublicPrefix)
	ingest := media.NewIngestService(transcoder, blobs, paths, cfg.Images.MaxSizeBytes)
	ingest.ConfigureLimits(cfg.Images.MaxUploadBytes)
	ingest.SetLogger(logger.With("component", "ingest"))
	ingest.SetMetrics(metrics)
	ingest.SetRecorder(st)

	lifecycle := media.NewCoordinator(st, blobs, paths)
	lifecycle.SetLogger(logger.With("component", "lifecycle"))
	lifecycle.SetMetrics(metrics)

	return &localRuntime{
		store:     st,
		blobs:     blobs,
		paths:     paths,
		ingest:    ingest,
		lifecycle: lifecycle,
		metrics:   metrics,
		registry:  registry,
	}, nil
}

func (r *localRuntime) Close() error {
	if r == nil {
		return nil
	}
	return r.store.Close()
}

func openBlobStore(ctx context.Context, cfg *config.Config) (blobstore.BlobStore, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendMinIO:
		return blobstore.NewMinIO(ctx, blobstore.MinIOConfig{
			Endpoint:  cfg.Storage.MinIOEndpoint,
			AccessKey: cfg.Storage.MinIOAccessKey,
			SecretKey: cfg.Storage.MinIOSecretKey,
			Bucket:    cfg.Storage.MinIOBucket,
			Prefix:    cfg.Storage.MinIOPrefix,
			UseSSL:    cfg.Storage.MinIOUseSSL,
			Region:    cfg.Storage.MinIORegion,
		})
	default:
		return blobstore.NewLocalFS(cfg.Storage.LocalImageDir())
	}
}
