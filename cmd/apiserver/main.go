// API server entry point for clinlink.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/clinlink/clinlink/internal/application/linkage"
	"github.com/clinlink/clinlink/internal/config"
	"github.com/clinlink/clinlink/internal/domain/grouping"
	"github.com/clinlink/clinlink/internal/infrastructure/database/postgres"
	"github.com/clinlink/clinlink/internal/infrastructure/database/redis"
	"github.com/clinlink/clinlink/internal/infrastructure/messaging/kafka"
	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/logging"
	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/prometheus"
	"github.com/clinlink/clinlink/internal/infrastructure/storage/local"
	"github.com/clinlink/clinlink/internal/infrastructure/storage/minio"
	"github.com/clinlink/clinlink/internal/intelligence/annotator"
	"github.com/clinlink/clinlink/internal/intelligence/normalizer"
	httpserver "github.com/clinlink/clinlink/internal/interfaces/http"
	"github.com/clinlink/clinlink/internal/interfaces/http/handlers"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (env-only when empty)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("cannot initialize logger: %w", err)
	}

	logger.Info("starting clinlink API server",
		logging.Int("port", cfg.Server.Port),
		logging.String("storage_backend", cfg.Storage.Backend))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database.
	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		return err
	}
	repo := postgres.NewRecordRepository(pool, logger)

	// Snapshot storage and annotation documents.
	store, annotations, err := buildStorage(cfg, logger)
	if err != nil {
		return err
	}

	// Redis-backed snapshot cache in front of the store.
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer rdb.Close()
	cachedStore := redis.NewSnapshotCache(rdb, store, cfg.Storage.CacheTTL, logger)

	// Event producer.
	var publisher linkage.Publisher
	var producer *kafka.Producer
	if cfg.Messaging.Enabled {
		producer = kafka.NewProducer(cfg.Messaging.Producer, logger)
		defer producer.Close()
		publisher = producer
	}

	// Annotation pipeline.
	annClient, err := annotator.NewClient(cfg.Annotator.Client, nil)
	if err != nil {
		return err
	}
	matcher, err := normalizer.NewDictionaryMatcherFromFile(cfg.Annotator.VocabularyPath)
	if err != nil {
		return err
	}
	norm := normalizer.NewNormalizer(matcher, logger)

	metric, err := grouping.ParseMetric(cfg.Grouping.Metric)
	if err != nil {
		return err
	}

	svc := linkage.NewService(repo, annotations, annClient, cfg.Annotator.Runner,
		norm, cachedStore, publisher, linkage.Defaults{
			Metric:           metric,
			Threshold:        cfg.Grouping.Threshold,
			WorkingMemoryMiB: cfg.Grouping.WorkingMemoryMiB,
			Parallelism:      cfg.Grouping.Parallelism,
		}, logger)

	// Metrics.
	collector, err := prometheus.NewCollector(cfg.Metrics, logger)
	if err != nil {
		return err
	}
	metrics := prometheus.NewPipelineMetrics(collector)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		LinkageHandler: handlers.NewLinkageHandler(svc),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.ReadinessCheck{
			"postgres": pool.Ping,
			"redis": func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			},
		}),
		Logger:         logger,
		Metrics:        metrics,
		MetricsHandler: collector.Handler(),
		Mode:           cfg.Server.Mode,
	})

	srv := httpserver.NewServer(httpserver.ServerConfig{
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		return err
	}
	return <-errCh
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}

// buildStorage selects the snapshot store and annotation sink backend.
func buildStorage(cfg *config.Config, logger logging.Logger) (grouping.Store, linkage.AnnotationStore, error) {
	switch cfg.Storage.Backend {
	case config.StorageBackendMinIO:
		client, err := minio.NewClient(&cfg.Storage.MinIO, logger)
		if err != nil {
			return nil, nil, err
		}
		return minio.NewSnapshotStore(client), minio.NewAnnotationSink(client), nil
	default:
		store, err := local.NewSnapshotStore(cfg.Storage.LocalDir)
		if err != nil {
			return nil, nil, err
		}
		sink, err := local.NewAnnotationSink(cfg.Storage.LocalDir)
		if err != nil {
			return nil, nil, err
		}
		return store, sink, nil
	}
}
