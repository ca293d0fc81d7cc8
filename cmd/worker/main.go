// Background worker entry point for clinlink.  Consumes annotation jobs
// from the event stream and processes them against the shared stores.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clinlink/clinlink/internal/application/linkage"
	"github.com/clinlink/clinlink/internal/config"
	"github.com/clinlink/clinlink/internal/domain/grouping"
	"github.com/clinlink/clinlink/internal/infrastructure/database/postgres"
	"github.com/clinlink/clinlink/internal/infrastructure/messaging/kafka"
	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/logging"
	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/prometheus"
	"github.com/clinlink/clinlink/internal/infrastructure/storage/local"
	"github.com/clinlink/clinlink/internal/infrastructure/storage/minio"
	"github.com/clinlink/clinlink/internal/intelligence/annotator"
	"github.com/clinlink/clinlink/internal/intelligence/normalizer"
	"github.com/clinlink/clinlink/pkg/errors"
)

const healthAddr = ":8081"

func main() {
	configPath := flag.String("config", "", "path to configuration file (env-only when empty)")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if !cfg.Messaging.Enabled {
		return fmt.Errorf("worker requires messaging.enabled=true")
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("cannot initialize logger: %w", err)
	}
	logger = logger.Named("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer pool.Close()
	repo := postgres.NewRecordRepository(pool, logger)

	store, annotations, err := buildStorage(cfg, logger)
	if err != nil {
		return err
	}

	producer := kafka.NewProducer(cfg.Messaging.Producer, logger)
	defer producer.Close()

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
		norm, store, producer, linkage.Defaults{
			Metric:           metric,
			Threshold:        cfg.Grouping.Threshold,
			WorkingMemoryMiB: cfg.Grouping.WorkingMemoryMiB,
			Parallelism:      cfg.Grouping.Parallelism,
		}, logger)

	collector, err := prometheus.NewCollector(cfg.Metrics, logger)
	if err != nil {
		return err
	}
	metrics := prometheus.NewPipelineMetrics(collector)

	dispatcher := kafka.NewDispatcher(logger).
		On(kafka.TopicAnnotationRequested, annotationHandler(svc, metrics, logger)).
		On(kafka.TopicRecordIngested, ingestedHandler(svc, metrics, logger))

	consumer := kafka.NewConsumer(cfg.Messaging.Consumer, logger)
	defer consumer.Close()

	// Health and metrics endpoints for probes and scraping.
	healthSrv := startHealthServer(collector, logger)
	defer healthSrv.Shutdown(context.Background())

	logger.Info("worker consuming",
		logging.String("topic", cfg.Messaging.Consumer.Topic),
		logging.String("group_id", cfg.Messaging.Consumer.GroupID))

	return consumer.Run(ctx, dispatcher.Handle)
}

// annotationHandler processes one annotation job.
func annotationHandler(svc linkage.Service, metrics *prometheus.PipelineMetrics, logger logging.Logger) kafka.Handler {
	return func(ctx context.Context, env *kafka.EventEnvelope) error {
		var payload kafka.AnnotationRequestedPayload
		if err := env.DecodePayload(&payload); err != nil {
			return err
		}
		return annotateRecord(ctx, svc, metrics, logger, env.EventType, payload.RecordID)
	}
}

// ingestedHandler annotates freshly ingested records as they arrive.
func ingestedHandler(svc linkage.Service, metrics *prometheus.PipelineMetrics, logger logging.Logger) kafka.Handler {
	return func(ctx context.Context, env *kafka.EventEnvelope) error {
		var payload kafka.RecordIngestedPayload
		if err := env.DecodePayload(&payload); err != nil {
			return err
		}
		return annotateRecord(ctx, svc, metrics, logger, env.EventType, payload.RecordID)
	}
}

func annotateRecord(ctx context.Context, svc linkage.Service, metrics *prometheus.PipelineMetrics,
	logger logging.Logger, eventType, recordID string) error {
	start := time.Now()
	err := svc.AnnotateRecord(ctx, recordID)
	metrics.RecordEventProcessed(eventType, time.Since(start), err == nil)
	if err != nil {
		// A vanished record never becomes annotatable; retrying would block
		// the partition. Everything else is retried via restart.
		if errors.IsCode(err, errors.ErrCodeRecordNotFound) {
			logger.Warn("annotation job skipped; record no longer exists",
				logging.String("record_id", recordID))
			return nil
		}
		logger.Error("annotation job failed",
			logging.String("record_id", recordID), logging.Err(err))
		return err
	}
	logger.Info("annotation job done", logging.String("record_id", recordID))
	return nil
}

func startHealthServer(collector prometheus.Collector, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{"status":"ok"}`)
	})
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{Addr: healthAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", logging.Err(err))
		}
	}()
	return srv
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
