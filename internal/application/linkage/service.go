// Package linkage provides the application-level service that orchestrates
// the record-linkage pipeline: record ingestion, entity annotation and code
// normalization, and similarity grouping.  This package sits between the
// HTTP/CLI surfaces and the domain logic.
package linkage

import (
	"context"
	"time"

	"github.com/clinlink/clinlink/internal/domain/grouping"
	"github.com/clinlink/clinlink/internal/domain/record"
	"github.com/clinlink/clinlink/internal/infrastructure/messaging/kafka"
	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/logging"
	"github.com/clinlink/clinlink/internal/intelligence/annotator"
	"github.com/clinlink/clinlink/internal/intelligence/normalizer"
	"github.com/clinlink/clinlink/pkg/errors"
)

// eventSource identifies this service in published event envelopes.
const eventSource = "clinlink-linkage"

// Service defines the linkage application operations.
type Service interface {
	IngestRecords(ctx context.Context, input *IngestInput) (*IngestResult, error)
	RunAnnotation(ctx context.Context, input *AnnotationInput) (*AnnotationResult, error)
	AnnotateRecord(ctx context.Context, recordID string) error
	BuildGrouping(ctx context.Context, input *GroupingInput) (*GroupingResult, error)
	GetGrouping(ctx context.Context, key string) (*GroupingSummary, error)
	ListGroupings(ctx context.Context) ([]string, error)
	GetGroups(ctx context.Context, key string) ([]grouping.Group, error)
	GetSupergroups(ctx context.Context, key string) ([]grouping.Group, error)
	RecordMembership(ctx context.Context, key, recordID string) (*MembershipResult, error)
}

// AnnotationStore is the sink plus read-back access the pipeline needs.
// Both the local-directory and object-storage sinks satisfy it.
type AnnotationStore interface {
	annotator.Sink
	Get(ctx context.Context, recordID string) (*annotator.Annotation, error)
}

// Publisher is the event-publishing dependency; the Kafka producer
// satisfies it.  A nil Publisher disables events.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, env *kafka.EventEnvelope) error
}

// IngestInput carries a batch of raw records.
type IngestInput struct {
	Records []RecordInput `json:"records"`
}

// RecordInput is one raw record as received from a registry export.
type RecordInput struct {
	ID           string   `json:"id"`
	Source       string   `json:"source"`
	Text         string   `json:"text"`
	DiseaseCodes []string `json:"disease_codes,omitempty"`
	DrugCodes    []string `json:"drug_codes,omitempty"`
}

// IngestResult summarizes one ingestion batch.
type IngestResult struct {
	Saved int `json:"saved"`
}

// AnnotationInput controls one annotation run.
type AnnotationInput struct {
	// Resume skips records that already have a stored annotation document.
	Resume bool `json:"resume"`
}

// AnnotationResult summarizes one annotation-and-normalization run.
type AnnotationResult struct {
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Updated   int           `json:"updated"`
	Elapsed   time.Duration `json:"elapsed"`
}

// GroupingInput parameterizes one grouping run.  Zero values fall back to
// the service defaults.
type GroupingInput struct {
	Name      string  `json:"name"`
	Metric    string  `json:"metric,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// GroupingResult summarizes one grouping run.
type GroupingResult struct {
	Key         string `json:"key"`
	Records     int    `json:"records"`
	Groups      int    `json:"groups"`
	Supergroups int    `json:"supergroups"`
}

// GroupingSummary describes a stored grouping snapshot.
type GroupingSummary struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Metric      string    `json:"metric"`
	Threshold   float64   `json:"threshold"`
	Groups      int       `json:"groups"`
	Supergroups int       `json:"supergroups"`
	CreatedAt   time.Time `json:"created_at"`
}

// MembershipResult lists the groups a record belongs to within one snapshot.
type MembershipResult struct {
	RecordID string           `json:"record_id"`
	Groups   []grouping.Group `json:"groups"`
}

// Defaults holds the grouping parameters applied when a request leaves
// them unset.
type Defaults struct {
	Metric           grouping.Metric
	Threshold        float64
	WorkingMemoryMiB int
	Parallelism      int
}

type serviceImpl struct {
	repo        record.Repository
	annotations AnnotationStore
	annotator   annotator.Annotator
	runnerCfg   annotator.RunnerConfig
	normalizer  *normalizer.Normalizer
	store       grouping.Store
	publisher   Publisher
	defaults    Defaults
	logger      logging.Logger
}

// NewService wires the linkage service.  publisher may be nil.
func NewService(
	repo record.Repository,
	annotations AnnotationStore,
	ann annotator.Annotator,
	runnerCfg annotator.RunnerConfig,
	norm *normalizer.Normalizer,
	store grouping.Store,
	publisher Publisher,
	defaults Defaults,
	logger logging.Logger,
) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		repo:        repo,
		annotations: annotations,
		annotator:   ann,
		runnerCfg:   runnerCfg,
		normalizer:  norm,
		store:       store,
		publisher:   publisher,
		defaults:    defaults,
		logger:      logger,
	}
}

// ─── Ingestion ───────────────────────────────────────────────────────────────

func (s *serviceImpl) IngestRecords(ctx context.Context, input *IngestInput) (*IngestResult, error) {
	if len(input.Records) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "ingest batch is empty")
	}

	batch := make([]*record.Record, 0, len(input.Records))
	for _, in := range input.Records {
		if in.ID == "" {
			return nil, errors.New(errors.ErrCodeValidation, "record id is required")
		}
		source, err := record.ParseSource(in.Source)
		if err != nil {
			return nil, err
		}
		batch = append(batch, &record.Record{
			ID:           in.ID,
			Source:       source,
			Text:         in.Text,
			DiseaseCodes: record.NewCodeSet(in.DiseaseCodes...),
			DrugCodes:    record.NewCodeSet(in.DrugCodes...),
		})
	}

	if err := s.repo.SaveBatch(ctx, batch); err != nil {
		return nil, err
	}

	s.logger.Info("ingested record batch", logging.Int("records", len(batch)))

	for _, rec := range batch {
		s.publish(ctx, kafka.TopicRecordIngested, rec.ID, kafka.RecordIngestedPayload{
			RecordID: rec.ID,
			Source:   rec.Source.String(),
			SavedAt:  time.Now().UTC(),
		})
	}

	return &IngestResult{Saved: len(batch)}, nil
}

// ─── Annotation and normalization ────────────────────────────────────────────

func (s *serviceImpl) RunAnnotation(ctx context.Context, input *AnnotationInput) (*AnnotationResult, error) {
	ds, err := s.repo.LoadDataset(ctx)
	if err != nil {
		return nil, err
	}
	if ds.Len() == 0 {
		return &AnnotationResult{}, nil
	}

	runnerCfg := s.runnerCfg
	runnerCfg.SkipAnnotated = input.Resume
	runner := annotator.NewRunner(s.annotator, s.annotations, runnerCfg, s.logger)

	stats, runErr := runner.Run(ctx, ds)
	result := &AnnotationResult{
		Processed: stats.Processed,
		Skipped:   stats.Skipped,
		Failed:    stats.Failed,
		Elapsed:   stats.Elapsed,
	}
	if runErr != nil {
		// The breaker tripped or the context was canceled; whatever got
		// annotated so far is still normalized below on the next run.
		return result, runErr
	}

	updated, err := s.normalizeAnnotated(ctx, ds)
	if err != nil {
		return result, err
	}
	result.Updated = updated
	return result, nil
}

// AnnotateRecord annotates and normalizes one record.  Workers call it for
// each annotation job consumed off the event stream.
func (s *serviceImpl) AnnotateRecord(ctx context.Context, recordID string) error {
	rec, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		return err
	}

	a, err := s.annotator.Annotate(ctx, rec.Text)
	if err != nil {
		return err
	}
	if err := s.annotations.Put(ctx, recordID, a); err != nil {
		return err
	}

	ents, err := a.Entities(recordID)
	if err != nil {
		return err
	}

	ds := record.NewDataset()
	if err := ds.Add(rec); err != nil {
		return err
	}
	grouped := normalizer.GroupMentions(ents)
	if err := s.normalizer.Apply(ctx, ds, grouped); err != nil {
		return err
	}

	if _, ok := grouped[recordID]; !ok {
		// No mentions recognized; nothing to persist.
		return nil
	}
	if err := s.repo.UpdateCodes(ctx, recordID, rec.DiseaseCodes, rec.DrugCodes); err != nil {
		return err
	}

	s.publish(ctx, kafka.TopicAnnotationCompleted, recordID, kafka.AnnotationCompletedPayload{
		RecordID:     recordID,
		EntityCount:  len(ents),
		DiseaseCodes: rec.DiseaseCodes.Len(),
		DrugCodes:    rec.DrugCodes.Len(),
	})
	return nil
}

// normalizeAnnotated reads every stored annotation document for the dataset,
// maps mentions to vocabulary codes, and persists the resulting code sets.
func (s *serviceImpl) normalizeAnnotated(ctx context.Context, ds *record.Dataset) (int, error) {
	var entities []annotator.Entity
	for _, rec := range ds.Records() {
		a, err := s.annotations.Get(ctx, rec.ID)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return 0, err
		}
		ents, err := a.Entities(rec.ID)
		if err != nil {
			s.logger.Warn("skipping malformed annotation document",
				logging.String("record_id", rec.ID), logging.Err(err))
			continue
		}
		entities = append(entities, ents...)
	}

	grouped := normalizer.GroupMentions(entities)
	if err := s.normalizer.Apply(ctx, ds, grouped); err != nil {
		return 0, err
	}

	updated := 0
	for id := range grouped {
		rec, err := ds.Get(id)
		if err != nil {
			continue
		}
		if err := s.repo.UpdateCodes(ctx, id, rec.DiseaseCodes, rec.DrugCodes); err != nil {
			return updated, err
		}
		updated++

		s.publish(ctx, kafka.TopicAnnotationCompleted, id, kafka.AnnotationCompletedPayload{
			RecordID:     id,
			DiseaseCodes: rec.DiseaseCodes.Len(),
			DrugCodes:    rec.DrugCodes.Len(),
		})
	}

	s.logger.Info("annotation normalization persisted", logging.Int("updated", updated))
	return updated, nil
}

// ─── Grouping ────────────────────────────────────────────────────────────────

func (s *serviceImpl) BuildGrouping(ctx context.Context, input *GroupingInput) (*GroupingResult, error) {
	if err := grouping.ValidateKeyPart(input.Name); err != nil {
		return nil, err
	}

	metric := s.defaults.Metric
	if input.Metric != "" {
		parsed, err := grouping.ParseMetric(input.Metric)
		if err != nil {
			return nil, err
		}
		metric = parsed
	}
	threshold := s.defaults.Threshold
	if input.Threshold != 0 {
		if input.Threshold < 0 || input.Threshold > 1 {
			return nil, errors.Newf(errors.ErrCodeValidation,
				"threshold %v is out of range (0, 1]", input.Threshold)
		}
		threshold = input.Threshold
	}

	ds, err := s.repo.LoadDataset(ctx)
	if err != nil {
		return nil, err
	}

	g, err := grouping.New(input.Name, ds, metric, threshold,
		grouping.WithLogger(s.logger),
		grouping.WithWorkingMemory(s.defaults.WorkingMemoryMiB),
		grouping.WithParallelism(s.defaults.Parallelism))
	if err != nil {
		return nil, err
	}

	groups, err := g.Groups()
	if err != nil {
		return nil, err
	}
	supergroups, err := g.Supergroups()
	if err != nil {
		return nil, err
	}

	snap := g.Snapshot()
	if err := s.store.Save(ctx, snap); err != nil {
		return nil, err
	}

	s.logger.Info("grouping run completed",
		logging.String("key", snap.Key()),
		logging.Int("records", ds.Len()),
		logging.Int("groups", len(groups)),
		logging.Int("supergroups", len(supergroups)))

	s.publish(ctx, kafka.TopicGroupingCompleted, snap.Key(), kafka.GroupingCompletedPayload{
		SnapshotKey: snap.Key(),
		Groups:      len(groups),
		Supergroups: len(supergroups),
	})

	return &GroupingResult{
		Key:         snap.Key(),
		Records:     ds.Len(),
		Groups:      len(groups),
		Supergroups: len(supergroups),
	}, nil
}

// ─── Read side ───────────────────────────────────────────────────────────────

func (s *serviceImpl) GetGrouping(ctx context.Context, key string) (*GroupingSummary, error) {
	snap, err := s.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	return &GroupingSummary{
		Key:         snap.Key(),
		Name:        snap.Name,
		Metric:      snap.Metric.String(),
		Threshold:   snap.Threshold,
		Groups:      len(snap.Groups),
		Supergroups: len(snap.Supergroups),
		CreatedAt:   snap.CreatedAt,
	}, nil
}

func (s *serviceImpl) ListGroupings(ctx context.Context) ([]string, error) {
	return s.store.List(ctx)
}

func (s *serviceImpl) GetGroups(ctx context.Context, key string) ([]grouping.Group, error) {
	snap, err := s.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if !snap.GroupsComputed {
		return nil, errors.New(errors.ErrCodeGroupingMissingData,
			"snapshot holds no computed groups")
	}
	return snap.Groups, nil
}

func (s *serviceImpl) GetSupergroups(ctx context.Context, key string) ([]grouping.Group, error) {
	snap, err := s.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if snap.SupergroupsComputed {
		return snap.Supergroups, nil
	}

	// Supergroups derive from groups alone, so a detached restore suffices.
	g, err := grouping.RestoreSnapshot(snap, grouping.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	return g.Supergroups()
}

func (s *serviceImpl) RecordMembership(ctx context.Context, key, recordID string) (*MembershipResult, error) {
	snap, err := s.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	g, err := grouping.RestoreSnapshot(snap, grouping.WithLogger(s.logger))
	if err != nil {
		return nil, err
	}
	idx, err := g.Index()
	if err != nil {
		return nil, err
	}
	return &MembershipResult{
		RecordID: recordID,
		Groups:   idx.GroupsContaining(recordID),
	}, nil
}

// publish sends one event, logging and swallowing failures: events are a
// notification channel, not part of the pipeline's correctness.
func (s *serviceImpl) publish(ctx context.Context, topic, key string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	env, err := kafka.NewEnvelope(topic, eventSource, payload)
	if err != nil {
		s.logger.Warn("cannot build event envelope",
			logging.String("topic", topic), logging.Err(err))
		return
	}
	if err := s.publisher.Publish(ctx, topic, key, env); err != nil {
		s.logger.Warn("cannot publish event",
			logging.String("topic", topic), logging.Err(err))
	}
}
