package prometheus

import (
	"strconv"
	"time"
)

// PipelineMetrics holds the metric series for the record-linkage pipeline.
type PipelineMetrics struct {
	// HTTP surface
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	// Record ingestion
	RecordsIngestedTotal CounterVec
	IngestDuration       HistogramVec

	// Annotation
	AnnotationRequestsTotal CounterVec
	AnnotationDuration      HistogramVec
	AnnotationFailuresTotal CounterVec
	AnnotationsSkippedTotal CounterVec

	// Grouping
	GroupingDuration      HistogramVec
	GroupingChunksTotal   CounterVec
	GroupsBuilt           GaugeVec
	SupergroupsBuilt      GaugeVec
	GroupingFailuresTotal CounterVec

	// Snapshot storage and cache
	SnapshotSavesTotal CounterVec
	SnapshotLoadsTotal CounterVec
	CacheHitsTotal     CounterVec
	CacheMissesTotal   CounterVec

	// Messaging
	EventsPublishedTotal CounterVec
	EventsConsumedTotal  CounterVec
	EventProcessDuration HistogramVec

	// Infrastructure
	DBQueryDuration HistogramVec
	ErrorsTotal     CounterVec
}

var (
	// DefaultHTTPDurationBuckets suit request-scale latencies.
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	// DefaultPipelineDurationBuckets suit batch work that runs for minutes.
	DefaultPipelineDurationBuckets = []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600}
	// DefaultDBDurationBuckets suit single-query latencies.
	DefaultDBDurationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
)

// NewPipelineMetrics registers every pipeline metric on the collector.
func NewPipelineMetrics(c Collector) *PipelineMetrics {
	m := &PipelineMetrics{}

	m.HTTPRequestsTotal = c.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = c.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")

	m.RecordsIngestedTotal = c.RegisterCounter("records_ingested_total", "Records ingested", "source", "status")
	m.IngestDuration = c.RegisterHistogram("ingest_duration_seconds", "Ingestion batch duration", DefaultPipelineDurationBuckets, "source")

	m.AnnotationRequestsTotal = c.RegisterCounter("annotation_requests_total", "Annotation requests sent", "status")
	m.AnnotationDuration = c.RegisterHistogram("annotation_duration_seconds", "Per-record annotation duration", DefaultHTTPDurationBuckets)
	m.AnnotationFailuresTotal = c.RegisterCounter("annotation_failures_total", "Annotation requests that failed", "reason")
	m.AnnotationsSkippedTotal = c.RegisterCounter("annotations_skipped_total", "Records skipped because annotations already exist")

	m.GroupingDuration = c.RegisterHistogram("grouping_duration_seconds", "Group construction duration", DefaultPipelineDurationBuckets, "metric", "mode")
	m.GroupingChunksTotal = c.RegisterCounter("grouping_chunks_total", "Distance-matrix chunks processed", "metric")
	m.GroupsBuilt = c.RegisterGauge("groups_built", "Groups in the most recent run", "grouping")
	m.SupergroupsBuilt = c.RegisterGauge("supergroups_built", "Supergroups in the most recent run", "grouping")
	m.GroupingFailuresTotal = c.RegisterCounter("grouping_failures_total", "Failed grouping runs", "code")

	m.SnapshotSavesTotal = c.RegisterCounter("snapshot_saves_total", "Snapshot saves", "backend", "status")
	m.SnapshotLoadsTotal = c.RegisterCounter("snapshot_loads_total", "Snapshot loads", "backend", "status")
	m.CacheHitsTotal = c.RegisterCounter("cache_hits_total", "Snapshot cache hits", "cache")
	m.CacheMissesTotal = c.RegisterCounter("cache_misses_total", "Snapshot cache misses", "cache")

	m.EventsPublishedTotal = c.RegisterCounter("events_published_total", "Events published", "topic", "status")
	m.EventsConsumedTotal = c.RegisterCounter("events_consumed_total", "Events consumed", "topic", "status")
	m.EventProcessDuration = c.RegisterHistogram("event_process_duration_seconds", "Event handling duration", DefaultHTTPDurationBuckets, "topic")

	m.DBQueryDuration = c.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "operation")
	m.ErrorsTotal = c.RegisterCounter("errors_total", "Errors by component and code", "component", "code")

	return m
}

// ─── Recording helpers ───────────────────────────────────────────────────────

func (m *PipelineMetrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *PipelineMetrics) RecordIngest(source string, saved, failed int, duration time.Duration) {
	m.RecordsIngestedTotal.WithLabelValues(source, "saved").Add(float64(saved))
	if failed > 0 {
		m.RecordsIngestedTotal.WithLabelValues(source, "failed").Add(float64(failed))
	}
	m.IngestDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func (m *PipelineMetrics) RecordAnnotation(ok bool, duration time.Duration) {
	status := "success"
	if !ok {
		status = "failure"
	}
	m.AnnotationRequestsTotal.WithLabelValues(status).Inc()
	m.AnnotationDuration.WithLabelValues().Observe(duration.Seconds())
}

func (m *PipelineMetrics) RecordGrouping(metric, mode string, groups, supergroups int, duration time.Duration) {
	m.GroupingDuration.WithLabelValues(metric, mode).Observe(duration.Seconds())
	m.GroupsBuilt.WithLabelValues(metric).Set(float64(groups))
	m.SupergroupsBuilt.WithLabelValues(metric).Set(float64(supergroups))
}

func (m *PipelineMetrics) RecordCacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func (m *PipelineMetrics) RecordEventProcessed(topic string, duration time.Duration, ok bool) {
	status := "success"
	if !ok {
		status = "failure"
	}
	m.EventsConsumedTotal.WithLabelValues(topic, status).Inc()
	m.EventProcessDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

func (m *PipelineMetrics) RecordError(component, code string) {
	m.ErrorsTotal.WithLabelValues(component, code).Inc()
}
