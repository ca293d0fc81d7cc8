package prometheus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewPipelineMetrics(t *testing.T) {
	c := newTestCollector(t)
	m := NewPipelineMetrics(c)

	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.GroupingDuration)
	assert.NotNil(t, m.SnapshotSavesTotal)
	assert.NotNil(t, m.EventsPublishedTotal)
}

func TestPipelineMetrics_RecordHTTPRequest(t *testing.T) {
	c := newTestCollector(t)
	m := NewPipelineMetrics(c)

	m.RecordHTTPRequest("GET", "/v1/groupings", 200, 30*time.Millisecond)
	m.RecordHTTPRequest("GET", "/v1/groupings", 200, 10*time.Millisecond)
	m.RecordHTTPRequest("GET", "/v1/groupings", 404, time.Millisecond)

	out := scrape(t, c)
	assert.Contains(t, out, `clinlink_test_http_requests_total{method="GET",path="/v1/groupings",status_code="200"} 2`)
	assert.Contains(t, out, `clinlink_test_http_requests_total{method="GET",path="/v1/groupings",status_code="404"} 1`)
	assert.Contains(t, out, `clinlink_test_http_request_duration_seconds_count{method="GET",path="/v1/groupings"} 3`)
}

func TestPipelineMetrics_RecordIngest(t *testing.T) {
	c := newTestCollector(t)
	m := NewPipelineMetrics(c)

	m.RecordIngest("ctgov", 95, 5, 12*time.Second)

	out := scrape(t, c)
	assert.Contains(t, out, `clinlink_test_records_ingested_total{source="ctgov",status="saved"} 95`)
	assert.Contains(t, out, `clinlink_test_records_ingested_total{source="ctgov",status="failed"} 5`)
}

func TestPipelineMetrics_RecordIngest_NoFailures(t *testing.T) {
	c := newTestCollector(t)
	m := NewPipelineMetrics(c)

	m.RecordIngest("pubmed", 10, 0, time.Second)

	out := scrape(t, c)
	assert.NotContains(t, out, `status="failed"`)
}

func TestPipelineMetrics_RecordAnnotation(t *testing.T) {
	c := newTestCollector(t)
	m := NewPipelineMetrics(c)

	m.RecordAnnotation(true, 80*time.Millisecond)
	m.RecordAnnotation(false, 2*time.Second)

	out := scrape(t, c)
	assert.Contains(t, out, `clinlink_test_annotation_requests_total{status="success"} 1`)
	assert.Contains(t, out, `clinlink_test_annotation_requests_total{status="failure"} 1`)
}

func TestPipelineMetrics_RecordGrouping(t *testing.T) {
	c := newTestCollector(t)
	m := NewPipelineMetrics(c)

	m.RecordGrouping("cosine", "chunked", 120, 97, 45*time.Second)

	out := scrape(t, c)
	assert.Contains(t, out, `clinlink_test_groups_built{grouping="cosine"} 120`)
	assert.Contains(t, out, `clinlink_test_supergroups_built{grouping="cosine"} 97`)
	assert.Contains(t, out, `clinlink_test_grouping_duration_seconds_count{metric="cosine",mode="chunked"} 1`)
}

func TestPipelineMetrics_RecordCacheAccess(t *testing.T) {
	c := newTestCollector(t)
	m := NewPipelineMetrics(c)

	m.RecordCacheAccess("snapshot", true)
	m.RecordCacheAccess("snapshot", true)
	m.RecordCacheAccess("snapshot", false)

	out := scrape(t, c)
	assert.Contains(t, out, `clinlink_test_cache_hits_total{cache="snapshot"} 2`)
	assert.Contains(t, out, `clinlink_test_cache_misses_total{cache="snapshot"} 1`)
}

func TestPipelineMetrics_RecordEventProcessed(t *testing.T) {
	c := newTestCollector(t)
	m := NewPipelineMetrics(c)

	m.RecordEventProcessed("annotation.requested", 40*time.Millisecond, true)
	m.RecordEventProcessed("annotation.requested", 25*time.Millisecond, false)

	out := scrape(t, c)
	assert.Contains(t, out, `clinlink_test_events_consumed_total{status="success",topic="annotation.requested"} 1`)
	assert.Contains(t, out, `clinlink_test_events_consumed_total{status="failure",topic="annotation.requested"} 1`)
	assert.Contains(t, out, `clinlink_test_event_process_duration_seconds_count{topic="annotation.requested"} 2`)
}

func TestPipelineMetrics_RecordError(t *testing.T) {
	c := newTestCollector(t)
	m := NewPipelineMetrics(c)

	m.RecordError("grouping", "GRP_003")

	assert.Contains(t, scrape(t, c), `clinlink_test_errors_total{code="GRP_003",component="grouping"} 1`)
}
