package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlink/clinlink/internal/application/linkage"
	"github.com/clinlink/clinlink/internal/domain/grouping"
	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/prometheus"
	"github.com/clinlink/clinlink/internal/interfaces/http/handlers"
	"github.com/clinlink/clinlink/pkg/errors"
)

// stubService implements linkage.Service with canned responses.
type stubService struct {
	ingestRes   *linkage.IngestResult
	ingestErr   error
	groupingRes *linkage.GroupingResult
	summaries   map[string]*linkage.GroupingSummary
	groups      map[string][]grouping.Group
	keys        []string
}

func (s *stubService) IngestRecords(ctx context.Context, input *linkage.IngestInput) (*linkage.IngestResult, error) {
	if s.ingestErr != nil {
		return nil, s.ingestErr
	}
	return s.ingestRes, nil
}

func (s *stubService) RunAnnotation(ctx context.Context, input *linkage.AnnotationInput) (*linkage.AnnotationResult, error) {
	return &linkage.AnnotationResult{Processed: 3}, nil
}

func (s *stubService) AnnotateRecord(ctx context.Context, recordID string) error { return nil }

func (s *stubService) BuildGrouping(ctx context.Context, input *linkage.GroupingInput) (*linkage.GroupingResult, error) {
	if s.groupingRes == nil {
		return nil, errors.New(errors.ErrCodeGroupingUnknownMetric, "unknown metric")
	}
	return s.groupingRes, nil
}

func (s *stubService) GetGrouping(ctx context.Context, key string) (*linkage.GroupingSummary, error) {
	summary, ok := s.summaries[key]
	if !ok {
		return nil, errors.New(errors.ErrCodeSnapshotNotFound, "snapshot not found")
	}
	return summary, nil
}

func (s *stubService) ListGroupings(ctx context.Context) ([]string, error) {
	return s.keys, nil
}

func (s *stubService) GetGroups(ctx context.Context, key string) ([]grouping.Group, error) {
	groups, ok := s.groups[key]
	if !ok {
		return nil, errors.New(errors.ErrCodeSnapshotNotFound, "snapshot not found")
	}
	return groups, nil
}

func (s *stubService) GetSupergroups(ctx context.Context, key string) ([]grouping.Group, error) {
	return s.GetGroups(ctx, key)
}

func (s *stubService) RecordMembership(ctx context.Context, key, recordID string) (*linkage.MembershipResult, error) {
	groups, ok := s.groups[key]
	if !ok {
		return nil, errors.New(errors.ErrCodeSnapshotNotFound, "snapshot not found")
	}
	return &linkage.MembershipResult{RecordID: recordID, Groups: groups}, nil
}

func newTestRouter(t *testing.T, svc linkage.Service) *gin.Engine {
	t.Helper()
	return NewRouter(RouterConfig{
		LinkageHandler: handlers.NewLinkageHandler(svc),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.ReadinessCheck{
			"store": func(ctx context.Context) error { return nil },
		}),
		Mode: gin.TestMode,
	})
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	r := newTestRouter(t, &stubService{})

	w := doRequest(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ReadinessFailure(t *testing.T) {
	r := NewRouter(RouterConfig{
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.ReadinessCheck{
			"database": func(ctx context.Context) error {
				return errors.New(errors.ErrCodeDatabaseError, "connection refused")
			},
		}),
		Mode: gin.TestMode,
	})

	w := doRequest(r, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestRouter_RequestIDHeader(t *testing.T) {
	r := newTestRouter(t, &stubService{})

	w := doRequest(r, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "fixed-id")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "fixed-id", w.Header().Get("X-Request-ID"))
}

func TestIngestRecords(t *testing.T) {
	r := newTestRouter(t, &stubService{ingestRes: &linkage.IngestResult{Saved: 2}})

	w := doRequest(r, http.MethodPost, "/api/v1/records",
		`{"records":[{"id":"NCT001","source":"ctgov"},{"id":"PMID1","source":"pubmed"}]}`)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"saved":2}`, w.Body.String())
}

func TestIngestRecords_MalformedBody(t *testing.T) {
	r := newTestRouter(t, &stubService{})

	w := doRequest(r, http.MethodPost, "/api/v1/records", `{broken`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIngestRecords_ValidationErrorMapped(t *testing.T) {
	r := newTestRouter(t, &stubService{
		ingestErr: errors.New(errors.ErrCodeValidation, "record id is required"),
	})

	w := doRequest(r, http.MethodPost, "/api/v1/records", `{"records":[{"source":"ctgov"}]}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "COMMON_006", resp.Code)
}

func TestRunAnnotation_EmptyBody(t *testing.T) {
	r := newTestRouter(t, &stubService{})

	w := doRequest(r, http.MethodPost, "/api/v1/annotations/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"processed":3`)
}

func TestBuildGrouping(t *testing.T) {
	r := newTestRouter(t, &stubService{
		groupingRes: &linkage.GroupingResult{Key: "trials_cosine_04", Records: 10, Groups: 3, Supergroups: 2},
	})

	w := doRequest(r, http.MethodPost, "/api/v1/groupings", `{"name":"trials"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "trials_cosine_04")
}

func TestBuildGrouping_UnknownMetricMapped(t *testing.T) {
	r := newTestRouter(t, &stubService{})

	w := doRequest(r, http.MethodPost, "/api/v1/groupings", `{"name":"t","metric":"euclidean"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "GRP_001", resp.Code)
}

func TestGetGrouping(t *testing.T) {
	r := newTestRouter(t, &stubService{
		summaries: map[string]*linkage.GroupingSummary{
			"trials_cosine_04": {Key: "trials_cosine_04", Name: "trials", Metric: "cosine", Threshold: 0.4},
		},
	})

	w := doRequest(r, http.MethodGet, "/api/v1/groupings/trials_cosine_04", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"metric":"cosine"`)
}

func TestGetGrouping_NotFound(t *testing.T) {
	r := newTestRouter(t, &stubService{})

	w := doRequest(r, http.MethodGet, "/api/v1/groupings/absent", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "STO_002", resp.Code)
}

func TestGetGroups(t *testing.T) {
	r := newTestRouter(t, &stubService{
		groups: map[string][]grouping.Group{
			"trials_cosine_04": {{"a", "b"}, {"c", "d", "e"}},
		},
	})

	w := doRequest(r, http.MethodGet, "/api/v1/groupings/trials_cosine_04/groups", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"groups":[["a","b"],["c","d","e"]]}`, w.Body.String())
}

func TestRecordMembership(t *testing.T) {
	r := newTestRouter(t, &stubService{
		groups: map[string][]grouping.Group{
			"trials_cosine_04": {{"a", "b"}},
		},
	})

	w := doRequest(r, http.MethodGet, "/api/v1/groupings/trials_cosine_04/records/a", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"record_id":"a"`)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	collector, err := prometheus.NewCollector(prometheus.CollectorConfig{Namespace: "clinlink_test"}, nil)
	require.NoError(t, err)
	m := prometheus.NewPipelineMetrics(collector)

	r := NewRouter(RouterConfig{
		LinkageHandler: handlers.NewLinkageHandler(&stubService{}),
		Metrics:        m,
		MetricsHandler: collector.Handler(),
		Mode:           gin.TestMode,
	})

	// Drive one API request so the HTTP counters have a sample.
	w := doRequest(r, http.MethodGet, "/api/v1/groupings", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "clinlink_test_http_requests_total")
}

func TestServer_StartAndShutdown(t *testing.T) {
	r := newTestRouter(t, &stubService{})
	srv := NewServer(ServerConfig{Port: 0, ShutdownTimeout: time.Second}, r, nil)

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, srv.Shutdown(context.Background()))

	select {
	case err := <-done:
		assert.NoError(t, err, "ErrServerClosed is a clean shutdown")
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
