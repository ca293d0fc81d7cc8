package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlink/clinlink/internal/infrastructure/monitoring/logging"
	"github.com/clinlink/clinlink/pkg/errors"
)

func newTestCollector(t *testing.T) Collector {
	t.Helper()
	c, err := NewCollector(CollectorConfig{Namespace: "clinlink_test"}, logging.NewNopLogger())
	require.NoError(t, err)
	return c
}

func scrape(t *testing.T, c Collector) string {
	t.Helper()
	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestNewCollector(t *testing.T) {
	t.Run("valid_config", func(t *testing.T) {
		c := newTestCollector(t)
		assert.NotNil(t, c)
	})

	t.Run("empty_namespace", func(t *testing.T) {
		_, err := NewCollector(CollectorConfig{}, nil)
		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeValidation, errors.GetCode(err))
	})

	t.Run("go_metrics_enabled", func(t *testing.T) {
		c, err := NewCollector(CollectorConfig{Namespace: "clinlink_test", EnableGoMetrics: true}, nil)
		require.NoError(t, err)
		assert.Contains(t, scrape(t, c), "go_goroutines")
	})
}

func TestRegisterCounter(t *testing.T) {
	c := newTestCollector(t)

	counter := c.RegisterCounter("annotations_done_total", "Annotations done", "status")
	counter.WithLabelValues("success").Inc()
	counter.WithLabelValues("success").Add(2)
	counter.WithLabelValues("failure").Inc()

	out := scrape(t, c)
	assert.Contains(t, out, `clinlink_test_annotations_done_total{status="success"} 3`)
	assert.Contains(t, out, `clinlink_test_annotations_done_total{status="failure"} 1`)
}

func TestRegisterCounter_DuplicateReturnsSameSeries(t *testing.T) {
	c := newTestCollector(t)

	first := c.RegisterCounter("dup_total", "Duplicate registration", "k")
	second := c.RegisterCounter("dup_total", "Duplicate registration", "k")
	first.WithLabelValues("a").Inc()
	second.WithLabelValues("a").Inc()

	assert.Contains(t, scrape(t, c), `clinlink_test_dup_total{k="a"} 2`)
}

func TestRegisterCounter_TypeMismatchFallsBackToNoop(t *testing.T) {
	c := newTestCollector(t)

	c.RegisterGauge("mixed_metric", "First registered as gauge", "k")
	counter := c.RegisterCounter("mixed_metric", "Now requested as counter", "k")

	// Must not panic; the no-op swallows the increment.
	counter.WithLabelValues("a").Inc()
	assert.NotContains(t, scrape(t, c), `mixed_metric{k="a"} 1`)
}

func TestRegisterGauge(t *testing.T) {
	c := newTestCollector(t)

	gauge := c.RegisterGauge("groups_current", "Current group count", "grouping")
	gauge.WithLabelValues("cosine").Set(42)
	gauge.WithLabelValues("cosine").Inc()
	gauge.WithLabelValues("cosine").Dec()

	assert.Contains(t, scrape(t, c), `clinlink_test_groups_current{grouping="cosine"} 42`)
}

func TestRegisterHistogram(t *testing.T) {
	c := newTestCollector(t)

	hist := c.RegisterHistogram("run_seconds", "Run duration", []float64{1, 10, 100}, "kind")
	hist.WithLabelValues("grouping").Observe(5)

	out := scrape(t, c)
	assert.Contains(t, out, `clinlink_test_run_seconds_bucket{kind="grouping",le="10"} 1`)
	assert.Contains(t, out, `clinlink_test_run_seconds_count{kind="grouping"} 1`)
}

func TestTimer(t *testing.T) {
	c := newTestCollector(t)
	hist := c.RegisterHistogram("timed_seconds", "Timed section", []float64{.001, 1})

	timer := NewTimer(hist.WithLabelValues())
	time.Sleep(2 * time.Millisecond)
	timer.ObserveDuration()

	assert.Contains(t, scrape(t, c), `clinlink_test_timed_seconds_count 1`)
}

func TestTimer_NilHistogram(t *testing.T) {
	timer := NewTimer(nil)
	assert.NotPanics(t, timer.ObserveDuration)
}
