package annotator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinlink/clinlink/pkg/errors"
)

func TestClientConfig_Validate(t *testing.T) {
	cfg := DefaultClientConfig()
	cfg.BaseURL = "http://localhost:8888/plain"
	assert.NoError(t, cfg.Validate())

	cfg.BaseURL = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultClientConfig()
	cfg.BaseURL = "http://localhost"
	cfg.Timeout = 0
	assert.Error(t, cfg.Validate())
}

func TestClient_Annotate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "aspirin for migraine", r.PostForm.Get("sample_text"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleDoc))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second}, nil)
	require.NoError(t, err)

	a, err := c.Annotate(context.Background(), "aspirin for migraine")
	require.NoError(t, err)
	assert.Len(t, a.Denotations, 2)
}

func TestClient_Annotate_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second}, nil)
	require.NoError(t, err)

	_, err = c.Annotate(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAnnotationRequestFailed, errors.GetCode(err))
}

func TestClient_Annotate_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second}, nil)
	require.NoError(t, err)

	_, err = c.Annotate(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAnnotationDecodeFailed, errors.GetCode(err))
}

func TestClient_Annotate_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // a closed server refuses connections

	c, err := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second}, nil)
	require.NoError(t, err)

	_, err = c.Annotate(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAnnotationRequestFailed, errors.GetCode(err))
}
