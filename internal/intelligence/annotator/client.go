package annotator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clinlink/clinlink/pkg/errors"
)

// ClientConfig holds the connection parameters of the NER service.
type ClientConfig struct {
	// BaseURL is the annotation endpoint, e.g. "https://bern.korea.ac.kr/plain".
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// Timeout bounds a single annotation request.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxBodyBytes caps the response size read into memory.
	MaxBodyBytes int64 `json:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// DefaultClientConfig returns the production defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:      30 * time.Second,
		MaxBodyBytes: 8 << 20,
	}
}

// Validate checks the configuration for consistency.
func (c ClientConfig) Validate() error {
	if c.BaseURL == "" {
		return errors.New(errors.ErrCodeValidation, "annotator base_url is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "annotator base_url is not a valid URL")
	}
	if c.Timeout <= 0 {
		return errors.New(errors.ErrCodeValidation, "annotator timeout must be positive")
	}
	return nil
}

// Client calls the remote NER service.  One request annotates one record's
// text and returns the raw annotation document.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

// NewClient constructs a Client.  A nil httpClient selects a default client
// with the configured timeout.
func NewClient(cfg ClientConfig, httpClient *http.Client) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultClientConfig().MaxBodyBytes
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient}, nil
}

// Annotate sends one text to the NER service and decodes the annotation.
// Transport failures, non-2xx statuses and undecodable bodies all surface as
// annotation errors the runner counts against its consecutive-failure limit.
func (c *Client) Annotate(ctx context.Context, text string) (*Annotation, error) {
	form := url.Values{"sample_text": {text}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAnnotationRequestFailed,
			"cannot build annotation request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAnnotationRequestFailed,
			"annotation request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAnnotationRequestFailed,
			"cannot read annotation response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.New(errors.ErrCodeAnnotationRequestFailed,
			"annotation service returned an error status").
			WithDetail(fmt.Sprintf("status %d", resp.StatusCode))
	}

	return ParseAnnotation(body)
}
