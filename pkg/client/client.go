// Package client is a small SDK for the clinlink HTTP API. It is used by
// the CLI and is importable by external Go programs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// Version is the SDK version reported in the User-Agent header.
	Version = "0.1.0"

	defaultTimeout = 30 * time.Second
	apiPrefix      = "/api/v1"
)

// Client talks to a clinlink API server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient validates baseURL and constructs a Client.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("client: baseURL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("client: invalid baseURL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("client: baseURL scheme must be http or https")
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  "clinlink-client/" + Version,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clinlink: %s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
}

// IsNotFound reports whether the server answered 404.
func (e *APIError) IsNotFound() bool { return e.StatusCode == http.StatusNotFound }

// IsServerError reports whether the server answered 5xx.
func (e *APIError) IsServerError() bool { return e.StatusCode >= 500 }

// RecordInput is one record in an ingest request.
type RecordInput struct {
	ID           string   `json:"id"`
	Source       string   `json:"source"`
	Text         string   `json:"text,omitempty"`
	DiseaseCodes []string `json:"disease_codes,omitempty"`
	DrugCodes    []string `json:"drug_codes,omitempty"`
}

// IngestResult reports how many records were saved.
type IngestResult struct {
	Saved int `json:"saved"`
}

// AnnotationResult reports an annotation run's outcome.
type AnnotationResult struct {
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Updated   int           `json:"updated"`
	Elapsed   time.Duration `json:"elapsed"`
}

// GroupingRequest asks the server to build a grouping.
type GroupingRequest struct {
	Name      string  `json:"name"`
	Metric    string  `json:"metric,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// GroupingResult reports the sizes of a freshly built grouping.
type GroupingResult struct {
	Key         string `json:"key"`
	Records     int    `json:"records"`
	Groups      int    `json:"groups"`
	Supergroups int    `json:"supergroups"`
}

// GroupingSummary describes a stored grouping.
type GroupingSummary struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Metric      string    `json:"metric"`
	Threshold   float64   `json:"threshold"`
	Groups      int       `json:"groups"`
	Supergroups int       `json:"supergroups"`
	CreatedAt   time.Time `json:"created_at"`
}

// MembershipResult lists the groups one record appears in.
type MembershipResult struct {
	RecordID string     `json:"record_id"`
	Groups   [][]string `json:"groups"`
}

// IngestRecords uploads a batch of records.
func (c *Client) IngestRecords(ctx context.Context, records []RecordInput) (*IngestResult, error) {
	var out IngestResult
	body := map[string]any{"records": records}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/records", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunAnnotation triggers a server-side annotation run.
func (c *Client) RunAnnotation(ctx context.Context, resume bool) (*AnnotationResult, error) {
	var out AnnotationResult
	body := map[string]any{"resume": resume}
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/annotations/runs", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BuildGrouping builds and persists a grouping.
func (c *Client) BuildGrouping(ctx context.Context, req *GroupingRequest) (*GroupingResult, error) {
	var out GroupingResult
	if err := c.do(ctx, http.MethodPost, apiPrefix+"/groupings", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListGroupings lists the keys of stored groupings.
func (c *Client) ListGroupings(ctx context.Context) ([]string, error) {
	var out struct {
		Groupings []string `json:"groupings"`
	}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/groupings", nil, &out); err != nil {
		return nil, err
	}
	return out.Groupings, nil
}

// GetGrouping fetches one grouping's summary.
func (c *Client) GetGrouping(ctx context.Context, key string) (*GroupingSummary, error) {
	var out GroupingSummary
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/groupings/"+url.PathEscape(key), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetGroups fetches the member lists of a grouping's groups.
func (c *Client) GetGroups(ctx context.Context, key string) ([][]string, error) {
	var out struct {
		Groups [][]string `json:"groups"`
	}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/groupings/"+url.PathEscape(key)+"/groups", nil, &out); err != nil {
		return nil, err
	}
	return out.Groups, nil
}

// GetSupergroups fetches the member lists of a grouping's supergroups.
func (c *Client) GetSupergroups(ctx context.Context, key string) ([][]string, error) {
	var out struct {
		Supergroups [][]string `json:"supergroups"`
	}
	if err := c.do(ctx, http.MethodGet, apiPrefix+"/groupings/"+url.PathEscape(key)+"/supergroups", nil, &out); err != nil {
		return nil, err
	}
	return out.Supergroups, nil
}

// RecordMembership fetches the groups a record belongs to.
func (c *Client) RecordMembership(ctx context.Context, key, recordID string) (*MembershipResult, error) {
	var out MembershipResult
	path := apiPrefix + "/groupings/" + url.PathEscape(key) + "/records/" + url.PathEscape(recordID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one JSON request and decodes the response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(payload, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(payload))
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
