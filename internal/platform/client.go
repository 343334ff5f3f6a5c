// Package platform is the HTTP client for the external platform's bulk
// query and write API. Failures are split into two kinds: connection
// errors (the platform was never reached, safe to retry the whole run)
// and request errors (the platform answered with a non-2xx status).
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hyperengineering/fieldbridge/internal/record"
)

// DefaultTimeout bounds each HTTP request.
const DefaultTimeout = 30 * time.Second

// DefaultPageSize is the query page size when the caller does not set one.
const DefaultPageSize = 200

// ConnectionError means the platform could not be reached at all. Runs
// treat it as fatal for the current phase and leave cursors untouched.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("platform unreachable at %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// RequestError is a non-2xx answer from the platform.
type RequestError struct {
	Status  int
	Code    string
	Message string
}

func (e *RequestError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform request failed: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("platform request failed: %d: %s", e.Status, e.Message)
}

// Retryable reports whether the status indicates a transient condition.
func (e *RequestError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Record is one platform record keyed by external field names. The
// platform always includes Id and LastModifiedDate.
type Record map[string]any

// ID returns the record's platform identifier.
func (r Record) ID() (string, bool) {
	s, ok := r["Id"].(string)
	return s, ok && s != ""
}

// ModifiedAt returns the record's LastModifiedDate.
func (r Record) ModifiedAt() (time.Time, error) {
	raw, ok := r["LastModifiedDate"].(string)
	if !ok || raw == "" {
		return time.Time{}, fmt.Errorf("record missing LastModifiedDate")
	}
	return record.ParseTime(raw)
}

// Page is one page of query results. NextOffset is nil on the last page.
type Page struct {
	Records    []Record `json:"records"`
	NextOffset *int     `json:"nextOffset"`
}

// WriteOp is one record in a bulk write request.
type WriteOp struct {
	Op     string         `json:"op"` // "create" or "update"
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields"`
}

// WriteResult is the per-record outcome of a bulk write, positionally
// aligned with the request's operations.
type WriteResult struct {
	Success   bool   `json:"success"`
	ID        string `json:"id,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Retryable reports whether the rejection looks transient. The platform
// uses LOCK_TIMEOUT and SERVER_UNAVAILABLE for contention it expects
// callers to retry.
func (r WriteResult) Retryable() bool {
	switch r.ErrorCode {
	case "LOCK_TIMEOUT", "SERVER_UNAVAILABLE", "STORAGE_LIMIT_EXCEEDED":
		return true
	}
	return false
}

// Client talks to the platform's bulk API.
type Client struct {
	baseURL  string
	apiKey   string
	pageSize int
	http     *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithPageSize sets the query page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// NewClient creates a platform client.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:  baseURL,
		apiKey:   apiKey,
		pageSize: DefaultPageSize,
		http: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ping checks connectivity to the platform.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/services/bulk/v1/health", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return &ConnectionError{URL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readRequestError(resp)
	}
	return nil
}

// QueryPage fetches one page of records for an external entity, filtered
// to those modified strictly after since (zero since means all records).
func (c *Client) QueryPage(ctx context.Context, entity string, since time.Time, offset int) (*Page, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if !since.IsZero() {
		q.Set("modifiedSince", record.FormatTime(since))
	}

	path := fmt.Sprintf("/services/bulk/v1/query/%s?%s", url.PathEscape(entity), q.Encode())
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readRequestError(resp)
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode query page for %s: %w", entity, err)
	}
	return &page, nil
}

// QueryAll walks every page for an entity and returns the combined
// records. limit > 0 stops after that many records.
func (c *Client) QueryAll(ctx context.Context, entity string, since time.Time, limit int) ([]Record, error) {
	var all []Record
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := c.QueryPage(ctx, entity, since, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Records...)

		if limit > 0 && len(all) >= limit {
			return all[:limit], nil
		}
		if page.NextOffset == nil {
			return all, nil
		}
		offset = *page.NextOffset
	}
}

// Write submits a bulk write for one external entity. The results are
// positionally aligned with ops; a short or oversized result set is an
// error because outcomes could no longer be attributed.
func (c *Client) Write(ctx context.Context, entity string, ops []WriteOp) ([]WriteResult, error) {
	body := struct {
		Operations []WriteOp `json:"operations"`
	}{Operations: ops}

	path := "/services/bulk/v1/write/" + url.PathEscape(entity)
	resp, err := c.send(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readRequestError(resp)
	}

	var out struct {
		Results []WriteResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode write results for %s: %w", entity, err)
	}
	if len(out.Results) != len(ops) {
		return nil, fmt.Errorf("write results for %s: got %d results for %d operations", entity, len(out.Results), len(ops))
	}
	return out.Results, nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &ConnectionError{URL: c.baseURL, Err: err}
	}
	return resp, nil
}

func readRequestError(resp *http.Response) error {
	reqErr := &RequestError{Status: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8192))
	if err != nil {
		return reqErr
	}
	var parsed struct {
		ErrorCode string `json:"errorCode"`
		Message   string `json:"message"`
	}
	if json.Unmarshal(data, &parsed) == nil && (parsed.ErrorCode != "" || parsed.Message != "") {
		reqErr.Code = parsed.ErrorCode
		reqErr.Message = parsed.Message
	} else {
		reqErr.Message = string(data)
	}
	return reqErr
}
