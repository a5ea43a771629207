// Package docclient is a small HTTP client for the document analysis API,
// including a polling helper that waits for a document to reach a terminal
// state.
package docclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Status mirrors the server-side document lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether no further transitions will occur.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StatusSnapshot is one observed state of a document.
type StatusSnapshot struct {
	DocumentID  string     `json:"document_id"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	Stage       string     `json:"stage"`
	Message     string     `json:"message"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// Issue is one finding the analysis reported for a document.
type Issue struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Field       string `json:"field,omitempty"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// AnalysisResult is the completed analysis payload.
type AnalysisResult struct {
	FormType          string            `json:"form_type"`
	Confidence        float64           `json:"confidence"`
	ExtractedFields   map[string]string `json:"extracted_fields"`
	DetectedIssues    []Issue           `json:"detected_issues"`
	SimplifiedSummary string            `json:"simplified_summary"`
	CompletenessScore float64           `json:"completeness_score"`
	RiskLevel         string            `json:"risk_level"`
	AnalysisPath      string            `json:"analysis_path,omitempty"`
}

// Results is the result projection for a completed document.
type Results struct {
	DocumentID  string          `json:"document_id"`
	Status      Status          `json:"status"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	Results     *AnalysisResult `json:"results"`
}

// APIError carries a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client, e.g. to adjust
// timeouts or install a test transport.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c
}

// Upload submits a document for analysis and returns the initial pending
// snapshot. Processing continues asynchronously; use Poller to wait for it.
func (c *Client) Upload(ctx context.Context, filename string, body io.Reader) (StatusSnapshot, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return StatusSnapshot{}, fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return StatusSnapshot{}, fmt.Errorf("copy document body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return StatusSnapshot{}, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/documents", &buf)
	if err != nil {
		return StatusSnapshot{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var snapshot StatusSnapshot
	if err := c.do(req, http.StatusAccepted, &snapshot); err != nil {
		return StatusSnapshot{}, err
	}
	return snapshot, nil
}

// Status fetches the current status projection for a document.
func (c *Client) Status(ctx context.Context, id string) (StatusSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.documentURL(id, "status"), nil)
	if err != nil {
		return StatusSnapshot{}, err
	}

	var snapshot StatusSnapshot
	if err := c.do(req, http.StatusOK, &snapshot); err != nil {
		return StatusSnapshot{}, err
	}
	return snapshot, nil
}

// Results fetches the analysis results of a completed document. The server
// answers 409 while processing has not finished.
func (c *Client) Results(ctx context.Context, id string) (Results, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.documentURL(id, "results"), nil)
	if err != nil {
		return Results{}, err
	}

	var results Results
	if err := c.do(req, http.StatusOK, &results); err != nil {
		return Results{}, err
	}
	return results, nil
}

// Reprocess re-queues a failed document for analysis.
func (c *Client) Reprocess(ctx context.Context, id string) (StatusSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.documentURL(id, "process"), nil)
	if err != nil {
		return StatusSnapshot{}, err
	}

	var snapshot StatusSnapshot
	if err := c.do(req, http.StatusAccepted, &snapshot); err != nil {
		return StatusSnapshot{}, err
	}
	return snapshot, nil
}

// Delete removes a document and its stored blob. It reports whether the
// document existed; deleting an absent document is not an error.
func (c *Client) Delete(ctx context.Context, id string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.documentURL(id, ""), nil)
	if err != nil {
		return false, err
	}

	var payload struct {
		Deleted bool `json:"deleted"`
	}
	if err := c.do(req, http.StatusOK, &payload); err != nil {
		return false, err
	}
	return payload.Deleted, nil
}

func (c *Client) documentURL(id, action string) string {
	u := c.baseURL + "/v1/documents/" + url.PathEscape(id)
	if action != "" {
		u += "/" + action
	}
	return u
}

func (c *Client) do(req *http.Request, wantStatus int, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload)
		if payload.Error == "" {
			payload.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
