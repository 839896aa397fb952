// Package client provides a Go client library for the relay API server.
package client

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

	v1alpha1 "github.com/klubi/relay/pkg/apis/v1alpha1"
)

// Client communicates with the relay API server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new relay API client pointing at the given base URL
// (e.g. "http://127.0.0.1:7420").
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		// Runs are orchestrated synchronously by the server.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// BaseURL returns the server address the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string `json:"error"`
	Code       string `json:"code,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// ToolDescriptor is a tool's name, description and parameter schema as the
// server reports it.
type ToolDescriptor struct {
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Parameters  ToolSchema `json:"parameters" yaml:"parameters"`
}

// ToolSchema lists a tool's input parameters.
type ToolSchema struct {
	Params []ToolParam `json:"params" yaml:"params"`
}

// ToolParam is one input parameter of a tool.
type ToolParam struct {
	Name        string   `json:"name" yaml:"name"`
	Type        string   `json:"type" yaml:"type"`
	Items       string   `json:"items,omitempty" yaml:"items,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool     `json:"required" yaml:"required"`
	Enum        []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty" yaml:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty" yaml:"maximum,omitempty"`
	MinLength   *int     `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength   *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Default     string   `json:"default,omitempty" yaml:"default,omitempty"`
}

// ListOptions filter ListTaskRuns.
type ListOptions struct {
	Phase v1alpha1.TaskRunPhase
	Type  v1alpha1.TaskType
	Limit int
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// doRequest builds and executes an HTTP request.
// If body is non-nil it is JSON-encoded and sent as the request body.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

// doJSON executes a request, checks for a 2xx status, and JSON-decodes
// the response body into target (when target is non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, target interface{}) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(respBody))
		}
		return apiErr
	}

	if target != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, target); err != nil {
			return fmt.Errorf("decode response body: %w", err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

// Healthz checks whether the API server is healthy.
func (c *Client) Healthz(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodGet, "/healthz", nil, nil)
}

// ---------------------------------------------------------------------------
// Orchestration
// ---------------------------------------------------------------------------

// Orchestrate runs task on the server without recording it.
func (c *Client) Orchestrate(ctx context.Context, task v1alpha1.Task) (*v1alpha1.TaskResult, error) {
	var out v1alpha1.TaskResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1alpha1/orchestrate", task, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ---------------------------------------------------------------------------
// TaskRuns
// ---------------------------------------------------------------------------

// CreateTaskRun submits run and returns it with its recorded outcome.
func (c *Client) CreateTaskRun(ctx context.Context, run *v1alpha1.TaskRun) (*v1alpha1.TaskRun, error) {
	var out v1alpha1.TaskRun
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1alpha1/taskruns", run, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTaskRun retrieves a run by name.
func (c *Client) GetTaskRun(ctx context.Context, name string) (*v1alpha1.TaskRun, error) {
	var out v1alpha1.TaskRun
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1alpha1/taskruns/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTaskRuns returns runs matching opts, newest first.
func (c *Client) ListTaskRuns(ctx context.Context, opts ListOptions) ([]v1alpha1.TaskRun, error) {
	q := url.Values{}
	if opts.Phase != "" {
		q.Set("phase", string(opts.Phase))
	}
	if opts.Type != "" {
		q.Set("type", string(opts.Type))
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/api/v1alpha1/taskruns"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out []v1alpha1.TaskRun
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteTaskRun removes a run by name.
func (c *Client) DeleteTaskRun(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1alpha1/taskruns/"+url.PathEscape(name), nil, nil)
}

// ---------------------------------------------------------------------------
// Tools
// ---------------------------------------------------------------------------

// ListTools returns every tool descriptor in name order.
func (c *Client) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	var out []ToolDescriptor
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1alpha1/tools", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTool returns the descriptor of one tool.
func (c *Client) GetTool(ctx context.Context, name string) (*ToolDescriptor, error) {
	var out ToolDescriptor
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1alpha1/tools/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InvokeTool executes a tool with input and returns its raw JSON output.
func (c *Client) InvokeTool(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
	if len(input) == 0 {
		input = json.RawMessage("{}")
	}
	var out json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1alpha1/tools/"+url.PathEscape(name)+"/invoke", input, &out); err != nil {
		return nil, err
	}
	return out, nil
}
