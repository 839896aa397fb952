// Package httpfetch is the low-level JSON-over-HTTP helper used by tools.
package httpfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/klubi/relay/internal/apperrors"
)

// DefaultTimeout bounds a request when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Options describes one request.
type Options struct {
	URL     string
	Method  string            // default GET
	Headers map[string]string // merged over Content-Type: application/json
	Body    interface{}       // JSON-encoded when non-nil
	Timeout time.Duration     // default DefaultTimeout
}

// Response is a decoded reply.
type Response[T any] struct {
	Data    T
	Status  int
	Headers map[string]string
}

// Client wraps an http.Client. The zero value is not usable; use New.
type Client struct {
	httpClient *http.Client
	logger     *zap.Logger
}

// New returns a Client. A nil httpClient uses a fresh http.Client without its
// own timeout; per-request timeouts come from Options.
func New(httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{httpClient: httpClient, logger: logger}
}

// Fetch performs the request and decodes a JSON body into T.
//
// A non-2xx reply fails with an HTTP_ERROR carrying that status. Any other
// failure (encoding, transport, timeout, decoding) fails with an HTTP_ERROR
// that has no status.
func Fetch[T any](ctx context.Context, c *Client, opts Options) (*Response[T], error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if opts.Body != nil {
		buf, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, transportError(fmt.Errorf("marshal request body: %w", err))
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, opts.URL, body)
	if err != nil {
		return nil, transportError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("http fetch",
		zap.String("method", method),
		zap.String("url", opts.URL),
		zap.Duration("timeout", timeout),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.Newf(apperrors.CodeHTTP, "HTTP request failed: %s", statusText(resp)).
			WithStatus(resp.StatusCode)
	}

	out := &Response[T]{
		Status:  resp.StatusCode,
		Headers: flattenHeaders(resp.Header),
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out.Data); err != nil {
			return nil, transportError(fmt.Errorf("decode response body: %w", err))
		}
	}
	return out, nil
}

func transportError(err error) *apperrors.AppError {
	return apperrors.Newf(apperrors.CodeHTTP, "HTTP request failed: %v", err).
		WithStatus(0).
		WithCause(err)
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}

// flattenHeaders keeps the first value of each header under its canonical name.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[http.CanonicalHeaderKey(k)] = v[0]
		}
	}
	return out
}
