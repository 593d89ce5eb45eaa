// Package api is a thin typed client for the folio REST backend.
// Each method maps to exactly one HTTP request; there are no retries and no caching.
package api

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

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/errors"
)

// RequestIDHeader carries a per-request ULID to the backend.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody caps how much of a failed response is read for its message.
const maxErrorBody = 64 << 10

// Client performs JSON requests against the backend.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTimeout bounds each request. Zero means no per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New creates a Client for the backend rooted at baseURL (without the /api suffix).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET and decodes the response into out (if non-nil).
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, out)
}

// Delete issues a DELETE. Response bodies, if any, are discarded.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	fullPath := "/api" + path
	target := c.baseURL + fullPath
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.NewInternal(fmt.Errorf("encode request body: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("build request: %w", err))
	}
	requestID := ulid.Make().String()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed",
			zap.String("method", method),
			zap.String("path", fullPath),
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		return errors.NewUpstream(method, fullPath, http.StatusBadGateway, err.Error())
	}
	defer resp.Body.Close()

	c.logger.Debug("backend request",
		zap.String("method", method),
		zap.String("path", fullPath),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
		zap.String("request_id", requestID),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(method, fullPath, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewUpstream(method, fullPath, http.StatusBadGateway, fmt.Sprintf("read response: %v", err))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.NewUpstream(method, fullPath, http.StatusBadGateway, fmt.Sprintf("decode response: %v", err))
	}
	return nil
}

// responseError maps a non-2xx response to a FolioError, keeping the backend's
// message when the body carries one.
func responseError(method, path string, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := ""
	if json.Unmarshal(data, &payload) == nil {
		msg = payload.Message
		if msg == "" {
			msg = payload.Error
		}
	}

	if resp.StatusCode == http.StatusNotFound {
		fErr := errors.NewNotFound("resource", path)
		if msg != "" {
			fErr.Message = msg
		}
		return fErr
	}
	return errors.NewUpstream(method, path, resp.StatusCode, msg)
}

// idPath joins a collection path and an id.
func idPath(collection string, id int64) string {
	return fmt.Sprintf("%s/%d", collection, id)
}

// nameQuery builds the ?name= query used by search endpoints.
func nameQuery(name string) url.Values {
	return url.Values{"name": []string{name}}
}
