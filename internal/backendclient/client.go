// Package backendclient implements the typed, failure-tolerant HTTP
// gateway to the knowledge backend: operation methods, error
// classification, and user-context header propagation.
package backendclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client is a typed HTTP client for the knowledge backend's /api/v1
// surface.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Logger  *slog.Logger
}

// New creates a backend Client. Timeout defaults to 30s.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		logger:     logger,
	}
}

// SetTimeout updates the per-request timeout, used when the
// backend_timeout_seconds valve changes.
func (c *Client) SetTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	c.timeout = d
	c.httpClient.Timeout = d
}

// do executes one backend call, classifying failures by kind. user is
// nil for anonymous calls; the call proceeds regardless.
func (c *Client) do(ctx context.Context, method, path string, user *UserContext, body any, out any) error {
	start := time.Now()
	requestID := uuid.NewString()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return &Error{Kind: KindMalformed, Message: "failed to encode request body", Cause: err}
		}
		reader = bytes.NewReader(encoded)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &Error{Kind: KindMalformed, Message: "failed to build request", Cause: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set(headerRequestID, requestID)
	applyUserHeaders(req, user)

	resp, err := c.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		c.logger.Debug("backend call failed", "method", method, "path", path, "request_id", requestID, "latency", latency, "error", err)
		return &Error{Kind: KindUnavailable, Message: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	data, readErr := io.ReadAll(resp.Body)
	c.logger.Debug("backend call completed", "method", method, "path", path, "request_id", requestID, "status", resp.StatusCode, "latency", latency)

	if resp.StatusCode >= 400 {
		return c.translateError(resp.StatusCode, data)
	}
	if readErr != nil {
		return &Error{Kind: KindMalformed, Message: "failed to read response body", Cause: readErr}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindMalformed, Message: "response was not valid JSON", Cause: err}
	}
	return nil
}

func (c *Client) translateError(status int, body []byte) error {
	kind := classifyStatus(status)
	be := &Error{Kind: kind, StatusCode: status}

	var envelope struct {
		Message     string            `json:"message"`
		Errors      map[string]string `json:"errors"`
		FieldErrors map[string]string `json:"field_errors"`
	}
	if len(body) > 0 && json.Unmarshal(body, &envelope) == nil {
		be.Message = envelope.Message
		if len(envelope.Errors) > 0 {
			be.FieldErrors = envelope.Errors
		} else if len(envelope.FieldErrors) > 0 {
			be.FieldErrors = envelope.FieldErrors
		}
	}
	if be.Message == "" {
		be.Message = fmt.Sprintf("backend returned status %d", status)
	}
	return be
}

func applyUserHeaders(req *http.Request, user *UserContext) {
	if user == nil {
		req.Header.Set(headerUserID, anonymousMarker)
		req.Header.Set(headerUserAuthenticated, "false")
		return
	}
	req.Header.Set(headerUserID, user.ID)
	req.Header.Set(headerUserName, user.DisplayName)
	if user.Email != "" {
		req.Header.Set(headerUserEmail, user.Email)
	}
	if user.Role != "" {
		req.Header.Set(headerUserRole, user.Role)
	}
	req.Header.Set(headerUserAuthenticated, strconv.FormatBool(user.Authenticated))
}

// Raw performs an arbitrary passthrough call against the backend for
// tools without a typed wrapper, mirroring myndy_bridge.py's generic
// HTTP helper.
func (c *Client) Raw(ctx context.Context, method, path string, user *UserContext, body any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, method, path, user, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}
