// Package api is the authenticated request gateway to the taskflow backends.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fentz26/taskflow/internal/observability"
	"github.com/google/uuid"
)

// DefaultClientTimeout is the default timeout for API requests.
const DefaultClientTimeout = 10 * time.Second

// CredentialSource supplies the authorization header and is told when a
// backend rejected it.
type CredentialSource interface {
	// AuthorizationHeader returns the header value to send, or "" when logged out.
	AuthorizationHeader() string
	// Expire clears the credential and identity.
	Expire()
}

// Client wraps HTTP calls to one backend.
type Client struct {
	name           string
	baseURL        string
	httpClient     *http.Client
	timeout        time.Duration
	creds          CredentialSource
	onUnauthorized func()
	metrics        *observability.Metrics
	logger         *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout. Non-positive values keep
// DefaultClientTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMetrics records every request on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger used for forced logouts.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithUnauthorizedHook registers fn to run after a forced logout.
// It is the consumer's "go to login" navigation.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// NewClient creates a client for the backend rooted at baseURL.
// name labels the backend in logs and metrics.
func NewClient(name, baseURL string, opts ...Option) *Client {
	c := &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultClientTimeout,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient = &http.Client{Timeout: c.timeout}
	return c
}

// SetCredentials attaches the session. Call during wiring, before the
// client is shared.
func (c *Client) SetCredentials(src CredentialSource) {
	c.creds = src
}

// Do performs an authenticated request and returns the raw response body.
// body, when non-nil, is sent as JSON.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body interface{}) ([]byte, error) {
	return c.send(ctx, method, path, query, body, true)
}

// DoPublic performs a request without a credential. Authorization failures
// are returned as *StatusError and do not clear the session.
func (c *Client) DoPublic(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	return c.send(ctx, method, path, nil, body, false)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body interface{}, authed bool) ([]byte, error) {
	op := method + " " + path

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", op, err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if authed && c.creds != nil {
		if h := c.creds.AuthorizationHeader(); h != "" {
			req.Header.Set("Authorization", h)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(c.name, "network_error", time.Since(start))
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.ObserveRequest(c.name, "network_error", time.Since(start))
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.metrics.ObserveRequest(c.name, "ok", time.Since(start))
		return respBody, nil
	}

	c.metrics.ObserveRequest(c.name, fmt.Sprintf("status_%d", resp.StatusCode), time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized && authed {
		c.expireSession(op)
		return nil, fmt.Errorf("%s: %w", op, ErrAuthorizationExpired)
	}
	return nil, classify(resp.StatusCode, respBody)
}

// expireSession applies the authorization-failure policy once for every call site.
func (c *Client) expireSession(op string) {
	c.logger.Printf("%s backend rejected credential on %s; clearing session", c.name, op)
	c.metrics.ForcedLogout()
	if c.creds != nil {
		c.creds.Expire()
	}
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

// classify maps a non-success response to the error taxonomy.
func classify(status int, body []byte) error {
	if status == http.StatusBadRequest {
		return parseValidation(body)
	}
	return &StatusError{StatusCode: status, Message: errorMessage(body)}
}

// parseValidation reads DRF-style {"field": ["msg", ...]} and
// Flask-style {"error": "msg"} bodies.
func parseValidation(body []byte) *ValidationError {
	verr := &ValidationError{Fields: map[string]string{}}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		verr.Message = strings.TrimSpace(truncate(string(body)))
		return verr
	}

	for key, value := range raw {
		msg := flattenMessage(value)
		switch key {
		case "error", "detail", "message", "non_field_errors":
			if verr.Message == "" {
				verr.Message = msg
			} else {
				verr.Message += "; " + msg
			}
		default:
			verr.Fields[key] = msg
		}
	}
	return verr
}

// flattenMessage turns a string, list of strings or nested object into one line.
func flattenMessage(value json.RawMessage) string {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s
	}
	var list []json.RawMessage
	if err := json.Unmarshal(value, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			parts = append(parts, flattenMessage(item))
		}
		return strings.Join(parts, "; ")
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(value, &obj); err == nil {
		parts := make([]string, 0, len(obj))
		for k, v := range obj {
			parts = append(parts, k+": "+flattenMessage(v))
		}
		return strings.Join(parts, "; ")
	}
	return strings.TrimSpace(string(value))
}

func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Error != "":
			return payload.Error
		case payload.Detail != "":
			return payload.Detail
		case payload.Message != "":
			return payload.Message
		}
	}
	return strings.TrimSpace(truncate(string(body)))
}

func truncate(s string) string {
	const max = 512
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
