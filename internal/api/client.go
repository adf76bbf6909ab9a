// Package api is the client for the LeafMetric grading service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const maxResponseBytes = 4 << 20

// Client calls the grading service REST API
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the timeout of the default HTTP client
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http = &http.Client{Timeout: d}
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for the service at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the service root without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ImageURL returns the address of a server stored image
func (c *Client) ImageURL(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// envelope is the shape of every response body: {"response": {"data": ...}}
type envelope struct {
	Response struct {
		Data json.RawMessage `json:"data"`
	} `json:"response"`
}

// call describes a single request to the service
type call struct {
	op          string
	fallback    string
	method      string
	path        string
	auth        bool
	token       string
	body        io.Reader
	contentType string
}

func requireToken(op, token string) error {
	if token == "" {
		return &Error{Kind: KindMissingSession, Op: op, Message: MissingSessionMessage}
	}
	return nil
}

func jsonBody(v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// send performs the request and returns the unwrapped response.data
func (c *Client) send(ctx context.Context, cl call) (json.RawMessage, http.Header, error) {
	if cl.auth {
		if err := requireToken(cl.op, cl.token); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, cl.body)
	if err != nil {
		return nil, nil, &Error{Kind: KindTransport, Op: cl.op, Message: err.Error(), Err: err}
	}
	contentType := cl.contentType
	if contentType == "" {
		contentType = "application/json"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if cl.auth {
		// The service expects the token wrapped in double quotes
		req.Header.Set("Authorization", `"`+cl.token+`"`)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("[API] %s %s failed: %v", cl.method, cl.path, err)
		return nil, nil, &Error{Kind: KindTransport, Op: cl.op, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, &Error{Kind: KindTransport, Op: cl.op, Status: resp.StatusCode, Message: err.Error(), Err: err}
	}
	c.logger.Printf("[API] %s %s -> %d (%s)", cl.method, cl.path, resp.StatusCode, time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.Header, rejection(cl, resp.StatusCode, raw)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, resp.Header, invalidResponse(cl.op, resp.StatusCode, err)
	}
	if len(env.Response.Data) == 0 || string(env.Response.Data) == "null" {
		return nil, resp.Header, invalidResponse(cl.op, resp.StatusCode, fmt.Errorf("response has no data"))
	}
	return env.Response.Data, resp.Header, nil
}

// decodeField extracts one named member of response.data into out
func decodeField(op string, data json.RawMessage, field string, out any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return invalidResponse(op, http.StatusOK, err)
	}
	value, ok := fields[field]
	if !ok || string(value) == "null" {
		return invalidResponse(op, http.StatusOK, fmt.Errorf("response has no %q", field))
	}
	if err := json.Unmarshal(value, out); err != nil {
		return invalidResponse(op, http.StatusOK, fmt.Errorf("decode %s: %w", field, err))
	}
	return nil
}

func invalidResponse(op string, status int, err error) *Error {
	return &Error{
		Kind:    KindInvalidResponse,
		Op:      op,
		Status:  status,
		Message: fmt.Sprintf("unexpected response from server: %v", err),
		Err:     err,
	}
}

// rejection builds the error for a non-2xx response
func rejection(cl call, status int, body []byte) *Error {
	msg := errorMessage(body)
	if msg == "" {
		msg = cl.fallback
	}
	kind := KindRejected
	if cl.auth && (msg == AuthFailedMessage || status == http.StatusUnauthorized) {
		kind = KindAuthExpired
	}
	return &Error{Kind: kind, Op: cl.op, Status: status, Message: msg}
}

// errorMessage reads response.data.message, or response.data when it is a plain string
func errorMessage(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Response.Data) == 0 {
		return ""
	}
	var withMessage struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(env.Response.Data, &withMessage); err == nil && withMessage.Message != "" {
		return withMessage.Message
	}
	var text string
	if err := json.Unmarshal(env.Response.Data, &text); err == nil {
		return text
	}
	return ""
}
