// Package api is the HTTP client for the hoist deployment API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Credentials supplies the bearer token. Reauthenticate is called once when
// the API answers 401.
type Credentials interface {
	Token(ctx context.Context) (string, error)
	Reauthenticate(ctx context.Context) (string, error)
}

// Client talks to {base}/v1/cli.
type Client struct {
	baseURL    string
	httpClient *http.Client
	creds      Credentials
	logger     *slog.Logger
	// requestTimeout bounds non-upload requests.
	requestTimeout time.Duration
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New constructs a Client for the API root, e.g. https://api.hoist.dev/v1/cli.
func New(base string, creds Credentials, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(base), "/")
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api base url: %q", base)
	}
	if creds == nil {
		return nil, errors.New("api client requires credentials")
	}
	cli := &Client{
		baseURL: trimmed,
		// uploads can be large, so no overall client timeout
		httpClient:     &http.Client{},
		creds:          creds,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		requestTimeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	switch e.Status {
	case http.StatusBadRequest:
		return "Bad Request: " + e.Message
	case http.StatusNotFound:
		return "Not Found: " + e.Message
	default:
		return fmt.Sprintf("API Error (%d): %s", e.Status, e.Message)
	}
}

// NetworkError means the request never produced an HTTP response.
type NetworkError struct {
	Err error
}

func (e NetworkError) Error() string {
	return "Unable to connect to the API. Please check your connection and API URL: " + e.Err.Error()
}

func (e NetworkError) Unwrap() error { return e.Err }

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

type requestFunc func(ctx context.Context, token string) (*http.Request, error)

// doAuthed sends a bearer-authenticated request. A 401 triggers one
// reauthentication and one retry with a freshly built request.
func (c *Client) doAuthed(ctx context.Context, build requestFunc, v any) error {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return err
	}

	err = c.do(ctx, build, token, v)
	if !IsUnauthorized(err) {
		return err
	}

	c.logger.Debug("api rejected credential, re-authenticating")
	token, rerr := c.creds.Reauthenticate(ctx)
	if rerr != nil {
		return fmt.Errorf("re-authenticate after 401: %w", rerr)
	}
	return c.do(ctx, build, token, v)
}

func (c *Client) do(ctx context.Context, build requestFunc, token string, v any) error {
	req, err := build(ctx, token)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("api request", "method", req.Method, "url", req.URL.Redacted())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return NetworkError{Err: err}
	}
	defer resp.Body.Close()
	c.logger.Debug("api response", "method", req.Method, "status", resp.StatusCode)

	if resp.StatusCode >= http.StatusBadRequest {
		return APIError{Status: resp.StatusCode, Message: extractError(resp.Body)}
	}

	if v == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 1<<20))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}

	var msg string
	if err := json.Unmarshal(payload.Message, &msg); err == nil && strings.TrimSpace(msg) != "" {
		return strings.TrimSpace(msg)
	}
	// validation errors arrive as a list of messages
	var msgs []string
	if err := json.Unmarshal(payload.Message, &msgs); err == nil && len(msgs) > 0 {
		return strings.Join(msgs, "; ")
	}
	return strings.TrimSpace(payload.Error)
}
