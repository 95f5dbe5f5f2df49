// Package rest implements the collaborator ports over plain REST/JSON.
//
// Every client shares one Client per collaborator base URL. Responses are
// decoded into wire structs that mirror the collaborator's schema and are
// validated before they become domain values.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bookstore/internal/domain"
)

// DefaultTimeout bounds a single collaborator call when none is configured.
const DefaultTimeout = 10 * time.Second

// maxBody caps how much of a response body is read.
const maxBody = 4 << 20

// Client performs JSON requests against one collaborator.
type Client struct {
	service    string
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-call timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for failed calls.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client for the named service rooted at baseURL.
func New(service, baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("%s: base URL is required", service)
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: parse base URL: %w", service, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%s: base URL must be http or https, got %q", service, baseURL)
	}
	c := &Client{
		service: service,
		baseURL: u,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	return c, nil
}

// Service returns the collaborator name used in errors and logs.
func (c *Client) Service() string { return c.service }

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do sends in as the JSON body (when non-nil) and decodes a 2xx response
// into out (when non-nil).
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", c.service, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := domain.TokenFrom(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	if key := domain.IdempotencyKeyFrom(ctx); key != "" && method != http.MethodGet {
		req.Header.Set("Idempotency-Key", key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s %s %s: %w: %w", c.service, method, path, domain.ErrUnavailable, ctxErr)
		}
		c.logger.Warn("collaborator unreachable", "service", c.service, "method", method, "path", path, "error", err)
		return fmt.Errorf("%s %s %s: %w: %v", c.service, method, path, domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%s %s %s: read body: %w: %v", c.service, method, path, domain.ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(method, path, resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		if out != nil {
			return fmt.Errorf("%s %s %s: empty body: %w", c.service, method, path, domain.ErrUnexpectedResponse)
		}
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn("collaborator response rejected", "service", c.service, "path", path, "error", err)
		return fmt.Errorf("%s %s %s: %w: %v", c.service, method, path, domain.ErrUnexpectedResponse, err)
	}
	return nil
}

func (c *Client) statusError(method, path string, status int, raw []byte) error {
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s %s %s: %w", c.service, method, path, domain.ErrUnauthorized)
	case http.StatusNotFound:
		return fmt.Errorf("%s %s %s: %w", c.service, method, path, domain.ErrNotFound)
	}
	rerr := decodeRemoteError(c.service, status, raw)
	if status >= 500 {
		c.logger.Error("collaborator failed", "service", c.service, "method", method, "path", path, "status", status, "detail", rerr.Detail)
	}
	return rerr
}

// errorBody covers the two shapes of a FastAPI error: a plain detail string
// or a list of field validation entries.
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

type fieldDetail struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

func decodeRemoteError(service string, status int, raw []byte) *domain.RemoteError {
	rerr := &domain.RemoteError{Service: service, Status: status}
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		rerr.Detail = http.StatusText(status)
		return rerr
	}
	rerr.Detail = body.Message

	var detail string
	var fields []fieldDetail
	switch {
	case len(body.Detail) == 0:
	case json.Unmarshal(body.Detail, &detail) == nil:
		rerr.Detail = detail
	case json.Unmarshal(body.Detail, &fields) == nil:
		for _, f := range fields {
			rerr.Fields = append(rerr.Fields, domain.FieldError{Field: locField(f.Loc), Message: f.Msg})
		}
	}
	if rerr.Detail == "" && len(rerr.Fields) == 0 {
		rerr.Detail = http.StatusText(status)
	}
	return rerr
}

// locField names a field by the last element of its location path.
func locField(loc []any) string {
	if len(loc) == 0 {
		return ""
	}
	last := loc[len(loc)-1]
	if s, ok := last.(string); ok && s == "body" {
		return ""
	}
	return fmt.Sprint(last)
}

// unexpected reports a decoded body that failed shape validation.
func (c *Client) unexpected(what string) error {
	return fmt.Errorf("%s: %s: %w", c.service, what, domain.ErrUnexpectedResponse)
}
