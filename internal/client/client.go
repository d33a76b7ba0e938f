// Package client talks to a running spec API over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/omjikush09/aggroso/internal/service"
	"github.com/omjikush09/aggroso/internal/specs"
	"github.com/omjikush09/aggroso/internal/validate"
)

// DefaultTimeout bounds every request when no http.Client is supplied.
const DefaultTimeout = 15 * time.Second

// APIError is a non-2xx response that is neither a validation failure nor
// a missing spec.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %d %s", e.StatusCode, e.Message)
}

// Client is a spec API client.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for the API rooted at baseURL (e.g. http://localhost:3001).
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: base url %q must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  "specgen",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Generate posts a new goal and returns the stored spec.
func (c *Client) Generate(ctx context.Context, in specs.GenerateInput) (*specs.Specification, error) {
	var spec specs.Specification
	if err := c.do(ctx, http.MethodPost, "/api/generate", in, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// History returns the newest specs.
func (c *Client) History(ctx context.Context) ([]specs.Specification, error) {
	var list []specs.Specification
	if err := c.do(ctx, http.MethodGet, "/api/history", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Get fetches one spec. Unknown ids wrap specs.ErrNotFound.
func (c *Client) Get(ctx context.Context, id string) (*specs.Specification, error) {
	var spec specs.Specification
	if err := c.do(ctx, http.MethodGet, specPath(id), nil, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Update replaces the collections present in p.
func (c *Client) Update(ctx context.Context, id string, p specs.UpdatePayload) (*specs.Specification, error) {
	var spec specs.Specification
	if err := c.do(ctx, http.MethodPut, specPath(id), p, &spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

// ReplaceTasks satisfies organizer.TaskWriter.
func (c *Client) ReplaceTasks(ctx context.Context, specID string, tasks []specs.Task) error {
	if tasks == nil {
		tasks = []specs.Task{}
	}
	_, err := c.Update(ctx, specID, specs.UpdatePayload{Tasks: tasks})
	return err
}

// Markdown downloads the markdown export of a spec.
func (c *Client) Markdown(ctx context.Context, id string) (string, error) {
	resp, err := c.send(ctx, http.MethodGet, specPath(id)+"/markdown", nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("client: read markdown: %w", err)
	}
	return string(body), nil
}

// Health returns the health report. A degraded (503) report is returned
// without error.
func (c *Client) Health(ctx context.Context) (*service.HealthReport, error) {
	resp, err := c.send(ctx, http.MethodGet, "/api/health", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusServiceUnavailable {
		return nil, decodeError(resp)
	}
	var report service.HealthReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("client: decode health: %w", err)
	}
	return &report, nil
}

// ─── Transport ───────────────────────────────────────────────────────────────

func specPath(id string) string {
	return "/api/spec/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	// path is already escaped; JoinPath keeps escapes such as %2F intact.
	target := c.baseURL.JoinPath(path)

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	return resp, nil
}

type errorBody struct {
	Error  string           `json:"error"`
	Issues []validate.Issue `json:"issues"`
}

func decodeError(resp *http.Response) error {
	var eb errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &eb); err != nil || eb.Error == "" {
		eb.Error = strings.TrimSpace(string(data))
		if eb.Error == "" {
			eb.Error = http.StatusText(resp.StatusCode)
		}
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("client: %s: %w", eb.Error, specs.ErrNotFound)
	case http.StatusBadRequest:
		return &validate.Error{Message: eb.Error, Issues: eb.Issues}
	default:
		return &APIError{StatusCode: resp.StatusCode, Message: eb.Error}
	}
}

// IsAPIError reports whether err carries an API status code.
func IsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
