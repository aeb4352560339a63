// Package clients talks to the catalog and inventory collaborators over HTTP.
package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout   = 3 * time.Second
	maxResponseBytes = 1 << 20
)

// ErrUnexpectedStatus reports a non-success answer from a collaborator.
var ErrUnexpectedStatus = errors.New("clients: unexpected status")

// Option customises a collaborator client.
type Option func(*baseClient)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *baseClient) {
		if client != nil {
			c.http = client
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *baseClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

type baseClient struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
}

func newBaseClient(rawURL string, opts ...Option) (*baseClient, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, errors.New("clients: base url is required")
	}
	parsed, err := url.Parse(strings.TrimRight(trimmed, "/"))
	if err != nil {
		return nil, fmt.Errorf("clients: parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("clients: base url %q must be absolute", rawURL)
	}

	c := &baseClient{
		baseURL: parsed,
		http:    &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// envelope is the response wrapper both collaborators use.
type envelope[T any] struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Payload *T     `json:"payload"`
}

// getJSON issues a GET and decodes the envelope. A 404 is reported as found=false.
func getJSON[T any](ctx context.Context, c *baseClient, path string, query url.Values) (envelope[T], bool, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return envelope[T]{}, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope[T]{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return envelope[T]{}, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return envelope[T]{}, false, fmt.Errorf("%w %d from %s: %s", ErrUnexpectedStatus, resp.StatusCode, path, strings.TrimSpace(string(body)))
	}

	var out envelope[T]
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return envelope[T]{}, false, fmt.Errorf("clients: decode %s: %w", path, err)
	}
	return out, true, nil
}
