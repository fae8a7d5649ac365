// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/pdiddy/pubmed-markdown/pkg/types"
)

const (
	// DefaultUserAgent identifies the tool to NCBI.
	DefaultUserAgent = "pubmed-markdown/1.0 (+https://github.com/pdiddy/pubmed-markdown)"

	// DefaultTimeout bounds one request.
	DefaultTimeout = 30 * time.Second

	// DefaultRate is the NCBI request budget without an API key.
	DefaultRate = 3.0

	// KeyedRate is the NCBI request budget with an API key.
	KeyedRate = 10.0

	maxBodyBytes = 64 << 20
)

// ErrNotFound matches a StatusError for HTTP 404.
var ErrNotFound = errors.New("not found")

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.Code)
}

// Is reports whether e matches ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// Client is a rate-limited HTTP client shared by every request to one
// upstream. It is safe for concurrent use.
type Client struct {
	http       Doer
	limiter    *rate.Limiter
	userAgent  string
	maxRetries int
	log        *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithDoer replaces the underlying HTTP client (tests use the httptest
// server's client).
func WithDoer(d Doer) Option {
	return func(c *Client) { c.http = d }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// RateFor returns the configured request rate, or the NCBI default for
// callers with or without an API key.
func RateFor(cfg types.HTTPConfig, apiKey string) float64 {
	switch {
	case cfg.RequestsPerSecond > 0:
		return cfg.RequestsPerSecond
	case apiKey != "":
		return KeyedRate
	}
	return DefaultRate
}

// NewClient builds a Client allowing rps requests per second.
func NewClient(cfg types.HTTPConfig, rps float64, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	if rps <= 0 {
		rps = DefaultRate
	}

	c := &Client{
		http:       &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		userAgent:  ua,
		maxRetries: cfg.MaxRetries,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches rawURL with query appended and returns the body. Every
// attempt, retries included, waits for the rate limiter. Non-2xx responses
// return a *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values, accept string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url %s: %w", rawURL, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := doWithRetry(ctx, c.http, req, c.maxRetries, c.limiter.Wait, c.log)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{URL: u.Redacted(), Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", u.Redacted(), err)
	}
	return body, nil
}
