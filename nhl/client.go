// Package nhl extracts teams, rosters and goalie game logs from the NHL
// stats API and cleans them into warehouse tables.
package nhl

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

	"github.com/justapithecus/crease/log"
)

const (
	// DefaultBaseURL is the public stats API.
	DefaultBaseURL = "https://statsapi.web.nhl.com"
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultRetries is the number of retry attempts after the first.
	DefaultRetries = 3
	// DefaultBackoff is the delay before the first retry. It doubles on
	// each subsequent retry.
	DefaultBackoff = 500 * time.Millisecond
)

// ErrExtraction matches any ExtractionError.
var ErrExtraction = errors.New("extraction failed")

// ExtractionError is a failed request to the stats API.
type ExtractionError struct {
	URL string
	// StatusCode is zero for network and decode failures.
	StatusCode int
	Err        error
}

func (e *ExtractionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("extract %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrExtraction.
func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}

// Retryable reports whether the failure is transient: a network error,
// a 5xx, or a 429.
func (e *ExtractionError) Retryable() bool {
	return e.StatusCode == 0 || e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// ClientConfig configures the stats API client.
type ClientConfig struct {
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// Timeout is the per-request timeout (default 30s).
	Timeout time.Duration
	// Retries is the number of retry attempts on transient failure.
	Retries int
	// Backoff is the initial retry delay (default 500ms).
	Backoff time.Duration
	// Logger receives retry warnings. Nil discards them.
	Logger *log.Logger
}

// Client fetches JSON from the stats API.
type Client struct {
	baseURL string
	retries int
	backoff time.Duration
	http    *http.Client
	logger  *log.Logger
}

// NewClient creates a Client. Zero timeout and backoff take defaults.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", cfg.BaseURL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		retries: cfg.Retries,
		backoff: cfg.Backoff,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  log.OrNop(cfg.Logger),
	}, nil
}

// GetJSON fetches path with query and decodes the body into v. Transient
// failures are retried with exponential backoff; 4xx responses fail
// immediately.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, v any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var lastErr *ExtractionError
	attempts := 1 + c.retries
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return &ExtractionError{URL: u, Err: err}
		}
		if i > 0 {
			delay := time.Duration(1<<uint(i-1)) * c.backoff
			c.logger.Warn("retrying request", map[string]any{
				"url":     u,
				"attempt": i + 1,
				"error":   lastErr.Error(),
			})
			select {
			case <-ctx.Done():
				return &ExtractionError{URL: u, Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		lastErr = c.do(ctx, u, v)
		if lastErr == nil {
			return nil
		}
		if !lastErr.Retryable() {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, u string, v any) *ExtractionError {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &ExtractionError{URL: u, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &ExtractionError{URL: u, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &ExtractionError{URL: u, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &ExtractionError{URL: u, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}
