// Package mirror fetches raw file content from the pypi-data GitHub mirrors.
//
// Every pyproject.toml referenced by the upload dataset lives in one of the
// pypi-mirror-N repositories and is served by raw.githubusercontent.com. The
// client performs a single best-effort GET per file: there is no retry, no
// backoff, and no authentication. Failures are folded into two sentinel
// errors so callers can treat every unavailable file the same way: skip it
// now, pick it up on a later run.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"
)

// DefaultBaseURL is the content host for the pypi-data mirror repositories.
const DefaultBaseURL = "https://raw.githubusercontent.com/pypi-data"

// defaultTimeout bounds a single fetch. A timeout surfaces as
// ErrUnavailable like any other transport failure.
const defaultTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when the mirror no longer serves the file.
	ErrNotFound = errors.New("file not found on mirror")

	// ErrUnavailable is returned for every other failed fetch: transport
	// errors, timeouts, non-2xx statuses, and undecodable bodies.
	ErrUnavailable = errors.New("mirror unavailable")
)

// Client fetches raw file content from the mirror repositories.
// A zero Client is not usable; construct one with NewClient.
type Client struct {
	http    *http.Client
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the content host, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTimeout overrides the per-request timeout. Zero keeps the client's
// default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// NewClient creates a mirror content client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: defaultTimeout},
		baseURL: DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the raw-content URL for a file in a mirror repository.
func (c *Client) URL(repository uint32, path string) string {
	return fmt.Sprintf("%s/pypi-mirror-%d/code/%s", c.baseURL, repository, path)
}

// FetchText retrieves the content of path from the given mirror repository
// and returns it as UTF-8 text.
//
// The request is made exactly once. A missing file returns ErrNotFound. Any
// other failure (connection error, timeout, non-2xx status, body read
// failure, or a body that is not valid UTF-8) returns ErrUnavailable.
func (c *Client) FetchText(ctx context.Context, repository uint32, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(repository, path), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return "", err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: body is not valid utf-8", ErrUnavailable)
	}
	return string(data), nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: status %d", ErrUnavailable, code)
	}
}
