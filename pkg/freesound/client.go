// Package freesound is a small client for the freesound.org APIv2 text
// search and download endpoints.
package freesound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"golang.org/x/oauth2"

	"github.com/codeGROOVE-dev/move-alarm/pkg/safebrowse"
	"github.com/codeGROOVE-dev/move-alarm/pkg/searchcache"
)

// DefaultBaseURL is the APIv2 root.
const DefaultBaseURL = "https://freesound.org/apiv2"

const (
	searchFields      = "id,url,name,description,download,license"
	maxErrorBody      = 4096
	defaultAttempts   = 3
	defaultMaxDelay   = 10 * time.Second
	searchCallTimeout = 30 * time.Second
)

// Client talks to freesound. Safe for concurrent use.
type Client struct {
	http     *http.Client
	cache    *searchcache.Cache[[]SoundResult]
	validate func(string) error
	baseURL  string
	maxDelay time.Duration
	attempts uint
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient sets the underlying client the bearer transport wraps.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetry sets how many times a search is attempted and the backoff cap.
func WithRetry(attempts uint, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.attempts = max(attempts, 1)
		c.maxDelay = maxDelay
	}
}

// WithCache keeps non-empty search results in cache.
func WithCache(sc *searchcache.Cache[[]SoundResult]) Option {
	return func(c *Client) { c.cache = sc }
}

// WithURLValidator replaces the check applied to download URLs.
func WithURLValidator(fn func(string) error) Option {
	return func(c *Client) { c.validate = fn }
}

// New returns a client for the public API.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		http:     &http.Client{},
		attempts: defaultAttempts,
		maxDelay: defaultMaxDelay,
		validate: safebrowse.ValidateFreesoundURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Filter builds the search filter: WAV files between 30 and 210 seconds
// whose description mentions any of themes.
func Filter(themes []string) string {
	f := "duration:[30 TO 210] AND type:wav"
	if len(themes) > 0 {
		f += " AND description:(" + strings.Join(themes, " OR ") + ")"
	}
	return "(" + f + ")"
}

func (c *Client) authed(ctx context.Context, token string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
}

// Search returns the sounds matching themes. An empty slice with a nil
// error means the search succeeded but nothing matched. A non-200 status
// is returned as *ConnectionError; server errors are retried first.
func (c *Client) Search(ctx context.Context, token string, themes []string) ([]SoundResult, error) {
	key := searchcache.Key(themes)
	if c.cache != nil {
		if results, ok := c.cache.Get(key); ok {
			slog.Debug("[FREESOUND] Search cache hit", "themes", themes, "results", len(results))
			return results, nil
		}
	}

	q := url.Values{}
	q.Set("filter", Filter(themes))
	q.Set("fields", searchFields)
	endpoint := c.baseURL + "/search/text/?" + q.Encode()
	hc := c.authed(ctx, token)

	start := time.Now()
	var results []SoundResult
	var lastErr error
	err := retry.Do(func() error {
		callCtx, cancel := context.WithTimeout(ctx, searchCallTimeout)
		defer cancel()

		r, err := c.search(callCtx, hc, endpoint)
		lastErr = err
		if err != nil {
			var connErr *ConnectionError
			if errors.As(err, &connErr) && !connErr.Temporary() {
				return retry.Unrecoverable(err)
			}
			return err
		}
		results = r
		return nil
	},
		retry.Attempts(c.attempts),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(c.maxDelay),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("[FREESOUND] Search failed, retrying", "attempt", n+1, "max", c.attempts, "error", err)
		}),
		retry.Context(ctx),
	)
	if err != nil {
		// Callers match on the final attempt's error, not the retry summary.
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, err
	}

	slog.Info("[FREESOUND] Search completed", "themes", themes, "results", len(results), "duration", time.Since(start))
	if c.cache != nil && len(results) > 0 {
		if err := c.cache.Put(key, results); err != nil {
			slog.Debug("[FREESOUND] Failed to cache search results", "error", err)
		}
	}
	return results, nil
}

func (*Client) search(ctx context.Context, hc *http.Client, endpoint string) ([]SoundResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if sr.Results == nil {
		sr.Results = []SoundResult{}
	}
	return sr.Results, nil
}

// Download streams rawURL into dest. Transport failures are returned as
// they come from the HTTP client; a non-2xx status is a *ConnectionError.
// dest is only replaced once the whole body has been written.
func (c *Client) Download(ctx context.Context, token, rawURL, dest string) error {
	if c.validate != nil {
		if err := c.validate(rawURL); err != nil {
			return fmt.Errorf("refusing download url %q: %w", rawURL, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}
	resp, err := c.authed(ctx, token).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return fmt.Errorf("create sound directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best effort
		if copyErr != nil {
			return copyErr
		}
		return fmt.Errorf("close temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath) //nolint:errcheck // best effort
		return fmt.Errorf("move download into place: %w", err)
	}
	slog.Info("[FREESOUND] Downloaded sound", "path", dest, "bytes", n)
	return nil
}

func statusError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		slog.Debug("[FREESOUND] Failed to read error body", "error", err)
	}
	return &ConnectionError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
