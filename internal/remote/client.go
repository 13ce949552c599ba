// Package remote resolves virtual wiki sources over HTTP.
package remote

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

	"github.com/dgallion1/wikitoc/internal/wikipage"
)

// ChildrenPath is the endpoint a wiki serves child listings on.
const ChildrenPath = "/api/children"

// maxListingBytes bounds a decoded child listing.
const maxListingBytes = 1 << 20

// Client fetches the children of pages on other wikis. It implements
// toc.Resolver. Results are never cached.
type Client struct {
	httpClient *http.Client
	log        *slog.Logger
	maxRetries int
	backoff    func(attempt int) time.Duration

	Stats *Stats
}

func NewClient(timeout time.Duration, maxRetries int, statsWindow time.Duration, log *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
		maxRetries: maxRetries,
		backoff:    Backoff,
		Stats:      NewStats(statsWindow),
	}
}

// ChildEntry is a single child in a listing.
type ChildEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// ChildrenResponse is the body served on ChildrenPath.
type ChildrenResponse struct {
	Page     string       `json:"page"`
	Children []ChildEntry `json:"children"`
}

// ChildrenURL maps a virtual wiki location such as
// http://host:8090/FrontPage.SubPage to its child listing endpoint.
func ChildrenURL(source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("parse source %q: %w", source, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported source scheme %q", u.Scheme)
	}
	page := strings.Trim(u.Path, "/")
	out := url.URL{
		Scheme:   u.Scheme,
		Host:     u.Host,
		Path:     ChildrenPath,
		RawQuery: url.Values{"page": {page}}.Encode(),
	}
	return out.String(), nil
}

// ResolveChildren returns the names of the source page's children, retrying
// transient failures.
func (c *Client) ResolveChildren(ctx context.Context, source string) ([]string, error) {
	u, err := ChildrenURL(source)
	if err != nil {
		return nil, err
	}
	log := c.log.With("source", source)

	for attempt := 0; ; attempt++ {
		start := time.Now()
		names, err := c.fetch(ctx, u, log)
		c.Stats.Record(time.Since(start).Milliseconds(), err != nil)
		if err == nil {
			return names, nil
		}
		if !IsRetryable(err) || attempt >= c.maxRetries {
			return nil, err
		}

		wait := c.backoff(attempt)
		log.Warn("remote fetch failed, retrying", "attempt", attempt+1, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("fetch children: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
}

func (c *Client) fetch(ctx context.Context, u string, log *slog.Logger) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("fetch children: %w", err)
		}
		return nil, &RetryableError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("fetch children %s: status %d: %s", u, resp.StatusCode, string(respBody))
	}

	var result ChildrenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxListingBytes)).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode children: %w", err)
	}
	names := make([]string, 0, len(result.Children))
	for _, ch := range result.Children {
		// Names end up in local markup; only page names are accepted.
		if !wikipage.IsWikiWord(ch.Name) {
			log.Warn("skipping invalid child name", "name", truncate(ch.Name, 80))
			continue
		}
		names = append(names, ch.Name)
	}
	return names, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	if e.StatusCode == 0 {
		return "retryable error: " + truncate(e.Message, 200)
	}
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
