// Package feed is the HTTP client for the F1 live-timing static archive.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/leapstack-labs/livef1/internal/livetiming"
	"github.com/leapstack-labs/livef1/pkg/core"
)

// DefaultBaseURL is the root of the public live-timing archive.
const DefaultBaseURL = "https://livetiming.formula1.com/static/"

var bom = []byte{0xEF, 0xBB, 0xBF}

// NotFoundError is returned when the archive answers 404.
type NotFoundError struct {
	URL string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.URL)
}

// StatusError is returned for any other non-2xx answer.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// RequestsPerSecond caps outgoing requests; zero means unlimited.
	RequestsPerSecond float64
	// Retries is the number of retries after a failed attempt.
	Retries    int
	RetryDelay time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client fetches index documents and topic archives.
type Client struct {
	base       *url.URL
	http       *http.Client
	limiter    *rate.Limiter
	retries    uint64
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewClient creates a client from cfg, applying defaults.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", base.Scheme)
	}

	c := &Client{
		base:       base,
		http:       cfg.HTTPClient,
		limiter:    rate.NewLimiter(rate.Inf, 1),
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	if cfg.Retries > 0 {
		c.retries = uint64(cfg.Retries)
	}
	if c.retryDelay == 0 {
		c.retryDelay = 500 * time.Millisecond
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c, nil
}

// URL resolves an archive-relative path.
func (c *Client) URL(path string) string {
	return c.base.ResolveReference(&url.URL{Path: strings.TrimPrefix(path, "/")}).String()
}

// Fetch downloads an archive-relative path, retrying transient failures.
// The UTF-8 byte order mark the archive prepends is removed.
func (c *Client) Fetch(ctx context.Context, path string) ([]byte, error) {
	target := c.URL(path)
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.retryDelay))

	var body []byte
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		b, err := c.get(ctx, target)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode < 500 {
				return err
			}
			var nf *NotFoundError
			if errors.As(err, &nf) || ctx.Err() != nil {
				return err
			}
			c.logger.Debug("fetch failed, retrying", "url", target, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bytes.TrimPrefix(body, bom), nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "livef1")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, &NotFoundError{URL: target}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{URL: target, StatusCode: resp.StatusCode}
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	c.logger.Debug("fetched", "url", target, "bytes", len(b))
	return b, nil
}

func (c *Client) fetchJSON(ctx context.Context, path string, v any) error {
	b, err := c.Fetch(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// SeasonIndex returns the raw season index document for year.
func (c *Client) SeasonIndex(ctx context.Context, year int) (map[string]any, error) {
	var doc map[string]any
	if err := c.fetchJSON(ctx, strconv.Itoa(year)+"/Index.json", &doc); err != nil {
		return nil, fmt.Errorf("season %d: %w", year, err)
	}
	return doc, nil
}

// Feed locates one topic's archives within a session directory.
type Feed struct {
	KeyFramePath string `json:"KeyFramePath"`
	StreamPath   string `json:"StreamPath"`
}

// SessionIndex returns the topics published for the session at sessionPath.
func (c *Client) SessionIndex(ctx context.Context, sessionPath string) (map[string]Feed, error) {
	var doc struct {
		Feeds map[string]Feed `json:"Feeds"`
	}
	if err := c.fetchJSON(ctx, strings.TrimSuffix(sessionPath, "/")+"/Index.json", &doc); err != nil {
		return nil, err
	}
	return doc.Feeds, nil
}

// Topic downloads and decodes one topic of a session. A stream archive
// decodes to []livetiming.Entry, a keyframe to the JSON document.
func (c *Client) Topic(ctx context.Context, sessionPath string, feed Feed, topic string, stream bool) (any, error) {
	file := feed.KeyFramePath
	if stream && feed.StreamPath != "" {
		file = feed.StreamPath
	}
	if file == "" {
		return nil, &core.TopicNotFoundError{Topic: topic}
	}
	b, err := c.Fetch(ctx, strings.TrimSuffix(sessionPath, "/")+"/"+file)
	if err != nil {
		var nf *NotFoundError
		if errors.As(err, &nf) {
			return nil, fmt.Errorf("%w: %w", &core.TopicNotFoundError{Topic: topic}, err)
		}
		return nil, err
	}
	if strings.HasSuffix(file, ".jsonStream") {
		return livetiming.DecodeStream(bytes.NewReader(b))
	}
	return livetiming.DecodeKeyframe(b)
}
