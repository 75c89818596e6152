package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/trendhaul/farfetch-scraper/internal/config"
	"github.com/trendhaul/farfetch-scraper/internal/ratelimit"
)

var (
	ErrInvalidURL = errors.New("invalid product URL")
	ErrBadStatus  = errors.New("unexpected HTTP status")
)

// Fetcher retrieves the markup of a product page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Client is the plain-HTTP fetcher. It shapes request headers from a
// user-agent pool, paces itself through the injected Pacer and retries
// failed requests with exponential backoff.
type Client struct {
	http           *http.Client
	pacer          ratelimit.Pacer
	recorder       ratelimit.Recorder
	agents         *UserAgentPool
	maxRetries     int
	retryDelay     time.Duration
	acceptLanguage string
	logger         *slog.Logger
}

func NewClient(cfg config.ScraperConfig, pacer ratelimit.Pacer) *Client {
	c := &Client{
		http:           &http.Client{Timeout: cfg.Timeout},
		pacer:          pacer,
		agents:         NewUserAgentPool(cfg.UseMobileUA),
		maxRetries:     cfg.MaxRetries,
		retryDelay:     cfg.RetryDelay,
		acceptLanguage: cfg.AcceptLanguage,
		logger:         slog.Default().With("component", "fetch"),
	}
	if recorder, ok := pacer.(ratelimit.Recorder); ok {
		c.recorder = recorder
	}
	return c
}

// Fetch issues a GET for the page, making 1+maxRetries attempts in total.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	if err := validateURL(rawURL); err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return "", err
			}
			c.logger.Info("retrying fetch", "url", rawURL, "attempt", attempt+1)
		}

		if err := c.pacer.Wait(ctx); err != nil {
			return "", err
		}

		body, err := c.get(ctx, rawURL)
		if err == nil {
			c.recordSuccess()
			return body, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.recordError()
		lastErr = err
		c.logger.Warn("fetch attempt failed", "url", rawURL, "attempt", attempt+1, "error", err)
	}

	return "", fmt.Errorf("all %d attempts failed for %s: %w", c.maxRetries+1, rawURL, lastErr)
}

func (c *Client) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("User-Agent", c.agents.Random())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", c.acceptLanguage)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(body), nil
}

func (c *Client) recordSuccess() {
	if c.recorder != nil {
		c.recorder.RecordSuccess()
	}
}

func (c *Client) recordError() {
	if c.recorder != nil {
		c.recorder.RecordError()
	}
}

// backoff sleeps retryDelay * 2^(attempt-1) plus a little jitter.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	delay := c.retryDelay * time.Duration(1<<(attempt-1))
	if delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay)/4 + 1))
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

func validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return nil
}
