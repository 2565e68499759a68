package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// retryBaseDelay is the first backoff step; it doubles on every attempt.
var retryBaseDelay = time.Second

// defaultRateLimitDelay is used when a 429 carries no usable retry hint.
var defaultRateLimitDelay = 65 * time.Second

// ---------------------------------------------------------------------------
// Rate limit state (global pause for parallel workers)
// ---------------------------------------------------------------------------

type rateLimitState struct {
	mu       sync.Mutex
	paused   int32 // atomic: 1 = paused
	pauseEnd time.Time
}

func (r *rateLimitState) isPaused() bool {
	return atomic.LoadInt32(&r.paused) == 1
}

func (r *rateLimitState) pause(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if end := time.Now().Add(duration); end.After(r.pauseEnd) {
		r.pauseEnd = end
	}
	atomic.StoreInt32(&r.paused, 1)
}

// waitIfPaused blocks until the rate limit pause is over.
func (r *rateLimitState) waitIfPaused(ctx context.Context) error {
	for r.isPaused() {
		r.mu.Lock()
		remaining := time.Until(r.pauseEnd)
		r.mu.Unlock()
		if remaining <= 0 {
			atomic.StoreInt32(&r.paused, 0)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(remaining, 100*time.Millisecond)):
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// HTTP client with proxy support
// ---------------------------------------------------------------------------

func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// caller sends requests to one provider, retrying transient failures.
type caller struct {
	name       string
	client     *http.Client
	maxRetries int
	rl         *rateLimitState
}

func newCaller(prov Provider, maxRetries int) *caller {
	return &caller{
		name:       prov.Name,
		client:     makeHTTPClient(prov.Proxy, prov.Timeout),
		maxRetries: maxRetries,
		rl:         &rateLimitState{},
	}
}

// send performs the request and returns the body of a 2xx response.
// Network errors, 5xx and 429 are retried; after the last attempt they map
// to ErrProviderUnavailable. Any other status maps to ErrProviderRejected.
func (c *caller) send(ctx context.Context, method, endpoint string, headers map[string]string, body []byte) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.rl.waitIfPaused(ctx); err != nil {
			return nil, err
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		log.Debug().Str("provider", c.name).Int("attempt", attempt+1).Str("method", method).Str("url", redactURL(endpoint)).Msg("Provider request")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if err := c.backoff(ctx, attempt, retryBaseDelay<<attempt); err != nil {
				return nil, err
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			if err := c.backoff(ctx, attempt, retryBaseDelay<<attempt); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return respBody, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			delay := retryDelay(resp.Header, respBody)
			lastErr = fmt.Errorf("rate limited (status 429): %s", truncate(string(respBody), 300))
			log.Warn().Str("provider", c.name).Dur("delay", delay).Int("attempt", attempt+1).Msg("Rate limited")
			c.rl.pause(delay)
			if err := c.backoff(ctx, attempt, delay); err != nil {
				return nil, err
			}

		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 300))
			if err := c.backoff(ctx, attempt, retryBaseDelay<<attempt); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("%w: %s returned status %d: %s", ErrProviderRejected, c.name, resp.StatusCode, truncate(apiErrorMessage(respBody), 500))
		}
	}

	return nil, fmt.Errorf("%w: %s failed after %d retries: %v", ErrProviderUnavailable, c.name, c.maxRetries, lastErr)
}

// backoff waits before the next attempt. No wait follows the last attempt.
func (c *caller) backoff(ctx context.Context, attempt int, wait time.Duration) error {
	if attempt >= c.maxRetries {
		return nil
	}
	log.Warn().Str("provider", c.name).Dur("backoff", wait).Int("attempt", attempt+1).Msg("Retrying request")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// retryDelay reads the Retry-After header, then Google's RetryInfo detail,
// falling back to defaultRateLimitDelay.
func retryDelay(h http.Header, body []byte) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}

	var errResp struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		for _, detail := range errResp.Error.Details {
			if strings.Contains(detail.Type, "RetryInfo") && detail.RetryDelay != "" {
				d := strings.TrimSuffix(detail.RetryDelay, "s")
				if secs, err := strconv.ParseFloat(d, 64); err == nil {
					return time.Duration(secs*1000)*time.Millisecond + 5*time.Second
				}
			}
		}
	}

	return defaultRateLimitDelay
}

// apiErrorMessage extracts error.message from a JSON error body, or returns
// the body as is.
func apiErrorMessage(body []byte) string {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}
	return string(body)
}

// redactURL drops the query string, which may carry an API key.
func redactURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}

// truncate truncates a string to maxLen bytes.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
