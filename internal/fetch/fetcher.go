package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/beneyalraj/listing/internal/model"
)

// ErrRetriesExhausted marks a request that kept hitting HTTP 429 until the
// retry budget ran out. Callers treat it as "source temporarily unavailable
// for this query" and move on.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Client performs a single HTTP call with identity rotation, a jittered
// pre-request delay, and bounded retry on throttling responses. Any other
// error status, and any transport failure (timeouts included), aborts
// immediately — the caller decides whether to skip the item or the query.
type Client struct {
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration // base delay before a 429 retry
	delayMin   time.Duration // pre-request delay range, jittered
	delayMax   time.Duration
	logger     *slog.Logger
}

// NewClient creates a fetch client. The pre-request delay is drawn uniformly
// from [delayMin, delayMax] before every attempt sequence; pass zeros to
// disable pacing (tests, low-sensitivity APIs).
func NewClient(httpClient *http.Client, maxRetries int, retryDelay, delayMin, delayMax time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		delayMin:   delayMin,
		delayMax:   delayMax,
		logger:     logger,
	}
}

// Do executes the request. The response body is the caller's to close on
// success. On HTTP 429 the request is retried up to maxRetries times with a
// fresh identity and retryDelay plus jitter between attempts; exhaustion is
// reported as ErrRetriesExhausted wrapping the final *model.HTTPError. Any
// other non-2xx status returns a *model.HTTPError without retrying.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.preDelay(ctx); err != nil {
		return nil, err
	}

	attempt := req.Clone(ctx)
	attempt.Header.Set("User-Agent", pickUserAgent())

	var lastErr *model.HTTPError
	for retries := 0; ; retries++ {
		c.logger.Debug("fetching", "url", attempt.URL.String(), "attempt", retries+1)

		resp, err := c.httpClient.Do(attempt)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", req.URL, err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		httpErr := &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("fetch %s", req.URL),
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusTooManyRequests {
			return nil, httpErr
		}
		lastErr = httpErr
		if retries >= c.maxRetries {
			break
		}

		// Base delay plus up to 30% jitter so synchronized clients drift apart.
		wait := c.retryDelay + time.Duration(rand.Float64()*0.3*float64(c.retryDelay))
		if httpErr.RetryAfter > wait {
			wait = httpErr.RetryAfter
		}
		c.logger.Warn("throttled, retrying",
			"url", attempt.URL.String(),
			"attempt", retries+1,
			"max_retries", c.maxRetries,
			"wait", wait,
		)
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}

		next, err := cloneRequest(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: rebuilding request: %w", req.URL, err)
		}
		next.Header.Set("User-Agent", pickUserAgent())
		attempt = next
	}

	return nil, fmt.Errorf("fetch %s after %d retries: %w: %w",
		req.URL, c.maxRetries, ErrRetriesExhausted, lastErr)
}

// preDelay sleeps a random duration in [delayMin, delayMax] to avoid
// synchronized request bursts against rate-sensitive endpoints.
func (c *Client) preDelay(ctx context.Context) error {
	if c.delayMax <= 0 {
		return nil
	}
	d := c.delayMin
	if span := c.delayMax - c.delayMin; span > 0 {
		d += rand.N(span)
	}
	c.logger.Debug("pre-request delay", "wait", d)
	return sleep(ctx, d)
}

// cloneRequest rebuilds the request for a retry, replaying the body via
// GetBody when one was attached.
func cloneRequest(ctx context.Context, req *http.Request) (*http.Request, error) {
	clone := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}

func pickUserAgent() string {
	return userAgents[rand.IntN(len(userAgents))]
}

// parseRetryAfter parses the Retry-After header value into a duration.
// Supports seconds format (e.g. "120"). Returns zero if absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch wait: %w", ctx.Err())
	case <-time.After(d):
		return nil
	}
}
