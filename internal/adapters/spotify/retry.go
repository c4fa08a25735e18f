package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = 500 * time.Millisecond
	maxRetryAfter     = 30 * time.Second
)

// attempts returns how many times a fetch is tried in total.
func (c *Client) attempts() int {
	if c.maxRetries <= 0 {
		return defaultMaxRetries
	}
	return c.maxRetries
}

// delay is the wait before attempt n+1. A Retry-After hint from the
// server wins over exponential backoff but is capped.
func (c *Client) delay(n int, hint time.Duration) time.Duration {
	if hint > 0 {
		return min(hint, maxRetryAfter)
	}
	base := c.baseBackoff
	if base <= 0 {
		base = defaultBackoff
	}
	return base << n
}

// get performs a GET, retrying transport errors, 429 and 5xx responses.
// When attempts run out on a retryable status the result is a
// *StatusError so callers see the same type as for any other status.
func (c *Client) get(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	total := c.attempts()
	for n := 0; ; n++ {
		resp, err := c.httpClient.Do(req)
		hint, retryable := retryable(resp, err)
		if !retryable {
			return resp, err
		}
		if resp != nil {
			_ = resp.Body.Close()
		}

		log := c.logger.With("path", req.URL.Path, "attempt", n+1, "of", total)
		if err != nil {
			log = log.With("error", err)
		} else {
			log = log.With("status", resp.StatusCode)
		}

		if n+1 >= total {
			log.Warn("spotify adapter: giving up")
			if err != nil {
				return nil, fmt.Errorf("spotify adapter: %s failed after %d attempts: %w", req.URL.Path, total, err)
			}
			return nil, &StatusError{Code: resp.StatusCode, Path: req.URL.Path}
		}
		log.Warn("spotify adapter: retrying")

		if err := wait(ctx, c.delay(n, hint)); err != nil {
			return nil, fmt.Errorf("spotify adapter: %s: %w", req.URL.Path, err)
		}
	}
}

func retryable(resp *http.Response, err error) (time.Duration, bool) {
	if err != nil {
		// A canceled caller is not a transient failure.
		return 0, !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		return retryAfter(resp.Header.Get("Retry-After")), true
	}
	return 0, false
}

// retryAfter parses delta-seconds or an HTTP date.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(max(secs, 0)) * time.Second
	}
	if when, err := http.ParseTime(v); err == nil {
		return max(time.Until(when), 0)
	}
	return 0
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
