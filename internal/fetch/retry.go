package fetch

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"
)

const (
	defaultMaxRetries = 2
	defaultBackoff    = 500 * time.Millisecond
	maxBackoff        = 8 * time.Second
)

// retryableStatus reports whether a response status is worth retrying.
// Rate limits and upstream hiccups are; client errors are not.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// backoffFor returns the exponential backoff for an attempt, capped at
// maxBackoff.
func backoffFor(attempt int, initial time.Duration) time.Duration {
	backoff := float64(initial) * math.Pow(2, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}
	return time.Duration(backoff)
}

// doWithRetry executes the request, retrying transient failures with
// exponential backoff. Non-retryable responses are returned as-is for the
// caller to judge.
func (f *HTTPFetcher) doWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		resp, err := f.client.Do(req)
		if err == nil {
			if !retryableStatus(resp.StatusCode) {
				return resp, nil
			}
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp.Body.Close()
		} else {
			lastErr = err
		}

		if attempt == f.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoffFor(attempt, f.retryBackoff)):
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", f.maxRetries+1, lastErr)
}
