package crawler

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// attemptState tracks where a retried fetch currently is.
// Modeling the loop as an explicit state machine keeps the attempt/sleep
// contract testable without touching the network.
type attemptState int

const (
	// stateAttempting means a request is about to be issued.
	stateAttempting attemptState = iota

	// stateSleeping means the previous attempt failed and the loop is
	// waiting out the backoff delay before retrying.
	stateSleeping

	// stateSucceeded means a response body was obtained.
	stateSucceeded

	// stateExhausted means every configured attempt failed.
	stateExhausted
)

// backoffDelay returns the sleep before retry n (1-based attempt index):
// factor * 2^(n-1) seconds.
func backoffDelay(factor float64, attempt int) time.Duration {
	return time.Duration(factor * math.Pow(2, float64(attempt-1)) * float64(time.Second))
}

// fetchWithRetry issues GET requests for addr until one succeeds or
// retryCount attempts are exhausted. Between failed attempts it sleeps the
// exponential backoff delay. Returns the response body, or an error after
// the final failure.
func (e *Engine) fetchWithRetry(ctx context.Context, session *http.Client, addr string) ([]byte, error) {
	var lastErr error

	state := stateAttempting
	for attempt := 1; state != stateExhausted; {
		switch state {
		case stateAttempting:
			body, err := e.fetchOnce(ctx, session, addr)
			if err == nil {
				return body, nil
			}
			lastErr = err

			if attempt >= e.retryCount {
				state = stateExhausted
				continue
			}
			state = stateSleeping

		case stateSleeping:
			delay := backoffDelay(e.backoffFactor, attempt)
			e.logger.Warn("fetch attempt failed, backing off",
				"address", addr,
				"attempt", attempt,
				"of", e.retryCount,
				"delay", delay,
				"error", lastErr,
			)
			if err := e.sleep(ctx, delay); err != nil {
				return nil, err
			}
			attempt++
			state = stateAttempting
		}
	}

	e.logger.Error("all fetch attempts failed",
		"address", addr,
		"attempts", e.retryCount,
		"error", lastErr,
	)
	return nil, lastErr
}

// fetchOnce performs a single GET request and reads the body up to the
// configured size limit. Any non-2xx status is an error.
func (e *Engine) fetchOnce(ctx context.Context, session *http.Client, addr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, err
	}

	resp, err := session.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused by the session pool.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d for %s", resp.StatusCode, addr)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxBodySize))
	if err != nil {
		return nil, err
	}
	return body, nil
}
