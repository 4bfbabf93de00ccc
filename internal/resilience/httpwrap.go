package resilience

import (
	"net/http"
	"time"
)

// HTTPClient wraps an http.Client with a circuit breaker and bounded retries
// for transient failures. Requests with bodies are never retried.
type HTTPClient struct {
	Client     *http.Client
	Breaker    *Breaker
	MaxRetries int
	BaseDelay  time.Duration
}

// Do executes the request through the breaker. Server errors and transport
// failures count against the breaker; 4xx responses do not.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	ctx := req.Context()

	attempts := c.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}
	retriable := req.Body == nil && (req.Method == http.MethodGet || req.Method == http.MethodHead)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if c.Breaker != nil && !c.Breaker.Allow(ctx) {
			return nil, ErrOpenCircuit
		}
		resp, err := client.Do(req)
		ok := err == nil && resp.StatusCode < http.StatusInternalServerError
		if c.Breaker != nil {
			c.Breaker.Report(ctx, ok)
		}
		if err == nil && (ok || !retriable) {
			return resp, nil
		}
		if err == nil {
			resp.Body.Close()
			lastErr = &StatusError{StatusCode: resp.StatusCode}
		} else {
			lastErr = err
		}
		if !retriable || attempt == attempts {
			break
		}
		timer := time.NewTimer(Backoff(c.BaseDelay, attempt, 0.2))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, lastErr
}

// StatusError reports a non-success HTTP status from a dependency.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return "resilience: upstream returned " + http.StatusText(e.StatusCode)
}
