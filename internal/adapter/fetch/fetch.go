// Package fetch wraps upstream HTTP calls with retries, exponential backoff
// and a circuit breaker, so one flaky public feed cannot stall a whole
// workflow run.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// Backoff controls exponential backoff behaviour between retries.
type Backoff struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultBackoff paces retries for the slow public feeds this service talks
// to: three retries, half a second doubling up to ten.
var DefaultBackoff = Backoff{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     10 * time.Second,
}

// ErrCircuitOpen reports that the upstream's breaker rejected the call
// before any request was sent.
var ErrCircuitOpen = errors.New("circuit breaker open")

var (
	errRateLimited = errors.New("rate limited")
	errServerError = errors.New("server error")
	errClientError = errors.New("unexpected status")
)

// Client executes requests against one upstream feed with shared resilience
// state. Each feed gets its own client so a dead NWS endpoint cannot trip
// the station breaker.
type Client struct {
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	backoff Backoff
}

// New builds a client for the named upstream. The breaker opens after five
// consecutive failures and probes again after thirty seconds.
func New(name string, timeout time.Duration, backoff Backoff) *Client {
	return &Client{
		http: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		backoff: backoff,
	}
}

// Do executes the request with retries, exponential backoff, and the circuit
// breaker. buildRequest is invoked once per attempt so request state is
// never reused across retries. Network errors, 5xx and 429 responses are
// retried; any other non-2xx status fails immediately because a client error
// will not heal on its own. The caller owns the response body.
func (c *Client) Do(ctx context.Context, buildRequest func() (*http.Request, error)) (*http.Response, error) {
	if c.backoff.MaxRetries < 0 || c.backoff.InitialInterval <= 0 {
		return nil, errors.New("invalid backoff configuration")
	}

	var attempt int
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		result, err := c.breaker.Execute(func() (interface{}, error) {
			resp, execErr := c.http.Do(req)
			if execErr != nil {
				return nil, execErr
			}
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				drain(resp)
				return nil, errRateLimited
			case resp.StatusCode >= 500:
				drain(resp)
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
			case resp.StatusCode < 200 || resp.StatusCode >= 300:
				drain(resp)
				return nil, fmt.Errorf("%w: %d", errClientError, resp.StatusCode)
			}
			return resp, nil
		})
		if err == nil {
			return result.(*http.Response), nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		if errors.Is(err, errClientError) {
			return nil, err
		}
		if attempt >= c.backoff.MaxRetries {
			return nil, err
		}

		delay := c.backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if c.backoff.MaxInterval > 0 && delay > c.backoff.MaxInterval {
			delay = c.backoff.MaxInterval
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
