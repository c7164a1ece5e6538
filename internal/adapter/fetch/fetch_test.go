package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff(retries int) Backoff {
	return Backoff{MaxRetries: retries, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

func getRequest(t *testing.T, url string) func() (*http.Request, error) {
	t.Helper()
	return func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, url, nil)
	}
}

func TestDo_Success(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New("test", time.Second, fastBackoff(3))
	resp, err := c.Do(context.Background(), getRequest(t, srv.URL))

	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New("test", time.Second, fastBackoff(3))
	resp, err := c.Do(context.Background(), getRequest(t, srv.URL))

	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_RetriesRateLimiting(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New("test", time.Second, fastBackoff(1))
	_, err := c.Do(context.Background(), getRequest(t, srv.URL))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, int32(2), calls.Load(), "one retry after the first 429")
}

func TestDo_ClientErrorFailsImmediately(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New("test", time.Second, fastBackoff(3))
	_, err := c.Do(context.Background(), getRequest(t, srv.URL))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load(), "client errors must not retry")
}

func TestDo_CircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New("test", time.Second, fastBackoff(10))
	_, err := c.Do(context.Background(), getRequest(t, srv.URL))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(5), calls.Load(), "breaker trips after five consecutive failures")
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	backoff := Backoff{MaxRetries: 3, InitialInterval: 5 * time.Second, MaxInterval: 10 * time.Second}
	c := New("test", time.Second, backoff)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Do(ctx, getRequest(t, srv.URL))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second, "cancellation must interrupt the backoff sleep")
}

func TestDo_BuildRequestError(t *testing.T) {
	c := New("test", time.Second, fastBackoff(3))
	_, err := c.Do(context.Background(), func() (*http.Request, error) {
		return nil, assert.AnError
	})

	assert.ErrorIs(t, err, assert.AnError)
}
