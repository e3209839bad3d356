package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/kbmirror/pkg/errors"
	"github.com/agentstation/kbmirror/pkg/logging"
)

func fastClient(opts ...Option) *Client {
	opts = append([]Option{WithBackoff(time.Millisecond, 5*time.Millisecond)}, opts...)
	return New(&HeaderAuth{}, "secret", opts...)
}

func getBuilder(url string) func(context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func TestDoAppliesHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := fastClient(WithHeader("Origin", srv.URL), WithHeader("User-Agent", "kbmirror-test"))
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(context.Background(), req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "secret", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, srv.URL, got.Get("Origin"))
	assert.Equal(t, "kbmirror-test", got.Get("User-Agent"))
	assert.Len(t, got.Get(RequestIDHeader), 36)
}

func TestDoUsesContextRequestID(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(RequestIDHeader)
	}))
	defer srv.Close()

	ctx := logging.WithRequestID(context.Background(), "req-42")
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := fastClient().Do(ctx, req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.Equal(t, "req-42", got)
}

func TestDoWithRetryRecovers(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			_, _ = io.WriteString(w, "ok")
		}
	}))
	defer srv.Close()

	resp, err := fastClient().DoWithRetry(context.Background(), getBuilder(srv.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoWithRetryGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	resp, err := fastClient(WithMaxRetries(2)).DoWithRetry(context.Background(), getBuilder(srv.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoWithRetryDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := fastClient().DoWithRetry(context.Background(), getBuilder(srv.URL))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fastClient().DoWithRetry(ctx, getBuilder(srv.URL))
	require.Error(t, err)
	assert.True(t, errors.IsCanceled(err))
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := fastClient(WithTimeout(20*time.Millisecond), WithMaxRetries(0))
	_, err := c.DoWithRetry(context.Background(), getBuilder(srv.URL))
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))
}

func TestRetryDelay(t *testing.T) {
	c := New(nil, "", WithBackoff(100*time.Millisecond, 2*time.Second))

	assert.Equal(t, 100*time.Millisecond, c.retryDelay(1, ""))
	assert.Equal(t, 200*time.Millisecond, c.retryDelay(2, ""))
	assert.Equal(t, 400*time.Millisecond, c.retryDelay(3, ""))
	assert.Equal(t, 2*time.Second, c.retryDelay(10, ""))
	assert.Equal(t, time.Second, c.retryDelay(1, "1"))
	assert.Equal(t, 2*time.Second, c.retryDelay(1, "120"))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("soon"))
	assert.Equal(t, 3*time.Second, parseRetryAfter(" 3 "))

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC1123)
	assert.Greater(t, parseRetryAfter(future), 50*time.Minute)
}

func TestRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := fastClient(WithRateLimit(20))
	start := time.Now()
	for i := 0; i < 3; i++ {
		resp, err := c.DoWithRetry(context.Background(), getBuilder(srv.URL))
		require.NoError(t, err)
		_ = resp.Body.Close()
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestDecodeResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.Error(w, "upstream exploded", http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, `{"code":0}`)
	}))
	defer srv.Close()

	resp, err := http.Get(JoinURL(srv.URL, "/ok", nil))
	require.NoError(t, err)
	var out struct{ Code int }
	require.NoError(t, DecodeResponse(resp, "ok", &out))
	assert.Equal(t, 0, out.Code)

	resp, err = http.Get(JoinURL(srv.URL+"/", "bad", nil))
	require.NoError(t, err)
	err = DecodeResponse(resp, "bad", &out)
	require.Error(t, err)
	assert.True(t, errors.IsTransport(err))
	assert.Contains(t, err.Error(), "upstream exploded")
}
