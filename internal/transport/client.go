package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/agentstation/kbmirror/pkg/constants"
	"github.com/agentstation/kbmirror/pkg/errors"
	"github.com/agentstation/kbmirror/pkg/logging"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Client provides HTTP client functionality with authentication, an
// optional client-side rate limit and retries for idempotent requests.
type Client struct {
	http       *http.Client
	auth       Authenticator
	token      string
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	headers    http.Header
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every request, including reading the response body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit allows at most perSecond requests per second. Zero disables the limit.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithMaxRetries sets how often a retryable request is repeated.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the first retry delay and the delay cap.
func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = base
		c.maxDelay = max
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		if value != "" {
			c.headers.Set(key, value)
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a new transport client with the specified authenticator and token.
func New(auth Authenticator, token string, opts ...Option) *Client {
	if auth == nil {
		auth = &NoAuth{}
	}
	c := &Client{
		http:       &http.Client{Timeout: constants.DefaultHTTPTimeout},
		auth:       auth,
		token:      token,
		maxRetries: constants.MaxRetries,
		baseDelay:  constants.RetryBaseDelay,
		maxDelay:   constants.RetryMaxDelay,
		headers:    make(http.Header),
	}
	c.headers.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do performs a single attempt of req with authentication applied.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, contextError(ctx, err)
		}
	}

	for key, values := range c.headers {
		if req.Header.Get(key) == "" {
			req.Header[key] = values
		}
	}
	c.auth.Apply(req, c.token)

	requestID := logging.RequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	req.Header.Set(RequestIDHeader, requestID)

	start := time.Now()
	resp, err := c.http.Do(req.WithContext(ctx))
	logger := logging.Ctx(ctx)
	if err != nil {
		logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL.Redacted()).
			Str("request_id", requestID).
			Err(err).
			Msg("Request failed")
		return nil, contextError(ctx, err)
	}
	logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("Request completed")
	return resp, nil
}

// DoWithRetry performs the request produced by build, retrying network
// errors, 429 and 5xx responses with capped exponential backoff. build is
// called once per attempt so bodies can be replayed. Only idempotent
// requests should go through here.
//
// The last response is returned even when its status is retryable; the
// caller owns its body.
func (c *Client) DoWithRetry(ctx context.Context, build func(context.Context) (*http.Request, error)) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := build(ctx)
		if err != nil {
			return nil, err
		}

		resp, err := c.Do(ctx, req)
		if err != nil {
			if attempt < c.maxRetries && ctx.Err() == nil {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return nil, contextError(ctx, waitErr)
				}
				continue
			}
			return nil, err
		}

		if retryableStatus(resp.StatusCode) && attempt < c.maxRetries {
			delay := c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			logging.Ctx(ctx).Debug().
				Int("status", resp.StatusCode).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Msg("Retrying request")
			if waitErr := waitWithContext(ctx, delay); waitErr != nil {
				return nil, contextError(ctx, waitErr)
			}
			continue
		}
		return resp, nil
	}
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

// contextError maps context cancellation and deadline errors onto the
// package sentinels so callers can tell them apart from transport failures.
func contextError(ctx context.Context, err error) error {
	switch ctx.Err() {
	case context.Canceled:
		return fmt.Errorf("%w: %w", errors.ErrCanceled, err)
	case context.DeadlineExceeded:
		return fmt.Errorf("%w: %w", errors.ErrTimeout, err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", errors.ErrTimeout, err)
	}
	return err
}
