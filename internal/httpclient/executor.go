package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultMaxRetries  = 3
	DefaultBaseBackoff = time.Second
	DefaultTimeout     = 15 * time.Second
)

// APIError is a non-retryable HTTP failure.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %s: %s", e.Status, e.Body)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

// Executor runs resty requests through a rate limiter and retries transient failures.
type Executor struct {
	client      *resty.Client
	limiter     *rate.Limiter
	logger      *zap.Logger
	maxRetries  int
	baseBackoff time.Duration
}

// Option customizes an Executor.
type Option func(*Executor)

// WithMaxRetries sets the number of attempts per request.
func WithMaxRetries(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// WithBaseBackoff sets the first retry delay; later delays double.
func WithBaseBackoff(d time.Duration) Option {
	return func(e *Executor) { e.baseBackoff = d }
}

// WithLimiter replaces the rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(e *Executor) { e.limiter = l }
}

// New creates an Executor for baseURL limited to ratePerSec requests per second.
func New(baseURL string, ratePerSec float64, burst int, logger *zap.Logger, opts ...Option) *Executor {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}

	e := &Executor{
		client:      resty.New().SetBaseURL(baseURL).SetTimeout(DefaultTimeout),
		limiter:     rate.NewLimiter(limit, burst),
		logger:      logger,
		maxRetries:  DefaultMaxRetries,
		baseBackoff: DefaultBaseBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// R starts a new request bound to the context.
func (e *Executor) R(ctx context.Context) *resty.Request {
	return e.client.R().SetContext(ctx)
}

// JSON starts a request that sends JSON and decodes the response as JSON
// whatever Content-Type the server answers with.
func (e *Executor) JSON(ctx context.Context) *resty.Request {
	return e.R(ctx).
		SetHeader("Content-Type", "application/json").
		ForceContentType("application/json")
}

// SetHeader sets a header sent with every request.
func (e *Executor) SetHeader(key, value string) *Executor {
	e.client.SetHeader(key, value)
	return e
}

// Do executes req with rate limiting and retry logic.
// 429, 418, 5xx and network errors are retried; other error statuses return an *APIError.
func (e *Executor) Do(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < e.maxRetries; i++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		e.logger.Debug("Executing request", zap.String("method", method), zap.String("url", e.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Network errors fall through to a retry; status errors are classified.
		var retryAfter time.Duration
		if err == nil && resp != nil {
			statusCode := resp.StatusCode()
			apiErr := &APIError{StatusCode: statusCode, Status: resp.Status(), Body: resp.String()}
			switch {
			case statusCode == http.StatusTooManyRequests || statusCode == 418:
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			case statusCode >= 500:
			default:
				return nil, apiErr
			}
			err = apiErr
		}

		if i == e.maxRetries-1 {
			break
		}

		if retryAfter == 0 {
			retryAfter = e.baseBackoff << i
		}

		e.logger.Warn("Request failed, retrying...",
			zap.String("url", url),
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", e.maxRetries, err)
}
