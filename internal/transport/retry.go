package transport

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/lattice-lang/lattice/pkg/metrics"
)

// RetryConfig configures exponential backoff for transient failures.
type RetryConfig struct {
	// MaxAttempts includes the first attempt. Default 3.
	MaxAttempts int

	// BaseDelay is the initial backoff. Default 100ms.
	BaseDelay time.Duration

	// MaxDelay caps the backoff. Default 30s.
	MaxDelay time.Duration

	// Multiplier grows the backoff between attempts. Default 2.0.
	Multiplier float64

	// Jitter is the +-fraction of randomness applied to each delay.
	// Default 0.25.
	Jitter float64

	// RetryIf overrides the default retryable check.
	RetryIf func(err error) bool
}

// DefaultRetryConfig returns the default backoff settings.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.25,
	}
}

// Retryer runs calls with exponential backoff.
type Retryer struct {
	config  RetryConfig
	log     *slog.Logger
	service string
}

// NewRetryer normalizes the config and builds a retryer.
func NewRetryer(config RetryConfig) *Retryer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.Jitter < 0 || config.Jitter > 1 {
		config.Jitter = 0.25
	}
	return &Retryer{config: config, log: slog.Default().With("component", "retryer")}
}

// WithService tags log lines and retry metrics with a service name.
func (r *Retryer) WithService(service string) *Retryer {
	return &Retryer{
		config:  r.config,
		log:     r.log.With("service", service),
		service: service,
	}
}

// DoWithResult runs fn until it succeeds, fails terminally, or the
// attempt budget runs out.
func DoWithResult[T any](ctx context.Context, r *Retryer, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	delay := r.config.BaseDelay

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt >= r.config.MaxAttempts {
			break
		}
		if !r.isRetryable(err) {
			return zero, err
		}

		actualDelay := r.addJitter(delay)
		r.log.Warn("retrying request",
			"attempt", attempt,
			"max_attempts", r.config.MaxAttempts,
			"error", err.Error(),
			"delay", actualDelay,
		)
		if r.service != "" {
			metrics.ExternalRetries.WithLabelValues(r.service).Inc()
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(actualDelay):
		}

		delay = time.Duration(float64(delay) * r.config.Multiplier)
		if delay > r.config.MaxDelay {
			delay = r.config.MaxDelay
		}
	}
	return zero, lastErr
}

// Do is DoWithResult for calls without a return value.
func (r *Retryer) Do(ctx context.Context, fn func(context.Context) error) error {
	_, err := DoWithResult(ctx, r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func (r *Retryer) isRetryable(err error) bool {
	if r.config.RetryIf != nil {
		return r.config.RetryIf(err)
	}
	return IsRetryable(err)
}

func (r *Retryer) addJitter(delay time.Duration) time.Duration {
	if r.config.Jitter <= 0 {
		return delay
	}
	jitterRange := float64(delay) * r.config.Jitter
	jitter := (rand.Float64()*2 - 1) * jitterRange
	result := time.Duration(float64(delay) + jitter)
	if result < 0 {
		return delay
	}
	return result
}

// IsRetryable reports whether an error is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return IsRetryableStatusCode(httpErr.StatusCode)
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"temporary failure",
		"i/o timeout",
		"network is unreachable",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// IsRetryableStatusCode reports whether a status code is transient.
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests:
		return true
	default:
		return statusCode >= 500
	}
}

// HTTPError is a non-2xx response.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.StatusCode)
}
