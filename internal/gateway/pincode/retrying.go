package pincode

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"service-dispatch/internal/domain"
	"service-dispatch/internal/logx"
)

type resolver interface {
	Resolve(ctx context.Context, p domain.GeoPoint) (string, error)
}

type counter interface {
	Inc()
}

// RetryConfig describes the retry behavior of RetryingResolver
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryingResolver wraps a resolver with exponential-backoff retries on
// transient failures.
type RetryingResolver struct {
	next    resolver
	logger  logx.Logger
	retries counter
	cfg     RetryConfig
}

// NewRetryingResolver checks that next is non-nil and returns a RetryingResolver
func NewRetryingResolver(next resolver, logger logx.Logger, retries counter, cfg RetryConfig) *RetryingResolver {
	if next == nil || isNilClient(next) {
		return nil
	}
	if logger == nil {
		logger = logx.Nop()
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &RetryingResolver{next: next, logger: logger, retries: retries, cfg: cfg}
}

func isNilClient(r resolver) bool {
	c, ok := r.(*Client)
	return ok && c == nil
}

// Resolve retries the wrapped lookup on transient failures.
func (g *RetryingResolver) Resolve(ctx context.Context, p domain.GeoPoint) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		pin, err := g.next.Resolve(ctx, p)
		if err == nil {
			return pin, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == g.cfg.MaxAttempts || !isRetryable(err) {
			break
		}

		delay := backoff(g.cfg.BaseDelay, g.cfg.MaxDelay, attempt)
		if g.retries != nil {
			g.retries.Inc()
		}
		g.logger.Warn("pincode gateway retry",
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Any("err", err),
		)
		if !sleepWithContext(ctx, delay) {
			break
		}
	}
	return "", lastErr
}

// isRetryable reports whether the error is transient
func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= http.StatusInternalServerError
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

// backoff computes the retry delay
func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
