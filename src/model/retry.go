package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/universal-tool-calling-protocol/go-mcp-bridge/src/logging"
)

// RetryConfig controls WithRetry. Zero fields take defaults.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter adds up to this fraction of the delay at random.
	Jitter      float64
	IsRetryable func(error) bool
	// Sleep waits between attempts and must return early with ctx's error
	// once ctx is done.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *slog.Logger
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 200 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 5 * time.Second
	}
	if c.IsRetryable == nil {
		c.IsRetryable = DefaultIsRetryable
	}
	if c.Sleep == nil {
		c.Sleep = sleepContext
	}
	c.Logger = logging.Component(c.Logger, "model")
	return c
}

// DefaultIsRetryable retries everything except cancellation.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type retrying struct {
	inner Model
	cfg   RetryConfig
}

// WithRetry wraps m so failed turns are retried with exponential backoff.
// Only the model call is retried, never the tool session.
func WithRetry(m Model, cfg RetryConfig) Model {
	return &retrying{inner: m, cfg: cfg.withDefaults()}
}

func (r *retrying) Name() string { return r.inner.Name() }

func (r *retrying) Generate(ctx context.Context, req Request) (*Reply, error) {
	var lastErr error
	for i := 0; i < r.cfg.MaxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		reply, err := r.inner.Generate(ctx, req)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !r.cfg.IsRetryable(err) || i == r.cfg.MaxAttempts-1 {
			break
		}
		delay := backoffDelay(r.cfg.BaseDelay, r.cfg.MaxDelay, r.cfg.Jitter, i)
		r.cfg.Logger.Warn("model call failed, retrying", "model", r.inner.Name(), "attempt", i+1, "delay", delay, "error", err)
		if err := r.cfg.Sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("model retry failed: %w", lastErr)
}

func backoffDelay(base, max time.Duration, jitter float64, attempt int) time.Duration {
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > max {
		d = max
	}
	if jitter > 0 {
		d += time.Duration(float64(d) * jitter * rand.Float64())
	}
	return d
}
