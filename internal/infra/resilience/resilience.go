// Package resilience guards outbound backend calls: a circuit breaker, a
// bulkhead bounding in-flight calls, and an opt-in retry budget for
// idempotent reads.
package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/burgerhero/burgerhero-bff/internal/domain"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config holds resilience parameters.
// MaxRetries defaults to 0: backend calls are not retried automatically.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int
}

// Guard bundles the breaker and bulkhead shared by one backend.
type Guard struct {
	name     string
	cfg      Config
	cb       *gobreaker.CircuitBreaker
	bulkhead *Bulkhead
}

// NewGuard creates a guard for the named backend.
func NewGuard(name string, cfg Config, logger *zap.Logger) *Guard {
	g := &Guard{
		name: name,
		cfg:  cfg,
		cb:   NewCircuitBreaker(name, logger),
	}
	if cfg.MaxConcurrency > 0 {
		g.bulkhead = NewBulkhead(cfg.MaxConcurrency)
	}
	return g
}

// Do runs fn under the bulkhead and breaker. Reads (idempotent=true) use
// the configured retry budget; writes run exactly once.
func (g *Guard) Do(ctx context.Context, idempotent bool, fn func() error) error {
	if g.bulkhead != nil {
		if err := g.bulkhead.Acquire(ctx); err != nil {
			return err
		}
		defer g.bulkhead.Release()
	}

	_, err := g.cb.Execute(func() (any, error) {
		if idempotent && g.cfg.MaxRetries > 0 {
			return nil, RetryWithBackoff(ctx, g.cfg, fn)
		}
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: g.name}
	}
	return err
}

// RetryWithBackoff executes fn with exponential backoff + jitter.
// It respects context cancellation.
func RetryWithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil || !retryable(lastErr) {
			return lastErr
		}

		if attempt < cfg.MaxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * cfg.InitialBackoff
			wait := backoff
			if half := int64(backoff / 2); half > 0 {
				wait += time.Duration(rand.Int63n(half))
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return lastErr
}

// retryable filters out answers that will not change on a second attempt.
func retryable(err error) bool {
	var authFailure *domain.ErrAuthFailure
	var validation *domain.ErrValidation
	var conflict *domain.ErrConflict
	var unauthorized *domain.ErrUnauthorized
	return !errors.As(err, &authFailure) && !errors.As(err, &validation) &&
		!errors.As(err, &conflict) && !errors.As(err, &unauthorized)
}

// NewCircuitBreaker creates a circuit breaker that logs state changes.
func NewCircuitBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,                // half-open: allow 3 requests
		Interval:    30 * time.Second, // closed: reset counters every 30s
		Timeout:     10 * time.Second, // open -> half-open after 10s
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// Rejected credentials and validation errors are answers, not outages.
			return err == nil || !retryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// Bulkhead limits concurrent access to a resource.
type Bulkhead struct {
	sem chan struct{}
}

// NewBulkhead creates a bulkhead with the given max concurrency.
func NewBulkhead(maxConcurrency int) *Bulkhead {
	return &Bulkhead{sem: make(chan struct{}, maxConcurrency)}
}

// Acquire blocks until a slot is available or context is cancelled.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot.
func (b *Bulkhead) Release() {
	<-b.sem
}
