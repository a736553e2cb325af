package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"
)

// ErrRateLimited is returned when the local rate limiter rejects a call.
var ErrRateLimited = errors.New("rate limit exceeded")

// ResilientProvider wraps a provider with fortify resilience patterns.
type ResilientProvider struct {
	provider       Provider
	circuitBreaker circuitbreaker.CircuitBreaker[*Response]
	retrier        retry.Retry[*Response]
	bulkhead       bulkhead.Bulkhead[*Response]
	rateLimit      ratelimit.RateLimiter
}

// ResilientConfig selects the patterns applied around a provider.
type ResilientConfig struct {
	CircuitBreaker bool
	Retry          bool
	Bulkhead       bool
	RateLimit      bool

	MaxAttempts   int // retry attempts, default 3
	MaxConcurrent int // bulkhead size, default 2
	RatePerMinute int // default 20

	Logger *slog.Logger
}

// DefaultResilientConfig returns defaults sized for one learner issuing
// commands by hand.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		CircuitBreaker: true,
		Retry:          true,
		Bulkhead:       true,
		RateLimit:      true,
		MaxAttempts:    3,
		MaxConcurrent:  2,
		RatePerMinute:  20,
	}
}

// NewResilientProvider wraps provider according to cfg
func NewResilientProvider(provider Provider, cfg ResilientConfig) *ResilientProvider {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rp := &ResilientProvider{provider: provider}

	if cfg.CircuitBreaker {
		rp.circuitBreaker = circuitbreaker.New[*Response](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     45 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				logger.Warn("circuit breaker state change",
					"provider", provider.Name(),
					"from", from.String(),
					"to", to.String())
			},
		})
	}

	if cfg.Retry {
		rp.retrier = retry.New[*Response](retry.Config{
			MaxAttempts:   orDefaultInt(cfg.MaxAttempts, 3),
			InitialDelay:  time.Second,
			MaxDelay:      20 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   IsRetryable,
		})
	}

	if cfg.Bulkhead {
		n := orDefaultInt(cfg.MaxConcurrent, 2)
		rp.bulkhead = bulkhead.New[*Response](bulkhead.Config{
			MaxConcurrent: n,
			MaxQueue:      n * 4,
			QueueTimeout:  time.Minute,
		})
	}

	if cfg.RateLimit {
		rate := orDefaultInt(cfg.RatePerMinute, 20)
		rp.rateLimit = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    rate,
			Interval: time.Minute,
		})
	}

	return rp
}

func (p *ResilientProvider) Name() string {
	return p.provider.Name()
}

func (p *ResilientProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	if p.rateLimit != nil && !p.rateLimit.Allow(ctx, p.provider.Name()) {
		return nil, fmt.Errorf("%w for provider %s", ErrRateLimited, p.provider.Name())
	}

	call := func(ctx context.Context) (*Response, error) {
		return p.provider.Generate(ctx, req)
	}
	if p.bulkhead != nil {
		inner := call
		call = func(ctx context.Context) (*Response, error) {
			return p.bulkhead.Execute(ctx, inner)
		}
	}
	if p.retrier != nil {
		inner := call
		call = func(ctx context.Context) (*Response, error) {
			return p.retrier.Do(ctx, inner)
		}
	}
	if p.circuitBreaker != nil {
		return p.circuitBreaker.Execute(ctx, call)
	}
	return call(ctx)
}

// Close releases the rate limiter
func (p *ResilientProvider) Close() error {
	if p.rateLimit != nil {
		return p.rateLimit.Close()
	}
	return nil
}

// IsRetryable reports whether err is a transient backend failure.
func IsRetryable(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
