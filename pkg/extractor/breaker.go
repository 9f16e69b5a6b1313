package extractor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig tunes the circuit breaker around the LLM extractor.
type BreakerConfig struct {
	// MaxRequests allowed through while half-open (default: 2).
	MaxRequests uint32
	// Interval over which failure counts are aggregated (default: 60s).
	Interval time.Duration
	// Timeout before an open breaker moves to half-open (default: 30s).
	Timeout time.Duration
	// ReadyToTripRatio is the failure ratio that opens the breaker
	// (default: 0.6).
	ReadyToTripRatio float64
}

// DefaultBreakerConfig returns the default circuit breaker settings.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxRequests:      2,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		ReadyToTripRatio: 0.6,
	}
}

// Breaker wraps an extractor with a circuit breaker. While open, calls
// fail fast so the fallback chain takes over instead of every chunk
// waiting out an LLM timeout.
type Breaker struct {
	inner Extractor
	cb    *gobreaker.CircuitBreaker
}

// NewBreaker wraps inner with circuit breaking. A nil config uses
// defaults.
func NewBreaker(inner Extractor, cfg *BreakerConfig, logger *slog.Logger) *Breaker {
	if cfg == nil {
		cfg = DefaultBreakerConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	st := gobreaker.Settings{
		Name:        inner.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("extractor circuit breaker state change",
				"name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// an empty result is not a service failure
			return err == nil || errors.Is(err, ErrNoResult)
		},
	}

	return &Breaker{inner: inner, cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *Breaker) Name() string { return b.inner.Name() }

func (b *Breaker) Extract(ctx context.Context, req Request) (*Result, error) {
	resp, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Extract(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return resp.(*Result), nil
}
