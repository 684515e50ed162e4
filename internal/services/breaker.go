package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"

	"bytedge/internal/logger"
	"bytedge/pkg/edgetypes"
)

// Default circuit breaker settings.
const (
	defaultBreakerMaxFailures uint32        = 5
	defaultBreakerTimeout     time.Duration = 30 * time.Second
	defaultBreakerInterval    time.Duration = 60 * time.Second
)

// BreakerSettings configures a BreakerClient. Zero values select the defaults.
type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
	Interval    time.Duration
}

// BreakerClient wraps an LLMClient with a circuit breaker. After MaxFailures consecutive
// provider errors it fails fast until OpenTimeout has passed, then lets one probe through.
type BreakerClient struct {
	inner   edgetypes.LLMClient
	breaker *gobreaker.CircuitBreaker[string]
}

// NewBreakerClient wraps inner with a circuit breaker.
func NewBreakerClient(inner edgetypes.LLMClient, settings BreakerSettings) *BreakerClient {
	maxFailures := settings.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerMaxFailures
	}
	timeout := settings.OpenTimeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := settings.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "llm:" + inner.GetProviderName(),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		// A caller giving up is not a provider fault.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerClient{inner: inner, breaker: cb}
}

// Generate routes the call through the circuit breaker.
func (b *BreakerClient) Generate(ctx context.Context, prompt string, opts edgetypes.GenerationOptions) (string, error) {
	out, err := b.breaker.Execute(func() (string, error) {
		return b.inner.Generate(ctx, prompt, opts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("provider %q circuit open: %w", b.inner.GetProviderName(), err)
		}
		return "", err
	}
	return out, nil
}

// GetProviderName returns the wrapped provider's name.
func (b *BreakerClient) GetProviderName() string { return b.inner.GetProviderName() }

// IsConfigured reports whether the wrapped client is configured.
func (b *BreakerClient) IsConfigured() bool { return b.inner.IsConfigured() }

// State returns the current breaker state.
func (b *BreakerClient) State() gobreaker.State {
	return b.breaker.State()
}

var _ edgetypes.LLMClient = (*BreakerClient)(nil)
