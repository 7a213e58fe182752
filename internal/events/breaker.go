package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrBreakerOpen is returned while a publisher's broker is considered down.
var ErrBreakerOpen = errors.New("event publisher circuit open")

// BreakerOptions configures Breaker. Zero fields take defaults.
type BreakerOptions struct {
	// Failures is the number of consecutive failures that opens the circuit.
	Failures uint32
	// Cooldown is how long the circuit stays open before a trial publish.
	Cooldown time.Duration
}

const (
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
)

// Breaker stops calling a failing publisher until its cool-down has passed.
type Breaker struct {
	next Publisher
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next in a circuit breaker named name.
func NewBreaker(name string, next Publisher, opts BreakerOptions, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Failures == 0 {
		opts.Failures = defaultBreakerFailures
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = defaultBreakerCooldown
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     opts.Cooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= opts.Failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("event publisher circuit changed",
				zap.String("publisher", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) Publish(ctx context.Context, e Event) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Publish(ctx, e)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("publishing %s: %w", e.Type, ErrBreakerOpen)
	}
	return err
}

func (b *Breaker) Close() error {
	return b.next.Close()
}
