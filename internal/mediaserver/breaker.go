package mediaserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// BreakerSettings configures a Breaker. Zero values take defaults.
type BreakerSettings struct {
	Name        string
	MaxRequests uint32        // probes allowed while half-open
	Interval    time.Duration // closed-state count reset period
	Timeout     time.Duration // open duration before half-open
	MinRequests uint32        // requests needed before the ratio is considered
	FailRatio   float64
	Logger      *slog.Logger
}

func (s *BreakerSettings) defaults() {
	if s.Name == "" {
		s.Name = "mediaserver"
	}
	if s.MaxRequests == 0 {
		s.MaxRequests = 1
	}
	if s.Interval <= 0 {
		s.Interval = time.Minute
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.MinRequests == 0 {
		s.MinRequests = 5
	}
	if s.FailRatio <= 0 {
		s.FailRatio = 0.6
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
}

// Breaker wraps a Client with a circuit breaker. Only network failures
// count against the circuit; auth and not-found errors pass through. While
// the circuit is open calls fail fast with an error that unwraps to
// ErrNetwork.
type Breaker struct {
	client *Client
	cb     *gobreaker.CircuitBreaker[any]
	logger *slog.Logger
}

// NewBreaker wraps c.
func NewBreaker(c *Client, s BreakerSettings) *Breaker {
	s.defaults()
	logger := s.Logger.With("component", "breaker", "breaker", s.Name)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= s.FailRatio {
				logger.Warn("opening circuit", "failures", counts.TotalFailures, "requests", counts.Requests)
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit state changed", "from", from.String(), "to", to.String())
		},
		IsSuccessful: isSuccessful,
	})

	return &Breaker{client: c, cb: cb, logger: logger}
}

// isSuccessful reports whether err leaves the circuit alone. Cancellation
// and server-side refusals say nothing about reachability.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	return !errors.Is(err, ErrNetwork)
}

// execute runs fn under the breaker and asserts the result type.
func execute[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	result, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			b.logger.Debug("request rejected", "error", err)
			return zero, fmt.Errorf("%w: %w", ErrNetwork, err)
		}
		return zero, err
	}
	v, ok := result.(T)
	if !ok {
		return zero, errors.New("circuit breaker: unexpected result type")
	}
	return v, nil
}

// State returns the circuit state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// Client returns the wrapped client.
func (b *Breaker) Client() *Client { return b.client }

func (b *Breaker) Type() ServerType                 { return b.client.Type() }
func (b *Breaker) Authenticated() bool              { return b.client.Authenticated() }
func (b *Breaker) Auth() (AuthResult, bool)         { return b.client.Auth() }
func (b *Breaker) WebSocketURL() (string, error)    { return b.client.WebSocketURL() }
func (b *Breaker) Logout(ctx context.Context) error { return b.client.Logout(ctx) }

// Login authenticates through the breaker.
func (b *Breaker) Login(ctx context.Context, creds Credentials) (*AuthResult, error) {
	return execute(b, func() (*AuthResult, error) {
		return b.client.Login(ctx, creds)
	})
}

// Sessions fetches sessions through the breaker.
func (b *Breaker) Sessions(ctx context.Context, maxInactivity time.Duration) ([]Session, error) {
	return execute(b, func() ([]Session, error) {
		return b.client.Sessions(ctx, maxInactivity)
	})
}

// ItemLibraryID resolves an item's library through the breaker.
func (b *Breaker) ItemLibraryID(ctx context.Context, itemID string) (string, error) {
	return execute(b, func() (string, error) {
		return b.client.ItemLibraryID(ctx, itemID)
	})
}

// UserViews lists libraries through the breaker.
func (b *Breaker) UserViews(ctx context.Context) ([]View, error) {
	return execute(b, func() ([]View, error) {
		return b.client.UserViews(ctx)
	})
}
