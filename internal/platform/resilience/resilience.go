// Package resilience guards calls to the external WMS adapter and the
// historical store with a circuit breaker and a bounded retry helper,
// matching spec §7's "transient adapter/store failure" policy: retry
// once within the current loop iteration, otherwise skip the cycle.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wms-platform/scheduler-core/internal/platform/logging"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Default circuit breaker tuning.
const (
	DefaultMaxRequests           uint32        = 3
	DefaultInterval              time.Duration = 60 * time.Second
	DefaultTimeout               time.Duration = 30 * time.Second
	DefaultFailureThreshold      uint32        = 5
	DefaultSuccessThreshold      uint32        = 2
	DefaultFailureRatioThreshold float64       = 0.5
	DefaultMinRequestsToTrip     uint32        = 10
)

type CircuitBreakerConfig struct {
	Name                  string
	MaxRequests           uint32
	Interval              time.Duration
	Timeout               time.Duration
	FailureThreshold      uint32
	SuccessThreshold      uint32
	FailureRatioThreshold float64
	MinRequestsToTrip     uint32
}

func DefaultCircuitBreakerConfig(name string) *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:                  name,
		MaxRequests:           DefaultMaxRequests,
		Interval:              DefaultInterval,
		Timeout:               DefaultTimeout,
		FailureThreshold:      DefaultFailureThreshold,
		SuccessThreshold:      DefaultSuccessThreshold,
		FailureRatioThreshold: DefaultFailureRatioThreshold,
		MinRequestsToTrip:     DefaultMinRequestsToTrip,
	}
}

// CircuitBreaker wraps gobreaker with logging.
type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	name   string
	logger *logging.Logger
}

func NewCircuitBreaker(config *CircuitBreakerConfig, logger *logging.Logger) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= config.FailureThreshold {
				return true
			}
			if counts.Requests >= config.MinRequestsToTrip {
				ratio := float64(counts.TotalFailures) / float64(counts.Requests)
				return ratio >= config.FailureRatioThreshold
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings), name: config.Name, logger: logger}
}

func (c *CircuitBreaker) Execute(ctx context.Context, fn func() (any, error)) (any, error) {
	result, err := c.cb.Execute(func() (interface{}, error) { return fn() })
	if errors.Is(err, gobreaker.ErrOpenState) {
		c.logger.Warn("circuit breaker open", "name", c.name)
		return nil, fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
	}
	if errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn("circuit breaker throttling", "name", c.name)
		return nil, fmt.Errorf("%s: too many requests: %w", c.name, ErrCircuitOpen)
	}
	return result, err
}

func (c *CircuitBreaker) State() gobreaker.State { return c.cb.State() }
func (c *CircuitBreaker) Name() string            { return c.name }

// Registry keeps one circuit breaker per guarded dependency (WMS adapter,
// historical store) and exposes status for the control service's
// observability facade.
type Registry struct {
	breakers map[string]*CircuitBreaker
	logger   *logging.Logger
}

func NewRegistry(logger *logging.Logger) *Registry {
	return &Registry{breakers: make(map[string]*CircuitBreaker), logger: logger}
}

func (r *Registry) Get(name string) *CircuitBreaker {
	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig(name), r.logger)
	r.breakers[name] = cb
	return cb
}

type Status struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

func (r *Registry) Status() []Status {
	out := make([]Status, 0, len(r.breakers))
	for name, cb := range r.breakers {
		out = append(out, Status{Name: name, State: cb.State().String()})
	}
	return out
}

// RetryConfig configures RetryOnce-style bounded retry.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors func(error) bool
}

// SingleRetryConfig implements spec §7's policy for loop-bound calls:
// retry once within the current cycle, never block past it.
func SingleRetryConfig(retryable func(error) bool) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:     2,
		InitialDelay:    50 * time.Millisecond,
		MaxDelay:        200 * time.Millisecond,
		BackoffFactor:   2.0,
		RetryableErrors: retryable,
	}
}

// Retry runs fn, retrying per config, and honors ctx cancellation between attempts.
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	var lastErr error
	delay := config.InitialDelay

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if config.RetryableErrors != nil && !config.RetryableErrors(err) {
			return err
		}

		if attempt < config.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * config.BackoffFactor)
			if delay > config.MaxDelay {
				delay = config.MaxDelay
			}
		}
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", config.MaxAttempts, lastErr)
}
