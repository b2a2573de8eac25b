// Package circuitbreaker protects the market data provider from being
// hammered while it is down. The poller trips the breaker after
// repeated failures and switches to synthetic quotes until the
// provider recovers.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means requests flow normally
	StateClosed State = "closed"
	// StateOpen means requests are rejected without calling the provider
	StateOpen State = "open"
	// StateHalfOpen means a limited number of probe requests are allowed
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned when the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ErrTooManyProbes is returned when the half-open probe budget is spent.
var ErrTooManyProbes = errors.New("too many probes in half-open state")

// Config configures a circuit breaker.
type Config struct {
	Name          string
	MaxFailures   int           // consecutive failures before opening
	OpenTimeout   time.Duration // time to wait before probing
	HalfOpenCalls int           // probes allowed in half-open state
}

// DefaultConfig returns a configuration suited to the quote provider:
// open after 5 consecutive failures, probe after 30 seconds.
func DefaultConfig(name string) *Config {
	return &Config{
		Name:          name,
		MaxFailures:   5,
		OpenTimeout:   30 * time.Second,
		HalfOpenCalls: 2,
	}
}

// CircuitBreaker implements the circuit breaker pattern around a
// single upstream dependency.
type CircuitBreaker struct {
	name          string
	maxFailures   int
	openTimeout   time.Duration
	halfOpenCalls int
	logger        *zap.Logger

	mu               sync.Mutex
	state            State
	consecutiveFails int
	probes           int
	probeSuccesses   int
	lastStateChange  time.Time
}

// New creates a circuit breaker. A nil logger disables logging.
func New(cfg *Config, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		name:            cfg.Name,
		maxFailures:     cfg.MaxFailures,
		openTimeout:     cfg.OpenTimeout,
		halfOpenCalls:   cfg.HalfOpenCalls,
		logger:          logger.With(zap.String("breaker", cfg.Name)),
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Execute runs fn under breaker protection. The fn error is returned
// as-is; ErrCircuitOpen or ErrTooManyProbes are returned without
// calling fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.afterRequest(err)
	return err
}

func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.lastStateChange) > cb.openTimeout {
			cb.setState(StateHalfOpen)
			cb.probes = 0
			cb.probeSuccesses = 0
			cb.logger.Info("circuit breaker half-open, probing")
			return nil
		}
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.probes >= cb.halfOpenCalls {
			return ErrTooManyProbes
		}
		cb.probes++
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) afterRequest(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.onFailure()
		return
	}
	cb.onSuccess()
}

func (cb *CircuitBreaker) onSuccess() {
	cb.consecutiveFails = 0

	if cb.state == StateHalfOpen {
		cb.probeSuccesses++
		if cb.probeSuccesses >= cb.halfOpenCalls {
			cb.setState(StateClosed)
			cb.logger.Info("circuit breaker closed after recovery")
		}
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.consecutiveFails++

	switch cb.state {
	case StateClosed:
		if cb.consecutiveFails >= cb.maxFailures {
			cb.setState(StateOpen)
			cb.logger.Warn("circuit breaker opened",
				zap.Int("consecutiveFailures", cb.consecutiveFails))
		}
	case StateHalfOpen:
		// Any probe failure reopens immediately.
		cb.setState(StateOpen)
		cb.logger.Warn("circuit breaker reopened after failed probe")
	}
}

func (cb *CircuitBreaker) setState(state State) {
	cb.state = state
	cb.lastStateChange = time.Now()
}

// GetState returns the current state.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset forces the breaker back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
	cb.consecutiveFails = 0
}
