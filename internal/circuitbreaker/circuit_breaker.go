// Package circuitbreaker implements the circuit breaker pattern for
// best-effort collaborators whose outages must not stall the crawl.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/case-scanner/internal/logging"
)

// State represents the circuit breaker state
type State string

const (
	// StateClosed means requests are allowed
	StateClosed State = "closed"
	// StateOpen means requests are blocked
	StateOpen State = "open"
	// StateHalfOpen means the breaker is probing for recovery
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config configures a circuit breaker
type Config struct {
	Name        string
	MaxFailures int           // Consecutive failures before opening
	Timeout     time.Duration // Time to wait before attempting half-open
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) *Config {
	return &Config{
		Name:        name,
		MaxFailures: 5,
		Timeout:     30 * time.Second,
	}
}

// CircuitBreaker trips after a run of consecutive failures, rejects calls
// while open, and probes with a single call after the timeout elapses.
type CircuitBreaker struct {
	name        string
	maxFailures int
	timeout     time.Duration

	mu               sync.Mutex
	state            State
	consecutiveFails int
	lastStateChange  time.Time
}

// New creates a circuit breaker in the closed state.
func New(cfg *Config) *CircuitBreaker {
	return &CircuitBreaker{
		name:            cfg.Name,
		maxFailures:     cfg.MaxFailures,
		timeout:         cfg.Timeout,
		state:           StateClosed,
		lastStateChange: time.Now(),
	}
}

// Execute runs fn under breaker protection. When the breaker is open the
// call is rejected with ErrCircuitOpen without invoking fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := cb.beforeRequest(ctx); err != nil {
		return err
	}
	err := fn()
	cb.afterRequest(ctx, err)
	return err
}

// CurrentState returns the breaker state, for health reporting.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) beforeRequest(ctx context.Context) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastStateChange) <= cb.timeout {
			return ErrCircuitOpen
		}
		cb.setState(ctx, StateHalfOpen)
	}
	return nil
}

func (cb *CircuitBreaker) afterRequest(ctx context.Context, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.consecutiveFails = 0
		if cb.state == StateHalfOpen {
			cb.setState(ctx, StateClosed)
		}
		return
	}

	cb.consecutiveFails++
	if cb.state == StateHalfOpen || cb.consecutiveFails >= cb.maxFailures {
		cb.setState(ctx, StateOpen)
	}
}

// setState transitions the breaker; callers hold the mutex.
func (cb *CircuitBreaker) setState(ctx context.Context, next State) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	cb.lastStateChange = time.Now()

	logging.FromContext(ctx).WithFields(map[string]any{
		"circuitBreaker":   cb.name,
		"from":             string(prev),
		"to":               string(next),
		"consecutiveFails": cb.consecutiveFails,
	}).Warn("circuit breaker state change")
}
