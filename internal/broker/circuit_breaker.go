package broker

import (
	"fmt"
	"sync"
	"time"

	"github.com/r58io/core-service/internal/config"
	"github.com/r58io/core-service/internal/logging"
)

// CircuitBreakerState is the current state of a CircuitBreaker.
type CircuitBreakerState string

const (
	StateClosed   CircuitBreakerState = "closed"
	StateOpen     CircuitBreakerState = "open"
	StateHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreaker wraps calls to the broker so repeated failures stop
// hammering an unreachable broker and instead fail fast until a recovery
// timeout elapses.
type CircuitBreaker struct {
	cfg             config.CircuitBreakerConfig
	logger          *logging.Logger
	name            string
	state           CircuitBreakerState
	failureCount    int
	lastFailureTime time.Time
	mutex           sync.RWMutex
}

// NewCircuitBreaker creates a new circuit breaker instance.
func NewCircuitBreaker(name string, cfg config.CircuitBreakerConfig, logger *logging.Logger) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg, logger: logger, name: name, state: StateClosed}
}

// Call executes operation with circuit breaker protection.
func (cb *CircuitBreaker) Call(operation func() error) error {
	state := cb.getState()

	if state == StateOpen {
		if time.Since(cb.lastFailureTime) > cb.cfg.RecoveryTimeout {
			cb.setState(StateHalfOpen)
			cb.logger.WithFields(logging.Fields{"circuit_breaker": cb.name, "state": StateHalfOpen}).
				Info("circuit breaker transitioning to half-open")
		} else {
			return &CircuitBreakerError{Name: cb.name, State: StateOpen, Msg: "circuit breaker is open"}
		}
	}

	err := operation()
	if err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) getState() CircuitBreakerState {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return cb.state
}

func (cb *CircuitBreaker) setState(state CircuitBreakerState) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.state = state
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount++
	cb.lastFailureTime = time.Now()

	if cb.failureCount >= cb.cfg.FailureThreshold {
		cb.state = StateOpen
		cb.logger.WithFields(logging.Fields{
			"circuit_breaker":   cb.name,
			"failure_count":     cb.failureCount,
			"failure_threshold": cb.cfg.FailureThreshold,
		}).Warn("circuit breaker opened")
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failureCount = 0
	if cb.state == StateHalfOpen {
		cb.state = StateClosed
		cb.logger.WithField("circuit_breaker", cb.name).Info("circuit breaker closed after successful call")
	}
}

// GetState returns the circuit breaker's current state.
func (cb *CircuitBreaker) GetState() CircuitBreakerState { return cb.getState() }

// Reset forces the circuit breaker back to closed.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.state = StateClosed
	cb.failureCount = 0
	cb.lastFailureTime = time.Time{}
}

// CircuitBreakerError is returned by Call when the breaker is open.
type CircuitBreakerError struct {
	Name  string
	State CircuitBreakerState
	Msg   string
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker %q is %s: %s", e.Name, e.State, e.Msg)
}
