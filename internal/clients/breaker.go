package clients

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// BreakerState represents the current state of the circuit breaker
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

// Breaker guards recommender endpoint calls. A cold or misconfigured model
// deployment times out slowly, so after repeated failures calls are refused
// outright until the endpoint proves healthy again.
type Breaker struct {
	name              string
	logger            *logrus.Logger
	state             BreakerState
	failureCount      int
	successCount      int
	lastFailureTime   time.Time
	mu                sync.RWMutex
	maxFailures       int           // Open circuit after N failures
	resetTimeout      time.Duration // Wait before trying half-open
	halfOpenSuccesses int           // Required successes to close circuit
}

// NewBreaker creates a circuit breaker for one recommender endpoint
func NewBreaker(name string, logger *logrus.Logger) *Breaker {
	return &Breaker{
		name:              name,
		logger:            logger,
		state:             StateClosed,
		maxFailures:       5,                // Open after 5 consecutive failures
		resetTimeout:      10 * time.Second, // Try half-open after 10s
		halfOpenSuccesses: 3,                // Need 3 successes to close
	}
}

// Execute runs an upstream call with circuit breaker protection
func (cb *Breaker) Execute(fn func() error) error {
	cb.mu.RLock()
	state := cb.state
	cb.mu.RUnlock()

	// If circuit is open, check if we should try half-open
	if state == StateOpen {
		cb.mu.Lock()
		if time.Since(cb.lastFailureTime) > cb.resetTimeout {
			cb.state = StateHalfOpen
			cb.successCount = 0
			cb.logger.WithField("endpoint", cb.name).Info("Circuit breaker: OPEN → HALF_OPEN (retry attempt)")
		} else {
			cb.mu.Unlock()
			return fmt.Errorf("circuit breaker is OPEN, refusing call to %s endpoint", cb.name)
		}
		cb.mu.Unlock()
	}

	err := fn()

	// Update circuit breaker state based on result
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.onFailure(err)
		return err
	}

	cb.onSuccess()
	return nil
}

// onFailure handles a failed upstream call
func (cb *Breaker) onFailure(err error) {
	cb.failureCount++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.failureCount >= cb.maxFailures {
			cb.state = StateOpen
			cb.logger.WithFields(logrus.Fields{
				"endpoint":      cb.name,
				"failure_count": cb.failureCount,
				"error":         err.Error(),
			}).Error("Circuit breaker: CLOSED → OPEN (endpoint unhealthy)")
		}

	case StateHalfOpen:
		cb.state = StateOpen
		cb.failureCount = 0
		cb.logger.WithField("endpoint", cb.name).WithError(err).Error("Circuit breaker: HALF_OPEN → OPEN (endpoint still unhealthy)")
	}
}

// onSuccess handles a successful upstream call
func (cb *Breaker) onSuccess() {
	cb.successCount++

	switch cb.state {
	case StateClosed:
		// Reset failure count on success in closed state
		if cb.failureCount > 0 {
			cb.failureCount = 0
		}

	case StateHalfOpen:
		if cb.successCount >= cb.halfOpenSuccesses {
			cb.state = StateClosed
			cb.failureCount = 0
			cb.successCount = 0
			cb.logger.WithField("endpoint", cb.name).Info("Circuit breaker: HALF_OPEN → CLOSED (endpoint recovered)")
		}
	}
}

// GetState returns the current circuit breaker state
func (cb *Breaker) GetState() BreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetStats returns current circuit breaker statistics
func (cb *Breaker) GetStats() map[string]interface{} {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	stateStr := "CLOSED"
	switch cb.state {
	case StateOpen:
		stateStr = "OPEN"
	case StateHalfOpen:
		stateStr = "HALF_OPEN"
	}

	return map[string]interface{}{
		"endpoint":      cb.name,
		"state":         stateStr,
		"failure_count": cb.failureCount,
		"success_count": cb.successCount,
		"max_failures":  cb.maxFailures,
		"last_failure":  cb.lastFailureTime,
		"reset_timeout": cb.resetTimeout.String(),
	}
}
