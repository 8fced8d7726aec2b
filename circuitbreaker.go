package qrep

import (
	"log"
	"sync"
	"time"
)

/*
CircuitState represents the state of the circuit breaker guarding a backend.
*/
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // Jobs flow to the backend
	CircuitOpen                         // Backend is failing, submissions rejected
	CircuitHalfOpen                     // Probing the backend with a few jobs
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

/*
CircuitBreaker stops submitting jobs to a backend that keeps returning errored
or incomplete results, and lets a few probe jobs through once resetTimeout has
passed. Every rejected submission still counts against the retry budget of the
trial, so a backend that never recovers ends in ErrRetriesExhausted rather than
an endless wait.

The circuit breaker operates in three states:
  - Closed: jobs are submitted normally
  - Open: the failure threshold was reached, submissions are rejected
  - Half-Open: a limited number of probe jobs are allowed through
*/
type CircuitBreaker struct {
	mu               sync.RWMutex
	maxFailures      int           // Consecutive failures before opening
	resetTimeout     time.Duration // Time to wait before probing again
	halfOpenMax      int           // Successful probes needed to close
	failureCount     int
	state            CircuitState
	openTime         time.Time
	halfOpenAttempts int
	metrics          *Metrics
}

/*
NewCircuitBreaker creates a circuit breaker in the closed state.
*/
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration, halfOpenMax int) *CircuitBreaker {
	if halfOpenMax < 1 {
		halfOpenMax = 1
	}
	return &CircuitBreaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		halfOpenMax:  halfOpenMax,
		state:        CircuitClosed,
	}
}

// Observe implements Regulator. Every trip of the circuit is counted on metrics.
func (cb *CircuitBreaker) Observe(metrics *Metrics) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.metrics = metrics
}

// Limit implements Regulator.
func (cb *CircuitBreaker) Limit() bool {
	return !cb.Allow()
}

/*
Renormalize moves an open circuit to half-open once the reset timeout has
passed.
*/
func (cb *CircuitBreaker) Renormalize() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen && time.Since(cb.openTime) > cb.resetTimeout {
		cb.state = CircuitHalfOpen
		cb.halfOpenAttempts = 0
		log.Printf("Circuit breaker renormalized to half-open state")
	}
}

// RecordFailure counts a failed job and opens the circuit at the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	if cb.state == CircuitHalfOpen {
		// Any failed probe reopens the circuit
		cb.open()
		log.Printf("Circuit breaker reopened from half-open state")
		return
	}

	if cb.state == CircuitClosed && cb.failureCount >= cb.maxFailures {
		cb.open()
		log.Printf("Circuit breaker opened after %d failures", cb.failureCount)
	}
}

// open trips the circuit. The caller holds the mutex.
func (cb *CircuitBreaker) open() {
	cb.state = CircuitOpen
	cb.openTime = time.Now()
	cb.halfOpenAttempts = 0

	if cb.metrics != nil {
		cb.metrics.recordBreakerOpen()
	}
}

// RecordSuccess counts a completed job.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitHalfOpen:
		cb.halfOpenAttempts++
		if cb.halfOpenAttempts >= cb.halfOpenMax {
			cb.state = CircuitClosed
			cb.failureCount = 0
			cb.halfOpenAttempts = 0
			log.Printf("Circuit breaker closed from half-open")
		}
	case CircuitClosed:
		cb.failureCount = 0
	}
}

// Allow reports whether a job may be submitted now.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if time.Since(cb.openTime) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			cb.halfOpenAttempts = 0
			return true
		}
		return false
	case CircuitHalfOpen:
		return cb.halfOpenAttempts < cb.halfOpenMax
	default:
		return false
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}
