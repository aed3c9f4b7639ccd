package breaker

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the state of the circuit breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Breaker guards the live network path. Repeated network-class
// failures open it so the adapter can short-circuit straight to
// offline handling instead of waiting out a timeout per request.
// After the cooldown a limited number of trial calls are let through.
type Breaker struct {
	name        string
	maxFailures uint32
	cooldown    time.Duration

	mu            sync.Mutex
	state         State
	failures      uint32
	lastFailure   time.Time
	halfOpenCalls uint32

	logger *logrus.Logger
}

const halfOpenMaxCalls = 2

func New(name string, maxFailures uint32, cooldown time.Duration, logger *logrus.Logger) *Breaker {
	return &Breaker{
		name:        name,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		state:       StateClosed,
		logger:      logger,
	}
}

// Allow reports whether a live call may proceed right now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(b.lastFailure) < b.cooldown {
			return false
		}
		b.state = StateHalfOpen
		b.halfOpenCalls = 0
		b.logger.WithField("breaker", b.name).Info("Circuit breaker half-open, allowing trial calls")
		return true
	case StateHalfOpen:
		if b.halfOpenCalls >= halfOpenMaxCalls {
			return false
		}
		b.halfOpenCalls++
		return true
	default:
		return false
	}
}

// RecordSuccess closes the breaker after a successful live call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateClosed {
		b.logger.WithField("breaker", b.name).Info("Circuit breaker closed after recovery")
	}
	b.state = StateClosed
	b.failures = 0
	b.halfOpenCalls = 0
}

// RecordFailure counts a network-class failure; enough of them trip
// the breaker open.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = time.Now()

	if b.state == StateHalfOpen || (b.state == StateClosed && b.failures >= b.maxFailures) {
		b.state = StateOpen
		b.logger.WithFields(logrus.Fields{
			"breaker":  b.name,
			"failures": b.failures,
		}).Warn("Circuit breaker opened")
	}
}

// CurrentState returns the state at this instant.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// OpenError is returned when a call is refused by an open breaker.
type OpenError struct {
	Name string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is open", e.Name)
}
