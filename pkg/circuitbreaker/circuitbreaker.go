package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

type Config struct {
	FailureThreshold int           // consecutive failures that open the circuit
	SuccessThreshold int           // half-open successes that close it again
	Timeout          time.Duration // open -> half-open delay
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Timeout:          30 * time.Second,
	}
}

// CircuitBreaker fails fast while a dependency keeps failing. Half-open lets
// a single trial call through at a time.
type CircuitBreaker struct {
	config Config
	now    func() time.Time

	mu            sync.Mutex
	state         State
	failures      int
	successes     int
	probing       bool
	openedAt      time.Time
	onStateChange func(from, to State)
}

func New(config Config) *CircuitBreaker {
	return &CircuitBreaker{
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
}

// OnStateChange registers fn, called synchronously under the breaker lock.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.Timeout {
			return ErrOpen
		}
		cb.transitionTo(StateHalfOpen)
		cb.probing = true
	case StateHalfOpen:
		if cb.probing {
			return fmt.Errorf("%w: trial call in flight", ErrOpen)
		}
		cb.probing = true
	}
	return nil
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if err != nil {
		cb.successes = 0
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(StateOpen)
		}
		return
	}

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.transitionTo(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) transitionTo(next State) {
	if cb.state == next {
		return
	}
	prev := cb.state
	cb.state = next
	cb.failures = 0
	cb.successes = 0
	if next == StateOpen {
		cb.openedAt = cb.now()
	}
	if cb.onStateChange != nil {
		cb.onStateChange(prev, next)
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false
	cb.transitionTo(StateClosed)
}
