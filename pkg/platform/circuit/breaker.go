// Package circuit implements a small failure-count circuit breaker for calls
// to external services. The breaker tracks consecutive outcomes: a run of
// failures opens the circuit and a run of successes while open closes it
// again. Callers decide what an open circuit means (fallback, fast error).
package circuit

import (
	"sync"
	"time"
)

// State is the breaker position.
type State string

const (
	// StateClosed lets calls through.
	StateClosed State = "closed"
	// StateOpen short-circuits calls.
	StateOpen State = "open"
)

// Change reports a state transition caused by a recorded outcome. Callers
// typically log transitions and ignore steady-state outcomes.
type Change struct {
	Opened bool
	Closed bool
}

// Breaker is safe for concurrent use.
type Breaker struct {
	mu   sync.Mutex
	name string

	failureThreshold int
	successThreshold int
	cooldown         time.Duration

	state     State
	failures  int
	successes int
	openedAt  time.Time
	probing   bool
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures open the circuit.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many consecutive successes close an open
// circuit.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithCooldown sets how long an open circuit waits before letting a single
// probe call through.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// New builds a closed breaker with the given name.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: 5,
		successThreshold: 1,
		cooldown:         30 * time.Second,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the breaker's name.
func (b *Breaker) Name() string { return b.name }

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsOpen reports whether the next call should be short-circuited. Once per
// cooldown interval an open breaker lets a single probe call through; that
// call's recorded outcome decides whether the circuit starts recovering.
func (b *Breaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateOpen {
		return false
	}
	if !b.probing && time.Since(b.openedAt) >= b.cooldown {
		b.probing = true
		return false
	}
	return true
}

// RecordFailure notes a failed call. It returns whether the caller should use
// its fallback, and any state transition this outcome caused.
func (b *Breaker) RecordFailure() (useFallback bool, change Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes = 0
	if b.state == StateOpen {
		b.openedAt = time.Now()
		b.probing = false
		return true, Change{}
	}
	b.failures++
	if b.failures >= b.failureThreshold {
		b.state = StateOpen
		b.failures = 0
		b.openedAt = time.Now()
		b.probing = false
		return true, Change{Opened: true}
	}
	return false, Change{}
}

// RecordSuccess notes a successful call. It returns whether an open circuit
// has recovered, and any state transition this outcome caused.
func (b *Breaker) RecordSuccess() (recovered bool, change Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateClosed {
		return false, Change{}
	}
	b.probing = false
	b.successes++
	if b.successes >= b.successThreshold {
		b.state = StateClosed
		b.successes = 0
		return true, Change{Closed: true}
	}
	return false, Change{}
}

// Reset forces the breaker closed and clears all counts.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.probing = false
}
