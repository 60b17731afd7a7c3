package infra

import (
	"errors"
	"sync"
	"time"
)

// Breaker guards background calls to the billing backend (movement retries).
// Interactive calls from the cashier screen do not go through it: the cashier
// gets the real error and decides.
//
//	closed ──(N failures)──▶ open ──(cooldown)──▶ half-open ──(M successes)──▶ closed
//	                          ▲                        │
//	                          └────────(failure)───────┘

type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrBreakerOpen = errors.New("backend circuit breaker is open")

type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, SuccessThreshold: 2, Cooldown: time.Minute}
}

type Breaker struct {
	mu        sync.Mutex
	cfg       BreakerConfig
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time
	now       func() time.Time
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// State reports the current state, moving open to half-open once the
// cooldown has elapsed.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() BreakerState {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		b.state = BreakerHalfOpen
		b.successes = 0
	}
	return b.state
}

// Do runs fn unless the breaker is open.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.stateLocked() == BreakerOpen {
		b.mu.Unlock()
		return ErrBreakerOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

func (b *Breaker) recordFailure() {
	b.failures++
	switch b.state {
	case BreakerHalfOpen:
		b.trip()
	case BreakerClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.trip()
		}
	}
}

func (b *Breaker) recordSuccess() {
	if b.state == BreakerHalfOpen {
		b.successes++
		if b.successes < b.cfg.SuccessThreshold {
			return
		}
		b.state = BreakerClosed
		b.successes = 0
	}
	b.failures = 0
}

func (b *Breaker) trip() {
	b.state = BreakerOpen
	b.openedAt = b.now()
	b.failures = 0
	b.successes = 0
}
