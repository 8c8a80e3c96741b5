package infra

import (
	"log/slog"
	"sync"
	"time"
)

// BreakerState is the circuit breaker's admission mode.
type BreakerState int

const (
	BreakerClosed  BreakerState = iota // normal admission
	BreakerOpen                        // tripped, rejecting
	BreakerProbing                     // cooldown elapsed, testing recovery
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerProbing:
		return "probing"
	default:
		return "unknown"
	}
}

// Breaker trips after a run of consecutive failures and rejects callers
// until a cooldown elapses. After the cooldown it admits probe calls; a
// run of probe successes restores normal admission, any probe failure
// re-trips. Safe for concurrent use.
type Breaker struct {
	name string

	mu        sync.Mutex
	state     BreakerState
	fails     int
	probeWins int
	trippedAt time.Time

	tripAfter    int
	restoreAfter int
	cooldown     time.Duration
}

// NewBreaker builds a breaker that trips after 5 consecutive failures,
// cools down for 30 seconds, and restores after 2 probe successes.
func NewBreaker(name string) *Breaker {
	return &Breaker{
		name:         name,
		state:        BreakerClosed,
		tripAfter:    5,
		restoreAfter: 2,
		cooldown:     30 * time.Second,
	}
}

// Allow reports whether the caller may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed, BreakerProbing:
		return true
	case BreakerOpen:
		if time.Since(b.trippedAt) > b.cooldown {
			b.state = BreakerProbing
			b.probeWins = 0
			slog.Info("breaker probing", slog.String("breaker", b.name))
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess notes the call went through.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		b.fails = 0
	case BreakerProbing:
		b.probeWins++
		if b.probeWins >= b.restoreAfter {
			b.state = BreakerClosed
			b.fails = 0
			b.probeWins = 0
			slog.Info("breaker restored", slog.String("breaker", b.name))
		}
	}
}

// RecordFailure notes the call failed. Enough of these in a row trip the
// breaker; any failure during probing re-trips immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trippedAt = time.Now()

	switch b.state {
	case BreakerClosed:
		b.fails++
		if b.fails >= b.tripAfter {
			b.state = BreakerOpen
			slog.Warn("breaker tripped",
				slog.String("breaker", b.name),
				slog.Int("failures", b.fails))
		}
	case BreakerProbing:
		b.state = BreakerOpen
		b.probeWins = 0
		slog.Warn("breaker re-tripped during probe", slog.String("breaker", b.name))
	}
}

// State returns the current admission mode.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces normal admission.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = BreakerClosed
	b.fails = 0
	b.probeWins = 0
}
