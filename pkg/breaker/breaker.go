package breaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker short-circuits a call without
// invoking the wrapped operation.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the current state of a circuit breaker.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// Config holds the tuning knobs for a Breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures in CLOSED
	// that trips the breaker to OPEN.
	FailureThreshold int
	// OpenDuration is how long the breaker stays OPEN before allowing
	// a recovery probe.
	OpenDuration time.Duration
	// HalfOpenSuccesses is the number of successful probes required in
	// HALF_OPEN to close the breaker again. Defaults to 1.
	HalfOpenSuccesses int
}

// Breaker is a generic circuit breaker protecting an outbound call.
// It carries no knowledge of the call it wraps; callers pass the
// operation to Execute.
type Breaker struct {
	mu sync.Mutex

	cfg             Config
	state           State
	failures        int
	successes       int
	lastFailureTime time.Time
	probeInFlight   bool

	// now is swappable for tests.
	now func() time.Time
}

// New creates a Breaker in the CLOSED state.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = 30 * time.Second
	}
	if cfg.HalfOpenSuccesses <= 0 {
		cfg.HalfOpenSuccesses = 1
	}
	return &Breaker{
		cfg:   cfg,
		state: StateClosed,
		now:   time.Now,
	}
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn through the breaker. In OPEN it fails fast with
// ErrOpen without invoking fn. In HALF_OPEN exactly one probe call is
// admitted at a time; concurrent callers are rejected with ErrOpen
// until the probe resolves.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.beforeCall(); err != nil {
		return err
	}

	err := fn()
	b.afterCall(err)
	return err
}

func (b *Breaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.lastFailureTime) < b.cfg.OpenDuration {
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.successes = 0
		b.probeInFlight = true
		return nil
	case StateHalfOpen:
		if b.probeInFlight {
			return ErrOpen
		}
		b.probeInFlight = true
		return nil
	}
	return fmt.Errorf("unknown breaker state %q", b.state)
}

func (b *Breaker) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.probeInFlight = false
	}

	if err != nil {
		b.onFailure()
		return
	}
	b.onSuccess()
}

func (b *Breaker) onSuccess() {
	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.cfg.HalfOpenSuccesses {
			b.reset()
		}
	}
}

func (b *Breaker) onFailure() {
	b.lastFailureTime = b.now()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = StateOpen
		}
	case StateHalfOpen:
		// Failed probe: back to OPEN, timer restarts.
		b.state = StateOpen
	}
}

func (b *Breaker) reset() {
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
}
