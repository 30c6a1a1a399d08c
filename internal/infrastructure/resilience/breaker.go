package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// MaxRequests is the number of probes allowed while half-open
	MaxRequests uint32
	// Interval clears closed-state counts periodically; zero keeps them
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing
	Timeout time.Duration
	// ReadyToTrip decides whether a closed breaker should open
	ReadyToTrip func(counts Counts) bool
	// IsFailure classifies an error; nil errors are always successes.
	// Errors that are not failures still reach the caller.
	IsFailure func(err error) bool
	// OnStateChange is called outside the breaker lock
	OnStateChange func(name string, from State, to State)
	// Now overrides the clock in tests
	Now func() time.Time
}

// Counts holds the statistics for the current generation
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

type transition struct {
	from, to State
}

// Breaker guards calls to a flaky dependency
type Breaker struct {
	name     string
	settings Settings

	mu         sync.Mutex
	state      State
	generation uint64
	counts     Counts
	expiry     time.Time
}

// New creates a circuit breaker, filling unset settings with defaults
func New(name string, settings Settings) *Breaker {
	if settings.MaxRequests == 0 {
		settings.MaxRequests = 1
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.ReadyToTrip == nil {
		settings.ReadyToTrip = func(counts Counts) bool {
			return counts.ConsecutiveFailures >= 5
		}
	}
	if settings.IsFailure == nil {
		settings.IsFailure = func(err error) bool { return err != nil }
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}

	b := &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
	}
	b.armClosed(settings.Now())
	return b
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	state, _, changes := b.current(b.settings.Now())
	b.mu.Unlock()

	b.notify(changes)
	return state
}

// Counts returns a copy of the current generation's counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.counts
}

// Run executes fn if the breaker admits it. A cancelled context is not
// counted against the dependency.
func (b *Breaker) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	generation, err := b.admit()
	if err != nil {
		return err
	}

	defer func() {
		if e := recover(); e != nil {
			b.record(generation, false)
			panic(e)
		}
	}()

	err = fn(ctx)
	if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		b.release(generation)
		return err
	}
	b.record(generation, !b.settings.IsFailure(err))
	return err
}

// Execute runs fn through the breaker and returns its typed result
func Execute[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := b.Run(ctx, func(ctx context.Context) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	return result, err
}

func (b *Breaker) admit() (uint64, error) {
	b.mu.Lock()
	state, generation, changes := b.current(b.settings.Now())

	switch {
	case state == StateOpen:
		b.mu.Unlock()
		b.notify(changes)
		return generation, ErrCircuitOpen
	case state == StateHalfOpen && b.counts.Requests >= b.settings.MaxRequests:
		b.mu.Unlock()
		b.notify(changes)
		return generation, ErrTooManyRequests
	}

	b.counts.Requests++
	b.mu.Unlock()
	b.notify(changes)
	return generation, nil
}

// release returns an admitted slot without recording an outcome
func (b *Breaker) release(before uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.generation == before && b.counts.Requests > 0 {
		b.counts.Requests--
	}
}

func (b *Breaker) record(before uint64, success bool) {
	now := b.settings.Now()

	b.mu.Lock()
	state, generation, changes := b.current(now)
	if generation != before {
		b.mu.Unlock()
		b.notify(changes)
		return
	}

	if success {
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if state == StateHalfOpen && b.counts.ConsecutiveSuccesses >= b.settings.MaxRequests {
			changes = append(changes, b.setState(StateClosed, now))
		}
	} else {
		b.counts.TotalFailures++
		b.counts.ConsecutiveFailures++
		b.counts.ConsecutiveSuccesses = 0
		if state == StateHalfOpen || b.settings.ReadyToTrip(b.counts) {
			changes = append(changes, b.setState(StateOpen, now))
		}
	}
	b.mu.Unlock()
	b.notify(changes)
}

// current advances time-based transitions. Callers hold the lock.
func (b *Breaker) current(now time.Time) (State, uint64, []transition) {
	var changes []transition

	switch b.state {
	case StateClosed:
		if !b.expiry.IsZero() && !now.Before(b.expiry) {
			b.counts = Counts{}
			b.generation++
			b.armClosed(now)
		}
	case StateOpen:
		if !now.Before(b.expiry) {
			changes = append(changes, b.setState(StateHalfOpen, now))
		}
	}

	return b.state, b.generation, changes
}

func (b *Breaker) setState(state State, now time.Time) transition {
	prev := b.state
	b.state = state
	b.counts = Counts{}
	b.generation++

	switch state {
	case StateClosed:
		b.armClosed(now)
	case StateOpen:
		b.expiry = now.Add(b.settings.Timeout)
	case StateHalfOpen:
		b.expiry = time.Time{}
	}

	return transition{from: prev, to: state}
}

func (b *Breaker) armClosed(now time.Time) {
	if b.settings.Interval > 0 {
		b.expiry = now.Add(b.settings.Interval)
	} else {
		b.expiry = time.Time{}
	}
}

func (b *Breaker) notify(changes []transition) {
	if b.settings.OnStateChange == nil {
		return
	}
	for _, c := range changes {
		if c.from != c.to {
			b.settings.OnStateChange(b.name, c.from, c.to)
		}
	}
}
