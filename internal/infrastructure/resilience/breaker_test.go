package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var errBoom = errors.New("boom")

func fail(context.Context) error    { return errBoom }
func succeed(context.Context) error { return nil }

func tripAfter(n uint32) func(Counts) bool {
	return func(c Counts) bool { return c.ConsecutiveFailures >= n }
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		requests      []bool // true = success
		advance       time.Duration
		expectedState State
	}{
		{name: "stays closed on successes", requests: []bool{true, true, true}, expectedState: StateClosed},
		{name: "stays closed below threshold", requests: []bool{false, false, true, false}, expectedState: StateClosed},
		{name: "opens after consecutive failures", requests: []bool{false, false, false}, expectedState: StateOpen},
		{name: "half-open after timeout", requests: []bool{false, false, false}, advance: time.Minute, expectedState: StateHalfOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			breaker := New("test", Settings{
				Timeout:     30 * time.Second,
				ReadyToTrip: tripAfter(3),
				Now:         clock.Now,
			})

			for _, ok := range tt.requests {
				fn := fail
				if ok {
					fn = succeed
				}
				_ = breaker.Run(context.Background(), fn)
			}
			clock.Advance(tt.advance)

			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerRejectsWhileOpen(t *testing.T) {
	clock := newFakeClock()
	breaker := New("test", Settings{ReadyToTrip: tripAfter(1), Timeout: time.Second, Now: clock.Now})

	require.ErrorIs(t, breaker.Run(context.Background(), fail), errBoom)

	called := false
	err := breaker.Run(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	clock := newFakeClock()
	var transitions []string
	breaker := New("api", Settings{
		MaxRequests: 2,
		Timeout:     time.Second,
		ReadyToTrip: tripAfter(1),
		Now:         clock.Now,
		OnStateChange: func(name string, from, to State) {
			assert.Equal(t, "api", name)
			transitions = append(transitions, from.String()+">"+to.String())
		},
	})

	_ = breaker.Run(context.Background(), fail)
	clock.Advance(2 * time.Second)

	require.NoError(t, breaker.Run(context.Background(), succeed))
	assert.Equal(t, StateHalfOpen, breaker.State())
	require.NoError(t, breaker.Run(context.Background(), succeed))
	assert.Equal(t, StateClosed, breaker.State())

	assert.Equal(t, []string{"closed>open", "open>half-open", "half-open>closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	breaker := New("test", Settings{ReadyToTrip: tripAfter(1), Timeout: time.Second, Now: clock.Now})

	_ = breaker.Run(context.Background(), fail)
	clock.Advance(2 * time.Second)
	_ = breaker.Run(context.Background(), fail)

	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerHalfOpenLimitsProbes(t *testing.T) {
	clock := newFakeClock()
	breaker := New("test", Settings{ReadyToTrip: tripAfter(1), Timeout: time.Second, Now: clock.Now})

	_ = breaker.Run(context.Background(), fail)
	clock.Advance(2 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- breaker.Run(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, breaker.Run(context.Background(), succeed), ErrTooManyRequests)
	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerIsFailureClassifier(t *testing.T) {
	errClient := errors.New("not found")
	breaker := New("test", Settings{
		ReadyToTrip: tripAfter(1),
		IsFailure:   func(err error) bool { return err != nil && !errors.Is(err, errClient) },
	})

	for i := 0; i < 5; i++ {
		err := breaker.Run(context.Background(), func(context.Context) error { return errClient })
		assert.ErrorIs(t, err, errClient)
	}

	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, uint32(5), breaker.Counts().TotalSuccesses)
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	breaker := New("test", Settings{ReadyToTrip: tripAfter(1)})

	ctx, cancel := context.WithCancel(context.Background())
	err := breaker.Run(ctx, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, Counts{}, breaker.Counts())

	assert.ErrorIs(t, breaker.Run(ctx, succeed), context.Canceled)
}

func TestBreakerIntervalResetsCounts(t *testing.T) {
	clock := newFakeClock()
	breaker := New("test", Settings{Interval: time.Minute, ReadyToTrip: tripAfter(3), Now: clock.Now})

	_ = breaker.Run(context.Background(), fail)
	_ = breaker.Run(context.Background(), fail)
	assert.Equal(t, uint32(2), breaker.Counts().ConsecutiveFailures)

	clock.Advance(2 * time.Minute)
	_ = breaker.Run(context.Background(), fail)

	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, uint32(1), breaker.Counts().ConsecutiveFailures)
}

func TestExecuteReturnsTypedResult(t *testing.T) {
	breaker := New("test", Settings{})

	n, err := Execute(context.Background(), breaker, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestBreakerConcurrentRequests(t *testing.T) {
	breaker := New("test", Settings{ReadyToTrip: tripAfter(1000)})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = breaker.Run(context.Background(), succeed)
			} else {
				_ = breaker.Run(context.Background(), fail)
			}
		}(i)
	}
	wg.Wait()

	counts := breaker.Counts()
	assert.Equal(t, uint32(50), counts.Requests)
	assert.Equal(t, uint32(25), counts.TotalSuccesses)
	assert.Equal(t, uint32(25), counts.TotalFailures)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
