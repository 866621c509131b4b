package resilience

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDial = errors.New("dial unix /run/user/1000/discord-ipc-0: connect: no such file or directory")

func succeed(ctx context.Context) error { return nil }
func fail(ctx context.Context) error    { return errDial }

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		requests      []bool // true = success, false = failure
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			settings:      Settings{Cooldown: time.Minute},
			requests:      []bool{true, true, true},
			expectedState: StateClosed,
		},
		{
			name:          "opens after consecutive failures",
			settings:      Settings{Cooldown: time.Minute, FailureThreshold: 3},
			requests:      []bool{false, false, false},
			expectedState: StateOpen,
		},
		{
			name:          "success resets the failure streak",
			settings:      Settings{Cooldown: time.Minute, FailureThreshold: 2},
			requests:      []bool{false, true, false},
			expectedState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker := New("discord", tt.settings)
			ctx := context.Background()

			for _, ok := range tt.requests {
				fn := fail
				if ok {
					fn = succeed
				}
				_ = breaker.Execute(ctx, fn)
			}

			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerReturnsCallerError(t *testing.T) {
	breaker := New("discord", Settings{})

	err := breaker.Execute(context.Background(), fail)
	assert.ErrorIs(t, err, errDial)

	counts := breaker.Counts()
	assert.Equal(t, uint(1), counts.Calls)
	assert.Equal(t, uint(1), counts.Failures)
	assert.Equal(t, uint(0), counts.Successes)
	assert.Equal(t, StateClosed, breaker.State(), "default threshold is three failures")
}

func TestBreakerOpenStateSkipsCall(t *testing.T) {
	breaker := New("discord", Settings{
		Cooldown:         time.Minute,
		FailureThreshold: 2,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = breaker.Execute(ctx, fail)
	}
	require.Equal(t, StateOpen, breaker.State())

	called := false
	err := breaker.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenState(t *testing.T) {
	breaker := New("discord", Settings{
		Trials:           2,
		Cooldown:         50 * time.Millisecond,
		FailureThreshold: 2,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = breaker.Execute(ctx, fail)
	}
	assert.Equal(t, StateOpen, breaker.State())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, breaker.State())

	for i := 0; i < 2; i++ {
		require.NoError(t, breaker.Execute(ctx, succeed))
	}
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	breaker := New("discord", Settings{
		Cooldown:         20 * time.Millisecond,
		FailureThreshold: 1,
	})
	ctx := context.Background()

	_ = breaker.Execute(ctx, fail)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, StateHalfOpen, breaker.State())

	_ = breaker.Execute(ctx, fail)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	breaker := New("discord", Settings{FailureThreshold: 1})

	err := breaker.Execute(context.Background(), func(ctx context.Context) error {
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, uint(0), breaker.Counts().Failures)
}

func TestBreakerCustomIsFailure(t *testing.T) {
	errRejected := errors.New("payload rejected")
	breaker := New("discord", Settings{
		FailureThreshold: 1,
		IsFailure: func(err error) bool {
			return err != nil && !errors.Is(err, errRejected)
		},
	})

	err := breaker.Execute(context.Background(), func(ctx context.Context) error {
		return errRejected
	})
	assert.ErrorIs(t, err, errRejected)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerCanceledContextSkipsCall(t *testing.T) {
	breaker := New("discord", Settings{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := breaker.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestBreakerCallbacks(t *testing.T) {
	var (
		mu          sync.Mutex
		transitions []string
	)

	breaker := New("discord", Settings{
		Cooldown:         10 * time.Millisecond,
		FailureThreshold: 2,
		OnStateChange: func(name string, from State, to State) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_ = breaker.Execute(ctx, fail)
	}

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, breaker.State())
	require.NoError(t, breaker.Execute(ctx, succeed))

	want := []string{"discord:closed->open", "discord:open->half-open", "discord:half-open->closed"}
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, w := range want {
			if !slices.Contains(transitions, w) {
				return false
			}
		}
		return true
	}, time.Second, 5*time.Millisecond)
}

func TestBreakerHalfOpenAdmitsLimitedTrials(t *testing.T) {
	breaker := New("discord", Settings{
		Cooldown:         20 * time.Millisecond,
		FailureThreshold: 1,
	})
	ctx := context.Background()

	_ = breaker.Execute(ctx, fail)
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, StateHalfOpen, breaker.State())

	release := make(chan struct{})
	started := make(chan struct{})
	trialDone := make(chan error, 1)
	go func() {
		trialDone <- breaker.Execute(ctx, func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, breaker.Execute(ctx, succeed), ErrTooManyRequests)

	close(release)
	require.NoError(t, <-trialDone)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerRetryAt(t *testing.T) {
	breaker := New("discord", Settings{
		Cooldown:         time.Minute,
		FailureThreshold: 1,
	})
	assert.True(t, breaker.RetryAt().IsZero())

	before := time.Now()
	_ = breaker.Execute(context.Background(), fail)
	require.Equal(t, StateOpen, breaker.State())

	retryAt := breaker.RetryAt()
	assert.False(t, retryAt.Before(before.Add(time.Minute)))
	assert.True(t, retryAt.Before(time.Now().Add(time.Minute+time.Second)))
}
