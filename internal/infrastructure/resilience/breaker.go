package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
)

var (
	// ErrCircuitOpen is failsafe's open-circuit error, so errors.Is matches either name
	ErrCircuitOpen = circuitbreaker.ErrOpen
	// ErrTooManyRequests means the half-open circuit already has its trial calls in flight
	ErrTooManyRequests = errors.New("too many requests")
)

// Defaults used when Settings leaves a field zero
const (
	DefaultFailureThreshold = 3
	DefaultCooldown         = 30 * time.Second
	DefaultTrials           = 1
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
	// FailureThreshold is how many consecutive failures open the circuit
	FailureThreshold uint
	// Cooldown is how long the circuit stays open before trial calls
	Cooldown time.Duration
	// Trials is how many trial calls must succeed to close the circuit again
	Trials uint
	// IsFailure decides whether an error counts against the breaker.
	// Defaults to any error except context cancellation.
	IsFailure func(err error) bool
	// OnStateChange is called after every state change
	OnStateChange func(name string, from State, to State)
}

// Counts are the executions recorded in the current state
type Counts struct {
	Calls     uint
	Successes uint
	Failures  uint
}

// Breaker stops calling a local service after it failed repeatedly, then
// lets a few trial calls through once the cooldown has passed.
type Breaker struct {
	name      string
	isFailure func(err error) bool
	cb        circuitbreaker.CircuitBreaker[any]
}

// New creates a closed breaker
func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = DefaultFailureThreshold
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = DefaultCooldown
	}
	if settings.Trials == 0 {
		settings.Trials = DefaultTrials
	}
	if settings.IsFailure == nil {
		settings.IsFailure = defaultIsFailure
	}

	builder := circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(settings.FailureThreshold).
		WithDelay(settings.Cooldown).
		WithSuccessThreshold(settings.Trials)
	if notify := settings.OnStateChange; notify != nil {
		builder = builder.OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			notify(name, fromLibrary(e.OldState), fromLibrary(e.NewState))
		})
	}

	return &Breaker{
		name:      name,
		isFailure: settings.IsFailure,
		cb:        builder.Build(),
	}
}

func defaultIsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func fromLibrary(s circuitbreaker.State) State {
	switch s {
	case circuitbreaker.OpenState:
		return StateOpen
	case circuitbreaker.HalfOpenState:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state. An open circuit whose cooldown has
// passed reports half-open: the next call is a trial.
func (b *Breaker) State() State {
	state := fromLibrary(b.cb.State())
	if state == StateOpen && b.cb.RemainingDelay() <= 0 {
		return StateHalfOpen
	}
	return state
}

// Counts returns the executions recorded in the current state
func (b *Breaker) Counts() Counts {
	m := b.cb.Metrics()
	return Counts{
		Calls:     m.Executions(),
		Successes: m.Successes(),
		Failures:  m.Failures(),
	}
}

// RetryAt returns when an open circuit will admit a trial call.
// It is the zero time unless the circuit is open.
func (b *Breaker) RetryAt() time.Time {
	if b.State() != StateOpen {
		return time.Time{}
	}
	return time.Now().Add(b.cb.RemainingDelay())
}

// Execute runs fn if the breaker accepts the call.
// fn's error is returned unchanged; a rejected call returns ErrCircuitOpen
// or ErrTooManyRequests without calling fn.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !b.cb.TryAcquirePermit() {
		if b.cb.IsOpen() {
			return ErrCircuitOpen
		}
		return ErrTooManyRequests
	}

	defer func() {
		if e := recover(); e != nil {
			b.cb.RecordFailure()
			panic(e)
		}
	}()

	err := fn(ctx)
	if b.isFailure(err) {
		b.cb.RecordFailure()
	} else {
		b.cb.RecordSuccess()
	}
	return err
}
