package app

import (
	"context"
	"sync"
	"time"

	"github.com/cubiclauncher/kepler/internal/infrastructure/monitoring"
	"github.com/cubiclauncher/kepler/internal/presence"
	"github.com/cubiclauncher/kepler/internal/shared/types"
	"go.uber.org/zap"
)

// Manager owns the launcher's current activity and mirrors it to the
// presence client. Every transition holds the write lock across the
// presence call, so updates reach the service in commit order.
type Manager struct {
	mu        sync.RWMutex
	current   types.Activity  // Protected by mu
	client    presence.Client // Protected by mu
	changedAt *time.Time      // Protected by mu

	subMu     sync.Mutex
	listeners []chan types.StateEvent // Protected by subMu

	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewManager creates an idle manager with no presence client.
// Transitions are tracked locally until a client is attached.
func NewManager() *Manager {
	return &Manager{
		current: types.Idle(),
		log:     zap.NewNop(),
	}
}

// NewManagerWithClient creates an idle manager that reports to client
func NewManagerWithClient(client presence.Client) *Manager {
	m := NewManager()
	m.client = client
	return m
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	if metrics != nil {
		metrics.SetActivity(string(m.current.Kind), string(types.KindIdle), string(types.KindPlaying))
		metrics.SetPresenceAttached(m.client != nil)
	}
	return m
}

// WithLogger sets the logger used for transition and presence messages
func (m *Manager) WithLogger(log *zap.Logger) *Manager {
	if log != nil {
		m.log = log
	}
	return m
}

// SetState moves the manager to next. Requesting the current state is a
// no-op that does not touch the presence client. With a client attached the
// new state is committed only after the client accepted the update.
func (m *Manager) SetState(ctx context.Context, next types.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.setStateLocked(ctx, normalize(next))
}

// TransitionToPlaying validates version and switches to playing it
func (m *Manager) TransitionToPlaying(ctx context.Context, version string) error {
	if err := ValidateVersion(version); err != nil {
		m.recordTransition(types.KindPlaying, monitoring.ResultRejected)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.IsPlaying() && m.current.Version == version {
		m.recordTransition(types.KindPlaying, monitoring.ResultNoop)
		return nil
	}

	return m.setStateLocked(ctx, types.Playing(version))
}

// TransitionToIdle switches to idle
func (m *Manager) TransitionToIdle(ctx context.Context) error {
	return m.SetState(ctx, types.Idle())
}

// setStateLocked performs compare, report and commit (must hold lock)
func (m *Manager) setStateLocked(ctx context.Context, next types.Activity) error {
	if next == m.current {
		m.recordTransition(next.Kind, monitoring.ResultNoop)
		return nil
	}

	if next.IsPlaying() {
		if err := ValidateVersion(next.Version); err != nil {
			m.recordTransition(next.Kind, monitoring.ResultRejected)
			return err
		}
	}

	if m.client == nil {
		m.commitLocked(next, false)
		return nil
	}

	var payload presence.Activity
	if next.IsPlaying() {
		payload = PlayingActivity(next.Version)
	} else {
		payload = IdleActivity()
	}

	timer := monitoring.NewTimer(m.metrics, "set_activity")
	err := m.client.SetActivity(ctx, payload)
	timer.Stop(monitoring.Status(err))
	if err != nil {
		m.log.Warn("presence update failed",
			zap.Stringer("current", m.current),
			zap.Stringer("requested", next),
			zap.Error(err))
		m.recordTransition(next.Kind, monitoring.ResultFailed)
		return &PresenceError{Op: "set_activity", Err: err}
	}

	m.commitLocked(next, true)
	return nil
}

// commitLocked stores next and notifies subscribers (must hold lock)
func (m *Manager) commitLocked(next types.Activity, reported bool) {
	prev := m.current
	now := time.Now()
	m.current = next
	m.changedAt = &now

	m.log.Info("activity changed",
		zap.Stringer("from", prev),
		zap.Stringer("to", next),
		zap.Bool("reported", reported))
	m.recordTransition(next.Kind, monitoring.ResultCommitted)
	if m.metrics != nil {
		m.metrics.SetActivity(string(next.Kind), string(types.KindIdle), string(types.KindPlaying))
	}

	m.notify(types.StateEvent{
		Type:      "state_changed",
		From:      prev,
		To:        next,
		Reported:  reported,
		Timestamp: now,
	})
}

// State returns the current activity
func (m *Manager) State() types.Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.current
}

// IsPlaying reports whether a game version is running
func (m *Manager) IsPlaying() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.current.IsPlaying()
}

// IsIdle reports whether the launcher is idle
func (m *Manager) IsIdle() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.current.IsIdle()
}

// CurrentVersion returns the running version, if any
func (m *Manager) CurrentVersion() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.current.IsPlaying() {
		return "", false
	}
	return m.current.Version, true
}

// Snapshot returns a consistent copy of the manager state
func (m *Manager) Snapshot() types.StateSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var changedAt *time.Time
	if m.changedAt != nil {
		t := *m.changedAt
		changedAt = &t
	}

	return types.StateSnapshot{
		Activity:        m.current,
		PresenceEnabled: m.client != nil,
		ChangedAt:       changedAt,
	}
}

// AttachPresenceClient installs client, replacing any previous one.
// Nothing is sent until the next effective transition.
func (m *Manager) AttachPresenceClient(client presence.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.client = client
	if m.metrics != nil {
		m.metrics.SetPresenceAttached(client != nil)
	}
}

// HasPresenceClient reports whether transitions are being reported
func (m *Manager) HasPresenceClient() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.client != nil
}

// DisconnectPresenceClient detaches the presence client and disconnects it.
// The client is detached even if Disconnect fails; it is never reused.
func (m *Manager) DisconnectPresenceClient(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	client := m.client
	if client == nil {
		return nil
	}
	m.client = nil
	if m.metrics != nil {
		m.metrics.SetPresenceAttached(false)
	}

	timer := monitoring.NewTimer(m.metrics, "disconnect")
	err := client.Disconnect(ctx)
	timer.Stop(monitoring.Status(err))
	if err != nil {
		m.log.Warn("presence disconnect failed", zap.Error(err))
		return &PresenceError{Op: "disconnect", Err: err}
	}

	m.log.Info("presence client disconnected")
	return nil
}

// Validate checks the manager's invariant
func (m *Manager) Validate() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current.IsPlaying() && m.current.Version == "" {
		return &InvalidStateError{Reason: "playing version cannot be empty"}
	}
	return nil
}

// Subscribe returns a channel receiving an event after every committed
// transition. Events are dropped for subscribers that fall behind.
func (m *Manager) Subscribe() chan types.StateEvent {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	ch := make(chan types.StateEvent, 16)
	m.listeners = append(m.listeners, ch)
	return ch
}

// Unsubscribe removes and closes ch
func (m *Manager) Unsubscribe(ch chan types.StateEvent) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for i, listener := range m.listeners {
		if listener == ch {
			close(listener)
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

func (m *Manager) notify(evt types.StateEvent) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for _, ch := range m.listeners {
		select {
		case ch <- evt:
		default:
		}
	}
}

func (m *Manager) recordTransition(to types.Kind, result string) {
	if m.metrics != nil {
		m.metrics.RecordTransition(string(to), result)
	}
}

// normalize maps anything that is not a playing activity to Idle
func normalize(a types.Activity) types.Activity {
	if a.IsPlaying() {
		return types.Playing(a.Version)
	}
	return types.Idle()
}
