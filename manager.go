package goSession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/clock"
	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/jwt"
)

const (
	triggerInitial      = "initial"
	triggerNotification = "notification"
	triggerTimer        = "timer"
	triggerImmediate    = "immediate"
	triggerRefresh      = "refresh"
	triggerSignOut      = "sign_out"
	triggerClose        = "close"
)

// Manager owns one session and its refresh cycle. All methods are safe for concurrent
// use. Create it with [Builder.Build].
type Manager struct {
	config    Config
	provider  Provider
	clock     clock.Clock
	logger    *slog.Logger
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	inspector *jwt.Inspector
	onInvalid InvalidationHandler
	ready     bool

	mu         sync.Mutex
	state      State
	current    *Session
	timer      clock.Timer
	deadline   time.Time
	generation uint64
	// inflight is the generation of the refresh call in progress, 0 when idle.
	inflight uint64
	subs     map[*managedSubscription]struct{}
	closed   bool
}

// schedule is the outcome of installing a session, acted on after the lock is released.
type schedule struct {
	gen        uint64
	expiresAt  time.Time
	until      time.Duration
	delay      time.Duration
	known      bool
	armed      bool
	immediate  bool
	expiryFrom string
}

/*
====================================
PUBLIC OPERATIONS
====================================
*/

// GetInitialSession reads the provider's current session and, when there is one,
// installs it and schedules its refresh. Provider errors are logged and reported as no
// session.
func (m *Manager) GetInitialSession(ctx context.Context) *Session {
	if err := m.usable(); err != nil {
		return nil
	}

	sess, err := m.provider.GetSession(ctx)
	if err != nil {
		m.metrics.Inc(MetricInitialSessionFailure)
		m.logger.Error("goSession: initial session read failed", "error", err)
		m.emitAudit(auditEventInitialSessionFailed, triggerInitial, nil, false, err, nil)
		return nil
	}
	if sess == nil {
		m.emitAudit(auditEventInitialSession, triggerInitial, nil, true, nil, func() map[string]string {
			return map[string]string{"session": "none"}
		})
		return nil
	}

	m.metrics.Inc(MetricInitialSessionLoaded)
	m.emitAudit(auditEventInitialSession, triggerInitial, sess, true, nil, nil)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return sess
	}
	sch := m.installLocked(sess, transitionInstall)
	m.mu.Unlock()

	m.afterInstall(sess, sch, triggerInitial)
	return sess
}

// SetupAuthSubscription subscribes to provider auth-state changes. For each notification
// the refresh timer is rescheduled for the new session, or cancelled when the session is
// nil, and then the session is forwarded to onChange once. The returned Subscription
// stops forwarding when unsubscribed; Close unsubscribes it too.
//
// onChange may call back into the Manager, for example SignOut. A notification caused by
// such a call is forwarded after onChange returns.
func (m *Manager) SetupAuthSubscription(onChange ChangeFunc) (Subscription, error) {
	if err := m.usable(); err != nil {
		return nil, err
	}

	sub := &managedSubscription{manager: m}
	sub.active.Store(true)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	m.subs[sub] = struct{}{}
	m.mu.Unlock()

	inner, err := m.provider.OnAuthStateChange(func(event AuthEvent, sess *Session) {
		m.handleAuthChange(sub, event, sess, onChange)
	})
	if err != nil {
		sub.Unsubscribe()
		m.logger.Error("goSession: auth state subscription failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSubscriptionFailed, err)
	}

	m.mu.Lock()
	sub.inner = inner
	m.mu.Unlock()
	if !sub.active.Load() && inner != nil {
		// Unsubscribed from inside a notification delivered before OnAuthStateChange returned.
		inner.Unsubscribe()
	}
	return sub, nil
}

// SignOut signs out at the provider. On success the refresh timer is cancelled and the
// manager holds no session. On failure the returned error wraps [ErrSignOutFailed] and
// the provider error, and the timer is left as it was.
func (m *Manager) SignOut(ctx context.Context) error {
	if err := m.usable(); err != nil {
		return err
	}

	if err := m.provider.SignOut(ctx); err != nil {
		m.metrics.Inc(MetricSignOutFailure)
		m.logger.Warn("goSession: sign out failed", "error", err)
		wrapped := fmt.Errorf("%w: %w", ErrSignOutFailed, err)
		m.emitAudit(auditEventSignOutFailed, triggerSignOut, m.Current(), false, wrapped, nil)
		return wrapped
	}

	m.mu.Lock()
	prev := m.current
	m.clearLocked()
	m.mu.Unlock()

	m.metrics.Inc(MetricSignOut)
	m.logger.Info("goSession: signed out")
	m.emitAudit(auditEventSignOut, triggerSignOut, prev, true, nil, nil)
	return nil
}

// Current returns the installed session, or nil.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// State returns the refresh-cycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// NextRefresh returns when the pending refresh timer fires. ok is false when no timer is
// armed.
func (m *Manager) NextRefresh() (at time.Time, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer == nil {
		return time.Time{}, false
	}
	return m.deadline, true
}

// MetricsSnapshot returns a copy of the in-process metrics.
func (m *Manager) MetricsSnapshot() MetricsSnapshot {
	return m.metrics.Snapshot()
}

// Metrics exposes the live metric set for exporters.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// AuditDropped returns how many audit events were dropped because the buffer was full.
func (m *Manager) AuditDropped() uint64 {
	return m.audit.Dropped()
}

// Close cancels the refresh timer, unsubscribes every subscription and flushes audit
// events. Refresh calls already in flight complete but their results are discarded.
// Close is idempotent.
func (m *Manager) Close() {
	if m == nil || !m.ready {
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.clearLocked()
	subs := make([]*managedSubscription, 0, len(m.subs))
	for sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	m.emitAudit(auditEventSessionCleared, triggerClose, nil, true, nil, nil)
	m.audit.Close()
}

/*
====================================
REFRESH CYCLE
====================================
*/

func (m *Manager) usable() error {
	if m == nil || !m.ready {
		return ErrManagerNotReady
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrManagerClosed
	}
	return nil
}

// installLocked makes sess current and rearms the refresh timer.
func (m *Manager) installLocked(sess *Session, t transition) schedule {
	m.stopTimerLocked()
	m.generation++
	m.current = sess
	m.state = nextState(m.state, t)

	sch := schedule{gen: m.generation}
	expiresAt, from, ok := m.expiryOf(sess)
	if !ok {
		return sch
	}

	now := m.clock.Now()
	sch.known = true
	sch.expiresAt = expiresAt
	sch.expiryFrom = from
	sch.until = expiresAt.Sub(now)
	sch.immediate = sch.until < m.config.Refresh.Window
	sch.delay = sch.until - m.config.Refresh.LeadTime
	if sch.delay < 0 {
		sch.delay = 0
	}

	if sch.immediate && m.config.Refresh.SuppressRedundantTimer {
		return sch
	}

	gen := sch.gen
	m.timer = m.clock.AfterFunc(sch.delay, func() {
		m.refresh(gen, triggerTimer)
	})
	m.deadline = now.Add(sch.delay)
	sch.armed = true
	return sch
}

// afterInstall records an install and dispatches the immediate refresh, if any.
func (m *Manager) afterInstall(sess *Session, sch schedule, trigger string) {
	m.metrics.Inc(MetricSessionInstalled)

	if !sch.known {
		m.metrics.Inc(MetricExpiryUnknown)
		m.logger.Warn("goSession: session has no usable expiry, refresh not scheduled",
			"trigger", trigger, "user_id", sess.UserID)
		m.emitAudit(auditEventSessionInstalled, trigger, sess, false, ErrExpiryUnknown, nil)
		return
	}

	m.emitAudit(auditEventSessionInstalled, trigger, sess, true, nil, func() map[string]string {
		return map[string]string{"expiry_source": sch.expiryFrom}
	})

	if sch.armed {
		m.metrics.Inc(MetricRefreshScheduled)
		m.logger.Debug("goSession: refresh scheduled",
			"trigger", trigger, "in", sch.delay, "expires_in", sch.until)
		m.emitAudit(auditEventRefreshScheduled, trigger, sess, true, nil, func() map[string]string {
			return map[string]string{"delay": sch.delay.String()}
		})
	}

	if sch.immediate {
		m.metrics.Inc(MetricRefreshImmediate)
		m.logger.Debug("goSession: session inside refresh window, refreshing now",
			"trigger", trigger, "expires_in", sch.until)
		gen := sch.gen
		m.clock.Go(func() {
			m.refresh(gen, triggerImmediate)
		})
	}
}

// refresh runs one provider refresh for the session installed at generation gen.
func (m *Manager) refresh(gen uint64, trigger string) {
	m.mu.Lock()
	if m.closed || gen != m.generation {
		m.mu.Unlock()
		m.metrics.Inc(MetricRefreshStale)
		return
	}
	if trigger == triggerTimer {
		m.timer = nil
		m.deadline = time.Time{}
	}
	if m.inflight == gen {
		m.mu.Unlock()
		m.metrics.Inc(MetricRefreshCoalesced)
		m.logger.Debug("goSession: refresh already in flight", "trigger", trigger)
		return
	}
	m.inflight = gen
	m.state = nextState(m.state, transitionRefreshStart)
	prev := m.current
	m.mu.Unlock()

	ctx := context.Background()
	if m.config.Refresh.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.Refresh.Timeout)
		defer cancel()
	}

	start := time.Now()
	next, err := m.provider.RefreshSession(ctx)
	m.metrics.Observe(MetricRefreshLatency, time.Since(start))

	m.mu.Lock()
	if m.inflight == gen {
		m.inflight = 0
	}
	superseded := gen != m.generation
	// A provider may clear the session through a notification while its refresh fails.
	// The failure still invalidates unless a newer session was installed meanwhile.
	clearedMeanwhile := superseded && m.current == nil && err != nil
	if m.closed || (superseded && !clearedMeanwhile) {
		m.mu.Unlock()
		m.metrics.Inc(MetricRefreshStale)
		m.logger.Debug("goSession: discarding superseded refresh result", "trigger", trigger)
		return
	}

	switch {
	case err != nil:
		if !clearedMeanwhile {
			m.stopTimerLocked()
			m.generation++
			m.current = nil
			m.state = nextState(m.state, transitionRefreshFailed)
		}
		at := m.clock.Now()
		m.mu.Unlock()
		m.invalidate(prev, trigger, err, at)

	case next == nil:
		m.stopTimerLocked()
		m.generation++
		m.current = nil
		m.state = nextState(m.state, transitionRefreshDeclined)
		m.mu.Unlock()

		m.metrics.Inc(MetricRefreshEmpty)
		m.logger.Info("goSession: provider returned no session, refresh cycle ended", "trigger", trigger)
		m.emitAudit(auditEventRefreshDeclined, trigger, prev, true, nil, nil)

	default:
		sch := m.installLocked(next, transitionRefreshSucceeded)
		m.mu.Unlock()

		m.metrics.Inc(MetricRefreshSuccess)
		m.emitAudit(auditEventRefreshSucceeded, trigger, next, true, nil, nil)
		m.afterInstall(next, sch, triggerRefresh)
	}
}

func (m *Manager) invalidate(prev *Session, trigger string, cause error, at time.Time) {
	err := fmt.Errorf("%w: %w", ErrRefreshFailed, cause)

	m.metrics.Inc(MetricRefreshFailure)
	m.metrics.Inc(MetricSessionInvalidated)
	m.logger.Error("goSession: session refresh failed, session invalidated",
		"trigger", trigger, "error", cause)
	m.emitAudit(auditEventRefreshFailed, trigger, prev, false, err, nil)
	m.emitAudit(auditEventSessionInvalidated, trigger, prev, false, err, nil)

	if m.onInvalid == nil {
		return
	}
	m.onInvalid.SessionInvalidated(context.Background(), Invalidation{
		Reason:  InvalidationRefreshFailed,
		Session: prev,
		Err:     err,
		At:      at,
	})
}

func (m *Manager) handleAuthChange(sub *managedSubscription, event AuthEvent, sess *Session, onChange ChangeFunc) {
	if !sub.active.Load() {
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if sess != nil {
		sch := m.installLocked(sess, transitionInstall)
		m.mu.Unlock()
		m.afterInstall(sess, sch, triggerNotification)
	} else {
		prev := m.current
		m.clearLocked()
		m.mu.Unlock()
		m.metrics.Inc(MetricSessionCleared)
		m.emitAudit(auditEventSessionCleared, triggerNotification, prev, true, nil, func() map[string]string {
			return map[string]string{"event": string(event)}
		})
	}

	if onChange != nil {
		onChange(sess)
	}
	m.metrics.Inc(MetricNotificationForwarded)
}

func (m *Manager) clearLocked() {
	m.stopTimerLocked()
	m.generation++
	m.current = nil
	m.state = nextState(m.state, transitionClear)
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.deadline = time.Time{}
}

// expiryOf returns the absolute expiry of sess and where it came from.
func (m *Manager) expiryOf(sess *Session) (time.Time, string, bool) {
	if !sess.ExpiresAt.IsZero() {
		return sess.ExpiresAt, "session", true
	}
	if m.inspector == nil || sess.AccessToken == "" {
		return time.Time{}, "", false
	}
	exp, err := m.inspector.Expiry(sess.AccessToken)
	if err != nil {
		if !errors.Is(err, jwt.ErrNoExpiry) {
			m.logger.Debug("goSession: access token expiry unreadable", "error", err)
		}
		return time.Time{}, "", false
	}
	return exp, "access_token", true
}

/*
====================================
SUBSCRIPTIONS
====================================
*/

type managedSubscription struct {
	manager *Manager
	inner   Subscription
	active  atomic.Bool
	once    sync.Once
}

// Unsubscribe stops forwarding and releases the provider subscription. It is idempotent.
func (s *managedSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.active.Store(false)

		m := s.manager
		m.mu.Lock()
		delete(m.subs, s)
		inner := s.inner
		m.mu.Unlock()

		if inner != nil {
			inner.Unsubscribe()
		}
	})
}
