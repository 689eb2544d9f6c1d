package goSession

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	internalaudit "github.com/MrEthical07/goSession/internal/audit"
	"github.com/MrEthical07/goSession/session"
)

// Session is the authentication session held by a [Manager].
type Session = session.Session

// AuthEvent names an auth-state change reported by a [Provider].
type AuthEvent string

const (
	EventInitialSession   AuthEvent = "INITIAL_SESSION"
	EventSignedIn         AuthEvent = "SIGNED_IN"
	EventSignedOut        AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed   AuthEvent = "TOKEN_REFRESHED"
	EventUserUpdated      AuthEvent = "USER_UPDATED"
	EventPasswordRecovery AuthEvent = "PASSWORD_RECOVERY"
)

// AuthStateFunc receives provider notifications. sess is nil when the provider no longer
// holds a session.
type AuthStateFunc func(event AuthEvent, sess *Session)

// ChangeFunc receives the session forwarded by [Manager.SetupAuthSubscription].
type ChangeFunc func(sess *Session)

// Subscription is a handle to an auth-state change stream.
type Subscription interface {
	Unsubscribe()
}

// Provider is the external identity provider the Manager keeps a session fresh against.
//
// RefreshSession returns (nil, nil) when the provider declines to renew without error.
type Provider interface {
	GetSession(ctx context.Context) (*Session, error)
	OnAuthStateChange(fn AuthStateFunc) (Subscription, error)
	RefreshSession(ctx context.Context) (*Session, error)
	SignOut(ctx context.Context) error
}

// State is the refresh-cycle state of a [Manager].
type State uint8

const (
	// StateNoSession means no session is held and no timer is armed.
	StateNoSession State = iota
	// StateActive means a session is held; a refresh timer is armed when its expiry is known.
	StateActive
	// StateRefreshing means a provider refresh call is in flight.
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateNoSession:
		return "no_session"
	case StateActive:
		return "active"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

/*
====================================
INVALIDATION
====================================
*/

// InvalidationReason explains why a session was invalidated.
type InvalidationReason string

// InvalidationRefreshFailed is reported when the provider refresh call returned an error.
const InvalidationRefreshFailed InvalidationReason = "refresh_failed"

// Invalidation is emitted when the refresh cycle cannot continue and the user must
// authenticate again.
type Invalidation struct {
	Reason InvalidationReason
	// Session is the session that could not be refreshed.
	Session *Session
	// Err wraps [ErrRefreshFailed] and the provider error.
	Err error
	At  time.Time
}

// InvalidationHandler observes invalidations, typically by navigating to sign-in.
type InvalidationHandler interface {
	SessionInvalidated(ctx context.Context, inv Invalidation)
}

// InvalidationFunc adapts a function to [InvalidationHandler].
type InvalidationFunc func(ctx context.Context, inv Invalidation)

// SessionInvalidated calls f.
func (f InvalidationFunc) SessionInvalidated(ctx context.Context, inv Invalidation) {
	f(ctx, inv)
}

// ChannelInvalidationHandler delivers invalidations on a buffered channel. A full
// buffer drops the invalidation and counts it instead of blocking the refresh cycle.
type ChannelInvalidationHandler struct {
	ch      chan Invalidation
	dropped atomic.Uint64
}

// NewChannelInvalidationHandler creates a handler with the given buffer capacity.
func NewChannelInvalidationHandler(buffer int) *ChannelInvalidationHandler {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelInvalidationHandler{ch: make(chan Invalidation, buffer)}
}

// SessionInvalidated enqueues inv without blocking.
func (h *ChannelInvalidationHandler) SessionInvalidated(_ context.Context, inv Invalidation) {
	select {
	case h.ch <- inv:
	default:
		h.dropped.Add(1)
	}
}

// Invalidations returns the receive side of the channel.
func (h *ChannelInvalidationHandler) Invalidations() <-chan Invalidation {
	return h.ch
}

// Dropped returns how many invalidations did not fit the buffer.
func (h *ChannelInvalidationHandler) Dropped() uint64 {
	return h.dropped.Load()
}

/*
====================================
AUDIT
====================================
*/

// AuditEvent is a lifecycle record emitted by the manager.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the manager's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
