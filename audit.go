package goSession

import (
	"context"
	"errors"
)

const (
	auditEventInitialSession       = "initial_session"
	auditEventInitialSessionFailed = "initial_session_failed"
	auditEventSessionInstalled     = "session_installed"
	auditEventSessionCleared       = "session_cleared"
	auditEventRefreshScheduled     = "refresh_scheduled"
	auditEventRefreshSucceeded     = "refresh_succeeded"
	auditEventRefreshDeclined      = "refresh_declined"
	auditEventRefreshFailed        = "refresh_failed"
	auditEventSessionInvalidated   = "session_invalidated"
	auditEventSignOut              = "sign_out"
	auditEventSignOutFailed        = "sign_out_failed"
)

// AuditErrorCode is the stable error classification written to [AuditEvent.Error].
type AuditErrorCode string

const (
	auditErrRefreshFailed  AuditErrorCode = "refresh_failed"
	auditErrSignOutFailed  AuditErrorCode = "sign_out_failed"
	auditErrExpiryUnknown  AuditErrorCode = "expiry_unknown"
	auditErrTimeout        AuditErrorCode = "timeout"
	auditErrCanceled       AuditErrorCode = "canceled"
	auditErrProviderFailed AuditErrorCode = "provider_error"
)

func (m *Manager) emitAudit(
	eventType string,
	trigger string,
	sess *Session,
	success bool,
	err error,
	metadataBuilder func() map[string]string,
) {
	if m == nil || m.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: m.clock.Now().UTC(),
		EventType: eventType,
		Trigger:   trigger,
		Success:   success,
		Metadata:  metadata,
	}
	if sess != nil {
		event.UserID = sess.UserID
		event.ExpiresAt = sess.ExpiresAt
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	m.audit.Emit(context.Background(), event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return auditErrTimeout
	case errors.Is(err, context.Canceled):
		return auditErrCanceled
	case errors.Is(err, ErrRefreshFailed):
		return auditErrRefreshFailed
	case errors.Is(err, ErrSignOutFailed):
		return auditErrSignOutFailed
	case errors.Is(err, ErrExpiryUnknown):
		return auditErrExpiryUnknown
	default:
		return auditErrProviderFailed
	}
}
