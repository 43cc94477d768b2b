package gatekeeper

import (
	"context"
	"time"
)

const (
	auditEventLoginSuccess   = "login_success"
	auditEventLoginFailure   = "login_failure"
	auditEventLoginRejected  = "login_rejected_session_limit"
	auditEventSessionEvicted = "session_evicted"
	auditEventLogout         = "logout"
	auditEventRegistryError  = "registry_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	principalID string,
	sessionID string,
	cause error,
	metadata func() map[string]string,
) {
	if e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:   time.Now(),
		EventType:   eventType,
		PrincipalID: principalID,
		SessionID:   sessionID,
		Success:     success,
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}
