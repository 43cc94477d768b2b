package gatekeeper

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/mbyeon/gatekeeper/internal"
	"github.com/mbyeon/gatekeeper/session"
)

// Login authenticates the credential and, on success, establishes a new
// session under the per-principal quota. The quota check and the session
// write are one atomic registry operation, so two racing logins for the
// same principal can never both slip under the limit.
//
// With the evict policy (the default) the oldest live session makes room
// for the new one and its id is reported in LoginResult.Evicted. With
// PreventNewLoginWhenFull the new login is refused with
// ErrSessionLimitReached and every existing session stays live.
func (e *Engine) Login(ctx context.Context, loginID, plaintext string) (*LoginResult, error) {
	principal, err := e.Authenticate(ctx, loginID, plaintext)
	if err != nil {
		return nil, err
	}
	return e.establishSession(ctx, *principal)
}

// LoginPrincipal establishes a session for an already-verified principal.
// Callers that authenticate through another channel (for example a
// federated assertion) use this to join the same quota accounting as
// password logins.
func (e *Engine) LoginPrincipal(ctx context.Context, principal Principal) (*LoginResult, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}
	if principal.LoginID == "" {
		return nil, ErrInvalidCredentials
	}
	return e.establishSession(ctx, principal)
}

func (e *Engine) establishSession(ctx context.Context, principal Principal) (*LoginResult, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	now := time.Now().UnixMilli()
	sess := &session.Session{
		SessionID:      sid.String(),
		SchemaVersion:  session.CurrentSchemaVersion,
		PrincipalID:    principal.LoginID,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	quota := e.config.Quota
	result, err := e.sessions.EnforceQuota(
		ctx,
		sess,
		e.config.Session.IdleTimeout,
		quota.MaxSessionsPerPrincipal,
		quota.PreventNewLoginWhenFull,
	)
	if err != nil {
		return nil, e.mapRegistryError(ctx, err)
	}

	if result.Rejected {
		e.metrics.inc(MetricLoginRejected)
		e.emitAudit(ctx, auditEventLoginRejected, false, principal.LoginID, "", ErrSessionLimitReached, func() map[string]string {
			return map[string]string{
				"max_sessions": strconv.Itoa(quota.MaxSessionsPerPrincipal),
			}
		})
		return nil, ErrSessionLimitReached
	}

	e.metrics.inc(MetricLoginSuccess)
	e.metrics.inc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventLoginSuccess, true, principal.LoginID, sess.SessionID, nil, nil)

	for _, evicted := range result.Evicted {
		e.metrics.inc(MetricSessionEvicted)
		e.emitAudit(ctx, auditEventSessionEvicted, true, principal.LoginID, evicted, nil, func() map[string]string {
			return map[string]string{"superseded_by": sess.SessionID}
		})
	}

	return &LoginResult{
		Token:     sess.SessionID,
		Principal: principal,
		Evicted:   result.Evicted,
	}, nil
}
