package gatekeeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mbyeon/gatekeeper/internal"
	"github.com/mbyeon/gatekeeper/password"
	"github.com/mbyeon/gatekeeper/session"
)

// Engine is the authentication pipeline plus the session lifecycle built on
// top of it. All methods are safe for concurrent use.
type Engine struct {
	config   Config
	accounts AccountStore
	hasher   password.Hasher
	sessions *session.Store
	audit    *auditDispatcher
	metrics  *Metrics
}

// Config returns the engine's immutable configuration.
func (e *Engine) Config() Config {
	return e.config
}

// Metrics exposes the engine's counters for polling exporters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Hasher exposes the configured password hasher, e.g. for provisioning
// accounts with the same parameters the login path verifies against.
func (e *Engine) Hasher() password.Hasher {
	return e.hasher
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// Authenticate verifies a submitted credential and returns the principal it
// identifies. Both an unknown identifier and a wrong password come back as
// ErrInvalidCredentials: the caller cannot enumerate accounts through this
// surface. Authenticate has no side effects beyond audit and metrics;
// establishing a session is Login's job.
func (e *Engine) Authenticate(ctx context.Context, loginID, plaintext string) (*Principal, error) {
	if e == nil || e.accounts == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}

	if loginID == "" || plaintext == "" {
		e.metrics.inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "empty_credential"}
		})
		return nil, ErrInvalidCredentials
	}

	account, err := e.accounts.FindByLoginID(ctx, loginID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.metrics.inc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", ErrInvalidCredentials, func() map[string]string {
				return map[string]string{
					"login_id": loginID,
					"reason":   "unknown_identity",
				}
			})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("account lookup: %w", err)
	}

	ok, err := e.hasher.Verify(plaintext, account.PasswordHash)
	if err != nil || !ok {
		e.metrics.inc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.LoginID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"login_id": loginID,
				"reason":   "bad_credential",
			}
		})
		return nil, ErrInvalidCredentials
	}

	principal := principalFromAccount(account)
	return &principal, nil
}

// Resolve maps a session token to its live session and rebuilds the
// principal from the backing account. The idle window slides: last-access is
// rewritten and the TTL reset. Malformed tokens, expired or evicted
// sessions, and sessions whose account no longer exists all resolve to
// ErrSessionNotFound; callers treat that as an anonymous request.
func (e *Engine) Resolve(ctx context.Context, token string) (*SessionInfo, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	sid, err := internal.ParseSessionID(token)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	sess, err := e.sessions.Get(ctx, sid.String(), e.config.Session.IdleTimeout)
	if err != nil {
		return nil, e.mapRegistryError(ctx, err)
	}

	account, err := e.accounts.FindByLoginID(ctx, sess.PrincipalID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			// Session with no backing account is inert.
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("account lookup: %w", err)
	}

	return &SessionInfo{
		SessionID:      sess.SessionID,
		Principal:      principalFromAccount(account),
		CreatedAt:      time.UnixMilli(sess.CreatedAt),
		LastAccessedAt: time.UnixMilli(sess.LastAccessedAt),
		IdleTimeout:    e.config.Session.IdleTimeout,
		Attributes:     sess.Attributes,
	}, nil
}

// Logout invalidates the session behind the token and removes its registry
// entry. Malformed and unknown tokens are a no-op.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	sid, err := internal.ParseSessionID(token)
	if err != nil {
		return nil
	}

	sess, err := e.sessions.GetReadOnly(ctx, sid.String())
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return e.mapRegistryError(ctx, err)
	}

	if err := e.sessions.Unregister(ctx, sid.String()); err != nil {
		return e.mapRegistryError(ctx, err)
	}

	e.metrics.inc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, sess.PrincipalID, sess.SessionID, nil, nil)
	return nil
}

// PutSessionAttribute stores one key/value pair on the live session behind
// the token.
func (e *Engine) PutSessionAttribute(ctx context.Context, token, key, value string) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}

	sid, err := internal.ParseSessionID(token)
	if err != nil {
		return ErrSessionNotFound
	}

	if err := e.sessions.PutAttribute(ctx, sid.String(), key, value); err != nil {
		return e.mapRegistryError(ctx, err)
	}
	return nil
}

// SessionsOf returns the principal's live session ids, oldest first.
func (e *Engine) SessionsOf(ctx context.Context, principalID string) ([]string, error) {
	if e == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	ids, err := e.sessions.SessionsOf(ctx, principalID)
	if err != nil {
		return nil, e.mapRegistryError(ctx, err)
	}
	return ids, nil
}

// mapRegistryError folds session-store sentinels into the engine's taxonomy.
// Transport failures become ErrRegistryUnavailable and are counted and
// audited; they are never mistaken for an absent session.
func (e *Engine) mapRegistryError(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrNotFound):
		return ErrSessionNotFound
	case errors.Is(err, session.ErrUnavailable):
		e.metrics.inc(MetricRegistryError)
		e.emitAudit(ctx, auditEventRegistryError, false, "", "", err, nil)
		return fmt.Errorf("%w: %v", ErrRegistryUnavailable, err)
	default:
		return err
	}
}
