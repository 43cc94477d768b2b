package gatekeeper

import (
	"context"
	"time"
)

// CapabilityAuthenticatedUser is the single capability granted to every
// authenticated principal. There is no role hierarchy in this subsystem.
const CapabilityAuthenticatedUser = "authenticated-user"

// Account is the stored credential record. The ID and LoginID are immutable
// after provisioning; PasswordHash is an opaque token produced by a
// password.Hasher and is never the plaintext.
type Account struct {
	ID           string
	LoginID      string
	Name         string
	PasswordHash string
}

// AccountStore is the credential-lookup collaborator. Implementations must
// return ErrAccountNotFound when no account matches, and must be safe for
// concurrent use.
type AccountStore interface {
	FindByLoginID(ctx context.Context, loginID string) (Account, error)
}

// Principal is the read-only identity attached to a session. It is rebuilt
// from the Account on every session resolution and never persisted on its
// own.
type Principal struct {
	LoginID      string
	Name         string
	Capabilities []string
}

// HasCapability reports whether the principal was granted the named
// capability.
func (p Principal) HasCapability(name string) bool {
	for _, c := range p.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

// principalFromAccount adapts a stored Account into the pipeline's principal
// shape. Pure mapping; the account record itself never leaves the engine.
func principalFromAccount(a Account) Principal {
	return Principal{
		LoginID:      a.LoginID,
		Name:         a.Name,
		Capabilities: []string{CapabilityAuthenticatedUser},
	}
}

// LoginResult is returned by Engine.Login on success.
type LoginResult struct {
	// Token is the opaque session token to be carried in the session cookie.
	Token string
	// Principal is the identity the new session is bound to.
	Principal Principal
	// Evicted lists session IDs invalidated by the concurrent-session
	// enforcer to make room for this login. Empty unless the quota was
	// exceeded.
	Evicted []string
}

// SessionInfo is returned by Engine.Resolve for a live session.
type SessionInfo struct {
	SessionID      string
	Principal      Principal
	CreatedAt      time.Time
	LastAccessedAt time.Time
	IdleTimeout    time.Duration
	Attributes     map[string]string
}
