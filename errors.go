package gatekeeper

import "errors"

var (
	// ErrInvalidCredentials is the single outward failure for both an unknown
	// login identifier and a wrong password. The two cases are never
	// distinguishable to callers; only audit events carry the reason.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSessionLimitReached is returned by Login when PreventNewLoginWhenFull
	// is enabled and the principal already holds the maximum number of live
	// sessions.
	ErrSessionLimitReached = errors.New("session limit reached")
	// ErrRegistryUnavailable wraps any session-registry infrastructure
	// failure. It is retryable and must never be interpreted as "no sessions
	// exist".
	ErrRegistryUnavailable = errors.New("session registry unavailable")
	// ErrSessionNotFound is returned when a session token does not resolve to
	// a live session. Callers treat the request as anonymous.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAccountNotFound is returned by AccountStore implementations when no
	// account matches the login identifier.
	ErrAccountNotFound = errors.New("account not found")
	// ErrEngineNotReady is returned when the engine is used before Build
	// wired its dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrSessionCreationFailed is returned when a session identifier or blob
	// could not be produced.
	ErrSessionCreationFailed = errors.New("session creation failed")
)
