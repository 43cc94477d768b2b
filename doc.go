// Package gatekeeper implements form-login authentication with Redis-backed
// sessions and per-principal concurrent-session control.
//
// The Engine verifies submitted credentials against irreversibly hashed
// passwords, establishes cookie sessions, and enforces a configurable cap on
// live sessions per account: either the oldest sessions are evicted on a new
// login (default) or the new login is rejected while the cap is reached.
// The enforcement sequence runs as a single atomic registry operation, so
// concurrent logins for the same account observe a consistent session set
// across goroutines and server processes.
//
// Callers supply two narrow collaborators: an AccountStore for credential
// lookup and, at the HTTP layer, a renderer for the login views. Everything
// else (hashing, session storage, quota enforcement, access decisions,
// auditing) is owned by this module.
package gatekeeper
