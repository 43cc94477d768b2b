// Package middleware adapts the engine to net/http: a session-cookie guard
// driven by an access.Policy, form login and logout handlers, and a JSON
// session inspection handler.
//
// The guard resolves the session cookie on every request, injects the
// resolved session into the request context, and enforces the policy's
// decision for the path. Anonymous requests to protected paths are
// redirected to the login page with a signed return-to cookie so the user
// lands back where they started after logging in.
//
// This package translates HTTP semantics into Engine calls; every
// authentication decision is the engine's.
package middleware
