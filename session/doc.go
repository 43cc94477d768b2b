// Package session implements the Redis-backed session store and registry.
//
// The registry is the authoritative, cross-process index of live sessions
// per principal: a sorted set per principal ordered by creation time with an
// insertion-sequence tie-break, next to one value key per session blob. The
// concurrent-session quota runs as a single Lua script against both
// structures, so the read-decide-evict-register sequence is atomic for
// concurrent logins from any number of server processes.
package session
