// Package memstore is an in-memory AccountStore for demos and tests.
// Accounts live in a map for the life of the process; nothing is
// persisted.
package memstore
