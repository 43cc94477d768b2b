// Package internal holds token generation helpers shared by the engine and
// its subpackages. Not part of the public API.
package internal
