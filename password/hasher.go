package password

// Hasher hashes and verifies plaintext passwords.
//
// Hash must embed a per-call random salt so that hashing the same plaintext
// twice yields two different tokens. Verify recomputes with the parameters
// embedded in the stored token and reports whether the plaintext matches;
// a malformed token verifies false and never returns an error.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) (bool, error)
}
