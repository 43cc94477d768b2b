// Package password provides one-way, salted, cost-parameterized password
// hashing.
//
// Two implementations satisfy Hasher: Bcrypt (default; salt and cost are
// embedded in the token by the algorithm) and Argon2id (PHC string format).
// Verify never fails on malformed tokens: it reports false so that a
// corrupted stored hash degrades to a failed login, not a server error.
package password
