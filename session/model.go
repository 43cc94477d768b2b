package session

// Session is the stored per-login state. A session always references exactly
// one principal identifier; whether that principal still has a backing
// account is decided at resolution time, not here.
type Session struct {
	// SessionID is not part of the encoded blob; it is the storage key and
	// is restored on decode.
	SessionID string `json:"-"`

	SchemaVersion int    `json:"v"`
	PrincipalID   string `json:"pid"`

	// CreatedAt and LastAccessedAt are unix milliseconds.
	CreatedAt      int64 `json:"cat"`
	LastAccessedAt int64 `json:"lat"`

	// Attributes is a small key/value bag stored with the session.
	Attributes map[string]string `json:"attr,omitempty"`
}
