package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CurrentSchemaVersion is stamped into every encoded blob. Decode rejects
// versions it does not know how to read rather than guessing.
const CurrentSchemaVersion = 1

var errCorruptBlob = errors.New("corrupt session blob")

// Encode serializes a session into its storage blob.
func Encode(sess *Session) ([]byte, error) {
	if sess == nil {
		return nil, errors.New("nil session")
	}
	if sess.PrincipalID == "" {
		return nil, errors.New("session missing principal id")
	}

	clone := *sess
	clone.SchemaVersion = CurrentSchemaVersion

	return json.Marshal(&clone)
}

// Decode parses a storage blob. The caller restores SessionID from the key.
func Decode(data []byte) (*Session, error) {
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptBlob, err)
	}
	if sess.SchemaVersion != CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", errCorruptBlob, sess.SchemaVersion)
	}
	if sess.PrincipalID == "" {
		return nil, fmt.Errorf("%w: missing principal id", errCorruptBlob)
	}
	return &sess, nil
}
