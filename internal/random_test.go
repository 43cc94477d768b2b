package internal

import "testing"

func TestSessionIDRoundTrip(t *testing.T) {
	id, err := NewSessionID()
	if err != nil {
		t.Fatalf("NewSessionID failed: %v", err)
	}

	token := id.String()
	if len(token) != 22 {
		t.Fatalf("unexpected token length %d: %q", len(token), token)
	}

	parsed, err := ParseSessionID(token)
	if err != nil {
		t.Fatalf("ParseSessionID failed: %v", err)
	}
	if parsed != id {
		t.Fatal("round trip mismatch")
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	seen := make(map[SessionID]bool, 1000)
	for i := 0; i < 1000; i++ {
		id, err := NewSessionID()
		if err != nil {
			t.Fatalf("NewSessionID failed: %v", err)
		}
		if seen[id] {
			t.Fatal("duplicate session id")
		}
		seen[id] = true
	}
}

func TestParseSessionIDRejectsGarbage(t *testing.T) {
	for _, token := range []string{
		"",
		"short",
		"not base64 at all!!!!!",
		"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
	} {
		if _, err := ParseSessionID(token); err == nil {
			t.Errorf("ParseSessionID(%q) must fail", token)
		}
	}
}
