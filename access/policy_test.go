package access

import "testing"

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()

	cases := []struct {
		path string
		want Requirement
	}{
		{"/", AllowAnonymous},
		{"/home", AllowAnonymous},
		{"/login", AllowAnonymous},
		{"/members/add", AllowAnonymous},
		{"/basic/items", AllowAnonymous},
		{"/validation/v1/items/1", AllowAnonymous},
		{"/css/site.css", AllowAnonymous},
		{"/favicon.ico", AllowAnonymous},
		{"/form/items", RequireAuthenticated},
		{"/form/items/1/edit", RequireAuthenticated},
		{"/session-info", RequireAuthenticated},
		{"/homework", RequireAuthenticated},
	}
	for _, tc := range cases {
		if got := policy.Decide(tc.path); got != tc.want {
			t.Errorf("Decide(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestFirstMatchWins(t *testing.T) {
	policy := MustPolicy([]Rule{
		{Pattern: "/admin/health", Requirement: AllowAnonymous},
		{Pattern: "/admin/**", Requirement: RequireAuthenticated},
		{Pattern: "/**", Requirement: AllowAnonymous},
	})

	if got := policy.Decide("/admin/health"); got != AllowAnonymous {
		t.Fatalf("narrow rule must win: got %v", got)
	}
	if got := policy.Decide("/admin/users"); got != RequireAuthenticated {
		t.Fatalf("broad admin rule must apply: got %v", got)
	}
	if got := policy.Decide("/anything/else"); got != AllowAnonymous {
		t.Fatalf("catch-all rule must apply: got %v", got)
	}
}

func TestUnmatchedPathRequiresAuthentication(t *testing.T) {
	policy := MustPolicy([]Rule{
		{Pattern: "/public/**", Requirement: AllowAnonymous},
	})

	if got := policy.Decide("/private"); got != RequireAuthenticated {
		t.Fatalf("default must be RequireAuthenticated, got %v", got)
	}
}

func TestSingleStarStaysInSegment(t *testing.T) {
	policy := MustPolicy([]Rule{
		{Pattern: "/files/*", Requirement: AllowAnonymous},
	})

	if got := policy.Decide("/files/readme"); got != AllowAnonymous {
		t.Fatalf("single segment must match: got %v", got)
	}
	if got := policy.Decide("/files/a/b"); got != RequireAuthenticated {
		t.Fatalf("'*' must not cross a segment boundary: got %v", got)
	}
}

func TestPathNormalization(t *testing.T) {
	policy := DefaultPolicy()

	if got := policy.Decide(""); got != AllowAnonymous {
		t.Fatalf("empty path normalizes to the landing page, got %v", got)
	}
	if got := policy.Decide("home"); got != AllowAnonymous {
		t.Fatalf("missing slash must be normalized, got %v", got)
	}
}

func TestNewPolicyRejectsBadPattern(t *testing.T) {
	if _, err := NewPolicy([]Rule{{Pattern: "/[", Requirement: AllowAnonymous}}); err == nil {
		t.Fatal("expected a compile error for an unterminated class")
	}
}
