package gatekeeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestAuthenticateSuccess(t *testing.T) {
	engine, _ := newTestEngine(t, fastTestConfig(), nil)

	principal, err := engine.Authenticate(context.Background(), "test", "test!")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if principal.LoginID != "test" || principal.Name != "tester" {
		t.Fatalf("unexpected principal: %+v", principal)
	}
	if !principal.HasCapability(CapabilityAuthenticatedUser) {
		t.Fatal("authenticated principal must carry the authenticated-user capability")
	}
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	engine, _ := newTestEngine(t, fastTestConfig(), nil)
	ctx := context.Background()

	_, unknownErr := engine.Authenticate(ctx, "nobody", "test!")
	_, wrongErr := engine.Authenticate(ctx, "test", "wrong")

	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Fatalf("unknown identity: expected ErrInvalidCredentials, got %v", unknownErr)
	}
	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongErr)
	}
	if unknownErr.Error() != wrongErr.Error() {
		t.Fatalf("failure modes must be indistinguishable: %q vs %q", unknownErr, wrongErr)
	}
}

func TestAuthenticateEmptyCredential(t *testing.T) {
	engine, _ := newTestEngine(t, fastTestConfig(), nil)

	if _, err := engine.Authenticate(context.Background(), "test", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginEstablishesResolvableSession(t *testing.T) {
	engine, _ := newTestEngine(t, fastTestConfig(), nil)
	ctx := context.Background()

	result, err := engine.Login(ctx, "test", "test!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.Token == "" {
		t.Fatal("login must return a session token")
	}
	if len(result.Evicted) != 0 {
		t.Fatalf("first login must not evict anything: %v", result.Evicted)
	}

	info, err := engine.Resolve(ctx, result.Token)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if info.Principal.LoginID != "test" {
		t.Fatalf("unexpected principal: %+v", info.Principal)
	}
	if info.IdleTimeout != engine.Config().Session.IdleTimeout {
		t.Fatalf("unexpected idle timeout: %v", info.IdleTimeout)
	}
}

func TestLoginWithBadCredentialLeavesNoSession(t *testing.T) {
	engine, _ := newTestEngine(t, fastTestConfig(), nil)
	ctx := context.Background()

	if _, err := engine.Login(ctx, "test", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	ids, err := engine.SessionsOf(ctx, "test")
	if err != nil {
		t.Fatalf("SessionsOf failed: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("failed login must not create a session: %v", ids)
	}
}

func TestSecondLoginEvictsFirstSession(t *testing.T) {
	engine, _ := newTestEngine(t, fastTestConfig(), nil)
	ctx := context.Background()

	first, err := engine.Login(ctx, "test", "test!")
	if err != nil {
		t.Fatalf("first login failed: %v", err)
	}
	second, err := engine.Login(ctx, "test", "test!")
	if err != nil {
		t.Fatalf("second login failed: %v", err)
	}

	if len(second.Evicted) != 1 || second.Evicted[0] != first.Token {
		t.Fatalf("expected the first session evicted, got %v", second.Evicted)
	}

	if _, err := engine.Resolve(ctx, first.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("evicted session must be dead, got %v", err)
	}
	if _, err := engine.Resolve(ctx, second.Token); err != nil {
		t.Fatalf("new session must be live: %v", err)
	}
}

func TestStrictConfigRejectsSecondLogin(t *testing.T) {
	cfg := StrictSingleSessionConfig()
	cfg.Password.BcryptCost = 4
	engine, _ := newTestEngine(t, cfg, nil)
	ctx := context.Background()

	first, err := engine.Login(ctx, "test", "test!")
	if err != nil {
		t.Fatalf("first login failed: %v", err)
	}

	if _, err := engine.Login(ctx, "test", "test!"); !errors.Is(err, ErrSessionLimitReached) {
		t.Fatalf("expected ErrSessionLimitReached, got %v", err)
	}

	// The refused login must not have disturbed the existing session.
	if _, err := engine.Resolve(ctx, first.Token); err != nil {
		t.Fatalf("existing session must survive a rejected login: %v", err)
	}
}

func TestConcurrentLoginsNeverExceedQuota(t *testing.T) {
	engine, _ := newTestEngine(t, fastTestConfig(), nil)
	ctx := context.Background()

	const racers = 8
	var wg sync.WaitGroup
	tokens := make([]string, racers)
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := engine.Login(ctx, "test", "test!")
			if err != nil {
				errs[i] = err
				return
			}
			tokens[i] = result.Token
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("login %d failed: %v", i, err)
		}
	}

	ids, err := engine.SessionsOf(ctx, "test")
	if err != nil {
		t.Fatalf("SessionsOf failed: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("quota of 1 violated: %d live sessions", len(ids))
	}

	live := 0
	for _, token := range tokens {
		if _, err := engine.Resolve(ctx, token); err == nil {
			live++
		}
	}
	if live != 1 {
		t.Fatalf("exactly one token must stay resolvable, got %d", live)
	}
}

func TestResolveMalformedToken(t *testing.T) {
	engine, _ := newTestEngine(t, fastTestConfig(), nil)

	for _, token := range []string{"", "short", "!!!не-base64!!!", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"} {
		if _, err := engine.Resolve(context.Background(), token); !errors.Is(err, ErrSessionNotFound) {
			t.Fatalf("Resolve(%q): expected ErrSessionNotFound, got %v", token, err)
		}
	}
}

func TestResolveSlidesIdleWindow(t *testing.T) {
	cfg := fastTestConfig()
	cfg.Session.IdleTimeout = 10 * time.Minute
	engine, mr := newTestEngine(t, cfg, nil)
	ctx := context.Background()

	result, err := engine.Login(ctx, "test", "test!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// Touch the session just inside the window twice; the window slides
	// each time, so the session outlives the original timeout.
	for i := 0; i < 2; i++ {
		mr.FastForward(9 * time.Minute)
		if _, err := engine.Resolve(ctx, result.Token); err != nil {
			t.Fatalf("Resolve inside idle window failed: %v", err)
		}
	}

	mr.FastForward(11 * time.Minute)
	if _, err := engine.Resolve(ctx, result.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected idle-expired session to be gone, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	engine, _ := newTestEngine(t, fastTestConfig(), nil)
	ctx := context.Background()

	result, err := engine.Login(ctx, "test", "test!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.Logout(ctx, result.Token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if _, err := engine.Resolve(ctx, result.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("session must be dead after logout, got %v", err)
	}

	// Repeated and malformed logouts are no-ops.
	if err := engine.Logout(ctx, result.Token); err != nil {
		t.Fatalf("second logout must be a no-op, got %v", err)
	}
	if err := engine.Logout(ctx, "not-a-token"); err != nil {
		t.Fatalf("malformed token logout must be a no-op, got %v", err)
	}
}

func TestPutSessionAttribute(t *testing.T) {
	engine, _ := newTestEngine(t, fastTestConfig(), nil)
	ctx := context.Background()

	result, err := engine.Login(ctx, "test", "test!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.PutSessionAttribute(ctx, result.Token, "cart", "3-items"); err != nil {
		t.Fatalf("PutSessionAttribute failed: %v", err)
	}

	info, err := engine.Resolve(ctx, result.Token)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if info.Attributes["cart"] != "3-items" {
		t.Fatalf("attribute not visible on resolution: %v", info.Attributes)
	}
}

func TestRegistryOutageIsRetryable(t *testing.T) {
	engine, mr := newTestEngine(t, fastTestConfig(), nil)
	ctx := context.Background()

	result, err := engine.Login(ctx, "test", "test!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	mr.Close()

	if _, err := engine.Login(ctx, "test", "test!"); !errors.Is(err, ErrRegistryUnavailable) {
		t.Fatalf("Login during outage: expected ErrRegistryUnavailable, got %v", err)
	}
	if _, err := engine.Resolve(ctx, result.Token); !errors.Is(err, ErrRegistryUnavailable) {
		t.Fatalf("Resolve during outage: expected ErrRegistryUnavailable, got %v", err)
	}
}

func TestLoginPrincipalBypassesCredentialCheck(t *testing.T) {
	engine, _ := newTestEngine(t, fastTestConfig(), nil)
	ctx := context.Background()

	result, err := engine.LoginPrincipal(ctx, Principal{
		LoginID:      "test",
		Name:         "tester",
		Capabilities: []string{CapabilityAuthenticatedUser},
	})
	if err != nil {
		t.Fatalf("LoginPrincipal failed: %v", err)
	}
	if _, err := engine.Resolve(ctx, result.Token); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
}

func TestMetricsCounters(t *testing.T) {
	engine, _ := newTestEngine(t, fastTestConfig(), nil)
	ctx := context.Background()

	if _, err := engine.Login(ctx, "test", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := engine.Login(ctx, "test", "test!"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	second, err := engine.Login(ctx, "test", "test!")
	if err != nil {
		t.Fatalf("second login failed: %v", err)
	}
	if err := engine.Logout(ctx, second.Token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	m := engine.Metrics()
	if got := m.Get(MetricLoginFailure); got != 1 {
		t.Fatalf("login_failure = %d, want 1", got)
	}
	if got := m.Get(MetricLoginSuccess); got != 2 {
		t.Fatalf("login_success = %d, want 2", got)
	}
	if got := m.Get(MetricSessionEvicted); got != 1 {
		t.Fatalf("session_evicted = %d, want 1", got)
	}
	if got := m.Get(MetricLogout); got != 1 {
		t.Fatalf("logout = %d, want 1", got)
	}
}

func TestAuditEvents(t *testing.T) {
	sink := NewChannelSink(32)
	engine, _ := newTestEngine(t, fastTestConfig(), sink)
	ctx := context.Background()

	if _, err := engine.Login(ctx, "nobody", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	failure := waitForAudit(t, sink, "login_failure")
	if failure.Success {
		t.Fatal("failure event marked successful")
	}
	if failure.Metadata["reason"] != "unknown_identity" {
		t.Fatalf("expected unknown_identity reason, got %v", failure.Metadata)
	}

	result, err := engine.Login(ctx, "test", "test!")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	success := waitForAudit(t, sink, "login_success")
	if !success.Success || success.PrincipalID != "test" || success.SessionID != result.Token {
		t.Fatalf("unexpected success event: %+v", success)
	}

	if _, err := engine.Login(ctx, "test", "test!"); err != nil {
		t.Fatalf("second login failed: %v", err)
	}
	evicted := waitForAudit(t, sink, "session_evicted")
	if evicted.SessionID != result.Token {
		t.Fatalf("unexpected evicted session: %+v", evicted)
	}
}

func TestBuilderRequiresCollaborators(t *testing.T) {
	if _, err := New().Build(); err == nil {
		t.Fatal("Build without redis and account store must fail")
	}

	_, rdb := newTestRedis(t)
	if _, err := New().WithRedis(rdb).Build(); err == nil {
		t.Fatal("Build without an account store must fail")
	}
}
