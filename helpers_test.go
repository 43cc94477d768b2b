package gatekeeper

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// stubAccounts is a fixed in-test AccountStore.
type stubAccounts struct {
	accounts map[string]Account
	err      error
}

func (s *stubAccounts) FindByLoginID(_ context.Context, loginID string) (Account, error) {
	if s.err != nil {
		return Account{}, s.err
	}
	account, ok := s.accounts[loginID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func fastTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.BcryptCost = 4
	return cfg
}

// newTestEngine builds an Engine with one seeded account (test / test!)
// against a fresh miniredis.
func newTestEngine(t *testing.T, cfg Config, sink AuditSink) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	hasher, err := NewHasher(cfg.Password)
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	hash, err := hasher.Hash("test!")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	store := &stubAccounts{accounts: map[string]Account{
		"test": {ID: "acc-1", LoginID: "test", Name: "tester", PasswordHash: hash},
	}}

	builder := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(store).
		WithMetricsEnabled(true)
	if sink != nil {
		builder = builder.WithAuditSink(sink)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, mr
}

func waitForAudit(t *testing.T, sink *ChannelSink, eventType string) AuditEvent {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.EventType == eventType {
				return event
			}
		case <-deadline:
			t.Fatalf("no %q audit event within deadline", eventType)
		}
	}
}
