package gatekeeper

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if err := StrictSingleSessionConfig().Validate(); err != nil {
		t.Fatalf("strict preset invalid: %v", err)
	}
}

func TestStrictPresetDiffersOnlyInPolicy(t *testing.T) {
	strict := StrictSingleSessionConfig()
	if !strict.Quota.PreventNewLoginWhenFull {
		t.Fatal("strict preset must reject new logins when full")
	}
	if strict.Quota.MaxSessionsPerPrincipal != 1 {
		t.Fatalf("strict preset cap = %d, want 1", strict.Quota.MaxSessionsPerPrincipal)
	}
}

func TestValidateRejectsBrokenConfigs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty prefix", func(c *Config) { c.Session.RedisPrefix = "" }},
		{"sub-second idle timeout", func(c *Config) { c.Session.IdleTimeout = 500 * time.Millisecond }},
		{"zero registry timeout", func(c *Config) { c.Session.RegistryTimeout = 0 }},
		{"bcrypt cost too low", func(c *Config) { c.Password.BcryptCost = 2 }},
		{"unknown algorithm", func(c *Config) { c.Password.Algorithm = "md5" }},
		{"zero audit buffer", func(c *Config) { c.Audit.BufferSize = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}
