package gatekeeper

import (
	"errors"
	"time"
)

// Config carries every tunable of the authentication subsystem. Configure it
// once before Build; the engine treats it as immutable afterwards.
type Config struct {
	Session  SessionConfig
	Quota    QuotaConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session storage and lifetime.
type SessionConfig struct {
	// RedisPrefix namespaces every registry key.
	RedisPrefix string
	// IdleTimeout is the sliding inactivity window. A session whose token is
	// not presented for this long expires passively in Redis; no background
	// sweep runs.
	IdleTimeout time.Duration
	// RegistryTimeout bounds every registry round-trip. Exceeding it surfaces
	// ErrRegistryUnavailable instead of hanging the login.
	RegistryTimeout time.Duration
}

/*
====================================
QUOTA CONFIG
====================================
*/

// QuotaConfig is the concurrent-session policy. It is fixed per deployment,
// never per request.
type QuotaConfig struct {
	// MaxSessionsPerPrincipal caps live sessions per account. Zero or
	// negative disables enforcement.
	MaxSessionsPerPrincipal int
	// PreventNewLoginWhenFull switches the policy from "evict oldest" to
	// "reject the new login with ErrSessionLimitReached".
	PreventNewLoginWhenFull bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordAlgorithm selects the hasher implementation.
type PasswordAlgorithm string

const (
	// PasswordBcrypt selects the bcrypt hasher (default).
	PasswordBcrypt PasswordAlgorithm = "bcrypt"
	// PasswordArgon2id selects the argon2id hasher.
	PasswordArgon2id PasswordAlgorithm = "argon2id"
)

// PasswordConfig selects and tunes the password hasher.
type PasswordConfig struct {
	Algorithm PasswordAlgorithm

	// BcryptCost is the bcrypt cost factor.
	BcryptCost int

	// Argon2 parameters, used only when Algorithm is PasswordArgon2id.
	Argon2Memory      uint32 // in KB
	Argon2Time        uint32
	Argon2Parallelism uint8
	Argon2SaltLength  uint32
	Argon2KeyLength   uint32
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled bool
	// BufferSize is the dispatcher queue depth.
	BufferSize int
	// DropIfFull sheds events instead of blocking the login path when the
	// queue is saturated.
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix:     "gk",
			IdleTimeout:     30 * time.Minute,
			RegistryTimeout: 3 * time.Second,
		},
		Quota: QuotaConfig{
			MaxSessionsPerPrincipal: 1,
			PreventNewLoginWhenFull: false,
		},
		Password: PasswordConfig{
			Algorithm:  PasswordBcrypt,
			BcryptCost: 12,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultConfig returns the deployment defaults: one session per principal,
// evict-oldest policy, 30 minute idle timeout, bcrypt cost 12.
func DefaultConfig() Config {
	return defaultConfig()
}

// StrictSingleSessionConfig is the deployment preset that rejects a new
// login outright while a session is live, instead of evicting it.
func StrictSingleSessionConfig() Config {
	cfg := defaultConfig()
	cfg.Quota.PreventNewLoginWhenFull = true
	return cfg
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.Session.RedisPrefix == "" {
		return errors.New("session redis prefix required")
	}
	if c.Session.IdleTimeout < time.Second {
		return errors.New("session idle timeout must be >= 1s")
	}
	if c.Session.RegistryTimeout <= 0 {
		return errors.New("registry timeout must be > 0")
	}
	switch c.Password.Algorithm {
	case PasswordBcrypt:
		if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
			return errors.New("bcrypt cost must be within 4..31")
		}
	case PasswordArgon2id:
		// Parameter floors are enforced by password.NewArgon2.
	default:
		return errors.New("unknown password algorithm")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("audit buffer size must be > 0")
	}
	return nil
}

func cloneConfig(c Config) Config {
	// All fields are values today; the clone exists so Build can keep holding
	// the config after the builder is mutated.
	return c
}
