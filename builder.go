package gatekeeper

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/mbyeon/gatekeeper/password"
	"github.com/mbyeon/gatekeeper/session"
)

// Builder assembles an Engine. Use New, chain the With* setters, then Build
// exactly once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	accounts  AccountStore
	auditSink AuditSink

	built bool
}

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client backing the session registry. Required: the
// registry is the shared source of truth across server processes, so there
// is no in-memory fallback.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAccountStore supplies the credential-lookup collaborator. Required.
func (b *Builder) WithAccountStore(store AccountStore) *Builder {
	b.accounts = store
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.accounts == nil {
		return nil, errors.New("account store required")
	}

	hasher, err := NewHasher(cfg.Password)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cfg,
		accounts: b.accounts,
		hasher:   hasher,
		sessions: session.NewStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.RegistryTimeout),
		audit:    newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:  newMetrics(cfg.Metrics),
	}

	b.built = true
	return engine, nil
}

// NewHasher builds the password hasher the config names. Callers that
// provision accounts outside an Engine use this to hash with the same
// parameters the login path verifies against.
func NewHasher(cfg PasswordConfig) (password.Hasher, error) {
	switch cfg.Algorithm {
	case PasswordBcrypt:
		return password.NewBcrypt(cfg.BcryptCost), nil
	case PasswordArgon2id:
		return password.NewArgon2(password.Argon2Config{
			Memory:      cfg.Argon2Memory,
			Time:        cfg.Argon2Time,
			Parallelism: cfg.Argon2Parallelism,
			SaltLength:  cfg.Argon2SaltLength,
			KeyLength:   cfg.Argon2KeyLength,
		})
	default:
		return nil, errors.New("unknown password algorithm")
	}
}
