package vaultgate

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/solenlabs/vaultgate/media"
	"github.com/solenlabs/vaultgate/password"
	"github.com/solenlabs/vaultgate/session"
	"github.com/solenlabs/vaultgate/token"
)

// Builder assembles an Engine. Configure it once, call Build, and discard
// it; a Builder is single use.
type Builder struct {
	config    Config
	redis     *redis.Client
	provider  CredentialProvider
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing sessions, lockouts, and
// verification state. Required.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithProvider sets the credential store. Required.
func (b *Builder) WithProvider(p CredentialProvider) *Builder {
	b.provider = p
	return b
}

// WithAuditSink sets the destination for audit events. Without one the
// dispatcher falls back to a no-op sink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires every component, and returns
// the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.provider == nil {
		return nil, errors.New("credential provider required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		SigningMethod: token.SigningMethod(cfg.Token.SigningMethod),
		PrivateKey:    cfg.Token.PrivateKey,
		PublicKey:     cfg.Token.PublicKey,
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	passwords, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	var mediaStore *media.Store
	if cfg.Media.Root != "" {
		mediaStore, err = media.NewStore(cfg.Media.Root)
		if err != nil {
			return nil, err
		}
	}

	mediaCipher := media.NewCipher(media.Params{
		Memory:      cfg.Media.Memory,
		Time:        cfg.Media.Time,
		Parallelism: cfg.Media.Parallelism,
	}, cfg.Media.Pepper)

	sink := b.auditSink
	if sink == nil {
		sink = NoOpSink{}
	}

	engine := &Engine{
		config:        cfg,
		provider:      b.provider,
		sessions:      session.NewStore(b.redis, cfg.Session.RedisPrefix),
		tokens:        tokens,
		passwords:     passwords,
		lockouts:      newLockoutLimiter(b.redis, cfg.Lockout),
		verifications: newVerificationStore(b.redis),
		limiter:       newWindowLimiter(b.redis),
		mediaCipher:   mediaCipher,
		mediaStore:    mediaStore,
		audit:         newAuditDispatcher(cfg.Audit, sink),
		metrics:       NewMetrics(cfg.Metrics),
	}

	b.built = true
	return engine, nil
}
