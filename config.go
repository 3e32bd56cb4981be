package vaultgate

import (
	"errors"
	"time"

	"github.com/solenlabs/vaultgate/crypto"
)

/* ==================== TOKEN ==================== */

// TokenConfig configures access-token signing. Tokens carry no TTL of
// their own; expiry always mirrors the session.
type TokenConfig struct {
	SigningMethod string
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/* ==================== SESSION ==================== */

// SessionConfig configures session lifetime and concurrency.
type SessionConfig struct {
	Lifetime    time.Duration
	RedisPrefix string

	// SingleSessionPerUser revokes a user's existing sessions on login.
	// Off by default: users may hold concurrent sessions.
	SingleSessionPerUser bool
}

/* ==================== PASSWORD ==================== */

// PasswordConfig holds the argon2id cost parameters and the length policy.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
}

/* ==================== LOCKOUT ==================== */

// LockoutConfig configures the failed-login lockout.
type LockoutConfig struct {
	Enabled   bool
	Threshold int
	Duration  time.Duration
}

/* ==================== VERIFICATION ==================== */

// VerificationConfig configures the one-time code gate.
type VerificationConfig struct {
	CodeTTL     time.Duration
	CodeDigits  int
	MaxAttempts int

	// VerifiedTTL bounds how long a confirmed channel stays usable for
	// registration before it must be re-verified.
	VerifiedTTL time.Duration

	// Issue window rate limit, per (channel, target).
	MaxIssuePerWindow int
	IssueWindow       time.Duration
}

/* ==================== CRYPTO ==================== */

// CryptoConfig holds the deployment-level key for message text. Media does
// not use it; media keys are derived per participant pair.
type CryptoConfig struct {
	MessageKey []byte
}

/* ==================== MEDIA ==================== */

// MediaConfig configures the media cipher and blob store. Root may be empty
// when stored-media operations are not used. Memory is in KiB.
type MediaConfig struct {
	Root        string
	Pepper      []byte
	Memory      uint32
	Time        uint32
	Parallelism uint8
}

/* ==================== REGISTER ==================== */

// RegisterConfig configures account creation.
type RegisterConfig struct {
	Enabled     bool
	DefaultRole string

	// Per-origin fixed-window rate limit.
	MaxPerWindow int
	Window       time.Duration
}

/* ==================== AUDIT / METRICS ==================== */

// AuditConfig configures the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig enables the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// Config is the complete engine configuration. Start from DefaultConfig and
// override; Build validates the result.
type Config struct {
	Token        TokenConfig
	Session      SessionConfig
	Password     PasswordConfig
	Lockout      LockoutConfig
	Verification VerificationConfig
	Crypto       CryptoConfig
	Media        MediaConfig
	Register     RegisterConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

// DefaultConfig returns the baseline configuration. Key material must be
// supplied by the caller.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			SigningMethod: "ed25519",
			Leeway:        30 * time.Second,
		},
		Session: SessionConfig{
			Lifetime:    24 * time.Hour,
			RedisPrefix: "vs",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   10,
		},
		Lockout: LockoutConfig{
			Enabled:   true,
			Threshold: 5,
			Duration:  15 * time.Minute,
		},
		Verification: VerificationConfig{
			CodeTTL:           10 * time.Minute,
			CodeDigits:        6,
			MaxAttempts:       5,
			VerifiedTTL:       24 * time.Hour,
			MaxIssuePerWindow: 5,
			IssueWindow:       time.Hour,
		},
		Media: MediaConfig{
			Memory:      64 * 1024,
			Time:        1,
			Parallelism: 4,
		},
		Register: RegisterConfig{
			Enabled:      true,
			DefaultRole:  "user",
			MaxPerWindow: 10,
			Window:       time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Validate checks invariants that the Builder cannot repair.
func (c *Config) Validate() error {
	if c.Session.Lifetime <= 0 {
		return errors.New("session lifetime must be positive")
	}
	if c.Lockout.Enabled {
		if c.Lockout.Threshold <= 0 {
			return errors.New("lockout threshold must be positive")
		}
		if c.Lockout.Duration <= 0 {
			return errors.New("lockout duration must be positive")
		}
	}
	if c.Verification.CodeTTL <= 0 {
		return errors.New("verification code ttl must be positive")
	}
	if c.Verification.CodeDigits < 4 || c.Verification.CodeDigits > 10 {
		return errors.New("verification code digits must be between 4 and 10")
	}
	if c.Verification.MaxAttempts <= 0 {
		return errors.New("verification max attempts must be positive")
	}
	if c.Verification.VerifiedTTL <= 0 {
		return errors.New("verification verified ttl must be positive")
	}
	if n := len(c.Crypto.MessageKey); n != 0 && n != crypto.KeySize {
		return errors.New("message key must be 32 bytes when set")
	}
	if c.Register.Enabled && c.Register.DefaultRole == "" {
		return errors.New("register default role required")
	}
	if c.Password.MinLength <= 0 {
		return errors.New("password min length must be positive")
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.PrivateKey = cloneBytes(cfg.Token.PrivateKey)
	out.Token.PublicKey = cloneBytes(cfg.Token.PublicKey)
	out.Crypto.MessageKey = cloneBytes(cfg.Crypto.MessageKey)
	out.Media.Pepper = cloneBytes(cfg.Media.Pepper)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
