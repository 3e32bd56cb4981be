package vaultgate

import (
	"context"
	"testing"
)

func TestBuildRequiresRedis(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).WithProvider(&mockProvider{}).Build(); err == nil {
		t.Fatal("expected error without redis client")
	}
}

func TestBuildRequiresProvider(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	if _, err := New().WithConfig(testConfig()).WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error without credential provider")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero session lifetime", func(c *Config) { c.Session.Lifetime = 0 }},
		{"bad code digits", func(c *Config) { c.Verification.CodeDigits = 3 }},
		{"short message key", func(c *Config) { c.Crypto.MessageKey = []byte("too-short") }},
		{"register without role", func(c *Config) { c.Register.DefaultRole = "" }},
		{"weak argon memory", func(c *Config) { c.Password.Memory = 1024 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			if _, err := New().WithConfig(cfg).WithRedis(rdb).WithProvider(&mockProvider{}).Build(); err == nil {
				t.Fatal("expected Build to reject config")
			}
		})
	}
}

func TestBuilderSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	builder := New().WithConfig(testConfig()).WithRedis(rdb).WithProvider(&mockProvider{})

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := builder.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestConfigIsolatedFromCaller(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := testConfig()
	key := make([]byte, 32)
	copy(key, []byte("0123456789abcdef0123456789abcdef"))
	cfg.Crypto.MessageKey = key

	engine, err := New().WithConfig(cfg).WithRedis(rdb).WithProvider(&mockProvider{}).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	// Mutating the caller's key after Build must not reach the engine.
	for i := range key {
		key[i] = 0
	}

	encoded, err := engine.EncryptText("hello")
	if err != nil {
		t.Fatalf("EncryptText failed: %v", err)
	}
	if _, err := engine.DecryptText(context.Background(), encoded); err != nil {
		t.Fatalf("DecryptText failed: %v", err)
	}
}
