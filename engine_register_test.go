package vaultgate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func verifyChannel(t *testing.T, engine *Engine, channel Channel, target string) {
	t.Helper()

	code, err := engine.SendCode(context.Background(), channel, target)
	if err != nil {
		t.Fatalf("SendCode failed: %v", err)
	}
	if err := engine.ConfirmCode(context.Background(), channel, target, code); err != nil {
		t.Fatalf("ConfirmCode failed: %v", err)
	}
}

func TestRegisterVerifiedFlow(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	provider := &mockProvider{}
	engine := newTestEngine(t, rdb, provider, testConfig())

	verifyChannel(t, engine, ChannelEmail, "alice@example.com")

	result, err := engine.Register(ctx, RegisterRequest{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "correct-horse-1",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if result.Token == "" {
		t.Fatal("expected a token for the new account")
	}
	if result.User.Role != "user" {
		t.Fatalf("role = %q, want default %q", result.User.Role, "user")
	}

	// The fresh token is immediately usable.
	if _, err := engine.Verify(ctx, result.Token); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	// And the new credentials log in.
	if _, err := engine.Login(ctx, "alice@example.com", "correct-horse-1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
}

func TestRegisterUnverifiedEmail(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, &mockProvider{}, testConfig())

	_, err := engine.Register(context.Background(), RegisterRequest{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "correct-horse-1",
	})
	if !errors.Is(err, ErrEmailNotVerified) {
		t.Fatalf("expected ErrEmailNotVerified, got %v", err)
	}
}

func TestRegisterUnverifiedMobile(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, &mockProvider{}, testConfig())
	verifyChannel(t, engine, ChannelEmail, "alice@example.com")

	_, err := engine.Register(context.Background(), RegisterRequest{
		Email:    "alice@example.com",
		Username: "alice",
		Mobile:   "15551234567",
		Password: "correct-horse-1",
	})
	if !errors.Is(err, ErrMobileNotVerified) {
		t.Fatalf("expected ErrMobileNotVerified, got %v", err)
	}
}

func TestRegisterWithMobile(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, &mockProvider{}, testConfig())
	verifyChannel(t, engine, ChannelEmail, "alice@example.com")
	verifyChannel(t, engine, ChannelMobile, "15551234567")

	_, err := engine.Register(context.Background(), RegisterRequest{
		Email:    "alice@example.com",
		Username: "alice",
		Mobile:   "15551234567",
		Password: "correct-horse-1",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
}

func TestRegisterConsumesVerifiedMarker(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	provider := &mockProvider{}
	engine := newTestEngine(t, rdb, provider, testConfig())
	verifyChannel(t, engine, ChannelEmail, "alice@example.com")

	if _, err := engine.Register(ctx, RegisterRequest{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "correct-horse-1",
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	status, err := engine.VerificationStatus(ctx, "alice@example.com", "")
	if err != nil {
		t.Fatalf("VerificationStatus failed: %v", err)
	}
	if status.EmailVerified {
		t.Fatal("expected verified marker consumed by registration")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	ctx := context.Background()
	provider := &mockProvider{}
	engine := newTestEngine(t, rdb, provider, testConfig())
	seedUser(t, engine, provider, "alice@example.com", "alice", "correct-horse-1")

	verifyChannel(t, engine, ChannelEmail, "alice@example.com")

	_, err := engine.Register(ctx, RegisterRequest{
		Email:    "alice@example.com",
		Username: "alice2",
		Password: "correct-horse-1",
	})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
}

func TestRegisterDisabled(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := testConfig()
	cfg.Register.Enabled = false
	engine := newTestEngine(t, rdb, &mockProvider{}, cfg)

	_, err := engine.Register(context.Background(), RegisterRequest{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "correct-horse-1",
	})
	if !errors.Is(err, ErrRegistrationDisabled) {
		t.Fatalf("expected ErrRegistrationDisabled, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, &mockProvider{}, testConfig())

	cases := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"bad email", RegisterRequest{Email: "not-an-email", Username: "alice", Password: "correct-horse-1"}, ErrValidation},
		{"short username", RegisterRequest{Email: "a@example.com", Username: "ab", Password: "correct-horse-1"}, ErrValidation},
		{"bad username rune", RegisterRequest{Email: "a@example.com", Username: "al ice!", Password: "correct-horse-1"}, ErrValidation},
		{"bad mobile", RegisterRequest{Email: "a@example.com", Username: "alice", Mobile: "12ab", Password: "correct-horse-1"}, ErrValidation},
		{"short password", RegisterRequest{Email: "a@example.com", Username: "alice", Password: "short"}, ErrPasswordPolicy},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Register(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRegisterRateLimitedPerIP(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	provider := &mockProvider{}
	cfg := testConfig()
	cfg.Register.MaxPerWindow = 1
	cfg.Register.Window = time.Hour
	engine := newTestEngine(t, rdb, provider, cfg)

	ctx := WithClientIP(context.Background(), "203.0.113.9")

	verifyChannel(t, engine, ChannelEmail, "alice@example.com")
	if _, err := engine.Register(ctx, RegisterRequest{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "correct-horse-1",
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	verifyChannel(t, engine, ChannelEmail, "bob@example.com")
	_, err := engine.Register(ctx, RegisterRequest{
		Email:    "bob@example.com",
		Username: "bobby",
		Password: "correct-horse-1",
	})
	if !errors.Is(err, ErrRegistrationRateLimited) {
		t.Fatalf("expected ErrRegistrationRateLimited, got %v", err)
	}
}
