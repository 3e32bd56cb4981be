package vaultgate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockProvider struct {
	users        map[string]CredentialRecord
	byIdentifier map[string]string
	createErr    error
	updateErr    error
	mu           sync.Mutex

	createCalls         int
	updatePasswordCalls int
}

func (m *mockProvider) GetByIdentifier(ctx context.Context, identifier string) (CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, ok := m.byIdentifier[identifier]
	if !ok {
		return CredentialRecord{}, ErrCredentialNotFound
	}
	rec, ok := m.users[userID]
	if !ok {
		return CredentialRecord{}, ErrCredentialNotFound
	}
	return rec, nil
}

func (m *mockProvider) GetByID(ctx context.Context, userID string) (CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[userID]
	if !ok {
		return CredentialRecord{}, ErrCredentialNotFound
	}
	return rec, nil
}

func (m *mockProvider) Create(ctx context.Context, input CreateCredentialInput) (CredentialRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls++
	if m.createErr != nil {
		return CredentialRecord{}, m.createErr
	}

	if m.users == nil {
		m.users = make(map[string]CredentialRecord)
	}
	if m.byIdentifier == nil {
		m.byIdentifier = make(map[string]string)
	}

	for _, identifier := range []string{input.Email, input.Username} {
		if identifier == "" {
			continue
		}
		if _, exists := m.byIdentifier[identifier]; exists {
			return CredentialRecord{}, ErrDuplicateIdentifier
		}
	}

	rec := CredentialRecord{
		UserID:       fmt.Sprintf("u%d", len(m.users)+1),
		Email:        input.Email,
		Username:     input.Username,
		Mobile:       input.Mobile,
		PasswordHash: input.PasswordHash,
		Role:         input.Role,
		Status:       input.Status,
		CreatedAt:    time.Now().Unix(),
	}

	m.users[rec.UserID] = rec
	if rec.Email != "" {
		m.byIdentifier[rec.Email] = rec.UserID
	}
	if rec.Username != "" {
		m.byIdentifier[rec.Username] = rec.UserID
	}
	return rec, nil
}

func (m *mockProvider) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.updatePasswordCalls++
	if m.updateErr != nil {
		return m.updateErr
	}

	rec, ok := m.users[userID]
	if !ok {
		return ErrCredentialNotFound
	}
	rec.PasswordHash = newHash
	m.users[userID] = rec
	return nil
}

func (m *mockProvider) SetStatus(ctx context.Context, userID string, status AccountStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.users[userID]
	if !ok {
		return ErrCredentialNotFound
	}
	rec.Status = status
	m.users[userID] = rec
	return nil
}

func (m *mockProvider) setStatusDirect(userID string, status AccountStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := m.users[userID]
	rec.Status = status
	m.users[userID] = rec
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

// testConfig keeps the memory-hard parameters at their floors so the suite
// stays fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.PrivateKey = []byte("test-secret-test-secret-test-sec")
	cfg.Token.Issuer = "vaultgate-test"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.MinLength = 8
	cfg.Media.Memory = 8 * 1024
	cfg.Media.Time = 1
	cfg.Media.Parallelism = 1
	cfg.Media.Pepper = []byte("test-pepper")
	return cfg
}

func newTestEngine(t *testing.T, rdb *redis.Client, provider CredentialProvider, cfg Config) *Engine {
	t.Helper()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func seedUser(t *testing.T, engine *Engine, provider *mockProvider, email, username, pass string) CredentialRecord {
	t.Helper()

	hash, err := engine.passwords.Hash(pass)
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	rec, err := provider.Create(context.Background(), CreateCredentialInput{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
		Role:         "user",
		Status:       AccountActive,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return rec
}
