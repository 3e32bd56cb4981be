package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func testSession(id, userID string, lifetime time.Duration) *Session {
	now := time.Now()
	return &Session{
		SessionID:   id,
		UserID:      userID,
		Role:        "user",
		IP:          "198.51.100.7",
		Client:      "test-client/1.0",
		Fingerprint: [32]byte{1, 2, 3},
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(lifetime).Unix(),
	}
}

func TestSaveAndGet(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, "vs")
	ctx := context.Background()

	sess := testSession("sid-1", "user-1", time.Hour)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "sid-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != "user-1" || got.Role != "user" || got.IP != sess.IP || got.Client != sess.Client {
		t.Fatalf("session roundtrip mismatch: %+v", got)
	}
	if got.Fingerprint != sess.Fingerprint {
		t.Fatal("fingerprint mismatch")
	}
	if got.ExpiresAt != sess.ExpiresAt {
		t.Fatalf("expiry mismatch: got %d want %d", got.ExpiresAt, sess.ExpiresAt)
	}
}

func TestGetUnknown(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, "vs")

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, redis.Nil) {
		t.Fatalf("Get unknown = %v, want redis.Nil", err)
	}
}

func TestGetExpiredDeletesLazily(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewStore(client, "vs")
	ctx := context.Background()

	sess := testSession("sid-exp", "user-1", -time.Minute)
	if err := store.Save(ctx, sess, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := store.Get(ctx, "sid-exp"); !errors.Is(err, redis.Nil) {
		t.Fatalf("Get expired = %v, want redis.Nil", err)
	}
	if mr.Exists("vs:sid-exp") {
		t.Fatal("expired session record not deleted")
	}

	members, err := client.SMembers(ctx, "vsu:user-1").Result()
	if err != nil {
		t.Fatalf("SMembers: %v", err)
	}
	for _, m := range members {
		if m == "sid-exp" {
			t.Fatal("expired session left in user index")
		}
	}
}

func TestDeleteIdempotent(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, "vs")
	ctx := context.Background()

	if err := store.Save(ctx, testSession("sid-del", "user-1", time.Hour), time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Delete(ctx, "sid-del"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "sid-del"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}

	if _, err := store.Get(ctx, "sid-del"); !errors.Is(err, redis.Nil) {
		t.Fatalf("Get after delete = %v, want redis.Nil", err)
	}
}

func TestDeleteAllForUser(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, "vs")
	ctx := context.Background()

	for _, id := range []string{"s1", "s2", "s3"} {
		if err := store.Save(ctx, testSession(id, "user-1", time.Hour), time.Hour); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}
	if err := store.Save(ctx, testSession("other", "user-2", time.Hour), time.Hour); err != nil {
		t.Fatalf("Save(other): %v", err)
	}

	if err := store.DeleteAllForUser(ctx, "user-1"); err != nil {
		t.Fatalf("DeleteAllForUser: %v", err)
	}

	for _, id := range []string{"s1", "s2", "s3"} {
		if _, err := store.Get(ctx, id); !errors.Is(err, redis.Nil) {
			t.Fatalf("Get(%s) after revoke = %v, want redis.Nil", id, err)
		}
	}
	if _, err := store.Get(ctx, "other"); err != nil {
		t.Fatalf("unrelated user's session was revoked: %v", err)
	}
}

func TestActiveCount(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewStore(client, "vs")
	ctx := context.Background()

	for _, id := range []string{"a1", "a2"} {
		if err := store.Save(ctx, testSession(id, "user-1", time.Hour), time.Hour); err != nil {
			t.Fatalf("Save(%s): %v", id, err)
		}
	}

	count, err := store.ActiveCount(ctx, "user-1")
	if err != nil {
		t.Fatalf("ActiveCount: %v", err)
	}
	if count != 2 {
		t.Fatalf("ActiveCount = %d, want 2", count)
	}

	// TTL expiry leaves a stale index entry; the count skips it.
	mr.FastForward(2 * time.Hour)

	count, err = store.ActiveCount(ctx, "user-1")
	if err != nil {
		t.Fatalf("ActiveCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("ActiveCount after expiry = %d, want 0", count)
	}
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	sess := testSession("sid", "user", time.Hour)
	sess.Client = string(make([]byte, 256))

	if _, err := Encode(sess); err == nil {
		t.Fatal("expected oversized field to be rejected")
	}
}
