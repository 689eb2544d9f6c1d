package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newSessionStoreTest(t *testing.T) (*Store, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(rdb, "gs")
	return store, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestStoreSaveLoadDelete(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()
	sess := testSession()

	if err := store.Save(ctx, "default", sess, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load(ctx, "default")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || got.RefreshToken != sess.RefreshToken {
		t.Fatalf("unexpected loaded session %+v", got)
	}

	if err := store.Delete(ctx, "default"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.Delete(ctx, "default"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	got, err = store.Load(ctx, "default")
	if err != nil || got != nil {
		t.Fatalf("expected nil session after delete, got %+v, %v", got, err)
	}
}

func TestStoreRejectsOlderSessionForSameUser(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	newer := testSession()
	older := testSession()
	older.RefreshToken = "refresh-0"
	older.ExpiresAt = newer.ExpiresAt.Add(-time.Hour)

	if err := store.Save(ctx, "default", newer, 0); err != nil {
		t.Fatalf("save newer: %v", err)
	}
	if err := store.Save(ctx, "default", older, 0); !errors.Is(err, ErrStaleWrite) {
		t.Fatalf("expected ErrStaleWrite, got %v", err)
	}
	got, err := store.Load(ctx, "default")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.RefreshToken != newer.RefreshToken {
		t.Fatalf("stale write replaced stored session: %q", got.RefreshToken)
	}
}

func TestStoreAllowsDifferentUserToReplace(t *testing.T) {
	store, _, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	first := testSession()
	second := testSession()
	second.UserID = "u-2"
	second.ExpiresAt = first.ExpiresAt.Add(-time.Hour)

	if err := store.Save(ctx, "default", first, 0); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := store.Save(ctx, "default", second, 0); err != nil {
		t.Fatalf("save second: %v", err)
	}
	got, _ := store.Load(ctx, "default")
	if got.UserID != "u-2" {
		t.Fatalf("expected second user, got %q", got.UserID)
	}
}

func TestStoreTTL(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, "default", testSession(), time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}
	ttl, err := store.TTL(ctx, "default")
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	got, err := store.Load(ctx, "default")
	if err != nil || got != nil {
		t.Fatalf("expected expired entry to be gone, got %+v, %v", got, err)
	}
}

func TestStoreLoadCorruptBlob(t *testing.T) {
	store, mr, done := newSessionStoreTest(t)
	defer done()

	mr.HSet(store.key("default"), fieldBlob, "\x63garbage")
	if _, err := store.Load(context.Background(), "default"); !errors.Is(err, ErrCorruptSession) {
		t.Fatalf("expected ErrCorruptSession, got %v", err)
	}
}

func TestStoreRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	store := NewStore(rdb, "gs")
	mr.Close()

	if err := store.Save(context.Background(), "default", testSession(), 0); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
