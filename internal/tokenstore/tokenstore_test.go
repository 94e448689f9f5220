package tokenstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"lecturechat/pkg/database"
	"lecturechat/pkg/interfaces"
	"lecturechat/pkg/types"
)

func exerciseStore(t *testing.T, store interfaces.TokenStore) {
	t.Helper()
	ctx := context.Background()

	value, err := store.Get(ctx, types.KeyAccessToken)
	if err != nil {
		t.Fatalf("Get on empty store failed: %v", err)
	}
	if value != "" {
		t.Errorf("Expected empty access token, got %q", value)
	}

	if err := store.Set(ctx, types.KeyAccessToken, "token-1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, types.KeyAccessToken, "token-2"); err != nil {
		t.Fatalf("Overwrite failed: %v", err)
	}
	if value, _ := store.Get(ctx, types.KeyAccessToken); value != "token-2" {
		t.Errorf("Expected overwritten token 'token-2', got %q", value)
	}

	if err := store.Set(ctx, types.KeyUserData, `{"id":7}`); err != nil {
		t.Fatalf("Set user data failed: %v", err)
	}
	if err := ClearAuth(ctx, store); err != nil {
		t.Fatalf("ClearAuth failed: %v", err)
	}
	for _, key := range []string{types.KeyAccessToken, types.KeyUserData} {
		if value, _ := store.Get(ctx, key); value != "" {
			t.Errorf("Expected %s cleared, got %q", key, value)
		}
	}

	if _, err := store.Get(ctx, ""); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Expected ErrEmptyKey, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(nil)
	defer store.Close()
	exerciseStore(t, store)
}

func TestMemoryStore_ClosedRejectsAccess(t *testing.T) {
	store := NewMemoryStore(map[string]string{types.KeyAccessToken: "abc"})
	store.Close()

	if _, err := store.Get(context.Background(), types.KeyAccessToken); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Expected ErrStoreClosed, got %v", err)
	}
}

func TestSQLiteStore(t *testing.T) {
	cfg := database.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "tokens.db")

	store, err := NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	cfg := database.DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "tokens.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := store.Set(ctx, types.KeyAccessToken, "persisted"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	store.Close()

	reopened, err := NewSQLiteStore(cfg)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	if value, _ := reopened.Get(ctx, types.KeyAccessToken); value != "persisted" {
		t.Errorf("Expected 'persisted' after reopen, got %q", value)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(context.Background(), mr.Addr(), 0, "lecturechat-test:")
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()
	exerciseStore(t, store)
}

func TestRedisStore_PrefixesKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	store, err := Open(ctx, Options{Driver: DriverRedis, RedisAddr: mr.Addr(), RedisPrefix: "lc:"})
	if err != nil {
		t.Fatalf("Open redis failed: %v", err)
	}
	defer store.Close()

	if err := store.Set(ctx, types.KeyAccessToken, "shared"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got, err := mr.Get("lc:" + types.KeyAccessToken); err != nil || got != "shared" {
		t.Errorf("Expected prefixed key in redis, got %q (%v)", got, err)
	}
	if mr.Exists(types.KeyAccessToken) {
		t.Error("Unprefixed key should not be written")
	}
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	if _, err := NewRedisStore(context.Background(), addr, 0, ""); err == nil {
		t.Error("Expected connect error for a stopped server")
	}
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, Options{Driver: DriverMemory, AccessToken: "seeded"})
	if err != nil {
		t.Fatalf("Open memory failed: %v", err)
	}
	if value, _ := store.Get(ctx, types.KeyAccessToken); value != "seeded" {
		t.Errorf("Expected seeded token, got %q", value)
	}

	sqliteStore, err := Open(ctx, Options{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "t.db")})
	if err != nil {
		t.Fatalf("Open sqlite failed: %v", err)
	}
	sqliteStore.Close()

	if _, err := Open(ctx, Options{Driver: "etcd"}); !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("Expected ErrUnknownDriver, got %v", err)
	}
}
