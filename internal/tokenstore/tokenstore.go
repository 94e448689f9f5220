// Package tokenstore implements the external token store the chat client
// reads its bearer token and user profile from.
package tokenstore

import (
	"context"
	"fmt"

	"lecturechat/pkg/database"
	"lecturechat/pkg/interfaces"
	"lecturechat/pkg/types"
)

// Drivers accepted by Open
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

var (
	_ interfaces.TokenStore = (*MemoryStore)(nil)
	_ interfaces.TokenStore = (*SQLiteStore)(nil)
	_ interfaces.TokenStore = (*RedisStore)(nil)
)

// Options selects and configures a token store backend
type Options struct {
	Driver      string
	Path        string
	RedisAddr   string
	RedisDB     int
	RedisPrefix string
	AccessToken string // seeds the memory driver
}

// Open builds the token store named by opts.Driver
func Open(ctx context.Context, opts Options) (interfaces.TokenStore, error) {
	switch opts.Driver {
	case DriverMemory, "":
		seed := map[string]string{}
		if opts.AccessToken != "" {
			seed[types.KeyAccessToken] = opts.AccessToken
		}
		return NewMemoryStore(seed), nil
	case DriverSQLite:
		cfg := database.DefaultConfig()
		if opts.Path != "" {
			cfg.DatabasePath = opts.Path
		}
		return NewSQLiteStore(cfg)
	case DriverRedis:
		return NewRedisStore(ctx, opts.RedisAddr, opts.RedisDB, opts.RedisPrefix)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

// ClearAuth removes every auth key (logout)
func ClearAuth(ctx context.Context, store interfaces.TokenStore) error {
	for _, key := range []string{types.KeyAccessToken, types.KeyRefreshToken, types.KeyUserData} {
		if err := store.Remove(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
