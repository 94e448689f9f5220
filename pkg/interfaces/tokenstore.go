package interfaces

import "context"

// TokenStore is the external key/value store holding access_token,
// refresh_token and user_data. A missing key yields ("", nil).
type TokenStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}
